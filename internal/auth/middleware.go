package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKeyUserID struct{}

// UserID returns the authenticated user id, or "" when the request carried no
// valid credential.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserID{}).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects a user id into the context. Useful for testing.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

func bearerToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireUser rejects requests without a valid bearer token and injects the
// user id into the request context.
func RequireUser(ts TokenService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			claims, err := ts.Parse(tok)
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}

// OptionalUser injects the user id when a valid token is present and lets the
// request through either way. Used on routes that behave differently for the
// owner but stay readable anonymously.
func OptionalUser(ts TokenService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearerToken(r); tok != "" {
				if claims, err := ts.Parse(tok); err == nil {
					r = r.WithContext(WithUserID(r.Context(), claims.Subject))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
