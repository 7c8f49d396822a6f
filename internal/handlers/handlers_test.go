package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pnotisdev/pnotis-anime/internal/auth"
	"github.com/pnotisdev/pnotis-anime/internal/jikan"
	"github.com/pnotisdev/pnotis-anime/internal/models"
	"github.com/pnotisdev/pnotis-anime/internal/store"
)

type fakeCatalog struct {
	mu          sync.Mutex
	anime       map[int64]jikan.Anime
	searchHits  []jikan.Anime
	searchErr   error
	getCalls    int
	searchCalls int
}

func (f *fakeCatalog) Search(_ context.Context, _ string, _ int) ([]jikan.Anime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *fakeCatalog) GetAnime(_ context.Context, malID int64) (*jikan.Anime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	a, ok := f.anime[malID]
	if !ok {
		return nil, fmt.Errorf("jikan status 404")
	}
	return &a, nil
}

type env struct {
	store   *store.Memory
	catalog *fakeCatalog
	tokens  auth.TokenService
	router  chi.Router
}

// newEnv wires the full /v1 surface against the in-memory store, mirroring
// the mounting in cmd/api/main.go.
func newEnv(t *testing.T) *env {
	t.Helper()
	mem := store.NewMemory()
	catalog := &fakeCatalog{anime: map[int64]jikan.Anime{}}
	tokens := auth.TokenService{Secret: []byte("handler-test-secret-0123456789ab"), TTL: time.Hour}
	log := zap.NewNop()
	requireUser := auth.RequireUser(tokens)

	authHandler := NewAuthHandler(mem, tokens, log)
	entriesHandler := NewEntriesHandler(mem, catalog, log)
	catalogHandler := NewCatalogHandler(mem, catalog, log)
	favoritesHandler := NewFavoritesHandler(mem, log)
	discoverHandler := NewDiscoverHandler(mem, log)
	searchHandler := NewSearchHandler(catalog, time.Minute, log)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", searchHandler.Search)
		r.Get("/discover", discoverHandler.Popular)
		r.Route("/auth", authHandler.Routes)
		r.With(requireUser).Get("/auth/user", authHandler.Whoami)
		r.With(auth.OptionalUser(tokens)).
			Route("/users/{username}", entriesHandler.Routes(requireUser))
		r.Route("/catalog/{id}", catalogHandler.Routes(requireUser))
		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Route("/favorites", favoritesHandler.Routes)
		})
	})

	return &env{store: mem, catalog: catalog, tokens: tokens, router: r}
}

// user creates an account directly in the store and returns it with a token.
func (e *env) user(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	u := &models.User{Username: username, PasswordHash: "unused"}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	tok, _, err := e.tokens.Issue(u.ID, time.Time{})
	require.NoError(t, err)
	return u, tok
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}
