package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_RegisterLoginWhoami(t *testing.T) {
	e := newEnv(t)
	creds := map[string]any{"username": "ayla", "password": "correct horse"}

	rec := e.do(t, http.MethodPost, "/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]string](t, rec)
	require.NotEmpty(t, body["token"])

	rec = e.do(t, http.MethodGet, "/v1/auth/user", body["token"], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ayla", decode[map[string]string](t, rec)["username"])
}

func TestAuth_RegisterValidation(t *testing.T) {
	e := newEnv(t)

	// Too-short username and password.
	rec := e.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{"username": "ab", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Duplicate username.
	creds := map[string]any{"username": "ayla", "password": "correct horse"}
	rec = e.do(t, http.MethodPost, "/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = e.do(t, http.MethodPost, "/v1/auth/register", "", creds)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "username already exists")
}

func TestAuth_LoginRejectsBadCredentials(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{"username": "ayla", "password": "correct horse"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Wrong password and unknown user produce the same answer.
	rec = e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "ayla", "password": "wrong horse"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid username or password")

	rec = e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "nobody", "password": "correct horse"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid username or password")
}

func TestAuth_WhoamiRequiresToken(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/v1/auth/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/auth/user", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
