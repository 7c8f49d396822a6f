package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pnotisdev/pnotis-anime/internal/api"
	"github.com/pnotisdev/pnotis-anime/internal/auth"
	"github.com/pnotisdev/pnotis-anime/internal/models"
	"github.com/pnotisdev/pnotis-anime/internal/store"
	"github.com/pnotisdev/pnotis-anime/internal/validate"
)

type AuthHandler struct {
	Store  store.Store
	Tokens auth.TokenService
	Log    *zap.Logger
}

func NewAuthHandler(s store.Store, ts auth.TokenService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Store: s, Tokens: ts, Log: log}
}

// Routes is mounted under /auth in main.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type bodyT struct {
		Username string `json:"username" validate:"required,min=3,max=50"`
		Password string `json:"password" validate:"required,min=8,max=72"`
	}
	var b bodyT
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b.Username = strings.TrimSpace(b.Username)
	if errs := validate.Map(b); errs != nil {
		api.FieldErrors(w, errs)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(b.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Log.Error("hash password", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	u := &models.User{Username: b.Username, PasswordHash: string(hash)}
	if err := h.Store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			api.Error(w, http.StatusBadRequest, "username already exists")
			return
		}
		h.Log.Error("create user", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]string{"message": "user registered successfully"})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type bodyT struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	var b bodyT
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Map(b); errs != nil {
		api.FieldErrors(w, errs)
		return
	}

	u, err := h.Store.GetUserByUsername(r.Context(), strings.TrimSpace(b.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.Log.Error("fetch user", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(b.Password)) != nil {
		api.Error(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, _, err := h.Tokens.Issue(u.ID, time.Time{})
	if err != nil {
		h.Log.Error("issue token", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "login successful", "token": token})
}

// Whoami resolves the bearer credential to its username. Mounted behind
// RequireUser.
func (h *AuthHandler) Whoami(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())
	u, err := h.Store.GetUser(r.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.Log.Error("fetch user", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"username": u.Username})
}
