package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pnotisdev/pnotis-anime/internal/api"
	"github.com/pnotisdev/pnotis-anime/internal/auth"
	"github.com/pnotisdev/pnotis-anime/internal/store"
	"github.com/pnotisdev/pnotis-anime/internal/validate"
)

type FavoritesHandler struct {
	Store store.Store
	Log   *zap.Logger
}

func NewFavoritesHandler(s store.Store, log *zap.Logger) *FavoritesHandler {
	return &FavoritesHandler{Store: s, Log: log}
}

// Routes is mounted under /favorites, behind RequireUser.
func (h *FavoritesHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.add)
	r.Delete("/", h.remove)
}

func (h *FavoritesHandler) list(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.Store.ListFavorites(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.Log.Error("list favorites", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	out := make([]animeView, 0, len(favorites))
	for _, a := range favorites {
		out = append(out, newAnimeView(a))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h *FavoritesHandler) add(w http.ResponseWriter, r *http.Request) {
	type bodyT struct {
		AnimeID string `json:"animeId" validate:"required"`
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
	// Re-adding an existing favorite is a no-op.
	if err := h.Store.AddFavorite(r.Context(), auth.UserID(r.Context()), b.AnimeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "anime not found")
			return
		}
		h.Log.Error("add favorite", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FavoritesHandler) remove(w http.ResponseWriter, r *http.Request) {
	animeID := r.URL.Query().Get("animeId")
	if animeID == "" {
		api.Error(w, http.StatusBadRequest, "animeId is required")
		return
	}
	if err := h.Store.RemoveFavorite(r.Context(), auth.UserID(r.Context()), animeID); err != nil {
		h.Log.Error("remove favorite", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type DiscoverHandler struct {
	Store store.Store
	Log   *zap.Logger
}

func NewDiscoverHandler(s store.Store, log *zap.Logger) *DiscoverHandler {
	return &DiscoverHandler{Store: s, Log: log}
}

// Popular handles GET /discover: titles ranked by favorite count.
func (h *DiscoverHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := parsePositiveInt(v, 100)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	popular, err := h.Store.PopularAnime(r.Context(), limit)
	if err != nil {
		h.Log.Error("popular anime", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	type popularT struct {
		animeView
		FavoriteCount int `json:"favorite_count"`
	}
	out := make([]popularT, 0, len(popular))
	for _, p := range popular {
		out = append(out, popularT{animeView: newAnimeView(p.Anime), FavoriteCount: p.FavoriteCount})
	}
	api.WriteJSON(w, http.StatusOK, out)
}
