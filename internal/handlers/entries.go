package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pnotisdev/pnotis-anime/internal/api"
	"github.com/pnotisdev/pnotis-anime/internal/auth"
	"github.com/pnotisdev/pnotis-anime/internal/models"
	"github.com/pnotisdev/pnotis-anime/internal/store"
	"github.com/pnotisdev/pnotis-anime/internal/validate"
)

const historyWindow = 365 * 24 * time.Hour

type EntriesHandler struct {
	Store   store.Store
	Catalog CatalogClient
	Log     *zap.Logger
}

func NewEntriesHandler(s store.Store, c CatalogClient, log *zap.Logger) *EntriesHandler {
	return &EntriesHandler{Store: s, Catalog: c, Log: log}
}

// Routes is mounted under /users/{username} in main. List stays readable
// without a credential; mutations require the token to own {username}.
func (h *EntriesHandler) Routes(requireUser func(http.Handler) http.Handler) func(r chi.Router) {
	return func(r chi.Router) {
		r.Get("/entries", h.list)
		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/entries", h.create)
			r.Put("/entries", h.update)
			r.Delete("/entries", h.remove)
			r.Get("/history", h.history)
		})
	}
}

// owner resolves {username} and checks it against the authenticated user.
func (h *EntriesHandler) owner(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	u, err := h.Store.GetUserByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "user not found")
		} else {
			h.Log.Error("fetch user", zap.Error(err))
			api.Error(w, http.StatusInternalServerError, "internal server error")
		}
		return nil, false
	}
	if auth.UserID(r.Context()) != u.ID {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return u, true
}

func (h *EntriesHandler) list(w http.ResponseWriter, r *http.Request) {
	// A q (or malId) param turns this into a catalog proxy for the search UI.
	if q := r.URL.Query().Get("q"); q != "" {
		results, err := h.Catalog.Search(r.Context(), q, 0)
		if err != nil {
			h.Log.Error("catalog search", zap.Error(err))
			api.Error(w, http.StatusBadGateway, "failed to fetch from catalog")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"data": results})
		return
	}
	if malID := r.URL.Query().Get("malId"); malID != "" {
		id, err := strconv.ParseInt(malID, 10, 64)
		if err != nil || id <= 0 {
			api.Error(w, http.StatusBadRequest, "malId must be a positive integer")
			return
		}
		a, err := h.Catalog.GetAnime(r.Context(), id)
		if err != nil {
			h.Log.Error("catalog fetch", zap.Error(err))
			api.Error(w, http.StatusBadGateway, "failed to fetch from catalog")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"data": a})
		return
	}

	u, err := h.Store.GetUserByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "user not found")
		} else {
			h.Log.Error("fetch user", zap.Error(err))
			api.Error(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	opts := store.ListOptions{
		Status: r.URL.Query().Get("status"),
		SortBy: r.URL.Query().Get("sort"),
	}
	if opts.Status != "" && !models.ValidStatus(opts.Status) {
		api.Error(w, http.StatusBadRequest, "unknown status")
		return
	}
	if opts.SortBy != "" && !store.ValidSortColumn(opts.SortBy) {
		api.Error(w, http.StatusBadRequest, "unknown sort column")
		return
	}
	switch order := r.URL.Query().Get("order"); order {
	case "", "asc":
	case "desc":
		opts.Descend = true
	default:
		api.Error(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	entries, err := h.Store.ListEntries(r.Context(), u.ID, opts)
	if err != nil {
		h.Log.Error("list entries", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	api.WriteJSON(w, http.StatusOK, entries)
}

func (h *EntriesHandler) create(w http.ResponseWriter, r *http.Request) {
	u, ok := h.owner(w, r)
	if !ok {
		return
	}
	type bodyT struct {
		Title          string `json:"title" validate:"required,max=300"`
		Status         string `json:"status" validate:"required,oneof=watching watched want_to_watch"`
		MalID          int64  `json:"malId" validate:"required,gt=0"`
		CurrentEpisode int    `json:"currentEpisode" validate:"gte=0"`
		TotalEpisodes  int    `json:"totalEpisodes" validate:"gte=0"`
		JikanStatus    string `json:"jikanStatus"`
		ImageURL       string `json:"imageUrl"`
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

	entry := &models.Entry{
		UserID:         u.ID,
		MalID:          b.MalID,
		Title:          b.Title,
		Status:         b.Status,
		CurrentEpisode: b.CurrentEpisode,
		TotalEpisodes:  b.TotalEpisodes,
		JikanStatus:    b.JikanStatus,
		ImageURL:       b.ImageURL,
	}
	if err := h.Store.CreateEntry(r.Context(), entry); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			api.Error(w, http.StatusConflict, "title already on watch list")
			return
		}
		h.Log.Error("create entry", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Keep a catalog row around so the title can be favorited and ranked.
	if err := h.Store.EnsureAnime(r.Context(), &models.Anime{
		MalID:       b.MalID,
		Title:       b.Title,
		Episodes:    b.TotalEpisodes,
		JikanStatus: b.JikanStatus,
		ImageURL:    b.ImageURL,
	}); err != nil {
		h.Log.Error("ensure catalog row", zap.Error(err), zap.Int64("mal_id", b.MalID))
	}

	count := b.CurrentEpisode
	if count <= 0 {
		count = 1
	}
	if err := h.Store.AddHistoryEvent(r.Context(), &models.HistoryEvent{
		UserID:       u.ID,
		EntryID:      entry.ID,
		EpisodeCount: count,
	}); err != nil {
		h.Log.Error("add history event", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	api.WriteJSON(w, http.StatusCreated, entry)
}

func (h *EntriesHandler) update(w http.ResponseWriter, r *http.Request) {
	u, ok := h.owner(w, r)
	if !ok {
		return
	}
	entryID := r.URL.Query().Get("id")
	if entryID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}
	type bodyT struct {
		Title          *string  `json:"title" validate:"omitempty,min=1,max=300"`
		Status         *string  `json:"status" validate:"omitempty,oneof=watching watched want_to_watch"`
		CurrentEpisode *int     `json:"currentEpisode" validate:"omitempty,gte=0"`
		ImageURL       *string  `json:"imageUrl"`
		Rating         *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
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

	var patch store.EntryPatch
	if b.Rating != nil {
		// Rating patch: exclusive, other fields are ignored for this call.
		stored := int(math.Round(*b.Rating * 2))
		patch.Rating = &stored
	} else {
		if b.Title == nil || b.Status == nil {
			api.Error(w, http.StatusBadRequest, "title and status are required")
			return
		}
		patch.Title = b.Title
		patch.Status = b.Status
		patch.CurrentEpisode = b.CurrentEpisode
		patch.ImageURL = b.ImageURL
	}

	entry, err := h.Store.UpdateEntry(r.Context(), u.ID, entryID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "entry not found or not owned by user")
			return
		}
		h.Log.Error("update entry", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Any full patch carrying an episode count logs activity, whether or not
	// the number actually changed.
	if b.Rating == nil && b.CurrentEpisode != nil {
		if err := h.Store.AddHistoryEvent(r.Context(), &models.HistoryEvent{
			UserID:  u.ID,
			EntryID: entry.ID,
		}); err != nil {
			h.Log.Error("add history event", zap.Error(err))
		}
	}

	api.WriteJSON(w, http.StatusOK, entry)
}

func (h *EntriesHandler) remove(w http.ResponseWriter, r *http.Request) {
	u, ok := h.owner(w, r)
	if !ok {
		return
	}
	entryID := r.URL.Query().Get("id")
	if entryID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := h.Store.DeleteEntry(r.Context(), u.ID, entryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "entry not found or not owned by user")
			return
		}
		h.Log.Error("delete entry", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EntriesHandler) history(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUserByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "user not found")
		} else {
			h.Log.Error("fetch user", zap.Error(err))
			api.Error(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	hist, err := h.Store.WatchHistory(r.Context(), u.ID, time.Now().Add(-historyWindow))
	if err != nil {
		h.Log.Error("watch history", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	api.WriteJSON(w, http.StatusOK, hist)
}
