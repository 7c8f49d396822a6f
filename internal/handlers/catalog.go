package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pnotisdev/pnotis-anime/internal/api"
	"github.com/pnotisdev/pnotis-anime/internal/auth"
	"github.com/pnotisdev/pnotis-anime/internal/jikan"
	"github.com/pnotisdev/pnotis-anime/internal/models"
	"github.com/pnotisdev/pnotis-anime/internal/store"
	"github.com/pnotisdev/pnotis-anime/internal/validate"
)

// CatalogClient is the outbound anime catalog. *jikan.Client satisfies it;
// tests swap in a fake.
type CatalogClient interface {
	Search(ctx context.Context, query string, limit int) ([]jikan.Anime, error)
	GetAnime(ctx context.Context, malID int64) (*jikan.Anime, error)
}

// animeView is a catalog row with its stored genre list decoded for the UI.
type animeView struct {
	models.Anime
	Genres []string `json:"genres"`
}

func newAnimeView(a models.Anime) animeView {
	v := animeView{Anime: a, Genres: []string{}}
	if a.Genres != "" {
		_ = json.Unmarshal([]byte(a.Genres), &v.Genres)
	}
	return v
}

type CatalogHandler struct {
	Store   store.Store
	Catalog CatalogClient
	Log     *zap.Logger
}

func NewCatalogHandler(s store.Store, c CatalogClient, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{Store: s, Catalog: c, Log: log}
}

// Routes is mounted under /catalog/{id} in main.
func (h *CatalogHandler) Routes(requireUser func(http.Handler) http.Handler) func(r chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.detail)
		r.Get("/reviews", h.listReviews)
		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Put("/", h.upsertProgress)
			r.Post("/reviews", h.postReview)
		})
	}
}

func malIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.Error(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// resolve returns the local catalog row for malID, fetching from the catalog
// and upserting on a miss (or on a stub row without a title). The first viewer
// of a new title pays the fetch; everyone after reads the stored row. The
// upsert is keyed on mal_id, so concurrent first-viewers race safely with
// last-write-wins.
func (h *CatalogHandler) resolve(ctx context.Context, malID int64) (*models.Anime, error) {
	a, err := h.Store.GetAnimeByMalID(ctx, malID)
	if err == nil && a.Title != "" {
		return a, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	ja, err := h.Catalog.GetAnime(ctx, malID)
	if err != nil {
		return nil, errUpstream{err}
	}
	genres, _ := json.Marshal(ja.GenreNames())
	merged := &models.Anime{
		MalID:       malID,
		Title:       ja.Title,
		Synopsis:    ja.Synopsis,
		Episodes:    ja.Episodes,
		Score:       ja.Score,
		JikanStatus: ja.Status,
		ImageURL:    ja.ImageURL(),
		Genres:      string(genres),
	}
	if err := h.Store.UpsertAnime(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

type errUpstream struct{ err error }

func (e errUpstream) Error() string { return e.err.Error() }
func (e errUpstream) Unwrap() error { return e.err }

func (h *CatalogHandler) detail(w http.ResponseWriter, r *http.Request) {
	malID, ok := malIDParam(w, r)
	if !ok {
		return
	}
	a, err := h.resolve(r.Context(), malID)
	if err != nil {
		var up errUpstream
		if errors.As(err, &up) {
			h.Log.Error("catalog fetch", zap.Error(err), zap.Int64("mal_id", malID))
			api.Error(w, http.StatusBadGateway, "failed to fetch from catalog")
			return
		}
		h.Log.Error("resolve anime", zap.Error(err), zap.Int64("mal_id", malID))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	wc, err := h.Store.WatchCounts(r.Context(), malID)
	if err != nil {
		h.Log.Error("watch counts", zap.Error(err), zap.Int64("mal_id", malID))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	type detailT struct {
		animeView
		WatchCount store.WatchCounts `json:"watchCount"`
	}
	api.WriteJSON(w, http.StatusOK, detailT{animeView: newAnimeView(*a), WatchCount: wc})
}

// upsertProgress handles PUT /catalog/{id}: a status or rating mutation on the
// caller's entry for this title, creating the entry first if they have none.
func (h *CatalogHandler) upsertProgress(w http.ResponseWriter, r *http.Request) {
	malID, ok := malIDParam(w, r)
	if !ok {
		return
	}
	uid := auth.UserID(r.Context())

	type bodyT struct {
		Status *string  `json:"status" validate:"omitempty,oneof=watching watched want_to_watch"`
		Rating *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
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
	if b.Status == nil && b.Rating == nil {
		api.Error(w, http.StatusBadRequest, "status or rating is required")
		return
	}

	var storedRating int
	if b.Rating != nil {
		storedRating = int(math.Round(*b.Rating * 2))
	}

	entry, err := h.Store.GetEntryByMalID(r.Context(), uid, malID)
	switch {
	case err == nil:
		var patch store.EntryPatch
		if b.Status != nil {
			patch.Status = b.Status
		} else {
			patch.Rating = &storedRating
		}
		entry, err = h.Store.UpdateEntry(r.Context(), uid, entry.ID, patch)
		if err != nil {
			h.Log.Error("update entry", zap.Error(err))
			api.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		api.WriteJSON(w, http.StatusOK, entry)

	case errors.Is(err, store.ErrNotFound):
		a, rerr := h.resolve(r.Context(), malID)
		if rerr != nil {
			var up errUpstream
			if errors.As(rerr, &up) {
				api.Error(w, http.StatusBadGateway, "failed to fetch from catalog")
				return
			}
			h.Log.Error("resolve anime", zap.Error(rerr), zap.Int64("mal_id", malID))
			api.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		status := models.StatusWantToWatch
		if b.Status != nil {
			status = *b.Status
		}
		entry = &models.Entry{
			UserID:        uid,
			MalID:         malID,
			Title:         a.Title,
			Status:        status,
			TotalEpisodes: a.Episodes,
			JikanStatus:   a.JikanStatus,
			ImageURL:      a.ImageURL,
			Rating:        storedRating,
		}
		if cerr := h.Store.CreateEntry(r.Context(), entry); cerr != nil {
			h.Log.Error("create entry", zap.Error(cerr))
			api.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if herr := h.Store.AddHistoryEvent(r.Context(), &models.HistoryEvent{
			UserID:  uid,
			EntryID: entry.ID,
		}); herr != nil {
			h.Log.Error("add history event", zap.Error(herr))
		}
		api.WriteJSON(w, http.StatusCreated, entry)

	default:
		h.Log.Error("fetch entry", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *CatalogHandler) listReviews(w http.ResponseWriter, r *http.Request) {
	malID, ok := malIDParam(w, r)
	if !ok {
		return
	}
	reviews, err := h.Store.ListReviews(r.Context(), malID)
	if err != nil {
		h.Log.Error("list reviews", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	api.WriteJSON(w, http.StatusOK, reviews)
}

func (h *CatalogHandler) postReview(w http.ResponseWriter, r *http.Request) {
	malID, ok := malIDParam(w, r)
	if !ok {
		return
	}
	type bodyT struct {
		Content string `json:"content" validate:"required,min=1,max=5000"`
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
	review := &models.Review{
		MalID:   malID,
		UserID:  auth.UserID(r.Context()),
		Content: b.Content,
	}
	if err := h.Store.CreateReview(r.Context(), review); err != nil {
		h.Log.Error("create review", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	api.WriteJSON(w, http.StatusCreated, review)
}
