package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pnotisdev/pnotis-anime/internal/api"
	"github.com/pnotisdev/pnotis-anime/internal/cache"
	"github.com/pnotisdev/pnotis-anime/internal/jikan"
)

const searchLimit = 5

type SearchHandler struct {
	Catalog CatalogClient
	Cache   *cache.TTLCache[string, []jikan.Anime]
	Log     *zap.Logger
}

func NewSearchHandler(c CatalogClient, ttl time.Duration, log *zap.Logger) *SearchHandler {
	return &SearchHandler{
		Catalog: c,
		Cache:   cache.NewTTL[string, []jikan.Anime](ttl),
		Log:     log,
	}
}

// Search handles GET /search?q=: a cached free-text proxy to the catalog.
// Results may be stale up to the cache TTL; that is acceptable here.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		api.Error(w, http.StatusBadRequest, "q is required")
		return
	}
	if results, ok := h.Cache.Get(q); ok {
		api.WriteJSON(w, http.StatusOK, map[string]any{"data": results})
		return
	}
	results, err := h.Catalog.Search(r.Context(), q, searchLimit)
	if err != nil {
		h.Log.Error("catalog search", zap.Error(err), zap.String("q", q))
		api.Error(w, http.StatusBadGateway, "failed to fetch from catalog")
		return
	}
	h.Cache.Set(q, results)
	api.WriteJSON(w, http.StatusOK, map[string]any{"data": results})
}

func parsePositiveInt(s string, max int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("out of range")
	}
	return n, nil
}
