package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnotisdev/pnotis-anime/internal/models"
)

func TestEntries_AddThenList(t *testing.T) {
	e := newEnv(t)
	_, tok := e.user(t, "ayla")

	rec := e.do(t, http.MethodPost, "/v1/users/ayla/entries", tok, map[string]any{
		"title":          "Cowboy Bebop",
		"status":         "watching",
		"malId":          5,
		"currentEpisode": 3,
		"totalEpisodes":  26,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Entry](t, rec)
	require.NotEmpty(t, created.ID)

	rec = e.do(t, http.MethodGet, "/v1/users/ayla/entries", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]models.Entry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, created.ID, entries[0].ID)
	assert.Equal(t, "Cowboy Bebop", entries[0].Title)
	assert.Equal(t, "watching", entries[0].Status)
	assert.Equal(t, 3, entries[0].CurrentEpisode)
	assert.Equal(t, 26, entries[0].TotalEpisodes)
}

func TestEntries_AddValidation(t *testing.T) {
	e := newEnv(t)
	_, tok := e.user(t, "ayla")

	// Missing required fields.
	rec := e.do(t, http.MethodPost, "/v1/users/ayla/entries", tok, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown status.
	rec = e.do(t, http.MethodPost, "/v1/users/ayla/entries", tok, map[string]any{
		"title": "x", "status": "binged", "malId": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No token at all.
	rec = e.do(t, http.MethodPost, "/v1/users/ayla/entries", "", map[string]any{
		"title": "x", "status": "watching", "malId": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEntries_AddDuplicate(t *testing.T) {
	e := newEnv(t)
	_, tok := e.user(t, "ayla")

	body := map[string]any{"title": "Akira", "status": "watched", "malId": 47}
	rec := e.do(t, http.MethodPost, "/v1/users/ayla/entries", tok, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/users/ayla/entries", tok, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEntries_OwnershipOnMutation(t *testing.T) {
	e := newEnv(t)
	e.user(t, "ayla")
	_, intruderTok := e.user(t, "brin")

	// brin's token against ayla's list.
	rec := e.do(t, http.MethodPost, "/v1/users/ayla/entries", intruderTok, map[string]any{
		"title": "x", "status": "watching", "malId": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEntries_ListFilterSortAndRejections(t *testing.T) {
	e := newEnv(t)
	u, tok := e.user(t, "ayla")

	for i, tc := range []struct {
		title  string
		status string
	}{
		{"b side", "watching"},
		{"a side", "watched"},
		{"c side", "watching"},
	} {
		require.NoError(t, e.store.CreateEntry(context.Background(), &models.Entry{
			UserID: u.ID, MalID: int64(i + 1), Title: tc.title, Status: tc.status,
		}))
	}

	rec := e.do(t, http.MethodGet, "/v1/users/ayla/entries?status=watching", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]models.Entry](t, rec), 2)

	rec = e.do(t, http.MethodGet, "/v1/users/ayla/entries?sort=title&order=desc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]models.Entry](t, rec)
	require.Len(t, entries, 3)
	assert.Equal(t, "c side", entries[0].Title)

	// Sort column outside the allow-list never reaches the store.
	rec = e.do(t, http.MethodGet, "/v1/users/ayla/entries?sort=password_hash", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/users/ayla/entries?order=sideways", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/users/nobody/entries", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntries_UpdatePatchShapes(t *testing.T) {
	e := newEnv(t)
	u, tok := e.user(t, "ayla")
	entry := &models.Entry{UserID: u.ID, MalID: 9, Title: "Monster", Status: "watching", CurrentEpisode: 12, Rating: 6}
	require.NoError(t, e.store.CreateEntry(context.Background(), entry))

	// Rating-only patch: UI 4 stars stores 8, nothing else moves.
	rec := e.do(t, http.MethodPut, "/v1/users/ayla/entries?id="+entry.ID, tok, map[string]any{"rating": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[models.Entry](t, rec)
	assert.Equal(t, 8, got.Rating)
	assert.Equal(t, "Monster", got.Title)
	assert.Equal(t, "watching", got.Status)
	assert.Equal(t, 12, got.CurrentEpisode)
	assert.Equal(t, 4, got.Rating/2, "halving the stored rating returns the submitted stars")

	// Full patch: rating untouched.
	rec = e.do(t, http.MethodPut, "/v1/users/ayla/entries?id="+entry.ID, tok, map[string]any{
		"title": "Monster (TV)", "status": "watched", "currentEpisode": 74,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[models.Entry](t, rec)
	assert.Equal(t, 8, got.Rating)
	assert.Equal(t, "Monster (TV)", got.Title)
	assert.Equal(t, "watched", got.Status)
	assert.Equal(t, 74, got.CurrentEpisode)

	// Full patch without title/status is rejected.
	rec = e.do(t, http.MethodPut, "/v1/users/ayla/entries?id="+entry.ID, tok, map[string]any{"currentEpisode": 75})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown entry id.
	rec = e.do(t, http.MethodPut, "/v1/users/ayla/entries?id=missing", tok, map[string]any{"rating": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntries_UpdateAppendsHistoryOnEpisodeField(t *testing.T) {
	e := newEnv(t)
	u, tok := e.user(t, "ayla")
	entry := &models.Entry{UserID: u.ID, MalID: 9, Title: "Monster", Status: "watching", CurrentEpisode: 12}
	require.NoError(t, e.store.CreateEntry(context.Background(), entry))

	// Episode field present, value unchanged: still logs activity.
	rec := e.do(t, http.MethodPut, "/v1/users/ayla/entries?id="+entry.ID, tok, map[string]any{
		"title": "Monster", "status": "watching", "currentEpisode": 12,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Episode field absent: no event.
	rec = e.do(t, http.MethodPut, "/v1/users/ayla/entries?id="+entry.ID, tok, map[string]any{
		"title": "Monster", "status": "watched",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Rating patch: no event either.
	rec = e.do(t, http.MethodPut, "/v1/users/ayla/entries?id="+entry.ID, tok, map[string]any{"rating": 5})
	require.Equal(t, http.StatusOK, rec.Code)

	hist, err := e.store.WatchHistory(context.Background(), u.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	total := 0
	for _, n := range hist {
		total += n
	}
	assert.Equal(t, 1, total, "exactly one event from the episode-bearing patch")
}

func TestEntries_RemoveOwnership(t *testing.T) {
	e := newEnv(t)
	u, ownerTok := e.user(t, "ayla")
	_, intruderTok := e.user(t, "brin")
	entry := &models.Entry{UserID: u.ID, MalID: 30, Title: "Evangelion", Status: "watched"}
	require.NoError(t, e.store.CreateEntry(context.Background(), entry))

	// brin cannot even address ayla's collection.
	rec := e.do(t, http.MethodDelete, "/v1/users/ayla/entries?id="+entry.ID, intruderTok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// brin deleting through their own collection: not found, row untouched.
	rec = e.do(t, http.MethodDelete, "/v1/users/brin/entries?id="+entry.ID, intruderTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodGet, "/v1/users/ayla/entries", "", nil)
	require.Len(t, decode[[]models.Entry](t, rec), 1)

	rec = e.do(t, http.MethodDelete, "/v1/users/ayla/entries?id="+entry.ID, ownerTok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/v1/users/ayla/entries", "", nil)
	require.Len(t, decode[[]models.Entry](t, rec), 0)
}

func TestEntries_HistoryCalendar(t *testing.T) {
	e := newEnv(t)
	u, tok := e.user(t, "ayla")

	day1 := time.Now().Add(-48 * time.Hour)
	day2 := time.Now().Add(-24 * time.Hour)
	for _, ts := range []time.Time{day1, day1.Add(time.Minute), day1.Add(2 * time.Minute), day2} {
		require.NoError(t, e.store.AddHistoryEvent(context.Background(), &models.HistoryEvent{UserID: u.ID, CreatedAt: ts}))
	}

	rec := e.do(t, http.MethodGet, "/v1/users/ayla/history", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[map[string]int](t, rec)
	require.Len(t, hist, 2)
	assert.Equal(t, 3, hist[day1.Format("2006-01-02")])
	assert.Equal(t, 1, hist[day2.Format("2006-01-02")])

	// No credential: the calendar is not public.
	rec = e.do(t, http.MethodGet, "/v1/users/ayla/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEntries_AddRecordsHistoryAndCatalogRow(t *testing.T) {
	e := newEnv(t)
	u, tok := e.user(t, "ayla")

	rec := e.do(t, http.MethodPost, "/v1/users/ayla/entries", tok, map[string]any{
		"title": "Akira", "status": "watched", "malId": 47, "currentEpisode": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	hist, err := e.store.WatchHistory(context.Background(), u.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, hist, 1)

	a, err := e.store.GetAnimeByMalID(context.Background(), 47)
	require.NoError(t, err)
	assert.Equal(t, "Akira", a.Title)
}

func TestEntries_SearchProxy(t *testing.T) {
	e := newEnv(t)
	e.user(t, "ayla")
	e.catalog.searchHits = nil

	rec := e.do(t, http.MethodGet, "/v1/users/ayla/entries?q=bebop", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, e.catalog.searchCalls)
}
