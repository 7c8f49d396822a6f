package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pnotisdev/pnotis-anime/internal/models"
)

// Memory is an in-memory Store with the same observable behavior as Postgres.
// Used by tests; everything is guarded by one mutex.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]models.User
	anime     map[string]models.Anime // keyed by row id
	entries   map[string]models.Entry
	history   []models.HistoryEvent
	reviews   []models.Review
	favorites map[string]models.Favorite // keyed by user_id+"/"+anime_id
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]models.User),
		anime:     make(map[string]models.Anime),
		entries:   make(map[string]models.Entry),
		favorites: make(map[string]models.Favorite),
	}
}

// Users

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Watch list

func (m *Memory) CreateEntry(_ context.Context, e *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.entries {
		if existing.UserID == e.UserID && existing.MalID == e.MalID {
			return ErrDuplicate
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	m.entries[e.ID] = *e
	return nil
}

func (m *Memory) ListEntries(_ context.Context, userID string, opts ListOptions) ([]models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Entry{}
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		out = append(out, e)
	}
	if opts.SortBy != "" {
		sortEntries(out, opts.SortBy, opts.Descend)
	}
	return out, nil
}

func sortEntries(entries []models.Entry, col string, desc bool) {
	less := func(a, b models.Entry) bool {
		switch col {
		case "title":
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case "status":
			return a.Status < b.Status
		case "current_episode":
			return a.CurrentEpisode < b.CurrentEpisode
		case "total_episodes":
			return a.TotalEpisodes < b.TotalEpisodes
		case "rating":
			return a.Rating < b.Rating
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if desc {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

func (m *Memory) GetEntryByMalID(_ context.Context, userID string, malID int64) (*models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.UserID == userID && e.MalID == malID {
			out := e
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateEntry(_ context.Context, userID, entryID string, patch EntryPatch) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.Status != nil {
		e.Status = *patch.Status
	}
	if patch.CurrentEpisode != nil {
		e.CurrentEpisode = *patch.CurrentEpisode
	}
	if patch.ImageURL != nil {
		e.ImageURL = *patch.ImageURL
	}
	if patch.Rating != nil {
		e.Rating = *patch.Rating
	}
	e.UpdatedAt = time.Now()
	m.entries[entryID] = e
	return &e, nil
}

func (m *Memory) DeleteEntry(_ context.Context, userID, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok || e.UserID != userID {
		return ErrNotFound
	}
	delete(m.entries, entryID)
	return nil
}

func (m *Memory) WatchCounts(_ context.Context, malID int64) (WatchCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var wc WatchCounts
	for _, e := range m.entries {
		if e.MalID != malID {
			continue
		}
		switch e.Status {
		case models.StatusWatched:
			wc.Watched++
		case models.StatusWatching:
			wc.Watching++
		case models.StatusWantToWatch:
			wc.WantToWatch++
		}
	}
	return wc, nil
}

// History

func (m *Memory) AddHistoryEvent(_ context.Context, ev *models.HistoryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	if ev.EpisodeCount == 0 {
		ev.EpisodeCount = 1
	}
	m.history = append(m.history, *ev)
	return nil
}

func (m *Memory) WatchHistory(_ context.Context, userID string, since time.Time) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := make(map[string]int)
	for _, ev := range m.history {
		if ev.UserID != userID || ev.CreatedAt.Before(since) {
			continue
		}
		hist[ev.CreatedAt.Format("2006-01-02")]++
	}
	return hist, nil
}

// Catalog rows

func (m *Memory) GetAnimeByMalID(_ context.Context, malID int64) (*models.Anime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.anime {
		if a.MalID == malID {
			out := a
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpsertAnime(_ context.Context, a *models.Anime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.anime {
		if existing.MalID == a.MalID {
			a.ID = id
			a.CreatedAt = existing.CreatedAt
			a.UpdatedAt = time.Now()
			m.anime[id] = *a
			return nil
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.anime[a.ID] = *a
	return nil
}

func (m *Memory) EnsureAnime(_ context.Context, a *models.Anime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.anime {
		if existing.MalID == a.MalID {
			a.ID = existing.ID
			return nil
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.anime[a.ID] = *a
	return nil
}

// Reviews

func (m *Memory) CreateReview(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.reviews = append(m.reviews, *r)
	return nil
}

func (m *Memory) ListReviews(_ context.Context, malID int64) ([]ReviewWithUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []ReviewWithUser{}
	for _, r := range m.reviews {
		if r.MalID != malID {
			continue
		}
		username := ""
		if u, ok := m.users[r.UserID]; ok {
			username = u.Username
		}
		out = append(out, ReviewWithUser{Review: r, Username: username})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Favorites

func (m *Memory) AddFavorite(_ context.Context, userID, animeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.anime[animeID]; !ok {
		return ErrNotFound
	}
	key := userID + "/" + animeID
	if _, ok := m.favorites[key]; ok {
		return nil
	}
	m.favorites[key] = models.Favorite{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		UserID:    userID,
		AnimeID:   animeID,
	}
	return nil
}

func (m *Memory) RemoveFavorite(_ context.Context, userID, animeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.favorites, userID+"/"+animeID)
	return nil
}

func (m *Memory) ListFavorites(_ context.Context, userID string) ([]models.Anime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Anime{}
	for _, f := range m.favorites {
		if f.UserID != userID {
			continue
		}
		if a, ok := m.anime[f.AnimeID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) PopularAnime(_ context.Context, limit int) ([]PopularAnime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, f := range m.favorites {
		counts[f.AnimeID]++
	}
	out := []PopularAnime{}
	for id, n := range counts {
		if a, ok := m.anime[id]; ok {
			out = append(out, PopularAnime{Anime: a, FavoriteCount: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FavoriteCount > out[j].FavoriteCount })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
