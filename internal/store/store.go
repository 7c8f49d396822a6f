package store

import (
	"context"
	"errors"
	"time"

	"github.com/pnotisdev/pnotis-anime/internal/models"
)

var (
	// ErrNotFound covers both a missing row and a row not owned by the caller;
	// handlers map it to 404 without distinguishing the two.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate signals a uniqueness violation (username, (user, mal_id) entry).
	ErrDuplicate = errors.New("already exists")
)

// Sortable columns for ListEntries. Anything else is rejected before a query
// is built; the sort column is caller-supplied and must never reach SQL raw.
var entrySortColumns = map[string]bool{
	"title":           true,
	"status":          true,
	"current_episode": true,
	"total_episodes":  true,
	"rating":          true,
	"created_at":      true,
	"updated_at":      true,
}

func ValidSortColumn(col string) bool { return entrySortColumns[col] }

// ListOptions narrows and orders a user's watch list.
type ListOptions struct {
	Status  string // empty = all
	SortBy  string // must pass ValidSortColumn; empty = store default
	Descend bool
}

// EntryPatch carries the mutable fields of an entry. Nil means "leave alone".
// A rating patch and a full patch never share a call; the handler builds one
// shape or the other.
type EntryPatch struct {
	Title          *string
	Status         *string
	CurrentEpisode *int
	ImageURL       *string
	Rating         *int
}

type WatchCounts struct {
	Watched     int `json:"watched"`
	Watching    int `json:"watching"`
	WantToWatch int `json:"wantToWatch"`
}

type ReviewWithUser struct {
	models.Review `gorm:"embedded"`
	Username      string `json:"username"`
}

type PopularAnime struct {
	models.Anime  `gorm:"embedded"`
	FavoriteCount int `json:"favorite_count"`
}

// Store is the persistence contract for the whole application. Gorm implements
// it against Postgres; Memory implements it for tests.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// Watch list
	CreateEntry(ctx context.Context, e *models.Entry) error
	ListEntries(ctx context.Context, userID string, opts ListOptions) ([]models.Entry, error)
	GetEntryByMalID(ctx context.Context, userID string, malID int64) (*models.Entry, error)
	UpdateEntry(ctx context.Context, userID, entryID string, patch EntryPatch) (*models.Entry, error)
	DeleteEntry(ctx context.Context, userID, entryID string) error
	WatchCounts(ctx context.Context, malID int64) (WatchCounts, error)

	// History
	AddHistoryEvent(ctx context.Context, ev *models.HistoryEvent) error
	WatchHistory(ctx context.Context, userID string, since time.Time) (map[string]int, error)

	// Catalog rows
	GetAnimeByMalID(ctx context.Context, malID int64) (*models.Anime, error)
	UpsertAnime(ctx context.Context, a *models.Anime) error
	EnsureAnime(ctx context.Context, a *models.Anime) error

	// Reviews
	CreateReview(ctx context.Context, r *models.Review) error
	ListReviews(ctx context.Context, malID int64) ([]ReviewWithUser, error)

	// Favorites
	AddFavorite(ctx context.Context, userID, animeID string) error
	RemoveFavorite(ctx context.Context, userID, animeID string) error
	ListFavorites(ctx context.Context, userID string) ([]models.Anime, error)
	PopularAnime(ctx context.Context, limit int) ([]PopularAnime, error)
}
