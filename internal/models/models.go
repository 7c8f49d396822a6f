package models

import (
	"time"

	"gorm.io/gorm"
)

// Watch statuses for a list entry. Stored as-is; the UI maps them to labels.
const (
	StatusWatching    = "watching"
	StatusWatched     = "watched"
	StatusWantToWatch = "want_to_watch"
)

type User struct {
	ID        string         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `json:"-"`
}

// Anime is a locally cached catalog row, one per MAL id. Populated on first
// detail view (merge-on-read) or when a user adds the title to their list.
type Anime struct {
	ID        string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MalID       int64   `gorm:"uniqueIndex;not null" json:"mal_id"`
	Title       string  `json:"title"`
	Synopsis    string  `json:"synopsis"`
	Episodes    int     `json:"episodes"`
	Score       float64 `json:"score"`
	JikanStatus string  `json:"jikan_status"`
	ImageURL    string  `json:"image_url"`
	Genres      string  `gorm:"type:text" json:"-"` // JSON-encoded []string, decoded at the API boundary
}

func (Anime) TableName() string { return "anime" }

// Entry is one user's watch-list row for one title. Rating is the UI's 0-5
// star value doubled and rounded, so halving it round-trips exactly.
type Entry struct {
	ID        string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID         string `gorm:"type:uuid;index:idx_entries_user_mal,unique;not null" json:"user_id"`
	MalID          int64  `gorm:"index:idx_entries_user_mal,unique;not null" json:"mal_id"`
	Title          string `gorm:"not null" json:"title"`
	Status         string `gorm:"not null" json:"status"`
	CurrentEpisode int    `json:"current_episode"`
	TotalEpisodes  int    `json:"total_episodes"`
	JikanStatus    string `json:"jikan_status"`
	ImageURL       string `json:"image_url"`
	Rating         int    `json:"rating"`
}

// HistoryEvent records one unit of watch activity. Append-only; rows survive
// deletion of their entry since the calendar only ever counts them.
type HistoryEvent struct {
	ID        string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID       string `gorm:"type:uuid;index;not null" json:"user_id"`
	EntryID      string `gorm:"type:uuid;index" json:"entry_id"`
	EpisodeCount int    `gorm:"default:1" json:"episode_count"`
}

type Review struct {
	ID        string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	MalID   int64  `gorm:"index;not null" json:"mal_id"`
	UserID  string `gorm:"type:uuid;index;not null" json:"user_id"`
	Content string `gorm:"not null" json:"content"`
}

type Favorite struct {
	ID        string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID  string `gorm:"type:uuid;index:idx_favorites_user_anime,unique;not null" json:"user_id"`
	AnimeID string `gorm:"type:uuid;index:idx_favorites_user_anime,unique;not null" json:"anime_id"`
}

func ValidStatus(s string) bool {
	switch s {
	case StatusWatching, StatusWatched, StatusWantToWatch:
		return true
	}
	return false
}
