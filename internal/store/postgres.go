package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pnotisdev/pnotis-anime/internal/models"
)

// Postgres implements Store on top of gorm. Open the DB with
// gorm.Config{TranslateError: true} so unique violations surface as
// gorm.ErrDuplicatedKey.
type Postgres struct{ DB *gorm.DB }

var _ Store = (*Postgres)(nil)

func NewPostgres(db *gorm.DB) *Postgres { return &Postgres{DB: db} }

func (s *Postgres) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Anime{},
		&models.Entry{},
		&models.HistoryEvent{},
		&models.Review{},
		&models.Favorite{},
	)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// Users

func (s *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.DB.WithContext(ctx).Create(u).Error)
}

func (s *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// Watch list

func (s *Postgres) CreateEntry(ctx context.Context, e *models.Entry) error {
	return translate(s.DB.WithContext(ctx).Create(e).Error)
}

func (s *Postgres) ListEntries(ctx context.Context, userID string, opts ListOptions) ([]models.Entry, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.SortBy != "" {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: opts.SortBy}, Desc: opts.Descend})
	}
	var out []models.Entry
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Postgres) GetEntryByMalID(ctx context.Context, userID string, malID int64) (*models.Entry, error) {
	var e models.Entry
	if err := s.DB.WithContext(ctx).First(&e, "user_id = ? AND mal_id = ?", userID, malID).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *Postgres) UpdateEntry(ctx context.Context, userID, entryID string, patch EntryPatch) (*models.Entry, error) {
	updates := map[string]any{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.CurrentEpisode != nil {
		updates["current_episode"] = *patch.CurrentEpisode
	}
	if patch.ImageURL != nil {
		updates["image_url"] = *patch.ImageURL
	}
	if patch.Rating != nil {
		updates["rating"] = *patch.Rating
	}
	res := s.DB.WithContext(ctx).Model(&models.Entry{}).
		Where("id = ? AND user_id = ?", entryID, userID).
		Updates(updates)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var e models.Entry
	if err := s.DB.WithContext(ctx).First(&e, "id = ?", entryID).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *Postgres) DeleteEntry(ctx context.Context, userID, entryID string) error {
	res := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", entryID, userID).Delete(&models.Entry{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) WatchCounts(ctx context.Context, malID int64) (WatchCounts, error) {
	var rows []struct {
		Status string
		Count  int
	}
	err := s.DB.WithContext(ctx).Model(&models.Entry{}).
		Select("status, COUNT(*) AS count").
		Where("mal_id = ?", malID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return WatchCounts{}, err
	}
	var wc WatchCounts
	for _, r := range rows {
		switch r.Status {
		case models.StatusWatched:
			wc.Watched = r.Count
		case models.StatusWatching:
			wc.Watching = r.Count
		case models.StatusWantToWatch:
			wc.WantToWatch = r.Count
		}
	}
	return wc, nil
}

// History

func (s *Postgres) AddHistoryEvent(ctx context.Context, ev *models.HistoryEvent) error {
	return translate(s.DB.WithContext(ctx).Create(ev).Error)
}

func (s *Postgres) WatchHistory(ctx context.Context, userID string, since time.Time) (map[string]int, error) {
	var rows []struct {
		Date  string
		Count int
	}
	err := s.DB.WithContext(ctx).Model(&models.HistoryEvent{}).
		Select("to_char(created_at, 'YYYY-MM-DD') AS date, COUNT(*) AS count").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("to_char(created_at, 'YYYY-MM-DD')").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	hist := make(map[string]int, len(rows))
	for _, r := range rows {
		hist[r.Date] = r.Count
	}
	return hist, nil
}

// Catalog rows

func (s *Postgres) GetAnimeByMalID(ctx context.Context, malID int64) (*models.Anime, error) {
	var a models.Anime
	if err := s.DB.WithContext(ctx).First(&a, "mal_id = ?", malID).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// UpsertAnime inserts or replaces the catalog row keyed on mal_id.
// Last write wins; concurrent first-viewers of a title both land here safely.
func (s *Postgres) UpsertAnime(ctx context.Context, a *models.Anime) error {
	return translate(s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "synopsis", "episodes", "score", "jikan_status", "image_url", "genres", "updated_at",
		}),
	}).Create(a).Error)
}

// EnsureAnime inserts the catalog row if no row for the mal_id exists yet.
// Unlike UpsertAnime it never overwrites richer metadata already present.
func (s *Postgres) EnsureAnime(ctx context.Context, a *models.Anime) error {
	return translate(s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mal_id"}},
		DoNothing: true,
	}).Create(a).Error)
}

// Reviews

func (s *Postgres) CreateReview(ctx context.Context, r *models.Review) error {
	return translate(s.DB.WithContext(ctx).Create(r).Error)
}

func (s *Postgres) ListReviews(ctx context.Context, malID int64) ([]ReviewWithUser, error) {
	var out []ReviewWithUser
	err := s.DB.WithContext(ctx).Table("reviews r").
		Select("r.*, u.username").
		Joins("JOIN users u ON u.id = r.user_id").
		Where("r.mal_id = ?", malID).
		Order("r.created_at DESC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Favorites

func (s *Postgres) AddFavorite(ctx context.Context, userID, animeID string) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Anime{}).Where("id = ?", animeID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return translate(s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "anime_id"}},
		DoNothing: true,
	}).Create(&models.Favorite{UserID: userID, AnimeID: animeID}).Error)
}

func (s *Postgres) RemoveFavorite(ctx context.Context, userID, animeID string) error {
	return translate(s.DB.WithContext(ctx).
		Where("user_id = ? AND anime_id = ?", userID, animeID).
		Delete(&models.Favorite{}).Error)
}

func (s *Postgres) ListFavorites(ctx context.Context, userID string) ([]models.Anime, error) {
	var out []models.Anime
	err := s.DB.WithContext(ctx).Table("anime a").
		Select("a.*").
		Joins("INNER JOIN favorites f ON f.anime_id = a.id").
		Where("f.user_id = ?", userID).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Postgres) PopularAnime(ctx context.Context, limit int) ([]PopularAnime, error) {
	var out []PopularAnime
	err := s.DB.WithContext(ctx).Table("anime a").
		Select("a.*, COUNT(f.id) AS favorite_count").
		Joins("INNER JOIN favorites f ON f.anime_id = a.id").
		Group("a.id").
		Order("COUNT(f.id) DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
