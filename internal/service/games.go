package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"indieforge/backend/internal/apperr"
	"indieforge/backend/internal/metrics"
	"indieforge/backend/internal/models"
	"indieforge/backend/internal/policy"
	"indieforge/backend/pkg/optional"
)

const (
	minTitleLen              = 3
	maxTitleLen              = 100
	minPublishDescriptionLen = 10
	defaultVersion           = "1.0.0"
	defaultUSKRating         = "USK 6"
	defaultPlatform          = "Windows"
)

// USKRatings is the fixed set of accepted age ratings.
var USKRatings = []string{"USK 0", "USK 6", "USK 12", "USK 16", "USK 18"}

// Genres is the fixed set of accepted genres.
var Genres = []string{
	"Action", "Adventure", "RPG", "Strategy", "Simulation",
	"Sports", "Racing", "Puzzle", "Platform", "Shooter",
	"Indie", "Casual", "Arcade", "Horror", "Survival",
}

// GameInput is the payload for creating a game.
type GameInput struct {
	Title       string   `json:"title" example:"Test Game"`
	Description string   `json:"description" example:"A long enough description."`
	Genre       *string  `json:"genre" example:"Indie"`
	Version     string   `json:"version" example:"1.0.0"`
	Price       *float64 `json:"price" example:"0"`
	IsFree      *bool    `json:"is_free" example:"true"`
	USKRating   string   `json:"usk_rating" example:"USK 6"`
	DownloadURL string   `json:"download_url"`
	ImageURL    string   `json:"image_url"`
	Tags        string   `json:"tags" example:"pixel,roguelike"`
	Platform    string   `json:"platform" example:"Windows"`
}

// GameUpdate is a partial update; absent fields are left untouched.
type GameUpdate struct {
	Title       optional.Field[string]  `json:"title"`
	Description optional.Field[string]  `json:"description"`
	Genre       optional.Field[string]  `json:"genre"`
	Version     optional.Field[string]  `json:"version"`
	Price       optional.Field[float64] `json:"price"`
	IsFree      optional.Field[bool]    `json:"is_free"`
	USKRating   optional.Field[string]  `json:"usk_rating"`
	DownloadURL optional.Field[string]  `json:"download_url"`
	ImageURL    optional.Field[string]  `json:"image_url"`
	Tags        optional.Field[string]  `json:"tags"`
	Platform    optional.Field[string]  `json:"platform"`
}

// nullField names the first non-nullable field sent as an explicit null.
// Genre is the only column that may be cleared.
func (u GameUpdate) nullField() string {
	fields := []struct {
		name string
		null bool
	}{
		{"Title", u.Title.Null},
		{"Description", u.Description.Null},
		{"Version", u.Version.Null},
		{"Price", u.Price.Null},
		{"Free flag", u.IsFree.Null},
		{"USK rating", u.USKRating.Null},
		{"Download URL", u.DownloadURL.Null},
		{"Image URL", u.ImageURL.Null},
		{"Tags", u.Tags.Null},
		{"Platform", u.Platform.Null},
	}
	for _, f := range fields {
		if f.null {
			return f.name
		}
	}
	return ""
}

// GameFilter narrows the public listing.
type GameFilter struct {
	Skip   int
	Limit  int
	Genre  string
	Search string
}

// LibraryStats summarises the public catalogue.
type LibraryStats struct {
	TotalPublishedGames int64            `json:"total_published_games"`
	TotalDevelopers     int64            `json:"total_developers"`
	GenreDistribution   map[string]int64 `json:"genre_distribution"`
	USKDistribution     map[string]int64 `json:"usk_distribution"`
}

// DeveloperStats counts one developer's games.
type DeveloperStats struct {
	PublishedGames int64 `json:"published_games"`
	DraftGames     int64 `json:"draft_games"`
	TotalGames     int64 `json:"total_games"`
}

// GameService manages the game catalogue and the publishing workflow.
type GameService struct {
	db      *gorm.DB
	log     *logrus.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewGameService(db *gorm.DB, log *logrus.Logger, m *metrics.Metrics) *GameService {
	return &GameService{db: db, log: log, metrics: m, now: time.Now}
}

// Create stores a new draft owned by the actor.
func (s *GameService) Create(ctx context.Context, actor *models.User, in GameInput) (*models.Game, error) {
	if err := policy.Authorize(actor, policy.ActionCreateGame, nil); err != nil {
		return nil, err
	}

	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	genre, err := normalizeGenre(in.Genre)
	if err != nil {
		return nil, err
	}
	usk := in.USKRating
	if usk == "" {
		usk = defaultUSKRating
	}
	if err := validateUSK(usk); err != nil {
		return nil, err
	}
	price := 0.0
	if in.Price != nil {
		price = *in.Price
	}
	if err := validatePrice(price); err != nil {
		return nil, err
	}
	isFree := price == 0
	if in.IsFree != nil {
		isFree = *in.IsFree
	}

	db := s.db.WithContext(ctx)
	if taken, err := exists(db.Model(&models.Game{}).Where("developer_id = ? AND title = ?", actor.ID, title)); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict(fmt.Sprintf("You already have a game titled '%s'", title))
	}

	now := s.now().UTC()
	game := &models.Game{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Genre:       genre,
		Version:     valueOr(strings.TrimSpace(in.Version), defaultVersion),
		Price:       price,
		IsFree:      isFree,
		USKRating:   usk,
		DownloadURL: strings.TrimSpace(in.DownloadURL),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Tags:        strings.TrimSpace(in.Tags),
		Platform:    valueOr(strings.TrimSpace(in.Platform), defaultPlatform),
		IsPublished: false,
		DeveloperID: actor.ID,
		ReleaseDate: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Omit(clause.Associations).Create(game).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict(fmt.Sprintf("You already have a game titled '%s'", title))
		}
		return nil, fmt.Errorf("create game: %w", err)
	}

	s.log.WithFields(logrus.Fields{"game_id": game.ID, "developer_id": actor.ID}).Info("game created")
	return loadGame(db, game.ID)
}

// Update applies a partial update to a game owned by the actor (or any game for admins).
func (s *GameService) Update(ctx context.Context, actor *models.User, id uint, in GameUpdate) (*models.Game, error) {
	db := s.db.WithContext(ctx)
	game, err := loadGame(db, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionUpdateGame, game); err != nil {
		return nil, err
	}
	if name := in.nullField(); name != "" {
		return nil, apperr.Validation(name + " cannot be null")
	}

	changes := map[string]interface{}{}
	candidate := *game

	if in.Title.IsSet() {
		title, err := normalizeTitle(in.Title.Value)
		if err != nil {
			return nil, err
		}
		if title != game.Title {
			if taken, err := exists(db.Model(&models.Game{}).Where("developer_id = ? AND title = ? AND id <> ?", game.DeveloperID, title, game.ID)); err != nil {
				return nil, err
			} else if taken {
				return nil, apperr.Conflict(fmt.Sprintf("Developer already has a game titled '%s'", title))
			}
			changes["title"] = title
		}
		candidate.Title = title
	}
	if in.Description.IsSet() {
		candidate.Description = strings.TrimSpace(in.Description.Value)
		changes["description"] = candidate.Description
	}
	if in.Genre.Present {
		var requested *string
		if !in.Genre.Null {
			requested = &in.Genre.Value
		}
		genre, err := normalizeGenre(requested)
		if err != nil {
			return nil, err
		}
		if genre == nil {
			changes["genre"] = nil
		} else {
			changes["genre"] = *genre
		}
	}
	if in.Version.IsSet() {
		changes["version"] = valueOr(strings.TrimSpace(in.Version.Value), defaultVersion)
	}
	if in.Price.IsSet() {
		price := in.Price.Value
		if err := validatePrice(price); err != nil {
			return nil, err
		}
		changes["price"] = price
	}
	if in.IsFree.IsSet() {
		changes["is_free"] = in.IsFree.Value
	}
	if in.USKRating.IsSet() {
		if err := validateUSK(in.USKRating.Value); err != nil {
			return nil, err
		}
		changes["usk_rating"] = in.USKRating.Value
	}
	if in.DownloadURL.IsSet() {
		changes["download_url"] = strings.TrimSpace(in.DownloadURL.Value)
	}
	if in.ImageURL.IsSet() {
		changes["image_url"] = strings.TrimSpace(in.ImageURL.Value)
	}
	if in.Tags.IsSet() {
		changes["tags"] = strings.TrimSpace(in.Tags.Value)
	}
	if in.Platform.IsSet() {
		changes["platform"] = valueOr(strings.TrimSpace(in.Platform.Value), defaultPlatform)
	}

	// A published game must keep satisfying the publish rules.
	if game.IsPublished {
		if err := ValidateForPublish(&candidate); err != nil {
			return nil, err
		}
	}

	changes["updated_at"] = s.now().UTC()
	if err := db.Model(&models.Game{}).Where("id = ?", game.ID).Updates(changes).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Developer already has a game with this title")
		}
		return nil, fmt.Errorf("update game: %w", err)
	}
	return loadGame(db, game.ID)
}

// Publish moves a draft to published after checking title and description lengths.
func (s *GameService) Publish(ctx context.Context, actor *models.User, id uint) (*models.Game, error) {
	db := s.db.WithContext(ctx)
	game, err := loadGame(db, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionPublishGame, game); err != nil {
		return nil, err
	}
	if err := ValidateForPublish(game); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	err = db.Model(&models.Game{}).Where("id = ?", game.ID).Updates(map[string]interface{}{
		"is_published": true,
		"release_date": now,
		"updated_at":   now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("publish game: %w", err)
	}

	if !game.IsPublished {
		s.metrics.GamePublished()
	}
	s.log.WithFields(logrus.Fields{"game_id": game.ID, "actor_id": actor.ID}).Info("game published")
	return loadGame(db, game.ID)
}

// ValidateForPublish enforces the minimum title and description lengths.
func ValidateForPublish(game *models.Game) error {
	if len([]rune(strings.TrimSpace(game.Title))) < minTitleLen {
		return apperr.Validation(fmt.Sprintf("Title must be at least %d characters long", minTitleLen))
	}
	if len([]rune(strings.TrimSpace(game.Description))) < minPublishDescriptionLen {
		return apperr.Validation(fmt.Sprintf("Description must be at least %d characters long", minPublishDescriptionLen))
	}
	return nil
}

// Delete removes a game the actor owns, or any game when the actor is an admin.
func (s *GameService) Delete(ctx context.Context, actor *models.User, id uint) (*models.Game, error) {
	return s.delete(ctx, actor, id, policy.ActionDeleteGame)
}

// AdminDelete removes any game; only admins may call it.
func (s *GameService) AdminDelete(ctx context.Context, actor *models.User, id uint) (*models.Game, error) {
	if err := policy.Authorize(actor, policy.ActionDeleteAnyGame, nil); err != nil {
		return nil, err
	}
	return s.delete(ctx, actor, id, policy.ActionDeleteAnyGame)
}

func (s *GameService) delete(ctx context.Context, actor *models.User, id uint, action policy.Action) (*models.Game, error) {
	db := s.db.WithContext(ctx)
	game, err := loadGame(db, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, action, game); err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ?", game.ID).Delete(&models.WishlistEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Game{}, game.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("delete game: %w", err)
	}

	s.log.WithFields(logrus.Fields{"game_id": game.ID, "actor_id": actor.ID}).Info("game deleted")
	return game, nil
}

// Get returns a game if the actor (possibly nil) may see it. Drafts look
// missing to everyone but their owner and admins.
func (s *GameService) Get(ctx context.Context, actor *models.User, id uint) (*models.Game, error) {
	game, err := loadGame(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewGame(actor, game) {
		return nil, apperr.NotFound("Game is not published")
	}
	return game, nil
}

// ListPublished returns published games, newest release first.
func (s *GameService) ListPublished(ctx context.Context, f GameFilter) ([]models.Game, error) {
	query := s.db.WithContext(ctx).Preload("Developer").Where("is_published = ?", true)

	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags) LIKE ?", pattern, pattern, pattern)
	} else if genre := strings.TrimSpace(f.Genre); genre != "" {
		query = query.Where("genre = ?", genre)
	}

	var games []models.Game
	err := query.Order("release_date DESC").Order("id DESC").Offset(f.Skip).Limit(f.Limit).Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// ListByDeveloper returns the actor's own games, newest first.
func (s *GameService) ListByDeveloper(ctx context.Context, actor *models.User, includeDrafts bool) ([]models.Game, error) {
	if err := policy.Authorize(actor, policy.ActionListOwnGames, nil); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Preload("Developer").Where("developer_id = ?", actor.ID)
	if !includeDrafts {
		query = query.Where("is_published = ?", true)
	}

	var games []models.Game
	if err := query.Order("created_at DESC").Order("id DESC").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("list developer games: %w", err)
	}
	return games, nil
}

// ListAll returns every game, optionally including drafts. Admin only.
func (s *GameService) ListAll(ctx context.Context, actor *models.User, includeUnpublished bool, skip, limit int) ([]models.Game, error) {
	if err := policy.Authorize(actor, policy.ActionListAllGames, nil); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Preload("Developer")
	if !includeUnpublished {
		query = query.Where("is_published = ?", true)
	}

	var games []models.Game
	if err := query.Order("release_date DESC").Order("id DESC").Offset(skip).Limit(limit).Find(&games).Error; err != nil {
		return nil, fmt.Errorf("list all games: %w", err)
	}
	return games, nil
}

// LibraryStats is public.
func (s *GameService) LibraryStats(ctx context.Context) (*LibraryStats, error) {
	db := s.db.WithContext(ctx)
	stats := &LibraryStats{
		GenreDistribution: map[string]int64{},
		USKDistribution:   map[string]int64{},
	}

	if err := db.Model(&models.Game{}).Where("is_published = ?", true).Count(&stats.TotalPublishedGames).Error; err != nil {
		return nil, fmt.Errorf("count games: %w", err)
	}
	if err := db.Model(&models.User{}).Where("is_developer = ?", true).Count(&stats.TotalDevelopers).Error; err != nil {
		return nil, fmt.Errorf("count developers: %w", err)
	}

	type bucket struct {
		Label string
		Count int64
	}
	var genres []bucket
	err := db.Model(&models.Game{}).
		Select("genre AS label, COUNT(id) AS count").
		Where("is_published = ? AND genre IS NOT NULL", true).
		Group("genre").Scan(&genres).Error
	if err != nil {
		return nil, fmt.Errorf("genre distribution: %w", err)
	}
	for _, b := range genres {
		stats.GenreDistribution[b.Label] = b.Count
	}

	var ratings []bucket
	err = db.Model(&models.Game{}).
		Select("usk_rating AS label, COUNT(id) AS count").
		Where("is_published = ?", true).
		Group("usk_rating").Scan(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("usk distribution: %w", err)
	}
	for _, b := range ratings {
		stats.USKDistribution[b.Label] = b.Count
	}

	return stats, nil
}

// DeveloperStats counts the actor's published and draft games.
func (s *GameService) DeveloperStats(ctx context.Context, actor *models.User) (*DeveloperStats, error) {
	if err := policy.Authorize(actor, policy.ActionDeveloperStats, nil); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	stats := &DeveloperStats{}
	if err := db.Model(&models.Game{}).Where("developer_id = ? AND is_published = ?", actor.ID, true).Count(&stats.PublishedGames).Error; err != nil {
		return nil, fmt.Errorf("count published games: %w", err)
	}
	if err := db.Model(&models.Game{}).Where("developer_id = ? AND is_published = ?", actor.ID, false).Count(&stats.DraftGames).Error; err != nil {
		return nil, fmt.Errorf("count draft games: %w", err)
	}
	stats.TotalGames = stats.PublishedGames + stats.DraftGames
	return stats, nil
}

func loadGame(db *gorm.DB, id uint) (*models.Game, error) {
	var game models.Game
	err := db.Preload("Developer").First(&game, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Game not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	return &game, nil
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	n := len([]rune(title))
	if n < minTitleLen {
		return "", apperr.Validation(fmt.Sprintf("Title must be at least %d characters long", minTitleLen))
	}
	if n > maxTitleLen {
		return "", apperr.Validation(fmt.Sprintf("Title must be at most %d characters long", maxTitleLen))
	}
	return title, nil
}

func normalizeGenre(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	genre := strings.TrimSpace(*raw)
	for _, g := range Genres {
		if g == genre {
			return &genre, nil
		}
	}
	return nil, apperr.Validation("Genre must be one of: " + strings.Join(Genres, ", "))
}

func validateUSK(rating string) error {
	for _, r := range USKRatings {
		if r == rating {
			return nil
		}
	}
	return apperr.Validation("USK rating must be one of: " + strings.Join(USKRatings, ", "))
}

func validatePrice(price float64) error {
	if price < 0 {
		return apperr.Validation("Price cannot be negative")
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
