package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"indieforge/backend/internal/apperr"
	"indieforge/backend/internal/metrics"
	"indieforge/backend/internal/models"
	"indieforge/backend/internal/policy"
)

const unknownDeveloper = "Unknown"

// WishlistItem is a wishlisted game enriched with its developer's name.
type WishlistItem struct {
	GameID        uint      `json:"game_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Genre         *string   `json:"genre"`
	Price         float64   `json:"price"`
	IsFree        bool      `json:"is_free"`
	USKRating     string    `json:"usk_rating"`
	ImageURL      string    `json:"image_url"`
	DeveloperName string    `json:"developer_name"`
	AddedAt       time.Time `json:"added_at"`
}

// WishlistCheck reports whether a game is on the caller's wishlist.
type WishlistCheck struct {
	GameID     uint   `json:"game_id"`
	GameTitle  string `json:"game_title"`
	InWishlist bool   `json:"in_wishlist"`
}

// WishlistStats summarises a wishlist. TotalValue only counts paid games.
type WishlistStats struct {
	TotalGames int64   `json:"total_games"`
	FreeGames  int64   `json:"free_games"`
	PaidGames  int64   `json:"paid_games"`
	TotalValue float64 `json:"total_value"`
}

// WishlistService manages the user/game wishlist relation.
type WishlistService struct {
	db      *gorm.DB
	log     *logrus.Logger
	metrics *metrics.Metrics
}

func NewWishlistService(db *gorm.DB, log *logrus.Logger, m *metrics.Metrics) *WishlistService {
	return &WishlistService{db: db, log: log, metrics: m}
}

// Add puts a published game on the actor's wishlist and returns the game.
func (s *WishlistService) Add(ctx context.Context, actor *models.User, gameID uint) (game *models.Game, err error) {
	defer func() { s.metrics.WishlistOp("add", err) }()

	if err := policy.Authorize(actor, policy.ActionUseWishlist, nil); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	game, err = loadGame(db, gameID)
	if err != nil {
		return nil, err
	}
	if !game.IsPublished {
		return nil, apperr.NotFound("Game not found or not published")
	}

	// The composite primary key rejects concurrent duplicates.
	entry := &models.WishlistEntry{UserID: actor.ID, GameID: game.ID}
	if err := db.Omit("User", "Game").Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Game already in wishlist")
		}
		return nil, fmt.Errorf("add to wishlist: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": actor.ID, "game_id": game.ID}).Debug("wishlist entry added")
	return game, nil
}

// Remove takes a game off the actor's wishlist and returns the game.
func (s *WishlistService) Remove(ctx context.Context, actor *models.User, gameID uint) (game *models.Game, err error) {
	defer func() { s.metrics.WishlistOp("remove", err) }()

	if err := policy.Authorize(actor, policy.ActionUseWishlist, nil); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	game, err = loadGame(db, gameID)
	if err != nil {
		return nil, err
	}

	res := db.Where("user_id = ? AND game_id = ?", actor.ID, game.ID).Delete(&models.WishlistEntry{})
	if res.Error != nil {
		return nil, fmt.Errorf("remove from wishlist: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotInWishlist("Game not in wishlist")
	}
	return game, nil
}

// List returns the actor's wishlist in insertion order.
func (s *WishlistService) List(ctx context.Context, actor *models.User) ([]WishlistItem, error) {
	if err := policy.Authorize(actor, policy.ActionUseWishlist, nil); err != nil {
		return nil, err
	}

	var entries []models.WishlistEntry
	err := s.db.WithContext(ctx).
		Preload("Game").
		Preload("Game.Developer").
		Where("user_id = ?", actor.ID).
		Order("added_at ASC").Order("game_id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}

	items := make([]WishlistItem, 0, len(entries))
	for _, e := range entries {
		developer := e.Game.Developer.Username
		if developer == "" {
			developer = unknownDeveloper
		}
		items = append(items, WishlistItem{
			GameID:        e.GameID,
			Title:         e.Game.Title,
			Description:   e.Game.Description,
			Genre:         e.Game.Genre,
			Price:         e.Game.Price,
			IsFree:        e.Game.IsFree,
			USKRating:     e.Game.USKRating,
			ImageURL:      e.Game.ImageURL,
			DeveloperName: developer,
			AddedAt:       e.AddedAt,
		})
	}
	return items, nil
}

// Check reports membership. Unlike Add it does not require the game to be published.
func (s *WishlistService) Check(ctx context.Context, actor *models.User, gameID uint) (*WishlistCheck, error) {
	if err := policy.Authorize(actor, policy.ActionUseWishlist, nil); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	game, err := loadGame(db, gameID)
	if err != nil {
		return nil, err
	}
	in, err := exists(db.Model(&models.WishlistEntry{}).Where("user_id = ? AND game_id = ?", actor.ID, game.ID))
	if err != nil {
		return nil, err
	}
	return &WishlistCheck{GameID: game.ID, GameTitle: game.Title, InWishlist: in}, nil
}

// Stats counts the actor's free and paid wishlist entries.
func (s *WishlistService) Stats(ctx context.Context, actor *models.User) (*WishlistStats, error) {
	if err := policy.Authorize(actor, policy.ActionUseWishlist, nil); err != nil {
		return nil, err
	}

	var games []models.Game
	err := s.db.WithContext(ctx).
		Joins("JOIN wishlist ON wishlist.game_id = games.id").
		Where("wishlist.user_id = ?", actor.ID).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("wishlist stats: %w", err)
	}

	stats := &WishlistStats{TotalGames: int64(len(games))}
	for _, g := range games {
		if g.IsFree {
			stats.FreeGames++
			continue
		}
		stats.PaidGames++
		stats.TotalValue += g.Price
	}
	stats.TotalValue = roundCents(stats.TotalValue)
	return stats, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
