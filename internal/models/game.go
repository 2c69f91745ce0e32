package models

import "time"

// Game is a listing owned by exactly one developer. Games are hard-deleted;
// their wishlist entries go with them.
type Game struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"size:100;not null;uniqueIndex:idx_games_developer_title"`
	Description string
	Genre       *string `gorm:"size:50;index"`
	Version     string  `gorm:"size:50;not null;default:'1.0.0'"`
	Price       float64 `gorm:"not null;default:0"`
	IsFree      bool    `gorm:"not null"`
	USKRating   string  `gorm:"column:usk_rating;size:10;not null;default:'USK 6'"`
	DownloadURL string  `gorm:"size:512"`
	ImageURL    string  `gorm:"size:512"`
	Tags        string  `gorm:"size:512"`
	Platform    string  `gorm:"size:100;default:'Windows'"`
	IsPublished bool    `gorm:"not null;default:false;index"`

	DeveloperID uint `gorm:"not null;index;uniqueIndex:idx_games_developer_title"`
	Developer   User `gorm:"foreignKey:DeveloperID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	ReleaseDate *time.Time `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
