package models

import "time"

// WishlistEntry links a user to a game they are interested in.
// The composite primary key (UserID, GameID) is the uniqueness guard.
type WishlistEntry struct {
	UserID  uint      `gorm:"primaryKey"`
	GameID  uint      `gorm:"primaryKey"`
	AddedAt time.Time `gorm:"not null;autoCreateTime"`

	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Game Game `gorm:"foreignKey:GameID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// TableName keeps the join table name stable.
func (WishlistEntry) TableName() string {
	return "wishlist"
}
