package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. Role flags are independent booleans.
type User struct {
	gorm.Model
	Username     string `gorm:"size:50;uniqueIndex;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	IsActive     bool   `gorm:"not null"`
	IsDeveloper  bool   `gorm:"not null;default:false;index"`
	IsAdmin      bool   `gorm:"not null;default:false;index"`
	AvatarURL    *string
	BirthDate    *time.Time `gorm:"type:date"`
}

// RoleDisplay returns a human-readable list of the user's roles.
func (u User) RoleDisplay() string {
	switch {
	case u.IsAdmin && u.IsDeveloper:
		return "Administrator, Developer"
	case u.IsAdmin:
		return "Administrator"
	case u.IsDeveloper:
		return "Developer"
	default:
		return "User"
	}
}
