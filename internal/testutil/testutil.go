// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"indieforge/backend/internal/database"
	"indieforge/backend/internal/logging"
	"indieforge/backend/internal/models"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)

	db, err := database.Open("sqlite", dsn, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given role flags.
func CreateUser(t *testing.T, db *gorm.DB, username string, developer, admin bool) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "unused",
		IsActive:     true,
		IsDeveloper:  developer,
		IsAdmin:      admin,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateGame inserts a game owned by developer.
func CreateGame(t *testing.T, db *gorm.DB, developer *models.User, title string, published bool, price float64) *models.Game {
	t.Helper()
	g := &models.Game{
		Title:       title,
		Description: "A game used by tests.",
		Version:     "1.0.0",
		USKRating:   "USK 6",
		Platform:    "Windows",
		Price:       price,
		IsFree:      price == 0,
		DeveloperID: developer.ID,
	}
	require.NoError(t, db.Create(g).Error)
	if published {
		require.NoError(t, db.Model(g).Update("is_published", true).Error)
		g.IsPublished = true
	}
	return g
}
