package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"indieforge/backend/internal/logging"
	"indieforge/backend/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	db, err := Open("sqlite", dsn, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "", logging.Discard())
	assert.Error(t, err)
}

func TestWishlistPrimaryKeyRejectsDuplicates(t *testing.T) {
	db := openTestDB(t)

	dev := models.User{Username: "dev", Email: "dev@example.com", PasswordHash: "x", IsActive: true, IsDeveloper: true}
	require.NoError(t, db.Create(&dev).Error)
	game := models.Game{Title: "Duplicate Test", DeveloperID: dev.ID, IsPublished: true}
	require.NoError(t, db.Create(&game).Error)

	require.NoError(t, db.Create(&models.WishlistEntry{UserID: dev.ID, GameID: game.ID}).Error)
	err := db.Create(&models.WishlistEntry{UserID: dev.ID, GameID: game.ID}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestGameTitleUniquePerDeveloper(t *testing.T) {
	db := openTestDB(t)

	a := models.User{Username: "a", Email: "a@example.com", PasswordHash: "x", IsActive: true}
	b := models.User{Username: "b", Email: "b@example.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)

	require.NoError(t, db.Create(&models.Game{Title: "Same", DeveloperID: a.ID}).Error)
	require.NoError(t, db.Create(&models.Game{Title: "Same", DeveloperID: b.ID}).Error)
	err := db.Create(&models.Game{Title: "Same", DeveloperID: a.ID}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
