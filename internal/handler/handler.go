package handler

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"indieforge/backend/internal/export"
	"indieforge/backend/internal/service"
	"indieforge/backend/internal/storage"
	"indieforge/backend/pkg/jwt"
)

// Handler serves the HTTP API on top of the service layer.
type Handler struct {
	db       *gorm.DB
	users    *service.UserService
	games    *service.GameService
	wishlist *service.WishlistService
	exports  *export.Service
	tokens   *jwt.Manager
	store    storage.Service
	log      *logrus.Logger

	avatarDir      string
	maxAvatarBytes int64
}

// Deps lists everything a Handler needs.
type Deps struct {
	DB       *gorm.DB
	Users    *service.UserService
	Games    *service.GameService
	Wishlist *service.WishlistService
	Exports  *export.Service
	Tokens   *jwt.Manager
	Store    storage.Service
	Log      *logrus.Logger

	AvatarDir      string
	MaxAvatarBytes int64
}

func New(d Deps) *Handler {
	return &Handler{
		db:             d.DB,
		users:          d.Users,
		games:          d.Games,
		wishlist:       d.Wishlist,
		exports:        d.Exports,
		tokens:         d.Tokens,
		store:          d.Store,
		log:            d.Log,
		avatarDir:      d.AvatarDir,
		maxAvatarBytes: d.MaxAvatarBytes,
	}
}
