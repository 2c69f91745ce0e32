package handler

import (
	"github.com/gin-gonic/gin"

	"indieforge/backend/internal/auth"
)

// RegisterRoutes wires every API route onto router. authLimit guards /register
// and /login; pass nil to disable it.
func (h *Handler) RegisterRoutes(router *gin.Engine, authLimit gin.HandlerFunc) {
	requireAuth := auth.AuthMiddleware(h.tokens, h.users)
	optionalAuth := auth.OptionalAuthMiddleware(h.tokens, h.users)
	if authLimit == nil {
		authLimit = func(c *gin.Context) { c.Next() }
	}

	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	// Auth routes
	router.POST("/register", authLimit, h.Register)
	router.POST("/login", authLimit, h.Login)

	// User routes (protected)
	userRoutes := router.Group("/users")
	userRoutes.Use(requireAuth)
	{
		userRoutes.GET("/me/", h.GetMe)
		userRoutes.PUT("/me/", h.UpdateMe)
	}
	router.POST("/upload-avatar/", requireAuth, h.UploadAvatar)
	router.GET("/avatars/:name", h.GetAvatar)

	// Library routes
	library := router.Group("/library")
	{
		library.GET("/", h.ListGames)
		library.GET("/stats/overview", h.LibraryStats)
		library.GET("/:id", optionalAuth, h.GetGame)

		developer := library.Group("/developer")
		developer.Use(requireAuth)
		{
			developer.GET("/games", h.ListMyGames)
			developer.POST("/games", h.CreateGame)
			developer.PUT("/games/:id", h.UpdateGame)
			developer.POST("/games/:id/publish", h.PublishGame)
			developer.DELETE("/games/:id", h.DeleteGame)
			developer.GET("/stats", h.DeveloperStats)
		}

		libraryAdmin := library.Group("/admin")
		libraryAdmin.Use(requireAuth, auth.AdminMiddleware())
		{
			libraryAdmin.GET("/all-games", h.AdminListGames)
			libraryAdmin.DELETE("/games/:id", h.AdminDeleteGame)
		}
	}

	// Legacy game routes, same handlers and rules as the library
	router.GET("/games/", h.ListGames)
	legacy := router.Group("/games")
	legacy.Use(requireAuth)
	{
		legacy.POST("/", h.CreateGame)
		legacy.DELETE("/:id", h.DeleteGame)
	}

	// Wishlist routes (protected)
	wishlist := router.Group("/wishlist")
	wishlist.Use(requireAuth)
	{
		wishlist.GET("/", h.ListWishlist)
		wishlist.GET("/stats", h.WishlistStats)
		wishlist.GET("/check/:game_id", h.CheckWishlist)
		wishlist.POST("/:game_id", h.AddToWishlist)
		wishlist.DELETE("/:game_id", h.RemoveFromWishlist)
	}

	// Admin routes (protected by auth and admin check)
	adminRoutes := router.Group("/admin")
	adminRoutes.Use(requireAuth, auth.AdminMiddleware())
	{
		adminRoutes.GET("/users/", h.ListUsers)
		adminRoutes.PUT("/users/:id/role", h.ChangeRole)

		exports := adminRoutes.Group("/export")
		{
			exports.POST("/users/json", h.ExportUsersJSON)
			exports.POST("/users/csv", h.ExportUsersCSV)
			exports.POST("/users/by-role/:role", h.ExportUsersByRole)
			exports.POST("/report/summary", h.ExportSummaryReport)
			exports.GET("/list", h.ListExports)
			exports.GET("/download/:filename", h.DownloadExport)
		}
	}
}
