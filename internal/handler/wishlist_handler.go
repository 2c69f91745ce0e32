package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"indieforge/backend/internal/auth"
)

// WishlistMessage is returned when a game is added or removed.
type WishlistMessage struct {
	Message string `json:"message" example:"'Test Game' was added to the wishlist"`
	GameID  uint   `json:"game_id" example:"1"`
}

// region --- Wishlist Handlers ---

// ListWishlist godoc
// @Summary      List own wishlist
// @Tags         wishlist
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   service.WishlistItem
// @Failure      401  {object}  ErrorResponse
// @Router       /wishlist/ [get]
func (h *Handler) ListWishlist(c *gin.Context) {
	items, err := h.wishlist.List(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// AddToWishlist godoc
// @Summary      Add a game to the wishlist
// @Description  Only published games can be added.
// @Tags         wishlist
// @Produce      json
// @Security     BearerAuth
// @Param        game_id path      int  true  "Game ID"
// @Success      200     {object}  WishlistMessage
// @Failure      400     {object}  ErrorResponse "Game already in wishlist"
// @Failure      401     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse "Game not found or not published"
// @Router       /wishlist/{game_id} [post]
func (h *Handler) AddToWishlist(c *gin.Context) {
	id, ok := idParam(c, "game_id")
	if !ok {
		return
	}

	game, err := h.wishlist.Add(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, WishlistMessage{Message: "'" + game.Title + "' was added to the wishlist", GameID: game.ID})
}

// RemoveFromWishlist godoc
// @Summary      Remove a game from the wishlist
// @Tags         wishlist
// @Produce      json
// @Security     BearerAuth
// @Param        game_id path      int  true  "Game ID"
// @Success      200     {object}  WishlistMessage
// @Failure      400     {object}  ErrorResponse "Game not in wishlist"
// @Failure      401     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse "Game not found"
// @Router       /wishlist/{game_id} [delete]
func (h *Handler) RemoveFromWishlist(c *gin.Context) {
	id, ok := idParam(c, "game_id")
	if !ok {
		return
	}

	game, err := h.wishlist.Remove(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, WishlistMessage{Message: "'" + game.Title + "' was removed from the wishlist", GameID: game.ID})
}

// CheckWishlist godoc
// @Summary      Check wishlist membership
// @Description  Works for drafts as well as published games.
// @Tags         wishlist
// @Produce      json
// @Security     BearerAuth
// @Param        game_id path      int  true  "Game ID"
// @Success      200     {object}  service.WishlistCheck
// @Failure      401     {object}  ErrorResponse
// @Failure      404     {object}  ErrorResponse "Game not found"
// @Router       /wishlist/check/{game_id} [get]
func (h *Handler) CheckWishlist(c *gin.Context) {
	id, ok := idParam(c, "game_id")
	if !ok {
		return
	}

	check, err := h.wishlist.Check(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// WishlistStats godoc
// @Summary      Wishlist statistics
// @Description  total_value sums the prices of paid games, rounded to cents.
// @Tags         wishlist
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  service.WishlistStats
// @Failure      401  {object}  ErrorResponse
// @Router       /wishlist/stats [get]
func (h *Handler) WishlistStats(c *gin.Context) {
	stats, err := h.wishlist.Stats(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// endregion
