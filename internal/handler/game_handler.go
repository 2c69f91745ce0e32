package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"indieforge/backend/internal/auth"
	"indieforge/backend/internal/service"
)

// region --- DTOs ---

// GameUpdateRequest documents the body of the game update endpoint. Only keys
// present in the body are applied; genre may be null.
type GameUpdateRequest struct {
	Title       *string  `json:"title" example:"Test Game"`
	Description *string  `json:"description"`
	Genre       *string  `json:"genre" example:"Puzzle"`
	Version     *string  `json:"version" example:"1.1.0"`
	Price       *float64 `json:"price" example:"4.99"`
	IsFree      *bool    `json:"is_free" example:"false"`
	USKRating   *string  `json:"usk_rating" example:"USK 12"`
	DownloadURL *string  `json:"download_url"`
	ImageURL    *string  `json:"image_url"`
	Tags        *string  `json:"tags"`
	Platform    *string  `json:"platform" example:"Linux"`
}

// endregion

// region --- Public Handlers ---

// ListGames godoc
// @Summary      List published games
// @Description  Public catalogue, newest release first. search matches title, description and tags.
// @Tags         library
// @Produce      json
// @Param        skip   query     int     false  "Entries to skip" default(0)
// @Param        limit  query     int     false  "Maximum entries" default(50)
// @Param        genre  query     string  false  "Genre filter"
// @Param        search query     string  false  "Search term"
// @Success      200    {array}   GameResponse
// @Router       /library/ [get]
// @Router       /games/ [get]
func (h *Handler) ListGames(c *gin.Context) {
	games, err := h.games.ListPublished(c.Request.Context(), service.GameFilter{
		Skip:   intQuery(c, "skip", 0, 0, 1<<30),
		Limit:  intQuery(c, "limit", 50, 1, 100),
		Genre:  c.Query("genre"),
		Search: c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapSlice(games, newGameResponse))
}

// GetGame godoc
// @Summary      Get game details
// @Description  Drafts are only visible to their developer and to admins.
// @Tags         library
// @Produce      json
// @Param        id  path      int  true  "Game ID"
// @Success      200 {object}  GameResponse
// @Failure      404 {object}  ErrorResponse "Game not found"
// @Router       /library/{id} [get]
func (h *Handler) GetGame(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	game, err := h.games.Get(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newGameResponse(*game))
}

// LibraryStats godoc
// @Summary      Library overview
// @Tags         library
// @Produce      json
// @Success      200 {object}  service.LibraryStats
// @Router       /library/stats/overview [get]
func (h *Handler) LibraryStats(c *gin.Context) {
	stats, err := h.games.LibraryStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// endregion

// region --- Developer Handlers ---

// CreateGame godoc
// @Summary      Create a game
// @Description  Creates an unpublished draft owned by the caller.
// @Tags         developer
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body service.GameInput true "Game Info"
// @Success      200  {object}  GameResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Only developers can manage games"
// @Router       /library/developer/games [post]
// @Router       /games/ [post]
func (h *Handler) CreateGame(c *gin.Context) {
	var input service.GameInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	game, err := h.games.Create(c.Request.Context(), auth.CurrentUser(c), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newGameResponse(*game))
}

// ListMyGames godoc
// @Summary      List own games
// @Tags         developer
// @Produce      json
// @Security     BearerAuth
// @Param        include_drafts query bool false "Include drafts" default(true)
// @Success      200  {array}   GameResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /library/developer/games [get]
func (h *Handler) ListMyGames(c *gin.Context) {
	games, err := h.games.ListByDeveloper(c.Request.Context(), auth.CurrentUser(c), boolQuery(c, "include_drafts", true))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(games, newGameResponse))
}

// UpdateGame godoc
// @Summary      Update a game
// @Description  Partial update. Publishing goes through the publish endpoint.
// @Tags         developer
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "Game ID"
// @Param        input body      GameUpdateRequest  true  "Fields to change"
// @Success      200   {object}  GameResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse "Game not found"
// @Router       /library/developer/games/{id} [put]
func (h *Handler) UpdateGame(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var input service.GameUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	game, err := h.games.Update(c.Request.Context(), auth.CurrentUser(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newGameResponse(*game))
}

// PublishGame godoc
// @Summary      Publish a game
// @Description  Requires a title of at least 3 and a description of at least 10 characters.
// @Tags         developer
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      int  true  "Game ID"
// @Success      200 {object}  GameResponse
// @Failure      400 {object}  ErrorResponse "Validation failed"
// @Failure      403 {object}  ErrorResponse
// @Failure      404 {object}  ErrorResponse "Game not found"
// @Router       /library/developer/games/{id}/publish [post]
func (h *Handler) PublishGame(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	game, err := h.games.Publish(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newGameResponse(*game))
}

// DeleteGame godoc
// @Summary      Delete a game
// @Description  Owners may delete their own games; admins may delete any game.
// @Tags         developer
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      int  true  "Game ID"
// @Success      200 {object}  MessageResponse
// @Failure      403 {object}  ErrorResponse
// @Failure      404 {object}  ErrorResponse "Game not found"
// @Router       /library/developer/games/{id} [delete]
// @Router       /games/{id} [delete]
func (h *Handler) DeleteGame(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.games.Delete(c.Request.Context(), auth.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Game deleted"})
}

// DeveloperStats godoc
// @Summary      Own game counts
// @Tags         developer
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object}  service.DeveloperStats
// @Failure      403 {object}  ErrorResponse
// @Router       /library/developer/stats [get]
func (h *Handler) DeveloperStats(c *gin.Context) {
	stats, err := h.games.DeveloperStats(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// endregion

// region --- Admin Handlers ---

// AdminListGames godoc
// @Summary      List all games
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        include_unpublished query bool false "Include drafts" default(false)
// @Param        skip                query int  false "Entries to skip" default(0)
// @Param        limit               query int  false "Maximum entries" default(100)
// @Success      200  {array}   GameResponse
// @Failure      403  {object}  ErrorResponse "Admin access required"
// @Router       /library/admin/all-games [get]
func (h *Handler) AdminListGames(c *gin.Context) {
	games, err := h.games.ListAll(
		c.Request.Context(),
		auth.CurrentUser(c),
		boolQuery(c, "include_unpublished", false),
		intQuery(c, "skip", 0, 0, 1<<30),
		intQuery(c, "limit", 100, 1, 200),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapSlice(games, newGameResponse))
}

// AdminDeleteGame godoc
// @Summary      Delete any game
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      int  true  "Game ID"
// @Success      200 {object}  MessageResponse
// @Failure      403 {object}  ErrorResponse "Admin access required"
// @Failure      404 {object}  ErrorResponse "Game not found"
// @Router       /library/admin/games/{id} [delete]
func (h *Handler) AdminDeleteGame(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	game, err := h.games.AdminDelete(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Game '" + game.Title + "' deleted"})
}

// endregion
