package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"indieforge/backend/internal/service"
)

// region --- DTOs ---

// RegisterRequest defines the structure for user registration.
// Role flags are accepted and ignored; every new account is a plain user.
type RegisterRequest struct {
	Username    string        `json:"username" binding:"required" example:"indiedev"`
	Email       string        `json:"email" binding:"required" example:"dev@example.com"`
	Password    string        `json:"password" binding:"required" example:"password123"`
	BirthDate   *service.Date `json:"birth_date" swaggertype:"string" example:"1990-04-12"`
	IsDeveloper bool          `json:"is_developer" example:"false"`
	IsAdmin     bool          `json:"is_admin" example:"false"`
}

// LoginRequest accepts either a JSON body or form fields.
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required" example:"indiedev"`
	Password string `json:"password" form:"password" binding:"required" example:"password123"`
}

// endregion

// region --- Auth Handlers ---

// Register godoc
// @Summary      Register a new user
// @Description  Creates a plain user account. Requested role flags are ignored.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterRequest true "Registration Info"
// @Success      200  {object}  UserResponse
// @Failure      400  {object}  ErrorResponse "Invalid input or username/email already registered"
// @Failure      429  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /register [post]
func (h *Handler) Register(c *gin.Context) {
	var input RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Username:    input.Username,
		Email:       input.Email,
		Password:    input.Password,
		BirthDate:   input.BirthDate,
		IsDeveloper: input.IsDeveloper,
		IsAdmin:     input.IsAdmin,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(*user))
}

// Login godoc
// @Summary      Log in a user
// @Description  Authenticates with username and password (JSON or form) and returns a bearer token.
// @Tags         auth
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        input body LoginRequest true "Login Info"
// @Success      200  {object}  TokenResponse
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Incorrect username or password"
// @Failure      403  {object}  ErrorResponse "Inactive user"
// @Failure      429  {object}  ErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBind(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.GenerateToken(user.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokens.TTL().Seconds()),
		User:        newUserResponse(*user),
	})
}

// endregion
