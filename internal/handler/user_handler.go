package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"indieforge/backend/internal/apperr"
	"indieforge/backend/internal/auth"
	"indieforge/backend/internal/export"
	"indieforge/backend/internal/service"
	"indieforge/backend/internal/storage"
)

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// region --- DTOs ---

// ProfileUpdateRequest documents the body of PUT /users/me/. Absent keys are
// left untouched; avatar_url and birth_date may be null.
type ProfileUpdateRequest struct {
	Username  *string `json:"username" example:"newname"`
	Email     *string `json:"email" example:"new@example.com"`
	AvatarURL *string `json:"avatar_url"`
	BirthDate *string `json:"birth_date" example:"1990-04-12"`
}

// RoleUpdateRequest documents the body of the admin role endpoint.
// is_admin is accepted and ignored.
type RoleUpdateRequest struct {
	IsDeveloper *bool `json:"is_developer" example:"true"`
	IsAdmin     *bool `json:"is_admin" example:"false"`
}

// PaginatedUserResponse defines the structure for a paginated list of users.
type PaginatedUserResponse struct {
	Data []UserResponse `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// endregion

// region --- User Handlers ---

// GetMe godoc
// @Summary      Get own profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  UserResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Inactive user"
// @Router       /users/me/ [get]
func (h *Handler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, newUserResponse(*auth.CurrentUser(c)))
}

// UpdateMe godoc
// @Summary      Update own profile
// @Description  Partial update; only keys present in the body are applied. Role flags are ignored.
// @Description  Tokens carry the username, so a rename returns a fresh token in X-Access-Token
// @Description  and the previous token stops working.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body ProfileUpdateRequest true "Profile fields"
// @Success      200  {object}  UserResponse
// @Header       200  {string}  X-Access-Token "Reissued bearer token, set only when the username changed"
// @Failure      400  {object}  ErrorResponse "Invalid input or username/email taken"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/me/ [put]
func (h *Handler) UpdateMe(c *gin.Context) {
	var input service.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	actor := auth.CurrentUser(c)
	previous := actor.Username
	user, err := h.users.UpdateProfile(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, err)
		return
	}

	if user.Username != previous {
		token, err := h.tokens.GenerateToken(user.Username)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header(AccessTokenHeader, token)
	}

	c.JSON(http.StatusOK, newUserResponse(*user))
}

// UploadAvatar godoc
// @Summary      Upload an avatar
// @Description  Stores a JPEG, PNG, GIF or WebP image and sets it as the caller's avatar.
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "Avatar image"
// @Success      200  {object}  UserResponse
// @Failure      400  {object}  ErrorResponse "Missing, oversized or unsupported file"
// @Failure      401  {object}  ErrorResponse
// @Router       /upload-avatar/ [post]
func (h *Handler) UploadAvatar(c *gin.Context) {
	user := auth.CurrentUser(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAvatarBytes+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "A file field named 'file' is required"})
		return
	}
	if header.Size > h.maxAvatarBytes {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("File too large (max %d bytes)", h.maxAvatarBytes)})
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		respondError(c, err)
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	ext, ok := avatarExtensions[contentType]
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Only JPEG, PNG, GIF and WebP images are allowed"})
		return
	}

	name := fmt.Sprintf("%d_%s%s", user.ID, uuid.NewString(), ext)
	body := io.MultiReader(bytes.NewReader(head), f)
	if err := h.store.Put(c.Request.Context(), path.Join(h.avatarDir, name), body, contentType); err != nil {
		respondError(c, err)
		return
	}

	updated, err := h.users.SetAvatar(c.Request.Context(), user, "/avatars/"+name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(*updated))
}

// GetAvatar godoc
// @Summary      Fetch an uploaded avatar
// @Tags         users
// @Produce      image/png,image/jpeg,image/gif,image/webp
// @Param        name path string true "Avatar file name"
// @Success      200
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /avatars/{name} [get]
func (h *Handler) GetAvatar(c *gin.Context) {
	name := c.Param("name")
	if err := export.ValidateFilename(name); err != nil {
		respondError(c, err)
		return
	}

	body, info, err := h.store.Open(c.Request.Context(), path.Join(h.avatarDir, name))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(c, apperr.NotFound("Avatar not found"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size, contentType, body, nil)
}

// endregion

// region --- Admin Handlers ---

// ListUsers godoc
// @Summary      List users
// @Description  Paginated list of all users, ordered by id.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page  query     int  false  "Page number" default(1)
// @Param        limit query     int  false  "Items per page" default(20)
// @Success      200   {object}  PaginatedUserResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse "Admin access required"
// @Router       /admin/users/ [get]
func (h *Handler) ListUsers(c *gin.Context) {
	page := intQuery(c, "page", 1, 1, 1<<20)
	limit := intQuery(c, "limit", 20, 1, 100)

	users, total, err := h.users.ListUsers(c.Request.Context(), auth.CurrentUser(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(mapSlice(users, newUserResponse), total, page, limit))
}

// ChangeRole godoc
// @Summary      Change a user's developer flag
// @Description  Only is_developer is applied; is_admin is silently ignored.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "User ID"
// @Param        input body      RoleUpdateRequest  true  "Role flags"
// @Success      200   {object}  UserResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse "Admin access required"
// @Failure      404   {object}  ErrorResponse "User not found"
// @Router       /admin/users/{id}/role [put]
func (h *Handler) ChangeRole(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var input service.RoleUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.ChangeRole(c.Request.Context(), auth.CurrentUser(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(*user))
}

// endregion
