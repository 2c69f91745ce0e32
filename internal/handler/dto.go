package handler

import (
	"time"

	"indieforge/backend/internal/models"
)

// UserResponse is the public shape of a user record.
type UserResponse struct {
	ID          uint      `json:"id" example:"1"`
	Username    string    `json:"username" example:"indiedev"`
	Email       string    `json:"email" example:"dev@example.com"`
	IsActive    bool      `json:"is_active" example:"true"`
	IsDeveloper bool      `json:"is_developer" example:"false"`
	IsAdmin     bool      `json:"is_admin" example:"false"`
	AvatarURL   *string   `json:"avatar_url"`
	BirthDate   *string   `json:"birth_date" example:"1990-04-12"`
	RoleDisplay string    `json:"role_display" example:"User"`
	CreatedAt   time.Time `json:"created_at"`
}

func newUserResponse(u models.User) UserResponse {
	var birth *string
	if u.BirthDate != nil {
		s := u.BirthDate.Format("2006-01-02")
		birth = &s
	}
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsDeveloper: u.IsDeveloper,
		IsAdmin:     u.IsAdmin,
		AvatarURL:   u.AvatarURL,
		BirthDate:   birth,
		RoleDisplay: u.RoleDisplay(),
		CreatedAt:   u.CreatedAt,
	}
}

// GameResponse is the public shape of a game.
type GameResponse struct {
	ID            uint       `json:"id" example:"1"`
	Title         string     `json:"title" example:"Test Game"`
	Description   string     `json:"description"`
	Genre         *string    `json:"genre" example:"Indie"`
	Version       string     `json:"version" example:"1.0.0"`
	Price         float64    `json:"price" example:"0"`
	IsFree        bool       `json:"is_free" example:"true"`
	USKRating     string     `json:"usk_rating" example:"USK 6"`
	DownloadURL   string     `json:"download_url"`
	ImageURL      string     `json:"image_url"`
	Tags          string     `json:"tags"`
	Platform      string     `json:"platform" example:"Windows"`
	IsPublished   bool       `json:"is_published" example:"false"`
	DeveloperID   uint       `json:"developer_id" example:"1"`
	DeveloperName string     `json:"developer_name" example:"indiedev"`
	ReleaseDate   *time.Time `json:"release_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newGameResponse(g models.Game) GameResponse {
	developer := g.Developer.Username
	if developer == "" {
		developer = "Unknown"
	}
	return GameResponse{
		ID:            g.ID,
		Title:         g.Title,
		Description:   g.Description,
		Genre:         g.Genre,
		Version:       g.Version,
		Price:         g.Price,
		IsFree:        g.IsFree,
		USKRating:     g.USKRating,
		DownloadURL:   g.DownloadURL,
		ImageURL:      g.ImageURL,
		Tags:          g.Tags,
		Platform:      g.Platform,
		IsPublished:   g.IsPublished,
		DeveloperID:   g.DeveloperID,
		DeveloperName: developer,
		ReleaseDate:   g.ReleaseDate,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	}
}

// AccessTokenHeader carries a reissued token after a username change.
const AccessTokenHeader = "X-Access-Token"

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type" example:"bearer"`
	ExpiresIn   int64        `json:"expires_in" example:"1800"`
	User        UserResponse `json:"user"`
}
