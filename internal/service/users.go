package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"indieforge/backend/internal/apperr"
	"indieforge/backend/internal/auth"
	"indieforge/backend/internal/models"
	"indieforge/backend/internal/policy"
	"indieforge/backend/pkg/optional"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 8
	minAge         = 6
	maxAge         = 150
)

// RegisterInput is the data accepted at registration. IsDeveloper and IsAdmin
// are accepted for compatibility and never honoured.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	BirthDate   *Date
	IsDeveloper bool
	IsAdmin     bool
}

// ProfileUpdate carries the fields a user may change on their own profile.
// Role flags are accepted and ignored.
type ProfileUpdate struct {
	Username    optional.Field[string] `json:"username"`
	Email       optional.Field[string] `json:"email"`
	AvatarURL   optional.Field[string] `json:"avatar_url"`
	BirthDate   optional.Field[Date]   `json:"birth_date"`
	IsDeveloper optional.Field[bool]   `json:"is_developer"`
	IsAdmin     optional.Field[bool]   `json:"is_admin"`
}

// RoleUpdate is the body of the admin role endpoint. Only IsDeveloper is applied.
type RoleUpdate struct {
	IsDeveloper optional.Field[bool] `json:"is_developer"`
	IsAdmin     optional.Field[bool] `json:"is_admin"`
}

// UserService handles accounts, profiles and role changes.
type UserService struct {
	db     *gorm.DB
	hasher auth.PasswordHasher
	log    *logrus.Logger
	now    func() time.Time
}

func NewUserService(db *gorm.DB, hasher auth.PasswordHasher, log *logrus.Logger) *UserService {
	return &UserService{db: db, hasher: hasher, log: log, now: time.Now}
}

// Register creates a plain user. Requested role flags are discarded.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := policy.Authorize(nil, policy.ActionRegister, nil); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	var birthDate *time.Time
	if in.BirthDate != nil {
		if err := s.validateBirthDate(in.BirthDate.Time); err != nil {
			return nil, err
		}
		t := in.BirthDate.Time
		birthDate = &t
	}

	db := s.db.WithContext(ctx)
	if taken, err := exists(db.Model(&models.User{}).Where("email = ?", email)); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("Email already registered")
	}
	if taken, err := exists(db.Model(&models.User{}).Where("username = ?", username)); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("Username already registered")
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		IsActive:     true,
		IsDeveloper:  false,
		IsAdmin:      false,
		BirthDate:    birthDate,
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Username or email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if in.IsAdmin || in.IsDeveloper {
		s.log.WithField("username", username).Info("ignored role flags requested at registration")
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": username}).Info("user registered")
	return user, nil
}

// Authenticate verifies credentials and returns the matching active user.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	invalid := apperr.Unauthenticated("Incorrect username or password")

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalid
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, invalid
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("Inactive user")
	}
	return &user, nil
}

// GetByUsername resolves a token subject to a user record.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return loadUser(s.db.WithContext(ctx), id)
}

// UpdateProfile applies a partial update to the actor's own record.
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, in ProfileUpdate) (*models.User, error) {
	if err := policy.Authorize(actor, policy.ActionUpdateProfile, nil); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	current, err := loadUser(db, actor.ID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}

	if in.Username.Present {
		if in.Username.Null {
			return nil, apperr.Validation("Username cannot be null")
		}
		username := strings.TrimSpace(in.Username.Value)
		if err := validateUsername(username); err != nil {
			return nil, err
		}
		if username != current.Username {
			if taken, err := exists(db.Model(&models.User{}).Where("username = ? AND id <> ?", username, current.ID)); err != nil {
				return nil, err
			} else if taken {
				return nil, apperr.Conflict("Username already taken")
			}
			changes["username"] = username
		}
	}

	if in.Email.Present {
		if in.Email.Null {
			return nil, apperr.Validation("Email cannot be null")
		}
		email := strings.TrimSpace(in.Email.Value)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if email != current.Email {
			if taken, err := exists(db.Model(&models.User{}).Where("email = ? AND id <> ?", email, current.ID)); err != nil {
				return nil, err
			} else if taken {
				return nil, apperr.Conflict("Email already taken")
			}
			changes["email"] = email
		}
	}

	if in.AvatarURL.Present {
		if in.AvatarURL.Null || strings.TrimSpace(in.AvatarURL.Value) == "" {
			changes["avatar_url"] = nil
		} else {
			changes["avatar_url"] = strings.TrimSpace(in.AvatarURL.Value)
		}
	}

	if in.BirthDate.Present {
		if in.BirthDate.Null {
			changes["birth_date"] = nil
		} else {
			if err := s.validateBirthDate(in.BirthDate.Value.Time); err != nil {
				return nil, err
			}
			changes["birth_date"] = in.BirthDate.Value.Time
		}
	}

	if in.IsAdmin.Present || in.IsDeveloper.Present {
		s.log.WithField("user_id", current.ID).Info("ignored role flags in profile update")
	}

	if len(changes) > 0 {
		if err := db.Model(current).Updates(changes).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperr.Conflict("Username or email already taken")
			}
			return nil, fmt.Errorf("update user: %w", err)
		}
	}

	return loadUser(db, current.ID)
}

// SetAvatar points the actor's avatar at a stored image.
func (s *UserService) SetAvatar(ctx context.Context, actor *models.User, avatarURL string) (*models.User, error) {
	return s.UpdateProfile(ctx, actor, ProfileUpdate{AvatarURL: optional.Of(avatarURL)})
}

// ListUsers returns one page of users ordered by id, for admins only.
func (s *UserService) ListUsers(ctx context.Context, actor *models.User, page, limit int) ([]models.User, int64, error) {
	if err := policy.Authorize(actor, policy.ActionListUsers, nil); err != nil {
		return nil, 0, err
	}

	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	offset := (page - 1) * limit
	if err := db.Order("id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// ChangeRole lets an admin toggle another user's developer flag.
// A requested is_admin value is ignored; admin elevation happens out of band.
func (s *UserService) ChangeRole(ctx context.Context, actor *models.User, targetID uint, in RoleUpdate) (*models.User, error) {
	if err := policy.Authorize(actor, policy.ActionChangeRole, nil); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	target, err := loadUser(db, targetID)
	if err != nil {
		return nil, err
	}

	if in.IsAdmin.Present {
		s.log.WithFields(logrus.Fields{
			"admin_id":  actor.ID,
			"target_id": target.ID,
		}).Warn("ignored is_admin in role update")
	}

	if in.IsDeveloper.IsSet() && in.IsDeveloper.Value != target.IsDeveloper {
		if err := db.Model(target).Update("is_developer", in.IsDeveloper.Value).Error; err != nil {
			return nil, fmt.Errorf("update role: %w", err)
		}
		s.log.WithFields(logrus.Fields{
			"admin_id":     actor.ID,
			"target_id":    target.ID,
			"is_developer": in.IsDeveloper.Value,
		}).Info("user role changed")
	}

	return loadUser(db, target.ID)
}

func (s *UserService) validateBirthDate(birth time.Time) error {
	today := s.now().UTC()
	if birth.After(today) {
		return apperr.Validation("Birth date cannot be in the future")
	}
	age := ageOn(birth, today)
	if age < minAge {
		return apperr.Validation(fmt.Sprintf("Minimum age is %d years", minAge))
	}
	if age > maxAge {
		return apperr.Validation("Birth date is too far in the past")
	}
	return nil
}

func validateUsername(username string) error {
	if n := len([]rune(username)); n < minUsernameLen || n > maxUsernameLen {
		return apperr.Validation(fmt.Sprintf("Username must be between %d and %d characters", minUsernameLen, maxUsernameLen))
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("Invalid email address")
	}
	return nil
}

func loadUser(db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	err := db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

func exists(query *gorm.DB) (bool, error) {
	var count int64
	if err := query.Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check existence: %w", err)
	}
	return count > 0, nil
}
