package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indieforge/backend/internal/apperr"
	"indieforge/backend/internal/models"
	"indieforge/backend/internal/testutil"
	"indieforge/backend/pkg/optional"
)

func TestRegisterIgnoresRequestedRoles(t *testing.T) {
	f := newFixture(t)

	user, err := f.users.Register(context.Background(), RegisterInput{
		Username:    "mallory",
		Email:       "mallory@example.com",
		Password:    "password123",
		IsDeveloper: true,
		IsAdmin:     true,
	})
	require.NoError(t, err)
	assert.False(t, user.IsAdmin)
	assert.False(t, user.IsDeveloper)
	assert.True(t, user.IsActive)

	var stored models.User
	require.NoError(t, f.db.First(&stored, user.ID).Error)
	assert.False(t, stored.IsAdmin)
	assert.NotEqual(t, "password123", stored.PasswordHash)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = f.users.Register(ctx, RegisterInput{Username: "alice2", Email: "alice@example.com", Password: "password123"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.users.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "password123"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	f.users.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	future := NewDate(2030, 1, 1)
	toddler := NewDate(2022, 1, 1)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "short username", in: RegisterInput{Username: "ab", Email: "ab@example.com", Password: "password123"}},
		{name: "bad email", in: RegisterInput{Username: "abc", Email: "not-an-email", Password: "password123"}},
		{name: "short password", in: RegisterInput{Username: "abc", Email: "abc@example.com", Password: "short"}},
		{name: "future birth date", in: RegisterInput{Username: "abc", Email: "abc@example.com", Password: "password123", BirthDate: &future}},
		{name: "too young", in: RegisterInput{Username: "abc", Email: "abc@example.com", Password: "password123", BirthDate: &toddler}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "password123"})
	require.NoError(t, err)

	got, err := f.users.Authenticate(ctx, "bob", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.users.Authenticate(ctx, "bob", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = f.users.Authenticate(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)
	_, err = f.users.Authenticate(ctx, "bob", "password123")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUpdateProfilePartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice", false, false)
	testutil.CreateUser(t, f.db, "bob", false, false)

	t.Run("unchanged username is not a conflict", func(t *testing.T) {
		got, err := f.users.UpdateProfile(ctx, alice, ProfileUpdate{Username: optional.Of("alice")})
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("another user's email conflicts", func(t *testing.T) {
		_, err := f.users.UpdateProfile(ctx, alice, ProfileUpdate{Email: optional.Of("bob@example.com")})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("absent fields are untouched", func(t *testing.T) {
		got, err := f.users.UpdateProfile(ctx, alice, ProfileUpdate{AvatarURL: optional.Of("https://cdn.example.com/a.png")})
		require.NoError(t, err)
		require.NotNil(t, got.AvatarURL)
		assert.Equal(t, "https://cdn.example.com/a.png", *got.AvatarURL)
		assert.Equal(t, "alice@example.com", got.Email)
	})

	t.Run("null avatar clears it", func(t *testing.T) {
		got, err := f.users.UpdateProfile(ctx, alice, ProfileUpdate{AvatarURL: optional.Null[string]()})
		require.NoError(t, err)
		assert.Nil(t, got.AvatarURL)
	})

	t.Run("null username is rejected", func(t *testing.T) {
		_, err := f.users.UpdateProfile(ctx, alice, ProfileUpdate{Username: optional.Null[string]()})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("role flags are ignored", func(t *testing.T) {
		got, err := f.users.UpdateProfile(ctx, alice, ProfileUpdate{
			IsDeveloper: optional.Of(true),
			IsAdmin:     optional.Of(true),
		})
		require.NoError(t, err)
		assert.False(t, got.IsDeveloper)
		assert.False(t, got.IsAdmin)
	})
}

func TestChangeRoleIgnoresAdminFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, "root", false, true)
	target := testutil.CreateUser(t, f.db, "carol", false, false)

	got, err := f.users.ChangeRole(ctx, admin, target.ID, RoleUpdate{IsAdmin: optional.Of(true)})
	require.NoError(t, err)
	assert.False(t, got.IsAdmin)
	assert.False(t, got.IsDeveloper)

	got, err = f.users.ChangeRole(ctx, admin, target.ID, RoleUpdate{
		IsDeveloper: optional.Of(true),
		IsAdmin:     optional.Of(true),
	})
	require.NoError(t, err)
	assert.True(t, got.IsDeveloper)
	assert.False(t, got.IsAdmin)
}

func TestChangeRoleRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dev := testutil.CreateUser(t, f.db, "dave", true, false)
	target := testutil.CreateUser(t, f.db, "carol", false, false)

	_, err := f.users.ChangeRole(ctx, dev, target.ID, RoleUpdate{IsDeveloper: optional.Of(true)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	admin := testutil.CreateUser(t, f.db, "root", false, true)
	_, err = f.users.ChangeRole(ctx, admin, 9999, RoleUpdate{IsDeveloper: optional.Of(true)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListUsersPaginates(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, "root", false, true)
	for _, name := range []string{"u1", "u2", "u3", "u4"} {
		testutil.CreateUser(t, f.db, name, false, false)
	}

	users, total, err := f.users.ListUsers(context.Background(), admin, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, users, 2)
	assert.Equal(t, "u2", users[0].Username)

	plain := users[0]
	_, _, err = f.users.ListUsers(context.Background(), &plain, 1, 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
