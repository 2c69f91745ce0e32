package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"indieforge/backend/internal/auth"
	"indieforge/backend/internal/export"
	"indieforge/backend/internal/logging"
	"indieforge/backend/internal/metrics"
	"indieforge/backend/internal/models"
	"indieforge/backend/internal/service"
	"indieforge/backend/internal/storage"
	"indieforge/backend/internal/testutil"
	"indieforge/backend/pkg/jwt"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	tokens *jwt.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	log := logging.Discard()
	m := metrics.New()
	store := storage.NewFsService(afero.NewMemMapFs())
	tokens := jwt.NewManager("test-secret", time.Hour)

	h := New(Deps{
		DB:             db,
		Users:          service.NewUserService(db, &auth.BcryptHasher{Cost: bcrypt.MinCost}, log),
		Games:          service.NewGameService(db, log, m),
		Wishlist:       service.NewWishlistService(db, log, m),
		Exports:        export.NewService(db, store, "exports", log, m),
		Tokens:         tokens,
		Store:          store,
		Log:            log,
		AvatarDir:      "avatars",
		MaxAvatarBytes: 1 << 20,
	})

	router := gin.New()
	h.RegisterRoutes(router, nil)
	return &testServer{router: router, db: db, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := s.tokens.GenerateToken(u.Username)
	require.NoError(t, err)
	return tok
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestDeveloperOnboardingScenario(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateUser(t, s.db, "root", false, true)
	fan := testutil.CreateUser(t, s.db, "fan", false, false)

	rec := s.do(t, http.MethodPost, "/register", map[string]any{
		"username": "usera",
		"email":    "a@example.com",
		"password": "password123",
		"is_admin": true,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	userA := decode[UserResponse](t, rec)
	assert.False(t, userA.IsDeveloper)
	assert.False(t, userA.IsAdmin)

	rec = s.do(t, http.MethodPost, "/login", map[string]string{"username": "usera", "password": "password123"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[TokenResponse](t, rec)
	assert.Equal(t, "bearer", login.TokenType)
	tokenA := login.AccessToken

	game := map[string]string{"title": "Test Game", "description": "A long enough description."}
	rec = s.do(t, http.MethodPost, "/games/", game, tokenA)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/admin/users/"+itoa(userA.ID)+"/role", map[string]bool{"is_developer": true}, s.token(t, admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[UserResponse](t, rec).IsDeveloper)

	rec = s.do(t, http.MethodPost, "/games/", game, tokenA)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[GameResponse](t, rec)
	assert.False(t, created.IsPublished)
	assert.Equal(t, "usera", created.DeveloperName)

	rec = s.do(t, http.MethodPost, "/library/developer/games/"+itoa(created.ID)+"/publish", nil, tokenA)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[GameResponse](t, rec).IsPublished)

	fanToken := s.token(t, fan)
	rec = s.do(t, http.MethodPost, "/wishlist/"+itoa(created.ID), nil, fanToken)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/wishlist/"+itoa(created.ID), nil, fanToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Game already in wishlist"}`, rec.Body.String())
}

func TestRegisterDuplicateIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateUser(t, s.db, "taken", false, false)

	rec := s.do(t, http.MethodPost, "/register", map[string]string{
		"username": "taken",
		"email":    "fresh@example.com",
		"password": "password123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/register", map[string]string{"username": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBindingErrorsUseStableMessages(t *testing.T) {
	s := newTestServer(t)
	dev := testutil.CreateUser(t, s.db, "dev", true, false)
	token := s.token(t, dev)

	rec := s.do(t, http.MethodPost, "/register", map[string]string{"username": "newbie"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Field 'email' is required"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/games/", map[string]any{"title": "Typed Game", "price": "cheap"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Field 'price' has the wrong type"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "GameInput")

	req := httptest.NewRequest(http.MethodPost, "/games/", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Malformed request body"}`, rec.Body.String())
}

func TestSnakeCase(t *testing.T) {
	for in, want := range map[string]string{
		"Email":     "email",
		"BirthDate": "birth_date",
		"USKRating": "usk_rating",
		"ID":        "id",
	} {
		assert.Equal(t, want, snakeCase(in), in)
	}
}

func TestLoginAcceptsForm(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/register", map[string]string{
		"username": "formuser",
		"email":    "form@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	form := url.Values{"username": {"formuser"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token := decode[TokenResponse](t, rec).AccessToken
	rec = s.do(t, http.MethodGet, "/users/me/", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "formuser", decode[UserResponse](t, rec).Username)

	rec = s.do(t, http.MethodPost, "/login", map[string]string{"username": "formuser", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/users/me/", "/wishlist/", "/wishlist/stats", "/admin/users/"} {
		rec := s.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := s.do(t, http.MethodGet, "/users/me/", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfileConflict(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice", false, false)
	testutil.CreateUser(t, s.db, "bob", false, false)
	token := s.token(t, alice)

	rec := s.do(t, http.MethodPut, "/users/me/", map[string]any{"username": "alice"}, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/users/me/", map[string]any{"username": "bob"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/users/me/", map[string]any{"avatar_url": "https://cdn.example.com/a.png"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, decode[UserResponse](t, rec).AvatarURL)

	rec = s.do(t, http.MethodPut, "/users/me/", map[string]any{"avatar_url": nil, "is_admin": true}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[UserResponse](t, rec)
	assert.Nil(t, got.AvatarURL)
	assert.False(t, got.IsAdmin)
	assert.Equal(t, "alice", got.Username)
}

func TestRenameReissuesToken(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.db, "alice", false, false)
	oldToken := s.token(t, alice)

	rec := s.do(t, http.MethodPut, "/users/me/", map[string]any{"email": "alice@example.org"}, oldToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(AccessTokenHeader))

	rec = s.do(t, http.MethodPut, "/users/me/", map[string]any{"username": "alicia"}, oldToken)
	require.Equal(t, http.StatusOK, rec.Code)
	newToken := rec.Header().Get(AccessTokenHeader)
	require.NotEmpty(t, newToken)

	rec = s.do(t, http.MethodGet, "/users/me/", nil, oldToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/me/", nil, newToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alicia", decode[UserResponse](t, rec).Username)
}

func TestDeleteGameRoutes(t *testing.T) {
	s := newTestServer(t)
	owner := testutil.CreateUser(t, s.db, "owner", true, false)
	other := testutil.CreateUser(t, s.db, "other", true, false)
	admin := testutil.CreateUser(t, s.db, "root", false, true)
	first := testutil.CreateGame(t, s.db, owner, "First", true, 0)
	second := testutil.CreateGame(t, s.db, owner, "Second", true, 0)

	rec := s.do(t, http.MethodDelete, "/games/"+itoa(first.ID), nil, s.token(t, other))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/games/"+itoa(first.ID), nil, s.token(t, owner))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/games/"+itoa(first.ID), nil, s.token(t, owner))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/library/admin/games/"+itoa(second.ID), nil, s.token(t, owner))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/library/admin/games/"+itoa(second.ID), nil, s.token(t, admin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLibraryRoutes(t *testing.T) {
	s := newTestServer(t)
	dev := testutil.CreateUser(t, s.db, "dev", true, false)
	published := testutil.CreateGame(t, s.db, dev, "Out Now", true, 0)
	draft := testutil.CreateGame(t, s.db, dev, "Coming Soon", false, 0)

	rec := s.do(t, http.MethodGet, "/library/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]GameResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, published.ID, list[0].ID)

	rec = s.do(t, http.MethodGet, "/library/"+itoa(draft.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/library/"+itoa(draft.ID), nil, s.token(t, dev))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/library/stats/overview", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[service.LibraryStats](t, rec).TotalPublishedGames)

	rec = s.do(t, http.MethodGet, "/library/developer/games?include_drafts=false", nil, s.token(t, dev))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]GameResponse](t, rec), 1)

	rec = s.do(t, http.MethodPut, "/library/developer/games/"+itoa(draft.ID), map[string]any{"price": 2.5, "is_free": false}, s.token(t, dev))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 2.5, decode[GameResponse](t, rec).Price, 0.001)

	rec = s.do(t, http.MethodGet, "/library/developer/stats", nil, s.token(t, dev))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.DeveloperStats{PublishedGames: 1, DraftGames: 1, TotalGames: 2}, decode[service.DeveloperStats](t, rec))

	rec = s.do(t, http.MethodGet, "/library/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWishlistRoutes(t *testing.T) {
	s := newTestServer(t)
	dev := testutil.CreateUser(t, s.db, "dev", true, false)
	fan := testutil.CreateUser(t, s.db, "fan", false, false)
	game := testutil.CreateGame(t, s.db, dev, "Paid Game", true, 9.99)
	draft := testutil.CreateGame(t, s.db, dev, "Draft Game", false, 0)
	token := s.token(t, fan)

	rec := s.do(t, http.MethodDelete, "/wishlist/"+itoa(game.ID), nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/wishlist/"+itoa(draft.ID), nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/wishlist/"+itoa(game.ID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/wishlist/", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]service.WishlistItem](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "dev", items[0].DeveloperName)

	rec = s.do(t, http.MethodGet, "/wishlist/check/"+itoa(draft.ID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[service.WishlistCheck](t, rec).InWishlist)

	rec = s.do(t, http.MethodGet, "/wishlist/stats", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.WishlistStats{TotalGames: 1, PaidGames: 1, TotalValue: 9.99}, decode[service.WishlistStats](t, rec))

	rec = s.do(t, http.MethodDelete, "/wishlist/"+itoa(game.ID), nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminUsersPagination(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateUser(t, s.db, "root", false, true)
	for _, name := range []string{"aaa", "bbb", "ccc"} {
		testutil.CreateUser(t, s.db, name, false, false)
	}

	rec := s.do(t, http.MethodGet, "/admin/users/?page=2&limit=3", nil, s.token(t, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[PaginatedResponse[UserResponse]](t, rec)
	assert.Equal(t, int64(4), page.Meta.TotalItems)
	assert.Equal(t, 2, page.Meta.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "ccc", page.Data[0].Username)

	rec = s.do(t, http.MethodGet, "/admin/users/", nil, s.token(t, page.Data[0].asUser()))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := testutil.CreateUser(t, s.db, "root", false, true)
	dev := testutil.CreateUser(t, s.db, "dev", true, false)
	token := s.token(t, admin)

	rec := s.do(t, http.MethodPost, "/admin/export/users/json", nil, s.token(t, dev))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/export/users/csv", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[export.Result](t, rec)

	rec = s.do(t, http.MethodGet, res.DownloadURL, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "id,username,email"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), res.Filename)

	rec = s.do(t, http.MethodPost, "/admin/export/users/by-role/wizard", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/export/download/..%5Csecret.json", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/export/list", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[ExportListResponse](t, rec).TotalCount)
}

func TestUploadAvatar(t *testing.T) {
	s := newTestServer(t)
	user := testutil.CreateUser(t, s.db, "painter", false, false)
	token := s.token(t, user)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	upload := func(content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile("file", "avatar.bin")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/upload-avatar/", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload([]byte("definitely not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(img.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[UserResponse](t, rec)
	require.NotNil(t, got.AvatarURL)
	assert.True(t, strings.HasSuffix(*got.AvatarURL, ".png"))

	rec = s.do(t, http.MethodGet, *got.AvatarURL, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, img.Bytes(), rec.Body.Bytes())
}

func TestSystemRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (u UserResponse) asUser() *models.User {
	user := &models.User{Username: u.Username}
	user.ID = u.ID
	return user
}
