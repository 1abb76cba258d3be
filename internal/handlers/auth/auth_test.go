package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_platform/internal/hash"
	"github.com/Skotchmaster/blog_platform/internal/models"
	"github.com/Skotchmaster/blog_platform/internal/token"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newHandler(t *testing.T) (*AuthHandler, *token.Service) {
	db := initTestDB(t)
	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
	return &AuthHandler{DB: db, Tokens: tokens}, tokens
}

func doJSONRequest(t *testing.T, method, path string, payload interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	e := echo.New()
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestRegister(t *testing.T) {
	h, tokens := newHandler(t)

	rec, c := doJSONRequest(t, http.MethodPost, "/register", map[string]string{
		"username": "test_user",
		"email":    "test_user@example.com",
		"password": "password",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
		User         models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "test_user", resp.User.Username)
	require.Equal(t, "user", resp.User.Role)
	require.NotEmpty(t, resp.User.ID)

	// registration opens a session, the pair must already be usable
	claims, err := tokens.ParseAccess(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID)
	_, err = tokens.ValidateRefresh(c.Request().Context(), resp.RefreshToken)
	require.NoError(t, err)

	_, cDup := doJSONRequest(t, http.MethodPost, "/register", map[string]string{
		"username": "test_user",
		"email":    "other@example.com",
		"password": "password",
	})
	err = h.Register(cDup)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestLogin(t *testing.T) {
	h, tokens := newHandler(t)

	pwHash, err := hash.HashPassword("password")
	require.NoError(t, err)
	user := models.User{Username: "test_user", Email: "test_user@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)

	rec, c := doJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"username": "test_user",
		"password": "password",
	})
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["access_token"])
	require.NotEmpty(t, resp["refresh_token"])

	claims, err := tokens.ParseAccess(resp["access_token"].(string))
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)

	var row models.RefreshToken
	require.NoError(t, h.DB.Where("token = ?", resp["refresh_token"]).First(&row).Error)
	require.Equal(t, user.ID, row.UserID)
	require.WithinDuration(t, time.Now().Add(tokens.RefreshTTL), row.ExpiresAt, time.Minute)
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := newHandler(t)

	pwHash, _ := hash.HashPassword("password")
	user := models.User{Username: "test_user", Email: "test_user@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)

	_, c := doJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"username": "test_user",
		"password": "wrong",
	})
	err := h.Login(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLoginLockedUser(t *testing.T) {
	h, _ := newHandler(t)

	pwHash, _ := hash.HashPassword("password")
	user := models.User{Username: "locked_user", Email: "locked@example.com", PasswordHash: pwHash, Role: "user", IsLocked: true}
	require.NoError(t, h.DB.Create(&user).Error)

	// correct password, still rejected
	_, c := doJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"username": "locked_user",
		"password": "password",
	})
	err := h.Login(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)
	require.Equal(t, "account_locked", he.Message)

	var count int64
	require.NoError(t, h.DB.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count, "locked login must not create a session")
}

func TestRefresh(t *testing.T) {
	h, tokens := newHandler(t)

	pwHash, _ := hash.HashPassword("password")
	user := models.User{Username: "test_user", Email: "test_user@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)

	_, refresh, err := tokens.IssuePair(t.Context(), user.ID, user.Role)
	require.NoError(t, err)

	rec, c := doJSONRequest(t, http.MethodPost, "/refresh", map[string]string{"refresh_token": refresh})
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["access_token"])
	// the refresh token is not rotated, the response carries nothing else
	require.NotContains(t, resp, "refresh_token")

	claims, err := tokens.ParseAccess(resp["access_token"].(string))
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)

	_, cBad := doJSONRequest(t, http.MethodPost, "/refresh", map[string]string{"refresh_token": "garbage"})
	err = h.Refresh(cBad)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestMe(t *testing.T) {
	h, _ := newHandler(t)

	pwHash, _ := hash.HashPassword("password")
	user := models.User{Username: "test_user", Email: "test_user@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&user).Error)

	rec, c := doJSONRequest(t, http.MethodGet, "/me", nil)
	c.Set("userID", user.ID)
	require.NoError(t, h.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "test_user", resp.Username)

	_, c = doJSONRequest(t, http.MethodGet, "/me", nil)
	c.Set("userID", uint(999))
	err := h.Me(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)

	// a storage failure is not an authentication failure
	require.NoError(t, h.DB.Exec("DROP TABLE users").Error)
	_, c = doJSONRequest(t, http.MethodGet, "/me", nil)
	c.Set("userID", user.ID)
	err = h.Me(c)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusInternalServerError, he.Code)
}

func TestLogoutRevokesAllDevices(t *testing.T) {
	h, tokens := newHandler(t)

	pwHash, _ := hash.HashPassword("password")
	userA := models.User{Username: "user_a", Email: "a@example.com", PasswordHash: pwHash, Role: "user"}
	userB := models.User{Username: "user_b", Email: "b@example.com", PasswordHash: pwHash, Role: "user"}
	require.NoError(t, h.DB.Create(&userA).Error)
	require.NoError(t, h.DB.Create(&userB).Error)

	// two devices for A, one for B
	_, refreshA1, err := tokens.IssuePair(t.Context(), userA.ID, userA.Role)
	require.NoError(t, err)
	_, refreshA2, err := tokens.IssuePair(t.Context(), userA.ID, userA.Role)
	require.NoError(t, err)
	_, refreshB, err := tokens.IssuePair(t.Context(), userB.ID, userB.Role)
	require.NoError(t, err)

	rec, c := doJSONRequest(t, http.MethodPost, "/logout", nil)
	c.Set("userID", userA.ID)
	require.NoError(t, h.Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = tokens.ValidateRefresh(t.Context(), refreshA1)
	require.ErrorIs(t, err, token.ErrRefreshInvalid)
	_, err = tokens.ValidateRefresh(t.Context(), refreshA2)
	require.ErrorIs(t, err, token.ErrRefreshInvalid)

	claims, err := tokens.ValidateRefresh(t.Context(), refreshB)
	require.NoError(t, err)
	require.Equal(t, userB.ID, claims.UserID)
}
