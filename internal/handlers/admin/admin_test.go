package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_platform/internal/models"
	"github.com/Skotchmaster/blog_platform/internal/token"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.Notification{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newHandler(t *testing.T) (*AdminHandler, *token.Service) {
	db := initTestDB(t)
	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
	return &AdminHandler{DB: db, Tokens: tokens}, tokens
}

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	user := models.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Role: "user"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func newContext(t *testing.T, method, path string, payload interface{}) (*httptest.ResponseRecorder, echo.Context) {
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

func TestListUsers(t *testing.T) {
	h, _ := newHandler(t)

	for i := 0; i < 3; i++ {
		seedUser(t, h.DB, fmt.Sprintf("user%d", i))
	}

	rec, c := newContext(t, http.MethodGet, "/admin/users", nil)
	require.NoError(t, h.ListUsers(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data  []models.User `json:"data"`
		Total int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	require.EqualValues(t, 3, resp.Total)
	// the hash never leaves the server
	require.NotContains(t, rec.Body.String(), "password_hash")
}

func TestSetLockRevokesSessions(t *testing.T) {
	h, tokens := newHandler(t)
	user := seedUser(t, h.DB, "victim")

	_, refresh, err := tokens.IssuePair(t.Context(), user.ID, user.Role)
	require.NoError(t, err)

	rec, c := newContext(t, http.MethodPut, "/admin/users/1/lock", map[string]bool{"locked": true})
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(user.ID))
	require.NoError(t, h.SetLock(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.User
	require.NoError(t, h.DB.First(&updated, user.ID).Error)
	require.True(t, updated.IsLocked)

	_, err = tokens.ValidateRefresh(t.Context(), refresh)
	require.ErrorIs(t, err, token.ErrRefreshInvalid)
}

func TestSetLockUnlockKeepsSessions(t *testing.T) {
	h, tokens := newHandler(t)
	user := seedUser(t, h.DB, "restored")
	user.IsLocked = true
	require.NoError(t, h.DB.Save(&user).Error)

	_, refresh, err := tokens.IssuePair(t.Context(), user.ID, user.Role)
	require.NoError(t, err)

	rec, c := newContext(t, http.MethodPut, "/admin/users/1/lock", map[string]bool{"locked": false})
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(user.ID))
	require.NoError(t, h.SetLock(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.User
	require.NoError(t, h.DB.First(&updated, user.ID).Error)
	require.False(t, updated.IsLocked)

	_, err = tokens.ValidateRefresh(t.Context(), refresh)
	require.NoError(t, err)
}

func TestSetRole(t *testing.T) {
	h, _ := newHandler(t)
	user := seedUser(t, h.DB, "promotee")

	rec, c := newContext(t, http.MethodPut, "/admin/users/1/role", map[string]string{"role": "editor"})
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(user.ID))
	require.NoError(t, h.SetRole(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.User
	require.NoError(t, h.DB.First(&updated, user.ID).Error)
	require.Equal(t, "editor", updated.Role)

	_, c = newContext(t, http.MethodPut, "/admin/users/1/role", map[string]string{"role": "superuser"})
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(user.ID))
	err := h.SetRole(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestDeleteUser(t *testing.T) {
	h, tokens := newHandler(t)
	user := seedUser(t, h.DB, "goner")
	actor := seedUser(t, h.DB, "actor")

	_, refresh, err := tokens.IssuePair(t.Context(), user.ID, user.Role)
	require.NoError(t, err)
	require.NoError(t, h.DB.Create(&models.Notification{
		UserID: user.ID, ActorID: actor.ID, Type: "comment", Message: "m",
	}).Error)

	rec, c := newContext(t, http.MethodDelete, "/admin/users/1", nil)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(user.ID))
	require.NoError(t, h.DeleteUser(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, h.DB.Model(&models.User{}).Where("id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, h.DB.Model(&models.Notification{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)

	_, err = tokens.ValidateRefresh(t.Context(), refresh)
	require.ErrorIs(t, err, token.ErrRefreshInvalid)

	_, c = newContext(t, http.MethodDelete, "/admin/users/1", nil)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(user.ID))
	err = h.DeleteUser(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, he.Code)
}
