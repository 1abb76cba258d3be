package admin

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_platform/internal/logging"
	"github.com/Skotchmaster/blog_platform/internal/models"
	"github.com/Skotchmaster/blog_platform/internal/token"
	"github.com/Skotchmaster/blog_platform/internal/util"
)

// AdminHandler is the user administration surface. Every route runs behind
// RequireLogin + RequireRole("admin").
type AdminHandler struct {
	DB     *gorm.DB
	Tokens *token.Service
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var users []models.User
	if err := h.DB.WithContext(ctx).Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"data": users, "total": total})
}

// SetLock locks or unlocks an account. Locking also revokes the user's
// refresh tokens, so only the already-issued access tokens remain usable
// until they run out.
func (h *AdminHandler) SetLock(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_lock")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Locked bool `json:"locked"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	user.IsLocked = req.Locked
	if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if req.Locked {
		if err := h.Tokens.RevokeAll(ctx, user.ID); err != nil {
			l.Error("admin_lock_revoke_failed", "user_id", user.ID, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	l.Info("admin_lock_changed", "user_id", user.ID, "locked", req.Locked)
	return c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) SetRole(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	switch req.Role {
	case "user", "editor", "admin":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	user.Role = req.Role
	if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes the account together with its sessions and
// notifications. Refresh tokens go first, so no new access tokens can be
// minted for the deleted account.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_delete_user")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	if err := h.Tokens.RevokeAll(ctx, user.ID); err != nil {
		l.Error("admin_delete_revoke_failed", "user_id", user.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.WithContext(ctx).Where("user_id = ?", user.ID).Delete(&models.Notification{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.WithContext(ctx).Delete(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("admin_user_deleted", "user_id", user.ID)
	return c.NoContent(http.StatusNoContent)
}
