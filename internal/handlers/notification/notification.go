package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_platform/internal/logging"
	authmw "github.com/Skotchmaster/blog_platform/internal/middleware/auth"
	"github.com/Skotchmaster/blog_platform/internal/notify"
)

// NotificationHandler is the REST surface over the notification store. All
// routes run behind RequireLogin and act only on the caller's rows; a
// foreign id answers 404 exactly like a missing one.
type NotificationHandler struct {
	Service *notify.Service
}

func (h *NotificationHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	userID := authmw.UserID(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	views, err := h.Service.ListForUser(ctx, userID, limit)
	if err != nil {
		logging.FromContext(ctx).Error("notification_list_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	unread, err := h.Service.CountUnread(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("notification_unread_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"notifications": views,
		"unread":        unread,
	})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.Service.MarkRead(c.Request().Context(), uint(id), authmw.UserID(c)); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	if err := h.Service.MarkAllRead(c.Request().Context(), authmw.UserID(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "all marked as read"})
}

func (h *NotificationHandler) Delete(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.Service.Delete(c.Request().Context(), uint(id), authmw.UserID(c)); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.NoContent(http.StatusNoContent)
}
