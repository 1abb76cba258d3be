package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_platform/internal/logging"
	"github.com/Skotchmaster/blog_platform/internal/models"
	"github.com/Skotchmaster/blog_platform/internal/token"
)

type Middleware struct {
	DB     *gorm.DB
	Tokens *token.Service
}

// RequireLogin verifies the bearer access token and resolves the caller's
// identity on every protected request. One read, no writes. The failure
// modes stay distinct on the wire: an expired token answers token_expired
// so the client refreshes, everything else means re-authenticate.
func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context())

		claims, err := m.Tokens.ParseAccess(bearerToken(c))
		if err != nil {
			switch {
			case errors.Is(err, token.ErrTokenMissing):
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			case errors.Is(err, token.ErrTokenExpired):
				return echo.NewHTTPError(http.StatusUnauthorized, "token_expired")
			default:
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid_token")
			}
		}

		var user models.User
		if err := m.DB.WithContext(c.Request().Context()).First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// deleted user, token is as good as revoked
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			l.Error("auth_lookup_failed", "user_id", claims.UserID, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}

		if user.IsLocked {
			return echo.NewHTTPError(http.StatusForbidden, "account_locked")
		}

		c.Set("userID", user.ID)
		c.Set("role", user.Role)
		return next(c)
	}
}

// RequireRole gates a route to the given roles. Must run after RequireLogin.
func (m *Middleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := Role(c)
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "forbidden")
		}
	}
}

func UserID(c echo.Context) uint {
	if id, ok := c.Get("userID").(uint); ok {
		return id
	}
	return 0
}

func Role(c echo.Context) string {
	if role, ok := c.Get("role").(string); ok {
		return role
	}
	return ""
}

// bearerToken pulls the access token from the Authorization header. Browser
// websocket clients cannot set headers, so a query param fallback is allowed
// on the upgrade request only; ordinary request URLs never carry tokens.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if strings.EqualFold(c.Request().Header.Get("Upgrade"), "websocket") {
		return c.QueryParam("token")
	}
	return ""
}
