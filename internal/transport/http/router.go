package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/blog_platform/internal/handlers"
	adminhdl "github.com/Skotchmaster/blog_platform/internal/handlers/admin"
	authhdl "github.com/Skotchmaster/blog_platform/internal/handlers/auth"
	notifhdl "github.com/Skotchmaster/blog_platform/internal/handlers/notification"
	authmw "github.com/Skotchmaster/blog_platform/internal/middleware/auth"
	"github.com/Skotchmaster/blog_platform/internal/realtime"
)

type Deps struct {
	Auth                *authmw.Middleware
	Hub                 *realtime.Hub
	AuthHandler         *authhdl.AuthHandler
	PostHandler         *handlers.PostHandler
	CommentHandler      *handlers.CommentHandler
	CategoryHandler     *handlers.CategoryHandler
	SearchHandler       *handlers.SearchHandler
	NotificationHandler *notifhdl.NotificationHandler
	AdminHandler        *adminhdl.AdminHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/refresh", d.AuthHandler.Refresh)

	v1.GET("/posts", d.PostHandler.ListPosts)
	v1.GET("/posts/:id", d.PostHandler.GetPost)
	v1.GET("/posts/:id/comments", d.CommentHandler.ListComments)
	v1.GET("/categories", d.CategoryHandler.ListCategories)
	v1.GET("/search", d.SearchHandler.Search)

	authed := v1.Group("", d.Auth.RequireLogin)

	authed.POST("/logout", d.AuthHandler.Logout)
	authed.GET("/me", d.AuthHandler.Me)

	authed.POST("/posts", d.PostHandler.CreatePost)
	authed.PATCH("/posts/:id", d.PostHandler.UpdatePost)
	authed.DELETE("/posts/:id", d.PostHandler.DeletePost)
	authed.POST("/posts/:id/like", d.PostHandler.ToggleLike)
	authed.POST("/posts/:id/comments", d.CommentHandler.CreateComment)
	authed.DELETE("/comments/:id", d.CommentHandler.DeleteComment)
	authed.POST("/comments/:id/like", d.CommentHandler.ToggleCommentLike)

	authed.GET("/notifications", d.NotificationHandler.List)
	authed.PUT("/notifications/read_all", d.NotificationHandler.MarkAllRead)
	authed.PUT("/notifications/:id/read", d.NotificationHandler.MarkRead)
	authed.DELETE("/notifications/:id", d.NotificationHandler.Delete)

	authed.GET("/ws", func(c echo.Context) error {
		return realtime.ServeWS(d.Hub, c, authmw.UserID(c))
	})

	admin := v1.Group("/admin", d.Auth.RequireLogin, d.Auth.RequireRole("admin"))

	admin.GET("/users", d.AdminHandler.ListUsers)
	admin.PUT("/users/:id/lock", d.AdminHandler.SetLock)
	admin.PUT("/users/:id/role", d.AdminHandler.SetRole)
	admin.DELETE("/users/:id", d.AdminHandler.DeleteUser)
	admin.POST("/categories", d.CategoryHandler.CreateCategory)
	admin.DELETE("/categories/:id", d.CategoryHandler.DeleteCategory)
}
