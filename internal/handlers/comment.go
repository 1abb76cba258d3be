package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_platform/internal/events"
	"github.com/Skotchmaster/blog_platform/internal/logging"
	authmw "github.com/Skotchmaster/blog_platform/internal/middleware/auth"
	"github.com/Skotchmaster/blog_platform/internal/models"
	"github.com/Skotchmaster/blog_platform/internal/notify"
)

type CommentHandler struct {
	DB            *gorm.DB
	Producer      *events.Producer
	Notifications *notify.Service
}

func (h *CommentHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicPostEvents, fmt.Sprint(event["post_id"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Warn("kafka_publish_failed", "error", err)
	}
}

// CreateComment stores the comment and notifies the post author. The
// notification is persisted first and pushed after, commenting on your own
// post stays silent.
func (h *CommentHandler) CreateComment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "comment_create")
	userID := authmw.UserID(c)

	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "body is required")
	}

	var post models.Post
	if err := h.DB.WithContext(ctx).First(&post, postID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: userID,
		Body:     req.Body,
	}
	if err := h.DB.WithContext(ctx).Create(&comment).Error; err != nil {
		l.Error("comment_create_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	actor, err := fetchUser(ctx, h.DB, userID)
	if err != nil {
		l.Warn("comment_actor_lookup_failed", "user_id", userID, "error", err)
	} else {
		_, err := h.Notifications.Create(ctx, post.AuthorID, userID,
			notify.TypeComment,
			fmt.Sprintf("%s commented on your post %q", actor.Username, post.Title),
			fmt.Sprintf("/posts/%d", post.ID),
			map[string]interface{}{
				"actor_id":   userID,
				"post_id":    post.ID,
				"comment_id": comment.ID,
			},
		)
		if err != nil {
			l.Warn("comment_notification_failed", "error", err)
		}
	}

	h.publish(c, map[string]interface{}{
		"type":       "comment_created",
		"post_id":    post.ID,
		"comment_id": comment.ID,
		"author_id":  userID,
	})

	return c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) ListComments(c echo.Context) error {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var comments []models.Comment
	if err := h.DB.WithContext(c.Request().Context()).
		Where("post_id = ?", postID).
		Order("id ASC").
		Find(&comments).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, comments)
}

func (h *CommentHandler) DeleteComment(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var comment models.Comment
	if err := h.DB.WithContext(ctx).First(&comment, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "comment not found")
	}
	if !canEdit(c, comment.AuthorID) {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}

	if err := h.DB.WithContext(ctx).Where("comment_id = ?", comment.ID).Delete(&models.CommentLike{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.WithContext(ctx).Delete(&comment).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]interface{}{
		"type":       "comment_deleted",
		"post_id":    comment.PostID,
		"comment_id": comment.ID,
	})

	return c.NoContent(http.StatusNoContent)
}
