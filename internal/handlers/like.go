package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_platform/internal/logging"
	authmw "github.com/Skotchmaster/blog_platform/internal/middleware/auth"
	"github.com/Skotchmaster/blog_platform/internal/models"
	"github.com/Skotchmaster/blog_platform/internal/notify"
)

// ToggleLike likes the post, or removes the like when one already exists.
// Only the liking transition produces a notification; unliking is silent.
func (h *PostHandler) ToggleLike(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "post_like")
	userID := authmw.UserID(c)

	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var post models.Post
	if err := h.DB.WithContext(ctx).First(&post, postID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}

	liked := false
	var existing models.PostLike
	err = h.DB.WithContext(ctx).Where("post_id = ? AND user_id = ?", post.ID, userID).First(&existing).Error
	switch {
	case err == nil:
		if err := h.DB.WithContext(ctx).Delete(&existing).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		like := models.PostLike{PostID: post.ID, UserID: userID}
		if err := h.DB.WithContext(ctx).Create(&like).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		liked = true

		if actor, err := fetchUser(ctx, h.DB, userID); err == nil {
			_, err := h.Notifications.Create(ctx, post.AuthorID, userID,
				notify.TypePostLike,
				fmt.Sprintf("%s liked your post %q", actor.Username, post.Title),
				fmt.Sprintf("/posts/%d", post.ID),
				map[string]interface{}{
					"actor_id": userID,
					"post_id":  post.ID,
				},
			)
			if err != nil {
				l.Warn("like_notification_failed", "error", err)
			}
		}
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var likes int64
	if err := h.DB.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&likes).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]interface{}{
		"type":    "post_like_toggled",
		"post_id": post.ID,
		"user_id": userID,
		"liked":   liked,
	})

	return c.JSON(http.StatusOK, echo.Map{"liked": liked, "likes": likes})
}

// ToggleCommentLike mirrors ToggleLike for comments.
func (h *CommentHandler) ToggleCommentLike(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "comment_like")
	userID := authmw.UserID(c)

	commentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var comment models.Comment
	if err := h.DB.WithContext(ctx).First(&comment, commentID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "comment not found")
	}

	liked := false
	var existing models.CommentLike
	err = h.DB.WithContext(ctx).Where("comment_id = ? AND user_id = ?", comment.ID, userID).First(&existing).Error
	switch {
	case err == nil:
		if err := h.DB.WithContext(ctx).Delete(&existing).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		like := models.CommentLike{CommentID: comment.ID, UserID: userID}
		if err := h.DB.WithContext(ctx).Create(&like).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		liked = true

		if actor, err := fetchUser(ctx, h.DB, userID); err == nil {
			_, err := h.Notifications.Create(ctx, comment.AuthorID, userID,
				notify.TypeCommentLike,
				fmt.Sprintf("%s liked your comment", actor.Username),
				fmt.Sprintf("/posts/%d", comment.PostID),
				map[string]interface{}{
					"actor_id":   userID,
					"post_id":    comment.PostID,
					"comment_id": comment.ID,
				},
			)
			if err != nil {
				l.Warn("like_notification_failed", "error", err)
			}
		}
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var likes int64
	if err := h.DB.WithContext(ctx).Model(&models.CommentLike{}).Where("comment_id = ?", comment.ID).Count(&likes).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]interface{}{
		"type":       "comment_like_toggled",
		"post_id":    comment.PostID,
		"comment_id": comment.ID,
		"user_id":    userID,
		"liked":      liked,
	})

	return c.JSON(http.StatusOK, echo.Map{"liked": liked, "likes": likes})
}
