package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_platform/internal/events"
	"github.com/Skotchmaster/blog_platform/internal/logging"
	authmw "github.com/Skotchmaster/blog_platform/internal/middleware/auth"
	"github.com/Skotchmaster/blog_platform/internal/models"
	"github.com/Skotchmaster/blog_platform/internal/notify"
	"github.com/Skotchmaster/blog_platform/internal/service/search"
	"github.com/Skotchmaster/blog_platform/internal/util"
)

type PostHandler struct {
	DB            *gorm.DB
	Producer      *events.Producer
	Notifications *notify.Service
	ES            *elasticsearch.Client
	ESIndex       string
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *PostHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicPostEvents, fmt.Sprint(event["post_id"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Warn("kafka_publish_failed", "error", err)
	}
}

func (h *PostHandler) indexPost(c echo.Context, post *models.Post) {
	if h.ES == nil {
		return
	}
	if err := search.IndexPost(c.Request().Context(), h.ES, h.ESIndex, post); err != nil {
		logging.FromContext(c.Request().Context()).Warn("es_index_failed", "post_id", post.ID, "error", err)
	}
}

func (h *PostHandler) deindexPost(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	if err := search.DeletePost(c.Request().Context(), h.ES, h.ESIndex, id); err != nil {
		logging.FromContext(c.Request().Context()).Warn("es_delete_failed", "post_id", id, "error", err)
	}
}

func (h *PostHandler) CreatePost(c echo.Context) error {
	ctx := c.Request().Context()
	userID := authmw.UserID(c)

	var req struct {
		Title      string `json:"title"`
		Body       string `json:"body"`
		CategoryID uint   `json:"category_id"`
		Published  *bool  `json:"published"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" || req.Body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and body are required")
	}

	if req.CategoryID != 0 {
		var cat models.Category
		if err := h.DB.WithContext(ctx).First(&cat, req.CategoryID).Error; err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
		}
	}

	post := models.Post{
		AuthorID:   userID,
		CategoryID: req.CategoryID,
		Title:      req.Title,
		Body:       req.Body,
		Published:  true,
	}
	if req.Published != nil {
		post.Published = *req.Published
	}
	if err := h.DB.WithContext(ctx).Create(&post).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.indexPost(c, &post)
	h.publish(c, map[string]interface{}{
		"type":      "post_created",
		"post_id":   post.ID,
		"author_id": post.AuthorID,
		"title":     post.Title,
	})

	return c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) GetPost(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var post models.Post
	if err := h.DB.WithContext(c.Request().Context()).First(&post, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}
	if !post.Published {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}

	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) ListPosts(c echo.Context) error {
	ctx := c.Request().Context()
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(ctx).Model(&models.Post{}).Where("published = ?", true)
	if cat := parseIntDefault(c.QueryParam("category"), 0); cat > 0 {
		q = q.Where("category_id = ?", cat)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var items []models.Post
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": echo.Map{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *PostHandler) UpdatePost(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var post models.Post
	if err := h.DB.WithContext(ctx).First(&post, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}
	if !canEdit(c, post.AuthorID) {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}

	var req struct {
		Title      *string `json:"title"`
		Body       *string `json:"body"`
		CategoryID *uint   `json:"category_id"`
		Published  *bool   `json:"published"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title != nil {
		post.Title = *req.Title
	}
	if req.Body != nil {
		post.Body = *req.Body
	}
	if req.CategoryID != nil {
		post.CategoryID = *req.CategoryID
	}
	if req.Published != nil {
		post.Published = *req.Published
	}

	if err := h.DB.WithContext(ctx).Save(&post).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.indexPost(c, &post)
	h.publish(c, map[string]interface{}{
		"type":    "post_updated",
		"post_id": post.ID,
	})

	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) DeletePost(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var post models.Post
	if err := h.DB.WithContext(ctx).First(&post, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}
	if !canEdit(c, post.AuthorID) {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}

	if err := h.DB.WithContext(ctx).Where("post_id = ?", post.ID).Delete(&models.PostLike{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.WithContext(ctx).Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.WithContext(ctx).Delete(&post).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.deindexPost(c, post.ID)
	h.publish(c, map[string]interface{}{
		"type":    "post_deleted",
		"post_id": post.ID,
	})

	return c.NoContent(http.StatusNoContent)
}

// canEdit allows the author plus the editor and admin roles.
func canEdit(c echo.Context, authorID uint) bool {
	if authmw.UserID(c) == authorID {
		return true
	}
	role := authmw.Role(c)
	return role == "admin" || role == "editor"
}

func fetchUser(ctx context.Context, db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
