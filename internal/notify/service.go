package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_platform/internal/events"
	"github.com/Skotchmaster/blog_platform/internal/logging"
	"github.com/Skotchmaster/blog_platform/internal/models"
	"github.com/Skotchmaster/blog_platform/internal/realtime"
)

const (
	TypeComment     = "comment"
	TypePostLike    = "post_like"
	TypeCommentLike = "comment_like"

	DefaultListLimit = 50
)

// ErrNotFound covers both a missing row and a row owned by someone else,
// so acting on a foreign notification does not reveal that it exists.
var ErrNotFound = errors.New("notification not found")

type Service struct {
	DB       *gorm.DB
	Hub      *realtime.Hub
	Producer *events.Producer
}

// View is a notification joined with the actor's current display fields.
// Name and avatar are resolved at read time so they always reflect the
// actor's present profile, not a copy taken at write time.
type View struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"user_id"`
	ActorID     uint      `json:"actor_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Link        string    `json:"link"`
	Data        string    `json:"data"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
	ActorName   string    `json:"actor_name"`
	ActorAvatar string    `json:"actor_avatar"`
}

// Create persists a notification and then fans it out: a push over the
// realtime hub to the recipient and a kafka event. The row is the durable
// source of truth; push and publish failures are logged and dropped, they
// never roll the insert back or fail the triggering request. Actions on
// one's own content create nothing.
func (s *Service) Create(ctx context.Context, recipientID, actorID uint, typ, message, link string, payload map[string]interface{}) (*models.Notification, error) {
	if recipientID == actorID {
		return nil, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal notification payload: %w", err)
	}

	n := models.Notification{
		UserID:  recipientID,
		ActorID: actorID,
		Type:    typ,
		Message: message,
		Link:    link,
		Data:    string(data),
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, fmt.Errorf("save notification: %w", err)
	}

	s.fanOut(ctx, &n)

	return &n, nil
}

func (s *Service) fanOut(ctx context.Context, n *models.Notification) {
	l := logging.FromContext(ctx)

	var actor models.User
	if err := s.DB.WithContext(ctx).Select("username", "avatar").First(&actor, n.ActorID).Error; err != nil {
		l.Warn("notification_actor_lookup_failed", "actor_id", n.ActorID, "error", err)
	}

	view := View{
		ID:          n.ID,
		UserID:      n.UserID,
		ActorID:     n.ActorID,
		Type:        n.Type,
		Message:     n.Message,
		Link:        n.Link,
		Data:        n.Data,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
		ActorName:   actor.Username,
		ActorAvatar: actor.Avatar,
	}

	if s.Hub != nil {
		s.Hub.Publish(n.UserID, "notification", view)
	}

	if err := s.Producer.PublishEvent(ctx, events.TopicNotificationEvents, fmt.Sprint(n.UserID), view); err != nil {
		l.Warn("notification_publish_failed", "error", err)
	}
}

// ListForUser returns the newest notifications first, bounded by limit
// (50 when out of range). Read only, safe to call repeatedly.
func (s *Service) ListForUser(ctx context.Context, userID uint, limit int) ([]View, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	var views []View
	err := s.DB.WithContext(ctx).
		Table("notifications").
		Select("notifications.id, notifications.user_id, notifications.actor_id, notifications.type, notifications.message, notifications.link, notifications.data, notifications.is_read, notifications.created_at, users.username AS actor_name, users.avatar AS actor_avatar").
		Joins("LEFT JOIN users ON users.id = notifications.actor_id").
		Where("notifications.user_id = ?", userID).
		Order("notifications.id DESC").
		Limit(limit).
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return views, nil
}

func (s *Service) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *Service) MarkRead(ctx context.Context, id, userID uint) error {
	res := s.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uint) error {
	err := s.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id, userID uint) error {
	res := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
