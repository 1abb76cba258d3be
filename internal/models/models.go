package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"unique;not null"          json:"username"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null;default:user"    json:"role"`
	IsLocked     bool      `gorm:"default:false"            json:"is_locked"`
	IsVerified   bool      `gorm:"default:false"            json:"is_verified"`
	Bio          string    `json:"bio"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshToken is the ledger row behind session renewal. A token is valid
// while its row exists and expires_at is in the future; revocation deletes
// the row.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"          json:"id"`
	Token     string    `gorm:"unique;not null"     json:"token"`
	UserID    uint      `gorm:"index;not null"      json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"            json:"expires_at"`
}

type Notification struct {
	ID        uint      `gorm:"primaryKey"       json:"id"`
	UserID    uint      `gorm:"index;not null"   json:"user_id"`
	ActorID   uint      `json:"actor_id"`
	Type      string    `gorm:"not null"         json:"type"`
	Message   string    `gorm:"not null"         json:"message"`
	Link      string    `json:"link"`
	Data      string    `gorm:"type:text"        json:"data"`
	IsRead    bool      `gorm:"default:false"    json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID   uint   `gorm:"primaryKey"      json:"id"`
	Name string `gorm:"unique;not null" json:"name"`
	Slug string `gorm:"unique;not null" json:"slug"`
}

type Post struct {
	ID         uint      `gorm:"primaryKey"     json:"id"`
	AuthorID   uint      `gorm:"index;not null" json:"author_id"`
	CategoryID uint      `gorm:"index"          json:"category_id"`
	Title      string    `gorm:"not null"       json:"title"`
	Body       string    `gorm:"type:text"      json:"body"`
	Published  bool      `gorm:"default:true"   json:"published"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	AuthorID  uint      `gorm:"index;not null" json:"author_id"`
	Body      string    `gorm:"not null"       json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type PostLike struct {
	ID     uint `gorm:"primaryKey"                          json:"id"`
	PostID uint `gorm:"index:idx_post_like,unique;not null" json:"post_id"`
	UserID uint `gorm:"index:idx_post_like,unique;not null" json:"user_id"`
}

type CommentLike struct {
	ID        uint `gorm:"primaryKey"                             json:"id"`
	CommentID uint `gorm:"index:idx_comment_like,unique;not null" json:"comment_id"`
	UserID    uint `gorm:"index:idx_comment_like,unique;not null" json:"user_id"`
}
