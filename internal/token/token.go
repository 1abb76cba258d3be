package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_platform/internal/models"
)

var (
	ErrTokenMissing   = errors.New("missing token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("invalid token")
	ErrRefreshInvalid = errors.New("invalid refresh token")
)

type Claims struct {
	UserID uint
	Role   string
}

// Service signs access/refresh token pairs and keeps the refresh ledger.
// The ledger row, not the refresh JWT's own exp claim, is the authoritative
// source for revocation: logout deletes rows, and a token whose row is gone
// can never mint another access token.
type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func (s *Service) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return 15 * time.Minute
}

func (s *Service) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return 7 * 24 * time.Hour
}

func (s *Service) SignAccess(userID uint, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(s.accessTTL()).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.JWTSecret)
}

func (s *Service) signRefresh(userID uint, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(s.refreshTTL()).Unix(),
		"typ":  "refresh",
		"jti":  uuid.NewString(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.RefreshSecret)
}

// IssuePair signs a new access/refresh pair and records the refresh token
// in the ledger. If the ledger insert fails the whole issuance fails and no
// tokens are returned, so the client never holds a pair without a row.
func (s *Service) IssuePair(ctx context.Context, userID uint, role string) (string, string, error) {
	access, err := s.SignAccess(userID, role)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.signRefresh(userID, role)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}

	row := models.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.refreshTTL()),
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return "", "", fmt.Errorf("save refresh token: %w", err)
	}

	return access, refresh, nil
}

// ParseAccess verifies signature and expiry of an access token. Expiry is
// reported as ErrTokenExpired, distinct from every other failure, so the
// caller can tell the client to refresh instead of logging in again.
func (s *Service) ParseAccess(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenMissing
	}

	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.JWTSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !t.Valid {
		return nil, ErrTokenInvalid
	}

	return claimsFrom(t)
}

// ValidateRefresh checks signature and typ of a refresh token, then looks
// it up in the ledger. Unknown, revoked and expired tokens are all reported
// as ErrRefreshInvalid. The token stays usable until logout or expiry, it
// is not rotated on use.
func (s *Service) ValidateRefresh(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrRefreshInvalid
	}

	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.RefreshSecret, nil
	})
	if err != nil || !t.Valid {
		return nil, ErrRefreshInvalid
	}

	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrRefreshInvalid
	}
	if typ, ok := mc["typ"].(string); !ok || typ != "refresh" {
		return nil, ErrRefreshInvalid
	}

	var stored models.RefreshToken
	if err := s.DB.WithContext(ctx).Where("token = ?", raw).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !stored.ExpiresAt.After(time.Now()) {
		return nil, ErrRefreshInvalid
	}

	return claimsFrom(t)
}

// RevokeAll deletes every ledger row belonging to the user. Tokens from all
// of the user's devices stop validating at once.
func (s *Service) RevokeAll(ctx context.Context, userID uint) error {
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func claimsFrom(t *jwt.Token) (*Claims, error) {
	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	sub, ok := mc["sub"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}
	role, _ := mc["role"].(string)
	return &Claims{UserID: uint(sub), Role: role}, nil
}
