package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/suPer8Hu/postcraft/internal/models"
	"gorm.io/gorm"
)

var (
	ErrMissingFields      = errors.New("username, email and password required")
	ErrUserExists         = errors.New("username or email already registered")
	ErrBadCredentials     = errors.New("invalid username or password")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrRevocationDisabled = errors.New("token revocation unavailable")
)

// Revoker remembers revoked token ids until they would have expired anyway.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Service struct {
	db         *gorm.DB
	revoker    Revoker
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(db *gorm.DB, revoker Revoker, secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{db: db, revoker: revoker, secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}

	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&cnt).Error; err != nil {
		return nil, err
	}
	if cnt > 0 {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Username: username, Email: email, PasswordHash: hash, IsActive: true}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// Login accepts a username or an email.
func (s *Service) Login(ctx context.Context, login, password string) (TokenPair, error) {
	login = strings.TrimSpace(login)
	var u models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, ErrBadCredentials
		}
		return TokenPair{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return TokenPair{}, ErrBadCredentials
	}
	if !u.IsActive {
		return TokenPair{}, ErrInactiveUser
	}
	return IssuePair(u.ID, s.secret, s.accessTTL, s.refreshTTL)
}

// Refresh exchanges a refresh token for a new pair and revokes the old refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := ParseJWT(refreshToken, s.secret, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return TokenPair{}, err
	}
	uid, _ := claims.UserID()

	var u models.User
	if err := s.db.WithContext(ctx).First(&u, uid).Error; err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if !u.IsActive {
		return TokenPair{}, ErrInactiveUser
	}

	pair, err := IssuePair(uid, s.secret, s.accessTTL, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	_ = s.revoke(ctx, claims)
	return pair, nil
}

// Logout revokes the given access token and, when present, the refresh token.
func (s *Service) Logout(ctx context.Context, access *Claims, refreshToken string) error {
	if err := s.revoke(ctx, access); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := ParseJWT(refreshToken, s.secret, TokenRefresh)
	if err != nil {
		return nil
	}
	return s.revoke(ctx, claims)
}

// Authenticate validates an access token for the middleware.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := ParseJWT(token, s.secret, TokenAccess)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) User(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) checkRevoked(ctx context.Context, c *Claims) error {
	if s.revoker == nil || c.ID == "" {
		return nil
	}
	revoked, err := s.revoker.IsRevoked(ctx, c.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

func (s *Service) revoke(ctx context.Context, c *Claims) error {
	if c == nil || c.ID == "" {
		return nil
	}
	if s.revoker == nil {
		return ErrRevocationDisabled
	}
	ttl := time.Minute
	if c.ExpiresAt != nil {
		ttl = time.Until(c.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.revoker.Revoke(ctx, c.ID, ttl)
}
