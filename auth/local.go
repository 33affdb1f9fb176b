package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nikwetu/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Local authenticates against the users table and issues its own tokens.
type Local struct {
	db         *gorm.DB
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
	now        func() time.Time
}

func NewLocal(db *gorm.DB, secret string) *Local {
	return &Local{
		db:         db,
		secret:     []byte(secret),
		accessTTL:  time.Hour,
		refreshTTL: 7 * 24 * time.Hour,
		cost:       14,
		now:        time.Now,
	}
}

// CreateUser stores a user with a bcrypt password hash.
func (l *Local) CreateUser(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	var count int64
	if err := l.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{Email: email, PasswordHash: string(hash)}
	if err := l.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func (l *Local) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var user models.User
	err := l.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return l.issue(Identity{ID: user.ID, Email: user.Email})
}

func (l *Local) GetUser(_ context.Context, accessToken string) (*Identity, error) {
	return parseToken(accessToken, l.secret, tokenUseAccess)
}

func (l *Local) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	identity, err := parseToken(refreshToken, l.secret, tokenUseRefresh)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = l.db.WithContext(ctx).Where("id = ?", identity.ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return l.issue(Identity{ID: user.ID, Email: user.Email})
}

// SignOut has nothing to revoke; tokens are dropped with the cookie.
func (l *Local) SignOut(context.Context, string) error {
	return nil
}

func (l *Local) issue(identity Identity) (*Session, error) {
	issued := l.now()
	access, expires, err := signToken(identity, l.secret, tokenUseAccess, issued, l.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := signToken(identity, l.secret, tokenUseRefresh, issued, l.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expires,
		User:         identity,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
