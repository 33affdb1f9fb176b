package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserExists         = errors.New("user already exists")
)

type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Expiring reports whether the access token runs out within the margin.
func (s *Session) Expiring(now time.Time, margin time.Duration) bool {
	return !s.ExpiresAt.IsZero() && now.Add(margin).After(s.ExpiresAt)
}

type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Provider is the backend's password auth surface.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

type Claims struct {
	Email    string `json:"email,omitempty"`
	TokenUse string `json:"token_use,omitempty"`
	jwt.RegisteredClaims
}

// parseToken verifies an HS256 token and returns the identity in it.
// An empty tokenUse accepts tokens that carry no token_use claim.
func parseToken(tokenString string, secret []byte, tokenUse string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenUse != tokenUse {
		return nil, fmt.Errorf("%w: token_use %q", ErrInvalidToken, claims.TokenUse)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return &Identity{ID: id, Email: claims.Email}, nil
}

func signToken(identity Identity, secret []byte, tokenUse string, issued time.Time, ttl time.Duration) (string, time.Time, error) {
	expires := issued.Add(ttl)
	claims := &Claims{
		Email:    identity.Email,
		TokenUse: tokenUse,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", tokenUse, err)
	}
	return signed, expires, nil
}
