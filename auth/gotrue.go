package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// GoTrue talks to the hosted auth REST API.
type GoTrue struct {
	baseURL   string
	apiKey    string
	jwtSecret []byte
	client    *http.Client
	now       func() time.Time
}

func NewGoTrue(baseURL, apiKey, jwtSecret string) *GoTrue {
	g := &GoTrue{
		baseURL: baseURL + "/auth/v1",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
	if jwtSecret != "" {
		g.jwtSecret = []byte(jwtSecret)
	}
	return g
}

type goTrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type goTrueToken struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         goTrueUser `json:"user"`
}

type goTrueError struct {
	Status           int    `json:"-"`
	Kind             string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
}

func (e *goTrueError) Error() string {
	message := e.Msg
	if message == "" {
		message = e.ErrorDescription
	}
	if message == "" {
		message = e.Kind
	}
	return fmt.Sprintf("auth api: %d %s", e.Status, message)
}

func (g *GoTrue) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var token goTrueToken
	body := map[string]string{"email": email, "password": password}
	if err := g.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &token); err != nil {
		if isClientError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		return nil, err
	}
	return g.session(token)
}

func (g *GoTrue) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var token goTrueToken
	body := map[string]string{"refresh_token": refreshToken}
	if err := g.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &token); err != nil {
		if isClientError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return nil, err
	}
	return g.session(token)
}

// GetUser verifies the token locally when the project's JWT secret is
// configured, and asks the API otherwise.
func (g *GoTrue) GetUser(ctx context.Context, accessToken string) (*Identity, error) {
	if g.jwtSecret != nil {
		return parseToken(accessToken, g.jwtSecret, "")
	}

	var user goTrueUser
	if err := g.do(ctx, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		if isClientError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return nil, err
	}
	return toIdentity(user)
}

func (g *GoTrue) SignOut(ctx context.Context, accessToken string) error {
	err := g.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
	if isClientError(err) {
		// already invalid on the server
		return nil
	}
	return err
}

func (g *GoTrue) session(token goTrueToken) (*Session, error) {
	identity, err := toIdentity(token.User)
	if err != nil {
		return nil, err
	}

	expires := time.Unix(token.ExpiresAt, 0)
	if token.ExpiresAt == 0 {
		expires = g.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return &Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expires,
		User:         *identity,
	}, nil
}

func (g *GoTrue) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode auth request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("apikey", g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer == "" {
		bearer = g.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &goTrueError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	return nil
}

func isClientError(err error) bool {
	var apiErr *goTrueError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

func toIdentity(user goTrueUser) (*Identity, error) {
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth api returned user id %q: %w", user.ID, err)
	}
	return &Identity{ID: id, Email: user.Email}, nil
}
