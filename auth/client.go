package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const refreshMargin = time.Minute

type Listener func(event Event, session *Session)

// Client holds one browser's session and tells listeners about every change.
type Client struct {
	provider  Provider
	now       func() time.Time
	mu        sync.Mutex
	session   *Session
	listeners map[int]Listener
	nextID    int
}

func NewClient(provider Provider, stored *Session) *Client {
	return &Client{
		provider:  provider,
		now:       time.Now,
		session:   stored,
		listeners: make(map[int]Listener),
	}
}

// GetSession returns the current session, refreshing it when the access
// token is about to expire. A session the backend rejects is dropped.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	current := c.current()
	if current == nil {
		return nil, nil
	}

	if current.Expiring(c.now(), refreshMargin) {
		refreshed, err := c.provider.Refresh(ctx, current.RefreshToken)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				c.set(EventSignedOut, nil)
			}
			return nil, err
		}
		c.set(EventTokenRefreshed, refreshed)
		return refreshed, nil
	}

	identity, err := c.provider.GetUser(ctx, current.AccessToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			c.set(EventSignedOut, nil)
		}
		return nil, err
	}

	session := *current
	session.User = *identity
	return &session, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.set(EventSignedIn, session)
	return session, nil
}

// SignOut clears the local session even when the backend call fails.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.current()
	var err error
	if current != nil {
		err = c.provider.SignOut(ctx, current.AccessToken)
		if err != nil {
			log.Warn().Err(err).Msg("backend sign-out failed")
		}
	}
	c.set(EventSignedOut, nil)
	return err
}

// OnAuthStateChange registers a listener and returns its unsubscribe func.
func (c *Client) OnAuthStateChange(listener Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// set replaces the session and notifies listeners synchronously, in
// registration order.
func (c *Client) set(event Event, session *Session) {
	c.mu.Lock()
	c.session = session
	listeners := make([]Listener, 0, len(c.listeners))
	for i := 0; i < c.nextID; i++ {
		if l, ok := c.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(event, session)
	}
}
