package auth

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Holder is the per-request view of the auth state. It starts out loading,
// follows every change the client emits, and settles once Init has run.
type Holder struct {
	client      *Client
	mu          sync.RWMutex
	session     *Session
	loading     bool
	unsubscribe func()
}

func NewHolder(client *Client) *Holder {
	h := &Holder{client: client, loading: true}
	h.unsubscribe = client.OnAuthStateChange(h.onChange)
	return h
}

// Init resolves the current session. Errors are logged and swallowed;
// loading is cleared either way.
func (h *Holder) Init(ctx context.Context) {
	session, err := h.client.GetSession(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("could not resolve session")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		h.session = session
	}
	h.loading = false
}

func (h *Holder) onChange(_ Event, session *Session) {
	h.mu.Lock()
	h.session = session
	h.mu.Unlock()
}

func (h *Holder) Session() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// User is the signed-in identity, or nil.
func (h *Holder) User() *Identity {
	session := h.Session()
	if session == nil {
		return nil
	}
	user := session.User
	return &user
}

func (h *Holder) Loading() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loading
}

// SignIn reports failure through the returned error only.
func (h *Holder) SignIn(ctx context.Context, email, password string) error {
	_, err := h.client.SignInWithPassword(ctx, email, password)
	return err
}

func (h *Holder) SignOut(ctx context.Context) error {
	return h.client.SignOut(ctx)
}

func (h *Holder) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}
