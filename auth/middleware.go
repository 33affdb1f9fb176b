package auth

import (
	"encoding/json"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	holderKey  = "auth.holder"
	sessionKey = "auth_session"
)

// Provide builds the auth holder for each request from the cookie session
// and keeps the cookie in step with every auth change. It must run after
// the sessions middleware.
func Provide(provider Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := sessions.Default(c)

		client := NewClient(provider, loadSession(store))
		unsubscribe := client.OnAuthStateChange(func(event Event, session *Session) {
			persistSession(store, session)
		})
		defer unsubscribe()

		holder := NewHolder(client)
		defer holder.Close()
		holder.Init(c.Request.Context())

		c.Set(holderKey, holder)
		c.Next()
	}
}

// Use returns the request's holder. Calling it on a route that is not
// behind Provide is a programming error.
func Use(c *gin.Context) *Holder {
	value, ok := c.Get(holderKey)
	holder, _ := value.(*Holder)
	if !ok || holder == nil {
		panic("auth.Use must be used within the auth provider")
	}
	return holder
}

// RequireUser lets signed-in requests through. While the session is
// unresolved it renders placeholder; without an identity it redirects
// to loginPath with 303 so the protected page never lands in history.
func RequireUser(loginPath string, placeholder gin.HandlerFunc) gin.HandlerFunc {
	if placeholder == nil {
		placeholder = func(c *gin.Context) {
			c.Header("Retry-After", "1")
			c.String(http.StatusServiceUnavailable, "Loading...")
		}
	}

	return func(c *gin.Context) {
		holder := Use(c)
		c.Header("Cache-Control", "no-store")

		// Provide resolves the session before handlers run, so this only
		// fires for holders that have not been initialised.
		if holder.Loading() {
			placeholder(c)
			c.Abort()
			return
		}

		if holder.User() == nil {
			c.Redirect(http.StatusSeeOther, loginPath)
			c.Abort()
			return
		}

		c.Next()
	}
}

func loadSession(store sessions.Session) *Session {
	raw, ok := store.Get(sessionKey).(string)
	if !ok || raw == "" {
		return nil
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable session cookie")
		return nil
	}
	return &session
}

func persistSession(store sessions.Session, session *Session) {
	if session == nil {
		store.Delete(sessionKey)
	} else {
		raw, err := json.Marshal(session)
		if err != nil {
			log.Error().Err(err).Msg("encode session")
			return
		}
		store.Set(sessionKey, string(raw))
	}

	if err := store.Save(); err != nil {
		log.Error().Err(err).Msg("save session cookie")
	}
}
