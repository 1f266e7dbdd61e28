package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultCookieName = "storefront_session"

// User is the customer summary kept in a logged-in session.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Manager orchestrates cookie based sessions backed by Redis.
type Manager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session state.
type Session struct {
	ID         string
	user       *User
	previousID string
	isNew      bool
	dirty      bool
	destroyed  bool
}

type payload struct {
	User *User `json:"user,omitempty"`
}

func NewManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *Manager {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Manager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Load returns the session named by the request cookie, or a fresh one when
// the cookie is absent or points at an expired key.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return newSession(), nil
		}
		return nil, err
	}

	data, err := m.client.Get(ctx, redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return newSession(), nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var stored payload
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &Session{ID: cookie.Value, user: stored.User}, nil
}

// Commit persists a changed session and writes the cookie. Untouched
// anonymous sessions are not stored.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.previousID != "" {
		if err := m.client.Del(ctx, redisKey(sess.previousID)).Err(); err != nil {
			return fmt.Errorf("drop previous session: %w", err)
		}
		sess.previousID = ""
	}

	if sess.destroyed {
		if !sess.isNew {
			if err := m.client.Del(ctx, redisKey(sess.ID)).Err(); err != nil {
				return fmt.Errorf("destroy session: %w", err)
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})
		// The request continues with an anonymous session.
		*sess = *newSession()
		return nil
	}

	if !sess.dirty {
		return nil
	}

	data, err := json.Marshal(payload{User: sess.user})
	if err != nil {
		return err
	}
	if err := m.client.Set(ctx, redisKey(sess.ID), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.dirty = false
	sess.isNew = false

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(m.ttl),
		MaxAge:   int(m.ttl.Seconds()),
	})
	return nil
}

// Destroy marks the session for deletion on commit.
func (m *Manager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// Login binds the user to the session under a new id.
func (s *Session) Login(u User) {
	if !s.isNew {
		s.previousID = s.ID
	}
	s.ID = uuid.NewString()
	s.isNew = true
	s.user = &u
	s.dirty = true
}

// User returns the logged-in user, or nil for an anonymous session.
func (s *Session) User() *User {
	if s == nil || s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func newSession() *Session {
	return &Session{
		ID:    uuid.NewString(),
		isNew: true,
	}
}

func redisKey(id string) string {
	return "session:" + id
}

type contextKey struct{}

func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}
