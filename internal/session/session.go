// Package session owns the authentication session lifecycle.
package session

import (
	"context"
	"time"
)

// Session is an authenticated user session.
type Session struct {
	UserID       string    `json:"user_id"`
	Phone        string    `json:"phone,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry, allowing for skew.
func (s Session) Expired(now time.Time, skew time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.ExpiresAt)
}

// Event names the reason of an auth state change.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Change is one (event, session) pair from the auth change stream. Session is
// nil when signed out.
type Change struct {
	Event   Event
	Session *Session
}

// Authenticator is the auth backend consumed by the Provider.
type Authenticator interface {
	// CurrentSession is the one-shot initial probe. It returns nil when no
	// session exists.
	CurrentSession(ctx context.Context) (*Session, error)
	// Subscribe yields auth state changes until the returned cancel func is called.
	Subscribe() (<-chan Change, func())
	SignOut(ctx context.Context) error
}

// State is what the Provider exposes to the rest of the process.
type State struct {
	Session *Session
	Loading bool
}

// Present reports whether a session is active.
func (s State) Present() bool {
	return s.Session != nil
}

// SameUser reports whether a and b identify the same signed-in user, or are
// both absent.
func SameUser(a, b *Session) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UserID == b.UserID
}

func clone(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
