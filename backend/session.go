package backend

import (
	"golang.org/x/oauth2"
)

// AuthEvent is the kind of auth-state change reported by the backend client
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// User is the backend's auth user record.
type User struct {
	ID    string         `json:"id"`              // Stable identity
	Email string         `json:"email,omitempty"` // Login email
	Raw   map[string]any `json:"-"`               // Backend record as received, opaque here
}

// Session is a backend-issued proof of authentication.
type Session struct {
	User  User
	Token *oauth2.Token
}

// UserID returns the session's user id, or "" for a nil session.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.User.ID
}

// Clone copies the session; Raw and Token are shared read-only.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
