package backend

import "context"

// AuthListener receives auth-state changes. session is nil when signed out.
type AuthListener func(event AuthEvent, session *Session)

// AuthClient is the auth surface of the hosted backend.
type AuthClient interface {
	// GetCurrentSession returns the restored session or nil when there is none
	GetCurrentSession(ctx context.Context) (*Session, error)

	// OnAuthStateChange registers listener and returns its unsubscribe func
	OnAuthStateChange(listener AuthListener) (unsubscribe func())

	// SignOut ends the current session on the backend
	SignOut(ctx context.Context) error
}

// PasswordSigner is implemented by clients that support email/password sign-in.
type PasswordSigner interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
}
