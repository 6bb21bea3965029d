package profiles

import (
	"context"
	"time"
)

// Repo defines the backend operations on the profiles resource.
type Repo interface {
	// GetByID fetches the profile row for userID. Returns ErrNotFound when no row exists.
	GetByID(ctx context.Context, userID string) (*Profile, error)

	// UpdateLastLogin calls the backend's "update last login" procedure for userID
	UpdateLastLogin(ctx context.Context, userID string) error

	// SetLastLoginAt writes last_login_at directly on the profile row
	SetLastLoginAt(ctx context.Context, userID string, at time.Time) error
}
