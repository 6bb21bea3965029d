// Package guard allows or denies navigation based on the session manager's
// snapshot.
package guard

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/backoffice-session/session"
	"github.com/rs/zerolog/log"
)

// DefaultBackstop is how long a request waits for the session to settle
// before the reload view is served.
const DefaultBackstop = 15 * time.Second

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySnapshot stores the session snapshot the guard decided on
const ContextKeySnapshot ContextKey = "session_snapshot"

// SnapshotSource is the part of session.Manager the guard needs.
type SnapshotSource interface {
	Snapshot() session.Snapshot
	WaitReady(ctx context.Context) error
	OnChange(fn func(session.Snapshot)) (unsubscribe func())
}

// Guard wraps handlers with session and admin checks.
type Guard struct {
	source    SnapshotSource
	loginPath string
	backstop  time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithLoginPath sets where unauthenticated requests are redirected
func WithLoginPath(path string) Option {
	return func(g *Guard) {
		g.loginPath = path
	}
}

// WithBackstop overrides DefaultBackstop
func WithBackstop(d time.Duration) Option {
	return func(g *Guard) {
		g.backstop = d
	}
}

func New(source SnapshotSource, options ...Option) (*Guard, error) {
	if source == nil {
		return nil, errors.New("[guard.New] snapshot source is required")
	}
	g := &Guard{
		source:    source,
		loginPath: "/login",
		backstop:  DefaultBackstop,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// SnapshotFromContext returns the snapshot stored by the guard.
func SnapshotFromContext(ctx context.Context) (session.Snapshot, bool) {
	snap, ok := ctx.Value(ContextKeySnapshot).(session.Snapshot)
	return snap, ok
}

// RequireSession lets signed-in users through and redirects everyone else
// to the login page.
func (g *Guard) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return g.require(false)
}

// RequireAdmin additionally requires the profile's admin flag.
func (g *Guard) RequireAdmin() func(http.HandlerFunc) http.HandlerFunc {
	return g.require(true)
}

func (g *Guard) require(admin bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			snap, err := g.settled(r.Context())
			if err != nil {
				log.Error().Err(err).Str("path", r.URL.Path).Msg("Session did not settle in time")
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Loading your session is taking too long. Please reload the page.", http.StatusServiceUnavailable)
				return
			}

			if snap.User == nil {
				target := g.loginPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			if admin && !snap.IsAdmin {
				log.Warn().Str("user_id", snap.User.ID).Str("path", r.URL.Path).Msg("Access denied")
				http.Error(w, "Access denied", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySnapshot, snap)
			next(w, r.WithContext(ctx))
		}
	}
}

// settled waits, up to the backstop, for bootstrap to finish and for any
// profile load to end.
func (g *Guard) settled(ctx context.Context) (session.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.backstop)
	defer cancel()

	if err := g.source.WaitReady(ctx); err != nil {
		return session.Snapshot{}, err
	}

	idle := make(chan session.Snapshot, 1)
	unsubscribe := g.source.OnChange(func(s session.Snapshot) {
		if s.Loading {
			return
		}
		select {
		case idle <- s:
		default:
		}
	})
	defer unsubscribe()

	if snap := g.source.Snapshot(); !snap.Loading {
		return snap, nil
	}
	select {
	case snap := <-idle:
		return snap, nil
	case <-ctx.Done():
		return session.Snapshot{}, ctx.Err()
	}
}
