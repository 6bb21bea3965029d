// Package activity keeps the backend's last-login timestamp fresh while a
// session is open. It never affects auth or profile state.
package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/backoffice-session/profiles"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultInterval is the time between scheduled last-login updates
	DefaultInterval = 5 * time.Minute
	// DefaultUpdateTimeout bounds one update, fallback included
	DefaultUpdateTimeout = 10 * time.Second
)

// Heartbeat periodically reports that the tracked user is still active.
// At most one ticker runs at a time.
type Heartbeat struct {
	repo          profiles.Repo
	interval      time.Duration
	updateTimeout time.Duration
	nowTime       func() time.Time

	lock     sync.Mutex
	tracking bool
	userID   string
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Heartbeat.
type Option func(*Heartbeat)

// WithInterval sets the time between scheduled updates
func WithInterval(d time.Duration) Option {
	return func(h *Heartbeat) {
		h.interval = d
	}
}

// WithUpdateTimeout bounds a single update, both paths included
func WithUpdateTimeout(d time.Duration) Option {
	return func(h *Heartbeat) {
		h.updateTimeout = d
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(h *Heartbeat) {
		h.nowTime = nowFunc
	}
}

// New creates a stopped heartbeat that reports activity through repo.
func New(repo profiles.Repo, options ...Option) (*Heartbeat, error) {
	if repo == nil {
		return nil, errors.New("[activity.New] profiles repo is required")
	}
	h := &Heartbeat{
		repo:          repo,
		interval:      DefaultInterval,
		updateTimeout: DefaultUpdateTimeout,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(h)
	}
	if h.interval <= 0 {
		return nil, errors.New("[activity.New] interval must be positive")
	}
	return h, nil
}

// Start begins tracking userID: one update right away, then one per
// interval. It is a no-op while already tracking.
func (h *Heartbeat) Start(userID string) {
	if userID == "" {
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if h.tracking {
		return
	}
	h.tracking = true
	h.userID = userID
	h.stop = make(chan struct{})
	h.done = make(chan struct{})

	log.Debug().Str("user_id", userID).Dur("interval", h.interval).Msg("Activity tracking started")
	go h.run(userID, h.stop, h.done)
}

// Stop cancels scheduled updates. It does not wait for an update already
// in progress. Stopping twice is a no-op.
func (h *Heartbeat) Stop() {
	h.lock.Lock()
	defer h.lock.Unlock()
	if !h.tracking {
		return
	}
	close(h.stop)
	h.tracking = false
	log.Debug().Str("user_id", h.userID).Msg("Activity tracking stopped")
	h.userID = ""
}

// IsTracking reports whether a ticker is active.
func (h *Heartbeat) IsTracking() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.tracking
}

// TrackedUser returns the user being tracked, or "".
func (h *Heartbeat) TrackedUser() string {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.userID
}

// Wait blocks until the current ticker goroutine has exited after Stop.
func (h *Heartbeat) Wait() {
	h.lock.Lock()
	done := h.done
	h.lock.Unlock()
	if done != nil {
		<-done
	}
}

func (h *Heartbeat) run(userID string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	h.Touch(context.Background(), userID)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.Touch(context.Background(), userID)
		}
	}
}

// Touch performs one last-login update: the update_last_login procedure
// first, a direct row update if that fails. Failures are only logged.
func (h *Heartbeat) Touch(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.updateTimeout)
	defer cancel()

	err := h.repo.UpdateLastLogin(ctx, userID)
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("user_id", userID).Msg("Last login procedure failed, updating row directly")

	if err := h.repo.SetLastLoginAt(ctx, userID, h.nowTime().UTC()); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update last login")
	}
}
