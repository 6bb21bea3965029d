// Package session keeps the current actor's session and profile consistent
// for route guards and views. It bootstraps from the backend, caches the
// profile in a single persisted slot, reacts to auth events and drives the
// activity heartbeat.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/backoffice-session/backend"
	apperrors "github.com/jrsteele09/backoffice-session/internal/errors"
	"github.com/jrsteele09/backoffice-session/profilecache"
	"github.com/jrsteele09/backoffice-session/profiles"
	"github.com/rs/zerolog/log"
)

// DefaultFetchTimeout bounds a single profile fetch.
const DefaultFetchTimeout = 10 * time.Second

// ErrFetchTimeout is reported when the profile fetch loses the race against the timeout.
var ErrFetchTimeout = fmt.Errorf("profile fetch: %w", apperrors.ErrTimeout)

// ActivityTracker is the heartbeat the manager starts and stops.
type ActivityTracker interface {
	Start(userID string)
	Stop()
	Touch(ctx context.Context, userID string)
	TrackedUser() string
}

// Deps holds the collaborators of a Manager. All are required.
type Deps struct {
	Auth     backend.AuthClient // Session source and auth event stream
	Profiles profiles.Repo      // Profile rows
	Cache    profilecache.Store // Single-slot persisted profile
	Activity ActivityTracker    // Heartbeat, owned by the caller
}

// Snapshot is a read-only copy of the manager's state.
type Snapshot struct {
	State   State             `json:"state"`
	User    *backend.User     `json:"user"`
	Profile *profiles.Profile `json:"profile"`
	Loading bool              `json:"loading"`
	IsAdmin bool              `json:"is_admin"`
}

// Manager owns the session and profile of the current actor.
type Manager struct {
	deps         Deps
	fetchTimeout time.Duration

	lock          sync.Mutex
	state         State
	session       *backend.Session
	profile       *profiles.Profile
	loading       bool
	isAdmin       bool
	fetchInFlight bool
	fetchUserID   string
	fetchSeq      uint64

	listeners    map[int]func(Snapshot)
	nextListener int

	started     bool
	closed      bool
	cancel      context.CancelFunc
	unsubscribe func()
	ready       chan struct{}
	readyOnce   sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFetchTimeout overrides DefaultFetchTimeout
func WithFetchTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.fetchTimeout = d
	}
}

// NewManager builds a manager in the bootstrapping state. The cached
// profile, if any, is exposed right away for the first render; Start
// replaces it with the backend's answer.
func NewManager(deps Deps, options ...ManagerOption) (*Manager, error) {
	if deps.Auth == nil {
		return nil, errors.New("[NewManager] Auth client is required")
	}
	if deps.Profiles == nil {
		return nil, errors.New("[NewManager] Profiles repo is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("[NewManager] Cache is required")
	}
	if deps.Activity == nil {
		return nil, errors.New("[NewManager] Activity tracker is required")
	}

	m := &Manager{
		deps:         deps,
		fetchTimeout: DefaultFetchTimeout,
		state:        StateBootstrapping,
		loading:      true,
		listeners:    make(map[int]func(Snapshot)),
		ready:        make(chan struct{}),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.fetchTimeout <= 0 {
		return nil, errors.New("[NewManager] fetch timeout must be positive")
	}

	if cached := m.loadCache(); cached != nil {
		m.profile = cached
		m.isAdmin = cached.IsAdmin
	}
	return m, nil
}

// Start bootstraps the session and then subscribes to auth events. Events
// are handled with ctx until Close.
func (m *Manager) Start(ctx context.Context) {
	m.lock.Lock()
	if m.started || m.closed {
		m.lock.Unlock()
		return
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.lock.Unlock()

	m.bootstrap(ctx)

	m.lock.Lock()
	closed := m.closed
	m.lock.Unlock()
	if closed {
		return
	}

	unsubscribe := m.deps.Auth.OnAuthStateChange(func(event backend.AuthEvent, s *backend.Session) {
		m.HandleAuthEvent(ctx, event, s)
	})
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		unsubscribe()
		return
	}
	m.unsubscribe = unsubscribe
	m.lock.Unlock()
}

// Close unsubscribes from auth events and stops the heartbeat. A Start
// still bootstrapping will not subscribe.
func (m *Manager) Close() {
	m.lock.Lock()
	m.closed = true
	unsubscribe, cancel := m.unsubscribe, m.cancel
	m.unsubscribe, m.cancel = nil, nil
	m.lock.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	m.deps.Activity.Stop()
}

// WaitReady blocks until bootstrap has finished or ctx is done.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready is closed once bootstrap has finished.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

func (m *Manager) bootstrap(ctx context.Context) {
	defer m.finishBootstrap()

	s, err := m.deps.Auth.GetCurrentSession(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Session bootstrap failed, continuing signed out")
	}
	if err != nil || s.UserID() == "" {
		m.lock.Lock()
		m.session = nil
		m.profile = nil
		m.isAdmin = false
		m.loading = false
		m.transitionLocked(TriggerSessionMissing)
		m.lock.Unlock()

		m.deps.Activity.Stop()
		m.notify()
		return
	}

	userID := s.UserID()
	m.lock.Lock()
	m.session = s
	if m.profile != nil && m.profile.ID != userID {
		log.Info().Str("user_id", userID).Str("cached_id", m.profile.ID).Msg("Discarding profile cached for another user")
		m.profile = nil
		m.isAdmin = false
	}
	m.discardForeignCacheLocked(m.loadCache(), userID)
	m.transitionLocked(TriggerSessionRestored)
	m.lock.Unlock()

	m.trackActivity(userID)
	m.notify()

	// page loads always reflect the backend, never the cache
	m.LoadProfile(ctx, userID, true)
}

func (m *Manager) finishBootstrap() {
	m.lock.Lock()
	if !m.fetchInFlight {
		m.loading = false
	}
	m.lock.Unlock()
	m.readyOnce.Do(func() { close(m.ready) })
}

// HandleAuthEvent applies an auth event. It is the listener registered by
// Start and is exported so hosts with their own event plumbing can feed it.
func (m *Manager) HandleAuthEvent(ctx context.Context, event backend.AuthEvent, s *backend.Session) {
	userID := s.UserID()

	m.lock.Lock()
	cached := m.loadCache()
	plan := PlanAuthEvent(EventInput{
		Event:     event,
		UserID:    userID,
		Held:      m.profile,
		Cached:    cached,
		FetchBusy: m.fetchInFlight && m.fetchUserID == userID && m.session.UserID() == userID,
	})
	log.Debug().Str("event", string(event)).Str("user_id", userID).Str("plan", plan.String()).Msg("Auth event")

	switch plan {
	case PlanIgnore:
		m.lock.Unlock()
		return

	case PlanSignOut:
		m.clearLocked()
		m.clearCacheLocked()
		m.lock.Unlock()
		m.deps.Activity.Stop()
		m.notify()
		return

	case PlanKeepProfile:
		m.session = s
		if m.state == StateSignedOut {
			m.transitionLocked(TriggerProfileSettled)
		}
		m.lock.Unlock()
		m.trackActivity(userID)
		m.notify()
		return

	case PlanSwitchUser:
		log.Info().Str("user_id", userID).Str("previous_id", m.profile.ID).Msg("User switched")
		m.session = s
		m.profile = nil
		m.isAdmin = false
		m.clearCacheLocked()
		m.lock.Unlock()
		m.trackActivity(userID)
		m.notify()
		m.LoadProfile(ctx, userID, true)
		return

	case PlanAdoptCache:
		m.session = s
		m.profile = cached
		m.isAdmin = cached.IsAdmin
		if !m.fetchInFlight {
			m.loading = false
		}
		m.transitionLocked(TriggerProfileSettled)
		m.lock.Unlock()
		m.trackActivity(userID)
		m.notify()
		return

	case PlanFetch:
		m.session = s
		m.discardForeignCacheLocked(cached, userID)
		m.lock.Unlock()
		m.trackActivity(userID)
		m.notify()
		m.LoadProfile(ctx, userID, true)
		return
	}
	m.lock.Unlock()
}

// LoadProfile fetches the profile of userID. Without force it does nothing
// while another fetch is in flight or when a complete profile for userID is
// already held. Failures never escape: they resolve to the same-user cache
// entry or to no profile.
func (m *Manager) LoadProfile(ctx context.Context, userID string, force bool) {
	if userID == "" {
		return
	}

	m.lock.Lock()
	if m.session.UserID() != userID {
		m.lock.Unlock()
		log.Debug().Str("user_id", userID).Msg("Not loading profile of a user without a session")
		return
	}
	if !force && m.fetchInFlight {
		m.lock.Unlock()
		return
	}
	if !force && m.profile.CompleteFor(userID) {
		m.lock.Unlock()
		return
	}
	m.fetchInFlight = true
	m.fetchUserID = userID
	m.fetchSeq++
	seq := m.fetchSeq
	m.loading = true
	m.transitionLocked(TriggerProfileFetch)
	m.lock.Unlock()
	m.notify()

	p, err := m.fetchWithTimeout(ctx, userID)

	m.lock.Lock()
	if seq != m.fetchSeq {
		m.lock.Unlock()
		log.Debug().Str("user_id", userID).Msg("Dropping superseded profile fetch")
		return
	}
	m.fetchInFlight = false
	m.fetchUserID = ""
	m.loading = false

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		if m.session == nil {
			m.transitionLocked(TriggerSignedOut)
		} else {
			m.transitionLocked(TriggerProfileSettled)
		}
		m.lock.Unlock()
		log.Debug().Str("user_id", userID).Msg("Profile fetch cancelled by caller, keeping current profile")
		m.notify()
		return
	}

	if m.session.UserID() != userID {
		if m.session == nil {
			m.transitionLocked(TriggerSignedOut)
		} else {
			m.transitionLocked(TriggerProfileSettled)
		}
		m.lock.Unlock()
		log.Debug().Str("user_id", userID).Msg("Dropping profile fetched for a user no longer signed in")
		m.notify()
		return
	}

	touch := false
	switch {
	case err == nil:
		m.profile = p
		m.isAdmin = p.IsAdmin
		if serr := m.deps.Cache.Save(p); serr != nil {
			log.Warn().Err(serr).Msg("Failed to cache profile")
		}
		touch = true

	case errors.Is(err, profiles.ErrNotFound):
		log.Warn().Str("user_id", userID).Msg("User has no profile")
		m.profile = nil
		m.isAdmin = false
		m.clearCacheLocked()

	default:
		cached := m.loadCache()
		if cached.BelongsTo(userID) {
			log.Warn().Err(err).Str("user_id", userID).Msg("Profile fetch failed, using cached profile")
			m.profile = cached
			m.isAdmin = cached.IsAdmin
		} else {
			log.Error().Err(err).Str("user_id", userID).Msg("Profile fetch failed")
			m.discardForeignCacheLocked(cached, userID)
			m.profile = nil
			m.isAdmin = false
		}
	}
	m.transitionLocked(TriggerProfileSettled)
	m.lock.Unlock()

	if touch {
		go m.deps.Activity.Touch(context.WithoutCancel(ctx), userID)
	}
	m.notify()
}

// fetchWithTimeout races the fetch against the timeout. A fetch that
// answers after the deadline is left to finish on its own and discarded.
func (m *Manager) fetchWithTimeout(ctx context.Context, userID string) (*profiles.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	type result struct {
		profile *profiles.Profile
		err     error
	}
	done := make(chan result, 1)
	go func() {
		p, err := m.deps.Profiles.GetByID(ctx, userID)
		if err == nil {
			err = checkFetched(p, userID)
		}
		done <- result{profile: p, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.profile, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrFetchTimeout, m.fetchTimeout)
		}
		return nil, ctx.Err()
	}
}

func checkFetched(p *profiles.Profile, userID string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID != userID {
		return fmt.Errorf("%w: got profile %q for user %q", profiles.ErrDecode, p.ID, userID)
	}
	return nil
}

// SignOut stops the heartbeat, clears the cache and asks the backend to end
// the session. Local state is only cleared when the backend agreed.
func (m *Manager) SignOut(ctx context.Context) error {
	m.deps.Activity.Stop()

	m.lock.Lock()
	m.clearCacheLocked()
	m.lock.Unlock()

	if err := m.deps.Auth.SignOut(ctx); err != nil {
		log.Error().Err(err).Msg("Sign out failed")
		return apperrors.Wrapf(err, "[SignOut]")
	}

	m.lock.Lock()
	m.clearLocked()
	m.lock.Unlock()
	m.notify()
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:   m.state,
		Profile: m.profile.Clone(),
		Loading: m.loading,
		IsAdmin: m.isAdmin,
	}
	if m.session != nil {
		u := m.session.User
		snap.User = &u
	}
	return snap
}

// IsAdmin reports the admin flag of the held profile.
func (m *Manager) IsAdmin() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.isAdmin
}

// OnChange registers fn to receive a snapshot after every state change.
func (m *Manager) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) notify() {
	m.lock.Lock()
	snap := m.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.lock.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// trackActivity starts the heartbeat for userID, restarting it when it
// still tracks somebody else.
func (m *Manager) trackActivity(userID string) {
	if tracked := m.deps.Activity.TrackedUser(); tracked != "" && tracked != userID {
		m.deps.Activity.Stop()
	}
	m.deps.Activity.Start(userID)
}

func (m *Manager) transitionLocked(trigger Trigger) {
	next, ok := Transition(m.state, trigger)
	if !ok {
		log.Warn().Str("state", m.state.String()).Str("trigger", trigger.String()).Msg("Ignoring illegal state transition")
		return
	}
	m.state = next
}

// clearLocked drops the session and supersedes any fetch in flight.
func (m *Manager) clearLocked() {
	m.session = nil
	m.profile = nil
	m.isAdmin = false
	m.loading = false
	m.fetchInFlight = false
	m.fetchUserID = ""
	m.fetchSeq++
	m.transitionLocked(TriggerSignedOut)
}

func (m *Manager) loadCache() *profiles.Profile {
	p, err := m.deps.Cache.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read profile cache")
		return nil
	}
	return p
}

func (m *Manager) clearCacheLocked() {
	if err := m.deps.Cache.Clear(); err != nil {
		log.Warn().Err(err).Msg("Failed to clear profile cache")
	}
}

func (m *Manager) discardForeignCacheLocked(cached *profiles.Profile, userID string) {
	if cached != nil && cached.ID != userID {
		log.Info().Str("user_id", userID).Str("cached_id", cached.ID).Msg("Discarding profile cache of another user")
		m.clearCacheLocked()
	}
}
