package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/backoffice-session/backend"
	"github.com/jrsteele09/backoffice-session/backend/fakebackend"
	"github.com/jrsteele09/backoffice-session/profilecache"
	"github.com/jrsteele09/backoffice-session/profiles"
	fakeprofilerepo "github.com/jrsteele09/backoffice-session/profiles/repofake"
	"github.com/jrsteele09/backoffice-session/session"
	"github.com/stretchr/testify/require"
)

const (
	adaID        = "u1"
	alanID       = "u2"
	testPassword = "Secret123"
)

func adaProfile() *profiles.Profile {
	return &profiles.Profile{ID: adaID, FirstName: "Ada", LastName: "Lovelace", IsAdmin: true, Role: profiles.RoleAdmin}
}

func alanProfile() *profiles.Profile {
	return &profiles.Profile{ID: alanID, FirstName: "Alan", LastName: "Turing", Role: profiles.RoleEmployee}
}

// fakeTracker records heartbeat calls
type fakeTracker struct {
	mu      sync.Mutex
	tracked string
	starts  []string
	stops   int
	touches []string
}

func (f *fakeTracker) Start(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tracked != "" {
		return
	}
	f.tracked = userID
	f.starts = append(f.starts, userID)
}

func (f *fakeTracker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = ""
	f.stops++
}

func (f *fakeTracker) Touch(ctx context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches = append(f.touches, userID)
}

func (f *fakeTracker) TrackedUser() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracked
}

func (f *fakeTracker) touchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.touches)
}

func (f *fakeTracker) startedFor() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.starts...)
}

// testFixture holds all test dependencies
type testFixture struct {
	backend *fakebackend.FakeBackend
	repo    *fakeprofilerepo.FakeProfileRepo
	cache   *profilecache.FileStore
	tracker *fakeTracker
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	cache, err := profilecache.NewFileStore(filepath.Join(t.TempDir(), "profile.json"))
	require.NoError(t, err)

	f := &testFixture{
		backend: fakebackend.NewFakeBackend(),
		repo:    fakeprofilerepo.NewFakeProfileRepo(),
		cache:   cache,
		tracker: &fakeTracker{},
	}
	f.repo.Upsert(adaProfile())
	f.repo.Upsert(alanProfile())
	return f
}

func (f *testFixture) newManager(t *testing.T, options ...session.ManagerOption) *session.Manager {
	t.Helper()
	m, err := session.NewManager(session.Deps{
		Auth:     f.backend,
		Profiles: f.repo,
		Cache:    f.cache,
		Activity: f.tracker,
	}, options...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func (f *testFixture) started(t *testing.T, options ...session.ManagerOption) *session.Manager {
	t.Helper()
	m := f.newManager(t, options...)
	m.Start(context.Background())
	return m
}

func (f *testFixture) cached(t *testing.T) *profiles.Profile {
	t.Helper()
	p, err := f.cache.Load()
	require.NoError(t, err)
	return p
}

func TestNewManager_RequiresDeps(t *testing.T) {
	f := setupTestFixture(t)
	full := session.Deps{Auth: f.backend, Profiles: f.repo, Cache: f.cache, Activity: f.tracker}

	for name, mutate := range map[string]func(*session.Deps){
		"auth":     func(d *session.Deps) { d.Auth = nil },
		"profiles": func(d *session.Deps) { d.Profiles = nil },
		"cache":    func(d *session.Deps) { d.Cache = nil },
		"activity": func(d *session.Deps) { d.Activity = nil },
	} {
		t.Run(name, func(t *testing.T) {
			deps := full
			mutate(&deps)
			_, err := session.NewManager(deps)
			require.Error(t, err)
		})
	}
}

func TestNewManager_SeedsInitialRenderFromCache(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.cache.Save(adaProfile()))

	m := f.newManager(t)
	snap := m.Snapshot()
	require.Equal(t, session.StateBootstrapping, snap.State)
	require.True(t, snap.Loading)
	require.Equal(t, adaID, snap.Profile.ID)
	require.True(t, snap.IsAdmin)
}

func TestBootstrap_ValidSessionFetchesProfile(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))

	m := f.started(t)
	require.NoError(t, m.WaitReady(context.Background()))

	snap := m.Snapshot()
	require.Equal(t, session.StateReady, snap.State)
	require.Equal(t, adaID, snap.User.ID)
	require.True(t, snap.Profile.IsAdmin)
	require.True(t, snap.IsAdmin)
	require.False(t, snap.Loading)

	require.Equal(t, adaID, f.cached(t).ID)
	require.Equal(t, []string{adaID}, f.tracker.startedFor())
	require.Eventually(t, func() bool { return f.tracker.touchCount() == 1 }, time.Second, 5*time.Millisecond)

	// the INITIAL_SESSION emitted on subscribe must not trigger a second load
	require.Equal(t, 1, f.repo.FetchCount(adaID))
}

func TestBootstrap_AlwaysForcesFetchEvenWithCache(t *testing.T) {
	f := setupTestFixture(t)
	stale := adaProfile()
	stale.FirstName = "Old"
	require.NoError(t, f.cache.Save(stale))
	f.backend.SetSession(fakebackend.SessionFor(adaID))

	m := f.started(t)
	require.Equal(t, 1, f.repo.FetchCount(adaID))
	require.Equal(t, "Ada", m.Snapshot().Profile.FirstName)
	require.Equal(t, "Ada", f.cached(t).FirstName)
}

func TestBootstrap_DiscardsCacheOfAnotherUserBeforeFetch(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.cache.Save(adaProfile()))
	f.backend.SetSession(fakebackend.SessionFor(alanID))

	m := f.newManager(t)
	require.Equal(t, adaID, m.Snapshot().Profile.ID)

	release := f.repo.HoldFetches()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Start(context.Background())
	}()

	require.Eventually(t, func() bool { return f.repo.FetchCount(alanID) == 1 }, time.Second, 5*time.Millisecond)
	snap := m.Snapshot()
	require.Nil(t, snap.Profile)
	require.False(t, snap.IsAdmin)
	require.True(t, snap.Loading)
	require.Equal(t, session.StateProfileLoading, snap.State)
	require.Nil(t, f.cached(t))

	release()
	<-done

	snap = m.Snapshot()
	require.Equal(t, alanID, snap.Profile.ID)
	require.False(t, snap.IsAdmin)
	require.False(t, snap.Loading)
}

func TestBootstrap_NoSession(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.cache.Save(adaProfile()))

	m := f.started(t)
	snap := m.Snapshot()
	require.Equal(t, session.StateSignedOut, snap.State)
	require.Nil(t, snap.User)
	require.Nil(t, snap.Profile)
	require.False(t, snap.IsAdmin)
	require.False(t, snap.Loading)
	require.Equal(t, 0, f.repo.FetchCount(adaID))
}

func TestBootstrap_SessionErrorIsSignedOut(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSessionError(errors.New("network down"))

	m := f.started(t)
	require.NoError(t, m.WaitReady(context.Background()))
	snap := m.Snapshot()
	require.Equal(t, session.StateSignedOut, snap.State)
	require.False(t, snap.Loading)
	require.Nil(t, snap.User)
}

func TestBootstrap_LoadingClearsOnEveryExitPath(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *testFixture)
	}{
		{"success", func(f *testFixture) {}},
		{"not found", func(f *testFixture) { f.repo.Delete(adaID) }},
		{"transient error", func(f *testFixture) { f.repo.SetFetchError(adaID, errors.New("502")) }},
		{"timeout", func(f *testFixture) { f.repo.SetFetchDelay(200 * time.Millisecond) }},
		{"decode error", func(f *testFixture) {
			f.repo.SetFetchError(adaID, profiles.ErrDecode)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.backend.SetSession(fakebackend.SessionFor(adaID))
			tt.setup(f)

			m := f.newManager(t, session.WithFetchTimeout(20*time.Millisecond))
			var mu sync.Mutex
			var seen []session.Snapshot
			m.OnChange(func(s session.Snapshot) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, s)
			})
			m.Start(context.Background())

			require.False(t, m.Snapshot().Loading)
			require.Equal(t, session.StateReady, m.Snapshot().State)
			mu.Lock()
			defer mu.Unlock()
			require.NotEmpty(t, seen)
			require.False(t, seen[len(seen)-1].Loading)
		})
	}
}

func TestLoadProfile_TimeoutFallsBackToSameUserCache(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.cache.Save(adaProfile()))
	f.repo.SetFetchDelay(300 * time.Millisecond)
	f.backend.SetSession(fakebackend.SessionFor(adaID))

	start := time.Now()
	m := f.started(t, session.WithFetchTimeout(20*time.Millisecond))
	require.Less(t, time.Since(start), 250*time.Millisecond)

	snap := m.Snapshot()
	require.Equal(t, adaProfile(), snap.Profile)
	require.True(t, snap.IsAdmin)
	require.False(t, snap.Loading)

	// no success, so no last-login touch
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, f.tracker.touchCount())
}

func TestLoadProfile_TimeoutWithoutCacheClears(t *testing.T) {
	f := setupTestFixture(t)
	f.repo.SetFetchDelay(300 * time.Millisecond)
	f.backend.SetSession(fakebackend.SessionFor(adaID))

	m := f.started(t, session.WithFetchTimeout(20*time.Millisecond))
	snap := m.Snapshot()
	require.Nil(t, snap.Profile)
	require.False(t, snap.IsAdmin)
	require.False(t, snap.Loading)
	require.Equal(t, adaID, snap.User.ID)
}

func TestLoadProfile_TransientErrorFallsBackToSameUserCache(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.cache.Save(adaProfile()))
	f.repo.SetFetchError(adaID, errors.New("503 service unavailable"))
	f.backend.SetSession(fakebackend.SessionFor(adaID))

	m := f.started(t)
	snap := m.Snapshot()
	require.Equal(t, adaProfile(), snap.Profile)
	require.True(t, snap.IsAdmin)
	require.NotNil(t, f.cached(t))
}

func TestLoadProfile_TransientErrorWithoutCacheClears(t *testing.T) {
	f := setupTestFixture(t)
	f.repo.SetFetchError(adaID, errors.New("503 service unavailable"))
	f.backend.SetSession(fakebackend.SessionFor(adaID))

	m := f.started(t)
	snap := m.Snapshot()
	require.Nil(t, snap.Profile)
	require.False(t, snap.IsAdmin)
}

func TestLoadProfile_NotFoundIsAuthoritative(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.cache.Save(adaProfile()))
	f.repo.Delete(adaID)
	f.backend.SetSession(fakebackend.SessionFor(adaID))

	m := f.started(t)
	snap := m.Snapshot()
	require.Nil(t, snap.Profile)
	require.False(t, snap.IsAdmin)
	require.False(t, snap.Loading)
	require.Nil(t, f.cached(t))
}

func TestLoadProfile_DecodeErrorIsTransient(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.started(t)
	require.NotNil(t, f.cached(t))

	// the backend now answers with a row that does not fit the schema
	f.repo.SetFetchError(adaID, profiles.ErrDecode)
	m.LoadProfile(context.Background(), adaID, true)
	require.Equal(t, adaID, m.Snapshot().Profile.ID)
}

func TestLoadProfile_IsAdminComesFromFlagNotRole(t *testing.T) {
	f := setupTestFixture(t)
	p := adaProfile()
	p.IsAdmin = false
	p.Role = profiles.RoleAdmin
	f.repo.Upsert(p)
	f.backend.SetSession(fakebackend.SessionFor(adaID))

	m := f.started(t)
	require.False(t, m.IsAdmin())
	require.False(t, m.Snapshot().IsAdmin)
}

func TestLoadProfile_NonForcedSkipsCompleteProfile(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.started(t)
	require.Equal(t, 1, f.repo.FetchCount(adaID))

	m.LoadProfile(context.Background(), adaID, false)
	require.Equal(t, 1, f.repo.FetchCount(adaID))

	m.LoadProfile(context.Background(), adaID, true)
	require.Equal(t, 2, f.repo.FetchCount(adaID))
}

func TestLoadProfile_NonForcedWhileInFlightIsNoop(t *testing.T) {
	f := setupTestFixture(t)
	nameless := &profiles.Profile{ID: adaID}
	f.repo.Upsert(nameless)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.started(t)
	require.Equal(t, 1, f.repo.FetchCount(adaID))

	release := f.repo.HoldFetches()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.LoadProfile(context.Background(), adaID, true)
	}()
	require.Eventually(t, func() bool { return f.repo.FetchCount(adaID) == 2 }, time.Second, 5*time.Millisecond)

	m.LoadProfile(context.Background(), adaID, false)
	require.Equal(t, 2, f.repo.FetchCount(adaID))

	release()
	<-done
	require.False(t, m.Snapshot().Loading)
}

func TestLoadProfile_IgnoresUserWithoutSession(t *testing.T) {
	f := setupTestFixture(t)
	m := f.started(t)

	m.LoadProfile(context.Background(), adaID, true)
	require.Equal(t, 0, f.repo.FetchCount(adaID))
	require.Equal(t, session.StateSignedOut, m.Snapshot().State)
}

func TestSignedIn_WhileFetchInFlightIsIgnored(t *testing.T) {
	f := setupTestFixture(t)
	m := f.started(t)
	s := fakebackend.SessionFor(adaID)

	release := f.repo.HoldFetches()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.HandleAuthEvent(context.Background(), backend.EventSignedIn, s)
	}()
	require.Eventually(t, func() bool { return f.repo.FetchCount(adaID) == 1 }, time.Second, 5*time.Millisecond)

	m.HandleAuthEvent(context.Background(), backend.EventSignedIn, s)

	release()
	<-done
	require.Equal(t, 1, f.repo.FetchCount(adaID))
	require.Equal(t, adaID, m.Snapshot().Profile.ID)
}

func TestSignedIn_PasswordSignInLoadsProfile(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.backend.AddUser(adaID, "ada@example.com", testPassword)
	require.NoError(t, err)
	m := f.started(t)
	require.Equal(t, session.StateSignedOut, m.Snapshot().State)

	_, err = f.backend.SignInWithPassword(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)

	snap := m.Snapshot()
	require.Equal(t, session.StateReady, snap.State)
	require.Equal(t, adaID, snap.User.ID)
	require.True(t, snap.IsAdmin)
	require.Equal(t, []string{adaID}, f.tracker.startedFor())
}

func TestSignedIn_AdoptsSameUserCacheWithoutNetwork(t *testing.T) {
	f := setupTestFixture(t)
	m := f.started(t)
	require.NoError(t, f.cache.Save(adaProfile()))

	f.backend.Emit(backend.EventSignedIn, fakebackend.SessionFor(adaID))

	snap := m.Snapshot()
	require.Equal(t, adaProfile(), snap.Profile)
	require.True(t, snap.IsAdmin)
	require.False(t, snap.Loading)
	require.Equal(t, session.StateReady, snap.State)
	require.Equal(t, 0, f.repo.FetchCount(adaID))
	require.Equal(t, adaID, f.tracker.TrackedUser())
}

func TestSignedIn_ForeignCacheIsDiscarded(t *testing.T) {
	f := setupTestFixture(t)
	m := f.started(t)
	require.NoError(t, f.cache.Save(alanProfile()))

	f.backend.Emit(backend.EventSignedIn, fakebackend.SessionFor(adaID))

	require.Equal(t, 1, f.repo.FetchCount(adaID))
	require.Equal(t, adaID, m.Snapshot().Profile.ID)
	require.Equal(t, adaID, f.cached(t).ID)
}

func TestAuthEvent_UserSwitch(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.started(t)
	require.True(t, m.IsAdmin())

	f.backend.Emit(backend.EventSignedIn, fakebackend.SessionFor(alanID))

	snap := m.Snapshot()
	require.Equal(t, alanID, snap.User.ID)
	require.Equal(t, alanID, snap.Profile.ID)
	require.False(t, snap.IsAdmin)
	require.Equal(t, alanID, f.cached(t).ID)
	require.Equal(t, alanID, f.tracker.TrackedUser())
	require.Equal(t, []string{adaID, alanID}, f.tracker.startedFor())
}

func TestAuthEvent_SameUserCompleteProfileSkipsReload(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.started(t)

	f.backend.Emit(backend.EventSignedIn, fakebackend.SessionFor(adaID))
	require.NoError(t, f.backend.RefreshToken())
	f.backend.Emit(backend.EventUserUpdated, fakebackend.SessionFor(adaID))

	require.Equal(t, 1, f.repo.FetchCount(adaID))
	require.Equal(t, adaID, m.Snapshot().Profile.ID)
}

func TestAuthEvent_SignedOut(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.started(t)
	require.NotNil(t, f.cached(t))

	f.backend.Emit(backend.EventSignedOut, nil)

	snap := m.Snapshot()
	require.Equal(t, session.StateSignedOut, snap.State)
	require.Nil(t, snap.User)
	require.Nil(t, snap.Profile)
	require.False(t, snap.IsAdmin)
	require.False(t, snap.Loading)
	require.Nil(t, f.cached(t))
	require.Empty(t, f.tracker.TrackedUser())
}

func TestAuthEvent_LateFetchForSignedOutUserIsDropped(t *testing.T) {
	f := setupTestFixture(t)
	m := f.started(t)

	release := f.repo.HoldFetches()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.HandleAuthEvent(context.Background(), backend.EventSignedIn, fakebackend.SessionFor(adaID))
	}()
	require.Eventually(t, func() bool { return f.repo.FetchCount(adaID) == 1 }, time.Second, 5*time.Millisecond)

	m.HandleAuthEvent(context.Background(), backend.EventSignedOut, nil)
	release()
	<-done

	snap := m.Snapshot()
	require.Nil(t, snap.Profile)
	require.Nil(t, snap.User)
	require.False(t, snap.Loading)
	require.Equal(t, session.StateSignedOut, snap.State)
	require.Nil(t, f.cached(t))
}

func TestSignOut(t *testing.T) {
	t.Run("success clears everything", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.SetSession(fakebackend.SessionFor(adaID))
		m := f.started(t)

		require.NoError(t, m.SignOut(context.Background()))
		snap := m.Snapshot()
		require.Nil(t, snap.User)
		require.Nil(t, snap.Profile)
		require.False(t, snap.IsAdmin)
		require.Nil(t, f.cached(t))
		require.Empty(t, f.tracker.TrackedUser())
	})

	t.Run("backend failure keeps local state", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.SetSession(fakebackend.SessionFor(adaID))
		f.backend.SetSignOutError(errors.New("network down"))
		m := f.started(t)

		err := m.SignOut(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "network down")

		snap := m.Snapshot()
		require.Equal(t, adaID, snap.User.ID)
		require.Equal(t, adaID, snap.Profile.ID)
		require.True(t, snap.IsAdmin)
		require.Empty(t, f.tracker.TrackedUser())
	})
}

func TestClose_Unsubscribes(t *testing.T) {
	f := setupTestFixture(t)
	m := f.started(t)
	require.Equal(t, 1, f.backend.ListenerCount())

	m.Close()
	require.Equal(t, 0, f.backend.ListenerCount())
}

func TestSnapshot_IsACopy(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.started(t)

	snap := m.Snapshot()
	snap.Profile.IsAdmin = false
	snap.Profile.FirstName = "Mallory"
	require.True(t, m.Snapshot().Profile.IsAdmin)
	require.Equal(t, "Ada", m.Snapshot().Profile.FirstName)
}

// wrongRowRepo answers every fetch with somebody else's row
type wrongRowRepo struct {
	*fakeprofilerepo.FakeProfileRepo
}

func (r wrongRowRepo) GetByID(ctx context.Context, userID string) (*profiles.Profile, error) {
	return alanProfile(), nil
}

func TestLoadProfile_RowForAnotherUserIsRejected(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.cache.Save(adaProfile()))
	f.backend.SetSession(fakebackend.SessionFor(adaID))

	m, err := session.NewManager(session.Deps{
		Auth:     f.backend,
		Profiles: wrongRowRepo{f.repo},
		Cache:    f.cache,
		Activity: f.tracker,
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	m.Start(context.Background())

	snap := m.Snapshot()
	require.Equal(t, adaID, snap.Profile.ID)
	require.Equal(t, adaID, f.cached(t).ID)
}

func TestSignedIn_AfterSignOutDuringFetchLoadsNewUser(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.started(t)

	release := f.repo.HoldFetches()
	defer release()
	reload := make(chan struct{})
	go func() {
		defer close(reload)
		m.LoadProfile(context.Background(), adaID, true)
	}()
	require.Eventually(t, func() bool { return f.repo.FetchCount(adaID) == 2 }, time.Second, 5*time.Millisecond)

	m.HandleAuthEvent(context.Background(), backend.EventSignedOut, nil)
	signedIn := make(chan struct{})
	go func() {
		defer close(signedIn)
		m.HandleAuthEvent(context.Background(), backend.EventSignedIn, fakebackend.SessionFor(alanID))
	}()
	require.Eventually(t, func() bool { return f.repo.FetchCount(alanID) == 1 }, time.Second, 5*time.Millisecond)

	release()
	<-reload
	<-signedIn

	snap := m.Snapshot()
	require.Equal(t, alanID, snap.User.ID)
	require.Equal(t, alanID, snap.Profile.ID)
	require.False(t, snap.IsAdmin)
	require.False(t, snap.Loading)
	require.Equal(t, session.StateReady, snap.State)
	require.Equal(t, alanID, f.cached(t).ID)
}

func TestSignedIn_DuringBootstrapFetchForAnotherUser(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.newManager(t)

	release := f.repo.HoldFetches()
	defer release()
	started := make(chan struct{})
	go func() {
		defer close(started)
		m.Start(context.Background())
	}()
	require.Eventually(t, func() bool { return f.repo.FetchCount(adaID) == 1 }, time.Second, 5*time.Millisecond)

	signedIn := make(chan struct{})
	go func() {
		defer close(signedIn)
		m.HandleAuthEvent(context.Background(), backend.EventSignedIn, fakebackend.SessionFor(alanID))
	}()
	require.Eventually(t, func() bool { return f.repo.FetchCount(alanID) == 1 }, time.Second, 5*time.Millisecond)

	release()
	<-started
	<-signedIn

	snap := m.Snapshot()
	require.Equal(t, alanID, snap.User.ID)
	require.Equal(t, alanID, snap.Profile.ID)
	require.False(t, snap.IsAdmin)
	require.False(t, snap.Loading)
	require.Equal(t, alanID, f.tracker.TrackedUser())
}

func TestLoadProfile_CallerCancelKeepsProfile(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.started(t)
	require.NoError(t, f.cache.Clear())

	release := f.repo.HoldFetches()
	defer release()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.LoadProfile(ctx, adaID, true)
	}()
	require.Eventually(t, func() bool { return f.repo.FetchCount(adaID) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	snap := m.Snapshot()
	require.Equal(t, adaID, snap.Profile.ID)
	require.True(t, snap.IsAdmin)
	require.False(t, snap.Loading)
	require.Equal(t, session.StateReady, snap.State)
}

func TestClose_BeforeStartNeverSubscribes(t *testing.T) {
	f := setupTestFixture(t)
	m := f.newManager(t)

	m.Close()
	m.Start(context.Background())
	require.Equal(t, 0, f.backend.ListenerCount())
}

func TestClose_DuringBootstrapNeverSubscribes(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.SetSession(fakebackend.SessionFor(adaID))
	m := f.newManager(t)

	release := f.repo.HoldFetches()
	defer release()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Start(context.Background())
	}()
	require.Eventually(t, func() bool { return f.repo.FetchCount(adaID) == 1 }, time.Second, 5*time.Millisecond)

	m.Close()
	<-done
	require.Equal(t, 0, f.backend.ListenerCount())
}
