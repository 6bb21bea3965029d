package fakebackend

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/backoffice-session/backend"
	apperrors "github.com/jrsteele09/backoffice-session/internal/errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

var (
	_ backend.AuthClient     = (*FakeBackend)(nil)
	_ backend.PasswordSigner = (*FakeBackend)(nil)
)

type account struct {
	user         backend.User
	passwordHash string
}

// FakeBackend is an in-memory auth backend. It keeps one current session,
// like a browser tab, and emits the same events as the hosted client.
type FakeBackend struct {
	accounts   map[string]*account // email -> account
	current    *backend.Session
	sessionErr error
	signOutErr error
	notifier   *backend.Notifier
	lock       sync.RWMutex
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		accounts: make(map[string]*account),
		notifier: backend.NewNotifier(),
	}
}

// AddUser registers an account and returns its user id. An empty id gets a UUID.
func (f *FakeBackend) AddUser(id, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", apperrors.Wrapf(err, "[AddUser] hash password")
	}
	if id == "" {
		id = uuid.NewString()
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	f.accounts[email] = &account{
		user:         backend.User{ID: id, Email: email, Raw: map[string]any{"id": id, "email": email}},
		passwordHash: string(hash),
	}
	return id, nil
}

// SetSession installs a restored session without emitting an event.
func (f *FakeBackend) SetSession(s *backend.Session) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.current = s.Clone()
}

// SessionFor builds a session for userID without touching backend state.
func SessionFor(userID string) *backend.Session {
	return &backend.Session{
		User: backend.User{ID: userID, Raw: map[string]any{"id": userID}},
		Token: &oauth2.Token{
			AccessToken: uuid.NewString(),
			TokenType:   "bearer",
			Expiry:      time.Now().Add(time.Hour),
		},
	}
}

func (f *FakeBackend) SetSessionError(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.sessionErr = err
}

func (f *FakeBackend) SetSignOutError(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.signOutErr = err
}

func (f *FakeBackend) GetCurrentSession(ctx context.Context) (*backend.Session, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.current.Clone(), nil
}

// OnAuthStateChange registers listener and immediately reports INITIAL_SESSION to it.
func (f *FakeBackend) OnAuthStateChange(listener backend.AuthListener) func() {
	unsubscribe := f.notifier.Subscribe(listener)

	f.lock.RLock()
	current := f.current.Clone()
	f.lock.RUnlock()

	listener(backend.EventInitialSession, current)
	return unsubscribe
}

func (f *FakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	f.lock.Lock()
	acc, ok := f.accounts[email]
	if !ok || bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(password)) != nil {
		f.lock.Unlock()
		return nil, apperrors.ErrInvalidCredentials
	}
	s := SessionFor(acc.user.ID)
	s.User = acc.user
	f.current = s
	f.lock.Unlock()

	f.notifier.Emit(backend.EventSignedIn, s)
	return s.Clone(), nil
}

func (f *FakeBackend) SignOut(ctx context.Context) error {
	f.lock.Lock()
	if f.signOutErr != nil {
		err := f.signOutErr
		f.lock.Unlock()
		return err
	}
	f.current = nil
	f.lock.Unlock()

	f.notifier.Emit(backend.EventSignedOut, nil)
	return nil
}

// RefreshToken rotates the current access token and emits TOKEN_REFRESHED.
func (f *FakeBackend) RefreshToken() error {
	f.lock.Lock()
	if f.current == nil {
		f.lock.Unlock()
		return apperrors.ErrSessionNotFound
	}
	f.current.Token = &oauth2.Token{
		AccessToken: uuid.NewString(),
		TokenType:   "bearer",
		Expiry:      time.Now().Add(time.Hour),
	}
	s := f.current.Clone()
	f.lock.Unlock()

	f.notifier.Emit(backend.EventTokenRefreshed, s)
	return nil
}

// Emit pushes an arbitrary event to the listeners, for tests that need
// out-of-order or duplicate delivery.
func (f *FakeBackend) Emit(event backend.AuthEvent, s *backend.Session) {
	f.notifier.Emit(event, s)
}

func (f *FakeBackend) ListenerCount() int {
	return f.notifier.Len()
}
