package fakeprofilerepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/backoffice-session/internal/utils"
	"github.com/jrsteele09/backoffice-session/profiles"
)

var _ profiles.Repo = (*FakeProfileRepo)(nil)

// FakeProfileRepo is an in-memory profiles.Repo that records calls and can
// be told to fail, stall or hold fetches for tests.
type FakeProfileRepo struct {
	profiles    map[string]*profiles.Profile
	fetchErrs   map[string]error
	fetchDelay  time.Duration
	gate        chan struct{}
	rpcErr      error
	directErr   error
	fetchCalls  map[string]int
	rpcCalls    map[string]int
	directCalls map[string]int
	lock        sync.RWMutex
}

func NewFakeProfileRepo() *FakeProfileRepo {
	return &FakeProfileRepo{
		profiles:    make(map[string]*profiles.Profile),
		fetchErrs:   make(map[string]error),
		fetchCalls:  make(map[string]int),
		rpcCalls:    make(map[string]int),
		directCalls: make(map[string]int),
	}
}

func (r *FakeProfileRepo) Upsert(p *profiles.Profile) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.profiles[p.ID] = p.Clone()
}

func (r *FakeProfileRepo) Delete(userID string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.profiles, userID)
}

// SetFetchError makes GetByID for userID fail with err. A nil err clears it.
func (r *FakeProfileRepo) SetFetchError(userID string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err == nil {
		delete(r.fetchErrs, userID)
		return
	}
	r.fetchErrs[userID] = err
}

// SetFetchDelay stalls every GetByID by d, ignoring the context.
func (r *FakeProfileRepo) SetFetchDelay(d time.Duration) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.fetchDelay = d
}

// HoldFetches blocks GetByID until the returned release func is called.
func (r *FakeProfileRepo) HoldFetches() (release func()) {
	r.lock.Lock()
	defer r.lock.Unlock()
	gate := make(chan struct{})
	r.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			r.lock.Lock()
			if r.gate == gate {
				r.gate = nil
			}
			r.lock.Unlock()
			close(gate)
		})
	}
}

func (r *FakeProfileRepo) SetUpdateLastLoginError(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.rpcErr = err
}

func (r *FakeProfileRepo) SetDirectUpdateError(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.directErr = err
}

func (r *FakeProfileRepo) GetByID(ctx context.Context, userID string) (*profiles.Profile, error) {
	r.lock.Lock()
	r.fetchCalls[userID]++
	gate := r.gate
	delay := r.fetchDelay
	r.lock.Unlock()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	r.lock.RLock()
	defer r.lock.RUnlock()
	if err, ok := r.fetchErrs[userID]; ok {
		return nil, err
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, profiles.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *FakeProfileRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.rpcCalls[userID]++
	if r.rpcErr != nil {
		return r.rpcErr
	}
	if p, ok := r.profiles[userID]; ok {
		p.LastLoginAt = utils.Ptr(time.Now().UTC())
	}
	return nil
}

func (r *FakeProfileRepo) SetLastLoginAt(ctx context.Context, userID string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.directCalls[userID]++
	if r.directErr != nil {
		return r.directErr
	}
	p, ok := r.profiles[userID]
	if !ok {
		return profiles.ErrNotFound
	}
	p.LastLoginAt = utils.Ptr(at)
	return nil
}

func (r *FakeProfileRepo) FetchCount(userID string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.fetchCalls[userID]
}

func (r *FakeProfileRepo) UpdateLastLoginCount(userID string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.rpcCalls[userID]
}

func (r *FakeProfileRepo) DirectUpdateCount(userID string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.directCalls[userID]
}
