// Package profilecache holds the single-slot, persisted copy of the last
// fetched profile. The slot is not keyed by user: readers must compare the
// cached id against the current session before trusting it.
package profilecache

import (
	"github.com/jrsteele09/backoffice-session/profiles"
)

// Store is a single-slot profile cache. Writes are last-write-wins.
type Store interface {
	// Load returns the cached profile, or nil when the slot is empty
	Load() (*profiles.Profile, error)

	// Save overwrites the slot
	Save(p *profiles.Profile) error

	// Clear empties the slot; clearing an empty slot is not an error
	Clear() error
}
