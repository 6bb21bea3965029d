package profilecache

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/backoffice-session/profiles"
	"github.com/rs/zerolog/log"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps the slot in a JSON file, the on-disk analogue of browser
// local storage.
type FileStore struct {
	path string
	lock sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: abs}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Load treats an unreadable slot as empty and removes it.
func (s *FileStore) Load() (*profiles.Profile, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	p, err := profiles.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Discarding corrupt profile cache")
		_ = os.Remove(s.path)
		return nil, nil
	}
	return p, nil
}

func (s *FileStore) Save(p *profiles.Profile) error {
	data, err := marshalProfile(p)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
