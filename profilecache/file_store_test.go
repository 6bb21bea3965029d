package profilecache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/backoffice-session/profilecache"
	"github.com/jrsteele09/backoffice-session/profiles"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *profilecache.FileStore {
	t.Helper()
	s, err := profilecache.NewFileStore(filepath.Join(t.TempDir(), "cache", "profile.json"))
	require.NoError(t, err)
	return s
}

func TestFileStore_SingleSlot(t *testing.T) {
	s := newStore(t)

	p, err := s.Load()
	require.NoError(t, err)
	require.Nil(t, p)

	require.NoError(t, s.Save(&profiles.Profile{ID: "u1", FirstName: "Ada", LastName: "Lovelace", IsAdmin: true}))
	require.NoError(t, s.Save(&profiles.Profile{ID: "u2", FirstName: "Alan", LastName: "Turing"}))

	p, err = s.Load()
	require.NoError(t, err)
	require.Equal(t, "u2", p.ID)
	require.False(t, p.IsAdmin)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	p, err = s.Load()
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestFileStore_RejectsProfileWithoutID(t *testing.T) {
	s := newStore(t)
	err := s.Save(&profiles.Profile{FirstName: "Nobody"})
	require.ErrorIs(t, err, profiles.ErrDecode)
}

func TestFileStore_CorruptSlotIsEmpty(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"first_name":`), 0o600))

	p, err := s.Load()
	require.NoError(t, err)
	require.Nil(t, p)

	_, err = os.Stat(s.Path())
	require.True(t, os.IsNotExist(err))
}
