package rest

import (
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "github.com/jrsteele09/backoffice-session/internal/errors"
	"golang.org/x/oauth2"
)

// tokenFile persists the session token between runs. Writes go through a
// temp file and a rename so a crash never leaves a torn file behind.
type tokenFile struct {
	path string
}

func (f *tokenFile) load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, apperrors.Wrapf(err, "decode %s", f.path)
	}
	if tok.AccessToken == "" {
		return nil, nil
	}
	return &tok, nil
}

func (f *tokenFile) save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (f *tokenFile) clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
