package profiles

import "errors"

var (
	// ErrNotFound means the user has no backing profile row. It is authoritative.
	ErrNotFound = errors.New("profile not found")
	// ErrDecode means the backend returned a row that does not match the profile schema.
	ErrDecode = errors.New("profile decode error")
)
