package profiles

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/backoffice-session/internal/utils"
)

// RoleType is the free-text role column of the profiles table
type RoleType string

const (
	RoleAdmin    RoleType = "admin"
	RoleManager  RoleType = "manager"
	RoleEmployee RoleType = "employee"
	RoleCustomer RoleType = "customer"
)

// Profile is the business identity of the authenticated actor.
// ID always equals the auth user ID it belongs to.
type Profile struct {
	ID          string     `json:"id"`                      // Auth user ID
	FirstName   string     `json:"first_name,omitempty"`    // Given name
	LastName    string     `json:"last_name,omitempty"`     // Family name
	IsAdmin     bool       `json:"is_admin"`                // Admin flag, the only source of admin rights
	Role        RoleType   `json:"role,omitempty"`          // admin|manager|employee|customer
	LastLoginAt *time.Time `json:"last_login_at,omitempty"` // Updated by the activity heartbeat
}

// HasName reports whether both name fields are populated.
// A profile without names is treated as incomplete and reloaded.
func (p *Profile) HasName() bool {
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.FirstName) != "" && strings.TrimSpace(p.LastName) != ""
}

// BelongsTo reports whether the profile is the record of userID.
func (p *Profile) BelongsTo(userID string) bool {
	return p != nil && userID != "" && p.ID == userID
}

// CompleteFor is BelongsTo plus HasName.
func (p *Profile) CompleteFor(userID string) bool {
	return p.BelongsTo(userID) && p.HasName()
}

// DisplayName joins first and last name.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.LastLoginAt = utils.ClonePtr(p.LastLoginAt)
	return &c
}

// Validate checks the fields a profile row must carry.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: empty profile", ErrDecode)
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: profile id is required", ErrDecode)
	}
	return nil
}

// Decode parses a profile row. Malformed payloads and rows without an id
// are reported as ErrDecode.
func Decode(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
