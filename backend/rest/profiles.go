package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/jrsteele09/backoffice-session/internal/errors"
	"github.com/jrsteele09/backoffice-session/profiles"
)

func profileFilter(userID string) string {
	q := url.Values{}
	q.Set("id", "eq."+userID)
	return q.Encode()
}

// GetByID reads the profile row for userID. An empty result is ErrNotFound;
// a row that does not decode is ErrDecode.
func (c *Client) GetByID(ctx context.Context, userID string) (*profiles.Profile, error) {
	var rows []json.RawMessage
	path := restPath + "/" + profileTable + "?select=*&" + profileFilter(userID)
	if err := c.do(ctx, c.tokenSource(ctx), http.MethodGet, path, nil, nil, &rows); err != nil {
		return nil, apperrors.Wrapf(err, "[GetByID] %s", userID)
	}
	if len(rows) == 0 {
		return nil, profiles.ErrNotFound
	}
	p, err := profiles.Decode(rows[0])
	if err != nil {
		return nil, apperrors.Wrapf(err, "[GetByID] %s", userID)
	}
	if p.ID != userID {
		return nil, apperrors.Wrapf(profiles.ErrDecode, "[GetByID] row id %q for %q", p.ID, userID)
	}
	return p, nil
}

// UpdateLastLogin calls the update_last_login procedure.
func (c *Client) UpdateLastLogin(ctx context.Context, userID string) error {
	body := map[string]string{"user_id": userID}
	if err := c.do(ctx, c.tokenSource(ctx), http.MethodPost, restPath+"/rpc/"+lastLoginRPC, body, nil, nil); err != nil {
		return apperrors.Wrapf(err, "[UpdateLastLogin] %s", userID)
	}
	return nil
}

// SetLastLoginAt patches last_login_at on the profile row.
func (c *Client) SetLastLoginAt(ctx context.Context, userID string, at time.Time) error {
	body := map[string]string{"last_login_at": at.UTC().Format(time.RFC3339Nano)}
	headers := map[string]string{"Prefer": "return=minimal"}
	path := restPath + "/" + profileTable + "?" + profileFilter(userID)
	if err := c.do(ctx, c.tokenSource(ctx), http.MethodPatch, path, body, headers, nil); err != nil {
		return apperrors.Wrapf(err, "[SetLastLoginAt] %s", userID)
	}
	return nil
}
