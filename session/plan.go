package session

import (
	"github.com/jrsteele09/backoffice-session/backend"
	"github.com/jrsteele09/backoffice-session/profiles"
)

// Plan is what the manager does in response to an auth event.
type Plan int

const (
	// PlanIgnore drops the event
	PlanIgnore Plan = iota
	// PlanKeepProfile records the (possibly new) session and keeps the profile
	PlanKeepProfile
	// PlanSignOut clears user, profile and cache and stops activity tracking
	PlanSignOut
	// PlanSwitchUser discards the foreign profile and cache, then force-fetches
	PlanSwitchUser
	// PlanAdoptCache takes the same-user cached profile without a network call
	PlanAdoptCache
	// PlanFetch force-fetches the profile
	PlanFetch
)

func (p Plan) String() string {
	switch p {
	case PlanIgnore:
		return "ignore"
	case PlanKeepProfile:
		return "keep_profile"
	case PlanSignOut:
		return "sign_out"
	case PlanSwitchUser:
		return "switch_user"
	case PlanAdoptCache:
		return "adopt_cache"
	case PlanFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// EventInput is everything PlanAuthEvent looks at.
type EventInput struct {
	Event     backend.AuthEvent
	UserID    string            // user of the event's session, "" when none
	Held      *profiles.Profile // profile currently exposed to consumers
	Cached    *profiles.Profile // content of the cache slot
	FetchBusy bool              // a fetch for this same signed-in user is in flight
}

// PlanAuthEvent decides how to react to an auth event. The checks run in
// order: the first match wins.
func PlanAuthEvent(in EventInput) Plan {
	if in.Event == backend.EventInitialSession {
		return PlanIgnore
	}
	if in.UserID == "" {
		return PlanSignOut
	}
	if in.Held != nil && in.Held.ID != in.UserID {
		return PlanSwitchUser
	}
	if in.Event == backend.EventTokenRefreshed || in.Event == backend.EventUserUpdated {
		return PlanKeepProfile
	}
	if in.Held.CompleteFor(in.UserID) {
		return PlanKeepProfile
	}
	if in.Event != backend.EventSignedIn {
		return PlanKeepProfile
	}
	if in.FetchBusy {
		return PlanIgnore
	}
	if in.Cached.CompleteFor(in.UserID) {
		return PlanAdoptCache
	}
	return PlanFetch
}
