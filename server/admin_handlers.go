package server

import (
	"net/http"

	"github.com/jrsteele09/backoffice-session/guard"
)

// AdminPingHandler answers admins only; the guard turns everyone else away.
func (s *Server) AdminPingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, _ := guard.SnapshotFromContext(r.Context())
		resp := map[string]any{"ok": true}
		if snap.User != nil {
			resp["user_id"] = snap.User.ID
		}
		if snap.Profile != nil {
			resp["name"] = snap.Profile.DisplayName()
			resp["role"] = snap.Profile.Role
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
