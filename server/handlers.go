package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/backoffice-session/guard"
	apperrors "github.com/jrsteele09/backoffice-session/internal/errors"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HealthHandler reports liveness and the manager's lifecycle state
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"state":  s.manager.Snapshot().State,
		})
	}
}

// LoginRequiredHandler is where the guard sends visitors without a session.
func (s *Server) LoginRequiredHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":    "login_required",
			"signin":   RouteAPISignIn,
			"redirect": r.URL.Query().Get("redirect"),
		})
	}
}

// SessionHandler returns the current snapshot without waiting for it to settle.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.manager.Snapshot())
	}
}

// SignInHandler signs in with email and password. The backend's SIGNED_IN
// event drives the manager, so the answer already carries the profile.
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "body must be JSON with email and password", http.StatusBadRequest)
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			writeJSONError(w, "invalid_request", "email and password are required", http.StatusBadRequest)
			return
		}

		if _, err := s.signer.SignInWithPassword(r.Context(), req.Email, req.Password); err != nil {
			if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
				writeJSONError(w, "invalid_credentials", "Invalid email or password", http.StatusUnauthorized)
				return
			}
			logError(r.Method, r.URL.Path, err)
			writeJSONError(w, "backend_error", "sign in failed", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, s.manager.Snapshot())
	}
}

// SignOutHandler ends the session. A backend refusal leaves the session in place.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.manager.SignOut(r.Context()); err != nil {
			logError(r.Method, r.URL.Path, err)
			writeJSONError(w, "backend_error", "sign out failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReloadProfileHandler forces a profile fetch for the signed-in user.
func (s *Server) ReloadProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := guard.SnapshotFromContext(r.Context())
		if !ok || snap.User == nil {
			writeJSONError(w, "login_required", "no session", http.StatusUnauthorized)
			return
		}
		// the fetch is shared state; a client hanging up must not cancel it
		s.manager.LoadProfile(context.WithoutCancel(r.Context()), snap.User.ID, true)
		writeJSON(w, http.StatusOK, s.manager.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
