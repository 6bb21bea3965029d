package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/backoffice-session/backend"
	"github.com/jrsteele09/backoffice-session/guard"
	"github.com/jrsteele09/backoffice-session/internal/config"
	"github.com/jrsteele09/backoffice-session/session"
)

// SessionManager is the part of session.Manager the HTTP layer drives.
type SessionManager interface {
	guard.SnapshotSource
	LoadProfile(ctx context.Context, userID string, force bool)
	SignOut(ctx context.Context) error
}

var _ SessionManager = (*session.Manager)(nil)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	manager SessionManager
	signer  backend.PasswordSigner
	guard   *guard.Guard
}

func New(c config.Config, manager SessionManager, signer backend.PasswordSigner) (*Server, error) {
	if c == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if manager == nil {
		return nil, errors.New("[Server New] session manager is required")
	}
	if signer == nil {
		return nil, errors.New("[Server New] password signer is required")
	}

	g, err := guard.New(manager,
		guard.WithLoginPath(c.GetLoginPath()),
		guard.WithBackstop(c.GetBootstrapBackstop()),
	)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create route guard: %w", err)
	}

	s := &Server{
		env:     c.GetEnv(),
		mux:     http.NewServeMux(),
		config:  c,
		manager: manager,
		signer:  signer,
		guard:   g,
	}
	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}
