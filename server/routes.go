package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginRequiredHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAPISignIn, ChainMiddleware(s.SignInHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAPISignOut, ChainMiddleware(s.SignOutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAPIProfileReload, ChainMiddleware(s.ReloadProfileHandler(), s.APIMiddleware(s.guard.RequireSession())...))

	s.RegisterRouteFunc("GET "+RouteAdminPing, ChainMiddleware(s.AdminPingHandler(), s.APIMiddleware(s.guard.RequireAdmin())...))
}
