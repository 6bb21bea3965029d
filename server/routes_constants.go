package server

// Route path constants
const (
	RouteLogin = "/login"

	// Session API
	RouteAPISession       = "/api/session"
	RouteAPISignIn        = "/api/session/signin"
	RouteAPISignOut       = "/api/session/signout"
	RouteAPIProfileReload = "/api/profile/reload"

	// Admin
	RouteAdminPing = "/admin/ping"

	RouteHealth = "/healthz"
)
