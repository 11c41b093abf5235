// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"net/http"

	"attendance/internal/app"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig enables SSO login for the admin console when set.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	attendance  *app.AttendanceService
	sessions    *app.SessionService
	auth        *app.AuthService
	groups      *app.GroupService
	leaderboard *app.LeaderboardService
	oidcConfig  OIDCConfig
}

// New creates a Server wired to the given application services.
func New(at *app.AttendanceService, se *app.SessionService, au *app.AuthService, gr *app.GroupService, lb *app.LeaderboardService, oidcConfig OIDCConfig) *Server {
	return &Server{
		attendance:  at,
		sessions:    se,
		auth:        au,
		groups:      gr,
		leaderboard: lb,
		oidcConfig:  oidcConfig,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	api.HandleFunc("/auth/login", s.handleLogin)
	api.HandleFunc("/auth/login-id", s.handleLoginWithIdentification)
	api.HandleFunc("/auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("/auth/sso/callback", s.handleSSOCallback)

	authed := http.NewServeMux()
	authed.HandleFunc("/auth/me", s.handleMe)
	authed.HandleFunc("/attendance/scan", s.handleScan)
	authed.HandleFunc("/leaderboard", s.handleLeaderboard)
	authed.HandleFunc("/groups", s.handleGroups)
	authed.HandleFunc("/groups/join", s.handleGroupJoin)
	authed.HandleFunc("/groups/my-group", s.handleMyGroup)

	admin := http.NewServeMux()
	admin.HandleFunc("/admin/sessions", s.handleSessions)
	admin.HandleFunc("/admin/sessions/qr", s.handleSessionQR)
	admin.HandleFunc("/admin/sessions/deactivate", s.handleSessionDeactivate)
	admin.HandleFunc("/admin/users", s.handleCreateUser)
	admin.HandleFunc("/admin/users/sync", s.handleSyncUsers)
	admin.HandleFunc("/admin/groups/assign", s.handleGroupAssign)

	api.Handle("/auth/me", s.authMiddleware(authed))
	api.Handle("/attendance/", s.authMiddleware(authed))
	api.Handle("/leaderboard", s.authMiddleware(authed))
	api.Handle("/groups", s.authMiddleware(authed))
	api.Handle("/groups/", s.authMiddleware(authed))
	api.Handle("/admin/", s.authMiddleware(s.requireAdmin(admin)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	return s.loggingMiddleware(root)
}
