// SPDX-License-Identifier: MIT

// Package api provides the HTTP surface of the webpanel daemon.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/vurafps/Webpanel/internal/api/middleware"
	"github.com/vurafps/Webpanel/internal/config"
	"github.com/vurafps/Webpanel/internal/ratelimit"
	"github.com/vurafps/Webpanel/internal/session/manager"
)

// Server holds the handler dependencies. The orchestrator is the only way
// handlers touch session state; the QR directory is served read-only.
type Server struct {
	cfg          config.AppConfig
	orchestrator *manager.Orchestrator
	loginLimiter *ratelimit.Limiter
}

// New constructs the API server.
func New(cfg config.AppConfig, orch *manager.Orchestrator) *Server {
	limCfg := ratelimit.DefaultConfig()
	if cfg.GlobalRatePerSecond > 0 {
		limCfg.GlobalRate = rate.Limit(cfg.GlobalRatePerSecond)
	}
	if cfg.GlobalBurst > 0 {
		limCfg.GlobalBurst = cfg.GlobalBurst
	}
	if cfg.LoginRatePerSecond > 0 {
		limCfg.PerIPRate = rate.Limit(cfg.LoginRatePerSecond)
	}
	if cfg.LoginBurst > 0 {
		limCfg.PerIPBurst = cfg.LoginBurst
	}
	return &Server{
		cfg:          cfg,
		orchestrator: orch,
		loginLimiter: ratelimit.New(limCfg),
	}
}

// Router assembles the middleware stack and all routes.
func (s *Server) Router() *chi.Mux {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:        true,
		AllowedOrigins:    s.cfg.AllowedOrigins,
		EnableMetrics:     true,
		EnableLogging:     true,
		EnableRateLimit:   true,
		RequestsPerMinute: s.cfg.APIRequestsPerMinute,
	})

	r.Post("/login", s.handleLogin)
	r.Get("/login-status/{username}", s.handleLoginStatus)
	r.Post("/start-idle", s.handleStartIdle)
	r.Post("/stop-idle", s.handleStopIdle)
	r.Get("/idle-status/{username}", s.handleIdleStatus)
	r.Post("/logout", s.handleLogout)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// QR artifacts, read-only
	r.Handle("/qr/*", http.StripPrefix("/qr", s.qrFileServer()))

	return r
}
