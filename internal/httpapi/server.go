// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package httpapi is a reference HTTP adapter for the user-and-session core.

It is not part of the core: no invariant of account lifecycle, credential
validation, or session issuance lives here. Every handler in this package
does nothing more than decode a request, call into [userservice.Service]
or [authstrategies.Strategies], and shape the result with [respond]. The
routing layer, the bearer-token wire format clients see over HTTP, and the
convenience JWT wrapper are all deliberately out of the core's scope — this
package exists only to demonstrate one way to plug the core into a real
server process.

Architecture mirrors the teacher's own [internal/api] composition root: a
chi router assembled once in [NewServer], wrapped in an [http.Server].
*/
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/yomira/internal/authstrategies"
	"github.com/taibuivan/yomira/internal/platform/config"
	"github.com/taibuivan/yomira/internal/platform/constants"
	"github.com/taibuivan/yomira/internal/platform/middleware"
)

// Server wraps the chi router and the [http.Server].
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// Handlers groups every HTTP handler this adapter exposes.
type Handlers struct {
	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc

	Session *SessionHandler
	Account *AccountHandler
}

// NewServer constructs the chi router with the middleware chain and
// registers every route this adapter serves.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, jwt *JWTIssuer, strategies *authstrategies.Strategies, h Handlers) *Server {
	rte := chi.NewRouter()

	rte.Use(middleware.RequestID())
	rte.Use(middleware.StructuredLogger(log))
	rte.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	rte.Use(middleware.RateLimit(ctx))
	rte.Use(middleware.PanicRecovery(log))
	rte.Use(Authenticate(jwt, strategies))
	rte.Use(middleware.CORS(cfg))
	rte.Use(chimw.CleanPath)

	rte.Get("/health", h.Liveness)
	rte.Get("/ready", h.Readiness)

	rte.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", h.Session.Register)
		r.Post("/login", h.Session.Login)
		r.Post("/refresh", h.Session.Refresh)
		r.Post("/forgot-password", h.Session.ForgotPassword)
		r.Post("/reset-password", h.Session.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Post("/logout", h.Session.Logout)
			r.Post("/logout-others", h.Session.LogoutOthers)
			r.Post("/logout-all", h.Session.LogoutAll)
		})
	})

	rte.Route("/api/v1/account", func(r chi.Router) {
		r.Use(RequireAuth)
		r.Post("/change-password", h.Account.ChangePassword)
		r.Post("/change-email", h.Account.ChangeEmail)
		r.Post("/change-phone", h.Account.ChangePhone)
		r.Get("/verify-email/{token}", h.Account.VerifyEmail)
		r.Post("/social/{provider}/link", h.Account.LinkSocial)
		r.Post("/social/{provider}/unlink", h.Account.UnlinkSocial)
		r.Post("/databases/{logicalName}", h.Account.AddUserDB)
		r.Delete("/databases/{physicalName}", h.Account.RemoveUserDB)
	})

	return &Server{
		router: rte,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           rte,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server is
// closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("httpapi server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
