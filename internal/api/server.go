// Copyright (c) 2026 Stokria. All rights reserved.

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.

The authentication pipeline is mounted per route group, never globally: every
protected group composes AuthenticateJWT, then ResolveCompanyContext, then its
authorization gates, in that order.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stokria/stokria/internal/platform/audit"
	"github.com/stokria/stokria/internal/platform/config"
	"github.com/stokria/stokria/internal/platform/constants"
	"github.com/stokria/stokria/internal/platform/metrics"
	"github.com/stokria/stokria/internal/platform/middleware"
	"github.com/stokria/stokria/internal/platform/sec"
	"github.com/stokria/stokria/internal/users/auth"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth handles the session lifecycle routes (register, login, refresh).
	Auth *auth.Handler
}

// Gates bundles the dependencies of the authentication pipeline.
type Gates struct {
	// Verifier checks access token signatures and expiry.
	Verifier middleware.TokenVerifier

	// Users resolves verified claims into live account snapshots.
	Users middleware.UserDirectory

	// Events is the security event log every gate reports to.
	Events audit.Recorder

	// Matrix is the static (resource, role) -> actions permission table.
	Matrix *sec.Matrix
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, gates Gates, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution. Note the absence of
	// authentication here: gates are composed per route group below.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated probes for container orchestration and scraping.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	authGate := middleware.AuthenticateJWT(gates.Verifier, gates.Users, gates.Events)

	// # Application API
	// Domain-specific route groups mounted under versioned prefix.
	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/auth", h.Auth.Routes(authGate))

		// Tenant-scoped API: every request below runs the full pipeline.
		api.Route("/companies/{companyId}", func(company chi.Router) {
			company.Use(authGate)
			company.Use(middleware.ResolveCompanyContext(gates.Events))

			// Management surface, gated on role lists.
			company.With(middleware.RequireOwnerOrAdmin(gates.Events)).
				Get("/settings", accessProbe)
			company.With(middleware.RequireOwner(gates.Events)).
				Delete("/settings", accessProbe)

			// Resource surface, gated on the permission matrix per verb.
			mountResource(company, gates, "/products", sec.ResourceProduct)
			mountResource(company, gates, "/categories", sec.ResourceCategory)
			mountResource(company, gates, "/sales", sec.ResourceSale)
			mountResource(company, gates, "/purchases", sec.ResourcePurchase)
			mountResource(company, gates, "/users", sec.ResourceUser)
			mountResource(company, gates, "/invoices", sec.ResourceInvoice)
			mountResource(company, gates, "/warranties", sec.ResourceWarranty)
			mountResource(company, gates, "/suppliers", sec.ResourceSupplier)
			mountResource(company, gates, "/services", sec.ResourceService)
		})
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// mountResource registers the RESTful verb set for one protected resource,
// mapping each HTTP method onto its matrix action. The routes terminate at
// the access probe; the inventory/sales CRUD services that will replace it
// plug in behind the exact same gates.
func mountResource(router chi.Router, gates Gates, pattern string, resource sec.ResourceType) {
	permit := func(action sec.Action) func(http.Handler) http.Handler {
		return middleware.CheckResourcePermission(gates.Matrix, gates.Events, resource, action)
	}

	router.Route(pattern, func(r chi.Router) {
		r.With(permit(sec.ActionRead)).Get("/", accessProbe)
		r.With(permit(sec.ActionCreate)).Post("/", accessProbe)
		r.With(permit(sec.ActionRead)).Get("/{id}", accessProbe)
		r.With(permit(sec.ActionUpdate)).Put("/{id}", accessProbe)
		r.With(permit(sec.ActionDelete)).Delete("/{id}", accessProbe)
	})
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
