package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-shop-api/internal/application/verification"
	"github.com/go-shop-api/internal/config"
	"github.com/go-shop-api/internal/domain"
	"github.com/go-shop-api/internal/transport/http/handler"
	appmiddleware "github.com/go-shop-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to code issuance/redemption,
	// on top of the persisted per-subject cooldown.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	verificationSvc := verification.NewService(verification.ServiceDeps{
		Store:    deps.VerificationRepo,
		Notifier: deps.Notifier,
		CodeTTL:  cfg.CodeTTL,
		Cooldown: cfg.IssueCooldown,
	})

	healthH := handler.NewHealthHandler()
	verificationH := handler.NewVerificationHandler(verificationSvc, cfg.CleanupRetention)
	reconciliationH := handler.NewReconciliationHandler(deps.Scheduler)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/verification-codes/request", verificationH.Request)
		r.With(sensitiveRL.Limit).Post("/verification-codes/verify", verificationH.Verify)

		// ── Admin routes ─────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)
			r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

			r.Post("/admin/reconciliation/{action}", reconciliationH.Action)
			r.Get("/admin/reconciliation/status", reconciliationH.Status)
			r.Put("/admin/reconciliation/interval", reconciliationH.SetInterval)
			r.Post("/admin/verification-codes/cleanup", verificationH.Cleanup)
		})
	})

	return r
}
