package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafaelcoron/uplevel-backend/api/controllers"
	"github.com/rafaelcoron/uplevel-backend/api/middleware"
	"github.com/rafaelcoron/uplevel-backend/internal/commission"
	"github.com/rafaelcoron/uplevel-backend/internal/credentials"
	"github.com/rafaelcoron/uplevel-backend/internal/graph"
	"github.com/rafaelcoron/uplevel-backend/internal/plans"
	"github.com/rafaelcoron/uplevel-backend/internal/recon"
	"github.com/rafaelcoron/uplevel-backend/internal/wallets"
	"github.com/rafaelcoron/uplevel-backend/pkg/config"
	"github.com/rafaelcoron/uplevel-backend/pkg/db"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/redis"
)

// maxRequestBody bounds every JSON surface; bodies here are small commands,
// not uploads.
const maxRequestBody = 1 << 20

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	commissionService commission.Service,
	graphService graph.Service,
	planService plans.Service,
	walletService wallets.Service,
	reconService recon.Service,
	credentialService credentials.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.CORS(),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		chimiddleware.RequestSize(maxRequestBody),
	)

	eventsPolicy := middleware.NewRateLimitPolicy(
		"events",
		cfg.RateLimit.EventsWindow,
		cfg.RateLimit.EventsIPLimit,
		cfg.RateLimit.EventsCredentialLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Scrape target; reachable only on the private network.
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// Machine surface. Revenue producers push events with a write-scoped
	// credential; the rate limiter runs before credential verification.
	r.Route("/api/v1/events", func(r chi.Router) {
		r.Use(middleware.RateLimit(eventsPolicy, redisClient, logg))
		r.Use(middleware.CredentialAuth(credentialService, enums.ScopeEventsWrite, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Post("/revenue", controllers.RevenueEventIntake(commissionService, logg))
	})

	// Monitoring pulls reconciliation reports with a read-scoped credential.
	r.Route("/api/v1/recon", func(r chi.Router) {
		r.Use(middleware.CredentialAuth(credentialService, enums.ScopeReconRead, logg))
		r.Get("/runs", controllers.ReconRuns(reconService, logg))
		r.Get("/runs/{runID}/discrepancies", controllers.ReconRunDiscrepancies(reconService, logg))
	})

	// Human surface. Distributors read their own wallets and placement;
	// admins may read anyone's.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/ping", controllers.PrivatePing())
		r.Route("/wallets/{userID}", func(r chi.Router) {
			r.Get("/balance", controllers.WalletBalance(walletService, logg))
			r.Get("/transactions", controllers.WalletTransactions(walletService, logg))
		})
		r.Get("/distributors/{userID}/upline", controllers.DistributorUpline(graphService, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/plans", func(r chi.Router) {
			r.Post("/", controllers.AdminPlanCreate(planService, logg))
			r.Post("/{planID}/rates", controllers.AdminPlanSetRate(planService, logg))
			r.Post("/{planID}/assignments", controllers.AdminPlanAssign(planService, logg))
			r.Delete("/{planID}", controllers.AdminPlanDeactivate(planService, logg))
		})
		r.Route("/distributors/{userID}", func(r chi.Router) {
			r.Post("/attach", controllers.AdminDistributorAttach(graphService, logg))
			r.Post("/detach", controllers.AdminDistributorDetach(graphService, logg))
		})
		r.Post("/recon/runs", controllers.AdminReconTrigger(reconService, logg))
		r.Post("/credentials", controllers.AdminCredentialIssue(credentialService, logg))
	})

	return r
}
