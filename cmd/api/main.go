package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rafaelcoron/uplevel-backend/api/routes"
	"github.com/rafaelcoron/uplevel-backend/internal/commission"
	"github.com/rafaelcoron/uplevel-backend/internal/credentials"
	"github.com/rafaelcoron/uplevel-backend/internal/graph"
	"github.com/rafaelcoron/uplevel-backend/internal/ledger"
	"github.com/rafaelcoron/uplevel-backend/internal/plans"
	"github.com/rafaelcoron/uplevel-backend/internal/recon"
	"github.com/rafaelcoron/uplevel-backend/internal/wallets"
	"github.com/rafaelcoron/uplevel-backend/pkg/config"
	"github.com/rafaelcoron/uplevel-backend/pkg/db"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/metrics"
	"github.com/rafaelcoron/uplevel-backend/pkg/migrate"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox"
	"github.com/rafaelcoron/uplevel-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	graphRepo := graph.NewRepository(dbClient.DB())
	graphService, err := graph.NewService(graph.ServiceParams{
		Repo:     graphRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		MaxDepth: cfg.Commission.MaxDepth,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create graph service", err)
		os.Exit(1)
	}

	planService, err := plans.NewService(plans.ServiceParams{
		Repo:   plans.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:              ledger.NewRepository(dbClient.DB()),
		Tx:                dbClient,
		Outbox:            outboxService,
		Logger:            logg,
		Metrics:           metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
		StalePendingAfter: cfg.Ledger.StalePendingAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	commissionService, err := commission.NewService(commission.ServiceParams{
		Graph:   graphService,
		Rates:   planService,
		Users:   graphRepo,
		Ledger:  ledgerService,
		Logger:  logg,
		Metrics: metrics.NewCommissionMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create commission service", err)
		os.Exit(1)
	}

	walletService, err := wallets.NewService(wallets.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	reconService, err := recon.NewService(recon.ServiceParams{
		Repo:     recon.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
		Metrics:  metrics.NewReconMetrics(prometheus.DefaultRegisterer),
		PageSize: cfg.Recon.PageSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create recon service", err)
		os.Exit(1)
	}

	credentialService, err := credentials.NewService(credentials.ServiceParams{
		Store:     credentials.NewRepository(dbClient.DB()),
		APIKeyCfg: cfg.APIKey,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credential service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			commissionService,
			graphService,
			planService,
			walletService,
			reconService,
			credentialService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
