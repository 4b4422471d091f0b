package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	_ "github.com/lib/pq"

	"github.com/tradecouncil/tradecouncil/internal/api"
	"github.com/tradecouncil/tradecouncil/internal/auditor"
	"github.com/tradecouncil/tradecouncil/internal/config"
	"github.com/tradecouncil/tradecouncil/internal/database"
	"github.com/tradecouncil/tradecouncil/internal/envcheck"
	"github.com/tradecouncil/tradecouncil/internal/logging"
	"github.com/tradecouncil/tradecouncil/internal/metrics"
	"github.com/tradecouncil/tradecouncil/internal/models"
	"github.com/tradecouncil/tradecouncil/internal/reportmanager"
	"github.com/tradecouncil/tradecouncil/internal/scheduler"
	"github.com/tradecouncil/tradecouncil/internal/server"
	"github.com/tradecouncil/tradecouncil/internal/statushub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting tradecouncil gateway")

	// Connect to the report store. Without a configured URL the gateway
	// runs degraded on the in-memory store, matching local development.
	var db *sql.DB
	var store models.ReportRepository
	var dbStats func() map[string]any

	if cfg.Database.URL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.Database.URL
		dbCfg.MaxConnections = cfg.Database.MaxConnections
		dbCfg.MaxIdleConnections = cfg.Database.MaxIdleConnections

		logger.Info("connecting to report store")
		db, err = database.Connect(context.Background(), dbCfg)
		if err != nil {
			logger.Error("failed to connect to report store", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("report store connected")

		// Non-fatal so the app can start even if migrations fail
		if err := database.RunMigrations(db, cfg.Database.MigrationsDir, logger); err != nil {
			logger.Warn("failed to run migrations, continuing anyway", "error", err)
		}

		store = database.NewPostgresReportRepository(db)
		dbStats = func() map[string]any { return database.Stats(db) }
	} else {
		logger.Warn("no database URL configured, using in-memory report store")
		store = database.NewMemoryReportRepository()
	}

	hub := statushub.New(logger)
	manager := reportmanager.New(store, hub, logger)
	aud := auditor.New(logger)

	var dbPing func(ctx context.Context) error
	if db != nil {
		dbPing = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
	}
	checker := envcheck.New(cfg.OpenAI, dbPing, logger)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	api.SetupRoutes(mux, api.RouterDeps{
		Manager: manager,
		Store:   store,
		Auditor: aud,
		Checker: checker,
		Hub:     hub,
		Metrics: collector,
		DBStats: dbStats,
		Logger:  logger,
	})

	// Periodic consistency repair, disabled when the interval is zero.
	if cfg.Audit.Interval > 0 {
		auditScheduler := scheduler.NewAuditScheduler(aud, store, collector, cfg.Audit.Interval, logger)
		go auditScheduler.Start(context.Background())
		defer auditScheduler.Stop()
	} else {
		logger.Info("scheduled consistency audit disabled")
	}

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("tradecouncil gateway started")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	hub.Shutdown()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
