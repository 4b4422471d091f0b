package api

import (
	"net/http"

	"log/slog"

	"github.com/tradecouncil/tradecouncil/internal/auditor"
	"github.com/tradecouncil/tradecouncil/internal/envcheck"
	"github.com/tradecouncil/tradecouncil/internal/metrics"
	"github.com/tradecouncil/tradecouncil/internal/models"
	"github.com/tradecouncil/tradecouncil/internal/reportmanager"
	"github.com/tradecouncil/tradecouncil/internal/statushub"
)

// RouterDeps bundles everything the route table needs.
type RouterDeps struct {
	Manager *reportmanager.Manager
	Store   models.ReportRepository
	Auditor *auditor.Auditor
	Checker *envcheck.Checker
	Hub     *statushub.Hub
	Metrics *metrics.Collector
	DBStats func() map[string]any
	Logger  *slog.Logger
}

// SetupRoutes configures all gateway routes on the provided mux.
func SetupRoutes(mux *http.ServeMux, deps RouterDeps) {
	handler := NewHandler(deps.Manager, deps.Store, deps.Checker, deps.DBStats, deps.Logger)
	adminHandler := NewAdminHandler(deps.Auditor, deps.Store, deps.Metrics, deps.Logger)

	// Health and environment
	mux.HandleFunc("/health", handler.HealthHandler)
	mux.HandleFunc("/api/database/health", handler.DatabaseHealthHandler)
	mux.HandleFunc("/api/environment/validation", handler.EnvironmentValidationHandler)
	mux.HandleFunc("/api/agent-roles", handler.AgentRolesHandler)

	// Session lifecycle
	mux.HandleFunc("/api/sessions", handler.CreateSessionHandler)
	mux.HandleFunc("/api/sessions/", handler.SessionsHandler)

	// Retrieval
	mux.HandleFunc("/api/reports/", handler.ReportsHandler)
	mux.HandleFunc("/api/final-analysis/", handler.FinalAnalysisHandler)

	// Admin consistency operations
	mux.HandleFunc("/api/admin/consistency/audit", adminHandler.AuditHandler)
	mux.HandleFunc("/api/admin/consistency/repair", adminHandler.RepairHandler)

	// Live status relay
	if deps.Hub != nil {
		mux.HandleFunc("/ws", deps.Hub.ServeWS)
	}

	// Prometheus metrics
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}
}
