package api

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/tradecouncil/tradecouncil/internal/auditor"
	"github.com/tradecouncil/tradecouncil/internal/metrics"
	"github.com/tradecouncil/tradecouncil/internal/models"
)

// AdminHandler handles operator-only consistency operations.
type AdminHandler struct {
	aud     *auditor.Auditor
	store   models.ReportRepository
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin handler. collector may be nil.
func NewAdminHandler(aud *auditor.Auditor, store models.ReportRepository, collector *metrics.Collector, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		aud:     aud,
		store:   store,
		metrics: collector,
		logger:  logger,
	}
}

// AuditHandler handles POST /api/admin/consistency/audit. It is read-only:
// divergent sessions are reported, not rewritten.
func (h *AdminHandler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	findings, err := h.aud.Audit(r.Context(), h.store)
	if err != nil {
		h.logger.Error("consistency audit failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveAuditRun(len(findings), 0, 0)
	}

	writeAdminJSON(w, h.logger, map[string]any{
		"divergent": len(findings),
		"findings":  findings,
	})
}

// RepairHandler handles POST /api/admin/consistency/repair.
func (h *AdminHandler) RepairHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.logger.Warn("admin initiated consistency repair")

	result, err := h.aud.RepairAll(r.Context(), h.store)
	if err != nil {
		h.logger.Error("consistency repair failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveAuditRun(result.Divergent, result.Repaired, len(result.Failures))
	}

	writeAdminJSON(w, h.logger, result)
}

func writeAdminJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
