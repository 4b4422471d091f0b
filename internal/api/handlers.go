package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/tradecouncil/tradecouncil/internal/envcheck"
	"github.com/tradecouncil/tradecouncil/internal/models"
	"github.com/tradecouncil/tradecouncil/internal/reportmanager"
)

type Handler struct {
	manager   *reportmanager.Manager
	store     models.ReportRepository
	checker   *envcheck.Checker
	dbStats   func() map[string]any
	logger    *slog.Logger
	startTime time.Time
}

func NewHandler(manager *reportmanager.Manager, store models.ReportRepository, checker *envcheck.Checker, dbStats func() map[string]any, logger *slog.Logger) *Handler {
	return &Handler{
		manager:   manager,
		store:     store,
		checker:   checker,
		dbStats:   dbStats,
		logger:    logger,
		startTime: time.Now(),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS for dev
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeStoreError maps repository sentinel errors onto HTTP statuses.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidTicker),
		errors.Is(err, models.ErrInvalidAnalysisDate),
		errors.Is(err, models.ErrMalformedSessionID),
		errors.Is(err, models.ErrUnknownAgentRole),
		errors.Is(err, models.ErrInvalidReportContent):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrDuplicateSession):
		http.Error(w, "Session already exists", http.StatusConflict)
	default:
		h.logger.Error("store operation failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HealthHandler handles GET /health
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

// DatabaseHealthHandler handles GET /api/database/health
func (h *Handler) DatabaseHealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.dbStats == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"status": "degraded",
			"store":  "memory",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"store":  "postgres",
		"pool":   h.dbStats(),
	})
}

// EnvironmentValidationHandler handles GET /api/environment/validation
func (h *Handler) EnvironmentValidationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := h.checker.Run(r.Context())
	h.writeJSON(w, http.StatusOK, report)
}

// AgentRolesHandler handles GET /api/agent-roles
func (h *Handler) AgentRolesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roles := models.AllAgentRoles()
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"roles": names,
		"count": len(names),
	})
}

type createSessionRequest struct {
	Ticker       string `json:"ticker"`
	AnalysisDate string `json:"analysis_date"`
}

// CreateSessionHandler handles POST /api/sessions
func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sessionID, err := h.manager.StartSession(r.Context(), req.Ticker, req.AnalysisDate)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logger.Info("session created", "session_id", sessionID)
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sessionID,
	})
}

// SessionsHandler dispatches requests under /api/sessions/.
//
//	GET /api/sessions/{ticker}                      list sessions for a ticker
//	GET /api/sessions/{ticker}/{date}               list sessions for a ticker and date
//	PUT /api/sessions/{id}/reports/{agent}          store an agent report
//	PUT /api/sessions/{id}/final-analysis           store the final analysis
func (h *Handler) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/api/sessions")

	switch r.Method {
	case http.MethodGet:
		switch len(segments) {
		case 1:
			h.listSessions(w, r, segments[0], "")
		case 2:
			h.listSessions(w, r, segments[0], segments[1])
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	case http.MethodPut:
		switch {
		case len(segments) == 3 && segments[1] == "reports":
			h.putAgentReport(w, r, segments[0], segments[2])
		case len(segments) == 2 && segments[1] == "final-analysis":
			h.putFinalAnalysis(w, r, segments[0])
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request, ticker, date string) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cleanTicker, err := models.ValidateTicker(ticker)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if date != "" {
		if err := models.ValidateAnalysisDate(date); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	summaries, err := h.store.ListSessions(r.Context(), models.SessionQuery{
		Ticker:       cleanTicker,
		AnalysisDate: date,
		Limit:        limit,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"sessions": summaries,
		"count":    len(summaries),
	})
}

type reportRequest struct {
	Content string `json:"content"`
}

func (h *Handler) putAgentReport(w http.ResponseWriter, r *http.Request, sessionID, agent string) {
	role, err := models.ParseAgentRole(agent)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.manager.SaveAgentReport(r.Context(), sessionID, role, req.Content); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"agent":      string(role),
		"stored":     true,
	})
}

type finalAnalysisRequest struct {
	Content string `json:"content"`
}

func (h *Handler) putFinalAnalysis(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req finalAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	recommendation, err := h.manager.FinalizeSession(r.Context(), sessionID, req.Content)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id":     sessionID,
		"recommendation": recommendation,
	})
}

// ReportsHandler dispatches requests under /api/reports/.
//
//	GET /api/reports/{ticker}/{date}          all reports for the latest session
//	GET /api/reports/{ticker}/{date}/{agent}  one agent's report
func (h *Handler) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	segments := pathSegments(r.URL.Path, "/api/reports")
	if len(segments) < 2 || len(segments) > 3 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	record, ok := h.latestSession(w, r, segments[0], segments[1])
	if !ok {
		return
	}

	if len(segments) == 2 {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"session_id":        record.SessionID,
			"ticker":            record.Ticker,
			"analysis_date":     record.AnalysisDate,
			"reports":           record.AgentReports,
			"available_reports": record.AvailableReports(),
		})
		return
	}

	role, err := models.ParseAgentRole(segments[2])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, exists := record.AgentReports[role]
	if !exists {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": record.SessionID,
		"agent":      string(role),
		"content":    content,
	})
}

// FinalAnalysisHandler handles GET /api/final-analysis/{ticker}/{date}
func (h *Handler) FinalAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	segments := pathSegments(r.URL.Path, "/api/final-analysis")
	if len(segments) != 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	record, ok := h.latestSession(w, r, segments[0], segments[1])
	if !ok {
		return
	}

	if !record.Finalized() {
		http.Error(w, "Final analysis not available", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id":     record.SessionID,
		"ticker":         record.Ticker,
		"analysis_date":  record.AnalysisDate,
		"final_analysis": record.FinalAnalysis,
		"recommendation": record.Recommendation,
	})
}

// latestSession loads the latest session for a ticker/date pair, writing
// the error response itself when the lookup fails.
func (h *Handler) latestSession(w http.ResponseWriter, r *http.Request, ticker, date string) (*models.SessionRecord, bool) {
	cleanTicker, err := models.ValidateTicker(ticker)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if err := models.ValidateAnalysisDate(date); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	record, err := h.store.GetLatestSession(r.Context(), cleanTicker, date)
	if err != nil {
		h.writeStoreError(w, err)
		return nil, false
	}
	return record, true
}
