// Package web provides the JSON HTTP surface of the accounting service.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/artpar/usagemeter/adapters/metrics"
	"github.com/artpar/usagemeter/app"
	"github.com/artpar/usagemeter/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handler provides the usage API endpoints.
type Handler struct {
	service  *app.AccountingService
	verifier ports.IdentityVerifier
	storage  ports.StorageStatusClient
	logger   zerolog.Logger
	metrics  *metrics.Collector

	corsOrigins    []string
	metricsEnabled bool
	metricsPath    string
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Service        *app.AccountingService
	Verifier       ports.IdentityVerifier
	Storage        ports.StorageStatusClient
	Logger         zerolog.Logger
	Metrics        *metrics.Collector
	CORSOrigins    []string
	MetricsEnabled bool
	MetricsPath    string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		service:        deps.Service,
		verifier:       deps.Verifier,
		storage:        deps.Storage,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
		corsOrigins:    deps.CORSOrigins,
		metricsEnabled: deps.MetricsEnabled,
		metricsPath:    deps.MetricsPath,
	}
}

// Router builds the HTTP routing table.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(h.Observe)

	r.Get("/healthz", h.Health)
	if h.metricsEnabled {
		r.Handle(h.metricsPath, promhttp.Handler())
	}

	r.Route("/api/usage", func(r chi.Router) {
		r.Use(h.RequireIdentity)

		r.Get("/check-upload-bandwidth", h.CheckUploadBandwidth)
		r.Post("/check-upload-bandwidth", h.CheckUploadBandwidth)
		r.Post("/log-upload", h.LogUpload)
		r.Post("/log-deletion", h.LogDeletion)
		r.Get("/check-usage-alerts", h.CheckUsageAlerts)
		r.Get("/daily-summary", h.DailySummary)
		r.Get("/complete-stats", h.CompleteStats)
		r.Post("/reset-daily", h.ResetDaily)
		r.Get("/storage-status", h.StorageStatus)
	})

	return r
}

// transferRequest is the request body for event-logging endpoints.
type transferRequest struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CheckUploadBandwidth answers whether an upload would fit within today's
// quota. Accepts the candidate size as a file_size query parameter or
// JSON body field. 400 signals not-allowed, matching the result field.
func (h *Handler) CheckUploadBandwidth(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	size, ok := h.transferSize(w, r)
	if !ok {
		return
	}

	result, err := h.service.CheckUploadBandwidth(r.Context(), id.ID, size)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Allowed {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, bandwidthCheckView{Allowed: result.Allowed, Message: result.Message})
}

// LogUpload records an upload event unconditionally; quota enforcement is
// the caller's responsibility via CheckUploadBandwidth.
func (h *Handler) LogUpload(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	req, ok := h.transferBody(w, r)
	if !ok {
		return
	}

	rec, err := h.service.LogUpload(r.Context(), id.ID, req.FileName, req.FileSize)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

// LogDeletion records a deletion event and returns the confirmation view.
func (h *Handler) LogDeletion(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	req, ok := h.transferBody(w, r)
	if !ok {
		return
	}

	conf, err := h.service.LogDeletion(r.Context(), id.ID, req.FileName, req.FileSize)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeletionView(conf))
}

// CheckUsageAlerts reports proximity to the daily limit.
func (h *Handler) CheckUsageAlerts(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	report, err := h.service.CheckUsageAlerts(r.Context(), id.ID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertView(report))
}

// DailySummary returns the full projected view of today's record.
func (h *Handler) DailySummary(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	view, err := h.service.GetDailyUsage(r.Context(), id.ID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyUsageView(view))
}

// CompleteStats returns all daily records plus the multi-day summary.
func (h *Handler) CompleteStats(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	stats, err := h.service.GetCompleteUsageStats(r.Context(), id.ID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompleteStatsView(stats))
}

// ResetDaily deletes yesterday's record for the calling user. Idempotent.
func (h *Handler) ResetDaily(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	if err := h.service.ResetDailyUsage(r.Context(), id.ID); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StorageStatus passes the storage collaborator's payload through
// unmodified.
func (h *Handler) StorageStatus(w http.ResponseWriter, r *http.Request) {
	payload, err := h.storage.Status(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		if h.metrics != nil {
			h.metrics.CollaboratorErrors.WithLabelValues("storage").Inc()
		}
		h.logger.Error().Err(err).Msg("storage status unavailable")
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "Could not retrieve storage status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// transferBody decodes and validates the {file_name, file_size} body.
func (h *Handler) transferBody(w http.ResponseWriter, r *http.Request) (transferRequest, bool) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return transferRequest{}, false
	}
	if req.FileSize < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "file_size must be non-negative")
		return transferRequest{}, false
	}
	return req, true
}

// transferSize reads the candidate size from the query string or body.
func (h *Handler) transferSize(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if v := r.URL.Query().Get("file_size"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil || size < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "file_size must be a non-negative integer")
			return 0, false
		}
		return size, true
	}

	if r.Body == nil || r.ContentLength == 0 {
		return 0, true
	}
	req, ok := h.transferBody(w, r)
	if !ok {
		return 0, false
	}
	return req.FileSize, true
}

func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	if app.IsStoreUnavailable(err) {
		if h.metrics != nil {
			h.metrics.StoreErrors.WithLabelValues("request").Inc()
		}
		h.logger.Error().Err(err).Msg("usage store unavailable")
		writeError(w, http.StatusInternalServerError, "store_unavailable", "Usage store is unavailable")
		return
	}
	h.logger.Error().Err(err).Msg("accounting operation failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "Internal error")
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
