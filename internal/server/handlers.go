// File: internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/api/schemas"
	"github.com/nullwave7/gatescout/internal/agent"
)

// analysisRequest is the body accepted by POST /api/v1/analyses.
type analysisRequest struct {
	TargetURL string `json:"target_url"`
	// BudgetSeconds overrides the configured analysis budget when positive.
	BudgetSeconds int `json:"budget_seconds,omitempty"`
}

// apiResponse is the standardized JSON envelope for API responses.
type apiResponse struct {
	Status string      `json:"status"` // "success", "error", "accepted"
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// startFunc launches the background processing of a freshly registered job.
type startFunc func(job *schemas.AnalysisJob, budget time.Duration)

// Handlers manages the HTTP request handling for the analysis API.
type Handlers struct {
	log   *zap.Logger
	repo  schemas.AnalysisRepository
	start startFunc
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, repo schemas.AnalysisRepository, start startFunc) *Handlers {
	return &Handlers{
		log:   logger.Named("api_handlers"),
		repo:  repo,
		start: start,
	}
}

// RegisterRoutes sets up the routing for the analysis API.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	// Health check endpoint (unversioned)
	r.Get("/healthz", h.HandleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyses", h.HandleCreateAnalysis)
		r.Get("/analyses", h.HandleListAnalyses)
		r.Get("/analyses/{analysisID}", h.HandleGetAnalysis)
	})
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleCreateAnalysis registers a new analysis job and starts it in the
// background. It responds immediately with the pending job.
func (h *Handlers) HandleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	target, err := agent.NormalizeTarget(req.TargetURL)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BudgetSeconds < 0 {
		h.respondWithError(w, http.StatusBadRequest, "budget_seconds must not be negative")
		return
	}

	job := &schemas.AnalysisJob{
		ID:        uuid.NewString(),
		TargetURL: target,
		Status:    schemas.StatusPending,
		StartedAt: time.Now().UTC(),
	}
	if err := h.repo.Add(r.Context(), job); err != nil {
		h.log.Error("Failed to register analysis job.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to register analysis.")
		return
	}

	h.log.Info("Analysis accepted.",
		zap.String("analysis_id", job.ID), zap.String("target_url", target))
	h.start(job, time.Duration(req.BudgetSeconds)*time.Second)

	h.respondWithStatus(w, http.StatusAccepted, "accepted", job)
}

// HandleGetAnalysis returns the stored state of one analysis job.
func (h *Handlers) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysisID")
	job, err := h.repo.Get(r.Context(), analysisID)
	if err != nil {
		if errors.Is(err, schemas.ErrAnalysisNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Analysis ID not found.")
			return
		}
		h.log.Error("Failed to load analysis job.", zap.String("analysis_id", analysisID), zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Internal error retrieving analysis.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, job)
}

// HandleListAnalyses returns all known analysis jobs, newest first.
func (h *Handlers) HandleListAnalyses(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.repo.List(r.Context())
	if err != nil {
		h.log.Error("Failed to list analysis jobs.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Internal error listing analyses.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]interface{}{
		"count":    len(jobs),
		"analyses": jobs,
	})
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSON(w, statusCode, apiResponse{Status: "error", Error: message})
}

// respondWithSuccess sends a standardized JSON success response.
func (h *Handlers) respondWithSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	h.writeJSON(w, statusCode, apiResponse{Status: "success", Data: data})
}

// respondWithStatus sends a standardized JSON response with a specific status string.
func (h *Handlers) respondWithStatus(w http.ResponseWriter, statusCode int, status string, data interface{}) {
	h.writeJSON(w, statusCode, apiResponse{Status: status, Data: data})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, statusCode int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
