// Package handler implements the HTTP handlers of the risk API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kiranshivaraju/risco/internal/api/response"
	"github.com/kiranshivaraju/risco/internal/classifier"
	"github.com/kiranshivaraju/risco/internal/risco"
	"github.com/kiranshivaraju/risco/pkg/models"
)

// RiskService defines the interface the risk handlers depend on.
type RiskService interface {
	Analisar(ctx context.Context, studyID uuid.UUID, force bool) (*models.RiskAnalysis, error)
	Get(ctx context.Context, studyID uuid.UUID) (*models.RiskAnalysis, error)
	Matriz(ctx context.Context, orgID string) (*models.RiskMatrix, error)
	ModelInfo() classifier.ModelInfo
}

// analisarRequest accepts both the English and the Portuguese field names.
type analisarRequest struct {
	StudyID               string `json:"study_id"`
	EtpID                 string `json:"etp_id"`
	ForceReprocess        *bool  `json:"force_reprocess"`
	ForcarReprocessamento *bool  `json:"forcar_reprocessamento"`
}

func (r analisarRequest) studyID() string {
	if s := strings.TrimSpace(r.StudyID); s != "" {
		return s
	}
	return strings.TrimSpace(r.EtpID)
}

func (r analisarRequest) force() bool {
	switch {
	case r.ForceReprocess != nil:
		return *r.ForceReprocess
	case r.ForcarReprocessamento != nil:
		return *r.ForcarReprocessamento
	default:
		return false
	}
}

// NewAnalisarHandler returns an http.HandlerFunc for POST /risco/analisar.
func NewAnalisarHandler(svc RiskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analisarRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		raw := req.studyID()
		if raw == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "study_id is required", nil)
			return
		}
		studyID, err := uuid.Parse(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "study_id must be a valid UUID", nil)
			return
		}

		analysis, err := svc.Analisar(r.Context(), studyID, req.force())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, analysis)
	}
}

// NewGetHandler returns an http.HandlerFunc for GET /risco/{studyID}.
func NewGetHandler(svc RiskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studyID, err := uuid.Parse(chi.URLParam(r, "studyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "study_id must be a valid UUID", nil)
			return
		}

		analysis, err := svc.Get(r.Context(), studyID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, analysis)
	}
}

// NewMatrizHandler returns an http.HandlerFunc for GET /risco/matriz.
func NewMatrizHandler(svc RiskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matrix, err := svc.Matriz(r.Context(), strings.TrimSpace(r.URL.Query().Get("org_id")))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, matrix)
	}
}

// NewModeloHandler returns an http.HandlerFunc for GET /risco/modelo.
func NewModeloHandler(svc RiskService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, svc.ModelInfo())
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, risco.ErrStudyNotFound):
		response.Error(w, http.StatusNotFound, "STUDY_NOT_FOUND", "Study not found", nil)
	case errors.Is(err, risco.ErrAnalysisNotFound):
		response.Error(w, http.StatusNotFound, "ANALYSIS_NOT_FOUND", "No risk analysis for this study", nil)
	case errors.Is(err, classifier.ErrModelUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE", "The risk model is not available", nil)
	default:
		slog.Error("risk request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
