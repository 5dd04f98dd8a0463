package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"wisefido-risk/internal/analyzer"
	"wisefido-risk/internal/models"
	"wisefido-risk/internal/report"
	"wisefido-risk/internal/repository"
	"wisefido-risk/internal/risk"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RiskEngine operations served over HTTP; *risk.Engine implements it.
type RiskEngine interface {
	RunEmergencyPatternAssessment(ctx context.Context, elderID string, sensitivity analyzer.Sensitivity) (*models.RiskAssessment, error)
	RunCaregiverBurnoutAssessment(ctx context.Context, caregiverID string, periodDays int) (*models.RiskAssessment, error)
	RunAdherencePrediction(ctx context.Context, medicationID, elderID string) (*models.RiskAssessment, error)
	RunBurnoutSweep(ctx context.Context, agencyID string, periodDays int) ([]risk.SweepResult, error)
	RetryAlert(ctx context.Context, partial *risk.PartialPersistenceError) (*models.RiskAssessment, error)
	GetAssessment(ctx context.Context, assessmentID string) (*models.RiskAssessment, error)
	ListAssessments(ctx context.Context, subjectID string, page, size int) ([]*models.RiskAssessment, int, error)
	RecordReview(ctx context.Context, assessmentID, reviewer, action string) (*models.RiskAssessment, error)
}

var _ RiskEngine = (*risk.Engine)(nil)

// NameInvalidator drops a cached display name after a profile rename.
type NameInvalidator interface {
	Invalidate(ctx context.Context, subjectID string) error
}

type RiskHandler struct {
	engine RiskEngine
	names  NameInvalidator
	logger *zap.Logger
}

// NewRiskHandler names may be nil when no name cache is configured.
func NewRiskHandler(engine RiskEngine, names NameInvalidator, logger *zap.Logger) *RiskHandler {
	return &RiskHandler{engine: engine, names: names, logger: logger}
}

// RegisterRoutes mounts the handler under the caller's /risk/api/v1 route.
func (h *RiskHandler) RegisterRoutes(r chi.Router) {
	r.Post("/elders/{elderID}/emergency-assessment", h.EmergencyAssessment)
	r.Post("/caregivers/{caregiverID}/burnout-assessment", h.BurnoutAssessment)
	r.Post("/subjects/{subjectID}/medications/{medicationID}/adherence-prediction", h.AdherencePrediction)
	r.Post("/agencies/{agencyID}/burnout-sweep", h.BurnoutSweep)
	r.Get("/assessments/{assessmentID}", h.GetAssessment)
	r.Post("/assessments/{assessmentID}/review", h.ReviewAssessment)
	r.Get("/subjects/{subjectID}/assessments", h.ListAssessments)
	r.Delete("/subjects/{subjectID}/display-name", h.InvalidateDisplayName)
}

func (h *RiskHandler) EmergencyAssessment(w http.ResponseWriter, r *http.Request) {
	sensitivity, err := analyzer.ParseSensitivity(r.URL.Query().Get("sensitivity"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(ResultInvalidArgument, err.Error()))
		return
	}
	a, err := h.engine.RunEmergencyPatternAssessment(r.Context(), chi.URLParam(r, "elderID"), sensitivity)
	h.writeAssessment(w, r, a, err)
}

func (h *RiskHandler) BurnoutAssessment(w http.ResponseWriter, r *http.Request) {
	periodDays := parseInt(r.URL.Query().Get("period_days"), 0)
	a, err := h.engine.RunCaregiverBurnoutAssessment(r.Context(), chi.URLParam(r, "caregiverID"), periodDays)
	h.writeAssessment(w, r, a, err)
}

func (h *RiskHandler) AdherencePrediction(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.RunAdherencePrediction(r.Context(), chi.URLParam(r, "medicationID"), chi.URLParam(r, "subjectID"))
	h.writeAssessment(w, r, a, err)
}

func (h *RiskHandler) BurnoutSweep(w http.ResponseWriter, r *http.Request) {
	agencyID := chi.URLParam(r, "agencyID")
	periodDays := parseInt(r.URL.Query().Get("period_days"), 0)

	results, err := h.engine.RunBurnoutSweep(r.Context(), agencyID, periodDays)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		data, err := report.WriteSweepXLSX(agencyID, results)
		if err != nil {
			h.logger.Error("Failed to render sweep export", zap.String("agency_id", agencyID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail(ResultError, "failed to render sweep export"))
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=burnout-sweep-%s.xlsx", agencyID))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	items := make([]map[string]any, 0, len(results))
	failed := 0
	for _, res := range results {
		item := map[string]any{
			"caregiver_id": res.CaregiverID,
			"assessment":   res.Assessment,
		}
		if res.Err != nil {
			failed++
			item["error"] = res.Err.Error()
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"agency_id": agencyID,
		"items":     items,
		"total":     len(items),
		"failed":    failed,
	}))
}

func (h *RiskHandler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.GetAssessment(r.Context(), chi.URLParam(r, "assessmentID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(a))
}

func (h *RiskHandler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	page := parseInt(r.URL.Query().Get("page"), 1)
	size := parseInt(r.URL.Query().Get("size"), 20)
	list, total, err := h.engine.ListAssessments(r.Context(), chi.URLParam(r, "subjectID"), page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []*models.RiskAssessment{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": list,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

// InvalidateDisplayName is called by the profile service after a rename so
// the next alert title picks up the new name.
func (h *RiskHandler) InvalidateDisplayName(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	if h.names == nil {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"subject_id": subjectID, "cached": false}))
		return
	}
	if err := h.names.Invalidate(r.Context(), subjectID); err != nil {
		h.logger.Error("Failed to invalidate display name", zap.String("subject_id", subjectID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail(ResultUnavailable, "name cache is temporarily unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"subject_id": subjectID, "cached": true}))
}

type reviewRequest struct {
	Reviewer    string `json:"reviewer"`
	ActionTaken string `json:"action_taken"`
}

func (h *RiskHandler) ReviewAssessment(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(ResultInvalidArgument, "invalid body"))
		return
	}
	if req.Reviewer == "" {
		req.Reviewer = r.Header.Get("X-User-Id")
	}
	a, err := h.engine.RecordReview(r.Context(), chi.URLParam(r, "assessmentID"), req.Reviewer, req.ActionTaken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(a))
}

// writeAssessment retries the alert write once inline when a run ends in
// partial persistence; if that also fails the saved assessment is returned
// as a warning.
func (h *RiskHandler) writeAssessment(w http.ResponseWriter, r *http.Request, a *models.RiskAssessment, err error) {
	var partial *risk.PartialPersistenceError
	if errors.As(err, &partial) {
		retried, retryErr := h.engine.RetryAlert(r.Context(), partial)
		if retryErr == nil {
			writeJSON(w, http.StatusOK, Ok(retried))
			return
		}
		h.logger.Warn("Alert retry failed",
			zap.String("assessment_id", partial.Assessment.ID),
			zap.Error(retryErr),
		)
		writeJSON(w, http.StatusOK, Warn(ResultPartialPersistence, "assessment saved but alert could not be recorded", a))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(a))
}

func (h *RiskHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, risk.ErrInvalidSubject):
		writeJSON(w, http.StatusBadRequest, Fail(ResultInvalidSubject, err.Error()))
	case errors.Is(err, risk.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, Fail(ResultInvalidArgument, err.Error()))
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail(ResultNotFound, "assessment not found"))
	case errors.Is(err, repository.ErrAlreadyReviewed):
		writeJSON(w, http.StatusConflict, Fail(ResultAlreadyReviewed, "assessment already reviewed"))
	case errors.Is(err, risk.ErrRepositoryUnavailable):
		h.logger.Error("Risk request failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, Fail(ResultUnavailable, "risk data is temporarily unavailable"))
	default:
		h.logger.Error("Risk request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(ResultError, err.Error()))
	}
}
