package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wisefido-risk/internal/analyzer"
	"wisefido-risk/internal/models"
	"wisefido-risk/internal/repository"
	"wisefido-risk/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockRiskEngine struct {
	mock.Mock
}

func (m *MockRiskEngine) RunEmergencyPatternAssessment(ctx context.Context, elderID string, sensitivity analyzer.Sensitivity) (*models.RiskAssessment, error) {
	args := m.Called(ctx, elderID, sensitivity)
	return assessmentArg(args, 0), args.Error(1)
}

func (m *MockRiskEngine) RunCaregiverBurnoutAssessment(ctx context.Context, caregiverID string, periodDays int) (*models.RiskAssessment, error) {
	args := m.Called(ctx, caregiverID, periodDays)
	return assessmentArg(args, 0), args.Error(1)
}

func (m *MockRiskEngine) RunAdherencePrediction(ctx context.Context, medicationID, elderID string) (*models.RiskAssessment, error) {
	args := m.Called(ctx, medicationID, elderID)
	return assessmentArg(args, 0), args.Error(1)
}

func (m *MockRiskEngine) RunBurnoutSweep(ctx context.Context, agencyID string, periodDays int) ([]risk.SweepResult, error) {
	args := m.Called(ctx, agencyID, periodDays)
	results, _ := args.Get(0).([]risk.SweepResult)
	return results, args.Error(1)
}

func (m *MockRiskEngine) RetryAlert(ctx context.Context, partial *risk.PartialPersistenceError) (*models.RiskAssessment, error) {
	args := m.Called(ctx, partial)
	return assessmentArg(args, 0), args.Error(1)
}

func (m *MockRiskEngine) GetAssessment(ctx context.Context, assessmentID string) (*models.RiskAssessment, error) {
	args := m.Called(ctx, assessmentID)
	return assessmentArg(args, 0), args.Error(1)
}

func (m *MockRiskEngine) ListAssessments(ctx context.Context, subjectID string, page, size int) ([]*models.RiskAssessment, int, error) {
	args := m.Called(ctx, subjectID, page, size)
	list, _ := args.Get(0).([]*models.RiskAssessment)
	return list, args.Int(1), args.Error(2)
}

func (m *MockRiskEngine) RecordReview(ctx context.Context, assessmentID, reviewer, action string) (*models.RiskAssessment, error) {
	args := m.Called(ctx, assessmentID, reviewer, action)
	return assessmentArg(args, 0), args.Error(1)
}

func assessmentArg(args mock.Arguments, i int) *models.RiskAssessment {
	a, _ := args.Get(i).(*models.RiskAssessment)
	return a
}

type MockNameInvalidator struct {
	mock.Mock
}

func (m *MockNameInvalidator) Invalidate(ctx context.Context, subjectID string) error {
	return m.Called(ctx, subjectID).Error(0)
}

func newTestRouter(engine *MockRiskEngine) http.Handler {
	return newTestRouterWithNames(engine, nil)
}

func newTestRouterWithNames(engine *MockRiskEngine, names NameInvalidator) http.Handler {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	return NewRouter(NewRiskHandler(engine, names, zap.NewNop()), metrics, zap.NewNop())
}

type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestEmergencyAssessment(t *testing.T) {
	engine := new(MockRiskEngine)
	engine.On("RunEmergencyPatternAssessment", mock.Anything, "elder-1", analyzer.SensitivityHigh).
		Return(&models.RiskAssessment{ID: "a-1", TotalScore: 6, SeverityTier: models.TierHigh}, nil)

	w, env := do(t, newTestRouter(engine), http.MethodPost, "/risk/api/v1/elders/elder-1/emergency-assessment?sensitivity=HIGH", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ResultSuccess, env.Code)

	var a models.RiskAssessment
	require.NoError(t, json.Unmarshal(env.Result, &a))
	assert.Equal(t, "a-1", a.ID)
	assert.Equal(t, models.TierHigh, a.SeverityTier)
	engine.AssertExpectations(t)
}

func TestEmergencyAssessment_BadSensitivity(t *testing.T) {
	engine := new(MockRiskEngine)
	w, env := do(t, newTestRouter(engine), http.MethodPost, "/risk/api/v1/elders/elder-1/emergency-assessment?sensitivity=extreme", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ResultInvalidArgument, env.Code)
	engine.AssertNotCalled(t, "RunEmergencyPatternAssessment", mock.Anything, mock.Anything, mock.Anything)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"invalid subject", risk.ErrInvalidSubject, http.StatusBadRequest, ResultInvalidSubject},
		{"invalid argument", risk.ErrInvalidArgument, http.StatusBadRequest, ResultInvalidArgument},
		{"unavailable", errors.Join(risk.ErrRepositoryUnavailable, errors.New("dial tcp")), http.StatusServiceUnavailable, ResultUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ResultError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockRiskEngine)
			engine.On("RunCaregiverBurnoutAssessment", mock.Anything, "cg-1", 21).Return(nil, tt.err)

			w, env := do(t, newTestRouter(engine), http.MethodPost, "/risk/api/v1/caregivers/cg-1/burnout-assessment?period_days=21", nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.Equal(t, "error", env.Type)
		})
	}
}

func TestBurnoutAssessment_DefaultPeriod(t *testing.T) {
	engine := new(MockRiskEngine)
	engine.On("RunCaregiverBurnoutAssessment", mock.Anything, "cg-1", 0).
		Return(&models.RiskAssessment{ID: "a-2", SeverityTier: models.TierLow}, nil)

	w, env := do(t, newTestRouter(engine), http.MethodPost, "/risk/api/v1/caregivers/cg-1/burnout-assessment", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ResultSuccess, env.Code)
	engine.AssertExpectations(t)
}

func TestAdherencePrediction_PartialPersistence(t *testing.T) {
	saved := &models.RiskAssessment{ID: "a-3", SeverityTier: models.TierCritical}
	partial := &risk.PartialPersistenceError{
		Pipeline:   risk.PipelineAdherence,
		Stage:      risk.StageCreateAlert,
		Assessment: saved,
		Alert:      &models.Alert{ID: "al-1"},
		Err:        errors.New("connection reset"),
	}

	t.Run("inline retry succeeds", func(t *testing.T) {
		engine := new(MockRiskEngine)
		engine.On("RunAdherencePrediction", mock.Anything, "med-1", "elder-1").Return(saved, partial)
		engine.On("RetryAlert", mock.Anything, partial).Return(saved, nil)

		_, env := do(t, newTestRouter(engine), http.MethodPost, "/risk/api/v1/subjects/elder-1/medications/med-1/adherence-prediction", nil)
		assert.Equal(t, ResultSuccess, env.Code)
		engine.AssertExpectations(t)
	})

	t.Run("retry fails", func(t *testing.T) {
		engine := new(MockRiskEngine)
		engine.On("RunAdherencePrediction", mock.Anything, "med-1", "elder-1").Return(saved, partial)
		engine.On("RetryAlert", mock.Anything, partial).Return(nil, partial)

		w, env := do(t, newTestRouter(engine), http.MethodPost, "/risk/api/v1/subjects/elder-1/medications/med-1/adherence-prediction", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ResultPartialPersistence, env.Code)
		assert.Equal(t, "warning", env.Type)
		var a models.RiskAssessment
		require.NoError(t, json.Unmarshal(env.Result, &a))
		assert.Equal(t, "a-3", a.ID)
	})
}

func TestBurnoutSweep(t *testing.T) {
	results := []risk.SweepResult{
		{CaregiverID: "cg-c", Assessment: &models.RiskAssessment{ID: "a-c", TotalScore: 95, SeverityTier: models.TierCritical}},
		{CaregiverID: "cg-broken", Err: risk.ErrRepositoryUnavailable},
	}

	t.Run("json", func(t *testing.T) {
		engine := new(MockRiskEngine)
		engine.On("RunBurnoutSweep", mock.Anything, "agency-1", 14).Return(results, nil)

		_, env := do(t, newTestRouter(engine), http.MethodPost, "/risk/api/v1/agencies/agency-1/burnout-sweep?period_days=14", nil)
		require.Equal(t, ResultSuccess, env.Code)

		var body struct {
			Items []struct {
				CaregiverID string `json:"caregiver_id"`
				Error       string `json:"error"`
			} `json:"items"`
			Total  int `json:"total"`
			Failed int `json:"failed"`
		}
		require.NoError(t, json.Unmarshal(env.Result, &body))
		assert.Equal(t, 2, body.Total)
		assert.Equal(t, 1, body.Failed)
		assert.Equal(t, "cg-c", body.Items[0].CaregiverID)
		assert.NotEmpty(t, body.Items[1].Error)
	})

	t.Run("xlsx", func(t *testing.T) {
		engine := new(MockRiskEngine)
		engine.On("RunBurnoutSweep", mock.Anything, "agency-1", 0).Return(results, nil)

		w, _ := do(t, newTestRouter(engine), http.MethodPost, "/risk/api/v1/agencies/agency-1/burnout-sweep?format=xlsx", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "burnout-sweep-agency-1.xlsx")
		// xlsx is a zip archive
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
	})
}

func TestGetAndListAssessments(t *testing.T) {
	engine := new(MockRiskEngine)
	engine.On("GetAssessment", mock.Anything, "a-1").Return(&models.RiskAssessment{ID: "a-1"}, nil)
	engine.On("GetAssessment", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
	engine.On("ListAssessments", mock.Anything, "elder-1", 2, 5).
		Return([]*models.RiskAssessment{{ID: "a-1"}}, 6, nil)
	router := newTestRouter(engine)

	_, env := do(t, router, http.MethodGet, "/risk/api/v1/assessments/a-1", nil)
	assert.Equal(t, ResultSuccess, env.Code)

	w, env := do(t, router, http.MethodGet, "/risk/api/v1/assessments/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ResultNotFound, env.Code)

	_, env = do(t, router, http.MethodGet, "/risk/api/v1/subjects/elder-1/assessments?page=2&size=5", nil)
	require.Equal(t, ResultSuccess, env.Code)
	var page struct {
		Items []models.RiskAssessment `json:"items"`
		Total int                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &page))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 6, page.Total)
}

func TestReviewAssessment(t *testing.T) {
	reviewer := "nurse-1"
	engine := new(MockRiskEngine)
	engine.On("RecordReview", mock.Anything, "a-1", "nurse-1", "called family").
		Return(&models.RiskAssessment{ID: "a-1", ReviewedBy: &reviewer}, nil)
	engine.On("RecordReview", mock.Anything, "a-2", "nurse-2", "").
		Return(nil, repository.ErrAlreadyReviewed)
	router := newTestRouter(engine)

	_, env := do(t, router, http.MethodPost, "/risk/api/v1/assessments/a-1/review", []byte(`{"reviewer":"nurse-1","action_taken":"called family"}`))
	assert.Equal(t, ResultSuccess, env.Code)

	req := httptest.NewRequest(http.MethodPost, "/risk/api/v1/assessments/a-2/review", nil)
	req.Header.Set("X-User-Id", "nurse-2")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = do(t, router, http.MethodPost, "/risk/api/v1/assessments/a-1/review", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ResultInvalidArgument, env.Code)
	engine.AssertExpectations(t)
}

func TestInvalidateDisplayName(t *testing.T) {
	names := new(MockNameInvalidator)
	names.On("Invalidate", mock.Anything, "elder-1").Return(nil).Once()
	names.On("Invalidate", mock.Anything, "elder-2").Return(errors.New("redis: connection refused")).Once()
	router := newTestRouterWithNames(new(MockRiskEngine), names)

	w, env := do(t, router, http.MethodDelete, "/risk/api/v1/subjects/elder-1/display-name", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ResultSuccess, env.Code)
	assert.JSONEq(t, `{"subject_id":"elder-1","cached":true}`, string(env.Result))

	w, env = do(t, router, http.MethodDelete, "/risk/api/v1/subjects/elder-2/display-name", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ResultUnavailable, env.Code)
	names.AssertExpectations(t)

	// without a name cache there is nothing to drop
	w, env = do(t, newTestRouter(new(MockRiskEngine)), http.MethodDelete, "/risk/api/v1/subjects/elder-1/display-name", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject_id":"elder-1","cached":false}`, string(env.Result))
}

func TestOpsRoutes(t *testing.T) {
	router := newTestRouter(new(MockRiskEngine))

	w, env := do(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ResultSuccess, env.Code)

	w, _ = do(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, "# metrics", w.Body.String())

	w, env = do(t, router, http.MethodGet, "/risk/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ResultNotFound, env.Code)
}
