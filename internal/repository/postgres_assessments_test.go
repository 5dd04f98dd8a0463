package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-risk/internal/models"
)

func setupMockAssessmentDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresAssessmentRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresAssessmentRepository(db, zap.NewNop())
}

var assessmentRowColumns = []string{
	"assessment_id", "pipeline", "subject_id", "subject_kind", "window_start", "window_end",
	"total_score", "severity_tier", "factors", "recommendations", "alert_generated", "alert_id",
	"reviewed_by", "reviewed_at", "action_taken", "created_at",
}

func TestCreateAssessment_Success(t *testing.T) {
	db, mock, repo := setupMockAssessmentDB(t)
	defer db.Close()

	a := &models.RiskAssessment{
		ID:           "as-1",
		Pipeline:     "caregiver_burnout",
		SubjectID:    "cg-1",
		SubjectKind:  models.SubjectCaregiver,
		WindowStart:  testWindow.Start,
		WindowEnd:    testWindow.End,
		TotalScore:   20,
		SeverityTier: models.TierModerate,
		Factors: []models.RiskFactor{{
			Type: models.FactorOvertimeHours, Severity: models.FactorWarning, Points: 20,
			Evidence: map[string]interface{}{"weekly_overtime": 12.5},
		}},
		Recommendations: []string{"Review overtime"},
		CreatedAt:       testWindow.End,
	}

	mock.ExpectExec(`INSERT INTO risk_assessments`).
		WithArgs("as-1", "caregiver_burnout", "cg-1", "caregiver", testWindow.Start, testWindow.End,
			20, "moderate", sqlmock.AnyArg(), sqlmock.AnyArg(), testWindow.End).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateAssessment(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkAlert(t *testing.T) {
	db, mock, repo := setupMockAssessmentDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE risk_assessments`).
		WithArgs("as-1", "al-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE risk_assessments`).
		WithArgs("missing", "al-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.LinkAlert(context.Background(), "as-1", "al-1"))
	err := repo.LinkAlert(context.Background(), "missing", "al-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAssessment_Success(t *testing.T) {
	db, mock, repo := setupMockAssessmentDB(t)
	defer db.Close()

	reviewedAt := testWindow.End.Add(time.Hour)
	mock.ExpectQuery(`FROM risk_assessments`).
		WithArgs("as-1").
		WillReturnRows(sqlmock.NewRows(assessmentRowColumns).AddRow(
			"as-1", "emergency_pattern", "elder-1", "elder", testWindow.Start, testWindow.End,
			6, "high",
			`[{"type":"pain_mentions","description":"Pain mentioned in 3 notes","severity":"warning","points":3,"evidence":{"mentions":3}}]`,
			`["Schedule a check-in"]`, true, "al-1",
			"nurse-1", reviewedAt, "called family", testWindow.End,
		))

	a, err := repo.GetAssessment(context.Background(), "as-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierHigh, a.SeverityTier)
	require.Len(t, a.Factors, 1)
	assert.Equal(t, models.FactorPainMentions, a.Factors[0].Type)
	assert.Equal(t, []string{"Schedule a check-in"}, a.Recommendations)
	require.NotNil(t, a.AlertID)
	assert.Equal(t, "al-1", *a.AlertID)
	require.NotNil(t, a.ReviewedAt)
	assert.Equal(t, reviewedAt, *a.ReviewedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAssessment_NotFound(t *testing.T) {
	db, mock, repo := setupMockAssessmentDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM risk_assessments`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetAssessment(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAssessments(t *testing.T) {
	db, mock, repo := setupMockAssessmentDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM risk_assessments`).
		WithArgs("cg-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`LIMIT \$2 OFFSET \$3`).
		WithArgs("cg-1", 2, 2).
		WillReturnRows(sqlmock.NewRows(assessmentRowColumns).AddRow(
			"as-3", "caregiver_burnout", "cg-1", "caregiver", testWindow.Start, testWindow.End,
			0, "low", `[]`, `["No burnout indicators detected"]`, false, nil,
			nil, nil, nil, testWindow.End,
		))

	list, total, err := repo.ListAssessments(context.Background(), "cg-1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].AlertID)
	assert.Nil(t, list[0].ReviewedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReview(t *testing.T) {
	at := testWindow.End

	t.Run("success", func(t *testing.T) {
		db, mock, repo := setupMockAssessmentDB(t)
		defer db.Close()

		mock.ExpectExec(`UPDATE risk_assessments`).
			WithArgs("as-1", "nurse-1", at, "called family").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.RecordReview(context.Background(), "as-1", "nurse-1", "called family", at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already reviewed", func(t *testing.T) {
		db, mock, repo := setupMockAssessmentDB(t)
		defer db.Close()

		mock.ExpectExec(`UPDATE risk_assessments`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT reviewed_by IS NOT NULL`).
			WithArgs("as-1").
			WillReturnRows(sqlmock.NewRows([]string{"reviewed"}).AddRow(true))

		err := repo.RecordReview(context.Background(), "as-1", "nurse-2", "none", at)
		assert.True(t, errors.Is(err, ErrAlreadyReviewed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, repo := setupMockAssessmentDB(t)
		defer db.Close()

		mock.ExpectExec(`UPDATE risk_assessments`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT reviewed_by IS NOT NULL`).
			WillReturnError(sql.ErrNoRows)

		err := repo.RecordReview(context.Background(), "gone", "nurse-2", "none", at)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
