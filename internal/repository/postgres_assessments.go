package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-risk/internal/models"

	"go.uber.org/zap"
)

// PostgresAssessmentRepository risk_assessments.
type PostgresAssessmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresAssessmentRepository(db *sql.DB, logger *zap.Logger) *PostgresAssessmentRepository {
	return &PostgresAssessmentRepository{
		db:     db,
		logger: logger,
	}
}

var _ AssessmentRepository = (*PostgresAssessmentRepository)(nil)

const assessmentColumns = `
			assessment_id,
			pipeline,
			subject_id,
			subject_kind,
			window_start,
			window_end,
			total_score,
			severity_tier,
			factors,
			recommendations,
			alert_generated,
			alert_id,
			reviewed_by,
			reviewed_at,
			action_taken,
			created_at`

func (r *PostgresAssessmentRepository) CreateAssessment(ctx context.Context, a *models.RiskAssessment) error {
	if a == nil {
		return fmt.Errorf("assessment is required")
	}
	if a.ID == "" {
		return fmt.Errorf("assessment_id is required")
	}
	if a.SubjectID == "" {
		return fmt.Errorf("subject_id is required")
	}

	factors, err := json.Marshal(a.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}
	recommendations, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	// alert_generated/alert_id are set by LinkAlert once the alert exists.
	query := `
		INSERT INTO risk_assessments (
			assessment_id,
			pipeline,
			subject_id,
			subject_kind,
			window_start,
			window_end,
			total_score,
			severity_tier,
			factors,
			recommendations,
			alert_generated,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID,
		a.Pipeline,
		a.SubjectID,
		string(a.SubjectKind),
		a.WindowStart,
		a.WindowEnd,
		a.TotalScore,
		string(a.SeverityTier),
		factors,
		recommendations,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

func (r *PostgresAssessmentRepository) LinkAlert(ctx context.Context, assessmentID, alertID string) error {
	if assessmentID == "" {
		return fmt.Errorf("assessment_id is required")
	}
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}

	query := `
		UPDATE risk_assessments
		SET alert_generated = TRUE,
		    alert_id = $2
		WHERE assessment_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, assessmentID, alertID)
	if err != nil {
		return fmt.Errorf("failed to link alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("assessment %s: %w", assessmentID, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(s rowScanner) (*models.RiskAssessment, error) {
	var a models.RiskAssessment
	var factors, recommendations []byte
	var alertID, reviewedBy, actionTaken sql.NullString
	var reviewedAt sql.NullTime

	if err := s.Scan(
		&a.ID,
		&a.Pipeline,
		&a.SubjectID,
		&a.SubjectKind,
		&a.WindowStart,
		&a.WindowEnd,
		&a.TotalScore,
		&a.SeverityTier,
		&factors,
		&recommendations,
		&a.AlertGenerated,
		&alertID,
		&reviewedBy,
		&reviewedAt,
		&actionTaken,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &a.Factors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal factors: %w", err)
		}
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &a.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recommendations: %w", err)
		}
	}
	if alertID.Valid {
		a.AlertID = &alertID.String
	}
	if reviewedBy.Valid {
		a.ReviewedBy = &reviewedBy.String
	}
	if reviewedAt.Valid {
		a.ReviewedAt = &reviewedAt.Time
	}
	if actionTaken.Valid {
		a.ActionTaken = &actionTaken.String
	}
	return &a, nil
}

func (r *PostgresAssessmentRepository) GetAssessment(ctx context.Context, assessmentID string) (*models.RiskAssessment, error) {
	if assessmentID == "" {
		return nil, fmt.Errorf("assessment_id is required")
	}

	query := `SELECT ` + assessmentColumns + `
		FROM risk_assessments
		WHERE assessment_id = $1
	`
	a, err := scanAssessment(r.db.QueryRowContext(ctx, query, assessmentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("assessment %s: %w", assessmentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return a, nil
}

func (r *PostgresAssessmentRepository) ListAssessments(ctx context.Context, subjectID string, page, size int) ([]*models.RiskAssessment, int, error) {
	if subjectID == "" {
		return nil, 0, fmt.Errorf("subject_id is required")
	}
	page, size = normalizePage(page, size)

	var total int
	countQuery := `SELECT COUNT(*) FROM risk_assessments WHERE subject_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, subjectID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count assessments: %w", err)
	}

	query := `SELECT ` + assessmentColumns + `
		FROM risk_assessments
		WHERE subject_id = $1
		ORDER BY created_at DESC, assessment_id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, subjectID, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var out []*models.RiskAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate assessments: %w", err)
	}
	return out, total, nil
}

func (r *PostgresAssessmentRepository) RecordReview(ctx context.Context, assessmentID, reviewer, action string, at time.Time) error {
	if assessmentID == "" {
		return fmt.Errorf("assessment_id is required")
	}
	if reviewer == "" {
		return fmt.Errorf("reviewer is required")
	}

	query := `
		UPDATE risk_assessments
		SET reviewed_by = $2,
		    reviewed_at = $3,
		    action_taken = $4
		WHERE assessment_id = $1
		  AND reviewed_by IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, assessmentID, reviewer, at, action)
	if err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing updated: either missing or already reviewed.
	var reviewed bool
	err = r.db.QueryRowContext(ctx,
		`SELECT reviewed_by IS NOT NULL FROM risk_assessments WHERE assessment_id = $1`,
		assessmentID,
	).Scan(&reviewed)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("assessment %s: %w", assessmentID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check assessment review: %w", err)
	}
	if reviewed {
		return ErrAlreadyReviewed
	}
	return fmt.Errorf("failed to record review: no rows updated")
}
