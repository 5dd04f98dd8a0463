package repository

import (
	"context"
	"errors"
	"time"

	"wisefido-risk/internal/models"
)

var (
	// ErrNotFound no row for the given id.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateAlert the alert uniqueness constraint rejected the insert.
	ErrDuplicateAlert = errors.New("duplicate alert")
	// ErrAlreadyReviewed review fields are write-once.
	ErrAlreadyReviewed = errors.New("assessment already reviewed")
)

// SignalRepository reads the activity logs written by the ingestion
// services. All slices are ordered by time ascending.
type SignalRepository interface {
	// FetchDoseEvents doses scheduled in w; empty medicationID means all
	// medications of the elder.
	FetchDoseEvents(ctx context.Context, elderID, medicationID string, w models.TimeWindow) ([]models.DoseEvent, error)

	// FetchIntakeEvents meal entries logged in w.
	FetchIntakeEvents(ctx context.Context, elderID string, w models.TimeWindow) ([]models.IntakeEvent, error)

	// FetchShifts shifts starting in w, all statuses.
	FetchShifts(ctx context.Context, caregiverID string, w models.TimeWindow) ([]models.ShiftRecord, error)

	SubjectExists(ctx context.Context, kind models.SubjectKind, id string) (bool, error)

	// MedicationBelongsTo reports whether medicationID is prescribed to elderID.
	MedicationBelongsTo(ctx context.Context, medicationID, elderID string) (bool, error)

	// ListAgencyCaregivers active caregivers of an agency, sorted by id.
	ListAgencyCaregivers(ctx context.Context, agencyID string) ([]string, error)
}

// AlertRepository risk_alerts.
type AlertRepository interface {
	// FetchRecentAlerts alerts of one type for a subject created at or after since.
	FetchRecentAlerts(ctx context.Context, subjectID, alertType string, since time.Time) ([]*models.Alert, error)

	// CreateAlert inserts alert; returns ErrDuplicateAlert when an alert with
	// the same subject, type, severity and day already exists.
	CreateAlert(ctx context.Context, alert *models.Alert) error
}

// AssessmentRepository risk_assessments.
type AssessmentRepository interface {
	CreateAssessment(ctx context.Context, a *models.RiskAssessment) error

	// LinkAlert marks the assessment as having produced alertID.
	LinkAlert(ctx context.Context, assessmentID, alertID string) error

	GetAssessment(ctx context.Context, assessmentID string) (*models.RiskAssessment, error)

	// ListAssessments newest first; returns the page and the total count.
	ListAssessments(ctx context.Context, subjectID string, page, size int) ([]*models.RiskAssessment, int, error)

	// RecordReview sets reviewed_by/reviewed_at/action_taken once.
	RecordReview(ctx context.Context, assessmentID, reviewer, action string, at time.Time) error
}

// normalizePage clamps page/size the way the list endpoints expect.
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return page, size
}
