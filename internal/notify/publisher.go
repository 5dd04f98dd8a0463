// Package notify hands emitted alerts to the delivery subsystem. Delivery
// itself (push, SMS) happens downstream; publishing is best effort.
package notify

import (
	"context"
	"errors"
	"time"

	"wisefido-risk/internal/models"
)

// AlertEvent is the payload every publisher sends.
type AlertEvent struct {
	AlertID      string                       `json:"alert_id"`
	AssessmentID string                       `json:"assessment_id"`
	Pipeline     string                       `json:"pipeline"`
	SubjectID    string                       `json:"subject_id"`
	SubjectKind  models.SubjectKind           `json:"subject_kind"`
	AlertType    string                       `json:"alert_type"`
	Severity     models.SeverityTier          `json:"severity"`
	Title        string                       `json:"title"`
	Message      string                       `json:"message"`
	Channels     []models.NotificationChannel `json:"channels"`
	Escalated    bool                         `json:"escalated"`
	CreatedAt    time.Time                    `json:"created_at"`
}

// NewAlertEvent flattens an alert and its assessment.
func NewAlertEvent(alert *models.Alert, assessment *models.RiskAssessment) AlertEvent {
	return AlertEvent{
		AlertID:      alert.ID,
		AssessmentID: assessment.ID,
		Pipeline:     assessment.Pipeline,
		SubjectID:    alert.SubjectID,
		SubjectKind:  assessment.SubjectKind,
		AlertType:    alert.Type,
		Severity:     alert.Severity,
		Title:        alert.Title,
		Message:      alert.Message,
		Channels:     alert.NotificationChannels,
		Escalated:    alert.Escalated,
		CreatedAt:    alert.CreatedAt,
	}
}

// Publisher sends one event to one transport.
type Publisher interface {
	Publish(ctx context.Context, event AlertEvent) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event AlertEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, AlertEvent) error { return nil }
