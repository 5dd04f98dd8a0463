package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wisefido-risk/internal/metrics"
	"wisefido-risk/internal/models"
	"wisefido-risk/internal/notify"
	"wisefido-risk/internal/profile"
	"wisefido-risk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChannelsFor maps a tier to delivery channels. Critical and escalated alerts
// always go to every channel.
func ChannelsFor(tier models.SeverityTier, escalated bool) []models.NotificationChannel {
	if escalated || tier == models.TierCritical {
		return append([]models.NotificationChannel(nil), models.AllChannels...)
	}
	switch tier {
	case models.TierHigh:
		return []models.NotificationChannel{models.ChannelDashboard, models.ChannelPush}
	default:
		return []models.NotificationChannel{models.ChannelDashboard}
	}
}

// Emitter persists assessments and their alerts, then publishes alerts.
type Emitter struct {
	assessments repository.AssessmentRepository
	alerts      repository.AlertRepository
	names       profile.NameResolver
	publisher   notify.Publisher
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewEmitter(
	assessments repository.AssessmentRepository,
	alerts repository.AlertRepository,
	names profile.NameResolver,
	publisher notify.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Emitter {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Emitter{
		assessments: assessments,
		alerts:      alerts,
		names:       names,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
	}
}

// Emit always saves the assessment. When emitAlert is set it also builds,
// saves and links the alert and publishes it. A failure after the
// assessment is saved returns *PartialPersistenceError.
func (e *Emitter) Emit(ctx context.Context, p *Pipeline, a *models.RiskAssessment, nameSubjectID string, decision Decision, emitAlert bool) error {
	a.AlertGenerated = false
	a.AlertID = nil
	if err := e.assessments.CreateAssessment(ctx, a); err != nil {
		return unavailable("create assessment", err)
	}
	if !emitAlert {
		return nil
	}

	alert := e.buildAlert(ctx, p, a, nameSubjectID, decision.Escalation)
	return e.writeAlert(ctx, p.Name, a, alert, StageCreateAlert)
}

// writeAlert runs the alert steps starting at stage.
func (e *Emitter) writeAlert(ctx context.Context, pipeline string, a *models.RiskAssessment, alert *models.Alert, stage string) error {
	if stage == StageCreateAlert {
		err := e.alerts.CreateAlert(ctx, alert)
		if errors.Is(err, repository.ErrDuplicateAlert) {
			e.metrics.AlertSuppressed(pipeline, ReasonDuplicate)
			e.logger.Info("Alert suppressed by uniqueness constraint",
				zap.String("assessment_id", a.ID),
				zap.String("subject_id", a.SubjectID),
			)
			return nil
		}
		if err != nil {
			return e.partial(pipeline, StageCreateAlert, a, alert, err)
		}
	}

	if err := e.assessments.LinkAlert(ctx, a.ID, alert.ID); err != nil {
		return e.partial(pipeline, StageLinkAlert, a, alert, err)
	}

	alertID := alert.ID
	a.AlertGenerated = true
	a.AlertID = &alertID
	e.metrics.AlertEmitted(pipeline, alert.Severity)

	if err := e.publisher.Publish(ctx, notify.NewAlertEvent(alert, a)); err != nil {
		e.logger.Warn("Failed to publish alert event",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	}
	return nil
}

func (e *Emitter) partial(pipeline, stage string, a *models.RiskAssessment, alert *models.Alert, err error) error {
	e.metrics.PartialPersistence(pipeline)
	e.logger.Error("Assessment saved but alert write failed",
		zap.String("assessment_id", a.ID),
		zap.String("alert_id", alert.ID),
		zap.String("stage", stage),
		zap.Error(err),
	)
	return &PartialPersistenceError{
		Pipeline:   pipeline,
		Stage:      stage,
		Assessment: a,
		Alert:      alert,
		Err:        err,
	}
}

func (e *Emitter) displayName(ctx context.Context, subjectID string) string {
	if e.names == nil {
		return subjectID
	}
	name, err := e.names.ResolveDisplayName(ctx, subjectID)
	if err != nil {
		e.logger.Warn("Falling back to subject id in alert title",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		return subjectID
	}
	return name
}

func (e *Emitter) buildAlert(ctx context.Context, p *Pipeline, a *models.RiskAssessment, nameSubjectID string, escalated bool) *models.Alert {
	name := e.displayName(ctx, nameSubjectID)

	descriptions := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		descriptions = append(descriptions, f.Description)
	}
	message := fmt.Sprintf("%s risk (score %d): %s.",
		strings.ToUpper(string(a.SeverityTier[:1]))+string(a.SeverityTier[1:]),
		a.TotalScore,
		strings.Join(descriptions, "; "),
	)
	if len(a.Recommendations) > 0 {
		message += " Recommended: " + a.Recommendations[0] + "."
	}

	return &models.Alert{
		ID:                   uuid.NewString(),
		SubjectID:            a.SubjectID,
		AssessmentID:         a.ID,
		Type:                 p.AlertType,
		Severity:             a.SeverityTier,
		Title:                fmt.Sprintf(p.TitleFormat, name),
		Message:              message,
		Actions:              append([]models.AlertAction(nil), p.Actions...),
		Status:               models.AlertActive,
		NotificationChannels: ChannelsFor(a.SeverityTier, escalated),
		Escalated:            escalated,
		CreatedAt:            a.CreatedAt.Truncate(time.Microsecond),
	}
}
