package risk

import (
	"context"
	"time"

	"wisefido-risk/internal/models"
	"wisefido-risk/internal/repository"

	"go.uber.org/zap"
)

// Decision outcome of the alert-fatigue check.
type Decision struct {
	Suppress bool
	// Escalation the alert is allowed only because it outranks every
	// alert in the cool-down.
	Escalation bool
	Reason     string
	Recent     int
}

// Suppression reasons, also used as metric labels.
const (
	ReasonCoolDown  = "cool_down"
	ReasonDuplicate = "duplicate"
)

// Suppressor decides whether an eligible alert should be held back. Callers
// hold the subject lock across ShouldSuppress and the alert write.
type Suppressor interface {
	ShouldSuppress(ctx context.Context, subjectID, alertType string, tier models.SeverityTier, now time.Time) (Decision, error)
}

// CoolDownSuppressor holds back repeat alerts of one type for a subject
// within the cool-down. A critical alert still goes out when every recent
// alert was below critical.
type CoolDownSuppressor struct {
	alerts   repository.AlertRepository
	coolDown time.Duration
	logger   *zap.Logger
}

func NewCoolDownSuppressor(alerts repository.AlertRepository, coolDown time.Duration, logger *zap.Logger) *CoolDownSuppressor {
	return &CoolDownSuppressor{
		alerts:   alerts,
		coolDown: coolDown,
		logger:   logger,
	}
}

func (s *CoolDownSuppressor) ShouldSuppress(ctx context.Context, subjectID, alertType string, tier models.SeverityTier, now time.Time) (Decision, error) {
	recent, err := s.alerts.FetchRecentAlerts(ctx, subjectID, alertType, now.Add(-s.coolDown))
	if err != nil {
		return Decision{}, unavailable("fetch recent alerts", err)
	}
	if len(recent) == 0 {
		return Decision{}, nil
	}

	if tier == models.TierCritical {
		outranksAll := true
		for _, a := range recent {
			if a.Severity.AtLeast(tier) {
				outranksAll = false
				break
			}
		}
		if outranksAll {
			s.logger.Info("Escalation overrides alert cool-down",
				zap.String("subject_id", subjectID),
				zap.String("alert_type", alertType),
				zap.Int("recent_alerts", len(recent)),
			)
			return Decision{Escalation: true, Recent: len(recent)}, nil
		}
	}

	s.logger.Info("Alert suppressed by cool-down",
		zap.String("subject_id", subjectID),
		zap.String("alert_type", alertType),
		zap.String("tier", string(tier)),
		zap.Int("recent_alerts", len(recent)),
	)
	return Decision{Suppress: true, Reason: ReasonCoolDown, Recent: len(recent)}, nil
}

// DisabledSuppressor never suppresses.
type DisabledSuppressor struct{}

func (DisabledSuppressor) ShouldSuppress(context.Context, string, string, models.SeverityTier, time.Time) (Decision, error) {
	return Decision{}, nil
}
