package risk

import (
	"errors"
	"fmt"

	"wisefido-risk/internal/models"
)

var (
	// ErrRepositoryUnavailable storage or lock failure; the run can be retried.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	// ErrInvalidSubject empty or unknown subject id.
	ErrInvalidSubject = errors.New("invalid subject")
	// ErrInvalidArgument malformed request parameter (period, sensitivity).
	ErrInvalidArgument = errors.New("invalid argument")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrRepositoryUnavailable, op, err)
}

// Stages at which writing an alert can fail after the assessment is saved.
const (
	StageCreateAlert = "create_alert"
	StageLinkAlert   = "link_alert"
)

// PartialPersistenceError the assessment was saved but its alert was not
// fully written. Engine.RetryAlert resumes from Stage.
type PartialPersistenceError struct {
	Pipeline   string
	Stage      string
	Assessment *models.RiskAssessment
	Alert      *models.Alert
	Err        error
}

func (e *PartialPersistenceError) Error() string {
	return fmt.Sprintf("assessment %s saved but alert %s failed at %s: %v",
		e.Assessment.ID, e.Alert.ID, e.Stage, e.Err)
}

func (e *PartialPersistenceError) Unwrap() error { return e.Err }
