package risk

import (
	"context"
	"fmt"
	"sort"

	"wisefido-risk/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepResult one caregiver of a burnout sweep. Err set means the caregiver
// could not be evaluated; Assessment may still be set for partial persistence.
type SweepResult struct {
	CaregiverID string                 `json:"caregiver_id"`
	Assessment  *models.RiskAssessment `json:"assessment,omitempty"`
	Err         error                  `json:"-"`
}

// Score is 0 for failed caregivers.
func (r SweepResult) Score() int {
	if r.Assessment == nil {
		return 0
	}
	return r.Assessment.TotalScore
}

// RunBurnoutSweep assesses every active caregiver of the agency with at most
// SweepWorkers runs in flight. One caregiver failing never fails the sweep.
// Evaluated caregivers come first by descending score, failures last.
func (e *Engine) RunBurnoutSweep(ctx context.Context, agencyID string, periodDays int) ([]SweepResult, error) {
	if agencyID == "" {
		return nil, fmt.Errorf("%w: agency id is required", ErrInvalidSubject)
	}
	if _, err := e.period(periodDays); err != nil {
		return nil, err
	}
	listCtx, cancel := e.withTimeout(ctx)
	caregivers, err := e.signals.ListAgencyCaregivers(listCtx, agencyID)
	cancel()
	if err != nil {
		return nil, unavailable("list agency caregivers", err)
	}

	results := make([]SweepResult, len(caregivers))
	var g errgroup.Group
	g.SetLimit(e.settings.SweepWorkers)
	for i, id := range caregivers {
		i, id := i, id
		g.Go(func() error {
			a, err := e.RunCaregiverBurnoutAssessment(ctx, id, periodDays)
			results[i] = SweepResult{CaregiverID: id, Assessment: a, Err: err}
			if err != nil {
				e.metrics.SweepSubjectFailed()
				e.logger.Warn("Burnout sweep could not assess caregiver",
					zap.String("agency_id", agencyID),
					zap.String("caregiver_id", id),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		fi, fj := results[i].Assessment == nil, results[j].Assessment == nil
		if fi != fj {
			return !fi
		}
		if results[i].Score() != results[j].Score() {
			return results[i].Score() > results[j].Score()
		}
		return results[i].CaregiverID < results[j].CaregiverID
	})

	e.logger.Info("Burnout sweep completed",
		zap.String("agency_id", agencyID),
		zap.Int("caregivers", len(results)),
	)
	return results, nil
}
