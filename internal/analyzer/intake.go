package analyzer

import (
	"fmt"

	"wisefido-risk/internal/models"
)

// IntakeDecline compares meal entries logged in the current window with the
// baseline window. The baseline needs MinIntakeRecords entries to be trusted;
// the current window may be empty, that is the signal.
func IntakeDecline(in Input, p Profile) *models.RiskFactor {
	var current, prior int
	for _, e := range in.Intakes {
		switch {
		case in.Window.Contains(e.Timestamp):
			current++
		case in.Baseline.Contains(e.Timestamp):
			prior++
		}
	}
	if prior < MinIntakeRecords {
		return nil
	}

	decline := float64(prior-current) * 100 / float64(prior)
	if decline < p.IntakeDeclinePct {
		return nil
	}

	sev, points := models.FactorWarning, 2
	if decline >= p.IntakeDeclinePct+20 {
		sev, points = models.FactorCritical, 3
	}

	return newFactor(models.FactorIntakeDecline, sev, points,
		fmt.Sprintf("Meal entries dropped %.0f%% (%d to %d)", decline, prior, current),
		map[string]interface{}{
			"prior_entries":     prior,
			"current_entries":   current,
			"decline_percent":   round1(decline),
			"threshold_percent": p.IntakeDeclinePct,
		})
}
