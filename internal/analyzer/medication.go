package analyzer

import (
	"fmt"
	"sort"

	"wisefido-risk/internal/models"
)

// ComplianceDecline compares taken% in the current window to the baseline
// window of equal length. Fires when the drop reaches the profile threshold.
func ComplianceDecline(in Input, p Profile) *models.RiskFactor {
	current := dosesIn(in.Doses, in.Window)
	prior := dosesIn(in.Doses, in.Baseline)
	if len(current) < MinDoseRecords || len(prior) == 0 {
		return nil
	}

	priorRate := takenRate(prior)
	currentRate := takenRate(current)
	decline := priorRate - currentRate
	if decline < p.ComplianceDeclinePP {
		return nil
	}

	sev, points := models.FactorWarning, 2
	switch {
	case decline >= 40:
		sev, points = models.FactorCritical, 4
	case decline >= 30:
		points = 3
	}

	return newFactor(models.FactorComplianceDecline, sev, points,
		fmt.Sprintf("Medication compliance dropped from %.0f%% to %.0f%%", priorRate, currentRate),
		map[string]interface{}{
			"prior_rate":       round1(priorRate),
			"current_rate":     round1(currentRate),
			"decline_points":   round1(decline),
			"prior_records":    len(prior),
			"current_records":  len(current),
			"threshold_points": p.ComplianceDeclinePP,
		})
}

// MissedDoseStreak finds the longest run of consecutive missed doses of a
// single medication inside the window. Taken and skipped doses end a run.
func MissedDoseStreak(in Input, p Profile) *models.RiskFactor {
	current := dosesIn(in.Doses, in.Window)
	if len(current) < MinDoseRecords {
		return nil
	}

	byMedication := make(map[string][]models.DoseEvent)
	for _, d := range current {
		byMedication[d.MedicationID] = append(byMedication[d.MedicationID], d)
	}
	meds := make([]string, 0, len(byMedication))
	for id := range byMedication {
		meds = append(meds, id)
	}
	sort.Strings(meds)

	longest, longestMed := 0, ""
	for _, id := range meds {
		doses := byMedication[id]
		sort.SliceStable(doses, func(i, j int) bool {
			return doses[i].ScheduledTime.Before(doses[j].ScheduledTime)
		})
		run := 0
		for _, d := range doses {
			if d.Status != models.DoseMissed {
				run = 0
				continue
			}
			run++
			if run > longest {
				longest, longestMed = run, id
			}
		}
	}

	if longest < 3 {
		return nil
	}
	sev, points := models.FactorWarning, p.StreakWarningPoints
	if longest >= 4 {
		sev, points = models.FactorCritical, p.StreakCriticalPoints
	}

	return newFactor(models.FactorMissedDoseStreak, sev, points,
		fmt.Sprintf("%d consecutive missed doses", longest),
		map[string]interface{}{
			"streak":        longest,
			"medication_id": longestMed,
		})
}
