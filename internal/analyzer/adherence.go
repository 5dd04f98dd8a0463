package analyzer

import (
	"fmt"
	"time"

	"wisefido-risk/internal/models"
)

// adherenceTrendMargin is how far the recent half must trail the older half
// before the trend counts as declining.
const adherenceTrendMargin = 5.0

// AdherenceTrend splits the window in halves and compares taken%.
func AdherenceTrend(in Input, _ Profile) *models.RiskFactor {
	current := dosesIn(in.Doses, in.Window)
	if len(current) < MinDoseRecords {
		return nil
	}
	olderWin, recentWin := in.Window.Split()
	older := dosesIn(current, olderWin)
	recent := dosesIn(current, recentWin)
	if len(older) == 0 || len(recent) == 0 {
		return nil
	}

	olderRate := takenRate(older)
	recentRate := takenRate(recent)
	if recentRate >= olderRate-adherenceTrendMargin {
		return nil
	}
	decline := olderRate - recentRate

	sev, points := models.FactorWarning, 15
	if decline >= 15 {
		sev, points = models.FactorCritical, 25
	}
	return newFactor(models.FactorAdherenceTrend, sev, points,
		fmt.Sprintf("Adherence declining from %.0f%% to %.0f%%", olderRate, recentRate),
		map[string]interface{}{
			"older_rate":     round1(olderRate),
			"recent_rate":    round1(recentRate),
			"decline_points": round1(decline),
			"trend":          "declining",
		})
}

func LowAdherence(in Input, _ Profile) *models.RiskFactor {
	current := dosesIn(in.Doses, in.Window)
	if len(current) < MinDoseRecords {
		return nil
	}
	rate := takenRate(current)

	var sev models.FactorSeverity
	var points int
	switch {
	case rate < 60:
		sev, points = models.FactorCritical, 35
	case rate < 80:
		sev, points = models.FactorWarning, 20
	default:
		return nil
	}
	return newFactor(models.FactorLowAdherence, sev, points,
		fmt.Sprintf("Only %.0f%% of doses taken", rate),
		map[string]interface{}{
			"adherence_rate": round1(rate),
			"records":        len(current),
		})
}

func missedIn(doses []models.DoseEvent) []models.DoseEvent {
	var out []models.DoseEvent
	for _, d := range doses {
		if d.Status == models.DoseMissed {
			out = append(out, d)
		}
	}
	return out
}

// MissedTimePattern looks for an hour of day that concentrates misses.
// The busiest hour must hold at least 30% of misses and at least two of them.
func MissedTimePattern(in Input, _ Profile) *models.RiskFactor {
	current := dosesIn(in.Doses, in.Window)
	if len(current) < MinDoseRecords {
		return nil
	}
	missed := missedIn(current)
	if len(missed) < 3 {
		return nil
	}

	var buckets [24]int
	for _, d := range missed {
		buckets[d.ScheduledTime.In(in.loc()).Hour()]++
	}
	hour := 0
	for h := 1; h < 24; h++ {
		if buckets[h] > buckets[hour] {
			hour = h
		}
	}
	share := percent(buckets[hour], len(missed))
	if buckets[hour] < 2 || share < 30 {
		return nil
	}
	return newFactor(models.FactorMissedTimePattern, models.FactorWarning, 15,
		fmt.Sprintf("%d of %d missed doses were scheduled around %02d:00", buckets[hour], len(missed), hour),
		map[string]interface{}{
			"hour":         hour,
			"missed":       buckets[hour],
			"total_missed": len(missed),
			"share":        round1(share),
		})
}

// MissedDayPattern looks for a weekday with repeated misses.
func MissedDayPattern(in Input, _ Profile) *models.RiskFactor {
	current := dosesIn(in.Doses, in.Window)
	if len(current) < MinDoseRecords {
		return nil
	}
	var days [7]int
	for _, d := range missedIn(current) {
		days[d.ScheduledTime.In(in.loc()).Weekday()]++
	}
	day := 0
	for wd := 1; wd < 7; wd++ {
		if days[wd] > days[day] {
			day = wd
		}
	}
	if days[day] < 2 {
		return nil
	}
	weekday := time.Weekday(day)
	return newFactor(models.FactorMissedDayPattern, models.FactorWarning, 10,
		fmt.Sprintf("Doses missed %d times on %s", days[day], weekday),
		map[string]interface{}{
			"weekday": weekday.String(),
			"missed":  days[day],
		})
}
