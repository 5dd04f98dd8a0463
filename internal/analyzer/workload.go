package analyzer

import (
	"fmt"
	"sort"
	"time"

	"wisefido-risk/internal/models"
)

// tier is one row of a descending threshold table.
type tier struct {
	min      float64
	severity models.FactorSeverity
	points   int
	level    string
}

func matchTier(value float64, table []tier) (tier, bool) {
	for _, t := range table {
		if value >= t.min {
			return t, true
		}
	}
	return tier{}, false
}

var (
	overtimeTiers = []tier{
		{20, models.FactorCritical, 30, "high"},
		{10, models.FactorWarning, 20, "medium"},
		{5, models.FactorInfo, 10, "low"},
	}
	consecutiveDayTiers = []tier{
		{10, models.FactorCritical, 25, "high"},
		{6, models.FactorWarning, 15, "medium"},
	}
	caseloadTiers = []tier{
		{8, models.FactorCritical, 20, "high"},
		{5, models.FactorWarning, 10, "medium"},
	}
	shiftLengthTiers = []tier{
		{13, models.FactorCritical, 20, "high"},
		{11, models.FactorWarning, 10, "medium"},
	}
)

// workedShifts returns in_progress/completed shifts starting in the window,
// or nil when there are fewer than MinWorkedShifts.
func workedShifts(in Input) []models.ShiftRecord {
	var out []models.ShiftRecord
	for _, s := range in.Shifts {
		if s.Worked() && in.Window.Contains(s.Start) {
			out = append(out, s)
		}
	}
	if len(out) < MinWorkedShifts {
		return nil
	}
	return out
}

// OvertimeHours sums worked minus scheduled hours and normalises to a weekly
// rate so windows of any length compare.
func OvertimeHours(in Input, _ Profile) *models.RiskFactor {
	shifts := workedShifts(in)
	if shifts == nil {
		return nil
	}
	var total float64
	for _, s := range shifts {
		total += s.OvertimeHours()
	}
	weeks := in.Window.Days() / 7
	if weeks <= 0 {
		return nil
	}
	weekly := total / weeks

	t, ok := matchTier(weekly, overtimeTiers)
	if !ok {
		return nil
	}
	return newFactor(models.FactorOvertimeHours, t.severity, t.points,
		fmt.Sprintf("%.1f overtime hours per week", weekly),
		map[string]interface{}{
			"overtime_hours":  round1(total),
			"weekly_overtime": round1(weekly),
			"level":           t.level,
			"shifts":          len(shifts),
		})
}

// ConsecutiveWorkdays counts the longest run of calendar days with at least
// one worked shift start.
func ConsecutiveWorkdays(in Input, _ Profile) *models.RiskFactor {
	shifts := workedShifts(in)
	if shifts == nil {
		return nil
	}
	loc := in.loc()
	days := make(map[string]time.Time)
	for _, s := range shifts {
		local := s.Start.In(loc)
		d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		days[d.Format("2006-01-02")] = d
	}
	dates := make([]time.Time, 0, len(days))
	for _, d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	longest, run := 0, 0
	for i, d := range dates {
		if i > 0 && dates[i-1].AddDate(0, 0, 1).Equal(d) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	t, ok := matchTier(float64(longest), consecutiveDayTiers)
	if !ok {
		return nil
	}
	return newFactor(models.FactorConsecutiveWorkdays, t.severity, t.points,
		fmt.Sprintf("%d consecutive days worked", longest),
		map[string]interface{}{
			"consecutive_days": longest,
			"days_worked":      len(dates),
			"level":            t.level,
		})
}

func CaseloadSize(in Input, _ Profile) *models.RiskFactor {
	shifts := workedShifts(in)
	if shifts == nil {
		return nil
	}
	recipients := make(map[string]bool)
	for _, s := range shifts {
		if s.SubjectOfCareID != "" {
			recipients[s.SubjectOfCareID] = true
		}
	}
	t, ok := matchTier(float64(len(recipients)), caseloadTiers)
	if !ok {
		return nil
	}
	return newFactor(models.FactorCaseloadSize, t.severity, t.points,
		fmt.Sprintf("Caring for %d different recipients", len(recipients)),
		map[string]interface{}{
			"recipients": len(recipients),
			"level":      t.level,
		})
}

func ShiftLength(in Input, _ Profile) *models.RiskFactor {
	shifts := workedShifts(in)
	if shifts == nil {
		return nil
	}
	var total float64
	for _, s := range shifts {
		total += s.WorkedHours()
	}
	avg := total / float64(len(shifts))
	t, ok := matchTier(avg, shiftLengthTiers)
	if !ok {
		return nil
	}
	return newFactor(models.FactorShiftLength, t.severity, t.points,
		fmt.Sprintf("Average shift of %.1f hours", avg),
		map[string]interface{}{
			"average_hours": round1(avg),
			"shifts":        len(shifts),
			"level":         t.level,
		})
}
