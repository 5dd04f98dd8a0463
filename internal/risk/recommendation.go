package risk

import "wisefido-risk/internal/models"

// advice per factor type; critical factors get Base followed by Critical.
type advice struct {
	Base     []string
	Critical []string
}

var adviceTable = map[models.FactorType]advice{
	models.FactorComplianceDecline: {
		Base:     []string{"Review the medication schedule with the care team"},
		Critical: []string{"Contact the prescribing clinician about the missed medications"},
	},
	models.FactorIntakeDecline: {
		Base:     []string{"Monitor meals and fluid intake closely for the next few days"},
		Critical: []string{"Arrange a nutrition assessment"},
	},
	models.FactorPainMentions: {
		Base:     []string{"Ask about pain at the next visit and record its location and intensity"},
		Critical: []string{"Schedule a clinical review of pain management"},
	},
	models.FactorMoodMentions: {
		Base: []string{"Check in on emotional wellbeing and social contact"},
	},
	models.FactorSymptomMentions: {
		Base:     []string{"Record symptoms in detail and share them with the care team"},
		Critical: []string{"Consider a same-day clinical assessment"},
	},
	models.FactorMissedDoseStreak: {
		Base:     []string{"Confirm the elder still has the medication and understands the schedule"},
		Critical: []string{"Contact the prescribing clinician about the missed medications"},
	},
	models.FactorOvertimeHours: {
		Base:     []string{"Review overtime and rebalance upcoming shifts"},
		Critical: []string{"Reduce scheduled hours for the next two weeks"},
	},
	models.FactorConsecutiveWorkdays: {
		Base:     []string{"Schedule at least one full rest day this week"},
		Critical: []string{"Schedule two consecutive rest days as soon as possible"},
	},
	models.FactorCaseloadSize: {
		Base: []string{"Review care-recipient assignments to reduce caseload"},
	},
	models.FactorShiftLength: {
		Base:     []string{"Split long shifts or add handover cover"},
		Critical: []string{"Stop scheduling shifts longer than twelve hours"},
	},
	models.FactorAdherenceTrend: {
		Base: []string{"Discuss recent changes in routine that may affect doses"},
	},
	models.FactorLowAdherence: {
		Base:     []string{"Set up dose reminders"},
		Critical: []string{"Contact the prescribing clinician about the missed medications"},
	},
	models.FactorMissedTimePattern: {
		Base: []string{"Move reminders or the dose time to fit the daily routine"},
	},
	models.FactorMissedDayPattern: {
		Base: []string{"Plan dose support for the weekday with repeated misses"},
	},
}

// Recommend builds the advice list in factor order, dropping repeats, then
// appends closing. With no factors it returns noConcerns alone.
func Recommend(factors []models.RiskFactor, closing, noConcerns string) []string {
	if len(factors) == 0 {
		return []string{noConcerns}
	}
	seen := make(map[string]bool)
	var out []string
	add := func(lines []string) {
		for _, l := range lines {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	for _, f := range factors {
		a := adviceTable[f.Type]
		add(a.Base)
		if f.Severity == models.FactorCritical {
			add(a.Critical)
		}
	}
	add([]string{closing})
	return out
}
