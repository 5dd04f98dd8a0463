package risk

import (
	"wisefido-risk/internal/analyzer"
	"wisefido-risk/internal/models"
)

// Pipeline names; each is also the alert type of the alerts it raises.
const (
	PipelineEmergency = "emergency_pattern"
	PipelineBurnout   = "caregiver_burnout"
	PipelineAdherence = "medication_adherence"
)

// Pipeline configures one run of analyzers → aggregate → classify →
// suppress → recommend → emit.
type Pipeline struct {
	Name        string
	AlertType   string
	SubjectKind models.SubjectKind
	Analyzers   []models.FactorType
	Gate        Gate
	Breakpoints Breakpoints
	// TitleFormat gets the subject display name.
	TitleFormat string
	Closing     string
	NoConcerns  string
	Actions     []models.AlertAction
}

// EmergencyPatternPipeline elder health decline. Needs two corroborating
// factors before alerting.
func EmergencyPatternPipeline() Pipeline {
	return Pipeline{
		Name:        PipelineEmergency,
		AlertType:   PipelineEmergency,
		SubjectKind: models.SubjectElder,
		Analyzers: []models.FactorType{
			models.FactorComplianceDecline,
			models.FactorIntakeDecline,
			models.FactorPainMentions,
			models.FactorMoodMentions,
			models.FactorSymptomMentions,
			models.FactorMissedDoseStreak,
		},
		Gate:        Gate{MinFactors: 2, MinTier: models.TierModerate},
		Breakpoints: Breakpoints{Critical: 10, High: 6, Moderate: 3},
		TitleFormat: "Health decline pattern detected for %s",
		Closing:     "Share this assessment with the family and the care team",
		NoConcerns:  "No concerning patterns detected; continue routine monitoring",
		Actions: []models.AlertAction{
			{ID: "call_elder", Label: "Call to check in", Kind: "call"},
			{ID: "notify_family", Label: "Notify family", Kind: "notify"},
			{ID: "review_assessment", Label: "Review assessment", Kind: "review"},
		},
	}
}

// CaregiverBurnoutPipeline caregiver workload. One critical factor is
// enough to alert.
func CaregiverBurnoutPipeline() Pipeline {
	return Pipeline{
		Name:        PipelineBurnout,
		AlertType:   PipelineBurnout,
		SubjectKind: models.SubjectCaregiver,
		Analyzers: []models.FactorType{
			models.FactorOvertimeHours,
			models.FactorConsecutiveWorkdays,
			models.FactorCaseloadSize,
			models.FactorShiftLength,
		},
		Gate:        Gate{MinFactors: 1, MinTier: models.TierHigh, CriticalFactor: true},
		Breakpoints: Breakpoints{Critical: 70, High: 45, Moderate: 20},
		TitleFormat: "Burnout risk for caregiver %s",
		Closing:     "Discuss workload and support options with the caregiver",
		NoConcerns:  "No burnout indicators detected; keep the current schedule",
		Actions: []models.AlertAction{
			{ID: "adjust_schedule", Label: "Adjust schedule", Kind: "schedule"},
			{ID: "contact_caregiver", Label: "Contact caregiver", Kind: "call"},
			{ID: "review_assessment", Label: "Review assessment", Kind: "review"},
		},
	}
}

// MedicationAdherencePipeline one medication of one elder.
func MedicationAdherencePipeline() Pipeline {
	return Pipeline{
		Name:        PipelineAdherence,
		AlertType:   PipelineAdherence,
		SubjectKind: models.SubjectMedication,
		Analyzers: []models.FactorType{
			models.FactorAdherenceTrend,
			models.FactorLowAdherence,
			models.FactorMissedDoseStreak,
			models.FactorMissedTimePattern,
			models.FactorMissedDayPattern,
		},
		Gate:        Gate{MinFactors: 1, MinTier: models.TierHigh, CriticalFactor: true},
		Breakpoints: Breakpoints{Critical: 60, High: 40, Moderate: 20},
		TitleFormat: "Medication adherence risk for %s",
		Closing:     "Review the adherence plan at the next care meeting",
		NoConcerns:  "Adherence is on track; no changes needed",
		Actions: []models.AlertAction{
			{ID: "set_reminder", Label: "Set dose reminder", Kind: "reminder"},
			{ID: "contact_clinician", Label: "Contact clinician", Kind: "call"},
			{ID: "review_assessment", Label: "Review assessment", Kind: "review"},
		},
	}
}

// adherenceProfile puts the streak factor on the adherence score scale.
func adherenceProfile() analyzer.Profile {
	p := analyzer.ProfileFor(analyzer.SensitivityMedium)
	p.StreakWarningPoints = 15
	p.StreakCriticalPoints = 25
	return p
}
