package models

import "time"

// FactorSeverity severity of a single factor.
type FactorSeverity string

const (
	FactorInfo     FactorSeverity = "info"
	FactorWarning  FactorSeverity = "warning"
	FactorCritical FactorSeverity = "critical"
)

// FactorType identifies the analyzer that produced a factor.
type FactorType string

const (
	FactorComplianceDecline   FactorType = "compliance_decline"
	FactorIntakeDecline       FactorType = "intake_decline"
	FactorPainMentions        FactorType = "pain_mentions"
	FactorMoodMentions        FactorType = "mood_mentions"
	FactorSymptomMentions     FactorType = "symptom_mentions"
	FactorMissedDoseStreak    FactorType = "missed_dose_streak"
	FactorOvertimeHours       FactorType = "overtime_hours"
	FactorConsecutiveWorkdays FactorType = "consecutive_workdays"
	FactorCaseloadSize        FactorType = "caseload_size"
	FactorShiftLength         FactorType = "shift_length"
	FactorAdherenceTrend      FactorType = "adherence_trend"
	FactorLowAdherence        FactorType = "low_adherence"
	FactorMissedTimePattern   FactorType = "missed_time_pattern"
	FactorMissedDayPattern    FactorType = "missed_day_pattern"
)

// RiskFactor one independently detected signal. Produced only by analyzers
// and never modified afterwards.
type RiskFactor struct {
	Type        FactorType             `json:"type"`
	Description string                 `json:"description"`
	Severity    FactorSeverity         `json:"severity"`
	Points      int                    `json:"points"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
}

// SubjectKind what an assessment is about.
type SubjectKind string

const (
	SubjectElder      SubjectKind = "elder"
	SubjectCaregiver  SubjectKind = "caregiver"
	SubjectMedication SubjectKind = "medication"
)

// SeverityTier ordered composite classification.
type SeverityTier string

const (
	TierLow      SeverityTier = "low"
	TierModerate SeverityTier = "moderate"
	TierHigh     SeverityTier = "high"
	TierCritical SeverityTier = "critical"
)

var tierRank = map[SeverityTier]int{
	TierLow:      0,
	TierModerate: 1,
	TierHigh:     2,
	TierCritical: 3,
}

// Rank orders tiers; unknown values rank below low.
func (t SeverityTier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return -1
}

// AtLeast reports t >= o.
func (t SeverityTier) AtLeast(o SeverityTier) bool {
	return t.Rank() >= o.Rank()
}

// Valid reports whether t is one of the four tiers.
func (t SeverityTier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// RiskAssessment result of one pipeline run (risk_assessments table).
// Only the review fields change after creation.
type RiskAssessment struct {
	ID              string       `json:"id"`
	Pipeline        string       `json:"pipeline"`
	SubjectID       string       `json:"subject_id"`
	SubjectKind     SubjectKind  `json:"subject_kind"`
	WindowStart     time.Time    `json:"window_start"`
	WindowEnd       time.Time    `json:"window_end"`
	TotalScore      int          `json:"total_score"`
	SeverityTier    SeverityTier `json:"severity_tier"`
	Factors         []RiskFactor `json:"factors"`
	Recommendations []string     `json:"recommendations"`
	AlertGenerated  bool         `json:"alert_generated"`
	AlertID         *string      `json:"alert_id,omitempty"`
	ReviewedBy      *string      `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time   `json:"reviewed_at,omitempty"`
	ActionTaken     *string      `json:"action_taken,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// SumPoints recomputes the composite score from the factor list.
func SumPoints(factors []RiskFactor) int {
	total := 0
	for _, f := range factors {
		total += f.Points
	}
	return total
}
