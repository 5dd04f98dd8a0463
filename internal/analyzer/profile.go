package analyzer

import (
	"fmt"
	"strings"
)

// Sensitivity named threshold set.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// ParseSensitivity accepts low/medium/high in any case; empty means medium.
func ParseSensitivity(s string) (Sensitivity, error) {
	switch Sensitivity(strings.ToLower(strings.TrimSpace(s))) {
	case "", SensitivityMedium:
		return SensitivityMedium, nil
	case SensitivityLow:
		return SensitivityLow, nil
	case SensitivityHigh:
		return SensitivityHigh, nil
	default:
		return "", fmt.Errorf("invalid sensitivity: %q", s)
	}
}

// Profile thresholds the analyzers read. Higher sensitivity means lower
// thresholds, so the analyzer fires more readily.
type Profile struct {
	Sensitivity Sensitivity

	// ComplianceDeclinePP minimum drop in taken% (percentage points).
	ComplianceDeclinePP float64
	// IntakeDeclinePct minimum relative drop in meal entries.
	IntakeDeclinePct float64

	PainMinMentions    int
	MoodMinMentions    int
	MoodMinDays        int
	SymptomMinMentions int

	// StreakWarningPoints/StreakCriticalPoints let a pipeline put the streak
	// factor on its own score scale.
	StreakWarningPoints  int
	StreakCriticalPoints int
}

// ProfileFor returns the calibrated profile for s (medium when unknown).
func ProfileFor(s Sensitivity) Profile {
	p := Profile{
		Sensitivity:          SensitivityMedium,
		ComplianceDeclinePP:  25,
		IntakeDeclinePct:     40,
		PainMinMentions:      3,
		MoodMinMentions:      3,
		MoodMinDays:          2,
		SymptomMinMentions:   2,
		StreakWarningPoints:  3,
		StreakCriticalPoints: 5,
	}
	switch s {
	case SensitivityLow:
		p.Sensitivity = SensitivityLow
		p.ComplianceDeclinePP = 35
		p.IntakeDeclinePct = 50
		p.PainMinMentions = 4
		p.MoodMinMentions = 4
		p.SymptomMinMentions = 3
	case SensitivityHigh:
		p.Sensitivity = SensitivityHigh
		p.ComplianceDeclinePP = 20
		p.IntakeDeclinePct = 30
		p.PainMinMentions = 2
		p.MoodMinMentions = 2
	}
	return p
}
