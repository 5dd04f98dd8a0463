package risk

import (
	"fmt"

	"wisefido-risk/internal/models"
)

// Breakpoints minimum scores for each tier above low.
type Breakpoints struct {
	Critical int
	High     int
	Moderate int
}

// Validate requires strictly descending positive breakpoints.
func (b Breakpoints) Validate() error {
	if b.Moderate <= 0 || b.High <= b.Moderate || b.Critical <= b.High {
		return fmt.Errorf("breakpoints must satisfy 0 < moderate < high < critical: %+v", b)
	}
	return nil
}

// Classify maps a score to a tier; the first breakpoint the score reaches,
// checked from critical down, wins.
func (b Breakpoints) Classify(score int) models.SeverityTier {
	switch {
	case score >= b.Critical:
		return models.TierCritical
	case score >= b.High:
		return models.TierHigh
	case score >= b.Moderate:
		return models.TierModerate
	default:
		return models.TierLow
	}
}
