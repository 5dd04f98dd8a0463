package risk

import "wisefido-risk/internal/models"

// Gate decides whether an assessment may raise an alert at all.
// CriticalFactor lets a single critical-severity factor pass even when the
// composite tier is below MinTier.
type Gate struct {
	MinFactors     int
	MinTier        models.SeverityTier
	CriticalFactor bool
}

// Passes reports whether factors classified at tier clear the gate.
func (g Gate) Passes(factors []models.RiskFactor, tier models.SeverityTier) bool {
	if len(factors) < g.MinFactors {
		return false
	}
	if tier.AtLeast(g.MinTier) {
		return true
	}
	if !g.CriticalFactor {
		return false
	}
	for _, f := range factors {
		if f.Severity == models.FactorCritical {
			return true
		}
	}
	return false
}

// Aggregate scoring outcome of one run.
type Aggregate struct {
	TotalScore int
	Tier       models.SeverityTier
	Eligible   bool
}

// AggregateFactors sums points without weighting and applies the gate.
func AggregateFactors(factors []models.RiskFactor, bp Breakpoints, gate Gate) Aggregate {
	score := models.SumPoints(factors)
	tier := bp.Classify(score)
	return Aggregate{
		TotalScore: score,
		Tier:       tier,
		Eligible:   gate.Passes(factors, tier),
	}
}
