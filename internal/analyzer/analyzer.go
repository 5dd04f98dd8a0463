// Package analyzer holds the factor analyzer library: pure, deterministic
// rules that each turn a window of log records into zero or one RiskFactor.
//
// Analyzers never return errors. Too little data (fewer than the analyzer's
// minimum records, or no baseline) yields nil, never a low-confidence factor.
package analyzer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"wisefido-risk/internal/models"
)

// Minimum windowed records below which analyzers report nothing.
const (
	MinDoseRecords   = 7
	MinIntakeRecords = 7
	MinWorkedShifts  = 5
)

// Input is everything an analyzer may look at. Record slices are ordered by
// time ascending and may extend into Baseline; analyzers filter by window.
type Input struct {
	Window   models.TimeWindow
	Baseline models.TimeWindow
	Doses    []models.DoseEvent
	Intakes  []models.IntakeEvent
	Shifts   []models.ShiftRecord
	// Location decides calendar days and hours; nil means UTC.
	Location *time.Location
}

func (in Input) loc() *time.Location {
	if in.Location == nil {
		return time.UTC
	}
	return in.Location
}

// Analyzer scores one risk dimension. Name is the factor type it emits.
// Records counts the input records the analyzer would use; callers skip
// Analyze when that is below MinRecords.
type Analyzer interface {
	Name() string
	MinRecords() int
	Records(in Input) int
	Analyze(in Input, p Profile) *models.RiskFactor
}

// Func adapts a plain function to Analyzer. A nil Count counts every
// record inside the window.
type Func struct {
	FactorType models.FactorType
	Min        int
	Count      func(in Input) int
	Fn         func(in Input, p Profile) *models.RiskFactor
}

func (f Func) Name() string { return string(f.FactorType) }

func (f Func) MinRecords() int { return f.Min }

func (f Func) Records(in Input) int {
	if f.Count == nil {
		return WindowDoses(in) + WindowIntakes(in) + WorkedShifts(in)
	}
	return f.Count(in)
}

func (f Func) Analyze(in Input, p Profile) *models.RiskFactor { return f.Fn(in, p) }

// Registry maps factor types to analyzers. Each pipeline selects its own
// ordered subset; the order decides factor order in assessments.
type Registry struct {
	analyzers map[string]Analyzer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[string]Analyzer)}
}

// NewDefaultRegistry returns a registry with every built-in analyzer.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []Analyzer{
		Func{models.FactorComplianceDecline, MinDoseRecords, WindowDoses, ComplianceDecline},
		Func{models.FactorIntakeDecline, MinIntakeRecords, BaselineIntakes, IntakeDecline},
		Func{models.FactorPainMentions, 1, WindowNotes, PainMentions},
		Func{models.FactorMoodMentions, 1, WindowNotes, MoodMentions},
		Func{models.FactorSymptomMentions, 1, WindowNotes, SymptomMentions},
		Func{models.FactorMissedDoseStreak, MinDoseRecords, WindowDoses, MissedDoseStreak},
		Func{models.FactorOvertimeHours, MinWorkedShifts, WorkedShifts, OvertimeHours},
		Func{models.FactorConsecutiveWorkdays, MinWorkedShifts, WorkedShifts, ConsecutiveWorkdays},
		Func{models.FactorCaseloadSize, MinWorkedShifts, WorkedShifts, CaseloadSize},
		Func{models.FactorShiftLength, MinWorkedShifts, WorkedShifts, ShiftLength},
		Func{models.FactorAdherenceTrend, MinDoseRecords, WindowDoses, AdherenceTrend},
		Func{models.FactorLowAdherence, MinDoseRecords, WindowDoses, LowAdherence},
		Func{models.FactorMissedTimePattern, MinDoseRecords, WindowDoses, MissedTimePattern},
		Func{models.FactorMissedDayPattern, MinDoseRecords, WindowDoses, MissedDayPattern},
	} {
		// built-ins are unique
		_ = r.Register(a)
	}
	return r
}

// Register adds a; registering the same type twice is an error.
func (r *Registry) Register(a Analyzer) error {
	if a == nil {
		return fmt.Errorf("analyzer is required")
	}
	if a.Name() == "" {
		return fmt.Errorf("analyzer name is required")
	}
	if _, exists := r.analyzers[a.Name()]; exists {
		return fmt.Errorf("analyzer already registered: %s", a.Name())
	}
	r.analyzers[a.Name()] = a
	return nil
}

// Lookup returns the analyzer registered under name.
func (r *Registry) Lookup(name string) (Analyzer, bool) {
	a, ok := r.analyzers[name]
	return a, ok
}

// Select returns analyzers for types in the given order.
func (r *Registry) Select(types ...models.FactorType) ([]Analyzer, error) {
	out := make([]Analyzer, 0, len(types))
	for _, t := range types {
		a, ok := r.analyzers[string(t)]
		if !ok {
			return nil, fmt.Errorf("unknown analyzer: %s", t)
		}
		out = append(out, a)
	}
	return out, nil
}

// Names lists registered analyzer names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ============================================
// record counts
// ============================================

// WindowDoses counts dose events scheduled inside the window.
func WindowDoses(in Input) int { return len(dosesIn(in.Doses, in.Window)) }

// WindowIntakes counts intake events inside the window.
func WindowIntakes(in Input) int {
	n := 0
	for _, e := range in.Intakes {
		if in.Window.Contains(e.Timestamp) {
			n++
		}
	}
	return n
}

// BaselineIntakes counts intake events in the baseline window, the side an
// intake decline is measured against.
func BaselineIntakes(in Input) int {
	n := 0
	for _, e := range in.Intakes {
		if in.Baseline.Contains(e.Timestamp) {
			n++
		}
	}
	return n
}

// WindowNotes counts free-text notes inside the window.
func WindowNotes(in Input) int { return len(windowNotes(in)) }

// WorkedShifts counts worked shifts starting inside the window.
func WorkedShifts(in Input) int {
	n := 0
	for _, s := range in.Shifts {
		if s.Worked() && in.Window.Contains(s.Start) {
			n++
		}
	}
	return n
}

// ============================================
// helpers
// ============================================

func newFactor(t models.FactorType, sev models.FactorSeverity, points int, desc string, evidence map[string]interface{}) *models.RiskFactor {
	return &models.RiskFactor{
		Type:        t,
		Description: desc,
		Severity:    sev,
		Points:      points,
		Evidence:    evidence,
	}
}

// round1 keeps evidence stable and readable.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

func dosesIn(doses []models.DoseEvent, w models.TimeWindow) []models.DoseEvent {
	var out []models.DoseEvent
	for _, d := range doses {
		if w.Contains(d.ScheduledTime) {
			out = append(out, d)
		}
	}
	return out
}

func takenRate(doses []models.DoseEvent) float64 {
	taken := 0
	for _, d := range doses {
		if d.Status == models.DoseTaken {
			taken++
		}
	}
	return percent(taken, len(doses))
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
