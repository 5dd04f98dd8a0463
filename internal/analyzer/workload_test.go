package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-risk/internal/models"
)

// alternatingDays never works more than two days in a row.
var alternatingDays = []int{0, 1, 3, 4, 6, 7, 9, 10, 12, 13}

func runWorkload(in Input) []*models.RiskFactor {
	p := ProfileFor(SensitivityMedium)
	var out []*models.RiskFactor
	for _, fn := range []func(Input, Profile) *models.RiskFactor{OvertimeHours, ConsecutiveWorkdays, CaseloadSize, ShiftLength} {
		if f := fn(in, p); f != nil {
			out = append(out, f)
		}
	}
	return out
}

func TestWorkload_SustainableSchedule(t *testing.T) {
	in := testWindow(14)
	for i, d := range alternatingDays {
		recipient := "r-1"
		if i%2 == 1 {
			recipient = "r-2"
		}
		in.Shifts = append(in.Shifts, shift(day(in.Window, d, 8), 8, 8, recipient))
	}
	assert.Empty(t, runWorkload(in))
}

func TestWorkload_ModerateOvertime(t *testing.T) {
	in := testWindow(14)
	for i, d := range alternatingDays {
		worked := 8.0
		if i%2 == 0 {
			worked = 13
		}
		in.Shifts = append(in.Shifts, shift(day(in.Window, d, 8), 8, worked, "r-1"))
	}

	factors := runWorkload(in)
	require.Len(t, factors, 1)
	f := factors[0]
	assert.Equal(t, models.FactorOvertimeHours, f.Type)
	assert.Equal(t, models.FactorWarning, f.Severity)
	assert.Equal(t, 20, f.Points)
	assert.Equal(t, 25.0, f.Evidence["overtime_hours"])
	assert.Equal(t, 12.5, f.Evidence["weekly_overtime"])
	assert.Equal(t, "medium", f.Evidence["level"])
}

func TestOvertimeHours_Tiers(t *testing.T) {
	cases := []struct {
		name     string
		extra    float64
		points   int
		severity models.FactorSeverity
	}{
		{"none", 0, 0, ""},
		{"low", 1.2, 10, models.FactorInfo},
		{"medium", 2.4, 20, models.FactorWarning},
		{"high", 4.2, 30, models.FactorCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := testWindow(14)
			for _, d := range alternatingDays {
				in.Shifts = append(in.Shifts, shift(day(in.Window, d, 8), 8, 8+tc.extra, "r-1"))
			}
			f := OvertimeHours(in, Profile{})
			if tc.points == 0 {
				assert.Nil(t, f)
				return
			}
			require.NotNil(t, f)
			assert.Equal(t, tc.points, f.Points)
			assert.Equal(t, tc.severity, f.Severity)
		})
	}
}

func TestConsecutiveWorkdays(t *testing.T) {
	in := testWindow(14)
	for d := 0; d < 10; d++ {
		in.Shifts = append(in.Shifts, shift(day(in.Window, d, 8), 8, 8, "r-1"))
	}
	// a second shift on the same day does not extend the run
	in.Shifts = append(in.Shifts, shift(day(in.Window, 9, 18), 2, 2, "r-1"))

	f := ConsecutiveWorkdays(in, Profile{})
	require.NotNil(t, f)
	assert.Equal(t, models.FactorCritical, f.Severity)
	assert.Equal(t, 25, f.Points)
	assert.Equal(t, 10, f.Evidence["consecutive_days"])

	in.Shifts = in.Shifts[:6]
	f = ConsecutiveWorkdays(in, Profile{})
	require.NotNil(t, f)
	assert.Equal(t, 15, f.Points)
}

func TestCaseloadSize(t *testing.T) {
	in := testWindow(14)
	for i := 0; i < 8; i++ {
		in.Shifts = append(in.Shifts, shift(day(in.Window, i*2%14, 8), 4, 4, string(rune('a'+i))))
	}
	f := CaseloadSize(in, Profile{})
	require.NotNil(t, f)
	assert.Equal(t, models.FactorCritical, f.Severity)
	assert.Equal(t, 20, f.Points)
	assert.Equal(t, 8, f.Evidence["recipients"])
}

func TestShiftLength(t *testing.T) {
	in := testWindow(14)
	for _, d := range []int{0, 2, 4, 6, 8} {
		in.Shifts = append(in.Shifts, shift(day(in.Window, d, 6), 13.5, 13.5, "r-1"))
	}
	f := ShiftLength(in, Profile{})
	require.NotNil(t, f)
	assert.Equal(t, models.FactorCritical, f.Severity)
	assert.Equal(t, 13.5, f.Evidence["average_hours"])
	assert.Nil(t, OvertimeHours(in, Profile{}))
}

func TestWorkload_IgnoresUnworkedShifts(t *testing.T) {
	in := testWindow(14)
	for d := 0; d < 12; d++ {
		s := shift(day(in.Window, d, 8), 8, 16, "r-1")
		s.Status = models.ShiftCancelled
		if d%2 == 0 {
			s.Status = models.ShiftNoShow
		}
		in.Shifts = append(in.Shifts, s)
	}
	assert.Empty(t, runWorkload(in))
}
