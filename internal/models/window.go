package models

import "time"

// TimeWindow is the half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTrailingWindow returns the window of the given length ending at end.
func NewTrailingWindow(end time.Time, days int) TimeWindow {
	return TimeWindow{Start: end.AddDate(0, 0, -days), End: end}
}

// Contains reports Start <= t < End.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Days is the window length in (possibly fractional) days.
func (w TimeWindow) Days() float64 {
	return w.Duration().Hours() / 24
}

// Previous returns the equal-length window ending where w starts.
func (w TimeWindow) Previous() TimeWindow {
	return TimeWindow{Start: w.Start.Add(-w.Duration()), End: w.Start}
}

// Split returns the older and the recent halves of w.
func (w TimeWindow) Split() (older, recent TimeWindow) {
	mid := w.Start.Add(w.Duration() / 2)
	return TimeWindow{Start: w.Start, End: mid}, TimeWindow{Start: mid, End: w.End}
}

// Union spans both windows; used to fetch baseline and current in one read.
func (w TimeWindow) Union(o TimeWindow) TimeWindow {
	u := w
	if o.Start.Before(u.Start) {
		u.Start = o.Start
	}
	if o.End.After(u.End) {
		u.End = o.End
	}
	return u
}
