package models

import "time"

// DoseStatus medication log status.
type DoseStatus string

const (
	DoseTaken   DoseStatus = "taken"
	DoseMissed  DoseStatus = "missed"
	DoseSkipped DoseStatus = "skipped"
)

// DoseEvent one scheduled dose (medication_logs table). Read-only here; the
// ingestion subsystem owns these rows.
type DoseEvent struct {
	ID            string     `json:"id" db:"log_id"`
	SubjectID     string     `json:"subject_id" db:"elder_id"`
	MedicationID  string     `json:"medication_id" db:"medication_id"`
	ScheduledTime time.Time  `json:"scheduled_time" db:"scheduled_time"`
	ActualTime    *time.Time `json:"actual_time,omitempty" db:"actual_time"`
	Status        DoseStatus `json:"status" db:"status"`
	Note          *string    `json:"note,omitempty" db:"notes"`
}

// IntakeEvent one meal/diet entry (diet_entries table).
type IntakeEvent struct {
	ID        string    `json:"id" db:"entry_id"`
	SubjectID string    `json:"subject_id" db:"elder_id"`
	Timestamp time.Time `json:"timestamp" db:"logged_at"`
	Note      *string   `json:"note,omitempty" db:"notes"`
}

// ShiftStatus caregiver shift status.
type ShiftStatus string

const (
	ShiftScheduled  ShiftStatus = "scheduled"
	ShiftInProgress ShiftStatus = "in_progress"
	ShiftCompleted  ShiftStatus = "completed"
	ShiftCancelled  ShiftStatus = "cancelled"
	ShiftNoShow     ShiftStatus = "no_show"
)

// ShiftRecord one caregiver shift (shifts table).
type ShiftRecord struct {
	ID                    string      `json:"id" db:"shift_id"`
	CaregiverID           string      `json:"caregiver_id" db:"caregiver_id"`
	SubjectOfCareID       string      `json:"subject_of_care_id" db:"elder_id"`
	Start                 time.Time   `json:"start" db:"start_time"`
	End                   time.Time   `json:"end" db:"end_time"`
	ActualDurationMinutes *int        `json:"actual_duration_minutes,omitempty" db:"actual_duration_minutes"`
	Status                ShiftStatus `json:"status" db:"status"`
}

// Worked reports whether the shift counts toward workload.
func (s ShiftRecord) Worked() bool {
	return s.Status == ShiftCompleted || s.Status == ShiftInProgress
}

// ScheduledHours is End-Start in hours.
func (s ShiftRecord) ScheduledHours() float64 {
	return s.End.Sub(s.Start).Hours()
}

// WorkedHours prefers the recorded actual duration over the schedule.
func (s ShiftRecord) WorkedHours() float64 {
	if s.ActualDurationMinutes != nil {
		return float64(*s.ActualDurationMinutes) / 60
	}
	return s.ScheduledHours()
}

// OvertimeHours is worked time beyond the scheduled length, never negative.
func (s ShiftRecord) OvertimeHours() float64 {
	if ot := s.WorkedHours() - s.ScheduledHours(); ot > 0 {
		return ot
	}
	return 0
}
