package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wisefido-risk/internal/models"
)

// MemoryStore implements all three repositories in process, for DB_ENABLED=false
// runs and tests. It enforces the same alert uniqueness rule as the table.
type MemoryStore struct {
	mu sync.RWMutex

	doses   []models.DoseEvent
	intakes []models.IntakeEvent
	shifts  []models.ShiftRecord

	elders      map[string]string // elderID -> agencyID
	caregivers  map[string]string // caregiverID -> agencyID
	medications map[string]string // medicationID -> elderID

	assessments map[string]*models.RiskAssessment
	alerts      []*models.Alert
	alertKeys   map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		elders:      map[string]string{},
		caregivers:  map[string]string{},
		medications: map[string]string{},
		assessments: map[string]*models.RiskAssessment{},
		alertKeys:   map[string]bool{},
	}
}

var (
	_ SignalRepository     = (*MemoryStore)(nil)
	_ AlertRepository      = (*MemoryStore)(nil)
	_ AssessmentRepository = (*MemoryStore)(nil)
)

// ---- seeding ----

func (s *MemoryStore) AddElder(elderID, agencyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elders[elderID] = agencyID
}

func (s *MemoryStore) AddCaregiver(caregiverID, agencyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caregivers[caregiverID] = agencyID
}

func (s *MemoryStore) AddMedication(medicationID, elderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.medications[medicationID] = elderID
}

func (s *MemoryStore) AddDoseEvents(events ...models.DoseEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doses = append(s.doses, events...)
}

func (s *MemoryStore) AddIntakeEvents(events ...models.IntakeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intakes = append(s.intakes, events...)
}

func (s *MemoryStore) AddShifts(shifts ...models.ShiftRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts = append(s.shifts, shifts...)
}

// Alerts returns a snapshot of every stored alert.
func (s *MemoryStore) Alerts() []*models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Alert, len(s.alerts))
	for i, a := range s.alerts {
		cp := *a
		out[i] = &cp
	}
	return out
}

// ---- SignalRepository ----

func (s *MemoryStore) FetchDoseEvents(_ context.Context, elderID, medicationID string, w models.TimeWindow) ([]models.DoseEvent, error) {
	if elderID == "" {
		return nil, fmt.Errorf("elder_id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DoseEvent
	for _, d := range s.doses {
		if d.SubjectID != elderID || !w.Contains(d.ScheduledTime) {
			continue
		}
		if medicationID != "" && d.MedicationID != medicationID {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out, nil
}

func (s *MemoryStore) FetchIntakeEvents(_ context.Context, elderID string, w models.TimeWindow) ([]models.IntakeEvent, error) {
	if elderID == "" {
		return nil, fmt.Errorf("elder_id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.IntakeEvent
	for _, e := range s.intakes {
		if e.SubjectID == elderID && w.Contains(e.Timestamp) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) FetchShifts(_ context.Context, caregiverID string, w models.TimeWindow) ([]models.ShiftRecord, error) {
	if caregiverID == "" {
		return nil, fmt.Errorf("caregiver_id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ShiftRecord
	for _, sh := range s.shifts {
		if sh.CaregiverID == caregiverID && w.Contains(sh.Start) {
			out = append(out, sh)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *MemoryStore) SubjectExists(_ context.Context, kind models.SubjectKind, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case models.SubjectElder:
		_, ok := s.elders[id]
		return ok, nil
	case models.SubjectCaregiver:
		_, ok := s.caregivers[id]
		return ok, nil
	case models.SubjectMedication:
		_, ok := s.medications[id]
		return ok, nil
	default:
		return false, fmt.Errorf("unknown subject kind: %s", kind)
	}
}

func (s *MemoryStore) MedicationBelongsTo(_ context.Context, medicationID, elderID string) (bool, error) {
	if medicationID == "" || elderID == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.medications[medicationID]
	return ok && owner == elderID, nil
}

func (s *MemoryStore) ListAgencyCaregivers(_ context.Context, agencyID string) ([]string, error) {
	if agencyID == "" {
		return nil, fmt.Errorf("agency_id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, agency := range s.caregivers {
		if agency == agencyID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ---- AlertRepository ----

func alertKey(a *models.Alert) string {
	return a.SubjectID + "|" + a.Type + "|" + string(a.Severity) + "|" + a.DayBucket()
}

func (s *MemoryStore) FetchRecentAlerts(_ context.Context, subjectID, alertType string, since time.Time) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Alert
	for _, a := range s.alerts {
		if a.SubjectID == subjectID && a.Type == alertType && !a.CreatedAt.Before(since) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateAlert(_ context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := alertKey(alert)
	if s.alertKeys[key] {
		return ErrDuplicateAlert
	}
	s.alertKeys[key] = true
	cp := *alert
	s.alerts = append(s.alerts, &cp)
	return nil
}

// ---- AssessmentRepository ----

func cloneAssessment(a *models.RiskAssessment) *models.RiskAssessment {
	cp := *a
	cp.Factors = append([]models.RiskFactor(nil), a.Factors...)
	cp.Recommendations = append([]string(nil), a.Recommendations...)
	return &cp
}

func (s *MemoryStore) CreateAssessment(_ context.Context, a *models.RiskAssessment) error {
	if a == nil {
		return fmt.Errorf("assessment is required")
	}
	if a.ID == "" {
		return fmt.Errorf("assessment_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assessments[a.ID]; exists {
		return fmt.Errorf("assessment %s already exists", a.ID)
	}
	cp := cloneAssessment(a)
	cp.AlertGenerated = false
	cp.AlertID = nil
	s.assessments[a.ID] = cp
	return nil
}

func (s *MemoryStore) LinkAlert(_ context.Context, assessmentID, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assessments[assessmentID]
	if !ok {
		return fmt.Errorf("assessment %s: %w", assessmentID, ErrNotFound)
	}
	id := alertID
	a.AlertGenerated = true
	a.AlertID = &id
	return nil
}

func (s *MemoryStore) GetAssessment(_ context.Context, assessmentID string) (*models.RiskAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assessments[assessmentID]
	if !ok {
		return nil, fmt.Errorf("assessment %s: %w", assessmentID, ErrNotFound)
	}
	return cloneAssessment(a), nil
}

func (s *MemoryStore) ListAssessments(_ context.Context, subjectID string, page, size int) ([]*models.RiskAssessment, int, error) {
	page, size = normalizePage(page, size)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.RiskAssessment
	for _, a := range s.assessments {
		if a.SubjectID == subjectID {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	start := (page - 1) * size
	if start >= total {
		return []*models.RiskAssessment{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	out := make([]*models.RiskAssessment, 0, end-start)
	for _, a := range all[start:end] {
		out = append(out, cloneAssessment(a))
	}
	return out, total, nil
}

func (s *MemoryStore) RecordReview(_ context.Context, assessmentID, reviewer, action string, at time.Time) error {
	if reviewer == "" {
		return fmt.Errorf("reviewer is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assessments[assessmentID]
	if !ok {
		return fmt.Errorf("assessment %s: %w", assessmentID, ErrNotFound)
	}
	if a.ReviewedBy != nil {
		return ErrAlreadyReviewed
	}
	a.ReviewedBy = &reviewer
	a.ReviewedAt = &at
	a.ActionTaken = &action
	return nil
}
