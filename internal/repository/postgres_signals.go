package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-risk/internal/models"

	"go.uber.org/zap"
)

// PostgresSignalRepository reads medication_logs, diet_entries and shifts.
type PostgresSignalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresSignalRepository(db *sql.DB, logger *zap.Logger) *PostgresSignalRepository {
	return &PostgresSignalRepository{
		db:     db,
		logger: logger,
	}
}

var _ SignalRepository = (*PostgresSignalRepository)(nil)

func (r *PostgresSignalRepository) FetchDoseEvents(ctx context.Context, elderID, medicationID string, w models.TimeWindow) ([]models.DoseEvent, error) {
	if elderID == "" {
		return nil, fmt.Errorf("elder_id is required")
	}

	query := `
		SELECT
			log_id,
			elder_id,
			medication_id,
			scheduled_time,
			actual_time,
			status,
			notes
		FROM medication_logs
		WHERE elder_id = $1
		  AND scheduled_time >= $2
		  AND scheduled_time < $3
	`
	args := []interface{}{elderID, w.Start, w.End}
	if medicationID != "" {
		query += fmt.Sprintf(" AND medication_id = $%d", len(args)+1)
		args = append(args, medicationID)
	}
	query += " ORDER BY scheduled_time ASC, log_id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query medication logs: %w", err)
	}
	defer rows.Close()

	var events []models.DoseEvent
	for rows.Next() {
		var e models.DoseEvent
		var actual sql.NullTime
		var notes sql.NullString
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.MedicationID, &e.ScheduledTime, &actual, &e.Status, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan medication log: %w", err)
		}
		if actual.Valid {
			e.ActualTime = &actual.Time
		}
		if notes.Valid {
			e.Note = &notes.String
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medication logs: %w", err)
	}
	return events, nil
}

func (r *PostgresSignalRepository) FetchIntakeEvents(ctx context.Context, elderID string, w models.TimeWindow) ([]models.IntakeEvent, error) {
	if elderID == "" {
		return nil, fmt.Errorf("elder_id is required")
	}

	query := `
		SELECT entry_id, elder_id, logged_at, notes
		FROM diet_entries
		WHERE elder_id = $1
		  AND logged_at >= $2
		  AND logged_at < $3
		ORDER BY logged_at ASC, entry_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, elderID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query diet entries: %w", err)
	}
	defer rows.Close()

	var events []models.IntakeEvent
	for rows.Next() {
		var e models.IntakeEvent
		var notes sql.NullString
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.Timestamp, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan diet entry: %w", err)
		}
		if notes.Valid {
			e.Note = &notes.String
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate diet entries: %w", err)
	}
	return events, nil
}

func (r *PostgresSignalRepository) FetchShifts(ctx context.Context, caregiverID string, w models.TimeWindow) ([]models.ShiftRecord, error) {
	if caregiverID == "" {
		return nil, fmt.Errorf("caregiver_id is required")
	}

	query := `
		SELECT
			shift_id,
			caregiver_id,
			elder_id,
			start_time,
			end_time,
			actual_duration_minutes,
			status
		FROM shifts
		WHERE caregiver_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time ASC, shift_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, caregiverID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []models.ShiftRecord
	for rows.Next() {
		var s models.ShiftRecord
		var elderID sql.NullString
		var minutes sql.NullInt64
		if err := rows.Scan(&s.ID, &s.CaregiverID, &elderID, &s.Start, &s.End, &minutes, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		s.SubjectOfCareID = elderID.String
		if minutes.Valid {
			m := int(minutes.Int64)
			s.ActualDurationMinutes = &m
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shifts: %w", err)
	}
	return shifts, nil
}

var subjectTables = map[models.SubjectKind]string{
	models.SubjectElder:      `SELECT EXISTS (SELECT 1 FROM elders WHERE elder_id = $1)`,
	models.SubjectCaregiver:  `SELECT EXISTS (SELECT 1 FROM caregivers WHERE caregiver_id = $1)`,
	models.SubjectMedication: `SELECT EXISTS (SELECT 1 FROM medications WHERE medication_id = $1)`,
}

func (r *PostgresSignalRepository) SubjectExists(ctx context.Context, kind models.SubjectKind, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	query, ok := subjectTables[kind]
	if !ok {
		return false, fmt.Errorf("unknown subject kind: %s", kind)
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", kind, err)
	}
	return exists, nil
}

func (r *PostgresSignalRepository) MedicationBelongsTo(ctx context.Context, medicationID, elderID string) (bool, error) {
	if medicationID == "" || elderID == "" {
		return false, nil
	}
	query := `SELECT EXISTS (SELECT 1 FROM medications WHERE medication_id = $1 AND elder_id = $2)`
	var owned bool
	if err := r.db.QueryRowContext(ctx, query, medicationID, elderID).Scan(&owned); err != nil {
		return false, fmt.Errorf("failed to check medication ownership: %w", err)
	}
	return owned, nil
}

func (r *PostgresSignalRepository) ListAgencyCaregivers(ctx context.Context, agencyID string) ([]string, error) {
	if agencyID == "" {
		return nil, fmt.Errorf("agency_id is required")
	}

	query := `
		SELECT caregiver_id
		FROM caregivers
		WHERE agency_id = $1
		  AND status = 'active'
		ORDER BY caregiver_id
	`
	rows, err := r.db.QueryContext(ctx, query, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query caregivers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan caregiver: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate caregivers: %w", err)
	}
	return ids, nil
}
