package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-risk/internal/models"

	"go.uber.org/zap"
)

// PostgresAlertRepository risk_alerts.
type PostgresAlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresAlertRepository(db *sql.DB, logger *zap.Logger) *PostgresAlertRepository {
	return &PostgresAlertRepository{
		db:     db,
		logger: logger,
	}
}

var _ AlertRepository = (*PostgresAlertRepository)(nil)

func (r *PostgresAlertRepository) FetchRecentAlerts(ctx context.Context, subjectID, alertType string, since time.Time) ([]*models.Alert, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject_id is required")
	}
	if alertType == "" {
		return nil, fmt.Errorf("alert_type is required")
	}

	query := `
		SELECT
			alert_id,
			subject_id,
			assessment_id,
			alert_type,
			severity,
			title,
			message,
			actions,
			status,
			notification_channels,
			escalated,
			created_at
		FROM risk_alerts
		WHERE subject_id = $1
		  AND alert_type = $2
		  AND created_at >= $3
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, subjectID, alertType, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		var actions, channels []byte
		if err := rows.Scan(
			&a.ID,
			&a.SubjectID,
			&a.AssessmentID,
			&a.Type,
			&a.Severity,
			&a.Title,
			&a.Message,
			&actions,
			&a.Status,
			&channels,
			&a.Escalated,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if len(actions) > 0 {
			if err := json.Unmarshal(actions, &a.Actions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal alert actions: %w", err)
			}
		}
		if len(channels) > 0 {
			if err := json.Unmarshal(channels, &a.NotificationChannels); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification channels: %w", err)
			}
		}
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

func (r *PostgresAlertRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.ID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if alert.SubjectID == "" {
		return fmt.Errorf("subject_id is required")
	}
	if alert.AssessmentID == "" {
		return fmt.Errorf("assessment_id is required")
	}

	actions, err := json.Marshal(alert.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal alert actions: %w", err)
	}
	channels, err := json.Marshal(alert.NotificationChannels)
	if err != nil {
		return fmt.Errorf("failed to marshal notification channels: %w", err)
	}

	query := `
		INSERT INTO risk_alerts (
			alert_id,
			subject_id,
			assessment_id,
			alert_type,
			severity,
			title,
			message,
			actions,
			status,
			notification_channels,
			escalated,
			day_bucket,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (subject_id, alert_type, severity, day_bucket) DO NOTHING
		RETURNING alert_id
	`
	var inserted string
	err = r.db.QueryRowContext(ctx, query,
		alert.ID,
		alert.SubjectID,
		alert.AssessmentID,
		alert.Type,
		string(alert.Severity),
		alert.Title,
		alert.Message,
		actions,
		string(alert.Status),
		channels,
		alert.Escalated,
		alert.DayBucket(),
		alert.CreatedAt,
	).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Info("Alert already exists for subject today",
			zap.String("subject_id", alert.SubjectID),
			zap.String("alert_type", alert.Type),
			zap.String("severity", string(alert.Severity)),
		)
		return ErrDuplicateAlert
	}
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}
