package models

import "time"

// AlertStatus lifecycle; transitions past active happen outside this service.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// NotificationChannel delivery channel understood by the delivery subsystem.
type NotificationChannel string

const (
	ChannelDashboard NotificationChannel = "dashboard"
	ChannelPush      NotificationChannel = "push"
	ChannelSMS       NotificationChannel = "sms"
)

// AllChannels every channel the delivery subsystem supports. Critical and
// escalated alerts must carry all of them.
var AllChannels = []NotificationChannel{ChannelDashboard, ChannelPush, ChannelSMS}

// AlertAction a button the dashboard renders on the alert.
type AlertAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Alert row in risk_alerts.
type Alert struct {
	ID                   string                `json:"id"`
	SubjectID            string                `json:"subject_id"`
	AssessmentID         string                `json:"assessment_id"`
	Type                 string                `json:"type"`
	Severity             SeverityTier          `json:"severity"`
	Title                string                `json:"title"`
	Message              string                `json:"message"`
	Actions              []AlertAction         `json:"actions"`
	Status               AlertStatus           `json:"status"`
	NotificationChannels []NotificationChannel `json:"notification_channels"`
	Escalated            bool                  `json:"escalated"`
	CreatedAt            time.Time             `json:"created_at"`
}

// DayBucket is the UTC calendar day used by the alert uniqueness constraint.
func (a *Alert) DayBucket() string {
	return a.CreatedAt.UTC().Format("2006-01-02")
}
