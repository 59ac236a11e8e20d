package domain

import "time"

// AlertSeverity ranks alerts for operators.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertKind names the failure condition that produced an alert.
type AlertKind string

const (
	AlertKindRunFailed     AlertKind = "run_failed"
	AlertKindFailThreshold AlertKind = "batch_fail_threshold"
)

// AlertSourceType says what SourceID points at. It is not a foreign key:
// alerts outlive the retention of their source rows.
type AlertSourceType string

const (
	AlertSourceJob   AlertSourceType = "job"
	AlertSourceBatch AlertSourceType = "batch"
)

// Alert is an operator-facing notification derived from a failure.
type Alert struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Kind       AlertKind       `gorm:"type:text;not null" json:"kind"`
	SourceType AlertSourceType `gorm:"type:text;not null" json:"source_type"`
	SourceID   uint            `gorm:"not null" json:"source_id"`
	RunID      *uint           `json:"run_id,omitempty"`
	Severity   AlertSeverity   `gorm:"type:text;not null" json:"severity"`
	Message    string          `gorm:"type:text;not null" json:"message"`
	CreatedAt  time.Time       `gorm:"index:idx_alerts_created_at" json:"created_at"`
	ResolvedAt *time.Time      `gorm:"index:idx_alerts_resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy *string         `gorm:"type:text" json:"resolved_by,omitempty"`
}

// TableName returns the database table name for Alert.
func (Alert) TableName() string {
	return "alerts"
}

// IsResolved reports whether an operator has resolved the alert.
func (a *Alert) IsResolved() bool {
	return a.ResolvedAt != nil
}
