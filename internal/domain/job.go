package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RunStatus represents the status of a job run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunTrigger records what started a run.
type RunTrigger string

const (
	RunTriggerSchedule RunTrigger = "schedule"
	RunTriggerManual   RunTrigger = "manual"
)

// JobParams is a custom type for storing provider query params as JSON in the database.
type JobParams map[string]string

// Value implements the driver.Valuer interface for database serialization.
func (p JobParams) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *JobParams) Scan(value interface{}) error {
	if value == nil {
		*p = JobParams{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JobParams")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, p)
}

// Job is a named sync task definition. Jobs come from configuration, not from runs.
type Job struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"type:text;not null;uniqueIndex:idx_jobs_name" json:"name"`
	EntityType EntityType `gorm:"type:text;not null" json:"entity_type"`
	Schedule   string     `gorm:"type:text" json:"schedule"`
	Params     JobParams  `gorm:"type:text" json:"params"`
	Enabled    bool       `gorm:"not null" json:"enabled"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// JobRun is one execution of a Job. At most one run per job is running at a time.
type JobRun struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	JobID        uint       `gorm:"not null;index:idx_job_runs_job_status" json:"job_id"`
	Job          *Job       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Status       RunStatus  `gorm:"type:text;not null;index:idx_job_runs_job_status" json:"status"`
	Trigger      RunTrigger `gorm:"type:text" json:"trigger"`
	BatchID      *uint      `json:"batch_id,omitempty"`
	OKCount      int        `gorm:"column:ok_count" json:"ok_count"`
	FailCount    int        `json:"fail_count"`
	TotalCount   int        `json:"total_count"`
	ErrorSummary string     `gorm:"type:text" json:"error_summary,omitempty"`
	StartedAt    time.Time  `gorm:"index:idx_job_runs_started_at" json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
}

// TableName returns the database table name for JobRun.
func (JobRun) TableName() string {
	return "job_runs"
}
