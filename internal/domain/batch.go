package domain

import "time"

// ItemStatus is the lifecycle state of a batch item.
type ItemStatus string

const (
	ItemStatusQueued  ItemStatus = "queued"
	ItemStatusRunning ItemStatus = "running"
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusFailed  ItemStatus = "failed"
	ItemStatusSkipped ItemStatus = "skipped"
)

// IsTerminal reports whether no further transition is allowed.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusSuccess || s == ItemStatusFailed || s == ItemStatusSkipped
}

// IsValid reports whether s is a known status.
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusQueued, ItemStatusRunning, ItemStatusSuccess, ItemStatusFailed, ItemStatusSkipped:
		return true
	}
	return false
}

func (s ItemStatus) rank() int {
	switch s {
	case ItemStatusQueued:
		return 0
	case ItemStatusRunning:
		return 1
	default:
		return 2
	}
}

// CanTransition reports whether an item may move from s to next.
// Transitions only go forward: queued -> running -> terminal.
func (s ItemStatus) CanTransition(next ItemStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	return next.rank() > s.rank()
}

// ItemAction is what the sync decided to do with a provider record.
type ItemAction string

const (
	ItemActionCreate ItemAction = "create"
	ItemActionUpdate ItemAction = "update"
	ItemActionSkip   ItemAction = "skip"
)

// IsValid reports whether a is a known action.
func (a ItemAction) IsValid() bool {
	return a == ItemActionCreate || a == ItemActionUpdate || a == ItemActionSkip
}

// Batch is one tracked sync run for one entity type or named scope.
// OKCount + FailCount never exceeds TotalCount and equals it once FinishedAt is set.
type Batch struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"type:text;not null;index:idx_batches_name" json:"name"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	TotalCount int        `gorm:"default:0" json:"total_count"`
	OKCount    int        `gorm:"column:ok_count;default:0" json:"ok_count"`
	FailCount  int        `gorm:"default:0" json:"fail_count"`
	ArchiveKey string     `gorm:"type:text" json:"archive_key,omitempty"`
	CreatedAt  time.Time  `gorm:"index:idx_batches_created_at" json:"created_at"`
}

// TableName returns the database table name for Batch.
func (Batch) TableName() string {
	return "batches"
}

// IsClosed reports whether the batch has been finalized.
func (b *Batch) IsClosed() bool {
	return b.FinishedAt != nil
}

// Status summarizes the batch for operators.
func (b *Batch) Status() string {
	switch {
	case b.FinishedAt == nil:
		return "running"
	case b.FailCount > 0:
		return "completed_with_errors"
	default:
		return "completed"
	}
}

// BatchItem is the recorded outcome of syncing one provider record.
type BatchItem struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	BatchID      uint       `gorm:"not null;index:idx_batch_items_batch" json:"batch_id"`
	Batch        *Batch     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ExternalID   string     `gorm:"type:text;not null" json:"external_id"`
	Action       ItemAction `gorm:"type:text;not null;index:idx_batch_items_action" json:"action"`
	Status       ItemStatus `gorm:"type:text;not null;index:idx_batch_items_status" json:"status"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for BatchItem.
func (BatchItem) TableName() string {
	return "batch_items"
}

// BatchWithStatus decorates a batch with its derived status for API output.
type BatchWithStatus struct {
	Batch
	Status string `json:"status"`
}

// WithStatus wraps b for serialization.
func (b Batch) WithStatus() BatchWithStatus {
	return BatchWithStatus{Batch: b, Status: b.Status()}
}
