package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/sportsync/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RunFilter selects a page of job runs.
type RunFilter struct {
	JobID   uint
	Status  domain.RunStatus
	Page    int
	PerPage int
}

// RunCompletion carries the outcome written when a run finishes.
type RunCompletion struct {
	Status       domain.RunStatus
	BatchID      *uint
	OKCount      int
	FailCount    int
	TotalCount   int
	ErrorSummary string
	FinishedAt   time.Time
}

// JobRepository handles job definitions and their runs.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// UpsertByName creates or updates a job definition keyed by name.
func (r *JobRepository) UpsertByName(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"entity_type", "schedule", "params", "enabled", "updated_at"}),
	}).Create(job).Error
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id uint) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job %d: %w", id, err)
	}
	return &job, nil
}

// GetByName retrieves a job by its unique name.
func (r *JobRepository) GetByName(ctx context.Context, name string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job %q: %w", name, err)
	}
	return &job, nil
}

// List returns all jobs ordered by name.
func (r *JobRepository) List(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// StartRun inserts a running run unless the job already has one. The count
// gives the common case a clear answer; the partial unique index created by
// Migrate settles races between processes sharing the database.
func (r *JobRepository) StartRun(ctx context.Context, run *domain.JobRun) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var running int64
		if err := tx.Model(&domain.JobRun{}).
			Where("job_id = ? AND status = ?", run.JobID, domain.RunStatusRunning).
			Count(&running).Error; err != nil {
			return fmt.Errorf("failed to check running runs: %w", err)
		}
		if running > 0 {
			return domain.ErrJobAlreadyRunning
		}

		run.Status = domain.RunStatusRunning
		if err := tx.Create(run).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrJobAlreadyRunning
			}
			return fmt.Errorf("failed to create job run: %w", err)
		}
		return tx.Model(&domain.Job{}).Where("id = ?", run.JobID).Update("last_run_at", run.StartedAt).Error
	})
}

// CompleteRun writes the final status of a running run.
func (r *JobRepository) CompleteRun(ctx context.Context, runID uint, c RunCompletion) (*domain.JobRun, error) {
	var run domain.JobRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&run, "id = ?", runID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRunNotFound
			}
			return fmt.Errorf("failed to load job run %d: %w", runID, err)
		}

		run.Status = c.Status
		run.BatchID = c.BatchID
		run.OKCount = c.OKCount
		run.FailCount = c.FailCount
		run.TotalCount = c.TotalCount
		run.ErrorSummary = c.ErrorSummary
		run.FinishedAt = &c.FinishedAt
		run.DurationMs = c.FinishedAt.Sub(run.StartedAt).Milliseconds()
		return tx.Save(&run).Error
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun retrieves a run by ID.
func (r *JobRepository) GetRun(ctx context.Context, id uint) (*domain.JobRun, error) {
	var run domain.JobRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to load job run %d: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns a page of runs, most recent first, and the filtered total.
func (r *JobRepository) ListRuns(ctx context.Context, f RunFilter) ([]domain.JobRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.JobRun{})
	if f.JobID != 0 {
		query = query.Where("job_id = ?", f.JobID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count job runs: %w", err)
	}

	var runs []domain.JobRun
	if err := query.
		Order("started_at DESC").
		Order("id DESC").
		Limit(f.PerPage).
		Offset((f.Page - 1) * f.PerPage).
		Find(&runs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list job runs: %w", err)
	}
	return runs, total, nil
}

// LatestRuns returns the newest run of every job that has one.
func (r *JobRepository) LatestRuns(ctx context.Context) ([]domain.JobRun, error) {
	sub := r.db.WithContext(ctx).Model(&domain.JobRun{}).Select("MAX(id)").Group("job_id")

	var runs []domain.JobRun
	if err := r.db.WithContext(ctx).Where("id IN (?)", sub).Order("job_id ASC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to load latest runs: %w", err)
	}
	return runs, nil
}

// FailStaleRuns marks runs left running by a previous process as failed.
func (r *JobRepository) FailStaleRuns(ctx context.Context, summary string, finishedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.JobRun{}).
		Where("status = ?", domain.RunStatusRunning).
		Updates(map[string]interface{}{
			"status":        domain.RunStatusFailed,
			"error_summary": summary,
			"finished_at":   finishedAt,
		})
	return res.RowsAffected, res.Error
}
