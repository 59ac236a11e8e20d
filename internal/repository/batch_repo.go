package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/sportsync/internal/domain"
	"gorm.io/gorm"
)

// closedEarlyMessage is stamped on items that never reached a terminal status before close.
const closedEarlyMessage = "batch closed before item completed"

// ItemFilter selects a page of batch items.
type ItemFilter struct {
	BatchID uint
	Page    int
	PerPage int
	Status  domain.ItemStatus
	Action  domain.ItemAction
}

// BatchRepository handles batch and batch item persistence.
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a new open batch.
func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// GetByID retrieves a batch by its ID.
// Returns domain.ErrBatchNotFound when no row matches.
func (r *BatchRepository) GetByID(ctx context.Context, id uint) (*domain.Batch, error) {
	return getBatch(r.db.WithContext(ctx), id)
}

func getBatch(tx *gorm.DB, id uint) (*domain.Batch, error) {
	var batch domain.Batch
	if err := tx.First(&batch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to load batch %d: %w", id, err)
	}
	return &batch, nil
}

// counterDelta maps a status to its ok/fail increments. Skipped counts as ok.
func counterDelta(status domain.ItemStatus) (ok, fail int) {
	switch status {
	case domain.ItemStatusSuccess, domain.ItemStatusSkipped:
		return 1, 0
	case domain.ItemStatusFailed:
		return 0, 1
	}
	return 0, 0
}

// AppendItem inserts an item and bumps the owning batch's counters in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - item: item to insert; BatchID must reference an open batch.
//
// Returns:
//   - error: domain.ErrBatchNotFound, domain.ErrBatchClosed, or a database error.
func (r *BatchRepository) AppendItem(ctx context.Context, item *domain.BatchItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := getBatch(tx, item.BatchID)
		if err != nil {
			return err
		}
		if batch.IsClosed() {
			return domain.ErrBatchClosed
		}

		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to insert batch item: %w", err)
		}

		ok, fail := counterDelta(item.Status)
		return tx.Model(&domain.Batch{}).Where("id = ?", item.BatchID).Updates(map[string]interface{}{
			"total_count": gorm.Expr("total_count + ?", 1),
			"ok_count":    gorm.Expr("ok_count + ?", ok),
			"fail_count":  gorm.Expr("fail_count + ?", fail),
		}).Error
	})
}

// AdvanceItem moves an item forward in its lifecycle and, on a terminal status,
// bumps the owning batch's ok or fail counter in the same transaction.
func (r *BatchRepository) AdvanceItem(ctx context.Context, itemID uint, status domain.ItemStatus, errMsg string) (*domain.BatchItem, error) {
	var item domain.BatchItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrItemNotFound
			}
			return fmt.Errorf("failed to load batch item %d: %w", itemID, err)
		}
		if !item.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, item.Status, status)
		}

		if status != domain.ItemStatusFailed {
			errMsg = ""
		}
		if err := tx.Model(&item).Updates(map[string]interface{}{
			"status":        status,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		}).Error; err != nil {
			return fmt.Errorf("failed to update batch item %d: %w", itemID, err)
		}
		item.Status = status
		item.ErrorMessage = errMsg

		ok, fail := counterDelta(status)
		if ok == 0 && fail == 0 {
			return nil
		}
		return tx.Model(&domain.Batch{}).Where("id = ?", item.BatchID).Updates(map[string]interface{}{
			"ok_count":   gorm.Expr("ok_count + ?", ok),
			"fail_count": gorm.Expr("fail_count + ?", fail),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Close sets finished_at once. Items still queued or running are failed first so the
// counters add up. Closing an already closed batch returns it unchanged.
func (r *BatchRepository) Close(ctx context.Context, id uint, finishedAt time.Time) (*domain.Batch, error) {
	var closed *domain.Batch
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := getBatch(tx, id)
		if err != nil {
			return err
		}
		if batch.IsClosed() {
			closed = batch
			return nil
		}

		swept := tx.Model(&domain.BatchItem{}).
			Where("batch_id = ? AND status IN ?", id, []domain.ItemStatus{domain.ItemStatusQueued, domain.ItemStatusRunning}).
			Updates(map[string]interface{}{
				"status":        domain.ItemStatusFailed,
				"error_message": closedEarlyMessage,
				"updated_at":    finishedAt,
			})
		if swept.Error != nil {
			return fmt.Errorf("failed to finalize open items of batch %d: %w", id, swept.Error)
		}

		if err := tx.Model(&domain.Batch{}).Where("id = ?", id).Updates(map[string]interface{}{
			"fail_count":  gorm.Expr("fail_count + ?", swept.RowsAffected),
			"finished_at": finishedAt,
		}).Error; err != nil {
			return fmt.Errorf("failed to close batch %d: %w", id, err)
		}

		closed, err = getBatch(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// SetArchiveKey records where the batch report was archived.
func (r *BatchRepository) SetArchiveKey(ctx context.Context, id uint, key string) error {
	return r.db.WithContext(ctx).Model(&domain.Batch{}).Where("id = ?", id).Update("archive_key", key).Error
}

// List returns batches, newest first, optionally filtered by name.
func (r *BatchRepository) List(ctx context.Context, name string, limit int) ([]domain.Batch, error) {
	var batches []domain.Batch
	query := r.db.WithContext(ctx)
	if name != "" {
		query = query.Where("name = ?", name)
	}
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

// ListItems returns one page of a batch's items, newest first, and the filtered total.
func (r *BatchRepository) ListItems(ctx context.Context, f ItemFilter) ([]domain.BatchItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.BatchItem{}).Where("batch_id = ?", f.BatchID)
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count batch items: %w", err)
	}

	var items []domain.BatchItem
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(f.PerPage).
		Offset((f.Page - 1) * f.PerPage).
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list batch items: %w", err)
	}
	return items, total, nil
}

// LatestClosed returns the most recently finished batch for each given name.
func (r *BatchRepository) LatestClosed(ctx context.Context, names []string) (map[string]domain.Batch, error) {
	latest := make(map[string]domain.Batch, len(names))
	if len(names) == 0 {
		return latest, nil
	}

	sub := r.db.WithContext(ctx).Model(&domain.Batch{}).
		Select("MAX(id)").
		Where("name IN ? AND finished_at IS NOT NULL", names).
		Group("name")

	var batches []domain.Batch
	if err := r.db.WithContext(ctx).Where("id IN (?)", sub).Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("failed to load latest batches: %w", err)
	}
	for _, b := range batches {
		latest[b.Name] = b
	}
	return latest, nil
}

// CountOpen returns how many batches are still in flight.
func (r *BatchRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Batch{}).Where("finished_at IS NULL").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
