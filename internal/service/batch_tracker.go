package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/repository"
)

const (
	defaultPerPage    = 20
	maxPerPage        = 200
	defaultListLimit  = 20
	maxListLimit      = 200
	unknownFailureMsg = "unknown error"
)

// ItemQuery selects a page of batch items.
type ItemQuery struct {
	BatchID uint
	Page    int
	PerPage int
	Status  domain.ItemStatus
	Action  domain.ItemAction
}

// ItemPage is one page of batch items.
type ItemPage struct {
	Items   []domain.BatchItem `json:"items"`
	Total   int64              `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
}

// BatchTracker records sync work as batches of individually tracked items.
type BatchTracker struct {
	repo *repository.BatchRepository
	now  func() time.Time

	// locks serializes counter updates per batch id.
	locks sync.Map
}

// NewBatchTracker creates a new BatchTracker.
func NewBatchTracker(repo *repository.BatchRepository) *BatchTracker {
	return &BatchTracker{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (t *BatchTracker) lock(batchID uint) func() {
	v, _ := t.locks.LoadOrStore(batchID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// OpenBatch creates an in-flight batch with zero counters.
func (t *BatchTracker) OpenBatch(ctx context.Context, name string) (*domain.Batch, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: batch name is required", domain.ErrInvalidArgument)
	}
	batch := &domain.Batch{
		Name:      name,
		StartedAt: t.now(),
	}
	if err := t.repo.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to open batch %q: %w", name, err)
	}

	logger.CtxInfo(logger.SetBatchID(ctx, batch.ID), "[Batch] Opened %q", name)
	return batch, nil
}

// RecordItem appends an item and bumps the batch counters atomically.
// errMsg is kept only for failed items; a failed item without one gets a placeholder.
func (t *BatchTracker) RecordItem(ctx context.Context, batchID uint, externalID string, action domain.ItemAction, status domain.ItemStatus, errMsg string) (*domain.BatchItem, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: item action %q", domain.ErrInvalidArgument, action)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: item status %q", domain.ErrInvalidArgument, status)
	}

	item := &domain.BatchItem{
		BatchID:      batchID,
		ExternalID:   externalID,
		Action:       action,
		Status:       status,
		ErrorMessage: normalizeErrorMessage(status, errMsg),
	}

	unlock := t.lock(batchID)
	defer unlock()

	if err := t.repo.AppendItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// AdvanceItem moves an item forward to status. Backward moves and moves out of
// a terminal status fail with domain.ErrInvalidTransition.
func (t *BatchTracker) AdvanceItem(ctx context.Context, item *domain.BatchItem, status domain.ItemStatus, errMsg string) (*domain.BatchItem, error) {
	unlock := t.lock(item.BatchID)
	defer unlock()

	return t.repo.AdvanceItem(ctx, item.ID, status, normalizeErrorMessage(status, errMsg))
}

// CloseBatch sets finishedAt. A second call returns the already closed batch.
func (t *BatchTracker) CloseBatch(ctx context.Context, batchID uint) (*domain.Batch, error) {
	unlock := t.lock(batchID)
	batch, err := t.repo.Close(ctx, batchID, t.now())
	unlock()
	if err != nil {
		return nil, err
	}
	t.locks.Delete(batchID)

	logger.With(logger.Fields{
		logger.FieldCount:  batch.TotalCount,
		logger.FieldStatus: batch.Status(),
	}).Info(logger.SetBatchID(ctx, batchID), "[Batch] Closed %q ok=%d fail=%d", batch.Name, batch.OKCount, batch.FailCount)
	return batch, nil
}

// GetBatch returns one batch.
func (t *BatchTracker) GetBatch(ctx context.Context, batchID uint) (*domain.Batch, error) {
	return t.repo.GetByID(ctx, batchID)
}

// ListBatches returns batches newest first, optionally filtered by name.
func (t *BatchTracker) ListBatches(ctx context.Context, name string, limit int) ([]domain.Batch, error) {
	return t.repo.List(ctx, name, clampLimit(limit))
}

// ListItems returns one page of a batch's items, newest first.
func (t *BatchTracker) ListItems(ctx context.Context, q ItemQuery) (*ItemPage, error) {
	if _, err := t.repo.GetByID(ctx, q.BatchID); err != nil {
		return nil, err
	}
	if q.Status != "" && !q.Status.IsValid() {
		return nil, fmt.Errorf("%w: status filter %q", domain.ErrInvalidArgument, q.Status)
	}
	if q.Action != "" && !q.Action.IsValid() {
		return nil, fmt.Errorf("%w: action filter %q", domain.ErrInvalidArgument, q.Action)
	}

	page, perPage := clampPage(q.Page, q.PerPage)
	items, total, err := t.repo.ListItems(ctx, repository.ItemFilter{
		BatchID: q.BatchID,
		Page:    page,
		PerPage: perPage,
		Status:  q.Status,
		Action:  q.Action,
	})
	if err != nil {
		return nil, err
	}
	return &ItemPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

func normalizeErrorMessage(status domain.ItemStatus, errMsg string) string {
	if status != domain.ItemStatusFailed {
		return ""
	}
	if errMsg == "" {
		return unknownFailureMsg
	}
	return errMsg
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
