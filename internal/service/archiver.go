package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/repository"
	"github.com/timmy/sportsync/internal/storage"
)

// archivePageSize is how many items are read per query while building a report.
const archivePageSize = 500

// BatchReport is the archived form of a closed batch.
type BatchReport struct {
	Batch      domain.BatchWithStatus `json:"batch"`
	Items      []domain.BatchItem     `json:"items"`
	ArchivedAt time.Time              `json:"archived_at"`
}

// BatchArchiver writes closed batch reports to object storage.
type BatchArchiver struct {
	store   storage.ObjectStore
	batches *repository.BatchRepository
	prefix  string
}

// NewBatchArchiver creates a new BatchArchiver.
func NewBatchArchiver(store storage.ObjectStore, batches *repository.BatchRepository, prefix string) *BatchArchiver {
	return &BatchArchiver{store: store, batches: batches, prefix: prefix}
}

// Key returns the object key of a batch report.
func (a *BatchArchiver) Key(batch *domain.Batch) string {
	return path.Join(a.prefix, batch.Name, fmt.Sprintf("%d.json", batch.ID))
}

// Archive uploads the report of a closed batch and records its key.
func (a *BatchArchiver) Archive(ctx context.Context, batch *domain.Batch) (string, error) {
	if !batch.IsClosed() {
		return "", fmt.Errorf("%w: batch %d is still open", domain.ErrInvalidArgument, batch.ID)
	}

	startTime := time.Now()
	report := BatchReport{
		Batch:      batch.WithStatus(),
		ArchivedAt: time.Now().UTC(),
	}
	for page := 1; ; page++ {
		items, total, err := a.batches.ListItems(ctx, repository.ItemFilter{
			BatchID: batch.ID,
			Page:    page,
			PerPage: archivePageSize,
		})
		if err != nil {
			return "", err
		}
		report.Items = append(report.Items, items...)
		if len(items) == 0 || int64(len(report.Items)) >= total {
			break
		}
	}

	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode batch report: %w", err)
	}

	key := a.Key(batch)
	if err := a.store.Put(ctx, key, body, "application/json"); err != nil {
		return "", err
	}
	if err := a.batches.SetArchiveKey(ctx, batch.ID, key); err != nil {
		return "", fmt.Errorf("failed to record archive key: %w", err)
	}

	logger.With(logger.Fields{
		logger.FieldCount:      len(report.Items),
		logger.FieldSize:       len(body),
		logger.FieldDurationMs: time.Since(startTime).Milliseconds(),
	}).Info(logger.SetBatchID(ctx, batch.ID), "[Archive] Stored report %s", key)
	return key, nil
}

// ReportURL returns a link to an archived batch report.
func (a *BatchArchiver) ReportURL(ctx context.Context, batchID uint) (string, error) {
	batch, err := a.batches.GetByID(ctx, batchID)
	if err != nil {
		return "", err
	}
	if batch.ArchiveKey == "" {
		return "", domain.ErrReportNotArchived
	}
	return a.store.URL(ctx, batch.ArchiveKey)
}

// Load reads an archived report back.
func (a *BatchArchiver) Load(ctx context.Context, batchID uint) (*BatchReport, error) {
	batch, err := a.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.ArchiveKey == "" {
		return nil, domain.ErrReportNotArchived
	}
	body, err := a.store.Get(ctx, batch.ArchiveKey)
	if err != nil {
		return nil, err
	}
	var report BatchReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode batch report: %w", err)
	}
	return &report, nil
}
