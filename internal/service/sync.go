package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/logger"
	"github.com/timmy/sportsync/internal/provider"
	"github.com/timmy/sportsync/internal/realtime"
	"github.com/timmy/sportsync/internal/repository"
)

// SyncRequest selects what one sync run pulls from the provider.
type SyncRequest struct {
	EntityType domain.EntityType
	Params     provider.Params
	// BatchName overrides the batch label; defaults to the entity type.
	BatchName string
}

// SyncResult is the aggregate outcome of one sync run.
type SyncResult struct {
	BatchID    uint              `json:"batch_id"`
	EntityType domain.EntityType `json:"entity_type"`
	OK         int               `json:"ok"`
	Fail       int               `json:"fail"`
	Total      int               `json:"total"`
	Created    int64             `json:"created"`
	Updated    int64             `json:"updated"`
	Skipped    int64             `json:"skipped"`
	Cancelled  bool              `json:"cancelled"`
	DurationMs int64             `json:"duration_ms"`
}

// SyncService drives sync runs: fetch, diff, apply, and record every record's outcome.
type SyncService struct {
	gateway   provider.Gateway
	entities  *repository.EntityRepository
	tracker   *BatchTracker
	archiver  *BatchArchiver
	publisher realtime.Publisher
	cfg       config.SyncConfig
	now       func() time.Time
}

// NewSyncService creates a new SyncService. archiver and publisher may be nil.
func NewSyncService(
	gateway provider.Gateway,
	entities *repository.EntityRepository,
	tracker *BatchTracker,
	archiver *BatchArchiver,
	publisher realtime.Publisher,
	cfg config.SyncConfig,
) *SyncService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &SyncService{
		gateway:   gateway,
		entities:  entities,
		tracker:   tracker,
		archiver:  archiver,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one sync run.
// Parameters:
//   - ctx: cancelling ctx stops the run between records; the batch is still closed.
//   - req: entity type and provider params.
//
// Returns:
//   - *SyncResult: batch id and counters; nil when the fetch failed.
//   - error: provider errors that prevented fetching anything, or a failure to
//     open or close the batch. Per-record failures are never returned.
func (s *SyncService) Run(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	startTime := time.Now()
	ctx = logger.SetEntityType(ctx, string(req.EntityType))

	records, err := s.fetchWithRetry(ctx, req)
	if err != nil {
		logger.CtxError(ctx, "[Sync] Fetch failed, no batch opened: %v", err)
		return nil, err
	}

	// From here on the batch is opened and closed even if ctx is cancelled;
	// cancellation only stops new records from being applied.
	applyCtx := context.WithoutCancel(ctx)

	name := req.BatchName
	if name == "" {
		name = string(req.EntityType)
	}
	batch, err := s.tracker.OpenBatch(applyCtx, name)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetBatchID(ctx, batch.ID)
	applyCtx = logger.SetBatchID(applyCtx, batch.ID)

	logger.With(logger.Fields{
		logger.FieldCount: len(records),
	}).Info(ctx, "[Sync] Applying %d records with %d workers", len(records), s.cfg.Workers)

	result := &SyncResult{BatchID: batch.ID, EntityType: req.EntityType}

	// Create work channel; workers finish the in-flight record even after cancellation.
	itemsChan := make(chan domain.ProviderRecord, s.cfg.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(applyCtx, batch.ID, itemsChan, result)
		}()
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		select {
		case itemsChan <- rec:
		case <-ctx.Done():
			result.Cancelled = true
		}
		if result.Cancelled {
			break
		}
	}

	close(itemsChan)
	wg.Wait()

	closed, err := s.tracker.CloseBatch(applyCtx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to close batch %d: %w", batch.ID, err)
	}

	result.OK = closed.OKCount
	result.Fail = closed.FailCount
	result.Total = closed.TotalCount
	result.DurationMs = time.Since(startTime).Milliseconds()

	if s.archiver != nil {
		if _, err := s.archiver.Archive(applyCtx, closed); err != nil {
			logger.CtxWarn(ctx, "[Sync] Failed to archive batch report: %v", err)
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(realtime.EventSyncCompleted, batch.ID,
			realtime.ScopeBatches, realtime.ScopeAvailability, realtime.ScopeDashboard)
	}

	logger.With(logger.Fields{
		logger.FieldCount:      result.Total,
		logger.FieldDurationMs: result.DurationMs,
		"ok":                   result.OK,
		"fail":                 result.Fail,
		"created":              result.Created,
		"updated":              result.Updated,
		"skipped":              result.Skipped,
		"cancelled":            result.Cancelled,
	}).Info(ctx, "[Sync] Run completed")

	return result, nil
}

// Preview fetches normalized records without persisting anything.
func (s *SyncService) Preview(ctx context.Context, entityType domain.EntityType, params provider.Params) ([]domain.ProviderRecord, error) {
	return s.gateway.Fetch(ctx, entityType, params)
}

// fetchWithRetry retries ErrProviderUnavailable with linear backoff. Other
// errors, including ErrProviderAuth, return immediately.
func (s *SyncService) fetchWithRetry(ctx context.Context, req SyncRequest) ([]domain.ProviderRecord, error) {
	attempts := s.cfg.FetchRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		records, err := s.gateway.Fetch(ctx, req.EntityType, req.Params)
		if err == nil {
			return records, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrProviderUnavailable) || attempt == attempts {
			break
		}

		wait := s.cfg.RetryBackoff * time.Duration(attempt)
		logger.CtxWarn(ctx, "[Sync] Provider unavailable (attempt %d/%d), retrying in %s: %v", attempt, attempts, wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, domain.MarkProviderUnavailable(ctx.Err(), "fetch %s cancelled during backoff", req.EntityType)
		}
	}
	return nil, errors.Wrapf(lastErr, "fetch %s", req.EntityType)
}

func (s *SyncService) worker(ctx context.Context, batchID uint, records <-chan domain.ProviderRecord, result *SyncResult) {
	for rec := range records {
		action, err := s.processRecord(ctx, batchID, rec)
		if err != nil {
			logger.With(logger.Fields{
				"external_id": rec.ExternalID,
			}).Warn(ctx, "[Sync] Record failed: %v", err)
			continue
		}
		switch action {
		case domain.ItemActionCreate:
			atomic.AddInt64(&result.Created, 1)
		case domain.ItemActionUpdate:
			atomic.AddInt64(&result.Updated, 1)
		case domain.ItemActionSkip:
			atomic.AddInt64(&result.Skipped, 1)
		}
	}
}

// processRecord is the unit of atomicity: diff, record as running, apply, and
// advance to a terminal status. A returned error has already been recorded.
func (s *SyncService) processRecord(ctx context.Context, batchID uint, rec domain.ProviderRecord) (domain.ItemAction, error) {
	existing, lookupErr := s.entities.GetByExternalID(ctx, rec.EntityType, rec.ExternalID)
	action := diffAction(existing, rec)

	item, err := s.tracker.RecordItem(ctx, batchID, rec.ExternalID, action, domain.ItemStatusRunning, "")
	if err != nil {
		return action, fmt.Errorf("failed to record item: %w", err)
	}

	applyErr := lookupErr
	if applyErr == nil {
		applyErr = validateRecord(rec)
	}
	if applyErr == nil {
		applyErr = s.apply(ctx, existing, rec, action)
	}

	status := domain.ItemStatusSuccess
	errMsg := ""
	switch {
	case applyErr != nil:
		status = domain.ItemStatusFailed
		errMsg = applyErr.Error()
	case action == domain.ItemActionSkip:
		status = domain.ItemStatusSkipped
	}

	if _, err := s.tracker.AdvanceItem(ctx, item, status, errMsg); err != nil {
		return action, fmt.Errorf("failed to finalize item %d: %w", item.ID, err)
	}
	return action, applyErr
}

func (s *SyncService) apply(ctx context.Context, existing *domain.SportsEntity, rec domain.ProviderRecord, action domain.ItemAction) error {
	syncedAt := s.now()
	if action == domain.ItemActionSkip {
		if err := s.entities.Touch(ctx, existing.ID, syncedAt); err != nil {
			return fmt.Errorf("touch failed: %w", err)
		}
		return nil
	}

	// The upsert targets (entity_type, external_id); created_at survives updates.
	entity := &domain.SportsEntity{}
	entity.ApplyRecord(rec, syncedAt)
	if err := s.entities.Upsert(ctx, entity); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// diffAction compares a provider record with the local copy.
func diffAction(existing *domain.SportsEntity, rec domain.ProviderRecord) domain.ItemAction {
	switch {
	case existing == nil:
		return domain.ItemActionCreate
	case existing.Checksum == rec.Checksum():
		return domain.ItemActionSkip
	default:
		return domain.ItemActionUpdate
	}
}

func validateRecord(rec domain.ProviderRecord) error {
	switch {
	case rec.ExternalID == "":
		return fmt.Errorf("record has no external id")
	case rec.Name == "":
		return fmt.Errorf("record %s has no name", rec.ExternalID)
	case rec.EntityType == domain.EntityFixtures && rec.StartsAt == nil:
		return fmt.Errorf("fixture %s has no kickoff time", rec.ExternalID)
	}
	return nil
}
