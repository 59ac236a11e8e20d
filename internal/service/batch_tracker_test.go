package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsync/internal/domain"
)

func TestRecordItemConcurrentCountersAddUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.tracker.OpenBatch(ctx, "teams")
	require.NoError(t, err)

	statuses := []domain.ItemStatus{domain.ItemStatusSuccess, domain.ItemStatusFailed, domain.ItemStatusSkipped, domain.ItemStatusRunning}
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.tracker.RecordItem(ctx, batch.ID, fmt.Sprintf("%d", i), domain.ItemActionCreate, statuses[i%len(statuses)], "boom")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	open, err := env.tracker.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, open.TotalCount)
	assert.Equal(t, 20, open.OKCount)
	assert.Equal(t, 10, open.FailCount)
	assert.LessOrEqual(t, open.OKCount+open.FailCount, open.TotalCount)

	closed, err := env.tracker.CloseBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, closed.TotalCount, closed.OKCount+closed.FailCount)
	assert.Equal(t, 20, closed.FailCount, "running items are failed on close")
}

func TestCloseBatchIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.tracker.OpenBatch(ctx, "leagues")
	require.NoError(t, err)
	_, err = env.tracker.RecordItem(ctx, batch.ID, "39", domain.ItemActionCreate, domain.ItemStatusSuccess, "")
	require.NoError(t, err)

	first, err := env.tracker.CloseBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, first.FinishedAt)

	second, err := env.tracker.CloseBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, second.FinishedAt)
	assert.True(t, first.FinishedAt.Equal(*second.FinishedAt))
	assert.Equal(t, first.OKCount, second.OKCount)
	assert.Equal(t, "completed", second.Status())
}

func TestCloseBatchUnknown(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.tracker.CloseBatch(context.Background(), 999)
	assert.True(t, errors.Is(err, domain.ErrBatchNotFound))
}

func TestRecordItemAfterClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.tracker.OpenBatch(ctx, "countries")
	require.NoError(t, err)
	_, err = env.tracker.CloseBatch(ctx, batch.ID)
	require.NoError(t, err)

	_, err = env.tracker.RecordItem(ctx, batch.ID, "GB", domain.ItemActionCreate, domain.ItemStatusSuccess, "")
	assert.True(t, errors.Is(err, domain.ErrBatchClosed))

	_, err = env.tracker.RecordItem(ctx, 12345, "GB", domain.ItemActionCreate, domain.ItemStatusSuccess, "")
	assert.True(t, errors.Is(err, domain.ErrBatchNotFound))
}

func TestAdvanceItemOnlyMovesForward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.tracker.OpenBatch(ctx, "markets")
	require.NoError(t, err)
	item, err := env.tracker.RecordItem(ctx, batch.ID, "1", domain.ItemActionCreate, domain.ItemStatusQueued, "")
	require.NoError(t, err)

	item, err = env.tracker.AdvanceItem(ctx, item, domain.ItemStatusRunning, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatusRunning, item.Status)

	_, err = env.tracker.AdvanceItem(ctx, item, domain.ItemStatusQueued, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	item, err = env.tracker.AdvanceItem(ctx, item, domain.ItemStatusFailed, "")
	require.NoError(t, err)
	assert.Equal(t, unknownFailureMsg, item.ErrorMessage)

	_, err = env.tracker.AdvanceItem(ctx, item, domain.ItemStatusSuccess, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	b, err := env.tracker.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.TotalCount)
	assert.Equal(t, 0, b.OKCount)
	assert.Equal(t, 1, b.FailCount)
}

func TestErrorMessageOnlyOnFailedItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.tracker.OpenBatch(ctx, "seasons")
	require.NoError(t, err)

	ok, err := env.tracker.RecordItem(ctx, batch.ID, "2024", domain.ItemActionCreate, domain.ItemStatusSuccess, "ignored")
	require.NoError(t, err)
	assert.Empty(t, ok.ErrorMessage)

	failed, err := env.tracker.RecordItem(ctx, batch.ID, "2025", domain.ItemActionUpdate, domain.ItemStatusFailed, "write failed")
	require.NoError(t, err)
	assert.Equal(t, "write failed", failed.ErrorMessage)
}

func TestListItemsPaginatesNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	batch, err := env.tracker.OpenBatch(ctx, "bookmakers")
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		status := domain.ItemStatusSuccess
		action := domain.ItemActionCreate
		if i%2 == 0 {
			status = domain.ItemStatusFailed
			action = domain.ItemActionUpdate
		}
		_, err := env.tracker.RecordItem(ctx, batch.ID, fmt.Sprintf("%d", i), action, status, "bad odds")
		require.NoError(t, err)
	}

	page, err := env.tracker.ListItems(ctx, ItemQuery{BatchID: batch.ID, Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "5", page.Items[0].ExternalID)
	assert.Equal(t, "4", page.Items[1].ExternalID)

	last, err := env.tracker.ListItems(ctx, ItemQuery{BatchID: batch.ID, Page: 3, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, "1", last.Items[0].ExternalID)

	failed, err := env.tracker.ListItems(ctx, ItemQuery{BatchID: batch.ID, Status: domain.ItemStatusFailed})
	require.NoError(t, err)
	assert.EqualValues(t, 2, failed.Total)
	assert.Equal(t, defaultPerPage, failed.PerPage)

	updates, err := env.tracker.ListItems(ctx, ItemQuery{BatchID: batch.ID, Action: domain.ItemActionUpdate, Status: domain.ItemStatusSuccess})
	require.NoError(t, err)
	assert.EqualValues(t, 0, updates.Total)

	_, err = env.tracker.ListItems(ctx, ItemQuery{BatchID: batch.ID, Status: "done"})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))

	_, err = env.tracker.ListItems(ctx, ItemQuery{BatchID: 404})
	assert.True(t, errors.Is(err, domain.ErrBatchNotFound))
}

func TestListBatchesFiltersByName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"teams", "leagues", "teams"} {
		_, err := env.tracker.OpenBatch(ctx, name)
		require.NoError(t, err)
	}

	all, err := env.tracker.ListBatches(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[1].ID)

	teams, err := env.tracker.ListBatches(ctx, "teams", 1)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "teams", teams[0].Name)
}
