package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/repository"
	"github.com/timmy/sportsync/internal/testutil"
)

func TestAlertResolveRaceHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewAlertRepository(testutil.NewDB(t))

	alert := &domain.Alert{
		Kind:       domain.AlertKindRunFailed,
		SourceType: domain.AlertSourceJob,
		SourceID:   1,
		Severity:   domain.SeverityCritical,
		Message:    "job sync-teams run 1 failed",
	}
	require.NoError(t, repo.Create(ctx, alert))

	const resolvers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := fmt.Sprintf("op-%d", i)
			_, err := repo.Resolve(ctx, alert.ID, who, time.Now().UTC())
			if err == nil {
				mu.Lock()
				winners = append(winners, who)
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, domain.ErrAlertAlreadyResolved), "unexpected error: %v", err)
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	stored, err := repo.GetByID(ctx, alert.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResolvedBy)
	assert.Equal(t, winners[0], *stored.ResolvedBy)

	n, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartRunRejectsSecondRunningRun(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewJobRepository(testutil.NewDB(t))

	job := &domain.Job{Name: "sync-leagues", EntityType: domain.EntityLeagues, Enabled: true}
	require.NoError(t, repo.UpsertByName(ctx, job))

	started := time.Now().UTC()
	first := &domain.JobRun{JobID: job.ID, Trigger: domain.RunTriggerManual, StartedAt: started}
	require.NoError(t, repo.StartRun(ctx, first))
	assert.Equal(t, domain.RunStatusRunning, first.Status)

	second := &domain.JobRun{JobID: job.ID, Trigger: domain.RunTriggerSchedule, StartedAt: started}
	assert.True(t, errors.Is(repo.StartRun(ctx, second), domain.ErrJobAlreadyRunning))

	loaded, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastRunAt)

	batchID := uint(7)
	done, err := repo.CompleteRun(ctx, first.ID, repository.RunCompletion{
		Status:     domain.RunStatusSuccess,
		BatchID:    &batchID,
		OKCount:    3,
		TotalCount: 3,
		FinishedAt: started.Add(1500 * time.Millisecond),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), done.DurationMs)
	assert.Equal(t, domain.RunStatusSuccess, done.Status)

	require.NoError(t, repo.StartRun(ctx, second))

	_, err = repo.CompleteRun(ctx, 999, repository.RunCompletion{Status: domain.RunStatusFailed})
	assert.True(t, errors.Is(err, domain.ErrRunNotFound))
}

func TestStoreAllowsOneRunningRunPerJob(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := repository.NewJobRepository(db)

	leagues := &domain.Job{Name: "sync-leagues", EntityType: domain.EntityLeagues, Enabled: true}
	teams := &domain.Job{Name: "sync-teams", EntityType: domain.EntityTeams, Enabled: true}
	require.NoError(t, repo.UpsertByName(ctx, leagues))
	require.NoError(t, repo.UpsertByName(ctx, teams))

	now := time.Now().UTC()
	insert := func(jobID uint, status domain.RunStatus) error {
		return db.WithContext(ctx).Create(&domain.JobRun{JobID: jobID, Status: status, StartedAt: now}).Error
	}

	// Finished runs never conflict.
	require.NoError(t, insert(leagues.ID, domain.RunStatusSuccess))
	require.NoError(t, insert(leagues.ID, domain.RunStatusFailed))

	require.NoError(t, insert(leagues.ID, domain.RunStatusRunning))
	require.NoError(t, insert(teams.ID, domain.RunStatusRunning))

	// A second writer that skipped the count check is still rejected.
	err := insert(leagues.ID, domain.RunStatusRunning)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestEntityUpsertKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewEntityRepository(testutil.NewDB(t))

	rec := domain.ProviderRecord{EntityType: domain.EntityTeams, ExternalID: "33", Name: "Manchester United", ParentExternalID: "39"}
	first := &domain.SportsEntity{}
	first.ApplyRecord(rec, time.Now().UTC())
	require.NoError(t, repo.Upsert(ctx, first))

	stored, err := repo.GetByExternalID(ctx, domain.EntityTeams, "33")
	require.NoError(t, err)
	require.NotNil(t, stored)

	rec.Name = "Man United"
	second := &domain.SportsEntity{}
	second.ApplyRecord(rec, time.Now().UTC())
	require.NoError(t, repo.Upsert(ctx, second))

	updated, err := repo.GetByExternalID(ctx, domain.EntityTeams, "33")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, updated.ID)
	assert.Equal(t, "Man United", updated.Name)
	assert.Equal(t, rec.Checksum(), updated.Checksum)
	assert.Equal(t, stored.CreatedAt.Unix(), updated.CreatedAt.Unix())

	missing, err := repo.GetByExternalID(ctx, domain.EntityTeams, "34")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLatestClosedIgnoresOpenBatches(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewBatchRepository(testutil.NewDB(t))
	now := time.Now().UTC()

	older := &domain.Batch{Name: "teams", StartedAt: now}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.AppendItem(ctx, &domain.BatchItem{BatchID: older.ID, ExternalID: "1", Action: domain.ItemActionCreate, Status: domain.ItemStatusSuccess}))
	_, err := repo.Close(ctx, older.ID, now)
	require.NoError(t, err)

	newer := &domain.Batch{Name: "teams", StartedAt: now}
	require.NoError(t, repo.Create(ctx, newer))
	_, err = repo.Close(ctx, newer.ID, now)
	require.NoError(t, err)

	open := &domain.Batch{Name: "teams", StartedAt: now}
	require.NoError(t, repo.Create(ctx, open))

	latest, err := repo.LatestClosed(ctx, []string{"teams", "leagues"})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, newer.ID, latest["teams"].ID)

	n, err := repo.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCloseSweepsUnfinishedItems(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewBatchRepository(testutil.NewDB(t))

	batch := &domain.Batch{Name: "fixtures", StartedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, batch))
	running := &domain.BatchItem{BatchID: batch.ID, ExternalID: "1", Action: domain.ItemActionCreate, Status: domain.ItemStatusRunning}
	require.NoError(t, repo.AppendItem(ctx, running))
	require.NoError(t, repo.AppendItem(ctx, &domain.BatchItem{BatchID: batch.ID, ExternalID: "2", Action: domain.ItemActionSkip, Status: domain.ItemStatusSkipped}))

	closed, err := repo.Close(ctx, batch.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, closed.TotalCount)
	assert.Equal(t, 1, closed.OKCount)
	assert.Equal(t, 1, closed.FailCount)

	items, total, err := repo.ListItems(ctx, repository.ItemFilter{BatchID: batch.ID, Page: 1, PerPage: 10, Status: domain.ItemStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "batch closed before item completed", items[0].ErrorMessage)

	err = repo.AppendItem(ctx, &domain.BatchItem{BatchID: batch.ID, ExternalID: "3", Action: domain.ItemActionCreate, Status: domain.ItemStatusSuccess})
	assert.True(t, errors.Is(err, domain.ErrBatchClosed))

	_, err = repo.AdvanceItem(ctx, running.ID, domain.ItemStatusSuccess, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}
