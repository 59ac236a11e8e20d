package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/provider"
	"github.com/timmy/sportsync/internal/realtime"
	"github.com/timmy/sportsync/internal/repository"
	"github.com/timmy/sportsync/internal/storage"
	"github.com/timmy/sportsync/internal/testutil"
)

// fakeGateway serves canned records. errs are returned, in order, before records.
type fakeGateway struct {
	mu      sync.Mutex
	records map[domain.EntityType][]domain.ProviderRecord
	errs    []error
	calls   int
	release chan struct{}
	onFetch func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{records: make(map[domain.EntityType][]domain.ProviderRecord)}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) EntityTypes() []domain.EntityType { return domain.AllEntityTypes }

func (g *fakeGateway) Fetch(ctx context.Context, entityType domain.EntityType, _ provider.Params) ([]domain.ProviderRecord, error) {
	g.mu.Lock()
	g.calls++
	release := g.release
	var err error
	if len(g.errs) > 0 {
		err, g.errs = g.errs[0], g.errs[1:]
	}
	records := g.records[entityType]
	onFetch := g.onFetch
	g.mu.Unlock()

	if onFetch != nil {
		defer onFetch()
	}

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, domain.MarkProviderUnavailable(ctx.Err(), "fetch %s", entityType)
		}
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (g *fakeGateway) set(entityType domain.EntityType, records []domain.ProviderRecord) {
	g.mu.Lock()
	g.records[entityType] = records
	g.mu.Unlock()
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type publishedEvent struct {
	kind  realtime.EventKind
	id    uint
	scope []string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(kind realtime.EventKind, id uint, scopeKeys ...string) {
	p.mu.Lock()
	p.events = append(p.events, publishedEvent{kind: kind, id: id, scope: scopeKeys})
	p.mu.Unlock()
}

func (p *fakePublisher) kinds() []realtime.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.kind
	}
	return out
}

// memoryStore is an in-memory storage.ObjectStore.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return body, nil
}

func (m *memoryStore) URL(_ context.Context, key string) (string, error) {
	return "mem://" + key, nil
}

func (m *memoryStore) EnsureBucket(context.Context) error { return nil }

// testEnv wires every service over one in-memory database.
type testEnv struct {
	batches   *repository.BatchRepository
	entities  *repository.EntityRepository
	jobs      *repository.JobRepository
	alertRepo *repository.AlertRepository

	gateway   *fakeGateway
	publisher *fakePublisher
	tracker   *BatchTracker
	sync      *SyncService
	alerts    *AlertManager
	registry  *JobRegistry
	avail     *AvailabilityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)

	env := &testEnv{
		batches:   repository.NewBatchRepository(db),
		entities:  repository.NewEntityRepository(db),
		jobs:      repository.NewJobRepository(db),
		alertRepo: repository.NewAlertRepository(db),
		gateway:   newFakeGateway(),
		publisher: &fakePublisher{},
	}
	env.tracker = NewBatchTracker(env.batches)
	env.sync = NewSyncService(env.gateway, env.entities, env.tracker, nil, env.publisher, config.SyncConfig{
		Workers:      3,
		FetchRetries: 2,
		RetryBackoff: time.Millisecond,
	})
	env.alerts = NewAlertManager(env.alertRepo, env.jobs, env.batches, env.publisher, config.AlertsConfig{
		FailThreshold:    3,
		FailRatio:        0.5,
		MinItemsForRatio: 20,
	})
	env.registry = NewJobRegistry(env.jobs, env.sync, env.alerts, env.publisher)
	env.avail = NewAvailabilityService(env.entities, env.batches, config.AvailabilityConfig{
		StaleAfter:       24 * time.Hour,
		HistoricalWindow: 30 * 24 * time.Hour,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.registry.Shutdown(ctx)
	})
	return env
}

// useGateway rebuilds the sync service and job registry over gw.
func (env *testEnv) useGateway(t *testing.T, gw provider.Gateway) {
	t.Helper()
	env.sync = NewSyncService(gw, env.entities, env.tracker, nil, env.publisher, config.SyncConfig{
		Workers:      3,
		FetchRetries: 0,
		RetryBackoff: time.Millisecond,
	})
	env.registry = NewJobRegistry(env.jobs, env.sync, env.alerts, env.publisher)
	registry := env.registry
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = registry.Shutdown(ctx)
	})
}

// records builds n named records of one type; ids listed in broken get no name.
func records(entityType domain.EntityType, n int, broken ...int) []domain.ProviderRecord {
	skip := make(map[int]bool, len(broken))
	for _, b := range broken {
		skip[b] = true
	}
	out := make([]domain.ProviderRecord, 0, n)
	for i := 1; i <= n; i++ {
		rec := domain.ProviderRecord{
			EntityType: entityType,
			ExternalID: fmt.Sprintf("%d", i),
			Name:       fmt.Sprintf("%s %d", entityType, i),
		}
		if skip[i] {
			rec.Name = ""
		}
		out = append(out, rec)
	}
	return out
}

func fixture(id string, league string, startsAt time.Time) domain.ProviderRecord {
	t := startsAt.UTC()
	return domain.ProviderRecord{
		EntityType:       domain.EntityFixtures,
		ExternalID:       id,
		Name:             "Home vs Away " + id,
		ParentExternalID: league,
		StartsAt:         &t,
		Status:           "NS",
	}
}

func seedJob(t *testing.T, env *testEnv, name string, entityType domain.EntityType) *domain.Job {
	t.Helper()
	ctx := context.Background()
	err := env.registry.EnsureJobs(ctx, []config.JobConfig{{
		Name:       name,
		EntityType: string(entityType),
		Schedule:   "@every 1h",
		Enabled:    true,
	}})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	job, err := env.jobs.GetByName(ctx, name)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	return job
}
