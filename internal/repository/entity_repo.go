package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/sportsync/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntityCount is a per-type row count with the newest sync time.
type EntityCount struct {
	EntityType   domain.EntityType
	Rows         int64
	LastSyncedAt *time.Time
}

// FixtureWindow restricts fixture aggregates.
type FixtureWindow struct {
	Now        time.Time
	Since      *time.Time // nil includes historical fixtures
	StaleAfter time.Duration
}

// EntityRepository handles the local copy of provider records.
type EntityRepository struct {
	db *gorm.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *gorm.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// GetByExternalID retrieves an entity by type and provider ID.
// Returns (nil, nil) when the entity does not exist yet.
func (r *EntityRepository) GetByExternalID(ctx context.Context, entityType domain.EntityType, externalID string) (*domain.SportsEntity, error) {
	var entity domain.SportsEntity
	err := r.db.WithContext(ctx).First(&entity, "entity_type = ? AND external_id = ?", entityType, externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s/%s: %w", entityType, externalID, err)
	}
	return &entity, nil
}

// Upsert creates or updates an entity keyed by (entity_type, external_id).
func (r *EntityRepository) Upsert(ctx context.Context, entity *domain.SportsEntity) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_type"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "code", "image_url", "parent_external_id", "starts_at",
			"status", "checksum", "synced_at", "updated_at",
		}),
	}).Create(entity).Error
}

// Touch marks an unchanged entity as seen by the latest sync.
func (r *EntityRepository) Touch(ctx context.Context, id uint, syncedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.SportsEntity{}).Where("id = ?", id).Update("synced_at", syncedAt).Error
}

// CountByType returns row counts and the newest synced_at for each requested type.
func (r *EntityRepository) CountByType(ctx context.Context, types []domain.EntityType) (map[domain.EntityType]EntityCount, error) {
	type row struct {
		EntityType   domain.EntityType
		RowCount     int64
		LastSyncedAt sql.NullString
	}
	var rows []row
	query := r.db.WithContext(ctx).Model(&domain.SportsEntity{}).
		Select("entity_type, COUNT(*) AS row_count, MAX(synced_at) AS last_synced_at").
		Group("entity_type")
	if len(types) > 0 {
		query = query.Where("entity_type IN ?", types)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}

	counts := make(map[domain.EntityType]EntityCount, len(rows))
	for _, rw := range rows {
		counts[rw.EntityType] = EntityCount{
			EntityType:   rw.EntityType,
			Rows:         rw.RowCount,
			LastSyncedAt: parseAggregateTime(rw.LastSyncedAt),
		}
	}
	return counts, nil
}

// CountFixtures counts fixture rows in the window.
func (r *EntityRepository) CountFixtures(ctx context.Context, w FixtureWindow) (int64, error) {
	var n int64
	err := r.fixtures(ctx, w).Count(&n).Error
	return n, err
}

// FixtureStats computes the fixture-level detail of the enriched availability read.
func (r *EntityRepository) FixtureStats(ctx context.Context, w FixtureWindow) (*domain.FixtureAvailability, error) {
	stats := &domain.FixtureAvailability{}

	if err := r.fixtures(ctx, w).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count fixtures: %w", err)
	}
	if err := r.fixtures(ctx, w).Where("starts_at >= ?", w.Now).Count(&stats.Upcoming).Error; err != nil {
		return nil, fmt.Errorf("failed to count upcoming fixtures: %w", err)
	}
	if err := r.fixtures(ctx, w).Where("starts_at < ?", w.Now).Count(&stats.Past).Error; err != nil {
		return nil, fmt.Errorf("failed to count past fixtures: %w", err)
	}
	if w.StaleAfter > 0 {
		cutoff := w.Now.Add(-w.StaleAfter)
		if err := r.fixtures(ctx, w).Where("synced_at < ?", cutoff).Count(&stats.Stale).Error; err != nil {
			return nil, fmt.Errorf("failed to count stale fixtures: %w", err)
		}
	}
	if err := r.fixtures(ctx, w).Distinct("parent_external_id").Count(&stats.LeaguesCovered).Error; err != nil {
		return nil, fmt.Errorf("failed to count covered leagues: %w", err)
	}

	var oldest sql.NullString
	if err := r.fixtures(ctx, w).Select("MIN(synced_at)").Row().Scan(&oldest); err != nil {
		return nil, fmt.Errorf("failed to find oldest fixture sync: %w", err)
	}
	stats.OldestSyncedAt = parseAggregateTime(oldest)

	return stats, nil
}

func (r *EntityRepository) fixtures(ctx context.Context, w FixtureWindow) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.SportsEntity{}).Where("entity_type = ?", domain.EntityFixtures)
	if w.Since != nil {
		q = q.Where("starts_at >= ?", *w.Since)
	}
	return q
}

// aggregateTimeLayouts covers how SQLite and PostgreSQL render MAX/MIN over timestamps.
var aggregateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseAggregateTime decodes a MAX/MIN timestamp aggregate, which drivers return as text.
func parseAggregateTime(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	for _, layout := range aggregateTimeLayouts {
		if t, err := time.Parse(layout, raw.String); err == nil {
			return &t
		}
	}
	return nil
}
