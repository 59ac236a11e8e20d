package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/sportsync/internal/domain"
	"gorm.io/gorm"
)

// AlertRepository handles alert persistence. Alerts are never deleted.
type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// GetByID retrieves an alert by ID.
func (r *AlertRepository) GetByID(ctx context.Context, id uint) (*domain.Alert, error) {
	var alert domain.Alert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to load alert %d: %w", id, err)
	}
	return &alert, nil
}

// Resolve sets resolved_at/resolved_by only if the alert is still unresolved.
// The conditional update makes two racing operators see exactly one success.
// Returns:
//   - *domain.Alert: the resolved alert.
//   - error: domain.ErrAlertNotFound, domain.ErrAlertAlreadyResolved, or a database error.
func (r *AlertRepository) Resolve(ctx context.Context, id uint, resolvedBy string, at time.Time) (*domain.Alert, error) {
	res := r.db.WithContext(ctx).Model(&domain.Alert{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(map[string]interface{}{
			"resolved_at": at,
			"resolved_by": resolvedBy,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to resolve alert %d: %w", id, res.Error)
	}

	alert, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return alert, domain.ErrAlertAlreadyResolved
	}
	return alert, nil
}

// ListActive returns unresolved alerts, newest first.
func (r *AlertRepository) ListActive(ctx context.Context) ([]domain.Alert, error) {
	var alerts []domain.Alert
	if err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("created_at DESC").
		Order("id DESC").
		Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

// ListHistory returns all alerts, resolved or not, newest first.
func (r *AlertRepository) ListHistory(ctx context.Context, limit int) ([]domain.Alert, error) {
	var alerts []domain.Alert
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}
	return alerts, nil
}

// CountActive returns the number of unresolved alerts.
func (r *AlertRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Alert{}).Where("resolved_at IS NULL").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
