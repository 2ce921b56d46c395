package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// globalAlertRepository implements GlobalAlertRepository.
type globalAlertRepository struct {
	db *gorm.DB
}

// NewGlobalAlertRepository creates a new GlobalAlertRepository.
func NewGlobalAlertRepository(db *gorm.DB) GlobalAlertRepository {
	return &globalAlertRepository{db: db}
}

// SaveAlert persists a fired alert, assigning an ID when absent.
func (r *globalAlertRepository) SaveAlert(ctx context.Context, alert *entities.GlobalAlert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to save global alert: %w", err)
	}
	return nil
}

// ListAlerts returns alerts of an organization matching the filter,
// newest first, with the total count for pagination.
func (r *globalAlertRepository) ListAlerts(ctx context.Context, organizationID uuid.UUID, filter GlobalAlertFilter) ([]entities.GlobalAlert, int64, error) {
	var alerts []entities.GlobalAlert
	var total int64

	base := r.db.WithContext(ctx).Model(&entities.GlobalAlert{}).
		Where("organization_id = ?", organizationID)
	if filter.RuleID != uuid.Nil {
		base = base.Where("rule_id = ?", filter.RuleID)
	}
	if filter.Acknowledged != nil {
		base = base.Where("acknowledged = ?", *filter.Acknowledged)
	}

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count global alerts: %w", err)
	}

	query := base.Order("triggered_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&alerts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list global alerts: %w", err)
	}
	return alerts, total, nil
}

// AcknowledgeAlert marks an alert acknowledged.
func (r *globalAlertRepository) AcknowledgeAlert(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&entities.GlobalAlert{}).
		Where("id = ?", id).Update("acknowledged", true)
	if result.Error != nil {
		return fmt.Errorf("failed to acknowledge alert %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGlobalAlertNotFound
	}
	return nil
}

// UnacknowledgedDevices unions the affected-device lists of all
// unacknowledged alerts in the organization. Affected devices are stored as
// JSON arrays, so the union is computed application-side.
func (r *globalAlertRepository) UnacknowledgedDevices(ctx context.Context, organizationID uuid.UUID) (map[string]struct{}, error) {
	var alerts []entities.GlobalAlert
	err := r.db.WithContext(ctx).
		Select("affected_devices").
		Where("organization_id = ? AND acknowledged = ?", organizationID, false).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query unacknowledged alerts: %w", err)
	}

	devices := make(map[string]struct{})
	for i := range alerts {
		for _, id := range alerts[i].AffectedDevices {
			devices[id] = struct{}{}
		}
	}
	return devices, nil
}
