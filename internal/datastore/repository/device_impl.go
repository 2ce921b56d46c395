package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// deviceRepository implements DeviceRepository.
type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

// QueryActive returns active devices of the organization matching the query.
func (r *deviceRepository) QueryActive(ctx context.Context, organizationID uuid.UUID, query DeviceQuery) ([]entities.Device, error) {
	var devices []entities.Device
	q := r.db.WithContext(ctx).
		Preload("Tags").
		Preload("Groups").
		Where("organization_id = ? AND active = ?", organizationID, true)

	switch {
	case query.Tag != "":
		q = q.Joins("JOIN device_tags ON device_tags.device_id = devices.id").
			Where("LOWER(device_tags.name) = LOWER(?)", query.Tag)
	case query.GroupID != nil:
		q = q.Joins("JOIN device_group_members ON device_group_members.device_id = devices.id").
			Where("device_group_members.device_group_id = ?", *query.GroupID)
	case query.FilterField != "":
		column, err := filterColumn(query.FilterField)
		if err != nil {
			return nil, err
		}
		q = q.Where(fmt.Sprintf("%s = ?", column), query.FilterValue)
	}

	if err := q.Order("devices.external_id ASC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to query active devices: %w", err)
	}
	return devices, nil
}

// filterColumn maps a custom-filter field to its column. The field set is a
// fixed allow-list; the selector validates fields before querying, so an
// unknown field here is a programming error.
func filterColumn(field string) (string, error) {
	switch field {
	case "location":
		return "devices.location", nil
	case "status":
		return "devices.status", nil
	case "sensorType":
		return "devices.sensor_type", nil
	default:
		return "", fmt.Errorf("unsupported device filter field %q", field)
	}
}

// GetByExternalID returns a device by its external identifier.
func (r *deviceRepository) GetByExternalID(ctx context.Context, externalID string) (*entities.Device, error) {
	var device entities.Device
	err := r.db.WithContext(ctx).Preload("Tags").Preload("Groups").
		Where("external_id = ?", externalID).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device %s: %w", externalID, err)
	}
	return &device, nil
}
