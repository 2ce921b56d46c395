package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// DeviceQuery narrows an active-device lookup. At most one of Tag, GroupID,
// or FilterField/FilterValue is set; a zero query matches every active
// device of the organization.
type DeviceQuery struct {
	Tag         string
	GroupID     *uint
	FilterField string
	FilterValue string
}

// DeviceRepository is the read-only device directory consumed by the
// aggregation engine.
type DeviceRepository interface {
	// QueryActive returns the active devices of an organization matching
	// the query, with tags and groups preloaded.
	QueryActive(ctx context.Context, organizationID uuid.UUID, query DeviceQuery) ([]entities.Device, error)

	// GetByExternalID returns a single device by its external identifier.
	// Returns ErrDeviceNotFound if no such device exists.
	GetByExternalID(ctx context.Context, externalID string) (*entities.Device, error)
}
