package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// telemetryRepository implements TelemetryRepository.
type telemetryRepository struct {
	db *gorm.DB
}

// NewTelemetryRepository creates a new TelemetryRepository.
func NewTelemetryRepository(db *gorm.DB) TelemetryRepository {
	return &telemetryRepository{db: db}
}

// QueryRange returns records in [start, end) ordered by timestamp ascending.
func (r *telemetryRepository) QueryRange(ctx context.Context, deviceExternalID string, start, end time.Time) ([]entities.TelemetryRecord, error) {
	var records []entities.TelemetryRecord
	err := r.db.WithContext(ctx).
		Where("device_external_id = ? AND timestamp >= ? AND timestamp < ?", deviceExternalID, start, end).
		Order("timestamp ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry range for %s: %w", deviceExternalID, err)
	}
	return records, nil
}

// QueryLatestPerDevice returns the record with the newest timestamp per
// device, breaking timestamp ties on id. Latest means latest measurement,
// not latest insert: backfilled batches must not shadow newer samples.
// Uses a grouped subquery so the lookup stays a single round trip; the
// (device_external_id, timestamp) index keeps it fast for large fleets.
func (r *telemetryRepository) QueryLatestPerDevice(ctx context.Context, deviceExternalIDs []string) (map[string]entities.TelemetryRecord, error) {
	result := make(map[string]entities.TelemetryRecord, len(deviceExternalIDs))
	if len(deviceExternalIDs) == 0 {
		return result, nil
	}

	var records []entities.TelemetryRecord
	err := r.db.WithContext(ctx).
		Where("device_external_id IN ?", deviceExternalIDs).
		Where(`id IN (SELECT MAX(tr.id) FROM telemetry_records tr
			JOIN (SELECT device_external_id, MAX(timestamp) AS max_ts
				FROM telemetry_records
				WHERE device_external_id IN ?
				GROUP BY device_external_id) newest
			ON tr.device_external_id = newest.device_external_id
			AND tr.timestamp = newest.max_ts
			GROUP BY tr.device_external_id)`, deviceExternalIDs).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest telemetry per device: %w", err)
	}

	for i := range records {
		result[records[i].DeviceExternalID] = records[i]
	}
	return result, nil
}
