package repository

import (
	"context"
	"time"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// TelemetryRepository is the read-only telemetry store consumed by the
// statistical function library and the fleet aggregator.
type TelemetryRepository interface {
	// QueryRange returns a device's records with start <= timestamp < end,
	// ordered by timestamp ascending.
	QueryRange(ctx context.Context, deviceExternalID string, start, end time.Time) ([]entities.TelemetryRecord, error)

	// QueryLatestPerDevice returns each device's most recent record, keyed
	// by device external identifier. Devices with no records are absent
	// from the result.
	QueryLatestPerDevice(ctx context.Context, deviceExternalIDs []string) (map[string]entities.TelemetryRecord, error)
}
