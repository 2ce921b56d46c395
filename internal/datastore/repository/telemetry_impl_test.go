package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

func insertReading(t *testing.T, db *gorm.DB, deviceID string, ts time.Time, voltage float64) {
	t.Helper()
	record := entities.TelemetryRecord{
		DeviceExternalID: deviceID,
		Timestamp:        ts,
		Voltage:          decimal.NewNullDecimal(decimal.NewFromFloat(voltage)),
	}
	require.NoError(t, db.Create(&record).Error)
}

func TestTelemetryRepository_QueryRange(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTelemetryRepository(db)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	insertReading(t, db, "meter-1", base.Add(-time.Hour), 228)
	insertReading(t, db, "meter-1", base, 230)
	insertReading(t, db, "meter-1", base.Add(30*time.Minute), 231)
	insertReading(t, db, "meter-1", base.Add(time.Hour), 232)
	insertReading(t, db, "meter-2", base.Add(15*time.Minute), 110)

	// Half-open interval: the start boundary is included, the end is not.
	records, err := repo.QueryRange(t.Context(), "meter-1", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Timestamp.Before(records[1].Timestamp), "oldest first")
	assert.Equal(t, "230", records[0].Voltage.Decimal.String())
	assert.Equal(t, "231", records[1].Voltage.Decimal.String())

	records, err = repo.QueryRange(t.Context(), "meter-1", base.Add(2*time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTelemetryRepository_QueryLatestPerDevice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTelemetryRepository(db)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	insertReading(t, db, "meter-1", base.Add(-2*time.Hour), 225)
	insertReading(t, db, "meter-1", base, 230)
	insertReading(t, db, "meter-2", base.Add(-time.Hour), 110)
	insertReading(t, db, "meter-3", base, 48)

	latest, err := repo.QueryLatestPerDevice(t.Context(), []string{"meter-1", "meter-2", "meter-silent"})
	require.NoError(t, err)
	require.Len(t, latest, 2, "devices without readings are simply absent")

	assert.Equal(t, "230", latest["meter-1"].Voltage.Decimal.String(), "only the newest row per device")
	assert.Equal(t, "110", latest["meter-2"].Voltage.Decimal.String())
	_, ok := latest["meter-3"]
	assert.False(t, ok, "devices outside the requested set are excluded")
}

// Batch ingestion can insert old samples after newer ones; latest must be
// decided by timestamp, not insertion order.
func TestTelemetryRepository_QueryLatestPerDeviceIgnoresBackfill(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTelemetryRepository(db)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	insertReading(t, db, "meter-1", base, 230)
	insertReading(t, db, "meter-1", base.Add(-time.Hour), 210)

	latest, err := repo.QueryLatestPerDevice(t.Context(), []string{"meter-1"})
	require.NoError(t, err)
	require.Contains(t, latest, "meter-1")
	assert.Equal(t, "230", latest["meter-1"].Voltage.Decimal.String())
	assert.True(t, latest["meter-1"].Timestamp.Equal(base))
}

func TestTelemetryRepository_QueryLatestPerDeviceTimestampTie(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTelemetryRepository(db)

	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	insertReading(t, db, "meter-1", ts, 228)
	insertReading(t, db, "meter-1", ts, 229)

	latest, err := repo.QueryLatestPerDevice(t.Context(), []string{"meter-1"})
	require.NoError(t, err)
	require.Contains(t, latest, "meter-1")
	assert.Equal(t, "229", latest["meter-1"].Voltage.Decimal.String(), "ties break on the later row")
}

func TestTelemetryRepository_QueryLatestPerDeviceEmptySet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTelemetryRepository(db)

	latest, err := repo.QueryLatestPerDevice(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, latest)
}
