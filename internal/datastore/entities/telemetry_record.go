package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// TelemetryRecord is a single append-only telemetry reading for a device.
// Each record carries one column per supported variable; absent variables
// are stored as NULL. Records are immutable once written.
type TelemetryRecord struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	DeviceExternalID string              `gorm:"size:64;not null;index:idx_telemetry_device_ts" json:"device_external_id"`
	Timestamp        time.Time           `gorm:"not null;index:idx_telemetry_device_ts" json:"timestamp"`
	KwConsumption    decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"kw_consumption"`
	Voltage          decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"voltage"`
	Current          decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"current"`
	PowerFactor      decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"power_factor"`
	Frequency        decimal.NullDecimal `gorm:"type:decimal(15,6)" json:"frequency"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (TelemetryRecord) TableName() string {
	return "telemetry_records"
}
