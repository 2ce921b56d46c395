package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertSeverity grades how far a triggered value deviated from its threshold.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// GlobalAlert records one fired fleet rule: the triggering value, the scope
// of devices considered, and which devices were affected.
type GlobalAlert struct {
	ID              uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	RuleID          uuid.UUID       `gorm:"type:char(36);not null;index" json:"rule_id"`
	OrganizationID  uuid.UUID       `gorm:"type:char(36);not null;index" json:"organization_id"`
	Message         string          `gorm:"type:text;not null" json:"message"`
	Severity        AlertSeverity   `gorm:"size:16;not null" json:"severity"`
	TriggeredValue  decimal.Decimal `gorm:"type:decimal(15,6);not null" json:"triggered_value"`
	DeviceCount     int             `gorm:"not null" json:"device_count"`
	AffectedDevices []string        `gorm:"serializer:json" json:"affected_devices"`
	Acknowledged    bool            `gorm:"not null;default:false;index" json:"acknowledged"`
	TriggeredAt     time.Time       `gorm:"not null;index" json:"triggered_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (GlobalAlert) TableName() string {
	return "global_alerts"
}
