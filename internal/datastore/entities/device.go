package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeviceStatus is the reported operational state of a device.
type DeviceStatus string

const (
	DeviceStatusOnline      DeviceStatus = "ONLINE"
	DeviceStatusOffline     DeviceStatus = "OFFLINE"
	DeviceStatusMaintenance DeviceStatus = "MAINTENANCE"
	DeviceStatusUnknown     DeviceStatus = "UNKNOWN"
)

// ParseDeviceStatus resolves a case-insensitive status string to a known
// DeviceStatus. The second return value reports whether the input matched.
func ParseDeviceStatus(s string) (DeviceStatus, bool) {
	switch DeviceStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case DeviceStatusOnline:
		return DeviceStatusOnline, true
	case DeviceStatusOffline:
		return DeviceStatusOffline, true
	case DeviceStatusMaintenance:
		return DeviceStatusMaintenance, true
	case DeviceStatusUnknown:
		return DeviceStatusUnknown, true
	default:
		return "", false
	}
}

// Device is a registered telemetry-producing device. Lifecycle is owned by
// the device directory; the aggregation engine only reads active devices.
type Device struct {
	ID             uuid.UUID     `gorm:"type:char(36);primaryKey" json:"id"`
	ExternalID     string        `gorm:"size:64;not null;uniqueIndex" json:"external_id"`
	OrganizationID uuid.UUID     `gorm:"type:char(36);not null;index" json:"organization_id"`
	Name           string        `gorm:"size:255;not null" json:"name"`
	Active         bool          `gorm:"not null;index" json:"active"`
	Location       string        `gorm:"size:255;default:''" json:"location"`
	SensorType     string        `gorm:"size:100;default:''" json:"sensor_type"`
	Status         DeviceStatus  `gorm:"size:32;not null;default:UNKNOWN" json:"status"`
	LastSeenAt     *time.Time    `json:"last_seen_at"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
	Tags           []DeviceTag   `gorm:"foreignKey:DeviceID;references:ID;constraint:OnDelete:CASCADE" json:"tags"`
	Groups         []DeviceGroup `gorm:"many2many:device_group_members;" json:"groups"`
}

// TableName returns the table name for GORM.
func (Device) TableName() string {
	return "devices"
}

// HasTag reports whether the device carries the named tag (case-insensitive).
func (d *Device) HasTag(name string) bool {
	for i := range d.Tags {
		if strings.EqualFold(d.Tags[i].Name, name) {
			return true
		}
	}
	return false
}

// DeviceTag is a free-form label attached to a device.
type DeviceTag struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	DeviceID uuid.UUID `gorm:"type:char(36);not null;index" json:"device_id"`
	Name     string    `gorm:"size:100;not null;index" json:"name"`
}

// TableName returns the table name for GORM.
func (DeviceTag) TableName() string {
	return "device_tags"
}

// DeviceGroup is a named grouping of devices within an organization.
// Group identifiers are plain integers, matching rule selector values.
type DeviceGroup struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:char(36);not null;index" json:"organization_id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
}

// TableName returns the table name for GORM.
func (DeviceGroup) TableName() string {
	return "device_groups"
}
