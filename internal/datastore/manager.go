// Package datastore manages the database connection and schema for the
// fleet telemetry engine.
package datastore

import (
	"fmt"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
)

// Config describes the database backend.
type Config struct {
	// Driver is "sqlite" or "mysql".
	Driver string
	// DataDir holds the SQLite database file (sqlite driver only).
	DataDir string
	// DSN is the MySQL connection string (mysql driver only).
	DSN string
}

// Manager owns the gorm connection and schema lifecycle.
type Manager struct {
	db *gorm.DB
}

// NewManager opens a database connection for the configured driver.
func NewManager(cfg Config) (*Manager, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		path := filepath.Join(cfg.DataDir, "sensorvision.db")
		dialector = sqlite.Open(path + "?_foreign_keys=ON")
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Manager{db: db}, nil
}

// Initialize migrates the schema for all engine entities.
func (m *Manager) Initialize() error {
	err := m.db.AutoMigrate(
		&entities.Device{},
		&entities.DeviceTag{},
		&entities.DeviceGroup{},
		&entities.TelemetryRecord{},
		&entities.GlobalRule{},
		&entities.GlobalAlert{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DB returns the underlying gorm connection.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close closes the underlying database connection.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
