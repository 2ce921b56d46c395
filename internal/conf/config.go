// Package conf loads application settings and provides config value types.
package conf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Settings is the full application configuration.
type Settings struct {
	// Host and Port for the HTTP API.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `mapstructure:"loglevel"`

	Database DatabaseSettings `mapstructure:"database"`
	Fleet    FleetSettings    `mapstructure:"fleet"`
}

// DatabaseSettings selects and configures the datastore backend.
type DatabaseSettings struct {
	// Driver is "sqlite" or "mysql".
	Driver string `mapstructure:"driver"`
	// DataDir holds the SQLite database file.
	DataDir string `mapstructure:"datadir"`
	// DSN is the MySQL connection string.
	DSN string `mapstructure:"dsn"`
}

// FleetSettings tunes the aggregation and rule-evaluation engine.
type FleetSettings struct {
	// EvaluationTimeout bounds a single rule evaluation.
	EvaluationTimeout Duration `mapstructure:"evaluationtimeout"`
	// MaxParallelEvaluations caps concurrent evaluations in a sweep.
	MaxParallelEvaluations int `mapstructure:"maxparallelevaluations"`
	// SweepInterval is how often due rules are re-checked when the
	// built-in ticker is enabled.
	SweepInterval Duration `mapstructure:"sweepinterval"`
}

// Load reads settings from sensorvision.yaml (working directory or
// /etc/sensorvision) and SV_* environment variables.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("sensorvision")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/sensorvision")
	v.SetEnvPrefix("SV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("loglevel", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.datadir", ".")
	v.SetDefault("fleet.evaluationtimeout", "30s")
	v.SetDefault("fleet.maxparallelevaluations", 8)
	v.SetDefault("fleet.sweepinterval", "1m")
}

// Validate checks settings for obvious misconfiguration.
func (s *Settings) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	switch s.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", s.Database.Driver)
	}
	if s.Fleet.EvaluationTimeout.Std() <= 0 {
		return fmt.Errorf("fleet evaluation timeout must be positive")
	}
	return nil
}
