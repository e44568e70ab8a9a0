// Package container provides dependency injection and lifecycle management
// for the ICSR case workflow service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark IM delivery configuration
	Lark LarkConfig

	// Workflow engine configuration
	Workflow WorkflowConfig

	// Validation engine configuration
	Validation ValidationConfig

	// Server configuration
	Server ServerConfig

	// Worker configuration
	Worker WorkerConfig

	// Metrics configuration
	Metrics MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// AutoMigrate applies pending migrations on start
	AutoMigrate bool
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// Enabled turns on chat delivery of notifications
	Enabled bool

	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// RequestTimeout bounds each push; zero uses the client default
	RequestTimeout time.Duration
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	// SignatureMeaning is recorded when a signer gives none
	SignatureMeaning string

	// NotificationsEnabled subscribes the notification service to workflow events
	NotificationsEnabled bool
}

// ValidationConfig holds validation engine settings.
type ValidationConfig struct {
	// ProgramCacheTTL bounds how long compiled expressions are kept
	ProgramCacheTTL time.Duration

	// SeedOnStart inserts missing system rules on start
	SeedOnStart bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// ReminderEnabled starts the overdue assignment reminder
	ReminderEnabled bool

	// ReminderSchedule is a six-field cron expression
	ReminderSchedule string
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/icsr.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
			AutoMigrate:  true,
		},
		Workflow: WorkflowConfig{
			NotificationsEnabled: true,
		},
		Validation: ValidationConfig{
			ProgramCacheTTL: 30 * time.Minute,
			SeedOnStart:     true,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Worker: WorkerConfig{
			ReminderEnabled:  true,
			ReminderSchedule: "0 0 * * * *",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark app ID is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark app secret is required when lark is enabled")
		}
	}

	if c.Worker.ReminderEnabled && c.Worker.ReminderSchedule == "" {
		return fmt.Errorf("reminder schedule is required when the reminder is enabled")
	}

	return nil
}
