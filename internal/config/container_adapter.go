package config

import (
	"github.com/garyjia/icsr-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			AutoMigrate:     c.Database.AutoMigrate,
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret:      c.Lark.AppSecret,
			RequestTimeout: c.Lark.RequestTimeout,
		},
		Workflow: container.WorkflowConfig{
			SignatureMeaning:     c.Workflow.SignatureMeaning,
			NotificationsEnabled: c.Workflow.NotificationsEnabled,
		},
		Validation: container.ValidationConfig{
			ProgramCacheTTL: c.Validation.ProgramCacheTTL,
			SeedOnStart:     c.Validation.SeedOnStart,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Worker: container.WorkerConfig{
			ReminderEnabled:  c.Reminder.Enabled,
			ReminderSchedule: c.Reminder.Schedule,
		},
		Metrics: container.MetricsConfig{
			Enabled: c.Metrics.Enabled,
			Path:    c.Metrics.Path,
		},
	}
}
