package models

import "time"

// StorageConfig selects the persistence adapter for pipeline state.
type StorageConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	SQLitePath string `yaml:"sqlite_path,omitempty" mapstructure:"sqlite_path"`
}

// EnrollmentConfig controls the automatic student record created when a
// lead reaches the terminal stage.
type EnrollmentConfig struct {
	StudentIDPrefix string        `yaml:"student_id_prefix" mapstructure:"student_id_prefix"`
	PadWidth        int           `yaml:"pad_width" mapstructure:"pad_width"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StudentServiceConfig points at the student service. An empty BaseURL
// means enrollment records are kept in an in-process directory.
type StudentServiceConfig struct {
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Token   string `yaml:"token,omitempty" mapstructure:"token"`
}

// SlackConfig holds Slack webhook settings for notifications.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// LogConfig controls the operator log.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GlobalConfig holds system-wide settings read from .leadflow.yaml via Viper.
type GlobalConfig struct {
	Storage        StorageConfig        `yaml:"storage" mapstructure:"storage"`
	Enrollment     EnrollmentConfig     `yaml:"enrollment" mapstructure:"enrollment"`
	StudentService StudentServiceConfig `yaml:"student_service" mapstructure:"student_service"`
	Notifications  NotificationConfig   `yaml:"notifications" mapstructure:"notifications"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
}
