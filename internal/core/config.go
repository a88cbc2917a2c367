// Package core contains the pipeline engine for leadflow: stages and their
// custom field schemas, leads and their sub-records, transition triggers and
// the configuration they run with.
package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/leadflow/pkg/models"
)

// ConfigFileName is the name of the configuration file in the base path.
const ConfigFileName = ".leadflow.yaml"

// validPrefixPattern matches uppercase alphanumeric prefixes between 1 and 10 characters.
var validPrefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// ConfigurationManager loads and validates the leadflow configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file and LEADFLOW_* environment overrides.
type viperConfigManager struct {
	// basePath is the root directory where .leadflow.yaml resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Storage: models.StorageConfig{
			Driver:     "yaml",
			SQLitePath: "leadflow.db",
		},
		Enrollment: models.EnrollmentConfig{
			StudentIDPrefix: "STU",
			PadWidth:        3,
			Timeout:         10 * time.Second,
		},
		Log: models.LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadGlobalConfig reads .leadflow.yaml from the base path using Viper.
// Every key can be overridden by an environment variable such as
// LEADFLOW_STORAGE_DRIVER. If the file does not exist, defaults plus
// environment overrides are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(ConfigFileName, ".yaml"))
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults double as the key list AutomaticEnv consults on Unmarshal.
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("enrollment.student_id_prefix", cfg.Enrollment.StudentIDPrefix)
	v.SetDefault("enrollment.pad_width", cfg.Enrollment.PadWidth)
	v.SetDefault("enrollment.timeout", cfg.Enrollment.Timeout)
	v.SetDefault("student_service.base_url", "")
	v.SetDefault("student_service.token", "")
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.slack.webhook_url", "")
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

// ValidateConfig checks the configuration for invalid values and returns a
// clear error message identifying every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	return validateGlobalConfig(cfg)
}

var validDrivers = map[string]bool{"yaml": true, "sqlite": true}

var validLogFormats = map[string]bool{"text": true, "json": true}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validateGlobalConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validDrivers[cfg.Storage.Driver] {
		errs = append(errs, fmt.Sprintf("storage.driver %q is invalid, must be one of: yaml, sqlite", cfg.Storage.Driver))
	}
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.SQLitePath == "" {
		errs = append(errs, "storage.sqlite_path must not be empty when storage.driver is sqlite")
	}

	if !validPrefixPattern.MatchString(cfg.Enrollment.StudentIDPrefix) {
		errs = append(errs, fmt.Sprintf(
			"enrollment.student_id_prefix %q is invalid, must match [A-Z0-9]{1,10}",
			cfg.Enrollment.StudentIDPrefix,
		))
	}
	if cfg.Enrollment.PadWidth < 0 || cfg.Enrollment.PadWidth > 10 {
		errs = append(errs, fmt.Sprintf(
			"enrollment.pad_width %d is invalid, must be between 0 and 10",
			cfg.Enrollment.PadWidth,
		))
	}
	if cfg.Enrollment.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("enrollment.timeout %s must not be negative", cfg.Enrollment.Timeout))
	}

	if cfg.StudentService.BaseURL != "" &&
		!strings.HasPrefix(cfg.StudentService.BaseURL, "http://") &&
		!strings.HasPrefix(cfg.StudentService.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("student_service.base_url %q must be an http(s) URL", cfg.StudentService.BaseURL))
	}

	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url must be set when notifications are enabled")
	}

	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}
	if !validLogFormats[strings.ToLower(cfg.Log.Format)] {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be one of: text, json", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
