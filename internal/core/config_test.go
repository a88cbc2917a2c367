package core

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/leadflow/pkg/models"
	"pgregory.net/rapid"
)

// --- Helper ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// --- LoadGlobalConfig tests ---

func TestLoadGlobalConfig_Defaults_WhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Storage.Driver != "yaml" {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, "yaml")
	}
	if cfg.Enrollment.StudentIDPrefix != "STU" {
		t.Errorf("StudentIDPrefix = %q, want %q", cfg.Enrollment.StudentIDPrefix, "STU")
	}
	if cfg.Enrollment.PadWidth != 3 {
		t.Errorf("PadWidth = %d, want 3", cfg.Enrollment.PadWidth)
	}
	if cfg.Enrollment.Timeout != 10*time.Second {
		t.Errorf("Timeout = %s, want 10s", cfg.Enrollment.Timeout)
	}
	if cfg.StudentService.BaseURL != "" {
		t.Errorf("StudentService.BaseURL = %q, want empty", cfg.StudentService.BaseURL)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
	if err := cm.ValidateConfig(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadGlobalConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `
storage:
  driver: sqlite
  sqlite_path: data/pipeline.db
enrollment:
  student_id_prefix: ADM
  pad_width: 5
  timeout: 3s
student_service:
  base_url: https://sis.example.edu/api/student
  token: secret
notifications:
  enabled: true
  slack:
    webhook_url: https://hooks.slack.com/services/T/B/X
log:
  level: debug
  format: json
`)

	cm := NewConfigurationManager(dir)
	cfg, err := cm.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "data/pipeline.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Enrollment.StudentIDPrefix != "ADM" || cfg.Enrollment.PadWidth != 5 {
		t.Errorf("Enrollment = %+v", cfg.Enrollment)
	}
	if cfg.Enrollment.Timeout != 3*time.Second {
		t.Errorf("Timeout = %s, want 3s", cfg.Enrollment.Timeout)
	}
	if cfg.StudentService.BaseURL != "https://sis.example.edu/api/student" || cfg.StudentService.Token != "secret" {
		t.Errorf("StudentService = %+v", cfg.StudentService)
	}
	if !cfg.Notifications.Enabled || cfg.Notifications.Slack.WebhookURL == "" {
		t.Errorf("Notifications = %+v", cfg.Notifications)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadGlobalConfig_PartialConfig_FillsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `
enrollment:
  student_id_prefix: ADM
`)

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enrollment.StudentIDPrefix != "ADM" {
		t.Errorf("StudentIDPrefix = %q, want ADM", cfg.Enrollment.StudentIDPrefix)
	}
	if cfg.Enrollment.PadWidth != 3 {
		t.Errorf("PadWidth = %d, want default 3", cfg.Enrollment.PadWidth)
	}
	if cfg.Storage.Driver != "yaml" {
		t.Errorf("Storage.Driver = %q, want default yaml", cfg.Storage.Driver)
	}
}

func TestLoadGlobalConfig_ExplicitZeroPadWidth(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "enrollment:\n  pad_width: 0\n")

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enrollment.PadWidth != 0 {
		t.Errorf("PadWidth = %d, want 0", cfg.Enrollment.PadWidth)
	}
}

func TestLoadGlobalConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "storage:\n  driver: yaml\n")
	t.Setenv("LEADFLOW_STORAGE_DRIVER", "sqlite")
	t.Setenv("LEADFLOW_ENROLLMENT_STUDENT_ID_PREFIX", "ENV")

	cfg, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite from env", cfg.Storage.Driver)
	}
	if cfg.Enrollment.StudentIDPrefix != "ENV" {
		t.Errorf("StudentIDPrefix = %q, want ENV from env", cfg.Enrollment.StudentIDPrefix)
	}
}

func TestLoadGlobalConfig_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "storage: [unterminated\n")

	_, err := NewConfigurationManager(dir).LoadGlobalConfig()
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig_NilConfig_ReturnsError(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	if err := cm.ValidateConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestValidateConfig_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.GlobalConfig)
		want   string
	}{
		{"unknown driver", func(c *models.GlobalConfig) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"sqlite without path", func(c *models.GlobalConfig) {
			c.Storage.Driver = "sqlite"
			c.Storage.SQLitePath = ""
		}, "storage.sqlite_path"},
		{"empty prefix", func(c *models.GlobalConfig) { c.Enrollment.StudentIDPrefix = "" }, "student_id_prefix"},
		{"lowercase prefix", func(c *models.GlobalConfig) { c.Enrollment.StudentIDPrefix = "stu" }, "student_id_prefix"},
		{"prefix too long", func(c *models.GlobalConfig) { c.Enrollment.StudentIDPrefix = "ABCDEFGHIJK" }, "student_id_prefix"},
		{"negative pad width", func(c *models.GlobalConfig) { c.Enrollment.PadWidth = -1 }, "pad_width"},
		{"pad width too large", func(c *models.GlobalConfig) { c.Enrollment.PadWidth = 11 }, "pad_width"},
		{"negative timeout", func(c *models.GlobalConfig) { c.Enrollment.Timeout = -time.Second }, "enrollment.timeout"},
		{"non-http base url", func(c *models.GlobalConfig) { c.StudentService.BaseURL = "ftp://sis" }, "base_url"},
		{"notifications without webhook", func(c *models.GlobalConfig) { c.Notifications.Enabled = true }, "webhook_url"},
		{"bad log level", func(c *models.GlobalConfig) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *models.GlobalConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	cm := NewConfigurationManager(t.TempDir())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGlobalConfig()
			tt.mutate(cfg)
			err := cm.ValidateConfig(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateConfig_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultGlobalConfig()
	cfg.Storage.Driver = "mongo"
	cfg.Enrollment.PadWidth = 99

	err := NewConfigurationManager(t.TempDir()).ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"storage.driver", "pad_width"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

// Feature: leadflow, Property 9: Configuration Round Trip
// Any valid enrollment section written to .leadflow.yaml loads back unchanged
// and passes validation.
func TestProperty9_ConfigurationRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prefix := rapid.StringMatching(`[A-Z0-9]{1,10}`).Draw(rt, "prefix")
		pad := rapid.IntRange(0, 10).Draw(rt, "pad")
		secs := rapid.IntRange(1, 120).Draw(rt, "secs")

		dir, err := os.MkdirTemp("", "leadflow-config-*")
		if err != nil {
			rt.Fatalf("creating temp dir: %v", err)
		}
		defer os.RemoveAll(dir)

		content := "enrollment:\n" +
			"  student_id_prefix: \"" + prefix + "\"\n" +
			"  pad_width: " + strconv.Itoa(pad) + "\n" +
			"  timeout: " + strconv.Itoa(secs) + "s\n"
		if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
			rt.Fatalf("writing config: %v", err)
		}

		cm := NewConfigurationManager(dir)
		cfg, err := cm.LoadGlobalConfig()
		if err != nil {
			rt.Fatalf("LoadGlobalConfig: %v", err)
		}
		if cfg.Enrollment.StudentIDPrefix != prefix {
			rt.Fatalf("prefix = %q, want %q", cfg.Enrollment.StudentIDPrefix, prefix)
		}
		if cfg.Enrollment.PadWidth != pad {
			rt.Fatalf("pad = %d, want %d", cfg.Enrollment.PadWidth, pad)
		}
		if cfg.Enrollment.Timeout != time.Duration(secs)*time.Second {
			rt.Fatalf("timeout = %s, want %ds", cfg.Enrollment.Timeout, secs)
		}
		if err := cm.ValidateConfig(cfg); err != nil {
			rt.Fatalf("ValidateConfig: %v", err)
		}
	})
}
