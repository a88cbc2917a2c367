// Package internal provides the App struct that wires all components of
// leadflow together and initializes the CLI layer.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/valter-silva-au/leadflow/internal/cli"
	"github.com/valter-silva-au/leadflow/internal/core"
	"github.com/valter-silva-au/leadflow/internal/integration"
	"github.com/valter-silva-au/leadflow/internal/logging"
	"github.com/valter-silva-au/leadflow/internal/observability"
	"github.com/valter-silva-au/leadflow/internal/storage"
	"github.com/valter-silva-au/leadflow/pkg/models"
)

// EventLogFileName is the JSONL event log kept next to the pipeline data.
const EventLogFileName = ".leadflow_events.jsonl"

const notifyTimeout = 10 * time.Second

// App holds all service dependencies for leadflow.
type App struct {
	BasePath string
	Config   *models.GlobalConfig
	Logger   *slog.Logger

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage layer
	Store     core.Persister
	Directory core.StudentDirectory

	// Core services
	Pipeline   *core.Pipeline
	Enrollment *core.EnrollmentTrigger

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier

	closers     []func() error
	unsubscribe func()
	notifying   sync.WaitGroup
}

// NewApp creates and wires all components of leadflow. basePath is the
// directory holding .leadflow.yaml and the pipeline data.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		// Use defaults if the config file cannot be read.
		fmt.Fprintf(os.Stderr, "warning: %v; using default configuration\n", err)
		cfg = core.DefaultGlobalConfig()
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	app.Logger, err = logging.NewFromConfig(cfg.Log, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}

	// --- Storage layer ---
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if err := app.openStore(); err != nil {
		return nil, err
	}
	if err := app.openDirectory(); err != nil {
		_ = app.Close()
		return nil, err
	}

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, EventLogFileName)
	eventLog, err := observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: the pipeline works without an event log.
		app.Logger.Warn("event log disabled", "path", eventLogPath, "error", err)
	} else {
		app.EventLog = eventLog
		app.closers = append(app.closers, eventLog.Close)
		app.AlertEngine = observability.NewAlertEngine(eventLog, observability.DefaultAlertThresholds())
		app.MetricsCalc = observability.NewMetricsCalculator(eventLog)
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}

	// --- Core services ---
	app.Enrollment = core.NewEnrollmentTrigger(app.Directory,
		core.WithStudentIDFormat(cfg.Enrollment.StudentIDPrefix, cfg.Enrollment.PadWidth),
		core.WithEnrollmentTimeout(cfg.Enrollment.Timeout),
		core.WithEnrollmentLogger(app.Logger),
	)

	opts := []core.PipelineOption{
		core.WithLogger(app.Logger),
		core.WithTriggers(app.Enrollment),
	}
	if app.EventLog != nil {
		opts = append(opts, core.WithEventLogger(observability.NewRecorder(app.EventLog)))
	}
	app.Pipeline, err = core.LoadPipeline(context.Background(), app.Store, opts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if app.Notifier != nil {
		app.unsubscribe = app.Pipeline.Subscribe(app.notifyFailures)
	}

	// --- Wire CLI package-level variables ---
	cli.Pipeline = app.Pipeline
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

func (a *App) openStore() error {
	switch a.Config.Storage.Driver {
	case "sqlite":
		path := a.Config.Storage.SQLitePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.BasePath, path)
		}
		store, err := storage.OpenSQLitePipelineStore(path)
		if err != nil {
			return fmt.Errorf("opening pipeline database: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
	default:
		a.Store = storage.NewFilePipelineStore(a.BasePath)
	}
	return nil
}

func (a *App) openDirectory() error {
	svc := a.Config.StudentService
	if svc.BaseURL != "" {
		var opts []integration.ClientOption
		if svc.Token != "" {
			opts = append(opts, integration.WithBearerToken(svc.Token))
		}
		a.Directory = integration.NewStudentServiceClient(svc.BaseURL, opts...)
		return nil
	}
	dir, err := integration.OpenFileStudentDirectory(a.BasePath)
	if err != nil {
		return fmt.Errorf("opening student directory: %w", err)
	}
	a.Directory = dir
	return nil
}

// notifyFailures posts a Slack alert for every trigger that failed during a
// change. Observers run under the pipeline lock, so delivery happens in the
// background and Close waits for it.
func (a *App) notifyFailures(change core.Change, _ models.PipelineState) {
	if len(change.Warnings) == 0 {
		return
	}
	now := time.Now().UTC()
	alerts := make([]observability.Alert, 0, len(change.Warnings))
	for _, w := range change.Warnings {
		alerts = append(alerts, observability.Alert{
			ID:          "enrollment-" + w.LeadID,
			Condition:   observability.ConditionEnrollmentFailed,
			Severity:    observability.SeverityHigh,
			LeadID:      w.LeadID,
			Message:     w.Error(),
			TriggeredAt: now,
		})
	}

	a.notifying.Add(1)
	go func() {
		defer a.notifying.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := a.Notifier.Notify(ctx, alerts); err != nil {
			a.Logger.Warn("sending failure alert", "lead_id", change.LeadID, "error", err)
		}
	}()
}

// Close waits for pending notifications and releases the event log and
// database handles. It is safe to call on a partially built App.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.notifying.Wait()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ResolveBasePath determines the leadflow data directory. It checks the
// LEADFLOW_HOME env var, then walks up from the current directory looking
// for .leadflow.yaml, then falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("LEADFLOW_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
