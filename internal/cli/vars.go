package cli

import (
	"github.com/valter-silva-au/leadflow/internal/core"
	"github.com/valter-silva-au/leadflow/internal/observability"
)

// Service instances, set during app initialization in app.go.
var (
	Pipeline *core.Pipeline

	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)

func requirePipeline() (*core.Pipeline, error) {
	if Pipeline == nil {
		return nil, errNotInitialized("pipeline")
	}
	return Pipeline, nil
}
