package observability

import (
	"fmt"
	"time"
)

// Metrics holds admissions metrics derived from the event log.
type Metrics struct {
	LeadsCreated         int            `json:"leads_created"`
	LeadsMoved           int            `json:"leads_moved"`
	LeadsEnrolled        int            `json:"leads_enrolled"`
	EnrollmentFailures   int            `json:"enrollment_failures"`
	MovesByStage         map[string]int `json:"moves_by_stage"`
	LeadsBySource        map[string]int `json:"leads_by_source"`
	CommunicationsLogged int            `json:"communications_logged"`
	StagesDeleted        int            `json:"stages_deleted"`
	EventCount           int            `json:"event_count"`
	OldestEvent          *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent          *time.Time     `json:"newest_event,omitempty"`
}

// ConversionRate is enrolled leads over created leads, or 0 with no leads.
func (m *Metrics) ConversionRate() float64 {
	if m.LeadsCreated == 0 {
		return 0
	}
	return float64(m.LeadsEnrolled) / float64(m.LeadsCreated)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		MovesByStage:  make(map[string]int),
		LeadsBySource: make(map[string]int),
		EventCount:    len(events),
	}

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "lead.created":
			m.LeadsCreated++
			source, _ := event.Data["source"].(string)
			if source == "" {
				source = "unknown"
			}
			m.LeadsBySource[source]++
		case "lead.moved":
			m.LeadsMoved++
			if to, ok := event.Data["to"].(string); ok {
				m.MovesByStage[to]++
			}
		case "enrollment.fired":
			m.LeadsEnrolled++
		case "enrollment.failed":
			m.EnrollmentFailures++
		case "lead.communication_logged":
			m.CommunicationsLogged++
		case "stage.deleted":
			m.StagesDeleted++
		}
	}

	return m, nil
}
