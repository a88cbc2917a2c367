package observability

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestMetricsCalculator_Calculate(t *testing.T) {
	log := newTestLog(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	writeEvents(t, log,
		Event{Time: base, Level: "INFO", Type: "lead.created", Data: map[string]any{"lead_id": "lead-1", "source": "open day"}},
		Event{Time: base.Add(time.Hour), Level: "INFO", Type: "lead.created", Data: map[string]any{"lead_id": "lead-2", "source": ""}},
		Event{Time: base.Add(2 * time.Hour), Level: "INFO", Type: "lead.moved", Data: map[string]any{"lead_id": "lead-1", "from": "new-inquiry", "to": "enrolled"}},
		Event{Time: base.Add(2 * time.Hour), Level: "INFO", Type: "enrollment.fired", Data: map[string]any{"lead_id": "lead-1", "student_id": "STU001"}},
		Event{Time: base.Add(3 * time.Hour), Level: "INFO", Type: "lead.moved", Data: map[string]any{"lead_id": "lead-2", "from": "new-inquiry", "to": "enrolled"}},
		Event{Time: base.Add(3 * time.Hour), Level: "WARN", Type: "enrollment.failed", Data: map[string]any{"lead_id": "lead-2", "error": "timeout"}},
		Event{Time: base.Add(4 * time.Hour), Level: "INFO", Type: "lead.communication_logged", Data: map[string]any{"lead_id": "lead-2"}},
		Event{Time: base.Add(5 * time.Hour), Level: "INFO", Type: "stage.deleted", Data: map[string]any{"stage_id": "contacted"}},
	)

	m, err := NewMetricsCalculator(log).Calculate(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}

	if m.LeadsCreated != 2 || m.LeadsMoved != 2 || m.LeadsEnrolled != 1 || m.EnrollmentFailures != 1 {
		t.Errorf("counts = created %d moved %d enrolled %d failed %d", m.LeadsCreated, m.LeadsMoved, m.LeadsEnrolled, m.EnrollmentFailures)
	}
	if m.MovesByStage["enrolled"] != 2 {
		t.Errorf("MovesByStage = %v", m.MovesByStage)
	}
	if m.LeadsBySource["open day"] != 1 || m.LeadsBySource["unknown"] != 1 {
		t.Errorf("LeadsBySource = %v", m.LeadsBySource)
	}
	if m.CommunicationsLogged != 1 || m.StagesDeleted != 1 {
		t.Errorf("communications %d, stages deleted %d", m.CommunicationsLogged, m.StagesDeleted)
	}
	if m.EventCount != 8 {
		t.Errorf("expected event count 8, got %d", m.EventCount)
	}
	if m.OldestEvent == nil || !m.OldestEvent.Equal(base) {
		t.Errorf("OldestEvent = %v", m.OldestEvent)
	}
	if m.NewestEvent == nil || !m.NewestEvent.Equal(base.Add(5*time.Hour)) {
		t.Errorf("NewestEvent = %v", m.NewestEvent)
	}
	if got := m.ConversionRate(); got != 0.5 {
		t.Errorf("ConversionRate = %v, want 0.5", got)
	}
}

func TestMetricsCalculator_SinceFilter(t *testing.T) {
	log := newTestLog(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	writeEvents(t, log,
		Event{Time: base, Type: "lead.created"},
		Event{Time: base.Add(48 * time.Hour), Type: "lead.created"},
	)

	m, err := NewMetricsCalculator(log).Calculate(base.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}
	if m.LeadsCreated != 1 || m.EventCount != 1 {
		t.Errorf("created %d, events %d; want 1, 1", m.LeadsCreated, m.EventCount)
	}
}

func TestMetricsCalculator_Empty(t *testing.T) {
	m, err := NewMetricsCalculator(newTestLog(t)).Calculate(time.Time{})
	if err != nil {
		t.Fatalf("calculating metrics: %v", err)
	}
	if m.EventCount != 0 || m.OldestEvent != nil || m.ConversionRate() != 0 {
		t.Errorf("metrics = %+v", m)
	}
}

// Feature: leadflow, Property 10: Metrics Match Event Counts
// For any mix of pipeline events, every counter equals the number of events
// of its type and the per-stage move counts sum to LeadsMoved.
func TestProperty10_MetricsMatchEventCounts(t *testing.T) {
	types := []string{"lead.created", "lead.moved", "enrollment.fired", "enrollment.failed", "field.added"}
	stages := []string{"new-inquiry", "contacted", "enrolled"}

	rapid.Check(t, func(rt *rapid.T) {
		log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
		if err != nil {
			rt.Fatalf("creating event log: %v", err)
		}
		defer log.Close()

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		n := rapid.IntRange(0, 40).Draw(rt, "n")
		want := make(map[string]int)
		for i := 0; i < n; i++ {
			typ := rapid.SampledFrom(types).Draw(rt, fmt.Sprintf("type_%d", i))
			data := map[string]any{"lead_id": fmt.Sprintf("lead-%d", i)}
			if typ == "lead.moved" {
				data["to"] = rapid.SampledFrom(stages).Draw(rt, fmt.Sprintf("to_%d", i))
			}
			if err := log.Write(Event{Time: base.Add(time.Duration(i) * time.Minute), Type: typ, Data: data}); err != nil {
				rt.Fatalf("writing event: %v", err)
			}
			want[typ]++
		}

		m, err := NewMetricsCalculator(log).Calculate(base)
		if err != nil {
			rt.Fatalf("calculating metrics: %v", err)
		}
		if m.EventCount != n {
			rt.Errorf("EventCount = %d, want %d", m.EventCount, n)
		}
		if m.LeadsCreated != want["lead.created"] || m.LeadsMoved != want["lead.moved"] ||
			m.LeadsEnrolled != want["enrollment.fired"] || m.EnrollmentFailures != want["enrollment.failed"] {
			rt.Errorf("metrics %+v do not match counts %v", m, want)
		}
		sum := 0
		for _, c := range m.MovesByStage {
			sum += c
		}
		if sum != m.LeadsMoved {
			rt.Errorf("moves by stage sum to %d, want %d", sum, m.LeadsMoved)
		}
	})
}
