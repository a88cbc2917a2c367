package observability

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestLog(t *testing.T) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func writeEvents(t *testing.T, log EventLog, events ...Event) {
	t.Helper()
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log := newTestLog(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	writeEvents(t, log,
		Event{Time: now, Level: "INFO", Type: "lead.created", Message: "lead created", Data: map[string]any{"lead_id": "lead-1"}},
		Event{Time: now.Add(time.Second), Level: "WARN", Type: "enrollment.failed", Message: "enrollment failed", Data: map[string]any{"lead_id": "lead-1", "error": "timeout"}},
	)

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].Type != "lead.created" || result[0].Message != "lead created" {
		t.Errorf("first event = %+v", result[0])
	}
	if result[1].Level != "WARN" || result[1].Data["error"] != "timeout" {
		t.Errorf("second event = %+v", result[1])
	}
}

func TestEventLog_Filters(t *testing.T) {
	log := newTestLog(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	writeEvents(t, log,
		Event{Time: base, Level: "INFO", Type: "lead.created", Message: "first", Data: map[string]any{"lead_id": "lead-1"}},
		Event{Time: base.Add(time.Hour), Level: "INFO", Type: "lead.moved", Message: "second", Data: map[string]any{"lead_id": "lead-2"}},
		Event{Time: base.Add(2 * time.Hour), Level: "WARN", Type: "enrollment.failed", Message: "third", Data: map[string]any{"lead_id": "lead-1"}},
		Event{Time: base.Add(3 * time.Hour), Level: "INFO", Type: "lead.created", Message: "fourth", Data: map[string]any{"lead_id": "lead-3"}},
	)

	since := base.Add(30 * time.Minute)
	until := base.Add(2*time.Hour + 30*time.Minute)
	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"type", EventFilter{Type: "lead.created"}, []string{"first", "fourth"}},
		{"time range", EventFilter{Since: &since, Until: &until}, []string{"second", "third"}},
		{"level", EventFilter{Level: "WARN"}, []string{"third"}},
		{"lead", EventFilter{LeadID: "lead-1"}, []string{"first", "third"}},
		{"combined", EventFilter{LeadID: "lead-1", Since: &since}, []string{"third"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := log.Read(tt.filter)
			if err != nil {
				t.Fatalf("reading events: %v", err)
			}
			var got []string
			for _, e := range result {
				got = append(got, e.Message)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventLog_EmptyLog(t *testing.T) {
	result, err := newTestLog(t).Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading empty log: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected 0 events from empty log, got %d", len(result))
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log := newTestLog(t)

	const goroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < eventsPerGoroutine; i++ {
				event := Event{
					Time:    time.Now().UTC(),
					Level:   "INFO",
					Type:    "lead.moved",
					Message: "concurrent event",
					Data:    map[string]any{"goroutine": id, "index": i},
				}
				if err := log.Write(event); err != nil {
					t.Errorf("concurrent write error: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events after concurrent writes: %v", err)
	}
	if expected := goroutines * eventsPerGoroutine; len(result) != expected {
		t.Errorf("expected %d events, got %d", expected, len(result))
	}
}

func TestRecorder_LogEvent(t *testing.T) {
	log := newTestLog(t)
	rec := NewRecorder(log)
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	if err := rec.LogEvent("lead.moved", map[string]any{"lead_id": "lead-1", "from": "offer-sent", "to": "enrolled"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if err := rec.LogEvent("enrollment.failed", map[string]any{"lead_id": "lead-1", "error": "connection refused"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if err := rec.LogEvent("field.added", map[string]any{"field_id": "f1"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if !events[0].Time.Equal(fixed) || events[0].Level != "INFO" {
		t.Errorf("moved event = %+v", events[0])
	}
	if events[0].Message != "lead lead-1 moved from offer-sent to enrolled" {
		t.Errorf("moved message = %q", events[0].Message)
	}
	if events[1].Level != "WARN" || !strings.Contains(events[1].Message, "connection refused") {
		t.Errorf("failed event = %+v", events[1])
	}
	if events[2].Message != "field.added" {
		t.Errorf("fallback message = %q", events[2].Message)
	}
}
