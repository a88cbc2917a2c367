package observability

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionEnrollmentFailed  = "enrollment_failed"
	ConditionInquiryUnanswered = "inquiry_unanswered"
	ConditionLeadStalled       = "lead_stalled"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	LeadID      string        `json:"lead_id,omitempty"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	// ResponseHours is how long a new lead may wait for a first logged contact.
	ResponseHours int `yaml:"response_threshold_hours" json:"response_threshold_hours"`
	StaleDays     int `yaml:"stale_threshold_days" json:"stale_threshold_days"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		ResponseHours: 48,
		StaleDays:     14,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// leadActivity is what the event log says about one lead.
type leadActivity struct {
	created      time.Time
	lastActivity time.Time
	contacted    bool
	enrolled     bool
	failed       bool
	failure      string
}

// Evaluate reads events and checks all alert conditions, returning any
// triggered alerts ordered by id.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()

	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}
	leads := collectLeadActivity(events)

	var alerts []Alert
	alerts = append(alerts, ae.checkFailedEnrollments(leads, now)...)
	alerts = append(alerts, ae.checkUnansweredInquiries(leads, now)...)
	alerts = append(alerts, ae.checkStalledLeads(leads, now)...)

	slices.SortFunc(alerts, func(a, b Alert) int { return cmp.Compare(a.ID, b.ID) })
	return alerts, nil
}

func collectLeadActivity(events []Event) map[string]*leadActivity {
	leads := make(map[string]*leadActivity)
	for _, event := range events {
		leadID := eventLeadID(event)
		if leadID == "" {
			continue
		}
		la, ok := leads[leadID]
		if !ok {
			la = &leadActivity{}
			leads[leadID] = la
		}
		if event.Time.After(la.lastActivity) {
			la.lastActivity = event.Time
		}

		switch event.Type {
		case "lead.created":
			la.created = event.Time
		case "lead.communication_logged":
			la.contacted = true
		case "enrollment.fired":
			la.enrolled = true
			la.failed = false
		case "enrollment.failed":
			la.failed = true
			la.failure, _ = event.Data["error"].(string)
		}
	}
	return leads
}

// checkFailedEnrollments reports leads whose latest enrollment attempt failed.
func (ae *alertEngine) checkFailedEnrollments(leads map[string]*leadActivity, now time.Time) []Alert {
	var alerts []Alert
	for leadID, la := range leads {
		if !la.failed {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("enrollment-%s", leadID),
			Condition:   ConditionEnrollmentFailed,
			Severity:    SeverityHigh,
			LeadID:      leadID,
			Message:     fmt.Sprintf("lead %s reached enrollment but no student record was created: %s", leadID, la.failure),
			TriggeredAt: now,
		})
	}
	return alerts
}

// checkUnansweredInquiries reports new leads with no logged communication
// after the response threshold.
func (ae *alertEngine) checkUnansweredInquiries(leads map[string]*leadActivity, now time.Time) []Alert {
	threshold := time.Duration(ae.thresholds.ResponseHours) * time.Hour
	var alerts []Alert
	for leadID, la := range leads {
		if la.created.IsZero() || la.contacted || la.enrolled {
			continue
		}
		if now.Sub(la.created) > threshold {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("unanswered-%s", leadID),
				Condition:   ConditionInquiryUnanswered,
				Severity:    SeverityMedium,
				LeadID:      leadID,
				Message:     fmt.Sprintf("lead %s has had no logged contact for more than %d hours", leadID, ae.thresholds.ResponseHours),
				TriggeredAt: now,
			})
		}
	}
	return alerts
}

// checkStalledLeads reports contacted leads with no activity for the stale
// threshold that have not enrolled.
func (ae *alertEngine) checkStalledLeads(leads map[string]*leadActivity, now time.Time) []Alert {
	threshold := time.Duration(ae.thresholds.StaleDays) * 24 * time.Hour
	var alerts []Alert
	for leadID, la := range leads {
		if la.enrolled || la.failed || !la.contacted {
			continue
		}
		if now.Sub(la.lastActivity) > threshold {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("stalled-%s", leadID),
				Condition:   ConditionLeadStalled,
				Severity:    SeverityLow,
				LeadID:      leadID,
				Message:     fmt.Sprintf("lead %s has had no activity for more than %d days", leadID, ae.thresholds.StaleDays),
				TriggeredAt: now,
			})
		}
	}
	return alerts
}
