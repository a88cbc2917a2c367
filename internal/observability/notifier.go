package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Notifier sends alert notifications to external channels.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// slackNotifier sends alert notifications to a Slack webhook.
type slackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier that sends alerts to the given Slack webhook URL.
func NewSlackNotifier(webhookURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwnSection(text string) slackBlock {
	return slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}}
}

func mrkdwnContext(text string) slackBlock {
	return slackBlock{Type: "context", Elements: []slackText{{Type: "mrkdwn", Text: text}}}
}

// Notify sends the given alerts to the configured Slack webhook.
// It returns nil without making a request if the alerts slice is empty.
func (s *slackNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	msg := s.buildMessage(alerts)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// buildMessage puts leads whose student record is missing first, with the
// command that repairs them, and lists follow-up alerts after.
func (s *slackNotifier) buildMessage(alerts []Alert) slackMessage {
	var failed, followUps []Alert
	for _, a := range alerts {
		if a.Condition == ConditionEnrollmentFailed {
			failed = append(failed, a)
		} else {
			followUps = append(followUps, a)
		}
	}

	title := "Admissions follow-ups"
	if len(failed) > 0 {
		title = "Enrollment needs attention"
	}
	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: title}},
		mrkdwnContext(fmt.Sprintf("%d enrollment %s, %d follow-up %s",
			len(failed), plural(len(failed), "failure", "failures"),
			len(followUps), plural(len(followUps), "alert", "alerts"))),
	}

	if len(failed) > 0 {
		var b strings.Builder
		b.WriteString("*Student record not created*")
		for _, a := range failed {
			fmt.Fprintf(&b, "\n%s `%s` %s _(%s)_", severityEmoji(a.Severity), a.LeadID, a.Message, stamp(a.TriggeredAt))
		}
		blocks = append(blocks,
			mrkdwnSection(b.String()),
			mrkdwnContext("Retry each lead with `leadflow enroll retry <lead-id>` once the student service is reachable."),
		)
	}

	if len(followUps) > 0 {
		if len(failed) > 0 {
			blocks = append(blocks, slackBlock{Type: "divider"})
		}
		var b strings.Builder
		b.WriteString("*Follow-ups*")
		for _, a := range followUps {
			fmt.Fprintf(&b, "\n%s *[%s]* %s _(%s)_", severityEmoji(a.Severity), strings.ToUpper(string(a.Severity)), a.Message, stamp(a.TriggeredAt))
			if a.LeadID != "" {
				fmt.Fprintf(&b, " `%s`", a.LeadID)
			}
		}
		blocks = append(blocks, mrkdwnSection(b.String()))
	}

	return slackMessage{Blocks: blocks}
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "\u2753"
	}
}
