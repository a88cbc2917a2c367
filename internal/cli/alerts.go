package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/leadflow/internal/observability"
)

func newAlertsCmd() *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show leads that need attention",
		Long: `Evaluate alert conditions against the event log and display any triggered alerts.

Alerts flag failed enrollments, new inquiries nobody has contacted yet, and
contacted leads that have gone quiet. With --notify the alerts are also
posted to the configured Slack webhook.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if AlertEngine == nil {
				return errNotInitialized("alert engine")
			}

			alerts, err := AlertEngine.Evaluate()
			if err != nil {
				return fmt.Errorf("evaluating alerts: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(alerts) == 0 {
				fmt.Fprintln(out, "No active alerts.")
				return nil
			}

			fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
			for _, alert := range alerts {
				label := severityStyle(alert.Severity).Render("[" + strings.ToUpper(string(alert.Severity)) + "]")
				fmt.Fprintf(out, "  %s %s\n", label, alert.Message)
				fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
			}

			if notify {
				if Notifier == nil {
					return errNotInitialized("notifier")
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				defer cancel()
				if err := Notifier.Notify(ctx, alerts); err != nil {
					return fmt.Errorf("sending alerts: %w", err)
				}
				fmt.Fprintln(out, "Alerts sent.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Post the alerts to Slack")
	return cmd
}

func severityStyle(s observability.AlertSeverity) lipgloss.Style {
	switch s {
	case observability.SeverityHigh:
		return severityHigh
	case observability.SeverityMedium:
		return severityMedium
	default:
		return severityLow
	}
}
