package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newMetricsCmd() *cobra.Command {
	var (
		asJSON bool
		since  string
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Display admissions metrics",
		Long: `Display aggregated metrics derived from the event log.

Metrics include new inquiries by source, stage moves, enrollments and the
enrollment failures that still need a retry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if MetricsCalc == nil {
				return errNotInitialized("metrics calculator")
			}

			sinceTime, err := parseSinceDuration(since, time.Now())
			if err != nil {
				return fmt.Errorf("parsing --since: %w", err)
			}

			metrics, err := MetricsCalc.Calculate(sinceTime)
			if err != nil {
				return fmt.Errorf("calculating metrics: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, metrics)
			}

			fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format(time.DateOnly))
			fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
			fmt.Fprintf(out, "  %-24s %d\n", "Leads created:", metrics.LeadsCreated)
			fmt.Fprintf(out, "  %-24s %d\n", "Stage moves:", metrics.LeadsMoved)
			fmt.Fprintf(out, "  %-24s %d\n", "Students enrolled:", metrics.LeadsEnrolled)
			fmt.Fprintf(out, "  %-24s %d\n", "Enrollment failures:", metrics.EnrollmentFailures)
			fmt.Fprintf(out, "  %-24s %d\n", "Communications logged:", metrics.CommunicationsLogged)
			fmt.Fprintf(out, "  %-24s %.1f%%\n", "Conversion rate:", metrics.ConversionRate()*100)

			printCounts(out, "Leads by source", metrics.LeadsBySource)
			printCounts(out, "Moves into stage", metrics.MovesByStage)

			if metrics.OldestEvent != nil {
				fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
			}
			if metrics.NewestEvent != nil {
				fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output metrics as JSON")
	cmd.Flags().StringVar(&since, "since", "30d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	return cmd
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\n  %s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-20s %d\n", k+":", counts[k])
	}
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time before now.
func parseSinceDuration(s string, now time.Time) (time.Time, error) {
	now = now.UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -30), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}
