// Package cli implements the leadflow command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "leadflow",
		Short: "Admissions pipeline for prospective students",
		Long: `leadflow tracks prospective students (leads) through a configurable
admissions pipeline of ordered stages.

Stages carry typed custom fields. Moving a lead into the terminal stage
creates its student record in the student service exactly once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newVersionCmd(),
		newBoardCmd(),
		newStageCmd(),
		newFieldCmd(),
		newLeadCmd(),
		newEnrollCmd(),
		newMetricsCmd(),
		newAlertsCmd(),
		newMCPCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "leadflow %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func errNotInitialized(what string) error {
	return fmt.Errorf("%s not initialized", what)
}
