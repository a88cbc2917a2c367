package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnrollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Student record creation for enrolled leads",
	}

	retry := &cobra.Command{
		Use:   "retry <lead-id>",
		Short: "Retry student creation for an enrolled lead",
		Long: `Re-run the enrollment trigger for a lead already in the terminal stage
whose student record could not be created. A lead that already has a
student id is left unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			res, err := p.RetryTriggers(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("retrying enrollment: %w", err)
			}
			out := cmd.OutOrStdout()
			switch {
			case len(res.Warnings) > 0:
				for _, warn := range res.Warnings {
					fmt.Fprintln(out, warningStyle.Render("Warning: "+warn.Error()))
				}
			case res.Lead.StudentID != "":
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%s enrolled as %s", res.Lead.Name, res.Lead.StudentID)))
			default:
				fmt.Fprintf(out, "Nothing to retry for %s\n", res.Lead.Name)
			}
			return nil
		},
	}

	cmd.AddCommand(retry)
	return cmd
}
