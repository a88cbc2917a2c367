package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/leadflow/internal/core"
)

func newStageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Manage pipeline stages",
	}
	cmd.AddCommand(
		newStageListCmd(),
		newStageAddCmd(),
		newStageRenameCmd(),
		newStageMoveCmd(),
		newStageRequireCmd(),
		newStageDeleteCmd(),
	)
	return cmd
}

func newStageListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stages in board order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			summaries := p.Summaries()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}

			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{
					strconv.Itoa(s.Stage.Order),
					s.Stage.ID,
					s.Stage.Title,
					strconv.Itoa(s.LeadCount),
					strconv.Itoa(len(s.Stage.CustomFields)),
					stageFlags(s),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "ID", "Title", "Leads", "Fields", "Flags"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output stages as JSON")
	return cmd
}

func stageFlags(s core.StageSummary) string {
	var flags []string
	if s.Stage.IsRequired {
		flags = append(flags, "required")
	}
	if s.Start {
		flags = append(flags, "start")
	}
	if s.Terminal {
		flags = append(flags, "terminal")
	}
	return strings.Join(flags, ", ")
}

func newStageAddCmd() *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Append a new optional stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			st, err := p.AddStage(cmd.Context(), args[0], color)
			if err != nil {
				return fmt.Errorf("adding stage: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added stage %q (%s) at position %d\n", st.Title, st.ID, st.Order)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "Color tag shown on the board")
	return cmd
}

func newStageRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <stage-id> <title>",
		Short: "Change a stage's title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			st, err := p.RenameStage(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("renaming stage: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed stage %s to %q\n", st.ID, st.Title)
			return nil
		},
	}
}

func newStageMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <stage-id> <target-stage-id>",
		Short: "Move a stage to the position of another stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			stages, err := p.MoveStage(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("moving stage: %w", err)
			}
			titles := make([]string, len(stages))
			for i, s := range stages {
				titles[i] = s.Title
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stage order: %s\n", strings.Join(titles, " > "))
			return nil
		},
	}
}

func newStageRequireCmd() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "require <stage-id>",
		Short: "Mark a stage as required so it cannot be deleted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			st, err := p.SetStageRequired(cmd.Context(), args[0], !off)
			if err != nil {
				return fmt.Errorf("updating stage: %w", err)
			}
			state := "required"
			if !st.IsRequired {
				state = "optional"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stage %q is now %s\n", st.Title, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "Make the stage optional again")
	return cmd
}

func newStageDeleteCmd() *cobra.Command {
	var migrateTo string
	cmd := &cobra.Command{
		Use:   "delete <stage-id>",
		Short: "Delete an optional stage, migrating its leads",
		Long: `Delete an optional stage. Leads in the stage move to --migrate-to, or to
the first remaining stage when no target is given. Required stages and the
last remaining stage cannot be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			res, err := p.DeleteStage(cmd.Context(), args[0], migrateTo)
			if err != nil {
				return fmt.Errorf("deleting stage: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleted stage %q\n", res.Stage.Title)
			if n := len(res.MigratedLeadIDs); n > 0 {
				fmt.Fprintf(out, "Migrated %d lead(s) to %s\n", n, res.MigrationTarget)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&migrateTo, "migrate-to", "", "Stage that receives the deleted stage's leads")
	return cmd
}

func newBoardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show every stage with the leads it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range p.Summaries() {
				fmt.Fprintln(out, stageHeaderStyle.Render(fmt.Sprintf("%s (%d)", s.Stage.Title, s.LeadCount)))
				leads, err := p.LeadsByStage(s.Stage.ID)
				if err != nil {
					return err
				}
				if len(leads) == 0 {
					fmt.Fprintln(out, mutedStyle.Render("  no leads"))
				}
				for _, l := range leads {
					line := fmt.Sprintf("  %s  %s [%s]", l.ID, l.Name, l.Priority)
					if l.StudentID != "" {
						line += " " + successStyle.Render(l.StudentID)
					}
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
