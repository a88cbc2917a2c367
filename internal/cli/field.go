package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/leadflow/internal/core"
	"github.com/valter-silva-au/leadflow/pkg/models"
)

func newFieldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Manage custom fields on a stage",
	}
	cmd.AddCommand(
		newFieldListCmd(),
		newFieldAddCmd(),
		newFieldUpdateCmd(),
		newFieldDeleteCmd(),
		newFieldMoveCmd(),
	)
	return cmd
}

func newFieldListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <stage-id>",
		Short: "List a stage's custom fields in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			st, err := p.Stage(args[0])
			if err != nil {
				return err
			}
			if len(st.CustomFields) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Stage %q has no custom fields.\n", st.Title)
				return nil
			}
			rows := make([][]string, 0, len(st.CustomFields))
			for _, f := range st.CustomFields {
				required := ""
				if f.Required {
					required = "yes"
				}
				rows = append(rows, []string{
					strconv.Itoa(f.Order), f.ID, f.Name, string(f.Type), required, strings.Join(f.Options, ", "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "ID", "Name", "Type", "Required", "Options"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
}

func newFieldAddCmd() *cobra.Command {
	var (
		fieldType   string
		options     []string
		required    bool
		placeholder string
	)
	cmd := &cobra.Command{
		Use:   "add <stage-id> <name>",
		Short: "Append a custom field to a stage",
		Long:  "Append a custom field to a stage. Supported types: " + fieldTypeList() + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			f, err := p.AddCustomField(cmd.Context(), args[0], models.CustomField{
				Name:        args[1],
				Type:        models.FieldType(fieldType),
				Required:    required,
				Options:     options,
				Placeholder: placeholder,
			})
			if err != nil {
				return fmt.Errorf("adding field: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s field %q (%s)\n", f.Type, f.Name, f.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&fieldType, "type", string(models.FieldText), "Field type")
	cmd.Flags().StringSliceVar(&options, "option", nil, "Option for dropdown and multiselect fields (repeatable)")
	cmd.Flags().BoolVar(&required, "required", false, "Mark the field as required")
	cmd.Flags().StringVar(&placeholder, "placeholder", "", "Placeholder text")
	return cmd
}

func newFieldUpdateCmd() *cobra.Command {
	var (
		name        string
		fieldType   string
		options     []string
		required    bool
		placeholder string
	)
	cmd := &cobra.Command{
		Use:   "update <stage-id> <field-id>",
		Short: "Change a custom field's definition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			var upd core.FieldUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				upd.Name = &name
			}
			if flags.Changed("type") {
				t := models.FieldType(fieldType)
				upd.Type = &t
			}
			if flags.Changed("option") {
				upd.Options = &options
			}
			if flags.Changed("required") {
				upd.Required = &required
			}
			if flags.Changed("placeholder") {
				upd.Placeholder = &placeholder
			}
			f, err := p.UpdateCustomField(cmd.Context(), args[0], args[1], upd)
			if err != nil {
				return fmt.Errorf("updating field: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated field %q (%s)\n", f.Name, f.Type)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New field name")
	cmd.Flags().StringVar(&fieldType, "type", "", "New field type")
	cmd.Flags().StringSliceVar(&options, "option", nil, "Replacement option list (repeatable)")
	cmd.Flags().BoolVar(&required, "required", false, "Whether the field is required")
	cmd.Flags().StringVar(&placeholder, "placeholder", "", "New placeholder text")
	return cmd
}

func newFieldDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <stage-id> <field-id>",
		Short: "Remove a custom field from a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			if err := p.DeleteCustomField(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("deleting field: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted field %s\n", args[1])
			return nil
		},
	}
}

func newFieldMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <stage-id> <field-id> <up|down|index>",
		Short: "Move a custom field one step or to an absolute position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			stageID, fieldID, where := args[0], args[1], args[2]

			var fields []models.CustomField
			switch dir := core.Direction(strings.ToLower(where)); dir {
			case core.DirectionUp, core.DirectionDown:
				fields, err = p.MoveCustomField(cmd.Context(), stageID, fieldID, dir)
			default:
				index, convErr := strconv.Atoi(where)
				if convErr != nil {
					return fmt.Errorf("invalid position %q: use up, down or a zero-based index", where)
				}
				fields, err = p.RepositionCustomField(cmd.Context(), stageID, fieldID, index)
			}
			if err != nil {
				return fmt.Errorf("moving field: %w", err)
			}

			names := make([]string, len(fields))
			for i, f := range fields {
				names[i] = f.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Field order: %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}

func fieldTypeList() string {
	names := make([]string, len(models.FieldTypes))
	for i, t := range models.FieldTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
