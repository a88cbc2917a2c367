package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/leadflow/internal/core"
	"github.com/valter-silva-au/leadflow/pkg/models"
)

func newLeadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Manage prospective students in the pipeline",
	}
	cmd.AddCommand(
		newLeadCreateCmd(),
		newLeadListCmd(),
		newLeadShowCmd(),
		newLeadMoveCmd(),
		newLeadUpdateCmd(),
		newLeadTaskCmd(),
		newLeadCommCmd(),
		newLeadSetFieldCmd(),
	)
	return cmd
}

type leadFlags struct {
	parent, grade, program, source, term string
	priority                             string
	phone, email, contact, recruiter     string
	notes, statusNotes, followUp         string
	tuition                              float64
	scholarship                          bool
	scholarshipNotes                     string
}

func (lf *leadFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&lf.parent, "parent", "", "Parent or guardian name")
	f.StringVar(&lf.grade, "grade", "", "Current grade")
	f.StringVar(&lf.program, "program", "", "Program of interest")
	f.StringVar(&lf.source, "source", "", "Where the inquiry came from")
	f.StringVar(&lf.term, "term", "", "Intended enrollment term")
	f.StringVar(&lf.priority, "priority", "", "Priority: low, medium or high")
	f.StringVar(&lf.phone, "phone", "", "Phone number")
	f.StringVar(&lf.email, "email", "", "Email address")
	f.StringVar(&lf.contact, "contact-method", "", "Preferred contact method")
	f.StringVar(&lf.recruiter, "recruiter", "", "Assigned recruiter")
	f.StringVar(&lf.notes, "notes", "", "Free-form notes")
	f.StringVar(&lf.statusNotes, "status-notes", "", "Notes about the current stage")
	f.StringVar(&lf.followUp, "follow-up", "", "Next follow-up date (YYYY-MM-DD)")
	f.Float64Var(&lf.tuition, "tuition", 0, "Estimated tuition value")
	f.BoolVar(&lf.scholarship, "scholarship", false, "Scholarship requested")
	f.StringVar(&lf.scholarshipNotes, "scholarship-notes", "", "Scholarship notes")
}

func (lf *leadFlags) draft(name string) models.Lead {
	return models.Lead{
		Name:                   name,
		ParentName:             lf.parent,
		Grade:                  lf.grade,
		Program:                lf.program,
		Source:                 lf.source,
		EnrollmentTerm:         lf.term,
		Priority:               models.Priority(lf.priority),
		Phone:                  lf.phone,
		Email:                  lf.email,
		PreferredContactMethod: lf.contact,
		AssignedRecruiter:      lf.recruiter,
		Notes:                  lf.notes,
		StatusNotes:            lf.statusNotes,
		NextFollowUpDate:       lf.followUp,
		EstimatedTuitionValue:  lf.tuition,
		ScholarshipRequested:   lf.scholarship,
		ScholarshipNotes:       lf.scholarshipNotes,
	}
}

// update builds a partial update from the flags the user actually set.
func (lf *leadFlags) update(cmd *cobra.Command) core.LeadUpdate {
	var upd core.LeadUpdate
	changed := cmd.Flags().Changed
	str := func(flag string, v *string) *string {
		if changed(flag) {
			return v
		}
		return nil
	}
	upd.ParentName = str("parent", &lf.parent)
	upd.Grade = str("grade", &lf.grade)
	upd.Program = str("program", &lf.program)
	upd.Source = str("source", &lf.source)
	upd.EnrollmentTerm = str("term", &lf.term)
	upd.Phone = str("phone", &lf.phone)
	upd.Email = str("email", &lf.email)
	upd.PreferredContactMethod = str("contact-method", &lf.contact)
	upd.AssignedRecruiter = str("recruiter", &lf.recruiter)
	upd.Notes = str("notes", &lf.notes)
	upd.StatusNotes = str("status-notes", &lf.statusNotes)
	upd.NextFollowUpDate = str("follow-up", &lf.followUp)
	upd.ScholarshipNotes = str("scholarship-notes", &lf.scholarshipNotes)
	if changed("priority") {
		p := models.Priority(lf.priority)
		upd.Priority = &p
	}
	if changed("tuition") {
		upd.EstimatedTuitionValue = &lf.tuition
	}
	if changed("scholarship") {
		upd.ScholarshipRequested = &lf.scholarship
	}
	return upd
}

func newLeadCreateCmd() *cobra.Command {
	var (
		lf    leadFlags
		stage string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Record a new inquiry",
		Long: `Record a new inquiry. The lead starts in the first stage unless --stage
names another one. Creating a lead never creates a student record, even
when it is placed directly in the terminal stage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			draft := lf.draft(args[0])
			draft.Status = stage
			lead, err := p.CreateLead(cmd.Context(), draft)
			if err != nil {
				return fmt.Errorf("creating lead: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created lead %s (%s) in %s\n", lead.ID, lead.Name, stageTitle(p, lead.Status))
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVar(&stage, "stage", "", "Initial stage id")
	return cmd
}

func newLeadListCmd() *cobra.Command {
	var (
		stage  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads, optionally within one stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			var leads []models.Lead
			if stage != "" {
				if leads, err = p.LeadsByStage(stage); err != nil {
					return err
				}
			} else {
				leads = p.Leads()
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), leads)
			}
			if len(leads) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No leads found.")
				return nil
			}

			rows := make([][]string, 0, len(leads))
			for _, l := range leads {
				rows = append(rows, []string{
					l.ID, l.Name, stageTitle(p, l.Status), l.Program, string(l.Priority), l.StudentID,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Stage", "Program", "Priority", "Student"},
				rows,
				nil,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "Only list leads in this stage")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output leads as JSON")
	return cmd
}

func newLeadShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <lead-id>",
		Short: "Show a lead with its tasks, communications and custom fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			lead, err := p.Lead(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), lead)
			}
			printLead(cmd.OutOrStdout(), p, lead)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the lead as JSON")
	return cmd
}

func printLead(w io.Writer, p *core.Pipeline, l models.Lead) {
	fmt.Fprintln(w, stageHeaderStyle.Render(l.Name))
	detail := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
		}
	}
	detail("ID", l.ID)
	detail("Stage", stageTitle(p, l.Status))
	detail("Priority", string(l.Priority))
	detail("Program", l.Program)
	detail("Source", l.Source)
	detail("Parent", l.ParentName)
	detail("Grade", l.Grade)
	detail("Email", l.Email)
	detail("Phone", l.Phone)
	detail("Recruiter", l.AssignedRecruiter)
	detail("Follow-up", l.NextFollowUpDate)
	detail("Student ID", l.StudentID)
	detail("Notes", l.Notes)

	if len(l.CustomFieldValues) > 0 {
		fmt.Fprintln(w, "\nFields:")
		for _, st := range p.Stages() {
			for _, f := range st.CustomFields {
				if v, ok := l.CustomFieldValues[f.ID]; ok {
					fmt.Fprintf(w, "  %s: %s\n", f.Name, core.FormatFieldValue(f.Type, v))
				}
			}
		}
	}

	if len(l.TaskChecklist) > 0 {
		fmt.Fprintln(w, "\nTasks:")
		for _, t := range l.TaskChecklist {
			mark := "[ ]"
			if t.Completed {
				mark = "[x]"
			}
			line := fmt.Sprintf("  %s %s  %s", mark, t.ID, t.Title)
			if t.DueDate != nil {
				line += mutedStyle.Render(" due " + t.DueDate.Format(time.DateOnly))
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(l.CommunicationLog) > 0 {
		fmt.Fprintln(w, "\nCommunications:")
		for _, c := range l.CommunicationLog {
			line := fmt.Sprintf("  %s  %-7s %s", c.Timestamp.Format(time.DateTime), c.Type, c.Summary)
			if c.FollowUpRequired {
				line += warningStyle.Render(" (follow-up)")
			}
			fmt.Fprintln(w, line)
		}
	}
}

func newLeadMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <lead-id> <stage-id>",
		Short: "Move a lead to another stage",
		Long: `Move a lead to another stage. Moving into the terminal stage creates the
student record. If that fails the move still happens and a warning is
printed; use "leadflow enroll retry" once the student service is back.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			res, err := p.MoveLead(cmd.Context(), args[0], args[1])
			if err != nil && !res.Changed {
				return fmt.Errorf("moving lead: %w", err)
			}
			printMoveResult(cmd.OutOrStdout(), p, res)
			if err != nil {
				return fmt.Errorf("saving pipeline: %w", err)
			}
			return nil
		},
	}
}

func printMoveResult(w io.Writer, p *core.Pipeline, res core.MoveResult) {
	if res.Changed {
		fmt.Fprintf(w, "Moved %s: %s → %s\n", res.Lead.Name, stageTitle(p, res.From), stageTitle(p, res.Lead.Status))
	} else {
		fmt.Fprintf(w, "%s is already in %s\n", res.Lead.Name, stageTitle(p, res.Lead.Status))
	}
	if res.Lead.StudentID != "" {
		fmt.Fprintln(w, successStyle.Render("Student ID: "+res.Lead.StudentID))
	}
	for _, warn := range res.Warnings {
		fmt.Fprintln(w, warningStyle.Render("Warning: "+warn.Error()))
	}
}

func newLeadUpdateCmd() *cobra.Command {
	var (
		lf   leadFlags
		name string
	)
	cmd := &cobra.Command{
		Use:   "update <lead-id>",
		Short: "Change a lead's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			upd := lf.update(cmd)
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			lead, err := p.UpdateLead(cmd.Context(), args[0], upd)
			if err != nil {
				return fmt.Errorf("updating lead: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated lead %s (%s)\n", lead.ID, lead.Name)
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "New name")
	return cmd
}

func newLeadTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage a lead's task checklist",
	}

	var due string
	add := &cobra.Command{
		Use:   "add <lead-id> <title>",
		Short: "Append a task to a lead",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			var dueDate *time.Time
			if due != "" {
				d, err := time.Parse(time.DateOnly, due)
				if err != nil {
					return fmt.Errorf("invalid --due %q: expected YYYY-MM-DD", due)
				}
				dueDate = &d
			}
			task, err := p.AddTask(cmd.Context(), args[0], args[1], dueDate)
			if err != nil {
				return fmt.Errorf("adding task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added task %s: %s\n", task.ID, task.Title)
			return nil
		},
	}
	add.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")

	toggle := &cobra.Command{
		Use:   "toggle <lead-id> <task-id>",
		Short: "Flip a task between open and done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			task, err := p.ToggleTask(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("toggling task: %w", err)
			}
			state := "open"
			if task.Completed {
				state = "done"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", task.ID, state)
			return nil
		},
	}

	cmd.AddCommand(add, toggle)
	return cmd
}

func newLeadCommCmd() *cobra.Command {
	var followUp bool
	cmd := &cobra.Command{
		Use:   "comm <lead-id> <call|email|meeting|text|other> <summary>",
		Short: "Log a communication with a lead",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			kind := models.CommunicationType(strings.ToLower(args[1]))
			c, err := p.LogCommunication(cmd.Context(), args[0], kind, args[2], followUp)
			if err != nil {
				return fmt.Errorf("logging communication: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %s %s at %s\n", c.Type, c.ID, c.Timestamp.Format(time.DateTime))
			return nil
		},
	}
	cmd.Flags().BoolVar(&followUp, "follow-up", false, "Flag the entry as needing a follow-up")
	return cmd
}

func newLeadSetFieldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-field <lead-id> <field-id> <value>",
		Short: "Set a custom field value on a lead",
		Long: `Set a custom field value on a lead. The raw value is parsed according to
the field's type: numbers accept "$", "," and "%", checkboxes accept yes/no,
and multiselect values are comma separated.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePipeline()
			if err != nil {
				return err
			}
			lead, err := p.Lead(args[0])
			if err != nil {
				return err
			}
			field, ok := lookupField(p, lead.Status, args[1])
			if !ok {
				return fmt.Errorf("field %s not found", args[1])
			}
			v, err := core.ParseFieldValue(field.Type, args[2])
			if err != nil {
				return err
			}
			if _, err := p.SetCustomFieldValue(cmd.Context(), lead.ID, field.ID, v); err != nil {
				return fmt.Errorf("setting field: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", field.Name, core.FormatFieldValue(field.Type, v))
			return nil
		},
	}
}

// lookupField finds a field definition, preferring the lead's own stage.
func lookupField(p *core.Pipeline, stageID, fieldID string) (models.CustomField, bool) {
	stages := p.Stages()
	for _, st := range stages {
		if st.ID == stageID {
			if f := st.Field(fieldID); f != nil {
				return *f, true
			}
		}
	}
	for _, st := range stages {
		if f := st.Field(fieldID); f != nil {
			return *f, true
		}
	}
	return models.CustomField{}, false
}

func stageTitle(p *core.Pipeline, stageID string) string {
	if st, err := p.Stage(stageID); err == nil {
		return st.Title
	}
	return stageID
}
