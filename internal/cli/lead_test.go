package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/valter-silva-au/leadflow/internal/core"
	"github.com/valter-silva-au/leadflow/internal/integration"
	"github.com/valter-silva-au/leadflow/pkg/models"
)

func TestLeadCreate(t *testing.T) {
	p := usePipeline(t, nil)

	out := mustRun(t, "lead", "create", "Ada Lovelace", "--program", "STEM", "--source", "open-day", "--priority", "high")
	if !strings.Contains(out, "in New Inquiry") {
		t.Errorf("unexpected output: %s", out)
	}

	leads := p.Leads()
	if len(leads) != 1 {
		t.Fatalf("lead count = %d, want 1", len(leads))
	}
	l := leads[0]
	if l.Status != core.StageNewInquiry || l.Program != "STEM" || l.Source != "open-day" || l.Priority != models.PriorityHigh {
		t.Errorf("created lead = %+v", l)
	}
}

func TestLeadCreate_InTerminalStageDoesNotEnroll(t *testing.T) {
	dir := integration.NewMemoryStudentDirectory()
	p := usePipeline(t, dir)

	mustRun(t, "lead", "create", "Ada Lovelace", "--stage", core.StageEnrolled)
	if got := p.Leads()[0].StudentID; got != "" {
		t.Errorf("StudentID = %q, want empty", got)
	}
	if n := len(dir.Students()); n != 0 {
		t.Errorf("students created = %d, want 0", n)
	}
}

func TestLeadCreate_InvalidPriority(t *testing.T) {
	usePipeline(t, nil)

	if _, err := runCmd(t, "lead", "create", "Ada", "--priority", "urgent"); err == nil {
		t.Fatal("expected invalid priority to be rejected")
	}
}

func TestLeadListAndShow(t *testing.T) {
	p := usePipeline(t, nil)
	ada := createTestLead(t, p, "Ada Lovelace", core.StageContacted)
	createTestLead(t, p, "Grace Hopper", core.StageNewInquiry)

	out := mustRun(t, "lead", "list", "--stage", core.StageContacted)
	if !strings.Contains(out, "Ada Lovelace") || strings.Contains(out, "Grace Hopper") {
		t.Errorf("stage-filtered list:\n%s", out)
	}

	out = mustRun(t, "lead", "list", "--json")
	if !strings.Contains(out, `"name": "Grace Hopper"`) {
		t.Errorf("JSON list:\n%s", out)
	}

	out = mustRun(t, "lead", "show", ada.ID)
	for _, want := range []string{"Ada Lovelace", "Contacted", "ada@example.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCmd(t, "lead", "show", "missing"); err == nil {
		t.Error("expected error for unknown lead")
	}
}

func TestLeadList_Empty(t *testing.T) {
	usePipeline(t, nil)

	out := mustRun(t, "lead", "list")
	if !strings.Contains(out, "No leads found.") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestLeadMove_EnrollsStudent(t *testing.T) {
	dir := integration.NewMemoryStudentDirectory()
	p := usePipeline(t, dir)
	lead := createTestLead(t, p, "Ada Lovelace", core.StageOfferSent)

	out := mustRun(t, "lead", "move", lead.ID, core.StageEnrolled)
	for _, want := range []string{"Offer Sent → Enrolled", "Student ID: STU001"} {
		if !strings.Contains(out, want) {
			t.Errorf("move output missing %q:\n%s", want, out)
		}
	}
	if n := len(dir.Students()); n != 1 {
		t.Errorf("students created = %d, want 1", n)
	}

	out = mustRun(t, "lead", "move", lead.ID, core.StageEnrolled)
	if !strings.Contains(out, "already in Enrolled") {
		t.Errorf("second move output: %s", out)
	}
	if n := len(dir.Students()); n != 1 {
		t.Errorf("students after repeated move = %d, want 1", n)
	}
}

func TestLeadMove_WarningThenRetry(t *testing.T) {
	p := usePipeline(t, unavailableDirectory{})
	lead := createTestLead(t, p, "Ada Lovelace", core.StageOfferSent)

	out := mustRun(t, "lead", "move", lead.ID, core.StageEnrolled)
	if !strings.Contains(out, "Warning:") || !strings.Contains(out, "student service unavailable") {
		t.Errorf("expected enrollment warning:\n%s", out)
	}
	got, _ := p.Lead(lead.ID)
	if got.Status != core.StageEnrolled || got.StudentID != "" {
		t.Fatalf("lead after failed enrollment = %+v", got)
	}

	out = mustRun(t, "enroll", "retry", lead.ID)
	if !strings.Contains(out, "Warning:") {
		t.Errorf("retry against unavailable service should warn:\n%s", out)
	}
}

func TestEnrollRetry_NothingToDo(t *testing.T) {
	p := usePipeline(t, nil)
	lead := createTestLead(t, p, "Ada Lovelace", core.StageContacted)

	out := mustRun(t, "enroll", "retry", lead.ID)
	if !strings.Contains(out, "Nothing to retry") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestLeadUpdate_OnlyChangedFlags(t *testing.T) {
	p := usePipeline(t, nil)
	lead := createTestLead(t, p, "Ada Lovelace", core.StageNewInquiry)

	mustRun(t, "lead", "update", lead.ID, "--grade", "10", "--scholarship", "--tuition", "12000")

	got, err := p.Lead(lead.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Grade != "10" || !got.ScholarshipRequested || got.EstimatedTuitionValue != 12000 {
		t.Errorf("updated lead = %+v", got)
	}
	if got.Program != "STEM" || got.Email != "ada@example.com" {
		t.Errorf("unset flags should leave fields alone: %+v", got)
	}
}

func TestLeadTasks(t *testing.T) {
	p := usePipeline(t, nil)
	lead := createTestLead(t, p, "Ada Lovelace", core.StageNewInquiry)

	mustRun(t, "lead", "task", "add", lead.ID, "Send brochure", "--due", "2026-03-01")
	got, _ := p.Lead(lead.ID)
	if len(got.TaskChecklist) != 1 || got.TaskChecklist[0].DueDate == nil {
		t.Fatalf("tasks = %+v", got.TaskChecklist)
	}

	out := mustRun(t, "lead", "task", "toggle", lead.ID, got.TaskChecklist[0].ID)
	if !strings.Contains(out, "done") {
		t.Errorf("toggle output: %s", out)
	}

	if _, err := runCmd(t, "lead", "task", "add", lead.ID, "Call", "--due", "next week"); err == nil {
		t.Error("expected invalid due date to be rejected")
	}
}

func TestLeadComm(t *testing.T) {
	p := usePipeline(t, nil)
	lead := createTestLead(t, p, "Ada Lovelace", core.StageNewInquiry)

	mustRun(t, "lead", "comm", lead.ID, "Call", "Discussed the STEM program", "--follow-up")
	got, _ := p.Lead(lead.ID)
	if len(got.CommunicationLog) != 1 {
		t.Fatalf("communications = %d, want 1", len(got.CommunicationLog))
	}
	c := got.CommunicationLog[0]
	if c.Type != models.CommCall || !c.FollowUpRequired {
		t.Errorf("communication = %+v", c)
	}

	if _, err := runCmd(t, "lead", "comm", lead.ID, "fax", "hello"); err == nil {
		t.Error("expected unknown communication type to be rejected")
	}
}

func TestLeadSetField(t *testing.T) {
	p := usePipeline(t, nil)
	ctx := context.Background()
	budget, err := p.AddCustomField(ctx, core.StageContacted, models.CustomField{Name: "Budget", Type: models.FieldCurrency})
	if err != nil {
		t.Fatal(err)
	}
	visited, err := p.AddCustomField(ctx, core.StageInterview, models.CustomField{Name: "Visited", Type: models.FieldCheckbox})
	if err != nil {
		t.Fatal(err)
	}
	lead := createTestLead(t, p, "Ada Lovelace", core.StageContacted)

	mustRun(t, "lead", "set-field", lead.ID, budget.ID, "$12,500")
	out := mustRun(t, "lead", "set-field", lead.ID, visited.ID, "yes")
	if !strings.Contains(out, "Visited: Yes") {
		t.Errorf("unexpected output: %s", out)
	}

	got, _ := p.Lead(lead.ID)
	if v := got.CustomFieldValues[budget.ID]; v.Kind != models.KindNumber || v.Number != 12500 {
		t.Errorf("budget value = %+v", v)
	}
	if v := got.CustomFieldValues[visited.ID]; v.Kind != models.KindBool || !v.Bool {
		t.Errorf("visited value = %+v", v)
	}

	if _, err := runCmd(t, "lead", "set-field", lead.ID, "missing-field", "x"); err == nil {
		t.Error("expected unknown field to be rejected")
	}
	if _, err := runCmd(t, "lead", "set-field", lead.ID, budget.ID, "lots"); err == nil {
		t.Error("expected non-numeric currency to be rejected")
	}
}
