package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/valter-silva-au/leadflow/internal/core"
	"github.com/valter-silva-au/leadflow/internal/integration"
	"github.com/valter-silva-au/leadflow/pkg/models"
)

type unavailableDirectory struct{}

func (unavailableDirectory) CreateStudent(context.Context, models.Student) (string, error) {
	return "", errors.New("student service unavailable")
}

func (unavailableDirectory) ListStudentIDs(context.Context) ([]string, error) { return nil, nil }

// usePipeline installs a fresh default pipeline for the duration of the test.
func usePipeline(t *testing.T, dir core.StudentDirectory) *core.Pipeline {
	t.Helper()
	if dir == nil {
		dir = integration.NewMemoryStudentDirectory()
	}
	p, err := core.NewPipeline(*core.DefaultState(), core.WithTriggers(core.NewEnrollmentTrigger(dir)))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	orig := Pipeline
	Pipeline = p
	t.Cleanup(func() { Pipeline = orig })
	return p
}

// runCmd executes the command tree with args and returns its output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("leadflow %s: %v\noutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

func createTestLead(t *testing.T, p *core.Pipeline, name, stageID string) models.Lead {
	t.Helper()
	l, err := p.CreateLead(context.Background(), models.Lead{Name: name, Status: stageID, Program: "STEM", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	return l
}

func TestCommands_RequirePipeline(t *testing.T) {
	orig := Pipeline
	Pipeline = nil
	defer func() { Pipeline = orig }()

	for _, args := range [][]string{
		{"board"},
		{"stage", "list"},
		{"lead", "list"},
		{"lead", "create", "Ada"},
		{"enroll", "retry", "lead-1"},
		{"mcp", "serve"},
	} {
		_, err := runCmd(t, args...)
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Errorf("leadflow %v: expected not initialized error, got %v", args, err)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	defer SetVersionInfo("dev", "none", "unknown")

	out := mustRun(t, "version")
	for _, want := range []string{"leadflow 1.2.3", "abc123", "2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}

func TestBoardCmd(t *testing.T) {
	p := usePipeline(t, nil)
	createTestLead(t, p, "Ada Lovelace", core.StageContacted)

	out := mustRun(t, "board")
	for _, want := range []string{"New Inquiry (0)", "Contacted (1)", "Ada Lovelace", "no leads"} {
		if !strings.Contains(out, want) {
			t.Errorf("board output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Count"}, [][]string{{"a", "1"}, {"b"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "ID") || !strings.Contains(out, "Count") {
		t.Errorf("table missing headers:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("table with no columns should render empty")
	}
}
