package cli

import (
	"strings"
	"testing"

	"github.com/valter-silva-au/leadflow/internal/core"
	"github.com/valter-silva-au/leadflow/pkg/models"
)

func TestFieldLifecycle(t *testing.T) {
	p := usePipeline(t, nil)

	mustRun(t, "field", "add", core.StageContacted, "Budget", "--type", "currency", "--required")
	mustRun(t, "field", "add", core.StageContacted, "Campus", "--type", "dropdown", "--option", "North", "--option", "South")

	st, err := p.Stage(core.StageContacted)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.CustomFields) != 2 {
		t.Fatalf("field count = %d, want 2", len(st.CustomFields))
	}
	budget, campus := st.CustomFields[0], st.CustomFields[1]
	if budget.Type != models.FieldCurrency || !budget.Required {
		t.Errorf("budget field = %+v", budget)
	}
	if len(campus.Options) != 2 {
		t.Errorf("campus options = %v", campus.Options)
	}

	out := mustRun(t, "field", "list", core.StageContacted)
	if !strings.Contains(out, "Budget") || !strings.Contains(out, "North, South") {
		t.Errorf("field list output:\n%s", out)
	}

	out = mustRun(t, "field", "move", core.StageContacted, campus.ID, "up")
	if !strings.Contains(out, "Field order: Campus, Budget") {
		t.Errorf("unexpected order after move up: %s", out)
	}
	out = mustRun(t, "field", "move", core.StageContacted, campus.ID, "1")
	if !strings.Contains(out, "Field order: Budget, Campus") {
		t.Errorf("unexpected order after reposition: %s", out)
	}

	mustRun(t, "field", "update", core.StageContacted, budget.ID, "--name", "Tuition Budget")
	mustRun(t, "field", "delete", core.StageContacted, campus.ID)

	st, _ = p.Stage(core.StageContacted)
	if len(st.CustomFields) != 1 || st.CustomFields[0].Name != "Tuition Budget" {
		t.Errorf("fields after update/delete = %+v", st.CustomFields)
	}
	if !st.CustomFields[0].Required {
		t.Error("update without --required should keep the field required")
	}
}

func TestFieldAdd_DropdownWithoutOptions(t *testing.T) {
	usePipeline(t, nil)

	if _, err := runCmd(t, "field", "add", core.StageContacted, "Campus", "--type", "dropdown"); err == nil {
		t.Fatal("expected dropdown without options to be rejected")
	}
}

func TestFieldMove_InvalidPosition(t *testing.T) {
	p := usePipeline(t, nil)
	mustRun(t, "field", "add", core.StageContacted, "Budget")
	st, _ := p.Stage(core.StageContacted)

	_, err := runCmd(t, "field", "move", core.StageContacted, st.CustomFields[0].ID, "sideways")
	if err == nil || !strings.Contains(err.Error(), "invalid position") {
		t.Errorf("expected invalid position error, got %v", err)
	}
}
