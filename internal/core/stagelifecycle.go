package core

import (
	"context"
	"slices"
	"strings"

	"github.com/valter-silva-au/leadflow/pkg/models"
)

// Default stage ids of the seeded admissions pipeline.
const (
	StageNewInquiry  = "new-inquiry"
	StageContacted   = "contacted"
	StageApplication = "application-submitted"
	StageInterview   = "interview-scheduled"
	StageOfferSent   = "offer-sent"
	StageEnrolled    = "enrolled"
)

// DefaultState returns the admissions pipeline used when no state has been
// saved. New Inquiry and Enrolled are required; Enrolled is terminal.
func DefaultState() *models.PipelineState {
	stages := []models.Stage{
		{ID: StageNewInquiry, Title: "New Inquiry", ColorTag: "bg-blue-500", IsRequired: true},
		{ID: StageContacted, Title: "Contacted", ColorTag: "bg-yellow-500"},
		{ID: StageApplication, Title: "Application Submitted", ColorTag: "bg-purple-500"},
		{ID: StageInterview, Title: "Interview Scheduled", ColorTag: "bg-orange-500"},
		{ID: StageOfferSent, Title: "Offer Sent", ColorTag: "bg-indigo-500"},
		{ID: StageEnrolled, Title: "Enrolled", ColorTag: "bg-green-500", IsRequired: true},
	}
	for i := range stages {
		stages[i].Order = i
		stages[i].CustomFields = []models.CustomField{}
	}
	return &models.PipelineState{
		Version:         stateVersion,
		StartStageID:    StageNewInquiry,
		TerminalStageID: StageEnrolled,
		Stages:          stages,
		Leads:           []models.Lead{},
	}
}

// validateTitleLocked trims title and rejects empty or duplicate titles.
// skipID is the stage being renamed, if any.
func (p *Pipeline) validateTitleLocked(title, skipID string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("stage title", "must not be empty")
	}
	for _, s := range p.state.Stages {
		if s.ID != skipID && strings.EqualFold(strings.TrimSpace(s.Title), title) {
			return "", invalid("stage title", "%q is already used by stage %s", title, s.ID)
		}
	}
	return title, nil
}

// AddStage appends a new, optional stage with no fields at the end of the
// pipeline.
func (p *Pipeline) AddStage(ctx context.Context, title, colorTag string) (models.Stage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	title, err := p.validateTitleLocked(title, "")
	if err != nil {
		return models.Stage{}, err
	}
	if colorTag == "" {
		colorTag = "bg-gray-500"
	}

	stage := models.Stage{
		ID:           "stage-" + p.newID(),
		Title:        title,
		Order:        len(p.state.Stages),
		ColorTag:     colorTag,
		CustomFields: []models.CustomField{},
	}
	p.state.Stages = append(p.state.Stages, stage)
	p.logger.Info("stage added", "stage_id", stage.ID, "title", title)

	return stage.Clone(), p.commitLocked(ctx, Change{
		Type:    ChangeStageAdded,
		StageID: stage.ID,
		Data:    map[string]any{"title": title},
	})
}

// RenameStage changes a stage's display title. The id is unchanged.
func (p *Pipeline) RenameStage(ctx context.Context, stageID, newTitle string) (models.Stage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := stageIndex(p.state.Stages, stageID)
	if idx < 0 {
		return models.Stage{}, notFound("stage", stageID)
	}
	title, err := p.validateTitleLocked(newTitle, stageID)
	if err != nil {
		return models.Stage{}, err
	}

	old := p.state.Stages[idx].Title
	p.state.Stages[idx].Title = title

	return p.state.Stages[idx].Clone(), p.commitLocked(ctx, Change{
		Type:    ChangeStageRenamed,
		StageID: stageID,
		Data:    map[string]any{"old_title": old, "title": title},
	})
}

// SetStageRequired flags or unflags a stage as required. At least one stage
// must stay required, and the start and terminal stages cannot be unflagged.
func (p *Pipeline) SetStageRequired(ctx context.Context, stageID string, required bool) (models.Stage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := stageIndex(p.state.Stages, stageID)
	if idx < 0 {
		return models.Stage{}, notFound("stage", stageID)
	}
	st := &p.state.Stages[idx]
	if st.IsRequired == required {
		return st.Clone(), nil
	}
	if !required {
		if stageID == p.state.StartStageID || stageID == p.state.TerminalStageID {
			return models.Stage{}, &InvariantViolation{
				Rule:   RuleRequiredStage,
				Detail: "start and terminal stages are always required",
			}
		}
		count := 0
		for _, s := range p.state.Stages {
			if s.IsRequired {
				count++
			}
		}
		if count <= 1 {
			return models.Stage{}, &InvariantViolation{
				Rule:   RuleLastRequiredStage,
				Detail: "stage " + stageID + " is the only required stage",
			}
		}
	}

	st.IsRequired = required
	return st.Clone(), p.commitLocked(ctx, Change{
		Type:    ChangeStageRequired,
		StageID: stageID,
		Data:    map[string]any{"required": required},
	})
}

// MoveStage moves dragged into the position currently held by target and
// renumbers every stage. Dropping a stage onto itself is a no-op.
func (p *Pipeline) MoveStage(ctx context.Context, draggedID, targetID string) ([]models.Stage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reordered, err := ReorderStages(p.state.Stages, draggedID, targetID)
	if err != nil {
		return nil, err
	}
	if draggedID == targetID {
		return reordered, nil
	}

	p.state.Stages = reordered
	out := make([]models.Stage, len(reordered))
	for i, s := range reordered {
		out[i] = s.Clone()
	}
	return out, p.commitLocked(ctx, Change{
		Type:    ChangeStageMoved,
		StageID: draggedID,
		Data:    map[string]any{"target_stage_id": targetID, "order": stageIndex(reordered, draggedID)},
	})
}

// DeleteResult reports what a stage deletion did.
type DeleteResult struct {
	Stage           models.Stage
	MigrationTarget string
	MigratedLeadIDs []string
}

// DeleteStage removes a stage. Leads in the stage are moved to
// migrationTargetID, or to the first remaining stage when it is empty.
// Required stages and the last stage are never deleted. Migration, removal
// and renumbering are committed together or not at all.
func (p *Pipeline) DeleteStage(ctx context.Context, stageID, migrationTargetID string) (DeleteResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := stageIndex(p.state.Stages, stageID)
	if idx < 0 {
		return DeleteResult{}, notFound("stage", stageID)
	}
	stage := p.state.Stages[idx]
	if len(p.state.Stages) == 1 {
		return DeleteResult{}, &InvariantViolation{
			Rule:   RuleLastStage,
			Detail: "cannot delete the only stage in the pipeline",
		}
	}
	if stage.IsRequired || stageID == p.state.StartStageID || stageID == p.state.TerminalStageID {
		return DeleteResult{}, &InvariantViolation{
			Rule:   RuleRequiredStage,
			Detail: "stage " + stageID + " is required and cannot be deleted",
		}
	}

	remaining := slices.Delete(slices.Clone(p.state.Stages), idx, idx+1)
	renumberStages(remaining)

	var dependents []int
	for i, l := range p.state.Leads {
		if l.Status == stageID {
			dependents = append(dependents, i)
		}
	}

	result := DeleteResult{Stage: stage.Clone()}
	if len(dependents) > 0 {
		target := migrationTargetID
		if target == "" {
			target = remaining[0].ID
		}
		if target == stageID {
			return DeleteResult{}, invalid("migration target", "cannot migrate leads into the stage being deleted")
		}
		if stageIndex(remaining, target) < 0 {
			return DeleteResult{}, notFound("stage", target)
		}
		result.MigrationTarget = target
	}

	// Nothing below can fail; apply everything in one step.
	now := p.now()
	for _, i := range dependents {
		p.state.Leads[i].Status = result.MigrationTarget
		p.state.Leads[i].Updated = now
		result.MigratedLeadIDs = append(result.MigratedLeadIDs, p.state.Leads[i].ID)
	}
	p.state.Stages = remaining

	p.logger.Info("stage deleted",
		"stage_id", stageID,
		"migrated", len(result.MigratedLeadIDs),
		"migration_target", result.MigrationTarget,
	)

	return result, p.commitLocked(ctx, Change{
		Type:    ChangeStageDeleted,
		StageID: stageID,
		Data: map[string]any{
			"title":            stage.Title,
			"migration_target": result.MigrationTarget,
			"migrated_leads":   len(result.MigratedLeadIDs),
		},
	})
}
