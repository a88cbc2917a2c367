package core

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/leadflow/pkg/models"
)

// Transition describes a lead's status change as seen by triggers.
type Transition struct {
	From            string
	To              string
	StartStageID    string
	TerminalStageID string
}

// Retry reports whether the transition is a re-run of triggers for a lead
// that is already in its stage.
func (t Transition) Retry() bool { return t.From == t.To }

// Trigger is a side effect attached to lead transitions. Fire may modify the
// lead it is given; the change is committed together with the move. A Fire
// error is reported as a warning and never undoes the move.
type Trigger interface {
	Name() string
	Applies(tr Transition, lead models.Lead) bool
	Fire(ctx context.Context, tr Transition, lead *models.Lead) error
}

// MoveResult reports the outcome of MoveLead.
type MoveResult struct {
	Lead     models.Lead
	From     string
	Changed  bool
	Warnings []*SideEffectFailure
}

// MoveLead sets a lead's status to targetStageID and runs the triggers that
// apply to the transition. Moving a lead to the stage it is already in does
// nothing and fires no trigger.
//
// The new status is saved before any trigger runs. If that save fails the
// move is undone and no side effect happens. A failure saving the student
// id written back by a trigger is returned alongside the result.
func (p *Pipeline) MoveLead(ctx context.Context, leadID, targetStageID string) (MoveResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.leadIndexLocked(leadID)
	if idx < 0 {
		return MoveResult{}, notFound("lead", leadID)
	}
	if stageIndex(p.state.Stages, targetStageID) < 0 {
		return MoveResult{}, notFound("stage", targetStageID)
	}

	lead := &p.state.Leads[idx]
	from := lead.Status
	if from == targetStageID {
		return MoveResult{Lead: lead.Clone(), From: from}, nil
	}

	before := lead.Clone()
	lead.Status = targetStageID
	lead.Updated = p.now()
	if err := p.persistLocked(ctx, ChangeLeadMoved); err != nil {
		p.state.Leads[idx] = before
		return MoveResult{}, fmt.Errorf("lead %s stays in %s: %w", leadID, from, err)
	}

	tr := p.transitionLocked(from, targetStageID)
	fired, warnings := p.fireTriggersLocked(ctx, tr, lead)

	p.logger.Info("lead moved", "lead_id", leadID, "from", from, "to", targetStageID, "warnings", len(warnings))

	var saveErr error
	if lead.StudentID != before.StudentID {
		saveErr = p.persistLocked(ctx, ChangeLeadMoved)
	}
	p.publishLocked(Change{
		Type:     ChangeLeadMoved,
		LeadID:   leadID,
		StageID:  targetStageID,
		Data:     map[string]any{"from": from, "to": targetStageID},
		Fired:    fired,
		Warnings: warnings,
	})

	return MoveResult{
		Lead:     lead.Clone(),
		From:     from,
		Changed:  true,
		Warnings: warnings,
	}, saveErr
}

// RetryTriggers re-runs the triggers that apply to a lead's current stage
// without moving it. Idempotent triggers make this safe to repeat.
func (p *Pipeline) RetryTriggers(ctx context.Context, leadID string) (MoveResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.leadIndexLocked(leadID)
	if idx < 0 {
		return MoveResult{}, notFound("lead", leadID)
	}
	lead := &p.state.Leads[idx]
	before := lead.Clone()

	tr := p.transitionLocked(lead.Status, lead.Status)
	fired, warnings := p.fireTriggersLocked(ctx, tr, lead)

	result := MoveResult{Lead: lead.Clone(), From: lead.Status, Warnings: warnings}
	if len(fired) == 0 && len(warnings) == 0 {
		return result, nil
	}
	if lead.StudentID != before.StudentID {
		lead.Updated = p.now()
		result.Lead = lead.Clone()
	}
	return result, p.commitLocked(ctx, Change{
		Type:     ChangeLeadTriggersRetried,
		LeadID:   leadID,
		StageID:  lead.Status,
		Fired:    fired,
		Warnings: warnings,
	})
}

func (p *Pipeline) transitionLocked(from, to string) Transition {
	return Transition{
		From:            from,
		To:              to,
		StartStageID:    p.state.StartStageID,
		TerminalStageID: p.state.TerminalStageID,
	}
}

// fireTriggersLocked runs applicable triggers in registration order. Each
// trigger sees the lead as left by the previous one.
func (p *Pipeline) fireTriggersLocked(ctx context.Context, tr Transition, lead *models.Lead) (fired []FiredTrigger, warnings []*SideEffectFailure) {
	for _, t := range p.triggers {
		if !t.Applies(tr, *lead) {
			continue
		}
		if err := t.Fire(ctx, tr, lead); err != nil {
			p.logger.Warn("trigger failed", "trigger", t.Name(), "lead_id", lead.ID, "error", err)
			warnings = append(warnings, &SideEffectFailure{Trigger: t.Name(), LeadID: lead.ID, Err: err})
			continue
		}
		fired = append(fired, FiredTrigger{Trigger: t.Name(), LeadID: lead.ID, StudentID: lead.StudentID})
	}
	return fired, warnings
}

// FiredTrigger records a trigger that completed successfully.
type FiredTrigger struct {
	Trigger   string
	LeadID    string
	StudentID string
}
