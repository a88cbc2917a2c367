package core

import (
	"context"
	"strings"

	"github.com/valter-silva-au/leadflow/pkg/models"
)

// FieldUpdate is a partial update of a custom field definition. Nil members
// are left unchanged.
type FieldUpdate struct {
	Name         *string
	Type         *models.FieldType
	Required     *bool
	Options      *[]string
	Placeholder  *string
	DefaultValue **models.FieldValue
}

// AddCustomField appends a field to a stage's schema. The field gets a fresh
// id when none is given and is placed after the existing fields.
func (p *Pipeline) AddCustomField(ctx context.Context, stageID string, field models.CustomField) (models.CustomField, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := stageIndex(p.state.Stages, stageID)
	if idx < 0 {
		return models.CustomField{}, notFound("stage", stageID)
	}
	stage := &p.state.Stages[idx]

	field = field.Clone()
	field.Name = strings.TrimSpace(field.Name)
	if field.ID == "" {
		field.ID = "field-" + p.newID()
	} else if stage.Field(field.ID) != nil {
		return models.CustomField{}, invalid("field id", "%s already exists on stage %s", field.ID, stageID)
	}
	if err := ValidateFieldDefinition(field); err != nil {
		return models.CustomField{}, err
	}

	field.Order = len(stage.CustomFields)
	stage.CustomFields = append(stage.CustomFields, field)

	return field.Clone(), p.commitLocked(ctx, Change{
		Type:    ChangeFieldAdded,
		StageID: stageID,
		Data:    map[string]any{"field_id": field.ID, "type": string(field.Type)},
	})
}

// UpdateCustomField applies a partial update to a field definition. Changing
// to a type without options drops the old options unless new ones are given.
func (p *Pipeline) UpdateCustomField(ctx context.Context, stageID, fieldID string, upd FieldUpdate) (models.CustomField, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := stageIndex(p.state.Stages, stageID)
	if idx < 0 {
		return models.CustomField{}, notFound("stage", stageID)
	}
	stage := &p.state.Stages[idx]
	fi := fieldIndex(stage.CustomFields, fieldID)
	if fi < 0 {
		return models.CustomField{}, notFound("field", fieldID)
	}

	f := stage.CustomFields[fi].Clone()
	if upd.Name != nil {
		f.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Type != nil {
		f.Type = *upd.Type
		if !f.Type.HasOptions() && upd.Options == nil {
			f.Options = nil
		}
	}
	if upd.Required != nil {
		f.Required = *upd.Required
	}
	if upd.Options != nil {
		f.Options = append([]string(nil), (*upd.Options)...)
	}
	if upd.Placeholder != nil {
		f.Placeholder = *upd.Placeholder
	}
	if upd.DefaultValue != nil {
		f.DefaultValue = nil
		if *upd.DefaultValue != nil {
			v := (*upd.DefaultValue).Clone()
			f.DefaultValue = &v
		}
	}
	if err := ValidateFieldDefinition(f); err != nil {
		return models.CustomField{}, err
	}

	stage.CustomFields[fi] = f
	return f.Clone(), p.commitLocked(ctx, Change{
		Type:    ChangeFieldUpdated,
		StageID: stageID,
		Data:    map[string]any{"field_id": fieldID},
	})
}

// DeleteCustomField removes a field definition and renumbers the rest.
// Values already stored on leads under this field id are kept.
func (p *Pipeline) DeleteCustomField(ctx context.Context, stageID, fieldID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := stageIndex(p.state.Stages, stageID)
	if idx < 0 {
		return notFound("stage", stageID)
	}
	stage := &p.state.Stages[idx]
	fi := fieldIndex(stage.CustomFields, fieldID)
	if fi < 0 {
		return notFound("field", fieldID)
	}

	fields := make([]models.CustomField, 0, len(stage.CustomFields)-1)
	fields = append(fields, stage.CustomFields[:fi]...)
	fields = append(fields, stage.CustomFields[fi+1:]...)
	renumberFields(fields)
	stage.CustomFields = fields

	return p.commitLocked(ctx, Change{
		Type:    ChangeFieldDeleted,
		StageID: stageID,
		Data:    map[string]any{"field_id": fieldID},
	})
}

// MoveCustomField moves a field one position up or down within its stage.
// Moving past either end is a no-op.
func (p *Pipeline) MoveCustomField(ctx context.Context, stageID, fieldID string, dir Direction) ([]models.CustomField, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := stageIndex(p.state.Stages, stageID)
	if idx < 0 {
		return nil, notFound("stage", stageID)
	}
	fields, moved, err := StepField(p.state.Stages[idx].CustomFields, fieldID, dir)
	if err != nil {
		return nil, err
	}
	if !moved {
		return fields, nil
	}
	return p.replaceFieldsLocked(ctx, idx, fieldID, fields)
}

// RepositionCustomField moves a field to an arbitrary index within its stage.
func (p *Pipeline) RepositionCustomField(ctx context.Context, stageID, fieldID string, index int) ([]models.CustomField, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := stageIndex(p.state.Stages, stageID)
	if idx < 0 {
		return nil, notFound("stage", stageID)
	}
	before := fieldIndex(p.state.Stages[idx].CustomFields, fieldID)
	fields, err := RepositionField(p.state.Stages[idx].CustomFields, fieldID, index)
	if err != nil {
		return nil, err
	}
	if before == index {
		return fields, nil
	}
	return p.replaceFieldsLocked(ctx, idx, fieldID, fields)
}

func (p *Pipeline) replaceFieldsLocked(ctx context.Context, stageIdx int, fieldID string, fields []models.CustomField) ([]models.CustomField, error) {
	stage := &p.state.Stages[stageIdx]
	stage.CustomFields = fields

	out := make([]models.CustomField, len(fields))
	for i, f := range fields {
		out[i] = f.Clone()
	}
	return out, p.commitLocked(ctx, Change{
		Type:    ChangeFieldMoved,
		StageID: stage.ID,
		Data:    map[string]any{"field_id": fieldID, "order": fieldIndex(fields, fieldID)},
	})
}
