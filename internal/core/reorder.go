package core

import (
	"slices"

	"github.com/valter-silva-au/leadflow/pkg/models"
)

// Direction is a one-step move of a custom field within its stage.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// spliceMove removes the element at from and inserts it at index to of the
// shortened slice. Every element between the two positions shifts by one.
func spliceMove[T any](items []T, from, to int) []T {
	out := make([]T, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)
	return slices.Insert(out, to, items[from])
}

func renumberStages(stages []models.Stage) {
	for i := range stages {
		stages[i].Order = i
	}
}

func renumberFields(fields []models.CustomField) {
	for i := range fields {
		fields[i].Order = i
	}
}

func stageIndex(stages []models.Stage, id string) int {
	return slices.IndexFunc(stages, func(s models.Stage) bool { return s.ID == id })
}

func fieldIndex(fields []models.CustomField, id string) int {
	return slices.IndexFunc(fields, func(f models.CustomField) bool { return f.ID == id })
}

// ReorderStages returns a copy of stages with dragged moved into the
// position currently held by target and orders renumbered 0..N-1.
// Dropping a stage onto itself returns the stages unchanged.
func ReorderStages(stages []models.Stage, draggedID, targetID string) ([]models.Stage, error) {
	from := stageIndex(stages, draggedID)
	if from < 0 {
		return nil, notFound("stage", draggedID)
	}
	to := stageIndex(stages, targetID)
	if to < 0 {
		return nil, notFound("stage", targetID)
	}

	out := make([]models.Stage, len(stages))
	for i, s := range stages {
		out[i] = s.Clone()
	}
	if from != to {
		out = spliceMove(out, from, to)
	}
	renumberStages(out)
	return out, nil
}

// RepositionField returns a copy of fields with fieldID moved to index and
// orders renumbered. The index must lie within the list.
func RepositionField(fields []models.CustomField, fieldID string, index int) ([]models.CustomField, error) {
	from := fieldIndex(fields, fieldID)
	if from < 0 {
		return nil, notFound("field", fieldID)
	}
	if index < 0 || index >= len(fields) {
		return nil, invalid("field position", "%d outside 0..%d", index, len(fields)-1)
	}

	out := make([]models.CustomField, len(fields))
	for i, f := range fields {
		out[i] = f.Clone()
	}
	if from != index {
		out = spliceMove(out, from, index)
	}
	renumberFields(out)
	return out, nil
}

// StepField moves fieldID one position up or down. Moving the first field up
// or the last field down leaves the list as it is and reports moved=false.
func StepField(fields []models.CustomField, fieldID string, dir Direction) (out []models.CustomField, moved bool, err error) {
	from := fieldIndex(fields, fieldID)
	if from < 0 {
		return nil, false, notFound("field", fieldID)
	}

	var to int
	switch dir {
	case DirectionUp:
		to = from - 1
	case DirectionDown:
		to = from + 1
	default:
		return nil, false, invalid("direction", "%q must be up or down", dir)
	}
	if to < 0 || to >= len(fields) {
		out, err = RepositionField(fields, fieldID, from)
		return out, false, err
	}
	out, err = RepositionField(fields, fieldID, to)
	return out, err == nil, err
}
