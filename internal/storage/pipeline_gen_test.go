package storage

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/leadflow/pkg/models"
	"pgregory.net/rapid"
)

func genAlphaString(t *rapid.T, label string, minLen, maxLen int) string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	n := rapid.IntRange(minLen, maxLen).Draw(t, label+"Len")
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rapid.IntRange(0, len(letters)-1).Draw(t, label+"Char")]
	}
	return string(b)
}

func genTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(1_600_000_000, 1_900_000_000).Draw(t, label)
	return time.Unix(sec, 0).UTC()
}

func genFieldValue(t *rapid.T, label string) models.FieldValue {
	switch rapid.IntRange(0, 3).Draw(t, label+"Kind") {
	case 0:
		return models.TextValue(genAlphaString(t, label+"Text", 1, 12))
	case 1:
		return models.NumberValue(float64(rapid.IntRange(-1000, 100000).Draw(t, label+"Num")) / 4)
	case 2:
		return models.BoolValue(rapid.Bool().Draw(t, label+"Bool"))
	default:
		n := rapid.IntRange(1, 3).Draw(t, label+"ListLen")
		items := make([]string, n)
		for i := range items {
			items[i] = genAlphaString(t, fmt.Sprintf("%sItem%d", label, i), 1, 6)
		}
		return models.ListValue(items...)
	}
}

func genStage(t *rapid.T, i int) models.Stage {
	st := models.Stage{
		ID:         fmt.Sprintf("stage-%d", i),
		Title:      genAlphaString(t, "title", 1, 20),
		Order:      i,
		ColorTag:   rapid.SampledFrom([]string{"", "bg-blue-500", "bg-green-500"}).Draw(t, "color"),
		IsRequired: rapid.Bool().Draw(t, "required"),
	}
	nFields := rapid.IntRange(0, 3).Draw(t, "nFields")
	for j := 0; j < nFields; j++ {
		f := models.CustomField{
			ID:          fmt.Sprintf("field-%d-%d", i, j),
			Name:        genAlphaString(t, "fieldName", 1, 12),
			Type:        rapid.SampledFrom(models.FieldTypes).Draw(t, "fieldType"),
			Required:    rapid.Bool().Draw(t, "fieldRequired"),
			Order:       j,
			Placeholder: genAlphaString(t, "placeholder", 0, 8),
		}
		if f.Type.HasOptions() {
			f.Options = []string{"a", "b", "c"}
		}
		if rapid.Bool().Draw(t, "hasDefault") {
			v := genFieldValue(t, "default")
			f.DefaultValue = &v
		}
		st.CustomFields = append(st.CustomFields, f)
	}
	return st
}

func genLead(t *rapid.T, i int, stages []models.Stage) models.Lead {
	created := genTime(t, "created")
	l := models.Lead{
		ID:                    fmt.Sprintf("lead-%d", i),
		Name:                  genAlphaString(t, "name", 1, 20),
		ParentName:            genAlphaString(t, "parent", 0, 20),
		Program:               genAlphaString(t, "program", 0, 10),
		Priority:              rapid.SampledFrom([]models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}).Draw(t, "priority"),
		Email:                 genAlphaString(t, "email", 0, 10),
		EstimatedTuitionValue: float64(rapid.IntRange(0, 50000).Draw(t, "tuition")),
		ScholarshipRequested:  rapid.Bool().Draw(t, "scholarship"),
		Status:                stages[rapid.IntRange(0, len(stages)-1).Draw(t, "stageIdx")].ID,
		StudentID:             rapid.SampledFrom([]string{"", "STU001", "STU042"}).Draw(t, "studentID"),
		CustomFieldValues:     map[string]models.FieldValue{},
		Created:               created,
		Updated:               created.Add(time.Hour),
	}
	nValues := rapid.IntRange(0, 3).Draw(t, "nValues")
	for j := 0; j < nValues; j++ {
		l.CustomFieldValues[fmt.Sprintf("field-x-%d", j)] = genFieldValue(t, "value")
	}
	nTasks := rapid.IntRange(0, 2).Draw(t, "nTasks")
	for j := 0; j < nTasks; j++ {
		task := models.Task{
			ID:        fmt.Sprintf("task-%d-%d", i, j),
			Title:     genAlphaString(t, "taskTitle", 1, 12),
			Completed: rapid.Bool().Draw(t, "completed"),
		}
		if rapid.Bool().Draw(t, "hasDue") {
			due := genTime(t, "due")
			task.DueDate = &due
		}
		l.TaskChecklist = append(l.TaskChecklist, task)
	}
	nComms := rapid.IntRange(0, 2).Draw(t, "nComms")
	for j := 0; j < nComms; j++ {
		l.CommunicationLog = append(l.CommunicationLog, models.Communication{
			ID:               fmt.Sprintf("comm-%d-%d", i, j),
			Type:             rapid.SampledFrom([]models.CommunicationType{models.CommCall, models.CommEmail, models.CommMeeting}).Draw(t, "commType"),
			Summary:          genAlphaString(t, "summary", 1, 20),
			Timestamp:        genTime(t, "commAt"),
			FollowUpRequired: rapid.Bool().Draw(t, "followUp"),
		})
	}
	return l
}

func genPipelineState(t *rapid.T) models.PipelineState {
	nStages := rapid.IntRange(1, 6).Draw(t, "nStages")
	stages := make([]models.Stage, nStages)
	for i := range stages {
		stages[i] = genStage(t, i)
	}
	nLeads := rapid.IntRange(0, 8).Draw(t, "nLeads")
	leads := make([]models.Lead, nLeads)
	for i := range leads {
		leads[i] = genLead(t, i, stages)
	}
	return models.PipelineState{
		Version:         "1.0",
		StartStageID:    stages[0].ID,
		TerminalStageID: stages[nStages-1].ID,
		Stages:          stages,
		Leads:           leads,
	}
}

// sampleState is a small fixed pipeline used by example-based tests.
func sampleState() models.PipelineState {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	due := at.Add(48 * time.Hour)
	def := models.NumberValue(3)
	return models.PipelineState{
		Version:         "1.0",
		StartStageID:    "new-inquiry",
		TerminalStageID: "enrolled",
		Stages: []models.Stage{
			{ID: "new-inquiry", Title: "New Inquiry", Order: 0, ColorTag: "bg-blue-500", IsRequired: true},
			{ID: "interview", Title: "Interview Scheduled", Order: 1, CustomFields: []models.CustomField{
				{ID: "f-score", Name: "Score", Type: models.FieldRating, Order: 0, DefaultValue: &def},
				{ID: "f-days", Name: "Days", Type: models.FieldMultiSelect, Options: []string{"Mon", "Tue"}, Order: 1},
			}},
			{ID: "enrolled", Title: "Enrolled", Order: 2, IsRequired: true},
		},
		Leads: []models.Lead{
			{
				ID: "lead-1", Name: "Ada Lovelace", Priority: models.PriorityHigh, Status: "interview",
				EstimatedTuitionValue: 18250.5,
				CustomFieldValues: map[string]models.FieldValue{
					"f-score": models.NumberValue(4),
					"f-days":  models.ListValue("Mon"),
				},
				TaskChecklist:    []models.Task{{ID: "t1", Title: "Send brochure", DueDate: &due}},
				CommunicationLog: []models.Communication{{ID: "c1", Type: models.CommCall, Summary: "Intro call", Timestamp: at}},
				Created:          at,
				Updated:          at,
			},
			{ID: "lead-2", Name: "Grace Hopper", Priority: models.PriorityMedium, Status: "enrolled", StudentID: "STU001",
				CustomFieldValues: map[string]models.FieldValue{}, Created: at, Updated: at},
		},
	}
}
