package core

import (
	"context"
	"strings"
	"time"

	"github.com/valter-silva-au/leadflow/pkg/models"
)

// CreateLead adds a lead to the pipeline. A missing id is generated, an
// empty status places the lead in the start stage and an empty priority
// defaults to medium. Creation never fires transition triggers.
func (p *Pipeline) CreateLead(ctx context.Context, draft models.Lead) (models.Lead, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lead := draft.Clone()
	lead.Name = strings.TrimSpace(lead.Name)
	if lead.Name == "" {
		return models.Lead{}, invalid("lead name", "must not be empty")
	}
	if lead.ID == "" {
		lead.ID = "lead-" + p.newID()
	} else if p.leadIndexLocked(lead.ID) >= 0 {
		return models.Lead{}, invalid("lead id", "%s already exists", lead.ID)
	}
	if lead.Priority == "" {
		lead.Priority = models.PriorityMedium
	}
	if !lead.Priority.Valid() {
		return models.Lead{}, invalid("priority", "%q must be low, medium or high", lead.Priority)
	}
	if lead.Status == "" {
		lead.Status = p.state.StartStageID
	}
	if stageIndex(p.state.Stages, lead.Status) < 0 {
		return models.Lead{}, notFound("stage", lead.Status)
	}
	for fieldID, v := range lead.CustomFieldValues {
		f, err := p.fieldForLeadLocked(lead.Status, fieldID)
		if err != nil {
			return models.Lead{}, err
		}
		if err := ValidateFieldValue(f, v); err != nil {
			return models.Lead{}, err
		}
		if isEmptyValue(v) {
			delete(lead.CustomFieldValues, fieldID)
		}
	}
	for i := range lead.TaskChecklist {
		if lead.TaskChecklist[i].ID == "" {
			lead.TaskChecklist[i].ID = "task-" + p.newID()
		}
	}
	for i := range lead.CommunicationLog {
		c := &lead.CommunicationLog[i]
		if c.ID == "" {
			c.ID = "comm-" + p.newID()
		}
		if !c.Type.Valid() {
			return models.Lead{}, invalid("communication type", "%q is not supported", c.Type)
		}
	}

	now := p.now()
	lead.Created = now
	lead.Updated = now
	p.state.Leads = append(p.state.Leads, lead)

	return lead.Clone(), p.commitLocked(ctx, Change{
		Type:    ChangeLeadCreated,
		LeadID:  lead.ID,
		StageID: lead.Status,
		Data:    map[string]any{"source": lead.Source, "program": lead.Program},
	})
}

// LeadUpdate is a partial update of a lead's fixed attributes. Nil members
// are left unchanged. Status is changed only through MoveLead.
type LeadUpdate struct {
	Name                   *string
	ParentName             *string
	Grade                  *string
	Program                *string
	Source                 *string
	EnrollmentTerm         *string
	Priority               *models.Priority
	Phone                  *string
	Email                  *string
	PreferredContactMethod *string
	AssignedRecruiter      *string
	Notes                  *string
	StatusNotes            *string
	NextFollowUpDate       *string
	EstimatedTuitionValue  *float64
	ScholarshipRequested   *bool
	ScholarshipNotes       *string
}

// UpdateLead applies a partial update to a lead.
func (p *Pipeline) UpdateLead(ctx context.Context, leadID string, upd LeadUpdate) (models.Lead, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.leadIndexLocked(leadID)
	if idx < 0 {
		return models.Lead{}, notFound("lead", leadID)
	}

	l := p.state.Leads[idx].Clone()
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return models.Lead{}, invalid("lead name", "must not be empty")
		}
		l.Name = name
	}
	if upd.Priority != nil {
		if !upd.Priority.Valid() {
			return models.Lead{}, invalid("priority", "%q must be low, medium or high", *upd.Priority)
		}
		l.Priority = *upd.Priority
	}
	setString(&l.ParentName, upd.ParentName)
	setString(&l.Grade, upd.Grade)
	setString(&l.Program, upd.Program)
	setString(&l.Source, upd.Source)
	setString(&l.EnrollmentTerm, upd.EnrollmentTerm)
	setString(&l.Phone, upd.Phone)
	setString(&l.Email, upd.Email)
	setString(&l.PreferredContactMethod, upd.PreferredContactMethod)
	setString(&l.AssignedRecruiter, upd.AssignedRecruiter)
	setString(&l.Notes, upd.Notes)
	setString(&l.StatusNotes, upd.StatusNotes)
	setString(&l.NextFollowUpDate, upd.NextFollowUpDate)
	setString(&l.ScholarshipNotes, upd.ScholarshipNotes)
	if upd.EstimatedTuitionValue != nil {
		l.EstimatedTuitionValue = *upd.EstimatedTuitionValue
	}
	if upd.ScholarshipRequested != nil {
		l.ScholarshipRequested = *upd.ScholarshipRequested
	}
	l.Updated = p.now()

	p.state.Leads[idx] = l
	return l.Clone(), p.commitLocked(ctx, Change{Type: ChangeLeadUpdated, LeadID: leadID})
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// AddTask appends a checklist task to a lead.
func (p *Pipeline) AddTask(ctx context.Context, leadID, title string, due *time.Time) (models.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.leadIndexLocked(leadID)
	if idx < 0 {
		return models.Task{}, notFound("lead", leadID)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Task{}, invalid("task title", "must not be empty")
	}

	task := models.Task{ID: "task-" + p.newID(), Title: title}
	if due != nil {
		d := *due
		task.DueDate = &d
	}
	l := &p.state.Leads[idx]
	l.TaskChecklist = append(l.TaskChecklist, task)
	l.Updated = p.now()

	return task, p.commitLocked(ctx, Change{
		Type:   ChangeLeadTaskAdded,
		LeadID: leadID,
		Data:   map[string]any{"task_id": task.ID},
	})
}

// ToggleTask flips the completed flag of a checklist task.
func (p *Pipeline) ToggleTask(ctx context.Context, leadID, taskID string) (models.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.leadIndexLocked(leadID)
	if idx < 0 {
		return models.Task{}, notFound("lead", leadID)
	}
	l := &p.state.Leads[idx]
	for i := range l.TaskChecklist {
		if l.TaskChecklist[i].ID != taskID {
			continue
		}
		l.TaskChecklist[i].Completed = !l.TaskChecklist[i].Completed
		l.Updated = p.now()
		task := l.TaskChecklist[i]
		return task, p.commitLocked(ctx, Change{
			Type:   ChangeLeadTaskToggled,
			LeadID: leadID,
			Data:   map[string]any{"task_id": taskID, "completed": task.Completed},
		})
	}
	return models.Task{}, notFound("task", taskID)
}

// LogCommunication appends an entry to a lead's communication log. The
// timestamp is the time of the call; entries are never edited.
func (p *Pipeline) LogCommunication(ctx context.Context, leadID string, kind models.CommunicationType, summary string, followUp bool) (models.Communication, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.leadIndexLocked(leadID)
	if idx < 0 {
		return models.Communication{}, notFound("lead", leadID)
	}
	if !kind.Valid() {
		return models.Communication{}, invalid("communication type", "%q is not supported", kind)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return models.Communication{}, invalid("communication summary", "must not be empty")
	}

	now := p.now()
	c := models.Communication{
		ID:               "comm-" + p.newID(),
		Type:             kind,
		Summary:          summary,
		Timestamp:        now,
		FollowUpRequired: followUp,
	}
	l := &p.state.Leads[idx]
	l.CommunicationLog = append(l.CommunicationLog, c)
	l.Updated = now

	return c, p.commitLocked(ctx, Change{
		Type:   ChangeLeadCommunication,
		LeadID: leadID,
		Data:   map[string]any{"type": string(kind), "follow_up": followUp},
	})
}

// SetCustomFieldValue stores a value for a custom field on a lead after
// checking it against the field's declared type. An empty value clears it.
func (p *Pipeline) SetCustomFieldValue(ctx context.Context, leadID, fieldID string, v models.FieldValue) (models.Lead, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.leadIndexLocked(leadID)
	if idx < 0 {
		return models.Lead{}, notFound("lead", leadID)
	}
	l := &p.state.Leads[idx]
	f, err := p.fieldForLeadLocked(l.Status, fieldID)
	if err != nil {
		return models.Lead{}, err
	}
	if err := ValidateFieldValue(f, v); err != nil {
		return models.Lead{}, err
	}

	if isEmptyValue(v) {
		delete(l.CustomFieldValues, fieldID)
	} else {
		l.CustomFieldValues[fieldID] = v.Clone()
	}
	l.Updated = p.now()

	return l.Clone(), p.commitLocked(ctx, Change{
		Type:   ChangeLeadFieldValue,
		LeadID: leadID,
		Data:   map[string]any{"field_id": fieldID},
	})
}

// fieldForLeadLocked resolves a field id, preferring the lead's current
// stage and then the stages in pipeline order.
func (p *Pipeline) fieldForLeadLocked(stageID, fieldID string) (models.CustomField, error) {
	if idx := stageIndex(p.state.Stages, stageID); idx >= 0 {
		if f := p.state.Stages[idx].Field(fieldID); f != nil {
			return *f, nil
		}
	}
	for i := range p.state.Stages {
		if f := p.state.Stages[i].Field(fieldID); f != nil {
			return *f, nil
		}
	}
	return models.CustomField{}, notFound("field", fieldID)
}
