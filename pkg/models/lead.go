package models

import "time"

// Priority represents the urgency of a lead.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// CommunicationType categorises an entry in a lead's communication log.
type CommunicationType string

const (
	CommCall    CommunicationType = "call"
	CommEmail   CommunicationType = "email"
	CommMeeting CommunicationType = "meeting"
	CommText    CommunicationType = "text"
	CommOther   CommunicationType = "other"
)

// Valid reports whether c is one of the known communication types.
func (c CommunicationType) Valid() bool {
	switch c {
	case CommCall, CommEmail, CommMeeting, CommText, CommOther:
		return true
	}
	return false
}

// Task is a checklist entry on a lead. Tasks are only appended or toggled.
type Task struct {
	ID        string     `yaml:"id" json:"id"`
	Title     string     `yaml:"title" json:"title"`
	Completed bool       `yaml:"completed" json:"completed"`
	DueDate   *time.Time `yaml:"due_date,omitempty" json:"due_date,omitempty"`
}

// Communication is an immutable entry in a lead's communication log.
type Communication struct {
	ID               string            `yaml:"id" json:"id"`
	Type             CommunicationType `yaml:"type" json:"type"`
	Summary          string            `yaml:"summary" json:"summary"`
	Timestamp        time.Time         `yaml:"timestamp" json:"timestamp"`
	FollowUpRequired bool              `yaml:"follow_up_required,omitempty" json:"follow_up_required,omitempty"`
}

// Lead is a prospective student moving through the admissions pipeline.
// Status holds the id of the stage the lead currently occupies.
type Lead struct {
	ID                     string                `yaml:"id" json:"id"`
	Name                   string                `yaml:"name" json:"name"`
	ParentName             string                `yaml:"parent_name,omitempty" json:"parent_name,omitempty"`
	Grade                  string                `yaml:"grade,omitempty" json:"grade,omitempty"`
	Program                string                `yaml:"program,omitempty" json:"program,omitempty"`
	Source                 string                `yaml:"source,omitempty" json:"source,omitempty"`
	EnrollmentTerm         string                `yaml:"enrollment_term,omitempty" json:"enrollment_term,omitempty"`
	Priority               Priority              `yaml:"priority" json:"priority"`
	Phone                  string                `yaml:"phone,omitempty" json:"phone,omitempty"`
	Email                  string                `yaml:"email,omitempty" json:"email,omitempty"`
	PreferredContactMethod string                `yaml:"preferred_contact_method,omitempty" json:"preferred_contact_method,omitempty"`
	AssignedRecruiter      string                `yaml:"assigned_recruiter,omitempty" json:"assigned_recruiter,omitempty"`
	Notes                  string                `yaml:"notes,omitempty" json:"notes,omitempty"`
	StatusNotes            string                `yaml:"status_notes,omitempty" json:"status_notes,omitempty"`
	NextFollowUpDate       string                `yaml:"next_follow_up_date,omitempty" json:"next_follow_up_date,omitempty"`
	EstimatedTuitionValue  float64               `yaml:"estimated_tuition_value,omitempty" json:"estimated_tuition_value,omitempty"`
	ScholarshipRequested   bool                  `yaml:"scholarship_requested,omitempty" json:"scholarship_requested,omitempty"`
	ScholarshipNotes       string                `yaml:"scholarship_notes,omitempty" json:"scholarship_notes,omitempty"`
	Status                 string                `yaml:"status" json:"status"`
	StudentID              string                `yaml:"student_id,omitempty" json:"student_id,omitempty"`
	CustomFieldValues      map[string]FieldValue `yaml:"custom_field_values" json:"custom_field_values"`
	TaskChecklist          []Task                `yaml:"task_checklist" json:"task_checklist"`
	CommunicationLog       []Communication       `yaml:"communication_log" json:"communication_log"`
	Created                time.Time             `yaml:"created" json:"created"`
	Updated                time.Time             `yaml:"updated" json:"updated"`
}

// Clone returns a deep copy of the lead with no aliasing of its sub-records.
func (l Lead) Clone() Lead {
	out := l
	out.CustomFieldValues = make(map[string]FieldValue, len(l.CustomFieldValues))
	for k, v := range l.CustomFieldValues {
		out.CustomFieldValues[k] = v.Clone()
	}
	out.TaskChecklist = make([]Task, len(l.TaskChecklist))
	for i, t := range l.TaskChecklist {
		if t.DueDate != nil {
			d := *t.DueDate
			t.DueDate = &d
		}
		out.TaskChecklist[i] = t
	}
	out.CommunicationLog = append(make([]Communication, 0, len(l.CommunicationLog)), l.CommunicationLog...)
	return out
}

// ValueKind tags the representation held by a FieldValue.
type ValueKind string

const (
	KindText   ValueKind = "text"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindList   ValueKind = "list"
)

// FieldValue is the tagged value stored for a custom field on a lead.
// Only the member matching Kind is meaningful.
type FieldValue struct {
	Kind   ValueKind `yaml:"kind" json:"kind"`
	Text   string    `yaml:"text,omitempty" json:"text,omitempty"`
	Number float64   `yaml:"number,omitempty" json:"number,omitempty"`
	Bool   bool      `yaml:"bool,omitempty" json:"bool,omitempty"`
	List   []string  `yaml:"list,omitempty" json:"list,omitempty"`
}

// TextValue wraps s as a text value.
func TextValue(s string) FieldValue { return FieldValue{Kind: KindText, Text: s} }

// NumberValue wraps n as a numeric value.
func NumberValue(n float64) FieldValue { return FieldValue{Kind: KindNumber, Number: n} }

// BoolValue wraps b as a boolean value.
func BoolValue(b bool) FieldValue { return FieldValue{Kind: KindBool, Bool: b} }

// ListValue wraps items as a list value.
func ListValue(items ...string) FieldValue {
	return FieldValue{Kind: KindList, List: append([]string{}, items...)}
}

// Clone returns a deep copy of the value.
func (v FieldValue) Clone() FieldValue {
	if v.List != nil {
		v.List = append([]string(nil), v.List...)
	}
	return v
}
