package models

// FieldType identifies the kind of value a custom field holds.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldLongText    FieldType = "longtext"
	FieldDropdown    FieldType = "dropdown"
	FieldMultiSelect FieldType = "multiselect"
	FieldNumber      FieldType = "number"
	FieldCurrency    FieldType = "currency"
	FieldPercentage  FieldType = "percentage"
	FieldDate        FieldType = "date"
	FieldTime        FieldType = "time"
	FieldDateTime    FieldType = "datetime"
	FieldCheckbox    FieldType = "checkbox"
	FieldRating      FieldType = "rating"
	FieldProgress    FieldType = "progress"
	FieldFile        FieldType = "file"
	FieldURL         FieldType = "url"
	FieldImage       FieldType = "image"
	FieldLookup      FieldType = "lookup"
	FieldUser        FieldType = "user"
	FieldSignature   FieldType = "signature"
)

// FieldTypes lists every supported custom field type in display order.
var FieldTypes = []FieldType{
	FieldText, FieldLongText, FieldDropdown, FieldMultiSelect,
	FieldNumber, FieldCurrency, FieldPercentage,
	FieldDate, FieldTime, FieldDateTime,
	FieldCheckbox, FieldRating, FieldProgress,
	FieldFile, FieldURL, FieldImage,
	FieldLookup, FieldUser, FieldSignature,
}

// HasOptions reports whether fields of this type carry a list of options.
func (t FieldType) HasOptions() bool {
	return t == FieldDropdown || t == FieldMultiSelect
}

// CustomField is a typed field definition owned by a single stage.
type CustomField struct {
	ID           string      `yaml:"id" json:"id"`
	Name         string      `yaml:"name" json:"name"`
	Type         FieldType   `yaml:"type" json:"type"`
	Required     bool        `yaml:"required" json:"required"`
	Options      []string    `yaml:"options,omitempty" json:"options,omitempty"`
	Order        int         `yaml:"order" json:"order"`
	Placeholder  string      `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	DefaultValue *FieldValue `yaml:"default_value,omitempty" json:"default_value,omitempty"`
}

// Clone returns a deep copy of the field.
func (f CustomField) Clone() CustomField {
	out := f
	if f.Options != nil {
		out.Options = append([]string(nil), f.Options...)
	}
	if f.DefaultValue != nil {
		v := f.DefaultValue.Clone()
		out.DefaultValue = &v
	}
	return out
}

// Stage is one column of the pipeline. ID is stable across renames and
// Order is the zero-based left-to-right position.
type Stage struct {
	ID           string        `yaml:"id" json:"id"`
	Title        string        `yaml:"title" json:"title"`
	Order        int           `yaml:"order" json:"order"`
	ColorTag     string        `yaml:"color_tag,omitempty" json:"color_tag,omitempty"`
	IsRequired   bool          `yaml:"is_required" json:"is_required"`
	CustomFields []CustomField `yaml:"custom_fields" json:"custom_fields"`
}

// Clone returns a deep copy of the stage including its field definitions.
func (s Stage) Clone() Stage {
	out := s
	out.CustomFields = make([]CustomField, len(s.CustomFields))
	for i, f := range s.CustomFields {
		out.CustomFields[i] = f.Clone()
	}
	return out
}

// Field returns the field with the given id, or nil.
func (s *Stage) Field(fieldID string) *CustomField {
	for i := range s.CustomFields {
		if s.CustomFields[i].ID == fieldID {
			return &s.CustomFields[i]
		}
	}
	return nil
}
