package core

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/valter-silva-au/leadflow/pkg/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	dateLayout    = "2006-01-02"
	timeLayout    = "15:04"
	localDateTime = "2006-01-02T15:04"
	notSet        = "Not set"
)

// fieldHandler validates and formats values for one field type.
type fieldHandler struct {
	kind     models.ValueKind
	validate func(f models.CustomField, v models.FieldValue) error
	format   func(v models.FieldValue) string
}

var displayPrinter = message.NewPrinter(language.English)

// fieldHandlers is the dispatch table keyed by field type.
var fieldHandlers = map[models.FieldType]fieldHandler{
	models.FieldText:        {models.KindText, anyText, plainText},
	models.FieldLongText:    {models.KindText, anyText, plainText},
	models.FieldDropdown:    {models.KindText, oneOfOptions, plainText},
	models.FieldMultiSelect: {models.KindList, subsetOfOptions, joinedList},
	models.FieldNumber:      {models.KindNumber, finiteNumber, plainNumber},
	models.FieldCurrency:    {models.KindNumber, finiteNumber, currency},
	models.FieldPercentage:  {models.KindNumber, numberInRange(0, 100, false), percent},
	models.FieldDate:        {models.KindText, textLayout(dateLayout), dateDisplay},
	models.FieldTime:        {models.KindText, textLayout(timeLayout), plainText},
	models.FieldDateTime:    {models.KindText, dateTimeText, dateTimeDisplay},
	models.FieldCheckbox:    {models.KindBool, anyBool, yesNo},
	models.FieldRating:      {models.KindNumber, numberInRange(1, 5, true), stars},
	models.FieldProgress:    {models.KindNumber, numberInRange(0, 100, false), percent},
	models.FieldFile:        {models.KindText, anyText, plainText},
	models.FieldURL:         {models.KindText, webURL, plainText},
	models.FieldImage:       {models.KindText, anyText, plainText},
	models.FieldLookup:      {models.KindText, anyText, plainText},
	models.FieldUser:        {models.KindText, anyText, plainText},
	models.FieldSignature:   {models.KindText, anyText, signed},
}

// ValidateFieldDefinition checks a custom field definition independent of
// its position in a stage.
func ValidateFieldDefinition(f models.CustomField) error {
	if strings.TrimSpace(f.Name) == "" {
		return invalid("field name", "must not be empty")
	}
	if _, ok := fieldHandlers[f.Type]; !ok {
		return invalid("field type", "unknown type %q", f.Type)
	}
	if f.Type.HasOptions() {
		if len(f.Options) == 0 {
			return invalid("field options", "%s field %q needs at least one option", f.Type, f.Name)
		}
		seen := make(map[string]bool, len(f.Options))
		for _, o := range f.Options {
			if strings.TrimSpace(o) == "" {
				return invalid("field options", "empty option on %q", f.Name)
			}
			if seen[o] {
				return invalid("field options", "duplicate option %q on %q", o, f.Name)
			}
			seen[o] = true
		}
	} else if len(f.Options) > 0 {
		return invalid("field options", "%s field %q does not take options", f.Type, f.Name)
	}
	if f.DefaultValue != nil {
		if err := ValidateFieldValue(f, *f.DefaultValue); err != nil {
			return fmt.Errorf("default value: %w", err)
		}
	}
	return nil
}

// ValidateFieldValue checks that v has the representation and range the
// field's declared type requires. An empty value clears an optional field.
func ValidateFieldValue(f models.CustomField, v models.FieldValue) error {
	h, ok := fieldHandlers[f.Type]
	if !ok {
		return invalid("field type", "unknown type %q", f.Type)
	}
	if v.Kind != h.kind {
		return invalid(f.Name, "%s field expects a %s value, got %q", f.Type, h.kind, v.Kind)
	}
	if isEmptyValue(v) {
		if f.Required {
			return invalid(f.Name, "required field must not be empty")
		}
		return nil
	}
	return h.validate(f, v)
}

// FormatFieldValue renders v for display according to the field type.
func FormatFieldValue(t models.FieldType, v models.FieldValue) string {
	h, ok := fieldHandlers[t]
	if !ok || v.Kind == "" || v.Kind != h.kind {
		return notSet
	}
	if isEmptyValue(v) && v.Kind != models.KindBool {
		if t == models.FieldMultiSelect {
			return "None selected"
		}
		if t == models.FieldSignature {
			return "Not signed"
		}
		return notSet
	}
	return h.format(v)
}

// ParseFieldValue converts raw input text into the value representation the
// field type stores. It does not check ranges or options; ValidateFieldValue
// does that.
func ParseFieldValue(t models.FieldType, raw string) (models.FieldValue, error) {
	h, ok := fieldHandlers[t]
	if !ok {
		return models.FieldValue{}, invalid("field type", "unknown type %q", t)
	}
	raw = strings.TrimSpace(raw)
	switch h.kind {
	case models.KindNumber:
		n, err := strconv.ParseFloat(strings.NewReplacer("$", "", ",", "", "%", "").Replace(raw), 64)
		if err != nil {
			return models.FieldValue{}, invalid(string(t), "%q is not a number", raw)
		}
		return models.NumberValue(n), nil
	case models.KindBool:
		switch strings.ToLower(raw) {
		case "yes", "y", "on":
			return models.BoolValue(true), nil
		case "no", "n", "off", "":
			return models.BoolValue(false), nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return models.FieldValue{}, invalid(string(t), "%q is not yes or no", raw)
		}
		return models.BoolValue(b), nil
	case models.KindList:
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return models.ListValue(items...), nil
	}
	return models.TextValue(raw), nil
}

func isEmptyValue(v models.FieldValue) bool {
	switch v.Kind {
	case models.KindText:
		return strings.TrimSpace(v.Text) == ""
	case models.KindList:
		return len(v.List) == 0
	}
	return false
}

func anyText(models.CustomField, models.FieldValue) error { return nil }

func anyBool(models.CustomField, models.FieldValue) error { return nil }

func oneOfOptions(f models.CustomField, v models.FieldValue) error {
	if !slices.Contains(f.Options, v.Text) {
		return invalid(f.Name, "%q is not one of %v", v.Text, f.Options)
	}
	return nil
}

func subsetOfOptions(f models.CustomField, v models.FieldValue) error {
	seen := make(map[string]bool, len(v.List))
	for _, item := range v.List {
		if !slices.Contains(f.Options, item) {
			return invalid(f.Name, "%q is not one of %v", item, f.Options)
		}
		if seen[item] {
			return invalid(f.Name, "%q selected twice", item)
		}
		seen[item] = true
	}
	return nil
}

func finiteNumber(f models.CustomField, v models.FieldValue) error {
	if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
		return invalid(f.Name, "number must be finite")
	}
	return nil
}

func numberInRange(lo, hi float64, integer bool) func(models.CustomField, models.FieldValue) error {
	return func(f models.CustomField, v models.FieldValue) error {
		if err := finiteNumber(f, v); err != nil {
			return err
		}
		if v.Number < lo || v.Number > hi {
			return invalid(f.Name, "%v outside %v..%v", v.Number, lo, hi)
		}
		if integer && v.Number != math.Trunc(v.Number) {
			return invalid(f.Name, "%v is not a whole number", v.Number)
		}
		return nil
	}
}

func textLayout(layout string) func(models.CustomField, models.FieldValue) error {
	return func(f models.CustomField, v models.FieldValue) error {
		if _, err := time.Parse(layout, v.Text); err != nil {
			return invalid(f.Name, "%q does not match %s", v.Text, layout)
		}
		return nil
	}
}

func dateTimeText(f models.CustomField, v models.FieldValue) error {
	if _, ok := parseDateTime(v.Text); !ok {
		return invalid(f.Name, "%q is not a date and time", v.Text)
	}
	return nil
}

func parseDateTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, localDateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func webURL(f models.CustomField, v models.FieldValue) error {
	u, err := url.ParseRequestURI(v.Text)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(f.Name, "%q is not an http(s) URL", v.Text)
	}
	return nil
}

func plainText(v models.FieldValue) string { return v.Text }

func joinedList(v models.FieldValue) string { return strings.Join(v.List, ", ") }

func plainNumber(v models.FieldValue) string {
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

func currency(v models.FieldValue) string {
	return displayPrinter.Sprintf("$%v", number.Decimal(v.Number, number.MaxFractionDigits(2)))
}

func percent(v models.FieldValue) string { return plainNumber(v) + "%" }

func stars(v models.FieldValue) string { return plainNumber(v) + "/5 stars" }

func yesNo(v models.FieldValue) string {
	if v.Bool {
		return "Yes"
	}
	return "No"
}

func signed(models.FieldValue) string { return "Signed" }

func dateDisplay(v models.FieldValue) string {
	t, err := time.Parse(dateLayout, v.Text)
	if err != nil {
		return v.Text
	}
	return t.Format("1/2/2006")
}

func dateTimeDisplay(v models.FieldValue) string {
	t, ok := parseDateTime(v.Text)
	if !ok {
		return v.Text
	}
	return t.Format("1/2/2006, 3:04:05 PM")
}
