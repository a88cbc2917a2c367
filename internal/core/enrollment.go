package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/valter-silva-au/leadflow/pkg/models"
)

// StudentDirectory is the downstream system that owns student records.
type StudentDirectory interface {
	// CreateStudent stores a student record and returns its identifier.
	CreateStudent(ctx context.Context, student models.Student) (string, error)
	// ListStudentIDs returns the identifiers of every existing student.
	ListStudentIDs(ctx context.Context) ([]string, error)
}

// EnrollmentTriggerName is the trigger name used in warnings and events.
const EnrollmentTriggerName = "enrollment"

// EnrollmentOption configures an EnrollmentTrigger.
type EnrollmentOption func(*EnrollmentTrigger)

// WithStudentIDFormat sets the student id prefix and zero-padding width.
func WithStudentIDFormat(prefix string, padWidth int) EnrollmentOption {
	return func(t *EnrollmentTrigger) {
		t.prefix = prefix
		t.padWidth = padWidth
	}
}

// WithEnrollmentTimeout bounds each call to the student directory.
func WithEnrollmentTimeout(d time.Duration) EnrollmentOption {
	return func(t *EnrollmentTrigger) { t.timeout = d }
}

// WithEnrollmentClock overrides the time source used for the enrollment date
// and for fallback ids.
func WithEnrollmentClock(now func() time.Time) EnrollmentOption {
	return func(t *EnrollmentTrigger) { t.now = now }
}

// WithEnrollmentLogger sets the logger used for fallback warnings.
func WithEnrollmentLogger(l *slog.Logger) EnrollmentOption {
	return func(t *EnrollmentTrigger) {
		if l != nil {
			t.logger = l
		}
	}
}

// EnrollmentTrigger creates a student record when a lead reaches the
// terminal stage. A lead that already has a StudentID is left alone.
type EnrollmentTrigger struct {
	dir      StudentDirectory
	prefix   string
	padWidth int
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewEnrollmentTrigger builds the trigger around a student directory.
func NewEnrollmentTrigger(dir StudentDirectory, opts ...EnrollmentOption) *EnrollmentTrigger {
	t := &EnrollmentTrigger{
		dir:      dir,
		prefix:   "STU",
		padWidth: 3,
		timeout:  10 * time.Second,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Trigger.
func (t *EnrollmentTrigger) Name() string { return EnrollmentTriggerName }

// Applies implements Trigger.
func (t *EnrollmentTrigger) Applies(tr Transition, lead models.Lead) bool {
	return tr.To == tr.TerminalStageID && lead.StudentID == ""
}

// Fire allocates a student id, creates the record and stores the id the
// directory returned on the lead.
func (t *EnrollmentTrigger) Fire(ctx context.Context, _ Transition, lead *models.Lead) error {
	if t.dir == nil {
		return errors.New("no student directory configured")
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	student := StudentFromLead(*lead, t.now())
	student.StudentID = t.allocate(ctx)

	id, err := t.dir.CreateStudent(ctx, student)
	if err != nil {
		return fmt.Errorf("creating student for lead %s: %w", lead.ID, err)
	}
	if id == "" {
		id = student.StudentID
	}
	lead.StudentID = id
	return nil
}

func (t *EnrollmentTrigger) allocate(ctx context.Context) string {
	existing, err := t.dir.ListStudentIDs(ctx)
	if err != nil {
		t.logger.Warn("listing student ids failed, using time-based id", "error", err)
		return fallbackStudentID(t.prefix, t.now().UnixMilli())
	}
	return NextStudentID(t.prefix, t.padWidth, existing)
}

// StudentFromLead derives the student record for an enrolled lead. The name
// is split on the first run of whitespace; a single-word name has an empty
// last name.
func StudentFromLead(lead models.Lead, enrolled time.Time) models.Student {
	first, last := splitName(lead.Name)
	return models.Student{
		FirstName:      first,
		LastName:       last,
		Email:          lead.Email,
		Phone:          lead.Phone,
		Program:        lead.Program,
		GuardianName:   lead.ParentName,
		EnrollmentDate: enrolled.Format(dateLayout),
		Status:         models.StudentActive,
		FeeStatus:      models.FeePending,
	}
}

func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	i := strings.IndexFunc(name, unicode.IsSpace)
	if i < 0 {
		return name, ""
	}
	return name[:i], strings.TrimSpace(name[i:])
}
