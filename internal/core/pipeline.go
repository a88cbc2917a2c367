package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/leadflow/pkg/models"
)

const stateVersion = "1.0"

// Persister loads and saves the whole pipeline state. Implementations live in
// the storage package; core only depends on this contract.
type Persister interface {
	Load(ctx context.Context) (*models.PipelineState, error)
	Save(ctx context.Context, state *models.PipelineState) error
}

// ChangeType names a committed pipeline mutation. The same names are used as
// event log types.
type ChangeType string

const (
	ChangeStageAdded          ChangeType = "stage.added"
	ChangeStageRenamed        ChangeType = "stage.renamed"
	ChangeStageMoved          ChangeType = "stage.moved"
	ChangeStageRequired       ChangeType = "stage.required_changed"
	ChangeStageDeleted        ChangeType = "stage.deleted"
	ChangeFieldAdded          ChangeType = "field.added"
	ChangeFieldUpdated        ChangeType = "field.updated"
	ChangeFieldMoved          ChangeType = "field.moved"
	ChangeFieldDeleted        ChangeType = "field.deleted"
	ChangeLeadCreated         ChangeType = "lead.created"
	ChangeLeadUpdated         ChangeType = "lead.updated"
	ChangeLeadMoved           ChangeType = "lead.moved"
	ChangeLeadTaskAdded       ChangeType = "lead.task_added"
	ChangeLeadTaskToggled     ChangeType = "lead.task_toggled"
	ChangeLeadCommunication   ChangeType = "lead.communication_logged"
	ChangeLeadFieldValue      ChangeType = "lead.field_value_set"
	ChangeLeadTriggersRetried ChangeType = "lead.triggers_retried"
)

// Change describes one committed mutation.
type Change struct {
	Type     ChangeType
	StageID  string
	LeadID   string
	Data     map[string]any
	Fired    []FiredTrigger
	Warnings []*SideEffectFailure
}

// Observer is notified after every committed mutation with a snapshot of the
// resulting state. Observers run while the pipeline is locked and must not
// call back into it or modify the snapshot.
type Observer func(change Change, snapshot models.PipelineState)

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPersister saves the state after every committed mutation.
func WithPersister(p Persister) PipelineOption {
	return func(pl *Pipeline) { pl.persister = p }
}

// WithEventLogger records every committed mutation as an event.
func WithEventLogger(l EventLogger) PipelineOption {
	return func(pl *Pipeline) { pl.events = l }
}

// WithLogger sets the operator logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) PipelineOption {
	return func(pl *Pipeline) { pl.now = now }
}

// WithIDGenerator overrides the generator used for new stage, field, lead,
// task and communication ids.
func WithIDGenerator(gen func() string) PipelineOption {
	return func(pl *Pipeline) { pl.newID = gen }
}

// WithTriggers registers transition triggers, fired in the given order.
func WithTriggers(triggers ...Trigger) PipelineOption {
	return func(pl *Pipeline) { pl.triggers = append(pl.triggers, triggers...) }
}

// Pipeline is the single source of truth for stages and leads. Every public
// method is a critical section; callers never observe partial state.
type Pipeline struct {
	mu    sync.Mutex
	state models.PipelineState

	triggers  []Trigger
	observers map[int]Observer
	nextObsID int

	persister Persister
	events    EventLogger
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewPipeline builds a pipeline from an initial state. Stages are sorted by
// their stored order and renumbered; the start and terminal stage default to
// the first and last stage when unset.
func NewPipeline(initial models.PipelineState, opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		state:     initial.Clone(),
		observers: make(map[int]Observer),
		logger:    slog.New(slog.DiscardHandler),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.normalize(); err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}
	return p, nil
}

// LoadPipeline loads state through the persister, seeding the default
// admissions pipeline when nothing has been saved yet.
func LoadPipeline(ctx context.Context, persister Persister, opts ...PipelineOption) (*Pipeline, error) {
	state, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pipeline: %w", err)
	}
	if state == nil || len(state.Stages) == 0 {
		state = DefaultState()
	}
	opts = append([]PipelineOption{WithPersister(persister)}, opts...)
	return NewPipeline(*state, opts...)
}

func (p *Pipeline) normalize() error {
	s := &p.state
	if len(s.Stages) == 0 {
		return &InvariantViolation{Rule: RuleLastStage, Detail: "pipeline needs at least one stage"}
	}
	if s.Version == "" {
		s.Version = stateVersion
	}

	sort.SliceStable(s.Stages, func(i, j int) bool { return s.Stages[i].Order < s.Stages[j].Order })
	renumberStages(s.Stages)

	seen := make(map[string]bool, len(s.Stages))
	for i := range s.Stages {
		st := &s.Stages[i]
		if st.ID == "" {
			return invalid("stage id", "stage %q has no id", st.Title)
		}
		if seen[st.ID] {
			return invalid("stage id", "duplicate stage id %s", st.ID)
		}
		seen[st.ID] = true
		sort.SliceStable(st.CustomFields, func(a, b int) bool { return st.CustomFields[a].Order < st.CustomFields[b].Order })
		renumberFields(st.CustomFields)
		if st.CustomFields == nil {
			st.CustomFields = []models.CustomField{}
		}
	}

	if s.StartStageID == "" {
		s.StartStageID = s.Stages[0].ID
	}
	if s.TerminalStageID == "" {
		s.TerminalStageID = s.Stages[len(s.Stages)-1].ID
	}
	if !seen[s.StartStageID] {
		return notFound("start stage", s.StartStageID)
	}
	if !seen[s.TerminalStageID] {
		return notFound("terminal stage", s.TerminalStageID)
	}
	for i := range s.Stages {
		if s.Stages[i].ID == s.StartStageID || s.Stages[i].ID == s.TerminalStageID {
			s.Stages[i].IsRequired = true
		}
	}

	leadIDs := make(map[string]bool, len(s.Leads))
	for i := range s.Leads {
		l := &s.Leads[i]
		if leadIDs[l.ID] {
			return invalid("lead id", "duplicate lead id %s", l.ID)
		}
		leadIDs[l.ID] = true
		if !seen[l.Status] {
			return fmt.Errorf("lead %s: %w", l.ID, notFound("stage", l.Status))
		}
		if l.CustomFieldValues == nil {
			l.CustomFieldValues = make(map[string]models.FieldValue)
		}
	}
	return nil
}

// Subscribe registers an observer and returns a function that removes it.
func (p *Pipeline) Subscribe(obs Observer) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextObsID
	p.nextObsID++
	p.observers[id] = obs
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers, id)
	}
}

// commitLocked notifies observers, records the event and persists the
// state. A save error is returned but the in-memory change stands.
func (p *Pipeline) commitLocked(ctx context.Context, change Change) error {
	p.publishLocked(change)
	return p.persistLocked(ctx, change.Type)
}

// publishLocked hands the change to observers in subscription order and
// records it in the event log.
func (p *Pipeline) publishLocked(change Change) {
	snapshot := p.state.Clone()

	ids := make([]int, 0, len(p.observers))
	for id := range p.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		p.observers[id](change, snapshot)
	}

	p.logEvent(change)
}

func (p *Pipeline) persistLocked(ctx context.Context, changeType ChangeType) error {
	if p.persister == nil {
		return nil
	}
	snapshot := p.state.Clone()
	if err := p.persister.Save(ctx, &snapshot); err != nil {
		p.logger.Error("saving pipeline failed", "change", string(changeType), "error", err)
		return fmt.Errorf("saving pipeline after %s: %w", changeType, err)
	}
	return nil
}

func (p *Pipeline) logEvent(change Change) {
	if p.events == nil {
		return
	}
	data := make(map[string]any, len(change.Data)+2)
	for k, v := range change.Data {
		data[k] = v
	}
	if change.StageID != "" {
		data["stage_id"] = change.StageID
	}
	if change.LeadID != "" {
		data["lead_id"] = change.LeadID
	}
	_ = p.events.LogEvent(string(change.Type), data)
	for _, f := range change.Fired {
		_ = p.events.LogEvent(f.Trigger+".fired", map[string]any{
			"lead_id":    f.LeadID,
			"student_id": f.StudentID,
		})
	}
	for _, w := range change.Warnings {
		_ = p.events.LogEvent(w.Trigger+".failed", map[string]any{
			"lead_id": w.LeadID,
			"error":   w.Err.Error(),
		})
	}
}

// --- Queries ---

// Snapshot returns a deep copy of the whole state.
func (p *Pipeline) Snapshot() models.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// Stages returns the stages in order.
func (p *Pipeline) Stages() []models.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Stage, len(p.state.Stages))
	for i, s := range p.state.Stages {
		out[i] = s.Clone()
	}
	return out
}

// Stage returns one stage by id.
func (p *Pipeline) Stage(stageID string) (models.Stage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := stageIndex(p.state.Stages, stageID)
	if idx < 0 {
		return models.Stage{}, notFound("stage", stageID)
	}
	return p.state.Stages[idx].Clone(), nil
}

// StartStageID returns the stage new leads enter by default.
func (p *Pipeline) StartStageID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.StartStageID
}

// TerminalStageID returns the designated terminal stage.
func (p *Pipeline) TerminalStageID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.TerminalStageID
}

// Leads returns every lead in insertion order.
func (p *Pipeline) Leads() []models.Lead {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Lead, len(p.state.Leads))
	for i, l := range p.state.Leads {
		out[i] = l.Clone()
	}
	return out
}

// Lead returns one lead by id.
func (p *Pipeline) Lead(leadID string) (models.Lead, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.leadIndexLocked(leadID)
	if idx < 0 {
		return models.Lead{}, notFound("lead", leadID)
	}
	return p.state.Leads[idx].Clone(), nil
}

// LeadsByStage returns the leads whose status is stageID, in insertion order.
func (p *Pipeline) LeadsByStage(stageID string) ([]models.Lead, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stageIndex(p.state.Stages, stageID) < 0 {
		return nil, notFound("stage", stageID)
	}
	var out []models.Lead
	for _, l := range p.state.Leads {
		if l.Status == stageID {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

// StageSummary pairs a stage with the number of leads it holds.
type StageSummary struct {
	Stage     models.Stage
	LeadCount int
	Start     bool
	Terminal  bool
}

// Summaries returns one summary per stage, in order.
func (p *Pipeline) Summaries() []StageSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := p.dependentCountsLocked()
	out := make([]StageSummary, len(p.state.Stages))
	for i, s := range p.state.Stages {
		out[i] = StageSummary{
			Stage:     s.Clone(),
			LeadCount: counts[s.ID],
			Start:     s.ID == p.state.StartStageID,
			Terminal:  s.ID == p.state.TerminalStageID,
		}
	}
	return out
}

func (p *Pipeline) dependentCountsLocked() map[string]int {
	counts := make(map[string]int, len(p.state.Stages))
	for _, l := range p.state.Leads {
		counts[l.Status]++
	}
	return counts
}

func (p *Pipeline) leadIndexLocked(leadID string) int {
	return slices.IndexFunc(p.state.Leads, func(l models.Lead) bool { return l.ID == leadID })
}
