// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the admissions pipeline as tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/leadflow/internal/core"
	"github.com/valter-silva-au/leadflow/internal/observability"
	"github.com/valter-silva-au/leadflow/pkg/models"
)

// PipelineService is the part of core.Pipeline the tools use.
type PipelineService interface {
	Summaries() []core.StageSummary
	Leads() []models.Lead
	LeadsByStage(stageID string) ([]models.Lead, error)
	Lead(leadID string) (models.Lead, error)
	CreateLead(ctx context.Context, draft models.Lead) (models.Lead, error)
	MoveLead(ctx context.Context, leadID, targetStageID string) (core.MoveResult, error)
	RetryTriggers(ctx context.Context, leadID string) (core.MoveResult, error)
	DeleteStage(ctx context.Context, stageID, migrationTargetID string) (core.DeleteResult, error)
}

// Server wraps the pipeline and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	pipeline    PipelineService
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server over the given pipeline.
// metricsCalc and alertEngine may be nil if the event log is unavailable.
func NewServer(pipeline PipelineService, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		pipeline:    pipeline,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "leadflow", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdio, blocking until the client disconnects or the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type stageOutput struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Order      int    `json:"order"`
	IsRequired bool   `json:"is_required"`
	Start      bool   `json:"start,omitempty"`
	Terminal   bool   `json:"terminal,omitempty"`
	LeadCount  int    `json:"lead_count"`
	FieldCount int    `json:"field_count"`
}

type listStagesInput struct{}

type listStagesOutput struct {
	Stages []stageOutput `json:"stages"`
	Count  int           `json:"count"`
}

type leadOutput struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Status            string            `json:"status"`
	Priority          string            `json:"priority"`
	Program           string            `json:"program,omitempty"`
	Source            string            `json:"source,omitempty"`
	Email             string            `json:"email,omitempty"`
	Phone             string            `json:"phone,omitempty"`
	ParentName        string            `json:"parent_name,omitempty"`
	AssignedRecruiter string            `json:"assigned_recruiter,omitempty"`
	StudentID         string            `json:"student_id,omitempty"`
	OpenTasks         int               `json:"open_tasks"`
	Communications    int               `json:"communications"`
	CustomFields      map[string]string `json:"custom_fields,omitempty"`
	Created           string            `json:"created"`
	Updated           string            `json:"updated"`
}

type listLeadsInput struct {
	StageID string `json:"stage_id,omitempty" jsonschema:"only return leads in this stage"`
}

type listLeadsOutput struct {
	Leads []leadOutput `json:"leads"`
	Count int          `json:"count"`
}

type getLeadInput struct {
	LeadID string `json:"lead_id" jsonschema:"the lead identifier"`
}

type createLeadInput struct {
	Name     string `json:"name" jsonschema:"the prospective student's full name"`
	Program  string `json:"program,omitempty" jsonschema:"program of interest"`
	Source   string `json:"source,omitempty" jsonschema:"where the inquiry came from"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Priority string `json:"priority,omitempty" jsonschema:"low, medium or high; defaults to medium"`
	StageID  string `json:"stage_id,omitempty" jsonschema:"initial stage; defaults to the start stage"`
}

type moveLeadInput struct {
	LeadID  string `json:"lead_id" jsonschema:"the lead identifier"`
	StageID string `json:"stage_id" jsonschema:"the stage to move the lead to"`
}

type moveLeadOutput struct {
	Lead     leadOutput `json:"lead"`
	From     string     `json:"from"`
	Changed  bool       `json:"changed"`
	Warnings []string   `json:"warnings,omitempty"`
	Message  string     `json:"message"`
}

type retryEnrollmentInput struct {
	LeadID string `json:"lead_id" jsonschema:"the lead whose enrollment should be retried"`
}

type deleteStageInput struct {
	StageID         string `json:"stage_id" jsonschema:"the stage to delete"`
	MigrationTarget string `json:"migration_target,omitempty" jsonschema:"stage receiving the deleted stage's leads; defaults to the first remaining stage"`
}

type deleteStageOutput struct {
	StageID         string   `json:"stage_id"`
	MigrationTarget string   `json:"migration_target"`
	MigratedLeadIDs []string `json:"migrated_lead_ids"`
	Message         string   `json:"message"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 30d."`
}

type metricsOutput struct {
	LeadsCreated       int            `json:"leads_created"`
	LeadsMoved         int            `json:"leads_moved"`
	LeadsEnrolled      int            `json:"leads_enrolled"`
	EnrollmentFailures int            `json:"enrollment_failures"`
	ConversionRate     float64        `json:"conversion_rate"`
	MovesByStage       map[string]int `json:"moves_by_stage"`
	LeadsBySource      map[string]int `json:"leads_by_source"`
	EventCount         int            `json:"event_count"`
	OldestEvent        string         `json:"oldest_event,omitempty"`
	NewestEvent        string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	LeadID      string `json:"lead_id,omitempty"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_stages",
		Description: "List pipeline stages in board order with lead counts, marking the start and terminal stages.",
	}, s.handleListStages)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_leads",
		Description: "List leads, optionally only those in one stage.",
	}, s.handleListLeads)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_lead",
		Description: "Get one lead by id, including its formatted custom field values and student id if enrolled.",
	}, s.handleGetLead)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_lead",
		Description: "Create a lead. It starts in the start stage unless stage_id is given. Creating a lead never enrolls it.",
	}, s.handleCreateLead)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_lead",
		Description: "Move a lead to another stage. Moving into the terminal stage creates a student record; a failure there is reported as a warning and the move stands.",
	}, s.handleMoveLead)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "retry_enrollment",
		Description: "Retry the student record creation for a lead already in the terminal stage without moving it.",
	}, s.handleRetryEnrollment)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_stage",
		Description: "Delete an optional stage, migrating its leads to migration_target or the first remaining stage.",
	}, s.handleDeleteStage)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get admissions metrics from the event log: leads created, moved, enrolled, enrollment failures and conversion rate.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (failed enrollments, unanswered inquiries, stalled leads).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListStages(_ context.Context, _ *gomcp.CallToolRequest, _ listStagesInput) (*gomcp.CallToolResult, listStagesOutput, error) {
	summaries := s.pipeline.Summaries()
	out := listStagesOutput{
		Stages: make([]stageOutput, len(summaries)),
		Count:  len(summaries),
	}
	for i, sum := range summaries {
		out.Stages[i] = stageOutput{
			ID:         sum.Stage.ID,
			Title:      sum.Stage.Title,
			Order:      sum.Stage.Order,
			IsRequired: sum.Stage.IsRequired,
			Start:      sum.Start,
			Terminal:   sum.Terminal,
			LeadCount:  sum.LeadCount,
			FieldCount: len(sum.Stage.CustomFields),
		}
	}
	return nil, out, nil
}

func (s *Server) handleListLeads(_ context.Context, _ *gomcp.CallToolRequest, input listLeadsInput) (*gomcp.CallToolResult, listLeadsOutput, error) {
	var leads []models.Lead
	if input.StageID != "" {
		var err error
		leads, err = s.pipeline.LeadsByStage(input.StageID)
		if err != nil {
			return errorResult(fmt.Sprintf("listing leads: %s", err)), listLeadsOutput{}, nil
		}
	} else {
		leads = s.pipeline.Leads()
	}

	out := listLeadsOutput{
		Leads: make([]leadOutput, len(leads)),
		Count: len(leads),
	}
	for i, l := range leads {
		out.Leads[i] = s.leadToOutput(l)
	}
	return nil, out, nil
}

func (s *Server) handleGetLead(_ context.Context, _ *gomcp.CallToolRequest, input getLeadInput) (*gomcp.CallToolResult, leadOutput, error) {
	if input.LeadID == "" {
		return errorResult("lead_id is required"), leadOutput{}, nil
	}
	lead, err := s.pipeline.Lead(input.LeadID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting lead %s: %s", input.LeadID, err)), leadOutput{}, nil
	}
	return nil, s.leadToOutput(lead), nil
}

func (s *Server) handleCreateLead(ctx context.Context, _ *gomcp.CallToolRequest, input createLeadInput) (*gomcp.CallToolResult, leadOutput, error) {
	lead, err := s.pipeline.CreateLead(ctx, models.Lead{
		Name:     input.Name,
		Program:  input.Program,
		Source:   input.Source,
		Email:    input.Email,
		Phone:    input.Phone,
		Priority: models.Priority(input.Priority),
		Status:   input.StageID,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("creating lead: %s", err)), leadOutput{}, nil
	}
	return nil, s.leadToOutput(lead), nil
}

func (s *Server) handleMoveLead(ctx context.Context, _ *gomcp.CallToolRequest, input moveLeadInput) (*gomcp.CallToolResult, moveLeadOutput, error) {
	if input.LeadID == "" || input.StageID == "" {
		return errorResult("lead_id and stage_id are required"), moveLeadOutput{}, nil
	}
	res, err := s.pipeline.MoveLead(ctx, input.LeadID, input.StageID)
	if err != nil {
		return errorResult(fmt.Sprintf("moving lead %s: %s", input.LeadID, err)), moveLeadOutput{}, nil
	}

	out := s.moveToOutput(res)
	switch {
	case !res.Changed:
		out.Message = fmt.Sprintf("lead %s is already in %s", input.LeadID, input.StageID)
	default:
		out.Message = fmt.Sprintf("lead %s moved from %s to %s", input.LeadID, res.From, input.StageID)
	}
	return nil, out, nil
}

func (s *Server) handleRetryEnrollment(ctx context.Context, _ *gomcp.CallToolRequest, input retryEnrollmentInput) (*gomcp.CallToolResult, moveLeadOutput, error) {
	if input.LeadID == "" {
		return errorResult("lead_id is required"), moveLeadOutput{}, nil
	}
	res, err := s.pipeline.RetryTriggers(ctx, input.LeadID)
	if err != nil {
		return errorResult(fmt.Sprintf("retrying enrollment for lead %s: %s", input.LeadID, err)), moveLeadOutput{}, nil
	}

	out := s.moveToOutput(res)
	switch {
	case len(res.Warnings) > 0:
		out.Message = fmt.Sprintf("enrollment for lead %s failed again", input.LeadID)
	case res.Lead.StudentID != "":
		out.Message = fmt.Sprintf("lead %s is enrolled as %s", input.LeadID, res.Lead.StudentID)
	default:
		out.Message = fmt.Sprintf("nothing to retry for lead %s", input.LeadID)
	}
	return nil, out, nil
}

func (s *Server) handleDeleteStage(ctx context.Context, _ *gomcp.CallToolRequest, input deleteStageInput) (*gomcp.CallToolResult, deleteStageOutput, error) {
	if input.StageID == "" {
		return errorResult("stage_id is required"), deleteStageOutput{}, nil
	}
	res, err := s.pipeline.DeleteStage(ctx, input.StageID, input.MigrationTarget)
	if err != nil {
		return errorResult(fmt.Sprintf("deleting stage %s: %s", input.StageID, err)), deleteStageOutput{}, nil
	}
	migrated := res.MigratedLeadIDs
	if migrated == nil {
		migrated = []string{}
	}
	return nil, deleteStageOutput{
		StageID:         res.Stage.ID,
		MigrationTarget: res.MigrationTarget,
		MigratedLeadIDs: migrated,
		Message:         fmt.Sprintf("stage %q deleted, %d leads migrated", res.Stage.Title, len(res.MigratedLeadIDs)),
	}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "30d"
	}
	sinceTime, err := ParseSince(sinceStr, time.Now())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		LeadsCreated:       metrics.LeadsCreated,
		LeadsMoved:         metrics.LeadsMoved,
		LeadsEnrolled:      metrics.LeadsEnrolled,
		EnrollmentFailures: metrics.EnrollmentFailures,
		ConversionRate:     metrics.ConversionRate(),
		MovesByStage:       metrics.MovesByStage,
		LeadsBySource:      metrics.LeadsBySource,
		EventCount:         metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (event log may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			LeadID:      a.LeadID,
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func (s *Server) leadToOutput(l models.Lead) leadOutput {
	out := leadOutput{
		ID:                l.ID,
		Name:              l.Name,
		Status:            l.Status,
		Priority:          string(l.Priority),
		Program:           l.Program,
		Source:            l.Source,
		Email:             l.Email,
		Phone:             l.Phone,
		ParentName:        l.ParentName,
		AssignedRecruiter: l.AssignedRecruiter,
		StudentID:         l.StudentID,
		Communications:    len(l.CommunicationLog),
		Created:           l.Created.Format(time.RFC3339),
		Updated:           l.Updated.Format(time.RFC3339),
	}
	for _, t := range l.TaskChecklist {
		if !t.Completed {
			out.OpenTasks++
		}
	}
	if len(l.CustomFieldValues) > 0 {
		out.CustomFields = s.formatFieldValues(l)
	}
	return out
}

// formatFieldValues keys display strings by field name. Values whose field
// no longer exists are keyed by their field id.
func (s *Server) formatFieldValues(l models.Lead) map[string]string {
	defs := make(map[string]models.CustomField)
	for _, sum := range s.pipeline.Summaries() {
		for _, f := range sum.Stage.CustomFields {
			defs[f.ID] = f
		}
	}
	out := make(map[string]string, len(l.CustomFieldValues))
	for id, v := range l.CustomFieldValues {
		f, ok := defs[id]
		if !ok {
			out[id] = core.FormatFieldValue(models.FieldText, v)
			continue
		}
		out[f.Name] = core.FormatFieldValue(f.Type, v)
	}
	return out
}

func (s *Server) moveToOutput(res core.MoveResult) moveLeadOutput {
	out := moveLeadOutput{
		Lead:    s.leadToOutput(res.Lead),
		From:    res.From,
		Changed: res.Changed,
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return out
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		MovesByStage:  make(map[string]int),
		LeadsBySource: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a human-friendly duration string like "7d", "30d", or
// "24h" into the corresponding time before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	now = now.UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
