package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valter-silva-au/leadflow/pkg/models"
)

const pipelineSchema = `
CREATE TABLE IF NOT EXISTS pipeline_meta (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	version           TEXT NOT NULL,
	start_stage_id    TEXT NOT NULL,
	terminal_stage_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stages (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	position      INTEGER NOT NULL,
	color_tag     TEXT NOT NULL DEFAULT '',
	is_required   INTEGER NOT NULL DEFAULT 0,
	custom_fields TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	seq        INTEGER NOT NULL,
	stage_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	student_id TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leads_stage ON leads(stage_id);
`

// SQLitePipelineStore persists the pipeline in a SQLite database. Stages
// and leads get a row each; nested records are stored as JSON columns.
type SQLitePipelineStore struct {
	db   *sql.DB
	path string
}

// OpenSQLitePipelineStore opens or creates the database at path and applies
// the schema.
func OpenSQLitePipelineStore(path string) (*SQLitePipelineStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("open sqlite store: creating directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(pipelineSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pipeline schema: %w", err)
	}

	return &SQLitePipelineStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLitePipelineStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLitePipelineStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the pipeline state. An empty database yields a nil state.
func (s *SQLitePipelineStore) Load(ctx context.Context) (*models.PipelineState, error) {
	var state models.PipelineState
	err := s.db.QueryRowContext(ctx,
		`SELECT version, start_stage_id, terminal_stage_id FROM pipeline_meta WHERE id = 1`,
	).Scan(&state.Version, &state.StartStageID, &state.TerminalStageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading pipeline meta: %w", err)
	}

	stages, err := s.loadStages(ctx)
	if err != nil {
		return nil, err
	}
	leads, err := s.loadLeads(ctx)
	if err != nil {
		return nil, err
	}
	state.Stages = stages
	state.Leads = leads
	return &state, nil
}

func (s *SQLitePipelineStore) loadStages(ctx context.Context) ([]models.Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, position, color_tag, is_required, custom_fields FROM stages ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("loading stages: %w", err)
	}
	defer rows.Close()

	var stages []models.Stage
	for rows.Next() {
		var (
			st       models.Stage
			required int
			fields   string
		)
		if err := rows.Scan(&st.ID, &st.Title, &st.Order, &st.ColorTag, &required, &fields); err != nil {
			return nil, fmt.Errorf("scanning stage: %w", err)
		}
		st.IsRequired = required != 0
		if err := json.Unmarshal([]byte(fields), &st.CustomFields); err != nil {
			return nil, fmt.Errorf("decoding fields of stage %s: %w", st.ID, err)
		}
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading stages: %w", err)
	}
	return stages, nil
}

func (s *SQLitePipelineStore) loadLeads(ctx context.Context) ([]models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM leads ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("loading leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		var lead models.Lead
		if err := json.Unmarshal([]byte(body), &lead); err != nil {
			return nil, fmt.Errorf("decoding lead %s: %w", id, err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading leads: %w", err)
	}
	return leads, nil
}

// Save replaces the stored pipeline with state in one transaction.
func (s *SQLitePipelineStore) Save(ctx context.Context, state *models.PipelineState) (err error) {
	if state == nil {
		return fmt.Errorf("saving pipeline: state is nil")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving pipeline: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO pipeline_meta (id, version, start_stage_id, terminal_stage_id) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET version = excluded.version,
		   start_stage_id = excluded.start_stage_id, terminal_stage_id = excluded.terminal_stage_id`,
		state.Version, state.StartStageID, state.TerminalStageID,
	); err != nil {
		return fmt.Errorf("saving pipeline meta: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM stages`); err != nil {
		return fmt.Errorf("clearing stages: %w", err)
	}
	for _, st := range state.Stages {
		fields, mErr := json.Marshal(st.CustomFields)
		if mErr != nil {
			err = fmt.Errorf("encoding fields of stage %s: %w", st.ID, mErr)
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO stages (id, title, position, color_tag, is_required, custom_fields) VALUES (?, ?, ?, ?, ?, ?)`,
			st.ID, st.Title, st.Order, st.ColorTag, boolToInt(st.IsRequired), string(fields),
		); err != nil {
			return fmt.Errorf("saving stage %s: %w", st.ID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM leads`); err != nil {
		return fmt.Errorf("clearing leads: %w", err)
	}
	for i, l := range state.Leads {
		body, mErr := json.Marshal(l)
		if mErr != nil {
			err = fmt.Errorf("encoding lead %s: %w", l.ID, mErr)
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO leads (id, seq, stage_id, name, student_id, body, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.ID, i, l.Status, l.Name, l.StudentID, string(body), l.Updated.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("saving lead %s: %w", l.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("saving pipeline: commit: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
