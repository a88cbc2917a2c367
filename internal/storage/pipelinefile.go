// Package storage persists pipeline state as a locked YAML document or in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/valter-silva-au/leadflow/pkg/models"
	"gopkg.in/yaml.v3"
)

// PipelineFileName is the file the YAML store keeps the pipeline in.
const PipelineFileName = "pipeline.yaml"

const lockRetryDelay = 25 * time.Millisecond

// FilePipelineStore persists the whole pipeline state as a single YAML
// document. A sidecar lock file serialises access between processes.
type FilePipelineStore struct {
	basePath string
	lock     *flock.Flock
}

// NewFilePipelineStore creates a store backed by pipeline.yaml in basePath.
func NewFilePipelineStore(basePath string) *FilePipelineStore {
	return &FilePipelineStore{
		basePath: basePath,
		lock:     flock.New(filepath.Join(basePath, ".pipeline.lock")),
	}
}

// Path returns the location of the YAML document.
func (s *FilePipelineStore) Path() string {
	return filepath.Join(s.basePath, PipelineFileName)
}

// Load reads the pipeline state. A missing file yields a nil state so the
// caller can seed defaults.
func (s *FilePipelineStore) Load(ctx context.Context) (*models.PipelineState, error) {
	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return nil, fmt.Errorf("loading pipeline: creating directory: %w", err)
	}
	ok, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("loading pipeline: acquiring lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("loading pipeline: lock %s is held", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading pipeline: %w", err)
	}

	var state models.PipelineState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("loading pipeline: parsing YAML: %w", err)
	}
	return &state, nil
}

// Save writes the pipeline state. The document is written to a temporary
// file and renamed into place so readers never see a partial write.
func (s *FilePipelineStore) Save(ctx context.Context, state *models.PipelineState) error {
	if state == nil {
		return fmt.Errorf("saving pipeline: state is nil")
	}
	if err := os.MkdirAll(s.basePath, 0o750); err != nil {
		return fmt.Errorf("saving pipeline: creating directory: %w", err)
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("saving pipeline: acquiring lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("saving pipeline: lock %s is held", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("saving pipeline: marshaling YAML: %w", err)
	}

	tmp, err := os.CreateTemp(s.basePath, ".pipeline-*.yaml")
	if err != nil {
		return fmt.Errorf("saving pipeline: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("saving pipeline: writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("saving pipeline: closing file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("saving pipeline: replacing file: %w", err)
	}
	return nil
}
