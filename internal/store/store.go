// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/teamtenx/workflow-engine/internal/domain"
)

const documentName = "workflow.json"

// Store persists workflow documents under <root>/<workflow_id>/workflow.json.
// The document is rewritten in full after every mutation and is the
// sole source of truth. Single writer by convention; no file locking.
type Store struct {
	root   string
	logger *slog.Logger
}

func New(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}
}

func (s *Store) Root() string { return s.root }

// Dir returns the directory holding a workflow's document and its
// per-step input/output files.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Store) Path(id string) string {
	return filepath.Join(s.root, id, documentName)
}

func (s *Store) StepInputPath(id string, stepID int) string {
	return filepath.Join(s.root, id, fmt.Sprintf("step%d_input.json", stepID))
}

func (s *Store) StepOutputPath(id string, stepID int) string {
	return filepath.Join(s.root, id, fmt.Sprintf("step%d_output.json", stepID))
}

// Save writes the document with indentation for human inspection.
// The write goes through a temp file and rename so a kill mid-write
// never leaves a truncated document behind.
func (s *Store) Save(wf *domain.Workflow) error {
	dir := s.Dir(wf.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workflow dir: %w", err)
	}

	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workflow %s: %w", wf.ID, err)
	}

	path := filepath.Join(dir, documentName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write workflow %s: %w", wf.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace workflow %s: %w", wf.ID, err)
	}

	s.logger.Debug("workflow saved", "workflow_id", wf.ID, "path", path)
	return nil
}

func (s *Store) Load(id string) (*domain.Workflow, error) {
	return ReadDocument(s.Path(id))
}

// List loads every workflow under the root, sorted by id.
func (s *Store) List() ([]*domain.Workflow, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workflows dir: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.Path(e.Name())); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)

	workflows := make([]*domain.Workflow, 0, len(ids))
	for _, id := range ids {
		wf, err := s.Load(id)
		if err != nil {
			s.logger.Warn("skipping unreadable workflow", "workflow_id", id, "error", err)
			continue
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// ReadDocument loads a workflow document from an explicit path. CLI
// commands accept workflow file paths directly.
func ReadDocument(path string) (*domain.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("read workflow document: %w", err)
	}

	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow document %s: %w", path, err)
	}
	return &wf, nil
}
