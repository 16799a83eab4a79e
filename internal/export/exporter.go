// SPDX-License-Identifier: Apache-2.0

// Package export compiles completed workflow documents into the
// aggregated deliverable files under the workflow directory.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/teamtenx/workflow-engine/internal/domain"
)

// stepSummary is one step entry in the compiled output.
type stepSummary struct {
	StepID  int               `json:"step_id"`
	Name    string            `json:"name"`
	Skill   string            `json:"skill"`
	Status  domain.StepStatus `json:"status"`
	Outputs map[string]any    `json:"outputs"`
}

type compiled struct {
	WorkflowID  string                `json:"workflow_id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	ExecutedAt  *time.Time            `json:"executed_at"`
	Status      domain.WorkflowStatus `json:"status"`
	UserInputs  map[string]any        `json:"user_inputs"`
	Steps       []stepSummary         `json:"steps"`
}

// CompileJSON aggregates workflow identity, gathered answers, and
// per-step outputs into final_output.json inside dir, and returns the
// written path.
func CompileJSON(wf *domain.Workflow, dir string) (string, error) {
	answers := wf.UserInputs.Answers
	if answers == nil {
		answers = map[string]any{}
	}

	doc := compiled{
		WorkflowID:  wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		ExecutedAt:  wf.Execution.CompletedAt,
		Status:      wf.Status,
		UserInputs:  answers,
		Steps:       make([]stepSummary, 0, len(wf.Steps)),
	}

	for _, step := range wf.Steps {
		status := step.Status
		if status == "" {
			status = domain.StepPending
		}
		outputs := step.Outputs
		if outputs == nil {
			outputs = map[string]any{}
		}
		doc.Steps = append(doc.Steps, stepSummary{
			StepID:  step.ID,
			Name:    step.Name,
			Skill:   step.Skill,
			Status:  status,
			Outputs: outputs,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal compiled output: %w", err)
	}

	path := filepath.Join(dir, "final_output.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write compiled output: %w", err)
	}
	return path, nil
}
