// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/teamtenx/workflow-engine/internal/domain"
	"github.com/teamtenx/workflow-engine/internal/metrics"
)

// stepPayload is the contract with external executors: the payload is
// written to stepN_input.json and the file path passed as the sole
// argument; the executor writes a sibling stepN_output.json.
type stepPayload struct {
	Action string         `json:"action"`
	Inputs map[string]any `json:"inputs"`
}

// runStep drives one step to completion or exhausted failure. Retry is
// an explicit bounded loop; each failed attempt decrements the step's
// retry counter and is flushed to disk before the next attempt.
func (e *Engine) runStep(ctx context.Context, wf *domain.Workflow, step *domain.Step, ec *executionContext) error {
	for {
		err := e.attemptStep(ctx, wf, step, ec)
		if err == nil {
			return nil
		}

		now := time.Now().UTC()
		step.Status = domain.StepFailed
		step.Error = err.Error()
		step.CompletedAt = &now
		metrics.IncStepStatus(string(domain.StepFailed))

		if step.RetryCount > 0 {
			step.RetryCount--
			if saveErr := e.store.Save(wf); saveErr != nil {
				return saveErr
			}
			metrics.IncStepRetries()
			e.logger.Warn("step failed - retrying",
				"workflow_id", wf.ID,
				"step_id", step.ID,
				"retries_left", step.RetryCount,
				"error", err,
			)
			continue
		}

		if saveErr := e.store.Save(wf); saveErr != nil {
			return saveErr
		}
		e.logger.Error("step permanently failed",
			"workflow_id", wf.ID,
			"step_id", step.ID,
			"error", err,
		)
		return err
	}
}

// attemptStep performs a single execution attempt with its own timeout
// budget.
func (e *Engine) attemptStep(ctx context.Context, wf *domain.Workflow, step *domain.Step, ec *executionContext) error {
	e.logger.Info("executing step",
		"workflow_id", wf.ID,
		"step_id", step.ID,
		"name", step.Name,
		"skill", step.Skill,
	)

	started := time.Now().UTC()
	step.Status = domain.StepRunning
	step.StartedAt = &started
	step.Error = ""
	if err := e.store.Save(wf); err != nil {
		return err
	}
	metrics.IncStepStatus(string(domain.StepRunning))

	inputs := resolveInputs(step, wf, ec)

	var result map[string]any
	var err error
	if executor := e.lookupExecutor(step.Skill); executor != "" {
		result, err = e.runExternal(ctx, wf, step, executor, inputs)
	} else {
		result, err = e.runBuiltin(wf, step, inputs)
	}
	metrics.ObserveStepDuration(time.Since(started))
	if err != nil {
		return err
	}

	done := time.Now().UTC()
	step.Status = domain.StepCompleted
	step.CompletedAt = &done
	step.Outputs = result
	if saveErr := e.store.Save(wf); saveErr != nil {
		return saveErr
	}
	metrics.IncStepStatus(string(domain.StepCompleted))

	e.logger.Info("step completed", "workflow_id", wf.ID, "step_id", step.ID)
	return nil
}

// lookupExecutor resolves the executor script for a skill: the
// skill-specific scripts/execute under the skills dir, then a
// generically-named script under the scripts dir, else none.
func (e *Engine) lookupExecutor(skill string) string {
	candidates := []string{
		filepath.Join(e.skillsDir, filepath.FromSlash(skill), "scripts", "execute"),
		filepath.Join(e.skillsDir, filepath.FromSlash(skill), "scripts", "execute.py"),
		filepath.Join(e.scriptsDir, strings.ReplaceAll(skill, "/", "_")),
		filepath.Join(e.scriptsDir, strings.ReplaceAll(skill, "/", "_")+".py"),
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// runExternal spawns the executor subprocess bounded by the step
// timeout. Non-zero exit is a failure carrying captured stderr; a
// missing output file falls back to raw stdout wrapped in a status
// object.
func (e *Engine) runExternal(ctx context.Context, wf *domain.Workflow, step *domain.Step, executor string, inputs map[string]any) (map[string]any, error) {
	inputPath := e.store.StepInputPath(wf.ID, step.ID)
	payload, err := json.Marshal(stepPayload{Action: step.Action, Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal step input: %w", err)
	}
	if err := os.WriteFile(inputPath, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write step input: %w", err)
	}

	timeout := step.TimeoutDuration(e.defaultTimeout)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, executor, inputPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("executor timed out after %s", timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("executor failed: %s", strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("executor failed to start: %w", err)
	}

	outputPath := e.store.StepOutputPath(wf.ID, step.ID)
	if data, err := os.ReadFile(outputPath); err == nil {
		var result map[string]any
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("parse step output %s: %w", outputPath, err)
		}
		return result, nil
	}

	return map[string]any{
		"stdout": stdout.String(),
		"status": "completed",
	}, nil
}

// runBuiltin synthesizes the placeholder result used when no executor
// script exists for a skill, and records it as the step output file.
func (e *Engine) runBuiltin(wf *domain.Workflow, step *domain.Step, inputs map[string]any) (map[string]any, error) {
	e.logger.Info("using built-in executor",
		"workflow_id", wf.ID,
		"step_id", step.ID,
		"skill", step.Skill,
		"action", step.Action,
	)

	result := map[string]any{
		"skill":     step.Skill,
		"action":    step.Action,
		"inputs":    inputs,
		"status":    "completed",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal builtin result: %w", err)
	}
	if err := os.WriteFile(e.store.StepOutputPath(wf.ID, step.ID), data, 0o644); err != nil {
		return nil, fmt.Errorf("write builtin result: %w", err)
	}
	return result, nil
}
