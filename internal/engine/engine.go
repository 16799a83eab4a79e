// SPDX-License-Identifier: Apache-2.0

// Package engine executes approved workflows: strictly sequential
// steps, one external subprocess per step, bounded retries, and a
// disk flush after every state transition.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teamtenx/workflow-engine/internal/domain"
	"github.com/teamtenx/workflow-engine/internal/metrics"
	"github.com/teamtenx/workflow-engine/internal/store"
)

// Notifier receives workflow lifecycle events. Implementations are
// best-effort: they must not block execution or surface errors.
type Notifier interface {
	WorkflowProgress(ctx context.Context, wf *domain.Workflow, step *domain.Step)
	WorkflowCompleted(ctx context.Context, wf *domain.Workflow)
	WorkflowFailed(ctx context.Context, wf *domain.Workflow, step *domain.Step, cause error)
}

type Deps struct {
	Store      *store.Store
	Logger     *slog.Logger
	SkillsDir  string
	ScriptsDir string
	// DefaultStepTimeoutSecs bounds steps that declare no timeout.
	DefaultStepTimeoutSecs int
	Notifiers              []Notifier
}

type Engine struct {
	store          *store.Store
	logger         *slog.Logger
	skillsDir      string
	scriptsDir     string
	defaultTimeout int
	notifiers      []Notifier
}

func New(deps Deps) *Engine {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	timeout := deps.DefaultStepTimeoutSecs
	if timeout <= 0 {
		timeout = 600
	}

	return &Engine{
		store:          deps.Store,
		logger:         l,
		skillsDir:      deps.SkillsDir,
		scriptsDir:     deps.ScriptsDir,
		defaultTimeout: timeout,
		notifiers:      deps.Notifiers,
	}
}

// validate refuses to run anything that is not exactly approved with
// gathered inputs, and rejects dependency graphs that are not a
// backward-referencing chain, all before any mutation.
func (e *Engine) validate(wf *domain.Workflow) error {
	if wf.Status != domain.WorkflowApproved {
		return fmt.Errorf("%w: status is %q", domain.ErrNotApproved, wf.Status)
	}
	if !wf.UserInputs.Gathered {
		return domain.ErrInputsNotGathered
	}

	known := make(map[int]bool, len(wf.Steps))
	for _, step := range wf.Steps {
		for _, dep := range step.DependsOn {
			if dep >= step.ID || !known[dep] {
				return fmt.Errorf("%w: step %d depends on %d", domain.ErrDependencyOrder, step.ID, dep)
			}
		}
		known[step.ID] = true
	}
	return nil
}

// Execute runs the workflow to completion or first unrecoverable step
// failure. The persisted document always reflects the latest known
// state, even if the process is killed mid-run.
func (e *Engine) Execute(ctx context.Context, wf *domain.Workflow) error {
	if err := e.validate(wf); err != nil {
		return err
	}

	e.logger.Info("starting workflow execution",
		"workflow_id", wf.ID,
		"name", wf.Name,
		"steps", len(wf.Steps),
	)

	now := time.Now().UTC()
	wf.Status = domain.WorkflowExecuting
	wf.Execution.StartedAt = &now
	wf.Execution.Error = ""
	if err := e.store.Save(wf); err != nil {
		return err
	}
	metrics.IncWorkflowStatus(string(domain.WorkflowExecuting))

	ec := newExecutionContext(wf)
	completed := 0

	for i := range wf.Steps {
		step := &wf.Steps[i]

		// Steps are generated in dependency order; execution is
		// strictly sequential, so every dependency has already run.
		for _, dep := range step.DependsOn {
			e.logger.Debug("dependency satisfied", "step_id", step.ID, "depends_on", dep)
		}

		if err := e.runStep(ctx, wf, step, ec); err != nil {
			e.logger.Error("workflow failed",
				"workflow_id", wf.ID,
				"step_id", step.ID,
				"error", err,
			)

			wf.Status = domain.WorkflowFailed
			wf.Execution.Error = err.Error()
			if saveErr := e.store.Save(wf); saveErr != nil {
				e.logger.Error("persist failed workflow state", "workflow_id", wf.ID, "error", saveErr)
			}
			metrics.IncWorkflowStatus(string(domain.WorkflowFailed))

			for _, n := range e.notifiers {
				n.WorkflowFailed(ctx, wf, step, err)
			}
			return fmt.Errorf("step %d (%s): %w", step.ID, step.Name, err)
		}

		ec.stepOutputs[step.ID] = step.Outputs
		completed++

		current := step.ID
		wf.Execution.CurrentStep = &current
		wf.Execution.ProgressPercent = completed * 100 / len(wf.Steps)
		if err := e.store.Save(wf); err != nil {
			return err
		}

		for _, n := range e.notifiers {
			n.WorkflowProgress(ctx, wf, step)
		}
	}

	done := time.Now().UTC()
	wf.Status = domain.WorkflowCompleted
	wf.Execution.CompletedAt = &done
	wf.Execution.ProgressPercent = 100
	if err := e.store.Save(wf); err != nil {
		return err
	}
	metrics.IncWorkflowStatus(string(domain.WorkflowCompleted))

	for _, n := range e.notifiers {
		n.WorkflowCompleted(ctx, wf)
	}

	e.logger.Info("workflow execution completed",
		"workflow_id", wf.ID,
		"output_dir", e.store.Dir(wf.ID),
	)
	return nil
}
