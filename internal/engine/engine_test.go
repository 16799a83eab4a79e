// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teamtenx/workflow-engine/internal/domain"
	"github.com/teamtenx/workflow-engine/internal/logging"
	"github.com/teamtenx/workflow-engine/internal/store"
)

type recordingNotifier struct {
	progress  []int
	completed bool
	failed    bool
	failedAt  int
}

func (r *recordingNotifier) WorkflowProgress(ctx context.Context, wf *domain.Workflow, step *domain.Step) {
	r.progress = append(r.progress, step.ID)
}

func (r *recordingNotifier) WorkflowCompleted(ctx context.Context, wf *domain.Workflow) {
	r.completed = true
}

func (r *recordingNotifier) WorkflowFailed(ctx context.Context, wf *domain.Workflow, step *domain.Step, cause error) {
	r.failed = true
	r.failedAt = step.ID
}

type testRig struct {
	engine   *Engine
	store    *store.Store
	scripts  string
	notifier *recordingNotifier
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	root := t.TempDir()
	scripts := t.TempDir()
	st := store.New(root, logging.Discard())
	notifier := &recordingNotifier{}
	eng := New(Deps{
		Store:      st,
		Logger:     logging.Discard(),
		SkillsDir:  filepath.Join(root, "no-skills"),
		ScriptsDir: scripts,
		Notifiers:  []Notifier{notifier},
	})
	return &testRig{engine: eng, store: st, scripts: scripts, notifier: notifier}
}

// writeScript installs an executable script for a skill under the
// generic scripts dir.
func (r *testRig) writeScript(t *testing.T, skill, body string) {
	t.Helper()
	name := strings.ReplaceAll(skill, "/", "_")
	path := filepath.Join(r.scripts, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func approvedWorkflow(id string, steps []domain.Step) *domain.Workflow {
	return &domain.Workflow{
		ID:      id,
		Name:    "Test",
		Version: "1.0.0",
		Status:  domain.WorkflowApproved,
		UserInputs: domain.UserInputs{
			Answers:  map[string]any{"q1": "founders"},
			Gathered: true,
		},
		Steps: steps,
	}
}

func TestExecuteRefusesUnapproved(t *testing.T) {
	rig := newTestRig(t)
	wf := approvedWorkflow("wf_draft", nil)
	wf.Status = domain.WorkflowDraft

	err := rig.engine.Execute(context.Background(), wf)
	if !errors.Is(err, domain.ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	// Refusal must not mutate anything on disk.
	if _, err := os.Stat(rig.store.Path(wf.ID)); !os.IsNotExist(err) {
		t.Fatal("refused workflow must not be persisted")
	}
}

func TestExecuteRefusesUngatheredInputs(t *testing.T) {
	rig := newTestRig(t)
	wf := approvedWorkflow("wf_nogather", nil)
	wf.UserInputs.Gathered = false

	if err := rig.engine.Execute(context.Background(), wf); !errors.Is(err, domain.ErrInputsNotGathered) {
		t.Fatalf("expected ErrInputsNotGathered, got %v", err)
	}
}

func TestExecuteRefusesForwardDependency(t *testing.T) {
	rig := newTestRig(t)
	wf := approvedWorkflow("wf_forward", []domain.Step{
		{ID: 1, Skill: "copywriting", DependsOn: []int{2}},
		{ID: 2, Skill: "copywriting", DependsOn: []int{1}},
	})

	if err := rig.engine.Execute(context.Background(), wf); !errors.Is(err, domain.ErrDependencyOrder) {
		t.Fatalf("expected ErrDependencyOrder, got %v", err)
	}
}

func TestExecuteBuiltinFallback(t *testing.T) {
	rig := newTestRig(t)
	wf := approvedWorkflow("wf_builtin", []domain.Step{
		{ID: 1, Name: "Plan", Skill: "planning", Action: "analyze_requirements",
			Inputs: map[string]any{"context": "{{user_inputs}}"}, RetryCount: 1},
	})

	if err := rig.engine.Execute(context.Background(), wf); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if wf.Status != domain.WorkflowCompleted {
		t.Fatalf("expected completed, got %s", wf.Status)
	}
	step := wf.Steps[0]
	if step.Status != domain.StepCompleted {
		t.Fatalf("expected step completed, got %s", step.Status)
	}
	if step.Outputs["skill"] != "planning" || step.Outputs["status"] != "completed" {
		t.Fatalf("unexpected builtin outputs: %v", step.Outputs)
	}

	// The placeholder result is also recorded as the step output file.
	if _, err := os.Stat(rig.store.StepOutputPath(wf.ID, 1)); err != nil {
		t.Fatalf("expected step output file: %v", err)
	}
}

func TestExecuteExternalScriptOutputFile(t *testing.T) {
	rig := newTestRig(t)
	rig.writeScript(t, "copywriting",
		`dir=$(dirname "$1"); printf '{"headline":"Ship faster"}' > "$dir/step1_output.json"`)

	wf := approvedWorkflow("wf_ext", []domain.Step{
		{ID: 1, Name: "Copy", Skill: "copywriting", Action: "execute",
			Inputs: map[string]any{"context": "{{user_inputs}}"}, Timeout: 30},
	})

	if err := rig.engine.Execute(context.Background(), wf); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if wf.Steps[0].Outputs["headline"] != "Ship faster" {
		t.Fatalf("expected outputs from result file, got %v", wf.Steps[0].Outputs)
	}

	// The executor received the {action, inputs} payload file.
	data, err := os.ReadFile(rig.store.StepInputPath(wf.ID, 1))
	if err != nil {
		t.Fatalf("expected step input file: %v", err)
	}
	if !strings.Contains(string(data), `"action":"execute"`) {
		t.Fatalf("unexpected input payload: %s", data)
	}
}

func TestExecuteExternalStdoutFallback(t *testing.T) {
	rig := newTestRig(t)
	rig.writeScript(t, "copywriting", `printf 'raw output'`)

	wf := approvedWorkflow("wf_stdout", []domain.Step{
		{ID: 1, Name: "Copy", Skill: "copywriting", Action: "execute", Timeout: 30},
	})

	if err := rig.engine.Execute(context.Background(), wf); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	out := wf.Steps[0].Outputs
	if out["stdout"] != "raw output" || out["status"] != "completed" {
		t.Fatalf("expected stdout fallback, got %v", out)
	}
}

func TestRetryExhaustionPersistsFailure(t *testing.T) {
	rig := newTestRig(t)
	attempts := filepath.Join(rig.scripts, "attempts.log")
	rig.writeScript(t, "copywriting",
		fmt.Sprintf(`echo attempt >> %s; echo "boom" >&2; exit 1`, attempts))

	wf := approvedWorkflow("wf_retry", []domain.Step{
		{ID: 1, Name: "Copy", Skill: "copywriting", Action: "execute",
			Timeout: 30, RetryCount: 2},
	})

	err := rig.engine.Execute(context.Background(), wf)
	if err == nil {
		t.Fatal("expected execution failure")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected stderr in error, got %v", err)
	}

	data, readErr := os.ReadFile(attempts)
	if readErr != nil {
		t.Fatalf("read attempts log: %v", readErr)
	}
	if got := strings.Count(string(data), "attempt"); got != 3 {
		t.Fatalf("expected exactly 3 attempts (retry_count=2), got %d", got)
	}

	// Final persisted document: retry budget spent, step and workflow failed.
	persisted, loadErr := rig.store.Load(wf.ID)
	if loadErr != nil {
		t.Fatalf("load persisted: %v", loadErr)
	}
	if persisted.Status != domain.WorkflowFailed {
		t.Fatalf("expected failed workflow, got %s", persisted.Status)
	}
	step := persisted.Steps[0]
	if step.RetryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", step.RetryCount)
	}
	if step.Status != domain.StepFailed {
		t.Fatalf("expected failed step, got %s", step.Status)
	}
	if step.Error == "" {
		t.Fatal("expected error recorded on step")
	}
	if persisted.Execution.Error == "" {
		t.Fatal("expected error recorded on execution")
	}
}

func TestMidWorkflowFailureHaltsImmediately(t *testing.T) {
	rig := newTestRig(t)
	rig.writeScript(t, "copywriting",
		`dir=$(dirname "$1"); printf '{"ok":true}' > "$dir/step1_output.json"`)
	rig.writeScript(t, "email-marketing", `echo "smtp down" >&2; exit 1`)

	wf := approvedWorkflow("wf_halt", []domain.Step{
		{ID: 1, Name: "Copy", Skill: "copywriting", Action: "execute", Timeout: 30},
		{ID: 2, Name: "Email", Skill: "email-marketing", Action: "execute",
			DependsOn: []int{1}, Timeout: 30, RetryCount: 1},
		{ID: 3, Name: "Outputs", Skill: "workflow-engine", Action: "generate_outputs",
			DependsOn: []int{1, 2}, Timeout: 30},
	})

	if err := rig.engine.Execute(context.Background(), wf); err == nil {
		t.Fatal("expected execution failure")
	}

	persisted, err := rig.store.Load(wf.ID)
	if err != nil {
		t.Fatalf("load persisted: %v", err)
	}
	if persisted.Status != domain.WorkflowFailed {
		t.Fatalf("expected failed workflow, got %s", persisted.Status)
	}
	if persisted.Steps[0].Status != domain.StepCompleted {
		t.Fatalf("expected step 1 completed, got %s", persisted.Steps[0].Status)
	}
	if persisted.Steps[1].Status != domain.StepFailed {
		t.Fatalf("expected step 2 failed, got %s", persisted.Steps[1].Status)
	}
	if s := persisted.Steps[2].Status; s != "" && s != domain.StepPending {
		t.Fatalf("expected step 3 never started, got %s", s)
	}

	if !rig.notifier.failed || rig.notifier.failedAt != 2 {
		t.Fatalf("expected failure notification for step 2, got %+v", rig.notifier)
	}
}

func TestExecuteTimeout(t *testing.T) {
	rig := newTestRig(t)
	rig.writeScript(t, "copywriting", `sleep 5`)

	wf := approvedWorkflow("wf_timeout", []domain.Step{
		{ID: 1, Name: "Copy", Skill: "copywriting", Action: "execute", Timeout: 1},
	})

	err := rig.engine.Execute(context.Background(), wf)
	if err == nil {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestProgressAndCompletion(t *testing.T) {
	rig := newTestRig(t)
	wf := approvedWorkflow("wf_progress", []domain.Step{
		{ID: 1, Name: "One", Skill: "planning", Action: "execute"},
		{ID: 2, Name: "Two", Skill: "planning", Action: "execute", DependsOn: []int{1}},
	})

	if err := rig.engine.Execute(context.Background(), wf); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if wf.Execution.ProgressPercent != 100 {
		t.Fatalf("expected 100%% progress, got %d", wf.Execution.ProgressPercent)
	}
	if wf.Execution.StartedAt == nil || wf.Execution.CompletedAt == nil {
		t.Fatal("expected execution timestamps")
	}
	if wf.Execution.CurrentStep == nil || *wf.Execution.CurrentStep != 2 {
		t.Fatalf("expected current step 2, got %v", wf.Execution.CurrentStep)
	}

	if len(rig.notifier.progress) != 2 || !rig.notifier.completed {
		t.Fatalf("expected progress per step and completion, got %+v", rig.notifier)
	}

	// Later steps see earlier outputs through the execution context.
	persisted, err := rig.store.Load(wf.ID)
	if err != nil {
		t.Fatalf("load persisted: %v", err)
	}
	if persisted.Steps[1].Status != domain.StepCompleted {
		t.Fatalf("expected step 2 completed, got %s", persisted.Steps[1].Status)
	}
}

func TestLookupExecutorPrecedence(t *testing.T) {
	root := t.TempDir()
	skills := filepath.Join(root, "skills")
	scripts := filepath.Join(root, "scripts")
	for _, dir := range []string{filepath.Join(skills, "copywriting", "scripts"), scripts} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	eng := New(Deps{
		Store:      store.New(root, logging.Discard()),
		Logger:     logging.Discard(),
		SkillsDir:  skills,
		ScriptsDir: scripts,
	})

	if got := eng.lookupExecutor("copywriting"); got != "" {
		t.Fatalf("expected no executor yet, got %s", got)
	}

	generic := filepath.Join(scripts, "copywriting")
	if err := os.WriteFile(generic, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := eng.lookupExecutor("copywriting"); got != generic {
		t.Fatalf("expected generic script, got %s", got)
	}

	specific := filepath.Join(skills, "copywriting", "scripts", "execute")
	if err := os.WriteFile(specific, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := eng.lookupExecutor("copywriting"); got != specific {
		t.Fatalf("expected skill-specific executor to win, got %s", got)
	}

	// Slash-bearing skills map to underscore-joined generic scripts.
	nested := filepath.Join(scripts, "outreach_linkedin-adapter.py")
	if err := os.WriteFile(nested, []byte("#!/usr/bin/env python3\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := eng.lookupExecutor("outreach/linkedin-adapter"); got != nested {
		t.Fatalf("expected underscored generic script, got %s", got)
	}
}
