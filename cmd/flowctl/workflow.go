// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teamtenx/workflow-engine/internal/canvas"
	"github.com/teamtenx/workflow-engine/internal/dashboard"
	"github.com/teamtenx/workflow-engine/internal/domain"
	"github.com/teamtenx/workflow-engine/internal/engine"
	"github.com/teamtenx/workflow-engine/internal/export"
	"github.com/teamtenx/workflow-engine/internal/store"
	"github.com/teamtenx/workflow-engine/internal/template"
)

var createAnswers []string

var createCmd = &cobra.Command{
	Use:   "create <name> <description...>",
	Short: "Create a draft workflow from a description",
	Long: `Create builds a draft workflow document: skills are identified
from the description, input questions are generated, and the step
chain is laid out. The draft is written under the output directory.

Answers can be recorded immediately with repeated --answer flags:

  flowctl create "Launch" email campaign --answer q1="developers"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringArrayVar(&createAnswers, "answer", nil, "Answer to an input question, key=value (repeatable)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	description := strings.Join(args[1:], " ")

	builder := template.NewBuilder(cfg.OutputDir, cfg.CanvasURL, nil)
	wf := builder.Build(name, description)

	if len(createAnswers) > 0 {
		answers := make(map[string]any, len(createAnswers))
		for _, raw := range createAnswers {
			key, value, ok := strings.Cut(raw, "=")
			if !ok {
				return fmt.Errorf("invalid --answer %q, want key=value", raw)
			}
			answers[key] = value
		}
		wf.UserInputs.Answers = answers
		wf.UserInputs.Gathered = true
	}

	st := store.New(cfg.OutputDir, logger)
	if err := st.Save(wf); err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}

	fmt.Printf("Created workflow %s\n", wf.ID)
	fmt.Printf("Document: %s\n", st.Path(wf.ID))
	fmt.Printf("Skills: %s\n", strings.Join(wf.SkillsUsed, ", "))
	if !wf.UserInputs.Gathered {
		fmt.Println("Questions to answer before execution:")
		for _, q := range wf.UserInputs.Questions {
			fmt.Printf("  %s: %s\n", q.ID, q.Question)
		}
	}
	return nil
}

var syncCmd = &cobra.Command{
	Use:   "sync <workflow.json>",
	Short: "Send a draft to the canvas and wait for approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, st, err := workflowFromPath(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := canvas.NewClient(cfg.CanvasWSURL, logger)
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("connect canvas: %w", err)
		}
		defer client.Close()

		approved, err := canvas.SyncForApproval(ctx, client, st, wf, cfg.ApprovalTimeout)
		if err != nil {
			return fmt.Errorf("canvas sync: %w", err)
		}
		if !approved {
			return fmt.Errorf("workflow %s was not approved", wf.ID)
		}

		fmt.Printf("Workflow %s approved (%d steps)\n", wf.ID, len(wf.Steps))
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <workflow.json>",
	Short: "Approve a draft without a canvas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, st, err := workflowFromPath(args[0])
		if err != nil {
			return err
		}
		if wf.Status != domain.WorkflowDraft {
			return fmt.Errorf("workflow %s is %s, not draft", wf.ID, wf.Status)
		}

		wf.Status = domain.WorkflowApproved
		if err := st.Save(wf); err != nil {
			return fmt.Errorf("save workflow: %w", err)
		}

		fmt.Printf("Workflow %s approved\n", wf.ID)
		return nil
	},
}

var runCanvasProgress bool

var runCmd = &cobra.Command{
	Use:   "run <workflow.json>",
	Short: "Execute an approved workflow",
	Long: `Run executes the steps of an approved workflow in order,
persisting the document after every state change. Progress is mirrored
to the dashboard; pass --canvas to also stream progress to a connected
canvas.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecuteWorkflow,
}

func init() {
	runCmd.Flags().BoolVar(&runCanvasProgress, "canvas", false, "Stream progress to the canvas")
}

func runExecuteWorkflow(cmd *cobra.Command, args []string) error {
	wf, st, err := workflowFromPath(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifiers := []engine.Notifier{
		dashboard.NewNotifier(dashboard.NewClient(cfg.DashboardURL, logger)),
	}

	if runCanvasProgress {
		client := canvas.NewClient(cfg.CanvasWSURL, logger)
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("connect canvas: %w", err)
		}
		defer client.Close()
		notifiers = append(notifiers, canvas.NewNotifier(client, logger))
	}

	eng := engine.New(engine.Deps{
		Store:                  st,
		Logger:                 logger,
		SkillsDir:              cfg.SkillsDir,
		ScriptsDir:             cfg.ScriptsDir,
		DefaultStepTimeoutSecs: cfg.StepTimeoutSecs,
		Notifiers:              notifiers,
	})

	if err := eng.Execute(ctx, wf); err != nil {
		if errors.Is(err, domain.ErrNotApproved) || errors.Is(err, domain.ErrInputsNotGathered) {
			return fmt.Errorf("workflow %s is not ready to run: %w", wf.ID, err)
		}
		return fmt.Errorf("execution failed: %w", err)
	}

	fmt.Printf("Workflow %s completed (%d steps)\n", wf.ID, len(wf.Steps))
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export <workflow.json>",
	Short: "Compile step outputs into final_output.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, st, err := workflowFromPath(args[0])
		if err != nil {
			return err
		}

		path, err := export.CompileJSON(wf, st.Dir(wf.ID))
		if err != nil {
			return err
		}

		fmt.Printf("Exported %s\n", path)
		return nil
	},
}
