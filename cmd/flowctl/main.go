// SPDX-License-Identifier: Apache-2.0

// Package main provides the flowctl CLI for creating, approving, and
// executing marketing workflows against a local output directory.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teamtenx/workflow-engine/internal/config"
	"github.com/teamtenx/workflow-engine/internal/domain"
	"github.com/teamtenx/workflow-engine/internal/logging"
	"github.com/teamtenx/workflow-engine/internal/store"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "flowctl",
	Short: "Create, approve, and execute marketing workflows",
	Long: `flowctl drives the workflow engine from the command line.

Workflows are JSON documents under the output directory. A typical
session:

  flowctl create "Launch" product launch campaign with emails
  flowctl sync output/workflows/<id>/workflow.json    # canvas approval
  flowctl run output/workflows/<id>/workflow.json
  flowctl export output/workflows/<id>/workflow.json

Configuration is read from the environment (OUTPUT_DIR, SKILLS_DIR,
CANVAS_WS_URL, DASHBOARD_URL, ...); every key has a local default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger = logging.NewLogger(cfg.Env)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dashboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

// workflowFromPath loads a workflow document and opens a store rooted
// at the output directory the document lives under.
func workflowFromPath(path string) (*domain.Workflow, *store.Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}

	wf, err := store.ReadDocument(abs)
	if err != nil {
		return nil, nil, err
	}

	// Layout is <root>/<workflow_id>/workflow.json.
	root := filepath.Dir(filepath.Dir(abs))
	return wf, store.New(root, logger), nil
}
