// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamtenx/workflow-engine/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Mirror workflow state to the marketing dashboard",
}

var notifyType string

func init() {
	notifyCmd.Flags().StringVar(&notifyType, "type", "info", "Notification type (info, success, warning, error)")

	dashboardCmd.AddCommand(pushCmd)
	dashboardCmd.AddCommand(getCmd)
	dashboardCmd.AddCommand(listCmd)
	dashboardCmd.AddCommand(statusCmd)
	dashboardCmd.AddCommand(assetsCmd)
	dashboardCmd.AddCommand(notifyCmd)
}

func dashClient() *dashboard.Client {
	return dashboard.NewClient(cfg.DashboardURL, logger)
}

func printResult(res dashboard.Result) error {
	if !res.Success {
		return errors.New(res.Error)
	}
	if len(res.Data) > 0 {
		fmt.Println(string(res.Data))
	} else {
		fmt.Println("ok")
	}
	return nil
}

var pushCmd = &cobra.Command{
	Use:   "push <workflow.json>",
	Short: "Create or refresh the workflow record on the dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, _, err := workflowFromPath(args[0])
		if err != nil {
			return err
		}
		return printResult(dashClient().PushWorkflow(context.Background(), wf))
	},
}

var getCmd = &cobra.Command{
	Use:   "get <workflow-id>",
	Short: "Fetch a workflow record from the dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(dashClient().GetWorkflow(context.Background(), args[0]))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflow records on the dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(dashClient().ListWorkflows(context.Background()))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id> <status>",
	Short: "Update a workflow's status on the dashboard",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(dashClient().UpdateStatus(context.Background(), args[0], args[1], nil))
	},
}

var assetsCmd = &cobra.Command{
	Use:   "assets <workflow.json>",
	Short: "Register a workflow's output files as dashboard assets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, st, err := workflowFromPath(args[0])
		if err != nil {
			return err
		}
		return printResult(dashClient().SyncAssets(context.Background(), wf.ID, st.Dir(wf.ID)))
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify <title> <message...>",
	Short: "Post a notification to the dashboard",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := args[1]
		for _, part := range args[2:] {
			message += " " + part
		}
		return printResult(dashClient().Notify(context.Background(), args[0], message, notifyType))
	},
}
