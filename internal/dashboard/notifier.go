// SPDX-License-Identifier: Apache-2.0

package dashboard

import (
	"context"

	"github.com/teamtenx/workflow-engine/internal/domain"
)

// Notifier pushes execution progress to the dashboard. All calls are
// best-effort; a failed result only produces a log line.
type Notifier struct {
	client *Client
}

func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) WorkflowProgress(ctx context.Context, wf *domain.Workflow, step *domain.Step) {
	res := n.client.UpdateStatus(ctx, wf.ID, string(wf.Status), map[string]any{
		"current_step":     step.ID,
		"step_status":      step.Status,
		"progress_percent": wf.Execution.ProgressPercent,
	})
	if !res.Success {
		n.client.logger.Warn("dashboard progress update failed", "workflow_id", wf.ID, "error", res.Error)
	}
}

func (n *Notifier) WorkflowCompleted(ctx context.Context, wf *domain.Workflow) {
	if res := n.client.UpdateStatus(ctx, wf.ID, string(domain.WorkflowCompleted), nil); !res.Success {
		n.client.logger.Warn("dashboard completion update failed", "workflow_id", wf.ID, "error", res.Error)
		return
	}
	n.client.Notify(ctx, "Workflow completed", wf.Name+" finished successfully", "success")
}

func (n *Notifier) WorkflowFailed(ctx context.Context, wf *domain.Workflow, step *domain.Step, cause error) {
	if res := n.client.UpdateStatus(ctx, wf.ID, string(domain.WorkflowFailed), map[string]any{
		"failed_step": step.ID,
		"error":       cause.Error(),
	}); !res.Success {
		n.client.logger.Warn("dashboard failure update failed", "workflow_id", wf.ID, "error", res.Error)
		return
	}
	n.client.Notify(ctx, "Workflow failed", wf.Name+": "+cause.Error(), "error")
}
