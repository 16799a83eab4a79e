// SPDX-License-Identifier: Apache-2.0

package canvas

import (
	"context"
	"log/slog"

	"github.com/teamtenx/workflow-engine/internal/domain"
)

// Notifier adapts the canvas client to the engine's lifecycle hooks.
// Delivery is best-effort: a dead canvas only produces log lines.
type Notifier struct {
	client *Client
	logger *slog.Logger
}

func NewNotifier(client *Client, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, logger: logger}
}

func (n *Notifier) WorkflowProgress(ctx context.Context, wf *domain.Workflow, step *domain.Step) {
	if err := n.client.UpdateProgress(wf.ID, step.ID, string(step.Status), wf.Execution.ProgressPercent); err != nil {
		n.logger.Warn("canvas progress update failed", "workflow_id", wf.ID, "error", err)
	}
}

func (n *Notifier) WorkflowCompleted(ctx context.Context, wf *domain.Workflow) {
	if err := n.client.SendCompletion(wf.ID, wf.Outputs); err != nil {
		n.logger.Warn("canvas completion notice failed", "workflow_id", wf.ID, "error", err)
	}
}

func (n *Notifier) WorkflowFailed(ctx context.Context, wf *domain.Workflow, step *domain.Step, cause error) {
	if err := n.client.UpdateProgress(wf.ID, step.ID, string(domain.StepFailed), wf.Execution.ProgressPercent); err != nil {
		n.logger.Warn("canvas failure notice failed", "workflow_id", wf.ID, "error", err)
	}
}
