// SPDX-License-Identifier: Apache-2.0

package canvas

import (
	"context"
	"time"

	"github.com/teamtenx/workflow-engine/internal/domain"
	"github.com/teamtenx/workflow-engine/internal/store"
)

// SyncForApproval pushes the workflow to the canvas and blocks on the
// approval gate. On export the workflow becomes approved (steps
// replaced by the operator's edits when present) and is persisted; a
// cancel or timeout leaves the document untouched and returns false.
func SyncForApproval(ctx context.Context, c *Client, st *store.Store, wf *domain.Workflow, timeout time.Duration) (bool, error) {
	if err := c.SendWorkflow(ctx, wf); err != nil {
		return false, err
	}

	export, err := c.WaitForExport(ctx, wf.ID, timeout)
	if err != nil {
		return false, err
	}
	if export == nil {
		return false, nil
	}

	if len(export.Steps) > 0 {
		wf.Steps = export.Steps
	}

	now := time.Now().UTC()
	wf.Canvas.Visualized = true
	wf.Canvas.ExportedAt = &now
	wf.Status = domain.WorkflowApproved

	if err := st.Save(wf); err != nil {
		return false, err
	}
	return true, nil
}
