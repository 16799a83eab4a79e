// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"github.com/teamtenx/workflow-engine/internal/domain"
)

type WorkflowStore interface {
	Load(id string) (*domain.Workflow, error)
	List() ([]*domain.Workflow, error)
	Save(wf *domain.Workflow) error
}

type WorkflowBuilder interface {
	Build(name, description string) *domain.Workflow
}
