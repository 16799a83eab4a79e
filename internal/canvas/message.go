// SPDX-License-Identifier: Apache-2.0

package canvas

import (
	"encoding/json"
	"time"

	"github.com/teamtenx/workflow-engine/internal/domain"
)

type MessageType string

const (
	TypeCreate   MessageType = "workflow:create"
	TypeCreated  MessageType = "workflow:created"
	TypeProgress MessageType = "workflow:progress"
	TypeComplete MessageType = "workflow:complete"
	TypeExport   MessageType = "workflow:export"
	TypeCancel   MessageType = "workflow:cancel"
)

// Envelope is the wire format shared with the canvas: a type
// discriminator plus a workflow_id correlation field.
type Envelope struct {
	Type       MessageType     `json:"type"`
	WorkflowID string          `json:"workflow_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type createData struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Steps       []domain.Step   `json:"steps"`
	SkillsUsed  []string        `json:"skills_used"`
	Metadata    domain.Metadata `json:"metadata"`
}

type progressData struct {
	CurrentStep     int    `json:"current_step"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
}

type completeData struct {
	Status  string         `json:"status"`
	Outputs domain.Outputs `json:"outputs"`
}

// Export carries the canvas approval payload; Steps, when present,
// overwrite the stored plan with the operator's edits.
type Export struct {
	Steps []domain.Step   `json:"steps"`
	Raw   json.RawMessage `json:"-"`
}
