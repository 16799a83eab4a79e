package domain

import "time"

type WorkflowStatus string

const (
	WorkflowDraft     WorkflowStatus = "draft"
	WorkflowApproved  WorkflowStatus = "approved"
	WorkflowExecuting WorkflowStatus = "executing"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// Workflow is the persisted workflow document. The JSON file on disk is
// the sole source of truth; it is rewritten after every mutation.
type Workflow struct {
	ID          string         `json:"workflow_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	CreatedBy   string         `json:"created_by"`
	Status      WorkflowStatus `json:"status"`
	Metadata    Metadata       `json:"metadata"`
	SkillsUsed  []string       `json:"skills_used"`
	UserInputs  UserInputs     `json:"user_inputs"`
	Steps       []Step         `json:"steps"`
	Outputs     Outputs        `json:"outputs"`
	Canvas      Canvas         `json:"canvas"`
	Execution   Execution      `json:"execution"`
}

type Metadata struct {
	EstimatedDuration string `json:"estimated_duration"`
	SkillCount        int    `json:"skill_count"`
	StepCount         int    `json:"step_count"`
	Autonomous        bool   `json:"autonomous"`
}

type Question struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// UserInputs carries the clarification questions generated by the
// builder and the operator-supplied answers keyed by question id.
// Execution refuses to start until Gathered is set.
type UserInputs struct {
	Questions []Question     `json:"questions"`
	Answers   map[string]any `json:"answers"`
	Gathered  bool           `json:"gathered"`
}

type Outputs struct {
	Directory string   `json:"directory"`
	Formats   []string `json:"formats"`
	Files     []string `json:"files"`
}

type Canvas struct {
	Visualized bool       `json:"visualized"`
	ExportedAt *time.Time `json:"exported_at"`
	URL        string     `json:"canvas_url"`
}

type Execution struct {
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CurrentStep     *int       `json:"current_step"`
	ProgressPercent int        `json:"progress_percent"`
	Error           string     `json:"error,omitempty"`
}
