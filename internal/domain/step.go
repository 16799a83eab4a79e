package domain

import "time"

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step is one unit of work in a workflow, bound to a skill and an
// action. Ids are assigned densely starting at 1 in declaration order;
// DependsOn references only lower ids. Input values may contain
// deferred template expressions resolved at execution time.
type Step struct {
	ID         int            `json:"step_id"`
	Name       string         `json:"name"`
	Skill      string         `json:"skill"`
	Action     string         `json:"action"`
	Inputs     map[string]any `json:"inputs"`
	Outputs    map[string]any `json:"outputs"`
	DependsOn  []int          `json:"depends_on"`
	Timeout    int            `json:"timeout"`
	RetryCount int            `json:"retry_count"`

	Status      StepStatus `json:"status,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// TimeoutDuration returns the step timeout as a duration, falling back
// to fallbackSeconds when the step declares none.
func (s *Step) TimeoutDuration(fallbackSeconds int) time.Duration {
	secs := s.Timeout
	if secs <= 0 {
		secs = fallbackSeconds
	}
	return time.Duration(secs) * time.Second
}
