// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/teamtenx/workflow-engine/internal/domain"
)

var stepRefPattern = regexp.MustCompile(`\{\{steps\.(\d+)\.outputs\}\}`)

// executionContext accumulates the outputs of completed steps plus the
// operator answers, for deferred-expression resolution by later steps.
type executionContext struct {
	workflowID  string
	userInputs  map[string]any
	stepOutputs map[int]map[string]any
}

func newExecutionContext(wf *domain.Workflow) *executionContext {
	answers := wf.UserInputs.Answers
	if answers == nil {
		answers = map[string]any{}
	}
	return &executionContext{
		workflowID:  wf.ID,
		userInputs:  answers,
		stepOutputs: make(map[int]map[string]any),
	}
}

// resolveTemplate substitutes deferred expressions in a step input
// value: {{user_inputs}} becomes the answers as JSON, {{workflow_id}}
// the document id, and {{steps.N.outputs}} the outputs of step N as
// JSON (the accumulated result when step N completed, otherwise its
// declared output mapping). A value with no expressions passes through
// unchanged.
func resolveTemplate(value string, wf *domain.Workflow, ec *executionContext) string {
	result := value

	if strings.Contains(result, "{{user_inputs}}") {
		encoded, err := json.Marshal(ec.userInputs)
		if err == nil {
			result = strings.ReplaceAll(result, "{{user_inputs}}", string(encoded))
		}
	}

	result = strings.ReplaceAll(result, "{{workflow_id}}", ec.workflowID)

	for _, match := range stepRefPattern.FindAllStringSubmatch(result, -1) {
		id, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		outputs, ok := ec.stepOutputs[id]
		if !ok {
			for i := range wf.Steps {
				if wf.Steps[i].ID == id && wf.Steps[i].Outputs != nil {
					outputs = wf.Steps[i].Outputs
					break
				}
			}
		}
		if outputs == nil {
			continue
		}

		encoded, err := json.Marshal(outputs)
		if err != nil {
			continue
		}
		result = strings.ReplaceAll(result, match[0], string(encoded))
	}

	return result
}

// resolveInputs resolves every string-valued input of a step. Non-string
// values pass through untouched.
func resolveInputs(step *domain.Step, wf *domain.Workflow, ec *executionContext) map[string]any {
	resolved := make(map[string]any, len(step.Inputs))
	for key, value := range step.Inputs {
		if s, ok := value.(string); ok {
			resolved[key] = resolveTemplate(s, wf, ec)
		} else {
			resolved[key] = value
		}
	}
	return resolved
}
