// SPDX-License-Identifier: Apache-2.0

// Package template builds draft workflow documents from free-text
// descriptions: it matches skills by keyword, generates clarification
// questions, and emits a dependency-ordered step chain.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/teamtenx/workflow-engine/internal/domain"
)

type keywordSkill struct {
	keyword string
	skill   string
}

// skillKeywords maps description keywords to skills. Order matters:
// skills are collected in table order, first match wins.
var skillKeywords = []keywordSkill{
	// Marketing
	{"content", "content-marketing"},
	{"blog", "content-marketing"},
	{"article", "content-marketing"},
	{"copy", "copywriting"},
	{"headline", "copywriting"},
	{"email", "email-marketing"},
	{"newsletter", "email-marketing"},
	{"seo", "seo-optimization"},
	{"keyword", "seo-optimization"},
	{"campaign", "campaign-management"},
	{"analytics", "analytics"},

	// Outreach
	{"outreach", "outreach/workflow-engine"},
	{"prospect", "outreach/discovery-engine"},
	{"linkedin", "outreach/linkedin-adapter"},
	{"twitter", "outreach/twitter-adapter"},
	{"instagram", "outreach/instagram-adapter"},

	// Landing page
	{"landing", "landing-page"},
	{"page", "landing-page"},
	{"website", "landing-page"},

	// Design
	{"design", "design"},
	{"visual", "design"},
	{"brand", "brand-guidelines"},
	{"logo", "design"},
	{"image", "ai-multimodal"},
	{"video", "ai-multimodal"},

	// Utility
	{"research", "research"},
	{"brainstorm", "brainstorming"},
	{"plan", "planning"},
}

const (
	defaultSkill = "planning"

	researchTimeoutSecs = 300
	skillTimeoutSecs    = 600
	outputTimeoutSecs   = 300

	researchRetries = 2
	skillRetries    = 2
	outputRetries   = 1
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Builder produces draft workflows. Output paths inside step templates
// are rooted at outputDir; nowFn is injectable for tests.
type Builder struct {
	outputDir string
	canvasURL string
	nowFn     func() time.Time
}

func NewBuilder(outputDir, canvasURL string, nowFn func() time.Time) *Builder {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Builder{outputDir: outputDir, canvasURL: canvasURL, nowFn: nowFn}
}

// IdentifySkills matches the keyword table against the description,
// case-insensitive substring, deduplicated in table order. Never
// returns an empty set: an unmatched description gets "planning".
func IdentifySkills(description string) []string {
	lower := strings.ToLower(description)

	var skills []string
	seen := make(map[string]bool)
	for _, ks := range skillKeywords {
		if strings.Contains(lower, ks.keyword) && !seen[ks.skill] {
			skills = append(skills, ks.skill)
			seen[ks.skill] = true
		}
	}

	if len(skills) == 0 {
		return []string{defaultSkill}
	}
	return skills
}

// WorkflowID generates the document identifier: timestamp plus a
// slugified name capped at 20 characters.
func WorkflowID(name string, ts time.Time) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	if len(slug) > 20 {
		slug = slug[:20]
	}
	return fmt.Sprintf("wf_%s_%s", ts.Format("20060102150405"), slug)
}

// buildQuestions emits the two universal clarification questions plus
// conditional ones keyed by the identified skills.
func buildQuestions(skills []string) []domain.Question {
	joined := strings.Join(skills, " ")
	next := 1

	add := func(qs []domain.Question, q domain.Question) []domain.Question {
		q.ID = fmt.Sprintf("q%d", next)
		next++
		return append(qs, q)
	}

	questions := add(nil, domain.Question{
		Question: "What is your target audience or ideal customer?",
		Type:     "text",
		Required: true,
	})
	questions = add(questions, domain.Question{
		Question: "What is the primary goal or conversion objective?",
		Type:     "text",
		Required: true,
	})

	if strings.Contains(joined, "outreach") {
		questions = add(questions, domain.Question{
			Question: "What platforms should be used for outreach? (LinkedIn, Twitter, Instagram, Email)",
			Type:     "text",
			Required: true,
		})
	}
	if strings.Contains(joined, "landing-page") {
		questions = add(questions, domain.Question{
			Question: "What tech stack do you prefer? (HTML, React, Next.js, Astro, Vue)",
			Type:     "text",
			Required: false,
			Default:  "HTML",
		})
	}
	if strings.Contains(joined, "design") || strings.Contains(joined, "brand") {
		questions = add(questions, domain.Question{
			Question: "Do you have existing brand guidelines? If yes, where are they located?",
			Type:     "text",
			Required: false,
		})
	}
	if strings.Contains(joined, "email-marketing") {
		questions = add(questions, domain.Question{
			Question: "How many emails should be in the sequence?",
			Type:     "number",
			Required: false,
			Default:  5,
		})
	}

	return questions
}

// buildSteps emits the step chain: an optional leading research step
// when more than two skills were identified, one step per non-planning
// skill chained on its predecessor, and a trailing output step that
// depends on everything before it. Ids are dense starting at 1.
func (b *Builder) buildSteps(skills []string, description string) []domain.Step {
	var steps []domain.Step
	stepID := 1

	if len(skills) > 2 {
		steps = append(steps, domain.Step{
			ID:     stepID,
			Name:   "Research & Planning",
			Skill:  "planning",
			Action: "analyze_requirements",
			Inputs: map[string]any{
				"description": description,
				"user_inputs": "{{user_inputs}}",
			},
			Outputs: map[string]any{
				"plan": fmt.Sprintf("%s/{{workflow_id}}/step%d_plan.json", b.outputDir, stepID),
			},
			DependsOn:  []int{},
			Timeout:    researchTimeoutSecs,
			RetryCount: researchRetries,
		})
		stepID++
	}

	for _, skill := range skills {
		if skill == defaultSkill {
			continue // covered by the research step
		}

		contextInput := "{{user_inputs}}"
		dependsOn := []int{}
		if stepID > 1 {
			contextInput = fmt.Sprintf("{{steps.%d.outputs}}", stepID-1)
			dependsOn = []int{stepID - 1}
		}

		steps = append(steps, domain.Step{
			ID:     stepID,
			Name:   skillDisplayName(skill),
			Skill:  skill,
			Action: "execute",
			Inputs: map[string]any{
				"context":     contextInput,
				"user_inputs": "{{user_inputs}}",
			},
			Outputs: map[string]any{
				"result": fmt.Sprintf("%s/{{workflow_id}}/step%d_output.json", b.outputDir, stepID),
			},
			DependsOn:  dependsOn,
			Timeout:    skillTimeoutSecs,
			RetryCount: skillRetries,
		})
		stepID++
	}

	dependsOnAll := make([]int, 0, stepID-1)
	for id := 1; id < stepID; id++ {
		dependsOnAll = append(dependsOnAll, id)
	}

	steps = append(steps, domain.Step{
		ID:     stepID,
		Name:   "Generate Outputs",
		Skill:  "workflow-engine",
		Action: "generate_outputs",
		Inputs: map[string]any{
			"all_steps": "{{steps}}",
			"formats":   []any{"pdf", "json"},
		},
		Outputs: map[string]any{
			"final": fmt.Sprintf("%s/{{workflow_id}}/final/", b.outputDir),
		},
		DependsOn:  dependsOnAll,
		Timeout:    outputTimeoutSecs,
		RetryCount: outputRetries,
	})

	return steps
}

// Build creates a complete draft workflow from a name and description.
func (b *Builder) Build(name, description string) *domain.Workflow {
	now := b.nowFn()
	id := WorkflowID(name, now)
	skills := IdentifySkills(description)
	questions := buildQuestions(skills)
	steps := b.buildSteps(skills, description)

	return &domain.Workflow{
		ID:          id,
		Name:        name,
		Description: description,
		Version:     "1.0.0",
		CreatedAt:   now,
		CreatedBy:   "orchestrator",
		Status:      domain.WorkflowDraft,
		Metadata: domain.Metadata{
			EstimatedDuration: fmt.Sprintf("%d minutes", len(steps)*5),
			SkillCount:        len(skills),
			StepCount:         len(steps),
			Autonomous:        true,
		},
		SkillsUsed: skills,
		UserInputs: domain.UserInputs{
			Questions: questions,
			Answers:   map[string]any{},
			Gathered:  false,
		},
		Steps: steps,
		Outputs: domain.Outputs{
			Directory: fmt.Sprintf("%s/%s", b.outputDir, id),
			Formats:   []string{"pdf", "json"},
			Files:     []string{},
		},
		Canvas: domain.Canvas{
			Visualized: false,
			URL:        b.canvasURL,
		},
	}
}

func skillDisplayName(skill string) string {
	name := strings.ReplaceAll(skill, "-", " ")
	name = strings.ReplaceAll(name, "/", " - ")
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
