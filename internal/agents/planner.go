// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agents holds the five role-specific prompting stages of a
// research session. Each agent formats domain data into a prompt, makes
// one LLM call, and interprets the response. None of them return errors:
// unusable model output is replaced by a defined fallback value.
package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/llmjson"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// PlanFailedNote is the scope note of a fallback plan.
const PlanFailedNote = "Failed to generate structured plan."

// Planner decomposes a topic into research questions and arXiv queries.
type Planner struct {
	LLM    llm.Client
	Logger *zap.Logger
}

// NewPlanner returns a Planner over c.
func NewPlanner(c llm.Client, logger *zap.Logger) *Planner {
	return &Planner{LLM: c, Logger: orNop(logger)}
}

// Plan asks the model for a research plan. When the response holds no
// usable plan the result keeps the topic, has no questions or queries, and
// carries the raw response.
func (p *Planner) Plan(ctx context.Context, topic string) types.ResearchPlan {
	raw := p.call(ctx, planPromptTmpl, struct{ Topic string }{topic})

	var plan types.ResearchPlan
	if !llmjson.Decode(raw, &plan) {
		p.Logger.Warn("planner returned no structured plan", zap.Bool("llm_error", llm.IsError(raw)))
		return types.ResearchPlan{
			MainTopic:         topic,
			ResearchQuestions: []types.ResearchQuestion{},
			SearchQueries:     []types.SearchQuery{},
			ScopeNotes:        PlanFailedNote,
			Raw:               raw,
		}
	}
	return plan
}

// Refine shows the model its earlier plan and the gaps the critic found and
// asks for the complete plan with new queries appended. The model is
// trusted to keep the earlier content. When the response holds no usable
// plan, original is returned unchanged. The call is made even when gaps is
// empty.
func (p *Planner) Refine(ctx context.Context, original types.ResearchPlan, gaps []string) types.ResearchPlan {
	raw := p.call(ctx, refinePromptTmpl, struct {
		Plan types.ResearchPlan
		Gaps []string
	}{original, gaps})

	var plan types.ResearchPlan
	if !llmjson.Decode(raw, &plan) || plan.IsEmpty() {
		p.Logger.Warn("planner refinement unusable, keeping plan", zap.Bool("llm_error", llm.IsError(raw)))
		return original
	}
	return plan
}

func (p *Planner) call(ctx context.Context, tmpl promptTemplate, data any) string {
	return callLLM(ctx, p.LLM, tmpl, data, plannerSystem)
}
