// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/llmjson"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Fallback values of an unparseable critic response. The fallback accepts
// so that a broken critic cannot keep the loop iterating.
const (
	FallbackScore     types.Score = 5
	CriticFailedIssue             = "Could not parse critic evaluation."
)

// Critic scores an analysis against the plan and lists knowledge gaps.
type Critic struct {
	LLM    llm.Client
	Logger *zap.Logger
}

// NewCritic returns a Critic over c.
func NewCritic(c llm.Client, logger *zap.Logger) *Critic {
	return &Critic{LLM: c, Logger: orNop(logger)}
}

// Evaluate sends a digest of plan and analysis for the given iteration.
// Scores are taken as returned, without range checks.
func (c *Critic) Evaluate(ctx context.Context, plan types.ResearchPlan, analysis types.Analysis, iteration int) types.CriticEvaluation {
	raw := callLLM(ctx, c.LLM, critiquePromptTmpl, struct {
		Plan      types.ResearchPlan
		Analysis  types.Analysis
		Iteration int
	}{plan, analysis, iteration}, criticSystem)

	var eval types.CriticEvaluation
	if !llmjson.Decode(raw, &eval) {
		c.Logger.Warn("critic returned no structured evaluation",
			zap.Int("iteration", iteration), zap.Bool("llm_error", llm.IsError(raw)))
		return types.CriticEvaluation{
			OverallCoverageScore: FallbackScore,
			DimensionScores:      map[string]types.Score{},
			CoveredWell:          types.StringList{},
			KnowledgeGaps:        []types.KnowledgeGap{},
			QualityIssues:        types.StringList{CriticFailedIssue},
			Recommendation:       types.RecommendAccept,
			Reasoning:            raw,
		}
	}
	return eval
}
