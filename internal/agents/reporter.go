// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Reporter writes the final literature review.
type Reporter struct {
	LLM    llm.Client
	Logger *zap.Logger
}

// NewReporter returns a Reporter over c.
func NewReporter(c llm.Client, logger *zap.Logger) *Reporter {
	return &Reporter{LLM: c, Logger: orNop(logger)}
}

// GenerateReport embeds the plan, analysis, and critique as JSON together
// with a deduplicated reference list and returns the model's Markdown as
// is. A failed call yields the error text, which becomes the report.
func (r *Reporter) GenerateReport(ctx context.Context, plan types.ResearchPlan, analysis types.Analysis,
	critique types.CriticEvaluation, index *types.PaperIndex, meta types.RunMetadata) string {
	papers := uniquePapers(index)
	report := callLLM(ctx, r.LLM, reportPromptTmpl, struct {
		Plan     types.ResearchPlan
		Analysis types.Analysis
		Critique types.CriticEvaluation
		Papers   []types.Paper
		Meta     types.RunMetadata
	}{plan, analysis, critique, papers, meta}, reporterSystem)

	if llm.IsError(report) {
		r.Logger.Warn("report generation failed", zap.String("error", report))
	}
	return report
}
