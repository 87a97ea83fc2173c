// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/llmjson"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// AnalysisFailedNote is the timeline text of a fallback analysis.
const AnalysisFailedNote = "Analysis could not be parsed."

// Analyzer synthesizes retrieved papers into themes and question coverage.
type Analyzer struct {
	LLM    llm.Client
	Logger *zap.Logger
}

// NewAnalyzer returns an Analyzer over c.
func NewAnalyzer(c llm.Client, logger *zap.Logger) *Analyzer {
	return &Analyzer{LLM: c, Logger: orNop(logger)}
}

// Analyze runs over every unique paper in index (error markers dropped,
// first occurrence wins). The prompt shows at most three authors and
// categories and the first 500 characters of each abstract.
func (a *Analyzer) Analyze(ctx context.Context, index *types.PaperIndex, questions []types.ResearchQuestion) types.Analysis {
	papers := uniquePapers(index)
	raw := callLLM(ctx, a.LLM, analyzePromptTmpl, struct {
		Papers    []types.Paper
		Questions []types.ResearchQuestion
	}{papers, questions}, analyzerSystem)

	var analysis types.Analysis
	if !llmjson.Decode(raw, &analysis) {
		a.Logger.Warn("analyzer returned no structured analysis",
			zap.Int("papers", len(papers)), zap.Bool("llm_error", llm.IsError(raw)))
		return types.Analysis{
			ThematicClusters:     []types.ThematicCluster{},
			QuestionCoverage:     []types.QuestionCoverage{},
			TimelineTrends:       AnalysisFailedNote,
			CrossCuttingInsights: types.StringList{},
			Raw:                  raw,
		}
	}
	return analysis
}
