// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// --- fakes ---

type fakeLLM struct {
	mu      sync.Mutex
	respond func(prompt, system string) (string, error)
	prompts []string
	systems []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt, system string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, system)
	f.mu.Unlock()
	return f.respond(prompt, system)
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) lastPrompt(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.prompts)
	return f.prompts[len(f.prompts)-1]
}

func replying(text string) *fakeLLM {
	return &fakeLLM{respond: func(string, string) (string, error) { return text, nil }}
}

func failing(msg string) *fakeLLM {
	return &fakeLLM{respond: func(string, string) (string, error) { return "", errors.New(msg) }}
}

type fakeSource struct {
	results map[string][]types.Paper
	errs    map[string]error
	queries []string
}

func (s *fakeSource) Search(_ context.Context, query string) ([]types.Paper, error) {
	s.queries = append(s.queries, query)
	if err := s.errs[query]; err != nil {
		return nil, err
	}
	return s.results[query], nil
}

func paper(id string) types.Paper {
	return types.Paper{ArxivID: id, Title: "Paper " + id, Authors: []string{"A. Author"}}
}

// --- Planner ---

const planJSON = `{
  "main_topic": "Graph neural networks for drug discovery",
  "research_questions": [
    {"id": "Q1", "question": "Which GNN architectures are used?", "category": "methodology", "priority": "high"}
  ],
  "search_queries": [
    {"id": "S1", "query": "abs:\"graph neural network\" AND abs:drug", "targets_questions": ["Q1"], "rationale": "core"}
  ],
  "scope_notes": "2018 onwards"
}`

func TestPlannerPlan(t *testing.T) {
	f := replying("Here is the plan:\n```json\n" + planJSON + "\n```")
	plan := NewPlanner(f, nil).Plan(context.Background(), "GNNs for drugs")

	assert.Equal(t, "Graph neural networks for drug discovery", plan.MainTopic)
	require.Len(t, plan.SearchQueries, 1)
	assert.Equal(t, []string{"Q1"}, plan.SearchQueries[0].TargetsQuestions)
	assert.Empty(t, plan.Raw)

	assert.Contains(t, f.lastPrompt(t), "Create a comprehensive research plan for the following topic:\n\nGNNs for drugs")
	assert.Equal(t, plannerSystem, f.systems[0])
}

func TestPlannerPlanFallback(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
		raw  string
	}{
		{"prose", replying("I cannot help with that."), "I cannot help with that."},
		{"llm error", failing("quota exceeded"), "[LLM Error]: quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := NewPlanner(tt.llm, nil).Plan(context.Background(), "quantum error correction")
			assert.Equal(t, "quantum error correction", plan.MainTopic)
			assert.Empty(t, plan.ResearchQuestions)
			assert.Empty(t, plan.SearchQueries)
			assert.Equal(t, PlanFailedNote, plan.ScopeNotes)
			assert.Equal(t, tt.raw, plan.Raw)
		})
	}
}

func TestPlannerRefine(t *testing.T) {
	original := types.ResearchPlan{
		MainTopic:     "topic",
		SearchQueries: []types.SearchQuery{{ID: "S1", Query: "q1"}},
	}

	t.Run("uses the refined plan", func(t *testing.T) {
		f := replying(`{"main_topic": "topic", "search_queries": [{"id": "S1", "query": "q1"}, {"id": "S2", "query": "q2"}]}`)
		got := NewPlanner(f, nil).Refine(context.Background(), original, []string{"no clinical trials", "no benchmarks"})

		require.Len(t, got.SearchQueries, 2)
		assert.Equal(t, "S2", got.SearchQueries[1].ID)

		prompt := f.lastPrompt(t)
		assert.True(t, strings.HasPrefix(prompt, "You previously generated the following research plan:\n```json\n{\n  \"main_topic\": \"topic\""))
		assert.Contains(t, prompt, "knowledge gaps:\n- no clinical trials\n- no benchmarks\n\n")
		assert.Contains(t, prompt, "Return the COMPLETE updated plan (with new queries appended).")
	})

	t.Run("empty gaps still calls the model and keeps the plan on garbage", func(t *testing.T) {
		f := replying("Sorry, nothing to add.")
		got := NewPlanner(f, nil).Refine(context.Background(), original, nil)

		assert.Equal(t, original, got)
		assert.Len(t, f.prompts, 1)
	})

	t.Run("empty object keeps the plan", func(t *testing.T) {
		got := NewPlanner(replying("{}"), nil).Refine(context.Background(), original, []string{"gap"})
		assert.Equal(t, original, got)
	})

	t.Run("llm error keeps the plan", func(t *testing.T) {
		got := NewPlanner(failing("timeout"), nil).Refine(context.Background(), original, []string{"gap"})
		assert.Equal(t, original, got)
	})
}

// --- Retriever ---

func TestRetrieverSearch(t *testing.T) {
	src := &fakeSource{
		results: map[string][]types.Paper{
			"q1": {paper("A"), paper("B")},
			"q2": {paper("B"), paper("C")},
		},
		errs: map[string]error{"q3": errors.New("connection reset")},
	}
	r := NewRetriever(src, 0, nil)

	index := r.Search(context.Background(), []types.SearchQuery{
		{ID: "S1", Query: "q1"},
		{ID: "S2", Query: "q2"},
		{ID: "S3", Query: "q3"},
		{Query: "q4"},
	})

	assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, src.queries)
	assert.Equal(t, []string{"S1", "S2", "S3", UnknownQueryID}, index.Keys())

	s2, _ := index.Get("S2")
	require.Len(t, s2, 1, "B was already returned for S1")
	assert.Equal(t, "C", s2[0].ArxivID)

	s3, _ := index.Get("S3")
	require.Len(t, s3, 1)
	assert.True(t, s3[0].IsError())
	assert.Equal(t, "connection reset", s3[0].Error)
	assert.Equal(t, "q3", s3[0].Query)

	unknown, ok := index.Get(UnknownQueryID)
	assert.True(t, ok)
	assert.Empty(t, unknown)

	// 2 + 1 + 1 error marker + 0.
	assert.Equal(t, 4, r.TotalPaperCount(index))
}

func TestRetrieverDelayHonorsContext(t *testing.T) {
	src := &fakeSource{results: map[string][]types.Paper{"q1": {paper("A")}}}
	r := NewRetriever(src, time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	index := r.Search(ctx, []types.SearchQuery{{ID: "S1", Query: "q1"}, {ID: "S2", Query: "q2"}})

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, []string{"q1"}, src.queries, "first query runs without delay")
	assert.Equal(t, []string{"S1"}, index.Keys())
}

func TestRetrieverTotalPaperCountOrderInvariant(t *testing.T) {
	a := types.NewPaperIndex()
	a.Set("S1", []types.Paper{paper("A"), paper("B")})
	a.Set("S2", []types.Paper{paper("B")})
	a.Set("S3", []types.Paper{})

	b := types.NewPaperIndex()
	b.Set("S3", []types.Paper{})
	b.Set("S2", []types.Paper{paper("B")})
	b.Set("S1", []types.Paper{paper("A"), paper("B")})

	r := &Retriever{}
	assert.Equal(t, 3, r.TotalPaperCount(a))
	assert.Equal(t, r.TotalPaperCount(a), r.TotalPaperCount(b))
}

// --- Analyzer ---

func TestAnalyzerPrompt(t *testing.T) {
	long := strings.Repeat("x", 600)
	index := types.NewPaperIndex()
	index.Set("S1", []types.Paper{{
		ArxivID:    "2401.00001v1",
		Title:      "Message passing for molecules",
		Authors:    []string{"Ada", "Ben", "Cy", "Dee"},
		Abstract:   long,
		Published:  time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		Categories: []string{"cs.LG", "q-bio.BM", "stat.ML", "cs.AI"},
	}})
	index.Set("S2", []types.Paper{{Error: "boom", Query: "q"}})

	f := replying(`{"thematic_clusters": [{"theme": "MPNN", "paper_ids": ["2401.00001v1"]}], "timeline_trends": "growing"}`)
	analysis := NewAnalyzer(f, nil).Analyze(context.Background(), index, []types.ResearchQuestion{
		{ID: "Q1", Question: "Which architectures?"},
		{ID: "Q2", Question: "Which datasets?", Category: "application", Priority: "low"},
	})

	require.Len(t, analysis.ThematicClusters, 1)
	assert.Equal(t, "growing", analysis.TimelineTrends)

	prompt := f.lastPrompt(t)
	assert.True(t, strings.HasPrefix(prompt, "## Papers Retrieved (1 total)\n\n[2401.00001v1] \"Message passing for molecules\"\n"))
	assert.Contains(t, prompt, "Authors: Ada, Ben, Cy...\n")
	assert.Contains(t, prompt, "Published: 2024-01-02\n")
	assert.Contains(t, prompt, "Categories: cs.LG, q-bio.BM, stat.ML\n")
	assert.Contains(t, prompt, "Abstract: "+strings.Repeat("x", 500)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", 501))
	assert.Contains(t, prompt, "- [Q1] Which architectures? (category: general, priority: medium)\n")
	assert.Contains(t, prompt, "- [Q2] Which datasets? (category: application, priority: low)")
	assert.True(t, strings.HasSuffix(prompt, "Analyze these papers and produce the structured analysis."))
	assert.NotContains(t, prompt, "boom")
}

func TestAnalyzerFallback(t *testing.T) {
	analysis := NewAnalyzer(failing("503"), nil).Analyze(context.Background(), types.NewPaperIndex(), nil)

	assert.Empty(t, analysis.ThematicClusters)
	assert.Empty(t, analysis.QuestionCoverage)
	assert.Empty(t, analysis.CrossCuttingInsights)
	assert.Equal(t, AnalysisFailedNote, analysis.TimelineTrends)
	assert.Equal(t, "[LLM Error]: 503", analysis.Raw)
}

// --- Critic ---

func TestCriticEvaluate(t *testing.T) {
	f := replying("```json\n" + `{
		"overall_coverage_score": "6",
		"dimension_scores": {"breadth": 7, "depth": 5.5},
		"knowledge_gaps": [
			{"gap": "clinical validation", "severity": "critical", "suggested_query": "abs:clinical"},
			{"gap": "older work", "severity": "minor"}
		],
		"recommendation": "iterate",
		"reasoning": "thin"
	}` + "\n```")

	plan := types.ResearchPlan{
		MainTopic:         "GNNs",
		ResearchQuestions: []types.ResearchQuestion{{ID: "Q1", Question: "Which architectures?"}},
	}
	analysis := types.Analysis{
		ThematicClusters: []types.ThematicCluster{{Theme: "a"}, {Theme: "b"}},
		QuestionCoverage: []types.QuestionCoverage{
			{QuestionID: "Q1", CoverageLevel: types.CoveragePartially, Summary: strings.Repeat("s", 250)},
			{},
		},
		CrossCuttingInsights: []string{"i1"},
	}

	eval := NewCritic(f, nil).Evaluate(context.Background(), plan, analysis, 2)

	assert.Equal(t, types.Score(6), eval.OverallCoverageScore)
	assert.Equal(t, types.Score(5), eval.DimensionScores["depth"])
	assert.Equal(t, types.RecommendIterate, eval.Recommendation)
	assert.Equal(t, []string{"clinical validation"}, eval.RefinementGaps())

	prompt := f.lastPrompt(t)
	assert.True(t, strings.HasPrefix(prompt, "## Research Plan\nMain Topic: GNNs\nResearch Questions:\n- [Q1] Which architectures?\n\n"))
	assert.Contains(t, prompt, "## Analysis Results (Iteration 2)\nThematic Clusters: 2\n")
	assert.Contains(t, prompt, "- [Q1] partially_covered: "+strings.Repeat("s", 200)+"\n")
	assert.Contains(t, prompt, "- [?] unknown: N/A\n")
	assert.Contains(t, prompt, "Methodology Landscape: {}\n")
	assert.Contains(t, prompt, "Cross-cutting Insights: 1\n\nIteration: 2\n\nEvaluate the coverage and identify gaps.")
}

func TestCriticDoesNotClamp(t *testing.T) {
	eval := NewCritic(replying(`{"overall_coverage_score": 42, "recommendation": "iterate"}`), nil).
		Evaluate(context.Background(), types.ResearchPlan{}, types.Analysis{}, 1)
	assert.Equal(t, types.Score(42), eval.OverallCoverageScore)
}

func TestCriticFallback(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"prose", "The coverage looks fine overall."},
		{"only a citation list", "See papers [1] and [2]."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := NewCritic(replying(tt.text), nil).Evaluate(context.Background(), types.ResearchPlan{}, types.Analysis{}, 1)
			assert.Equal(t, FallbackScore, eval.OverallCoverageScore)
			assert.Equal(t, types.RecommendAccept, eval.Recommendation)
			assert.Equal(t, types.StringList{CriticFailedIssue}, eval.QualityIssues)
			assert.Empty(t, eval.KnowledgeGaps)
			assert.Equal(t, tt.text, eval.Reasoning)
		})
	}
}

func TestCriticKeepsVerdictDespiteStrayFields(t *testing.T) {
	const gaps = `"knowledge_gaps": [{"gap": "clinical validation", "severity": "critical"}]`
	tests := []struct {
		name      string
		text      string
		wantScore types.Score
	}{
		{
			name:      "citation preamble",
			text:      `Based on papers [1] and [2], here is my evaluation: {"overall_coverage_score": 3, "recommendation": "iterate", ` + gaps + `}`,
			wantScore: 3,
		},
		{
			name:      "non-numeric dimension score",
			text:      `{"overall_coverage_score": 3, "dimension_scores": {"recency": "N/A", "breadth": 4}, "recommendation": "iterate", ` + gaps + `}`,
			wantScore: 3,
		},
		{
			name:      "covered_well as a string",
			text:      `{"overall_coverage_score": 3, "covered_well": "foundations", "recommendation": "iterate", ` + gaps + `}`,
			wantScore: 3,
		},
		{
			name:      "quality_issues as an object",
			text:      `{"overall_coverage_score": 3, "quality_issues": {"note": "x"}, "recommendation": "iterate", ` + gaps + `}`,
			wantScore: 3,
		},
		{
			name:      "non-numeric overall score",
			text:      `{"overall_coverage_score": "high", "recommendation": "iterate", ` + gaps + `}`,
			wantScore: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := NewCritic(replying(tt.text), nil).Evaluate(context.Background(), types.ResearchPlan{}, types.Analysis{}, 1)
			assert.Equal(t, tt.wantScore, eval.OverallCoverageScore)
			assert.Equal(t, types.RecommendIterate, eval.Recommendation)
			assert.Equal(t, []string{"clinical validation"}, eval.RefinementGaps())
			assert.NotContains(t, eval.QualityIssues, CriticFailedIssue)
		})
	}
}

func TestCriticStringCoveredWell(t *testing.T) {
	eval := NewCritic(replying(`{"covered_well": "foundations", "dimension_scores": {"recency": "N/A", "breadth": 4}, "recommendation": "iterate"}`), nil).
		Evaluate(context.Background(), types.ResearchPlan{}, types.Analysis{}, 1)
	assert.Equal(t, types.StringList{"foundations"}, eval.CoveredWell)
	assert.Equal(t, types.Score(0), eval.DimensionScores["recency"])
	assert.Equal(t, types.Score(4), eval.DimensionScores["breadth"])
}

// --- Reporter ---

func TestReporterGenerateReport(t *testing.T) {
	index := types.NewPaperIndex()
	index.Set("S1", []types.Paper{{
		ArxivID:   "2401.00001v1",
		Title:     "MPNN",
		Authors:   []string{"Ada", "Ben", "Cy", "Dee"},
		Published: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}})
	index.Set("S2", []types.Paper{{ArxivID: "2401.00001v1", Title: "MPNN"}, {Error: "x"}})

	f := replying("# Literature Review: GNNs\n")
	report := NewReporter(f, nil).GenerateReport(context.Background(),
		types.ResearchPlan{MainTopic: "GNNs"},
		types.Analysis{TimelineTrends: "growing"},
		types.CriticEvaluation{OverallCoverageScore: 8, Recommendation: types.RecommendAccept},
		index,
		types.RunMetadata{Iterations: 2, TotalPapers: 3})

	assert.Equal(t, "# Literature Review: GNNs", report)

	prompt := f.lastPrompt(t)
	assert.True(t, strings.HasPrefix(prompt, "## Topic: GNNs\n\n## Research Plan\n```json\n{\n"))
	assert.Contains(t, prompt, "## Papers Retrieved (1 total)\n- [2401.00001v1] Ada, Ben, Cy. \"MPNN\". arXiv:2401.00001v1, 2024-01-02.\n\n")
	assert.Contains(t, prompt, "- Total iterations: 2\n- Total papers found: 3\n- Final coverage score: 8/10\n")
	assert.Contains(t, prompt, `"timeline_trends": "growing"`)
	assert.Equal(t, reporterSystem, f.systems[0])
}

func TestReporterPassesErrorThrough(t *testing.T) {
	report := NewReporter(failing("quota"), nil).GenerateReport(context.Background(),
		types.ResearchPlan{}, types.Analysis{}, types.CriticEvaluation{}, nil, types.RunMetadata{})
	assert.True(t, llm.IsError(report))
	assert.Equal(t, "[LLM Error]: quota", report)
}
