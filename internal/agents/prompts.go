// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// plannerSystem instructs the model to decompose a topic into questions
// and arXiv queries.
const plannerSystem = `You are a Research Planning Agent. Your role is to take a broad
research topic and decompose it into a structured research plan.

You must output valid JSON with the following schema:
{
  "main_topic": "string: the refined main topic",
  "research_questions": [
    {
      "id": "Q1",
      "question": "string: a specific research question",
      "category": "string: e.g. 'foundational', 'methodology', 'application', 'limitation', 'future_direction'",
      "priority": "high | medium | low"
    }
  ],
  "search_queries": [
    {
      "id": "S1",
      "query": "string: an arXiv search query (use arXiv query syntax)",
      "targets_questions": ["Q1", "Q2"],
      "rationale": "string: why this query is needed"
    }
  ],
  "scope_notes": "string: any scope boundaries or clarifications"
}

Generate 4-6 research questions and 3-5 search queries. Be specific and academic.
Use proper arXiv query syntax (e.g., ti:"transformer" AND abs:"attention").
`

const analyzerSystem = `You are a Research Analysis Agent. You receive a set of academic
papers (title + abstract) and a list of research questions.

Your job is to analyze the papers and produce a structured analysis. Output valid JSON:
{
  "thematic_clusters": [
    {
      "theme": "string: cluster theme name",
      "description": "string: what this theme covers",
      "paper_ids": ["arxiv_id_1", "arxiv_id_2"],
      "key_findings": ["string: finding 1", "string: finding 2"]
    }
  ],
  "question_coverage": [
    {
      "question_id": "Q1",
      "question_text": "string",
      "coverage_level": "well_covered | partially_covered | not_covered",
      "supporting_papers": ["arxiv_id_1"],
      "summary": "string: how the papers address this question"
    }
  ],
  "methodology_landscape": {
    "dominant_methods": ["string"],
    "emerging_methods": ["string"],
    "comparison_notes": "string"
  },
  "timeline_trends": "string: how the field has evolved based on publication dates",
  "cross_cutting_insights": ["string: insight that spans multiple clusters"]
}

Be thorough, academic, and evidence-based. Reference specific papers by their arxiv_id.
`

const criticSystem = `You are a Research Critic Agent. You evaluate the quality and
completeness of a literature review analysis.

Given the research plan (questions) and the analysis results, you must assess
how well the research covers the topic. Output valid JSON:
{
  "overall_coverage_score": 8,
  "dimension_scores": {
    "breadth": 7,
    "depth": 8,
    "recency": 9,
    "methodology_diversity": 6,
    "question_coverage": 8
  },
  "covered_well": ["string: aspect that is well covered"],
  "knowledge_gaps": [
    {
      "gap": "string: description of what is missing",
      "severity": "critical | moderate | minor",
      "suggested_query": "string: arXiv query to fill this gap"
    }
  ],
  "quality_issues": ["string: any quality concerns with the analysis"],
  "recommendation": "accept | iterate",
  "reasoning": "string: explain your assessment"
}

Score each dimension from 1-10. Set recommendation to 'iterate' if
overall_coverage_score < 7 or there are critical gaps.
Be rigorous but fair. A good literature review should cover foundational work,
recent advances, methodologies, applications, and limitations.
`

const reporterSystem = `You are a Research Report Generator Agent. You take the
complete research analysis and produce a structured, publication-quality
literature review in Markdown.

The report MUST follow this structure:

# Literature Review: {topic}

## Executive Summary
(3-4 sentence overview of the research landscape)

## 1. Introduction
(Context, motivation, scope of the review)

## 2. Methodology
(How papers were retrieved, how many, from which sources)

## 3. Thematic Analysis
### 3.1 Theme Name
(For each thematic cluster, discuss the papers and findings)

## 4. Research Question Coverage
(Map findings to each research question)

## 5. Methodological Landscape
(Dominant and emerging methods in the field)

## 6. Timeline & Trends
(How the field has evolved)

## 7. Knowledge Gaps & Future Directions
(What is missing, what should be studied next)

## 8. Conclusion
(Summary of key takeaways)

## References
(List all cited papers with full metadata)

Write in an academic but accessible style. Be specific and reference papers
by their titles and authors. Make the report comprehensive and insightful.
`

var promptFuncs = template.FuncMap{
	"json":    indentJSON,
	"compact": compactJSON,
	"clip":    clip,
	"authors": shortAuthors,
	"first3":  func(s []string) string { return strings.Join(firstN(s, 3), ", ") },
	"orElse":  orDefault,
}

var planPromptTmpl = template.Must(template.New("plan").Funcs(promptFuncs).Parse(
	`Create a comprehensive research plan for the following topic:

{{.Topic}}`))

var refinePromptTmpl = template.Must(template.New("refine").Funcs(promptFuncs).Parse(
	"You previously generated the following research plan:\n" +
		"```json\n{{json .Plan}}\n```\n\n" +
		"The Critic Agent identified the following knowledge gaps:\n" +
		"{{range $i, $g := .Gaps}}{{if $i}}\n{{end}}- {{$g}}{{end}}\n\n" +
		"Generate additional search queries to fill these gaps. " +
		"Return the COMPLETE updated plan (with new queries appended)."))

var analyzePromptTmpl = template.Must(template.New("analyze").Funcs(promptFuncs).Parse(
	`## Papers Retrieved ({{len .Papers}} total)

{{range $i, $p := .Papers}}{{if $i}}

{{end}}[{{$p.ArxivID}}] "{{$p.Title}}"
Authors: {{authors $p.Authors}}
Published: {{$p.PublishedDate}}
Categories: {{first3 $p.Categories}}
Abstract: {{clip $p.Abstract 500}}{{end}}

## Research Questions

{{range $i, $q := .Questions}}{{if $i}}
{{end}}- [{{$q.ID}}] {{$q.Question}} (category: {{orElse $q.Category "general"}}, priority: {{orElse $q.Priority "medium"}}){{end}}

Analyze these papers and produce the structured analysis.`))

var critiquePromptTmpl = template.Must(template.New("critique").Funcs(promptFuncs).Parse(
	`## Research Plan
Main Topic: {{orElse .Plan.MainTopic "Unknown"}}
Research Questions:
{{range $i, $q := .Plan.ResearchQuestions}}{{if $i}}
{{end}}- [{{$q.ID}}] {{$q.Question}}{{end}}

## Analysis Results (Iteration {{.Iteration}})
Thematic Clusters: {{len .Analysis.ThematicClusters}}
Question Coverage:
{{range $i, $c := .Analysis.QuestionCoverage}}{{if $i}}
{{end}}- [{{orElse $c.QuestionID "?"}}] {{orElse (print $c.CoverageLevel) "unknown"}}: {{clip (orElse $c.Summary "N/A") 200}}{{end}}
Methodology Landscape: {{compact .Analysis.MethodologyLandscape}}
Cross-cutting Insights: {{len .Analysis.CrossCuttingInsights}}

Iteration: {{.Iteration}}

Evaluate the coverage and identify gaps.`))

var reportPromptTmpl = template.Must(template.New("report").Funcs(promptFuncs).Parse(
	"## Topic: {{orElse .Plan.MainTopic \"Research Topic\"}}\n\n" +
		"## Research Plan\n```json\n{{json .Plan}}\n```\n\n" +
		"## Analysis\n```json\n{{json .Analysis}}\n```\n\n" +
		"## Critic Evaluation\n```json\n{{json .Critique}}\n```\n\n" +
		"## Papers Retrieved ({{len .Papers}} total)\n" +
		"{{range $i, $p := .Papers}}{{if $i}}\n{{end}}" +
		"- [{{$p.ArxivID}}] {{first3 $p.Authors}}. \"{{$p.Title}}\". arXiv:{{$p.ArxivID}}, {{$p.PublishedDate}}.{{end}}\n\n" +
		"## Metadata\n" +
		"- Total iterations: {{.Meta.Iterations}}\n" +
		"- Total papers found: {{.Meta.TotalPapers}}\n" +
		"- Final coverage score: {{.Critique.OverallCoverageScore}}/10\n\n" +
		"Generate the full literature review report in Markdown."))

// render executes tmpl with data.
func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func indentJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func compactJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// clip truncates s to at most n characters.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// shortAuthors lists up to three authors and marks the rest with "...".
func shortAuthors(authors []string) string {
	s := strings.Join(firstN(authors, 3), ", ")
	if len(authors) > 3 {
		s += "..."
	}
	return s
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// uniquePapers is the paper list shown to the analyzer and reporter.
func uniquePapers(index *types.PaperIndex) []types.Paper {
	if papers := index.Unique(); papers != nil {
		return papers
	}
	return []types.Paper{}
}

type promptTemplate = *template.Template

// callLLM renders the prompt and sends it. A template failure is reported
// the same way as a failed request.
func callLLM(ctx context.Context, c llm.Client, tmpl promptTemplate, data any, system string) string {
	prompt, err := render(tmpl, data)
	if err != nil {
		return llm.ErrorPrefix + "rendering prompt: " + err.Error()
	}
	return llm.Call(ctx, c, prompt, system)
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
