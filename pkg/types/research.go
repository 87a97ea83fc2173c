package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ResearchQuestion is one sub-question of a research plan.
type ResearchQuestion struct {
	// ID is the question identifier (e.g. "Q1").
	ID string `json:"id" yaml:"id"`

	Question string `json:"question" yaml:"question"`

	// Category is a free-form label such as "foundational" or "methodology".
	// Empty is rendered as "general".
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Priority is "high", "medium", or "low". Empty is rendered as "medium".
	Priority string `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// SearchQuery is one arXiv query of a research plan.
type SearchQuery struct {
	// ID is the query identifier (e.g. "S1"). Empty is stored as "unknown".
	ID string `json:"id" yaml:"id"`

	// Query is passed verbatim to the feed as search_query.
	Query string `json:"query" yaml:"query"`

	TargetsQuestions []string `json:"targets_questions,omitempty" yaml:"targets_questions,omitempty"`
	Rationale        string   `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// ResearchPlan is the planner's decomposition of a topic.
type ResearchPlan struct {
	MainTopic         string             `json:"main_topic"`
	ResearchQuestions []ResearchQuestion `json:"research_questions"`
	SearchQueries     []SearchQuery      `json:"search_queries"`
	ScopeNotes        string             `json:"scope_notes"`

	// Raw holds the unparsed model output when the plan is a fallback.
	Raw string `json:"_raw,omitempty"`
}

// IsEmpty reports whether the plan carries no topic, questions, or queries.
func (p ResearchPlan) IsEmpty() bool {
	return p.MainTopic == "" && len(p.ResearchQuestions) == 0 && len(p.SearchQueries) == 0
}

// CoverageLevel grades how well the papers answer a research question.
type CoverageLevel string

const (
	CoverageWell      CoverageLevel = "well_covered"
	CoveragePartially CoverageLevel = "partially_covered"
	CoverageNone      CoverageLevel = "not_covered"
)

// ThematicCluster groups papers that share a theme.
type ThematicCluster struct {
	Theme       string     `json:"theme"`
	Description string     `json:"description"`
	PaperIDs    []string   `json:"paper_ids"`
	KeyFindings StringList `json:"key_findings"`
}

// QuestionCoverage maps one research question to the papers that address it.
type QuestionCoverage struct {
	QuestionID       string        `json:"question_id"`
	QuestionText     string        `json:"question_text"`
	CoverageLevel    CoverageLevel `json:"coverage_level"`
	SupportingPapers []string      `json:"supporting_papers"`
	Summary          string        `json:"summary"`
}

// MethodologyLandscape summarizes the methods used across the papers.
type MethodologyLandscape struct {
	DominantMethods StringList `json:"dominant_methods,omitempty"`
	EmergingMethods StringList `json:"emerging_methods,omitempty"`
	ComparisonNotes string     `json:"comparison_notes,omitempty"`
}

// IsZero reports whether no methodology information is present.
func (m MethodologyLandscape) IsZero() bool {
	return len(m.DominantMethods) == 0 && len(m.EmergingMethods) == 0 && m.ComparisonNotes == ""
}

// Analysis is the analyzer's synthesis of the retrieved papers.
type Analysis struct {
	ThematicClusters     []ThematicCluster    `json:"thematic_clusters"`
	QuestionCoverage     []QuestionCoverage   `json:"question_coverage"`
	MethodologyLandscape MethodologyLandscape `json:"methodology_landscape"`
	TimelineTrends       string               `json:"timeline_trends"`
	CrossCuttingInsights StringList           `json:"cross_cutting_insights"`

	// Raw holds the unparsed model output when the analysis is a fallback.
	Raw string `json:"_raw,omitempty"`
}

// Severity grades a knowledge gap.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// KnowledgeGap is one missing area reported by the critic.
type KnowledgeGap struct {
	Gap            string   `json:"gap"`
	Severity       Severity `json:"severity"`
	SuggestedQuery string   `json:"suggested_query,omitempty"`
}

// Recommendation is the critic's verdict on the current iteration.
type Recommendation string

const (
	RecommendAccept  Recommendation = "accept"
	RecommendIterate Recommendation = "iterate"
)

// Score is a 1-10 rating from the critic. Models sometimes emit scores as
// strings or fractional numbers, so decoding accepts a JSON number or a
// numeric string and floors the value. Out-of-range values are kept as-is;
// anything that is not a number, such as "N/A", decodes as zero.
type Score int

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*s = 0
		return nil
	}
	*s = Score(math.Floor(f))
	return nil
}

// StringList is a list of strings that also decodes from a single string
// or from an array holding non-string values. Any other JSON decodes as an
// empty list.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		if one = strings.TrimSpace(one); one == "" {
			*l = StringList{}
		} else {
			*l = StringList{one}
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		*l = nil
		return nil
	}
	out := make(StringList, 0, len(items))
	for _, item := range items {
		var str string
		if json.Unmarshal(item, &str) == nil {
			out = append(out, str)
			continue
		}
		out = append(out, string(bytes.TrimSpace(item)))
	}
	*l = out
	return nil
}

// CriticEvaluation is the critic's assessment of an analysis.
type CriticEvaluation struct {
	OverallCoverageScore Score            `json:"overall_coverage_score"`
	DimensionScores      map[string]Score `json:"dimension_scores"`
	CoveredWell          StringList       `json:"covered_well"`
	KnowledgeGaps        []KnowledgeGap   `json:"knowledge_gaps"`
	QualityIssues        StringList       `json:"quality_issues"`
	Recommendation       Recommendation   `json:"recommendation"`
	Reasoning            string           `json:"reasoning"`
}

// RefinementGaps returns the descriptions of critical and moderate gaps in
// the order the critic listed them.
func (e CriticEvaluation) RefinementGaps() []string {
	var gaps []string
	for _, g := range e.KnowledgeGaps {
		if g.Severity == SeverityCritical || g.Severity == SeverityModerate {
			gaps = append(gaps, g.Gap)
		}
	}
	return gaps
}

// RunMetadata summarizes a finished refinement loop for the report.
type RunMetadata struct {
	Iterations  int `json:"iterations"`
	TotalPapers int `json:"total_papers"`
}
