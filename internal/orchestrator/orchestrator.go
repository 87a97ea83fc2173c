// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator drives a research session through planning, a
// bounded retrieve/analyze/critique loop, and report generation.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/agents"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Defaults for zero OrchestratorConfig fields.
const (
	DefaultMaxIterations    = 3
	DefaultMinCoverageScore = 7
)

// Planner produces and refines research plans.
type Planner interface {
	Plan(ctx context.Context, topic string) types.ResearchPlan
	Refine(ctx context.Context, original types.ResearchPlan, gaps []string) types.ResearchPlan
}

// Retriever runs a plan's search queries.
type Retriever interface {
	Search(ctx context.Context, queries []types.SearchQuery) *types.PaperIndex
	TotalPaperCount(index *types.PaperIndex) int
}

// Analyzer synthesizes the accumulated papers.
type Analyzer interface {
	Analyze(ctx context.Context, index *types.PaperIndex, questions []types.ResearchQuestion) types.Analysis
}

// Critic scores an analysis.
type Critic interface {
	Evaluate(ctx context.Context, plan types.ResearchPlan, analysis types.Analysis, iteration int) types.CriticEvaluation
}

// Reporter writes the final report.
type Reporter interface {
	GenerateReport(ctx context.Context, plan types.ResearchPlan, analysis types.Analysis,
		critique types.CriticEvaluation, index *types.PaperIndex, meta types.RunMetadata) string
}

// Agents is the set of stages a session runs.
type Agents struct {
	Planner   Planner
	Retriever Retriever
	Analyzer  Analyzer
	Critic    Critic
	Reporter  Reporter
}

// NewAgents wires the standard agents to one LLM client and one paper source.
func NewAgents(c llm.Client, src agents.PaperSource, requestDelay time.Duration, logger *zap.Logger) Agents {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Agents{
		Planner:   agents.NewPlanner(c, logger.Named("planner")),
		Retriever: agents.NewRetriever(src, requestDelay, logger.Named("retriever")),
		Analyzer:  agents.NewAnalyzer(c, logger.Named("analyzer")),
		Critic:    agents.NewCritic(c, logger.Named("critic")),
		Reporter:  agents.NewReporter(c, logger.Named("reporter")),
	}
}

// Orchestrator runs sessions. It holds no per-session state, so one
// Orchestrator may run any number of sessions concurrently.
type Orchestrator struct {
	agents Agents
	cfg    types.OrchestratorConfig
	logger *zap.Logger
	now    func() time.Time
}

// New returns an Orchestrator over a.
func New(a Agents, cfg types.OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MinCoverageScore == 0 {
		cfg.MinCoverageScore = DefaultMinCoverageScore
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{agents: a, cfg: cfg, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// EventBufferSize returns a channel capacity that holds every event one
// run can emit, so Run never waits on a slow reader.
func (o *Orchestrator) EventBufferSize() int {
	return 16*o.cfg.MaxIterations + 16
}

// Run executes a session under a fresh ID. See RunWithID.
func (o *Orchestrator) Run(ctx context.Context, topic string, events chan<- types.Event) *types.Session {
	return o.RunWithID(ctx, types.NewSessionID(), topic, events)
}

// RunWithID executes one session and returns it in a terminal state.
// Progress events go to events, which may be nil. Agent failures are
// absorbed by the agents' fallbacks; a panic in a stage or the end of ctx
// ends the session with StatusError and no report.
func (o *Orchestrator) RunWithID(ctx context.Context, id, topic string, events chan<- types.Event) *types.Session {
	r := &run{
		Orchestrator: o,
		ctx:          ctx,
		events:       events,
		log:          o.logger.With(zap.String("session", id)),
		session: &types.Session{
			ID:         id,
			Topic:      topic,
			StartedAt:  o.now(),
			Iterations: []types.IterationSummary{},
			Status:     types.StatusRunning,
		},
	}
	if err := r.execute(topic); err != nil {
		r.fail(err)
	}
	return r.session
}

// run is the state of one session.
type run struct {
	*Orchestrator
	ctx      context.Context
	events   chan<- types.Event
	log      *zap.Logger
	session  *types.Session
	agentLog []types.LogEntry
	stage    string
}

func (r *run) execute(topic string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s stage panicked: %v", r.stage, p)
		}
	}()
	a := r.agents

	if err := r.enter(types.StagePlanning, "Planner Agent is decomposing the research topic..."); err != nil {
		return err
	}
	r.record("Planner", "start", "Topic: "+topic, nil)
	plan := a.Planner.Plan(r.ctx, topic)
	r.record("Planner", "complete", fmt.Sprintf("Generated %d questions, %d queries",
		len(plan.ResearchQuestions), len(plan.SearchQueries)), nil)
	r.emit(types.StagePlanningDone, "Research plan created", plan)

	accumulator := types.NewPaperIndex()
	var (
		analysis  types.Analysis
		critique  types.CriticEvaluation
		iteration int
	)

	for iteration < r.cfg.MaxIterations {
		iteration++
		if err := r.enter(types.StageIterationStart,
			fmt.Sprintf("Starting iteration %d/%d", iteration, r.cfg.MaxIterations)); err != nil {
			return err
		}

		if err := r.enter(types.StageRetrieving,
			fmt.Sprintf("Retriever Agent is searching arXiv (%d queries)...", len(plan.SearchQueries))); err != nil {
			return err
		}
		r.record("Retriever", "start", fmt.Sprintf("Iteration %d", iteration), nil)
		accumulator.Merge(a.Retriever.Search(r.ctx, plan.SearchQueries))
		total := a.Retriever.TotalPaperCount(accumulator)
		r.record("Retriever", "complete", fmt.Sprintf("Total unique papers: %d", total),
			map[string]any{"queries": len(plan.SearchQueries), "total_papers": total})
		r.emit(types.StageRetrievingDone, fmt.Sprintf("Retrieved %d unique papers", total),
			map[string]any{"total_papers": total})

		if err := r.enter(types.StageAnalyzing, "Analyzer Agent is synthesizing findings..."); err != nil {
			return err
		}
		r.record("Analyzer", "start", fmt.Sprintf("Iteration %d", iteration), nil)
		analysis = a.Analyzer.Analyze(r.ctx, accumulator, plan.ResearchQuestions)
		clusters := len(analysis.ThematicClusters)
		r.record("Analyzer", "complete", fmt.Sprintf("Found %d thematic clusters", clusters), nil)
		r.emit(types.StageAnalyzingDone, fmt.Sprintf("Identified %d thematic clusters", clusters), analysis)

		if err := r.enter(types.StageCritiquing, "Critic Agent is evaluating coverage..."); err != nil {
			return err
		}
		r.record("Critic", "start", fmt.Sprintf("Iteration %d", iteration), nil)
		critique = a.Critic.Evaluate(r.ctx, plan, analysis, iteration)
		score := critique.OverallCoverageScore
		recommendation := critique.Recommendation
		if recommendation == "" {
			recommendation = types.RecommendAccept
		}
		gaps := len(critique.KnowledgeGaps)
		r.record("Critic", "complete", fmt.Sprintf("Score: %d/10, Recommendation: %s, Gaps: %d", score, recommendation, gaps),
			map[string]any{"score": int(score), "recommendation": string(recommendation), "gaps": gaps})
		r.emit(types.StageCritiquingDone,
			fmt.Sprintf("Coverage score: %d/10 (%s)", score, strings.ToUpper(string(recommendation))), critique)

		r.session.Iterations = append(r.session.Iterations, types.IterationSummary{
			Iteration:      iteration,
			PapersFound:    total,
			Clusters:       clusters,
			CoverageScore:  score,
			Recommendation: recommendation,
			GapsFound:      gaps,
		})
		r.log.Info("iteration finished",
			zap.Int("iteration", iteration),
			zap.Int("papers", total),
			zap.Int("score", int(score)),
			zap.String("recommendation", string(recommendation)))

		if recommendation == types.RecommendAccept || int(score) >= r.cfg.MinCoverageScore {
			r.record("Orchestrator", "stop", fmt.Sprintf("Accepted at iteration %d with score %d", iteration, score), nil)
			r.emit(types.StageIterationAccepted, fmt.Sprintf("Research accepted at iteration %d", iteration), nil)
			break
		}

		if iteration < r.cfg.MaxIterations {
			if err := r.enter(types.StageRefining, "Planner Agent is refining the search strategy..."); err != nil {
				return err
			}
			refineGaps := critique.RefinementGaps()
			r.record("Planner", "refine", fmt.Sprintf("Refining plan with %d gaps", len(refineGaps)), nil)
			plan = a.Planner.Refine(r.ctx, plan, refineGaps)
			r.emit(types.StageRefiningDone, "Research plan refined with new queries", nil)
		}
	}

	if err := r.enter(types.StageReporting, "Reporter Agent is generating the literature review..."); err != nil {
		return err
	}
	r.record("Reporter", "start", "Generating final report", nil)
	meta := types.RunMetadata{
		Iterations:  iteration,
		TotalPapers: a.Retriever.TotalPaperCount(accumulator),
	}
	report := a.Reporter.GenerateReport(r.ctx, plan, analysis, critique, accumulator, meta)
	r.record("Reporter", "complete", fmt.Sprintf("Report generated (%d chars)", len([]rune(report))), nil)
	r.emit(types.StageReportingDone, "Literature review generated", nil)

	// A report produced after ctx ended is discarded.
	if err := r.ctx.Err(); err != nil {
		return err
	}

	s := r.session
	s.FinalReport = report
	s.Status = types.StatusCompleted
	s.CompletedAt = r.now()
	s.Plan = &plan
	s.Analysis = &analysis
	s.CriticEvaluation = &critique
	s.Papers = accumulator
	s.AgentLog = r.agentLog

	r.log.Info("session completed", zap.Int("iterations", iteration), zap.Int("papers", meta.TotalPapers))
	r.emit(types.StageComplete, "Research complete!", map[string]any{
		"total_papers":   meta.TotalPapers,
		"iterations":     iteration,
		"coverage_score": critique.OverallCoverageScore,
	})
	return nil
}

// enter marks the start of a stage. It fails once ctx has ended.
func (r *run) enter(stage, message string) error {
	r.stage = stage
	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.log.Debug("stage", zap.String("stage", stage))
	r.emit(stage, message, nil)
	return nil
}

func (r *run) fail(err error) {
	r.log.Error("session failed", zap.String("stage", r.stage), zap.Error(err))
	r.record("Orchestrator", "error", err.Error(), nil)

	s := r.session
	s.Status = types.StatusError
	s.Error = err.Error()
	s.CompletedAt = r.now()
	s.AgentLog = r.agentLog
	r.emit(types.StageError, "Error: "+err.Error(), nil)
}

func (r *run) record(agent, action, detail string, data map[string]any) {
	r.agentLog = append(r.agentLog, types.LogEntry{
		Timestamp: r.now(),
		Agent:     agent,
		Action:    action,
		Detail:    detail,
		Data:      data,
	})
}

// emit delivers an event. When the buffer is full it waits until the
// reader catches up or ctx ends.
func (r *run) emit(stage, message string, data any) {
	if r.events == nil {
		return
	}
	ev := types.Event{Stage: stage, Message: message, Data: data}
	select {
	case r.events <- ev:
		return
	default:
	}
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
		r.log.Warn("event dropped", zap.String("stage", stage))
	}
}
