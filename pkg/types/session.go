package types

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a research session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusError     SessionStatus = "error"
)

// Event stages. A stream ends after StageDone, StageError, or StageComplete.
const (
	StagePlanning          = "planning"
	StagePlanningDone      = "planning_done"
	StageIterationStart    = "iteration_start"
	StageRetrieving        = "retrieving"
	StageRetrievingDone    = "retrieving_done"
	StageAnalyzing         = "analyzing"
	StageAnalyzingDone     = "analyzing_done"
	StageCritiquing        = "critiquing"
	StageCritiquingDone    = "critiquing_done"
	StageIterationAccepted = "iteration_accepted"
	StageRefining          = "refining"
	StageRefiningDone      = "refining_done"
	StageReporting         = "reporting"
	StageReportingDone     = "reporting_done"
	StageComplete          = "complete"
	StageError             = "error"
	StageDone              = "done"
	StageHeartbeat         = "heartbeat"
)

// Event is a transient progress notification for one session.
type Event struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// IsTerminal reports whether no further events follow e on a stream.
func (e Event) IsTerminal() bool {
	switch e.Stage {
	case StageDone, StageError, StageComplete:
		return true
	}
	return false
}

// LogEntry is one record of the append-only agent action log.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Agent     string         `json:"agent"`
	Action    string         `json:"action"`
	Detail    string         `json:"detail"`
	Data      map[string]any `json:"data,omitempty"`
}

// IterationSummary records the outcome of one refinement-loop round.
type IterationSummary struct {
	Iteration      int            `json:"iteration" yaml:"iteration"`
	PapersFound    int            `json:"papers_found" yaml:"papers_found"`
	Clusters       int            `json:"clusters" yaml:"clusters"`
	CoverageScore  Score          `json:"coverage_score" yaml:"coverage_score"`
	Recommendation Recommendation `json:"recommendation" yaml:"recommendation"`
	GapsFound      int            `json:"gaps_found" yaml:"gaps_found"`
}

// Session is the result of one orchestrator run. Once Status leaves
// StatusRunning the session is not modified again.
type Session struct {
	ID          string             `json:"id"`
	Topic       string             `json:"topic"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at,omitzero"`
	Iterations  []IterationSummary `json:"iterations"`
	FinalReport string             `json:"final_report"`
	Status      SessionStatus      `json:"status"`
	Error       string             `json:"error,omitempty"`

	// Plan, Analysis, CriticEvaluation, and Papers are the final artifacts.
	// They are nil unless Status is StatusCompleted.
	Plan             *ResearchPlan     `json:"plan,omitempty"`
	Analysis         *Analysis         `json:"analysis,omitempty"`
	CriticEvaluation *CriticEvaluation `json:"critic_evaluation,omitempty"`
	Papers           *PaperIndex       `json:"papers,omitempty"`

	AgentLog []LogEntry `json:"agent_log,omitempty"`
}

// FinalScore returns the critic's last overall score, or 0 without one.
func (s *Session) FinalScore() Score {
	if s.CriticEvaluation == nil {
		return 0
	}
	return s.CriticEvaluation.OverallCoverageScore
}

// NewSessionID returns a short random session identifier.
func NewSessionID() string {
	return uuid.NewString()[:8]
}
