// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes finished sessions to a directory tree:
//
//	<dir>/<session-id>/report.md        the literature review
//	<dir>/<session-id>/session.yaml     run metadata
//	<dir>/<session-id>/references.yaml  CSL-YAML of the unique papers
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// DefaultDir is the output root used when none is configured.
const DefaultDir = "reports"

const (
	reportFile     = "report.md"
	metadataFile   = "session.yaml"
	referencesFile = "references.yaml"
)

// Paths lists the files Write produced. Report is empty when the session
// has no report.
type Paths struct {
	Dir        string
	Report     string
	Metadata   string
	References string
}

// Metadata is the content of session.yaml.
type Metadata struct {
	ID            string                   `yaml:"id"`
	Topic         string                   `yaml:"topic"`
	Status        types.SessionStatus      `yaml:"status"`
	Error         string                   `yaml:"error,omitempty"`
	StartedAt     time.Time                `yaml:"started_at"`
	CompletedAt   time.Time                `yaml:"completed_at,omitempty"`
	CoverageScore int                      `yaml:"coverage_score"`
	TotalPapers   int                      `yaml:"total_papers"`
	UniquePapers  int                      `yaml:"unique_papers"`
	Iterations    []types.IterationSummary `yaml:"iterations"`
}

// NewMetadata summarizes s.
func NewMetadata(s *types.Session) Metadata {
	return Metadata{
		ID:            s.ID,
		Topic:         s.Topic,
		Status:        s.Status,
		Error:         s.Error,
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
		CoverageScore: int(s.FinalScore()),
		TotalPapers:   s.Papers.Total(),
		UniquePapers:  len(s.Papers.Unique()),
		Iterations:    s.Iterations,
	}
}

// Write stores s under dir/<s.ID>/, creating directories as needed.
func Write(dir string, s *types.Session) (Paths, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if s.ID == "" {
		return Paths{}, fmt.Errorf("session has no id")
	}
	out := filepath.Join(dir, s.ID)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating report directory: %w", err)
	}
	paths := Paths{
		Dir:        out,
		Metadata:   filepath.Join(out, metadataFile),
		References: filepath.Join(out, referencesFile),
	}

	if s.FinalReport != "" {
		paths.Report = filepath.Join(out, reportFile)
		if err := os.WriteFile(paths.Report, []byte(s.FinalReport), 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", paths.Report, err)
		}
	}

	meta, err := yaml.Marshal(NewMetadata(s))
	if err != nil {
		return paths, fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(paths.Metadata, meta, 0o644); err != nil {
		return paths, fmt.Errorf("writing %s: %w", paths.Metadata, err)
	}

	var refs bytes.Buffer
	if err := FormatCSL(s.Papers.Unique(), &refs); err != nil {
		return paths, fmt.Errorf("encoding references: %w", err)
	}
	if err := os.WriteFile(paths.References, refs.Bytes(), 0o644); err != nil {
		return paths, fmt.Errorf("writing %s: %w", paths.References, err)
	}
	return paths, nil
}
