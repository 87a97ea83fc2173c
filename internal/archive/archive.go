// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists finished research sessions and the papers they
// retrieved in a SQLite database.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// DefaultPath is the database location used when none is configured.
const DefaultPath = "data/research.db"

// ErrNotFound is returned when a session is not in the archive.
var ErrNotFound = errors.New("session not in archive")

// Store manages the session archive database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			coverage_score INTEGER,
			iterations INTEGER,
			total_papers INTEGER,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE TABLE IF NOT EXISTS papers (
			arxiv_id TEXT PRIMARY KEY,
			title TEXT,
			authors TEXT,
			abstract TEXT,
			published TEXT,
			updated TEXT,
			pdf_url TEXT,
			categories TEXT,
			primary_category TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS session_papers (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			paper_id TEXT NOT NULL REFERENCES papers(arxiv_id),
			query_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (session_id, paper_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_papers_paper ON session_papers(paper_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save stores sess, replacing any earlier copy with the same ID. Every
// unique paper of the session is upserted into the paper catalog and
// linked to the session in retrieval order.
func (s *Store) Save(ctx context.Context, sess *types.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, topic, status, started_at, completed_at, coverage_score, iterations, total_papers, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			topic=excluded.topic, status=excluded.status, started_at=excluded.started_at,
			completed_at=excluded.completed_at, coverage_score=excluded.coverage_score,
			iterations=excluded.iterations, total_papers=excluded.total_papers, payload=excluded.payload`,
		sess.ID, sess.Topic, string(sess.Status), formatTime(sess.StartedAt), formatTime(sess.CompletedAt),
		int(sess.FinalScore()), len(sess.Iterations), sess.Papers.Total(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_papers WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clearing session papers: %w", err)
	}

	paperStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (arxiv_id, title, authors, abstract, published, updated, pdf_url, categories, primary_category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(arxiv_id) DO UPDATE SET
			title=excluded.title, authors=excluded.authors, abstract=excluded.abstract,
			published=excluded.published, updated=excluded.updated, pdf_url=excluded.pdf_url,
			categories=excluded.categories, primary_category=excluded.primary_category`)
	if err != nil {
		return fmt.Errorf("preparing paper upsert: %w", err)
	}
	defer paperStmt.Close()

	linkStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO session_papers (session_id, paper_id, query_id, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing link insert: %w", err)
	}
	defer linkStmt.Close()

	position := 0
	for _, qid := range sess.Papers.Keys() {
		papers, _ := sess.Papers.Get(qid)
		for _, p := range papers {
			if p.IsError() || p.ArxivID == "" {
				continue
			}
			authorsJSON, _ := json.Marshal(p.Authors)
			categoriesJSON, _ := json.Marshal(p.Categories)
			if _, err := paperStmt.ExecContext(ctx,
				p.ArxivID, p.Title, string(authorsJSON), p.Abstract,
				formatTime(p.Published), formatTime(p.Updated), p.PDFURL,
				string(categoriesJSON), p.PrimaryCategory,
			); err != nil {
				return fmt.Errorf("upserting paper %s: %w", p.ArxivID, err)
			}
			res, err := linkStmt.ExecContext(ctx, sess.ID, p.ArxivID, qid, position)
			if err != nil {
				return fmt.Errorf("linking paper %s: %w", p.ArxivID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				position++
			}
		}
	}

	return tx.Commit()
}

// Get returns the archived session id.
func (s *Store) Get(ctx context.Context, id string) (*types.Session, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session %s: %w", id, err)
	}

	var sess types.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &sess, nil
}

// Summary is one row of the session listing.
type Summary struct {
	ID            string              `json:"id" yaml:"id"`
	Topic         string              `json:"topic" yaml:"topic"`
	Status        types.SessionStatus `json:"status" yaml:"status"`
	StartedAt     time.Time           `json:"started_at" yaml:"started_at"`
	CompletedAt   time.Time           `json:"completed_at,omitzero" yaml:"completed_at,omitempty"`
	CoverageScore int                 `json:"coverage_score" yaml:"coverage_score"`
	Iterations    int                 `json:"iterations" yaml:"iterations"`
	TotalPapers   int                 `json:"total_papers" yaml:"total_papers"`
}

// List returns up to limit sessions, newest first. A limit of zero or
// less returns every session.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, status, started_at, completed_at, coverage_score, iterations, total_papers
		 FROM sessions ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			status    string
			started   string
			completed sql.NullString
		)
		if err := rows.Scan(&sum.ID, &sum.Topic, &status, &started, &completed,
			&sum.CoverageScore, &sum.Iterations, &sum.TotalPapers); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		sum.Status = types.SessionStatus(status)
		sum.StartedAt = parseTime(started)
		sum.CompletedAt = parseTime(completed.String)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Papers returns the papers linked to session id in retrieval order.
func (s *Store) Papers(ctx context.Context, sessionID string) ([]types.Paper, error) {
	return s.queryPapers(ctx,
		`SELECT p.arxiv_id, p.title, p.authors, p.abstract, p.published, p.updated,
			p.pdf_url, p.categories, p.primary_category
		 FROM session_papers sp
		 JOIN papers p ON p.arxiv_id = sp.paper_id
		 WHERE sp.session_id = ?
		 ORDER BY sp.position`, sessionID)
}

// SearchPapers returns catalog papers whose title or abstract contains
// term literally, most recently published first.
func (s *Store) SearchPapers(ctx context.Context, term string, limit int) ([]types.Paper, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"
	return s.queryPapers(ctx,
		`SELECT arxiv_id, title, authors, abstract, published, updated,
			pdf_url, categories, primary_category
		 FROM papers
		 WHERE title LIKE ? ESCAPE '\' OR abstract LIKE ? ESCAPE '\'
		 ORDER BY published DESC, arxiv_id
		 LIMIT ?`, pattern, pattern, limit)
}

// likeEscaper makes LIKE wildcards in a search term match themselves.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) queryPapers(ctx context.Context, query string, args ...any) ([]types.Paper, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		var (
			p              types.Paper
			authorsJSON    sql.NullString
			categoriesJSON sql.NullString
			published      sql.NullString
			updated        sql.NullString
		)
		if err := rows.Scan(&p.ArxivID, &p.Title, &authorsJSON, &p.Abstract,
			&published, &updated, &p.PDFURL, &categoriesJSON, &p.PrimaryCategory); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if authorsJSON.Valid {
			json.Unmarshal([]byte(authorsJSON.String), &p.Authors)
		}
		if categoriesJSON.Valid {
			json.Unmarshal([]byte(categoriesJSON.String), &p.Categories)
		}
		p.Published = parseTime(published.String)
		p.Updated = parseTime(updated.String)
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
