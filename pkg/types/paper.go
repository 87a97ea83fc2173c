package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Paper holds the metadata of one arXiv entry. Papers are never mutated
// after the retriever creates them; ArxivID is the identity.
//
// A Paper with a non-empty Error is the error marker the retriever stores
// in place of results when the request for a query fails. It carries no
// ArxivID and is skipped by every consumer that needs real papers.
type Paper struct {
	// ArxivID is the identifier after the "/abs/" prefix (e.g. "2301.07041v1").
	ArxivID string `json:"arxiv_id"`

	// Title is the paper title with newlines folded into spaces.
	Title string `json:"title"`

	// Authors lists the paper authors in feed order.
	Authors []string `json:"authors"`

	// Abstract is the feed summary with newlines folded into spaces.
	Abstract string `json:"abstract"`

	// Published and Updated are the feed timestamps. Zero when absent.
	Published time.Time `json:"published,omitzero"`
	Updated   time.Time `json:"updated,omitzero"`

	// PDFURL is the first link typed application/pdf, or empty.
	PDFURL string `json:"pdf_url"`

	// Categories lists the category terms in feed order.
	Categories []string `json:"categories"`

	// PrimaryCategory is the arXiv primary category term.
	PrimaryCategory string `json:"primary_category"`

	// Error and Query are set only on error markers.
	Error string `json:"error,omitempty"`
	Query string `json:"query,omitempty"`
}

// IsError reports whether p is an error marker rather than a paper.
func (p Paper) IsError() bool { return p.Error != "" }

// PublishedDate returns the publication date as YYYY-MM-DD, or "" when unknown.
func (p Paper) PublishedDate() string {
	if p.Published.IsZero() {
		return ""
	}
	return p.Published.Format(time.DateOnly)
}

// PaperIndex maps search-query IDs to the papers retrieved for them. Keys
// keep their insertion order so that flattening is deterministic (the first
// query that surfaced a paper owns it). The zero value is ready to use.
type PaperIndex struct {
	keys    []string
	byQuery map[string][]Paper
}

// NewPaperIndex returns an empty index.
func NewPaperIndex() *PaperIndex {
	return &PaperIndex{byQuery: make(map[string][]Paper)}
}

// Set stores papers under queryID. A new key is appended to the key order;
// an existing key keeps its position and its list is replaced.
func (x *PaperIndex) Set(queryID string, papers []Paper) {
	if x.byQuery == nil {
		x.byQuery = make(map[string][]Paper)
	}
	if _, ok := x.byQuery[queryID]; !ok {
		x.keys = append(x.keys, queryID)
	}
	x.byQuery[queryID] = papers
}

// Get returns the papers stored under queryID.
func (x *PaperIndex) Get(queryID string) ([]Paper, bool) {
	if x == nil {
		return nil, false
	}
	papers, ok := x.byQuery[queryID]
	return papers, ok
}

// Keys returns the query IDs in insertion order.
func (x *PaperIndex) Keys() []string {
	if x == nil {
		return nil
	}
	return slices.Clone(x.keys)
}

// Len returns the number of query IDs.
func (x *PaperIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.keys)
}

// Total returns the sum of list lengths across all keys. Papers that appear
// under several keys are counted once per key, and error markers count as
// entries.
func (x *PaperIndex) Total() int {
	if x == nil {
		return 0
	}
	total := 0
	for _, papers := range x.byQuery {
		total += len(papers)
	}
	return total
}

// Merge folds other into x. For a key x already holds, only papers with an
// ArxivID not yet present under that key are appended; existing entries are
// never replaced or removed. A key x does not hold is copied as-is.
func (x *PaperIndex) Merge(other *PaperIndex) {
	if other == nil {
		return
	}
	for _, qid := range other.keys {
		incoming := other.byQuery[qid]
		existing, ok := x.Get(qid)
		if !ok {
			x.Set(qid, slices.Clone(incoming))
			continue
		}
		seen := make(map[string]bool, len(existing))
		for _, p := range existing {
			seen[p.ArxivID] = true
		}
		for _, p := range incoming {
			if p.ArxivID == "" || seen[p.ArxivID] {
				continue
			}
			seen[p.ArxivID] = true
			existing = append(existing, p)
		}
		x.byQuery[qid] = existing
	}
}

// Unique flattens the index in key order, drops error markers, and keeps
// the first occurrence of each ArxivID.
func (x *PaperIndex) Unique() []Paper {
	if x == nil {
		return nil
	}
	seen := make(map[string]bool)
	var unique []Paper
	for _, qid := range x.keys {
		for _, p := range x.byQuery[qid] {
			if p.IsError() || seen[p.ArxivID] {
				continue
			}
			seen[p.ArxivID] = true
			unique = append(unique, p)
		}
	}
	return unique
}

// MarshalJSON encodes the index as a JSON object in key order.
func (x *PaperIndex) MarshalJSON() ([]byte, error) {
	if x == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, qid := range x.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(qid)
		if err != nil {
			return nil, err
		}
		papers := x.byQuery[qid]
		if papers == nil {
			papers = []Paper{}
		}
		val, err := json.Marshal(papers)
		if err != nil {
			return nil, fmt.Errorf("encoding papers for %s: %w", qid, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the order of its keys.
func (x *PaperIndex) UnmarshalJSON(data []byte) error {
	x.keys = nil
	x.byQuery = make(map[string][]Paper)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("paper index: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		qid, ok := tok.(string)
		if !ok {
			return fmt.Errorf("paper index: expected key, got %v", tok)
		}
		var papers []Paper
		if err := dec.Decode(&papers); err != nil {
			return fmt.Errorf("paper index: decoding %s: %w", qid, err)
		}
		x.Set(qid, papers)
	}
	_, err = dec.Token()
	return err
}
