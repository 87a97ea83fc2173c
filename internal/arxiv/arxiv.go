// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package arxiv queries the arXiv Atom search API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// DefaultBaseURL is the arXiv query endpoint.
const DefaultBaseURL = "http://export.arxiv.org/api/query"

// Defaults applied by New for zero config fields.
const (
	DefaultMaxResults = 15
	DefaultTimeout    = 30 * time.Second
	DefaultUserAgent  = "research-assistant/0.1"
)

// Client searches arXiv. It is safe for concurrent use.
type Client struct {
	cfg     types.ArxivConfig
	http    *http.Client
	retrier httputil.Retrier
}

// New creates a Client, filling zero fields of cfg with defaults.
func New(cfg types.ArxivConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.SortBy == "" {
		cfg.SortBy = "relevance"
	}
	if cfg.SortOrder == "" {
		cfg.SortOrder = "descending"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		retrier: httputil.Retrier{MaxRetries: cfg.MaxRetries, Logger: logger.Named("arxiv")},
	}
}

// Search runs one query and returns the entries of the first result page.
// The query is sent verbatim as search_query, so arXiv field prefixes such
// as ti: and abs: are honored.
func (c *Client) Search(ctx context.Context, query string) ([]types.Paper, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(c.cfg.MaxResults))
	params.Set("sortBy", c.cfg.SortBy)
	params.Set("sortOrder", c.cfg.SortOrder)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.retrier.Do(ctx, c.http, req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	papers := make([]types.Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		papers = append(papers, e.paper())
	}
	return papers, nil
}

// Atom feed structures. Absent elements decode to zero values.
type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID              string     `xml:"id"`
	Title           string     `xml:"title"`
	Summary         string     `xml:"summary"`
	Published       string     `xml:"published"`
	Updated         string     `xml:"updated"`
	Authors         []author   `xml:"author"`
	Links           []link     `xml:"link"`
	Categories      []category `xml:"category"`
	PrimaryCategory category   `xml:"http://arxiv.org/schemas/atom primary_category"`
}

type author struct {
	Name string `xml:"name"`
}

type link struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type category struct {
	Term string `xml:"term,attr"`
}

func (e entry) paper() types.Paper {
	p := types.Paper{
		ArxivID:         ExtractID(e.ID),
		Title:           flatten(e.Title),
		Abstract:        flatten(e.Summary),
		Published:       parseTime(e.Published),
		Updated:         parseTime(e.Updated),
		PrimaryCategory: e.PrimaryCategory.Term,
		Authors:         []string{},
		Categories:      []string{},
	}
	for _, a := range e.Authors {
		p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
	}
	for _, l := range e.Links {
		if l.Type == "application/pdf" {
			p.PDFURL = l.Href
			break
		}
	}
	for _, c := range e.Categories {
		p.Categories = append(p.Categories, c.Term)
	}
	return p
}

// ExtractID returns the text after the last "/abs/" of an entry id URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" gives "2301.07041v1"). The
// version suffix is kept. An id without the prefix is returned whole.
func ExtractID(idURL string) string {
	const prefix = "/abs/"
	idURL = strings.TrimSpace(idURL)
	if i := strings.LastIndex(idURL, prefix); i >= 0 {
		return idURL[i+len(prefix):]
	}
	return idURL
}

func flatten(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
