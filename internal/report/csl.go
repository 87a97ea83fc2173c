// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form.
// The field names follow the CSL-YAML schema so that output is consumable
// by Pandoc and reference managers.
type CSLItem struct {
	ID        string    `yaml:"id"`
	Type      string    `yaml:"type"`
	Title     string    `yaml:"title"`
	Author    []CSLName `yaml:"author,omitempty"`
	Abstract  string    `yaml:"abstract,omitempty"`
	Issued    *CSLDate  `yaml:"issued,omitempty"`
	Publisher string    `yaml:"publisher,omitempty"`
	Number    string    `yaml:"number,omitempty"`
	URL       string    `yaml:"URL,omitempty"`
	Keyword   string    `yaml:"keyword,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL form using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes papers as a CSL-YAML list to w.
func FormatCSL(papers []types.Paper, w io.Writer) error {
	items := make([]CSLItem, len(papers))
	for i, p := range papers {
		items[i] = toCSLItem(p)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(p types.Paper) CSLItem {
	item := CSLItem{
		ID:        "arxiv:" + p.ArxivID,
		Type:      "article",
		Title:     p.Title,
		Abstract:  p.Abstract,
		Publisher: "arXiv",
		Number:    p.ArxivID,
		URL:       "https://arxiv.org/abs/" + p.ArxivID,
		Keyword:   strings.Join(p.Categories, ", "),
	}

	for _, a := range p.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}

	if !p.Published.IsZero() {
		item.Issued = &CSLDate{
			DateParts: [][]int{{p.Published.Year(), int(p.Published.Month()), p.Published.Day()}},
		}
	}
	return item
}

// parseAuthorName splits a full name on its last space: everything before
// is given, the last token is family. Single-token names use literal.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
