// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <updated>2023-08-02T00:41:18Z</updated>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
  You Need</title>
    <summary>  The dominant sequence transduction models
are based on complex recurrent networks.
</summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
    <arxiv:primary_category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <title>BERT</title>
  </entry>
</feed>`

func TestSearch(t *testing.T) {
	var got url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, sampleFeed)
	}))
	defer ts.Close()

	c := New(types.ArxivConfig{BaseURL: ts.URL, UserAgent: "test-agent"}, nil)
	papers, err := c.Search(context.Background(), `ti:"graph neural" AND abs:drug`)
	require.NoError(t, err)

	assert.Equal(t, `ti:"graph neural" AND abs:drug`, got.Get("search_query"))
	assert.Equal(t, "0", got.Get("start"))
	assert.Equal(t, "15", got.Get("max_results"))
	assert.Equal(t, "relevance", got.Get("sortBy"))
	assert.Equal(t, "descending", got.Get("sortOrder"))

	require.Len(t, papers, 2)
	p := papers[0]
	assert.Equal(t, "1706.03762v7", p.ArxivID)
	assert.Equal(t, "Attention Is All   You Need", p.Title)
	assert.Equal(t, "The dominant sequence transduction models are based on complex recurrent networks.", p.Abstract)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, p.Authors)
	assert.Equal(t, "2017-06-12", p.PublishedDate())
	assert.Equal(t, 2023, p.Updated.Year())
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7", p.PDFURL)
	assert.Equal(t, []string{"cs.CL", "cs.LG"}, p.Categories)
	assert.Equal(t, "cs.CL", p.PrimaryCategory)

	// Missing fields become zero values rather than failing the query.
	bert := papers[1]
	assert.Equal(t, "1810.04805v2", bert.ArxivID)
	assert.Empty(t, bert.Authors)
	assert.Empty(t, bert.PDFURL)
	assert.True(t, bert.Published.IsZero())
	assert.Equal(t, "", bert.PublishedDate())
}

func TestSearchEmptyFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
	}))
	defer ts.Close()

	papers, err := New(types.ArxivConfig{BaseURL: ts.URL}, nil).Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestSearchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := New(types.ArxivConfig{BaseURL: ts.URL}, nil).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
}

func TestSearchRetriesOnRateLimit(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, sampleFeed)
	}))
	defer ts.Close()

	papers, err := New(types.ArxivConfig{BaseURL: ts.URL, MaxRetries: 2}, nil).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, papers, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSearchMalformedXML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<feed><entry><id>broken`)
	}))
	defer ts.Close()

	_, err := New(types.ArxivConfig{BaseURL: ts.URL}, nil).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing arXiv response")
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041v1"},
		{"https://arxiv.org/abs/2301.12345", "2301.12345"},
		{"http://arxiv.org/abs/hep-th/9901001v1", "hep-th/9901001v1"},
		{"2301.07041", "2301.07041"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExtractID(tt.input); got != tt.want {
				t.Errorf("ExtractID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
