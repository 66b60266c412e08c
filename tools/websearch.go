package tools

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// DuckDuckGoEndpoint is the instant answer API used by web_search.
const DuckDuckGoEndpoint = "https://api.duckduckgo.com/"

// WebSearchInput defines the input for the web_search tool.
type WebSearchInput struct {
	Query      string `json:"query" jsonschema:"required,description=Search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results to return (default: 5)"`
}

// WebSearchOutput defines the output of the web_search tool.
type WebSearchOutput struct {
	Results     []SearchResult `json:"results"`
	Abstract    string         `json:"abstract,omitempty"`
	AbstractURL string         `json:"abstract_url,omitempty"`
}

// SearchResult is a single search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type ddgResponse struct {
	Abstract      string     `json:"Abstract"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
	Results       []ddgTopic `json:"Results"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Result   string     `json:"Result"`
	Topics   []ddgTopic `json:"Topics"`
}

// WebSearch returns the web_search tool backed by DuckDuckGo instant answers.
func WebSearch(opts ...WebOption) *TypedTool[WebSearchInput, WebSearchOutput] {
	cfg := newWebConfig(DuckDuckGoEndpoint, opts)
	return NewTool(
		"web_search",
		"Search the web using DuckDuckGo. Returns search results with titles, URLs, and snippets.",
		func(ctx context.Context, in WebSearchInput) (WebSearchOutput, error) {
			return cfg.search(ctx, in)
		},
	)
}

func (c webConfig) search(ctx context.Context, in WebSearchInput) (WebSearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return WebSearchOutput{}, errors.New("query is required")
	}
	limit := in.MaxResults
	if limit <= 0 {
		limit = 5
	}

	q := url.Values{}
	q.Set("q", in.Query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	var resp ddgResponse
	if err := c.getJSON(ctx, c.endpoint+"?"+q.Encode(), &resp); err != nil {
		return WebSearchOutput{}, err
	}

	results := make([]SearchResult, 0, limit)
	var collect func(topics []ddgTopic)
	collect = func(topics []ddgTopic) {
		for _, t := range topics {
			if len(results) >= limit {
				return
			}
			if len(t.Topics) > 0 {
				collect(t.Topics)
				continue
			}
			if t.FirstURL == "" {
				continue
			}
			results = append(results, SearchResult{
				Title:   linkText(t.Result),
				URL:     t.FirstURL,
				Snippet: t.Text,
			})
		}
	}
	collect(resp.Results)
	collect(resp.RelatedTopics)

	return WebSearchOutput{
		Results:     results,
		Abstract:    resp.Abstract,
		AbstractURL: resp.AbstractURL,
	}, nil
}

// linkText returns the text of the first anchor in an HTML fragment, or the
// fragment itself when it holds none.
func linkText(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	if a := findElement(doc, "a"); a != nil {
		if s := strings.TrimSpace(textContent(a)); s != "" {
			return s
		}
	}
	return fragment
}
