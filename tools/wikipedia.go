package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// WikipediaInput defines the input for the wikipedia tool.
type WikipediaInput struct {
	Query    string `json:"query" jsonschema:"required,description=Search query or article title"`
	Language string `json:"language,omitempty" jsonschema:"description=Language code (default: en)"`
	Full     bool   `json:"full,omitempty" jsonschema:"description=Include the full article text instead of only the summary"`
}

// WikipediaOutput defines the output of the wikipedia tool.
type WikipediaOutput struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	URL         string `json:"url"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`
}

type wikiSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

type wikiSearch struct {
	Pages []struct {
		Key   string `json:"key"`
		Title string `json:"title"`
	} `json:"pages"`
}

var languageCode = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]+)?$`)

// Wikipedia returns the wikipedia tool. Without WithEndpoint the language
// picks the wiki host.
func Wikipedia(opts ...WebOption) *TypedTool[WikipediaInput, WikipediaOutput] {
	cfg := newWebConfig("", opts)
	return NewTool(
		"wikipedia",
		"Search and retrieve Wikipedia articles. Returns the article summary, optionally with full content.",
		func(ctx context.Context, in WikipediaInput) (WikipediaOutput, error) {
			return cfg.wikipedia(ctx, in)
		},
	)
}

func (c webConfig) wikipedia(ctx context.Context, in WikipediaInput) (WikipediaOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return WikipediaOutput{}, errors.New("query is required")
	}
	lang := in.Language
	if lang == "" {
		lang = "en"
	}
	if !languageCode.MatchString(lang) {
		return WikipediaOutput{}, fmt.Errorf("invalid language code %q", lang)
	}
	base := c.endpoint
	if base == "" {
		base = fmt.Sprintf("https://%s.wikipedia.org", lang)
	}

	var search wikiSearch
	searchURL := base + "/w/rest.php/v1/search/page?limit=1&q=" + url.QueryEscape(in.Query)
	if err := c.getJSON(ctx, searchURL, &search); err != nil {
		return WikipediaOutput{}, fmt.Errorf("searching Wikipedia: %w", err)
	}
	if len(search.Pages) == 0 {
		return WikipediaOutput{}, fmt.Errorf("no Wikipedia article found for: %s", in.Query)
	}
	key := url.PathEscape(search.Pages[0].Key)

	var summary wikiSummary
	if err := c.getJSON(ctx, base+"/api/rest_v1/page/summary/"+key, &summary); err != nil {
		return WikipediaOutput{}, fmt.Errorf("fetching summary: %w", err)
	}

	out := WikipediaOutput{
		Title:       summary.Title,
		Summary:     summary.Extract,
		URL:         summary.ContentURLs.Desktop.Page,
		Description: summary.Description,
	}
	if !in.Full {
		return out, nil
	}

	body, _, err := c.get(ctx, base+"/api/rest_v1/page/mobile-html/"+key, 512*1024)
	if err != nil {
		return out, nil
	}
	if doc, err := html.Parse(strings.NewReader(string(body))); err == nil {
		out.Content = render(doc, false)
	}
	return out, nil
}
