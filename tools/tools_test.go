package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/parley/provider"
)

type echoInput struct {
	Name  string `json:"name" jsonschema:"required,description=The name"`
	Count int    `json:"count,omitempty"`
}

type echoOutput struct {
	Result string `json:"result"`
	Value  int    `json:"value"`
}

func echoTool() *TypedTool[echoInput, echoOutput] {
	return NewTool("echo", "Echo the input", func(_ context.Context, in echoInput) (echoOutput, error) {
		if in.Name == "fail" {
			return echoOutput{}, errors.New("boom")
		}
		return echoOutput{Result: in.Name, Value: in.Count}, nil
	})
}

func TestNewTool(t *testing.T) {
	tool := echoTool()
	assert.Equal(t, "echo", tool.Name())
	assert.Equal(t, "Echo the input", tool.Description())
	require.NotNil(t, tool.Parameters())
	assert.Equal(t, "object", tool.Parameters().Type)
}

func TestTypedTool_Execute(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    any
		wantErr bool
	}{
		{name: "valid args", args: `{"name":"test","count":42}`, want: echoOutput{Result: "test", Value: 42}},
		{name: "minimal args", args: `{"name":"minimal"}`, want: echoOutput{Result: "minimal"}},
		{name: "empty args", args: ``, want: echoOutput{}},
		{name: "invalid JSON", args: `{invalid}`, wantErr: true},
		{name: "tool error", args: `{"name":"fail"}`, wantErr: true},
	}

	tool := echoTool()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tool.Execute(context.Background(), json.RawMessage(tt.args))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypedTool_Call(t *testing.T) {
	out, err := echoTool().Call(context.Background(), echoInput{Name: "direct", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, echoOutput{Result: "direct", Value: 3}, out)
}

func TestRegistry(t *testing.T) {
	text := NewTool("alpha", "Returns text", func(context.Context, struct{}) (string, error) {
		return "plain text", nil
	})
	r := NewRegistry(echoTool(), text)

	t.Run("all sorted", func(t *testing.T) {
		require.Equal(t, 2, r.Len())
		all := r.All()
		assert.Equal(t, "alpha", all[0].Name())
		assert.Equal(t, "echo", all[1].Name())
	})

	t.Run("subset", func(t *testing.T) {
		sub := r.Subset(func(name string) bool { return name == "echo" })
		assert.Equal(t, 1, sub.Len())
		_, ok := sub.Get("alpha")
		assert.False(t, ok)
		assert.Equal(t, 2, r.Len())
	})

	t.Run("definitions", func(t *testing.T) {
		defs, err := r.Definitions()
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, "echo", defs[1].Name)
		assert.Equal(t, "Echo the input", defs[1].Description)
		assert.True(t, json.Valid(defs[1].Parameters))
		assert.NotContains(t, string(defs[1].Parameters), "$schema")
		assert.Contains(t, string(defs[1].Parameters), `"name"`)
	})

	tests := []struct {
		name    string
		call    provider.FunctionCall
		want    string
		wantErr bool
	}{
		{name: "struct result", call: provider.FunctionCall{ID: "1", Name: "echo", Arguments: `{"name":"x","count":1}`}, want: `{"result":"x","value":1}`},
		{name: "string result", call: provider.FunctionCall{ID: "2", Name: "alpha", Arguments: `{}`}, want: "plain text"},
		{name: "tool error becomes content", call: provider.FunctionCall{ID: "3", Name: "echo", Arguments: `{"name":"fail"}`}, want: `Error: tool "echo" execution failed: boom`},
		{name: "unknown tool", call: provider.FunctionCall{ID: "4", Name: "missing"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Execute(context.Background(), &tt.call)
			if tt.wantErr {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, tt.call.Name, nf.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("inner")
	err := &ExecutionError{Tool: "x", Cause: cause}
	assert.ErrorIs(t, err, cause)
}

func TestWebSearch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Abstract": "Go is a language.",
			"AbstractURL": "https://example.com/go",
			"Results": [{"Text": "Official site", "FirstURL": "https://go.dev", "Result": "<a href=\"https://go.dev\">Go</a> Official site"}],
			"RelatedTopics": [
				{"Text": "Gopher mascot", "FirstURL": "https://example.com/gopher", "Result": "<a href=\"https://example.com/gopher\">Gopher</a> mascot"},
				{"Name": "Group", "Topics": [
					{"Text": "Nested one", "FirstURL": "https://example.com/n1", "Result": "<a href=\"https://example.com/n1\">Nested</a>"},
					{"Text": "Nested two", "FirstURL": "https://example.com/n2", "Result": ""}
				]},
				{"Text": "No URL"}
			]
		}`))
	}))
	defer srv.Close()

	tool := WebSearch(WithEndpoint(srv.URL+"/"), WithHTTPClient(srv.Client()))

	out, err := tool.Call(context.Background(), WebSearchInput{Query: "golang", MaxResults: 3})
	require.NoError(t, err)
	assert.Equal(t, "golang", query)
	assert.Equal(t, "Go is a language.", out.Abstract)
	assert.Equal(t, "https://example.com/go", out.AbstractURL)
	assert.Equal(t, []SearchResult{
		{Title: "Go", URL: "https://go.dev", Snippet: "Official site"},
		{Title: "Gopher", URL: "https://example.com/gopher", Snippet: "Gopher mascot"},
		{Title: "Nested", URL: "https://example.com/n1", Snippet: "Nested one"},
	}, out.Results)

	out, err = tool.Call(context.Background(), WebSearchInput{Query: "golang"})
	require.NoError(t, err)
	require.Len(t, out.Results, 4)
	assert.Equal(t, "", out.Results[3].Title)

	_, err = tool.Call(context.Background(), WebSearchInput{Query: "  "})
	assert.Error(t, err)
}

func TestWebSearch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := WebSearch(WithEndpoint(srv.URL)).Call(context.Background(), WebSearchInput{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

const samplePage = `<!DOCTYPE html><html><head><title> Sample Page </title><style>p{color:red}</style></head>` +
	`<body><h1>Heading</h1><p>First  para with <b>bold</b> and <a href="https://go.dev">a link</a>.</p>` +
	`<script>alert(1)</script><ul><li>one</li><li>two</li></ul><pre>x := 1
y := 2</pre></body></html>`

func TestWebFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	tool := WebFetch(WithHTTPClient(srv.Client()))

	tests := []struct {
		name    string
		extract string
		want    string
	}{
		{
			name:    "text",
			extract: "",
			want:    "Heading\n\nFirst para with bold and a link.\n\none\ntwo\n\nx := 1\ny := 2",
		},
		{
			name:    "markdown",
			extract: "markdown",
			want:    "# Heading\n\nFirst para with **bold** and [a link](https://go.dev).\n\n- one\n- two\n\n```\nx := 1\ny := 2\n```",
		},
		{
			name:    "html",
			extract: "html",
			want:    samplePage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tool.Call(context.Background(), WebFetchInput{URL: srv.URL + "/page", Extract: tt.extract})
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, out.StatusCode)
			assert.Equal(t, "Sample Page", out.Title)
			assert.Equal(t, srv.URL+"/page", out.URL)
			assert.Equal(t, tt.want, out.Content)
		})
	}
}

func TestWebFetch_Rejects(t *testing.T) {
	tool := WebFetch()
	tests := []struct {
		name string
		in   WebFetchInput
	}{
		{name: "file scheme", in: WebFetchInput{URL: "file:///etc/passwd"}},
		{name: "no scheme", in: WebFetchInput{URL: "example.com"}},
		{name: "unknown mode", in: WebFetchInput{URL: "http://127.0.0.1:1/", Extract: "pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.Call(context.Background(), tt.in)
			assert.Error(t, err)
		})
	}
}

func TestWikipedia(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/w/rest.php/v1/search/page", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "nothing" {
			_, _ = w.Write([]byte(`{"pages":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"pages":[{"key":"Gopher","title":"Gopher"}]}`))
	})
	mux.HandleFunc("/api/rest_v1/page/summary/Gopher", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Gopher","description":"Rodent","extract":"Gophers dig.",` +
			`"content_urls":{"desktop":{"page":"https://en.wikipedia.org/wiki/Gopher"}}}`))
	})
	mux.HandleFunc("/api/rest_v1/page/mobile-html/Gopher", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><section><p>Gophers are rodents.</p></section></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tool := Wikipedia(WithEndpoint(srv.URL))

	out, err := tool.Call(context.Background(), WikipediaInput{Query: "gopher"})
	require.NoError(t, err)
	assert.Equal(t, WikipediaOutput{
		Title:       "Gopher",
		Summary:     "Gophers dig.",
		URL:         "https://en.wikipedia.org/wiki/Gopher",
		Description: "Rodent",
	}, out)

	out, err = tool.Call(context.Background(), WikipediaInput{Query: "gopher", Full: true})
	require.NoError(t, err)
	assert.Equal(t, "Gophers are rodents.", out.Content)

	_, err = tool.Call(context.Background(), WikipediaInput{Query: "nothing"})
	assert.ErrorContains(t, err, "no Wikipedia article found")

	_, err = tool.Call(context.Background(), WikipediaInput{Query: "x", Language: "../evil"})
	assert.ErrorContains(t, err, "invalid language code")
}

func TestCurrentTime(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	tool := CurrentTime(func() time.Time { return fixed })

	out, err := tool.Call(context.Background(), CurrentTimeInput{})
	require.NoError(t, err)
	assert.Equal(t, CurrentTimeOutput{
		Time:     "2025-03-14T15:09:26Z",
		Timezone: "UTC",
		Weekday:  "Friday",
		Unix:     fixed.Unix(),
	}, out)

	out, err = tool.Call(context.Background(), CurrentTimeInput{Timezone: "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15T00:09:26+09:00", out.Time)
	assert.Equal(t, "Saturday", out.Weekday)

	_, err = tool.Call(context.Background(), CurrentTimeInput{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestBuiltin(t *testing.T) {
	names := func(ts []Tool) []string {
		out := make([]string, 0, len(ts))
		for _, t := range ts {
			out = append(out, t.Name())
		}
		return out
	}
	assert.Equal(t, []string{"current_time"}, names(Builtin(false)))
	assert.ElementsMatch(t, []string{"current_time", "web_search", "web_fetch", "wikipedia"}, names(Builtin(true)))
}
