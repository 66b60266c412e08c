package tools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxFetchBytes caps how much of a page web_fetch reads.
const maxFetchBytes = 1 << 20

// WebFetchInput defines the input for the web_fetch tool.
type WebFetchInput struct {
	URL     string `json:"url" jsonschema:"required,description=URL to fetch"`
	Extract string `json:"extract,omitempty" jsonschema:"enum=text,enum=markdown,enum=html,description=Extract mode: html (raw), text (stripped), or markdown (default: text)"`
	Timeout int    `json:"timeout,omitempty" jsonschema:"description=Timeout in seconds (default: 30)"`
}

// WebFetchOutput defines the output of the web_fetch tool.
type WebFetchOutput struct {
	Content    string `json:"content"`
	StatusCode int    `json:"status_code"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url"`
}

// WebFetch returns the web_fetch tool.
func WebFetch(opts ...WebOption) *TypedTool[WebFetchInput, WebFetchOutput] {
	cfg := newWebConfig("", opts)
	return NewTool(
		"web_fetch",
		"Fetch content from a URL. Returns the page content as text, markdown, or raw HTML.",
		func(ctx context.Context, in WebFetchInput) (WebFetchOutput, error) {
			return cfg.fetch(ctx, in)
		},
	)
}

func (c webConfig) fetch(ctx context.Context, in WebFetchInput) (WebFetchOutput, error) {
	switch in.Extract {
	case "", "text", "markdown", "html":
	default:
		return WebFetchOutput{}, fmt.Errorf("unknown extract mode %q", in.Extract)
	}
	u, err := url.Parse(in.URL)
	if err != nil {
		return WebFetchOutput{}, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return WebFetchOutput{}, errors.New("only http and https URLs can be fetched")
	}

	if in.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(in.Timeout)*time.Second)
		defer cancel()
	}

	body, resp, err := c.get(ctx, u.String(), maxFetchBytes)
	if err != nil {
		return WebFetchOutput{}, err
	}

	out := WebFetchOutput{
		Content:    string(body),
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
	}

	doc, err := html.Parse(strings.NewReader(out.Content))
	if err != nil {
		return out, nil
	}
	if t := findElement(doc, "title"); t != nil {
		out.Title = strings.TrimSpace(textContent(t))
	}

	switch in.Extract {
	case "html":
	case "markdown":
		out.Content = render(doc, true)
	default:
		out.Content = render(doc, false)
	}
	return out, nil
}

// findElement returns the first element named tag in depth-first order.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Main: true, atom.Header: true, atom.Footer: true, atom.Nav: true,
	atom.Aside: true, atom.Blockquote: true, atom.Ul: true, atom.Ol: true,
	atom.Table: true, atom.Tr: true, atom.Figure: true, atom.Dl: true,
}

var headings = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// renderer turns a parsed document into plain text or markdown.
type renderer struct {
	b        strings.Builder
	markdown bool
	newlines int
}

func render(doc *html.Node, markdown bool) string {
	r := &renderer{markdown: markdown}
	r.walk(doc)

	lines := strings.Split(r.b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (r *renderer) write(s string) {
	if s == "" {
		return
	}
	r.b.WriteString(s)
	trimmed := strings.TrimRight(s, "\n")
	if trimmed == "" {
		r.newlines += len(s)
	} else {
		r.newlines = len(s) - len(trimmed)
	}
}

func (r *renderer) atLineStart() bool {
	return r.b.Len() == 0 || r.newlines > 0
}

func (r *renderer) space() {
	if r.atLineStart() || strings.HasSuffix(r.b.String(), " ") {
		return
	}
	r.write(" ")
}

func (r *renderer) newline() {
	if r.b.Len() > 0 && r.newlines == 0 {
		r.write("\n")
	}
}

func (r *renderer) block() {
	if r.b.Len() == 0 {
		return
	}
	for r.newlines < 2 {
		r.write("\n")
	}
}

func (r *renderer) text(s string) {
	collapsed := strings.Join(strings.Fields(s), " ")
	if collapsed == "" {
		if s != "" {
			r.space()
		}
		return
	}
	if isSpace(s[0]) {
		r.space()
	}
	r.write(collapsed)
	if isSpace(s[len(s)-1]) {
		r.space()
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r' || c == '\f'
}

func (r *renderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}
}

func (r *renderer) wrap(n *html.Node, marker string) {
	if !r.markdown {
		r.children(n)
		return
	}
	r.write(marker)
	r.children(n)
	r.write(marker)
}

func (r *renderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.text(n.Data)
		return
	case html.DocumentNode:
		r.children(n)
		return
	case html.ElementNode:
	default:
		return
	}
	if skipped[n.DataAtom] {
		return
	}

	if level, ok := headings[n.DataAtom]; ok {
		r.block()
		if r.markdown {
			r.write(strings.Repeat("#", level) + " ")
		}
		r.children(n)
		r.block()
		return
	}
	if blocks[n.DataAtom] {
		r.block()
		r.children(n)
		r.block()
		return
	}

	switch n.DataAtom {
	case atom.Br:
		r.write("\n")
	case atom.Li:
		r.newline()
		if r.markdown {
			r.write("- ")
		}
		r.children(n)
		r.newline()
	case atom.Pre:
		r.block()
		if r.markdown {
			r.write("```\n" + strings.Trim(textContent(n), "\n") + "\n```")
		} else {
			r.write(strings.Trim(textContent(n), "\n"))
		}
		r.block()
	case atom.A:
		href := attr(n, "href")
		if !r.markdown || href == "" {
			r.children(n)
			return
		}
		r.write("[")
		r.children(n)
		r.write("](" + href + ")")
	case atom.Strong, atom.B:
		r.wrap(n, "**")
	case atom.Em, atom.I:
		r.wrap(n, "*")
	case atom.Code:
		r.wrap(n, "`")
	default:
		r.children(n)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
