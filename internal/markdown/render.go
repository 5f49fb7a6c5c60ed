// Package markdown renders the server's Markdown documentation to HTML with
// a generated table of contents.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is a heading of the rendered document.
type Section struct {
	ID         string
	Level      int
	Title      string
	HeaderPath string // Hierarchy: "# API > ## POST /title/search"
}

// Page is a rendered document.
type Page struct {
	Title    string // text of the first H1, if any
	TOC      string // nested <ul> of links to H1-H2 headings
	Body     string
	Sections []Section
}

// Renderer converts Markdown to HTML.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with heading ids and GFM tables enabled.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Renderer{md: md}
}

// Render parses source and renders the body and its table of contents.
func (r *Renderer) Render(source []byte) (*Page, error) {
	doc := r.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	page := &Page{}
	collectSections(tree.Items, nil, 1, &page.Sections)
	for _, s := range page.Sections {
		if s.Level == 1 {
			page.Title = s.Title
			break
		}
	}

	var buf bytes.Buffer
	if list := toc.RenderList(tree); list != nil {
		if err := r.md.Renderer().Render(&buf, source, list); err != nil {
			return nil, fmt.Errorf("render TOC: %w", err)
		}
		page.TOC = buf.String()
		buf.Reset()
	}

	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}
	page.Body = buf.String()
	return page, nil
}

// collectSections flattens the TOC tree depth first.
func collectSections(items toc.Items, ancestors []string, level int, out *[]Section) {
	for _, item := range items {
		path := append(ancestors[:len(ancestors):len(ancestors)], string(item.Title))
		if len(item.ID) > 0 {
			*out = append(*out, Section{
				ID:         string(item.ID),
				Level:      level,
				Title:      string(item.Title),
				HeaderPath: formatHeaderPath(path),
			})
		}
		collectSections(item.Items, path, level+1, out)
	}
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", i+1), segment)
	}
	return strings.Join(parts, " > ")
}
