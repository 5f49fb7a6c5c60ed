package api

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Chavalentas/Semantic-Search-Project/internal/markdown"
)

//go:embed docs.md
var docsSource []byte

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  *, *::before, *::after { box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; margin: 0; display: flex; justify-content: center; }
  .card { max-width: 760px; width: 92%; background: #1e293b; border-radius: 12px; padding: 2.5rem; margin: 2rem 0; box-shadow: 0 25px 50px rgba(0,0,0,0.4); }
  nav { border-bottom: 1px solid #334155; margin-bottom: 1.5rem; padding-bottom: 1rem; }
  h1, h2 { color: #f8fafc; }
  a { color: #38bdf8; text-decoration: none; }
  a:hover { text-decoration: underline; }
  pre { background: #0f172a; border: 1px solid #334155; border-radius: 8px; padding: 1rem; overflow-x: auto; font-size: 0.85rem; }
  code { font-family: "SF Mono", "Fira Code", Menlo, monospace; color: #a5b4fc; }
  table { border-collapse: collapse; }
  td, th { border: 1px solid #334155; padding: 0.3rem 0.7rem; }
</style>
</head>
<body>
<div class="card">
<nav>{{.TOC}}</nav>
{{.Body}}
</div>
</body>
</html>`))

// renderLanding renders the embedded API documentation once.
func renderLanding() ([]byte, error) {
	page, err := markdown.NewRenderer().Render(docsSource)
	if err != nil {
		return nil, fmt.Errorf("render docs: %w", err)
	}

	var buf bytes.Buffer
	err = landingTemplate.Execute(&buf, struct {
		Title string
		TOC   template.HTML
		Body  template.HTML
	}{
		Title: page.Title,
		TOC:   template.HTML(page.TOC),
		Body:  template.HTML(page.Body),
	})
	if err != nil {
		return nil, fmt.Errorf("execute landing template: %w", err)
	}
	return buf.Bytes(), nil
}

// NewLandingHandler returns a handler serving the documentation page at /.
func NewLandingHandler() (gin.HandlerFunc, error) {
	html, err := renderLanding()
	if err != nil {
		return nil, err
	}
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
	}, nil
}
