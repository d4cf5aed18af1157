// Package render converts article markdown into HTML for the article
// detail endpoint. Rendering is a pure function of the markdown source, so
// results are cacheable by (article, language).
package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown source to HTML.
type Renderer interface {
	Render(markdown string) string
}

type goldmarkRenderer struct {
	md goldmark.Markdown
}

// New builds the default renderer: GitHub-flavored markdown (tables,
// strikethrough, autolinks) with unsafe raw HTML passthrough disabled.
func New() Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	return &goldmarkRenderer{md: md}
}

func (r *goldmarkRenderer) Render(markdown string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	return buf.String()
}
