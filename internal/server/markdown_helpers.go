package server

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// renderMarkdown converts briefing or summary markdown to HTML.
// Links open in a new tab; raw HTML in the source is dropped.
func renderMarkdown(text string) string {
	if text == "" {
		return ""
	}

	// A parser can't be reused across documents
	mdParser := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML,
	})

	return string(markdown.ToHTML([]byte(text), mdParser, renderer))
}
