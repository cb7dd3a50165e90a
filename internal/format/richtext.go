package format

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))

	descriptionPolicy = func() *bluemonday.Policy {
		p := bluemonday.UGCPolicy()
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		return p
	}()

	strictPolicy = bluemonday.StrictPolicy()
)

// Markdown renders a product description to sanitised HTML. Raw HTML embedded in the source
// is escaped by the renderer and anything left is filtered by the UGC policy.
func Markdown(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(descriptionPolicy.SanitizeBytes(buf.Bytes()))
}

// PlainText strips every tag from user supplied text such as review comments. The result is
// entity-escaped and safe to emit as HTML.
func PlainText(s string) template.HTML {
	return template.HTML(strings.TrimSpace(strictPolicy.Sanitize(s)))
}
