// Package markup renders stored Markdown to HTML and formats values for
// Brazilian Portuguese display.
package markup

import (
	"bytes"
	"html/template"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
	})
	return markdown
}

// ToHTML converts Markdown to HTML. Raw HTML in the source is dropped by the
// renderer, so the result is safe to embed in a page.
func ToHTML(source string) (template.HTML, error) {
	if strings.TrimSpace(source) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// MustHTML is ToHTML for templates; a conversion error renders the source
// as escaped text.
func MustHTML(source string) template.HTML {
	out, err := ToHTML(source)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(source))
	}
	return out
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`,
	"#", `\#`, "|", `\|`, "~", `\~`, "!", `\!`,
)

// EscapeText makes user-supplied text inert inside a Markdown document.
func EscapeText(s string) string {
	return markdownEscaper.Replace(s)
}
