// Package html provides a Normaliser that extracts readable text from HTML
// files, dropping scripts, styles and markup.
package html

import (
	"context"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// Normalise returns the readable text of an HTML file.
func (n *Normaliser) Normalise(ctx context.Context, path string) (string, error) {
	data, err := normalisers.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}
	return stripHTML(normalisers.CleanText(data)), nil
}

// Text returns the readable text of an HTML fragment. Other normalisers
// use it for HTML bodies embedded in their formats.
func Text(content string) string {
	return stripHTML(content)
}

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Head: true, atom.Svg: true, atom.Template: true,
}

// block elements start and end on their own line.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Table: true, atom.Caption: true, atom.Tr: true,
	atom.Blockquote: true, atom.Pre: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Main: true, atom.Aside: true, atom.Nav: true,
}

// stripHTML returns the readable text of an HTML document. Table cells
// are joined with " | " so schedule rows survive as single lines.
func stripHTML(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	hidden := 0
	cell := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tidy(b.String())

		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped[a] {
				if tt == html.StartTagToken {
					hidden++
				}
				continue
			}
			if hidden > 0 {
				continue
			}
			switch {
			case a == atom.Td || a == atom.Th:
				if cell > 0 {
					b.WriteString(" | ")
				}
				cell++
			case block[a]:
				if a == atom.Tr {
					cell = 0
				}
				b.WriteByte('\n')
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped[a] {
				if hidden > 0 {
					hidden--
				}
				continue
			}
			if hidden == 0 && block[a] {
				b.WriteByte('\n')
			}
		}
	}
}

// tidy collapses runs of whitespace inside lines and drops blank lines.
func tidy(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if f := strings.Fields(line); len(f) > 0 {
			out = append(out, strings.Join(f, " "))
		}
	}
	return strings.Join(out, "\n")
}
