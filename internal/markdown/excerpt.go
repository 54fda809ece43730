package markdown

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Excerpt derives a plain-text excerpt from a Markdown body, walking the
// parsed tree so markup never leaks into the output. The result is cut at
// the nearest word boundary under maxRunes, with an ellipsis when truncated.
// An explicit frontmatter excerpt should take precedence over this.
func Excerpt(body []byte, maxRunes int) string {
	if maxRunes <= 0 || len(body) == 0 {
		return ""
	}

	root := goldmark.New().Parser().Parse(text.NewReader(body))

	var builder strings.Builder
	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch typed := node.(type) {
		case *ast.Text:
			builder.Write(typed.Segment.Value(body))
			if typed.SoftLineBreak() || typed.HardLineBreak() {
				builder.WriteByte(' ')
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if builder.Len() > 0 {
				builder.WriteByte(' ')
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	plain := strings.Join(strings.Fields(builder.String()), " ")
	runes := []rune(plain)
	if len(runes) <= maxRunes {
		return plain
	}

	cut := maxRunes
	for cut > 0 && !unicode.IsSpace(runes[cut-1]) {
		cut--
	}
	if cut == 0 {
		cut = maxRunes
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}
