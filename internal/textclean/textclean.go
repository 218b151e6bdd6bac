// Package textclean normalizes model prose that slipped into markdown back
// to plain paragraphs.
package textclean

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// Plain strips markdown syntax (headings, emphasis, list markers, links,
// code fences) and returns the text as paragraphs separated by blank lines.
// Raw HTML is dropped.
func Plain(src string) string {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			blocks = append(blocks, s)
		}
		cur.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				cur.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					cur.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				cur.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				cur.Write(node.Label(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					cur.Write(seg.Value(source))
				}
				flush()
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if !entering {
				flush()
			}
		}
		return ast.WalkContinue, nil
	})
	flush()

	return strings.Join(blocks, "\n\n")
}
