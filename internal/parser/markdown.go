package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gtext "github.com/yuin/goldmark/text"
)

func parseMarkdown(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	text, blocks := markdownText(data)
	return &Document{Text: text, Pages: blocks}, nil
}

// markdownText drops markdown syntax and keeps the readable text.
// Paragraph-level blocks are separated by a blank line so the chunker can
// split on them.
func markdownText(src []byte) (string, int) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(gtext.NewReader(src))

	var (
		b      strings.Builder
		blocks int
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
			} else {
				endBlock(&b)
				blocks++
			}
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				endBlock(&b)
				blocks++
			}
		case *ast.TextBlock:
			if !entering {
				endLine(&b)
			}
		case *east.TableCell:
			if !entering {
				b.WriteByte('\t')
			}
		case *east.TableHeader, *east.TableRow:
			if !entering {
				endLine(&b)
			}
		case *east.Table:
			if !entering {
				endBlock(&b)
				blocks++
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String()), blocks
}

func endLine(b *strings.Builder) {
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
}

func endBlock(b *strings.Builder) {
	s := b.String()
	switch {
	case s == "", strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		b.WriteByte('\n')
	default:
		b.WriteString("\n\n")
	}
}
