package render

import (
	"html"
	"regexp"
	"strings"
)

type BlockKind int

const (
	BlockText BlockKind = iota
	BlockUnordered
	BlockOrdered
)

func (k BlockKind) String() string {
	switch k {
	case BlockUnordered:
		return "unordered"
	case BlockOrdered:
		return "ordered"
	default:
		return "text"
	}
}

// Block is a run of text lines or the items of one list
type Block struct {
	Kind  BlockKind
	Lines []string
}

var (
	boldLabelRe   = regexp.MustCompile(`\*\*(.+?):\*\*`)
	orderedItemRe = regexp.MustCompile(`^\d+\.\s+`)
)

// Parse splits a model reply into text and list blocks. A list ends at the
// first line that does not continue it; blank lines end lists and are kept
// inside text blocks.
func Parse(raw string) []Block {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	var (
		blocks []Block
		cur    *Block
	)
	open := func(kind BlockKind) {
		if cur != nil && cur.Kind == kind {
			return
		}
		flush(&blocks, cur)
		cur = &Block{Kind: kind}
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			open(BlockUnordered)
			cur.Lines = append(cur.Lines, strings.TrimSpace(trimmed[2:]))
		case orderedItemRe.MatchString(trimmed):
			open(BlockOrdered)
			cur.Lines = append(cur.Lines, orderedItemRe.ReplaceAllString(trimmed, ""))
		case trimmed == "":
			if cur != nil && cur.Kind == BlockText {
				cur.Lines = append(cur.Lines, "")
				continue
			}
			flush(&blocks, cur)
			cur = nil
		default:
			open(BlockText)
			cur.Lines = append(cur.Lines, strings.TrimRight(line, " \t"))
		}
	}
	flush(&blocks, cur)
	return blocks
}

// flush appends b, dropping blank edge lines of text blocks
func flush(blocks *[]Block, b *Block) {
	if b == nil {
		return
	}
	if b.Kind == BlockText {
		lines := b.Lines
		for len(lines) > 0 && lines[0] == "" {
			lines = lines[1:]
		}
		for len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		b.Lines = lines
	}
	if len(b.Lines) == 0 {
		return
	}
	*blocks = append(*blocks, *b)
}

// HTML renders blocks as escaped presentation markup
func HTML(blocks []Block) string {
	var sb strings.Builder
	for i, b := range blocks {
		switch b.Kind {
		case BlockUnordered, BlockOrdered:
			tag := "ul"
			if b.Kind == BlockOrdered {
				tag = "ol"
			}
			sb.WriteString("<" + tag + ">")
			for _, item := range b.Lines {
				sb.WriteString("<li>" + inline(item) + "</li>")
			}
			sb.WriteString("</" + tag + ">")
		default:
			if i > 0 && blocks[i-1].Kind == BlockText {
				sb.WriteString("<br><br>")
			}
			for j, line := range b.Lines {
				if j > 0 {
					sb.WriteString("<br>")
				}
				sb.WriteString(inline(line))
			}
		}
	}
	return sb.String()
}

// Normalize converts a model reply into presentation markup
func Normalize(raw string) string {
	return HTML(Parse(raw))
}

func inline(s string) string {
	return boldLabelRe.ReplaceAllString(html.EscapeString(s), "<b>$1:</b>")
}
