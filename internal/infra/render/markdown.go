package render

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockListItem  BlockKind = "list_item"
	BlockCode      BlockKind = "code"
)

// Block is one printable unit. Blocks are never split across pages.
type Block struct {
	Kind  BlockKind
	Level int // heading level, or list nesting depth starting at 1
	Text  string
}

var mdParser = goldmark.New().Parser()

// ParseBlocks flattens markdown into printable blocks in document order.
// Inline markup is reduced to its text.
func ParseBlocks(md string) []Block {
	src := []byte(md)
	doc := mdParser.Parse(text.NewReader(src))
	var out []Block
	collectBlocks(doc, src, 0, &out)
	return out
}

func collectBlocks(parent ast.Node, src []byte, depth int, out *[]Block) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch v := n.(type) {
		case *ast.Heading:
			appendBlock(out, Block{Kind: BlockHeading, Level: v.Level, Text: inlineText(v, src)})
		case *ast.Paragraph, *ast.TextBlock:
			appendBlock(out, Block{Kind: BlockParagraph, Text: inlineText(v, src)})
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			appendBlock(out, Block{Kind: BlockCode, Text: rawLines(v, src)})
		case *ast.List:
			collectList(v, src, depth+1, out)
		case *ast.Blockquote:
			collectBlocks(v, src, depth, out)
		}
	}
}

func collectList(list *ast.List, src []byte, depth int, out *[]Block) {
	num := list.Start
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		prefix := "- "
		if list.IsOrdered() {
			prefix = strconv.Itoa(num) + ". "
			num++
		}
		var parts []string
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				if len(parts) > 0 {
					appendBlock(out, Block{Kind: BlockListItem, Level: depth, Text: prefix + strings.Join(parts, " ")})
					parts = nil
					prefix = ""
				}
				collectList(sub, src, depth+1, out)
				continue
			}
			if t := inlineText(c, src); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			appendBlock(out, Block{Kind: BlockListItem, Level: depth, Text: prefix + strings.Join(parts, " ")})
		}
	}
}

func appendBlock(out *[]Block, b Block) {
	b.Text = strings.TrimSpace(b.Text)
	if b.Text == "" {
		return
	}
	*out = append(*out, b)
}

func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.URL(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func rawLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}
