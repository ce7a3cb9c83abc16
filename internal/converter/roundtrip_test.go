package converter

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// structure lists the headings, list items and links of a Markdown
// document in order. Inline formatting is ignored.
func structure(t *testing.T, markdown string) []string {
	t.Helper()
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			out = append(out, fmt.Sprintf("h%d:%s", node.Level, nodeText(node, src)))
		case *ast.List:
			out = append(out, fmt.Sprintf("list:ordered=%t", node.IsOrdered()))
		case *ast.ListItem:
			out = append(out, "li:"+nodeText(node, src))
		case *ast.Link:
			out = append(out, fmt.Sprintf("a:%s:%s", node.Destination, nodeText(node, src)))
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)
	return out
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func toHTML(t *testing.T, markdown string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, goldmark.Convert([]byte(markdown), &buf))
	return buf.String()
}

func TestConvert_RoundTripsStructure(t *testing.T) {
	docs := map[string]string{
		"headings and paragraphs": `# Title

Intro with a [link](https://example.com/x) and *emphasis*.

## Section

Body text.

### Sub section
`,
		"lists": `# Lists

- one
- two
- three with [ref](https://example.com/ref)

1. first
2. second
`,
		"nested list": `## Nested

- parent
  - child a
  - child b
- sibling
`,
		"mixed": `# Guide

Read the [docs](https://example.com/docs) first.

## Steps

1. Install
2. Configure the **service**
3. Run

## Links

- [home](https://example.com/)
- [about](https://example.com/about)
`,
	}

	c := New()
	for name, markdown := range docs {
		t.Run(name, func(t *testing.T) {
			want := structure(t, markdown)
			got := structure(t, c.Convert(toHTML(t, markdown)))
			assert.Equal(t, want, got)
		})
	}
}
