// Package markdown renders message content for HTML clients.
package markdown

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced code block found in a message.
type CodeBlock struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Renderer converts message markdown to HTML. Raw HTML in the source is escaped.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer returns a renderer with GitHub flavored markdown enabled.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// Render converts content to HTML.
func (r *Renderer) Render(content string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}
	return buf.String(), nil
}

// CodeBlocks returns the fenced code blocks of content in document order.
// Blocks without an info string have an empty Language.
func (r *Renderer) CodeBlocks(content string) []CodeBlock {
	source := []byte(content)
	doc := r.md.Parser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var code strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			code.Write(seg.Value(source))
		}
		blocks = append(blocks, CodeBlock{
			Language: string(fenced.Language(source)),
			Code:     code.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
