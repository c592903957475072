package render

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// openFenceAttr marks a fenced block whose closing fence has not arrived yet.
const openFenceAttr = "data-open"

// blockSelector lists elements a paragraph must never wrap on its own.
const blockSelector = "pre, ul, ol, table, blockquote, hr, h1, h2, h3, h4, h5, h6, div"

var fenceLine = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")

// Renderer converts accumulated markdown into display markup. It is safe for
// concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table),
			goldmark.WithRendererOptions(
				renderer.WithNodeRenderers(util.Prioritized(&codeBlockRenderer{}, 100)),
			),
		),
	}
}

// Render converts source in full. While streaming (final false) a trailing
// unterminated code fence is shown escaped but not highlighted; the final
// pass highlights every block.
func (r *Renderer) Render(source string, final bool) (string, error) {
	src := []byte(source)
	doc := r.md.Parser().Parse(text.NewReader(src))

	if !final && hasOpenFence(source) {
		markLastFence(doc)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	return cleanParagraphs(buf.String())
}

// hasOpenFence reports whether source ends inside a fenced code block.
func hasOpenFence(source string) bool {
	var open string
	for _, line := range strings.Split(source, "\n") {
		match := fenceLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		fence := match[1]
		switch {
		case open == "":
			open = fence
		case fence[0] == open[0] && len(fence) >= len(open) && strings.TrimSpace(line) == strings.TrimSpace(fence):
			open = ""
		}
	}
	return open != ""
}

func markLastFence(doc ast.Node) {
	var last ast.Node
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && node.Kind() == ast.KindFencedCodeBlock {
			last = node
		}
		return ast.WalkContinue, nil
	})
	if last != nil {
		last.SetAttributeString(openFenceAttr, true)
	}
}

// codeBlockRenderer replaces goldmark's fenced code output with highlighted
// markup.
type codeBlockRenderer struct{}

func (c *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, c.renderFencedCode)
}

func (c *codeBlockRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	block := node.(*ast.FencedCodeBlock)

	var code strings.Builder
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		code.Write(segment.Value(source))
	}

	tag := strings.TrimSpace(string(block.Language(source)))
	open := false
	if value, ok := block.AttributeString(openFenceAttr); ok {
		open, _ = value.(bool)
	}

	if open {
		_, _ = w.WriteString(`<pre class="streaming">`)
	} else {
		_, _ = w.WriteString(`<pre>`)
	}
	_, _ = w.WriteString(`<code`)
	if tag != "" {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.WriteString(html.EscapeString(tag))
		_, _ = w.WriteString(`"`)
	}
	_, _ = w.WriteString(`>`)
	if open {
		_, _ = w.WriteString(html.EscapeString(code.String()))
	} else {
		_, _ = w.WriteString(Highlight(code.String(), tag))
	}
	_, _ = w.WriteString("</code></pre>\n")

	return ast.WalkSkipChildren, nil
}

// cleanParagraphs drops empty paragraphs and unwraps paragraphs whose only
// content is a block element.
func cleanParagraphs(markup string) (string, error) {
	if !strings.Contains(markup, "<p") {
		return markup, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse rendered markup: %w", err)
	}

	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		children := p.Children()
		text := strings.TrimSpace(p.Text())
		switch {
		case children.Length() == 0 && text == "":
			p.Remove()
		case children.Length() == 1 && children.Is(blockSelector) && text == strings.TrimSpace(children.Text()):
			p.ReplaceWithSelection(children)
		}
	})

	cleaned, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("serialize rendered markup: %w", err)
	}
	return strings.TrimSpace(cleaned), nil
}
