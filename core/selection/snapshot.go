package selection

import (
	"fmt"
	"io"
	"slices"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/leofalp/explainer/core/request"
)

// blockSelector matches the elements whose text counts as "the block" a
// selection sits in.
const blockSelector = "p, li, td, th, blockquote, pre, h1, h2, h3, h4, h5, h6, dd, dt, figcaption, div"

// FromHTML captures a selection from a page snapshot. selector identifies the
// selected element; its markup is flattened to markdown text so inline code
// and emphasis survive. The preceding context is the text of the enclosing
// block before the selection, or of the previous block when the selection is
// the whole block.
func FromHTML(page io.Reader, selector, pageURL string, position request.Position) (request.SelectionContext, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return request.SelectionContext{}, fmt.Errorf("failed to parse page snapshot: %w", err)
	}

	selected := doc.Find(selector).First()
	if selected.Length() == 0 {
		return request.SelectionContext{}, fmt.Errorf("no element matches %q", selector)
	}

	text, err := selectionText(selected)
	if err != nil {
		return request.SelectionContext{}, err
	}

	return Capture(Raw{
		Text:          text,
		PrecedingText: precedingText(selected),
		PageTitle:     doc.Find("title").First().Text(),
		PageURL:       pageURL,
		Position:      position,
	})
}

func selectionText(selected *goquery.Selection) (string, error) {
	fragment, err := goquery.OuterHtml(selected)
	if err != nil {
		return "", fmt.Errorf("failed to serialize selection: %w", err)
	}
	markdown, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("failed to convert selection to markdown: %w", err)
	}
	return markdown, nil
}

func precedingText(selected *goquery.Selection) string {
	if !selected.Is(blockSelector) {
		block := selected.ParentsFiltered(blockSelector).First()
		if block.Length() > 0 {
			if before := textBefore(block, selected); strings.TrimSpace(before) != "" {
				return before
			}
		}
	}

	previous := selected.PrevAllFiltered(blockSelector).First()
	return previous.Text()
}

// textBefore returns the text of block that precedes selected in document
// order, collecting previous siblings at every level up to block.
func textBefore(block, selected *goquery.Selection) string {
	root := block.Get(0)

	var parts []string
	for node := selected.Get(0); node != nil && node != root; node = node.Parent {
		for sibling := node.PrevSibling; sibling != nil; sibling = sibling.PrevSibling {
			parts = append(parts, goquery.NewDocumentFromNode(sibling).Text())
		}
	}
	slices.Reverse(parts)
	return strings.Join(parts, "")
}
