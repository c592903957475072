package selection

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/leofalp/explainer/core/request"
)

// ErrSelectionTooShort is returned when the trimmed selection is shorter than
// request.MinSelectionLength characters.
var ErrSelectionTooShort = errors.New("selection too short")

// Raw is what the surface observed when the selection ended.
type Raw struct {
	Text string
	// PrecedingText is the text of the enclosing block before the selection.
	PrecedingText string
	PageTitle     string
	PageURL       string
	Position      request.Position
}

// Capture validates a raw selection and freezes it into a SelectionContext.
func Capture(raw Raw) (request.SelectionContext, error) {
	text := strings.TrimSpace(raw.Text)
	if utf8.RuneCountInString(text) < request.MinSelectionLength {
		return request.SelectionContext{}, ErrSelectionTooShort
	}

	return request.SelectionContext{
		Text:          text,
		ContextBefore: lastRunes(strings.TrimSpace(collapseSpace(raw.PrecedingText)), request.MaxContextBefore),
		PageTitle:     strings.TrimSpace(raw.PageTitle),
		PageURL:       raw.PageURL,
		Position:      raw.Position,
	}, nil
}

// lastRunes keeps the trailing n runes of s, the part closest to the
// selection.
func lastRunes(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[count-n:])
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
