package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/bidi"
)

// Direction is the layout direction of a rendered response.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// DetectDirection classifies text word by word. Words containing a
// right-to-left letter count as RTL, words with a Latin letter count as LTR,
// other scripts, numerals and symbols are ignored. The result is RTL only
// when RTL words are a strict majority of classified words.
func DetectDirection(text string) Direction {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})

	var rtl, ltr int
	for _, word := range words {
		switch classifyWord(word) {
		case RTL:
			rtl++
		case LTR:
			ltr++
		}
	}

	if rtl > 0 && rtl*2 > rtl+ltr {
		return RTL
	}
	return LTR
}

// classifyWord returns "" for words with neither a right-to-left nor a
// Latin letter.
func classifyWord(word string) Direction {
	var sawLatin bool
	for _, r := range word {
		props, _ := bidi.LookupRune(r)
		switch props.Class() {
		case bidi.R, bidi.AL:
			return RTL
		case bidi.L:
			if unicode.Is(unicode.Latin, r) {
				sawLatin = true
			}
		}
	}
	if sawLatin {
		return LTR
	}
	return ""
}
