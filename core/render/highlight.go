package render

import (
	"html"
	"strings"
)

// Token classes emitted by the highlighter as hl-<class> span classes.
const (
	classKeyword  = "keyword"
	classString   = "string"
	classComment  = "comment"
	classNumber   = "number"
	classFunction = "function"
)

type language struct {
	keywords      map[string]bool
	lineComments  []string
	blockComment  [2]string
	quotes        string
	caseSensitive bool
}

func newLanguage(keywords string, quotes string, caseSensitive bool, lineComments []string, blockComment [2]string) *language {
	set := make(map[string]bool)
	for _, keyword := range strings.Fields(keywords) {
		if !caseSensitive {
			keyword = strings.ToLower(keyword)
		}
		set[keyword] = true
	}
	return &language{
		keywords:      set,
		lineComments:  lineComments,
		blockComment:  blockComment,
		quotes:        quotes,
		caseSensitive: caseSensitive,
	}
}

var (
	slashComments = []string{"//"}
	hashComments  = []string{"#"}
	cBlock        = [2]string{"/*", "*/"}
	noBlock       = [2]string{}
)

var genericLanguage = newLanguage(
	"if else for while do return function func def class const let var import from export "+
		"true false null nil none new try catch finally throw switch case break continue",
	`"'`+"`", true, []string{"//", "#"}, cBlock)

var languages = map[string]*language{
	"go": newLanguage(
		"break case chan const continue default defer else fallthrough for func go goto if import "+
			"interface map package range return select struct switch type var nil true false iota",
		`"'`+"`", true, slashComments, cBlock),
	"javascript": newLanguage(
		"async await break case catch class const continue debugger default delete do else enum export "+
			"extends false finally for function if import in instanceof interface let new null return "+
			"super switch this throw true try type typeof undefined var void while with yield",
		`"'`+"`", true, slashComments, cBlock),
	"python": newLanguage(
		"and as assert async await break class continue def del elif else except finally for from "+
			"global if import in is lambda nonlocal not or pass raise return try while with yield None True False",
		`"'`, true, hashComments, noBlock),
	"c": newLanguage(
		"auto break case catch char class const continue default delete do double else enum extends "+
			"extern false final float for goto if implements import int long namespace new null nullptr "+
			"package private protected public return short signed sizeof static struct super switch "+
			"template this throw throws true try typedef union unsigned using virtual void volatile while",
		`"'`, true, slashComments, cBlock),
	"rust": newLanguage(
		"as async await break const continue crate dyn else enum extern false fn for if impl in let loop "+
			"match mod move mut pub ref return self Self static struct super trait true type unsafe use where while",
		`"`, true, slashComments, cBlock),
	"shell": newLanguage(
		"if then else elif fi for while until do done case esac function in return local export echo exit",
		`"'`, true, hashComments, noBlock),
	"sql": newLanguage(
		"select from where and or not insert into values update set delete create table drop alter index "+
			"join left right inner outer on group by order having limit offset as distinct null is in like union",
		`"'`, false, []string{"--"}, cBlock),
	"json": newLanguage("true false null", `"`, true, nil, noBlock),
}

var languageAliases = map[string]string{
	"golang":     "go",
	"js":         "javascript",
	"jsx":        "javascript",
	"ts":         "javascript",
	"tsx":        "javascript",
	"typescript": "javascript",
	"py":         "python",
	"java":       "c",
	"cpp":        "c",
	"c++":        "c",
	"cs":         "c",
	"csharp":     "c",
	"kotlin":     "c",
	"swift":      "c",
	"rs":         "rust",
	"sh":         "shell",
	"bash":       "shell",
	"zsh":        "shell",
	"console":    "shell",
	"postgres":   "sql",
	"mysql":      "sql",
	"sqlite":     "sql",
}

// lookupLanguage falls back to a generic keyword set for unknown tags.
func lookupLanguage(tag string) *language {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if alias, ok := languageAliases[tag]; ok {
		tag = alias
	}
	if lang, ok := languages[tag]; ok {
		return lang
	}
	return genericLanguage
}

// Highlight wraps keywords, strings, comments, numbers and call sites of
// code in hl-* spans. The output is HTML-escaped.
func Highlight(code, tag string) string {
	lang := lookupLanguage(tag)

	var out strings.Builder
	out.Grow(len(code) * 2)

	for i := 0; i < len(code); {
		rest := code[i:]

		if end := lang.commentEnd(rest); end > 0 {
			wrap(&out, classComment, rest[:end])
			i += end
			continue
		}

		c := code[i]
		switch {
		case strings.IndexByte(lang.quotes, c) >= 0:
			end := stringEnd(rest, c)
			wrap(&out, classString, rest[:end])
			i += end
		case isDigit(c) && (i == 0 || !isIdentByte(code[i-1])):
			end := numberEnd(rest)
			wrap(&out, classNumber, rest[:end])
			i += end
		case isIdentStart(c):
			end := identEnd(rest)
			word := rest[:end]
			switch {
			case lang.isKeyword(word):
				wrap(&out, classKeyword, word)
			case strings.HasPrefix(strings.TrimLeft(rest[end:], " \t"), "("):
				wrap(&out, classFunction, word)
			default:
				out.WriteString(word)
			}
			i += end
		default:
			out.WriteString(html.EscapeString(rest[:1]))
			i++
		}
	}

	return out.String()
}

func wrap(out *strings.Builder, class, text string) {
	out.WriteString(`<span class="hl-`)
	out.WriteString(class)
	out.WriteString(`">`)
	out.WriteString(html.EscapeString(text))
	out.WriteString(`</span>`)
}

func (l *language) isKeyword(word string) bool {
	if !l.caseSensitive {
		word = strings.ToLower(word)
	}
	return l.keywords[word]
}

// commentEnd returns the length of the comment starting at s, or 0.
func (l *language) commentEnd(s string) int {
	for _, prefix := range l.lineComments {
		if strings.HasPrefix(s, prefix) {
			if newline := strings.IndexByte(s, '\n'); newline >= 0 {
				return newline
			}
			return len(s)
		}
	}
	if open, closing := l.blockComment[0], l.blockComment[1]; open != "" && strings.HasPrefix(s, open) {
		if end := strings.Index(s[len(open):], closing); end >= 0 {
			return len(open) + end + len(closing)
		}
		return len(s)
	}
	return 0
}

// stringEnd returns the length of the string literal starting at s. Only
// backtick strings may span lines.
func stringEnd(s string, quote byte) int {
	for j := 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		case '\n':
			if quote != '`' {
				return j
			}
		}
	}
	return len(s)
}

func numberEnd(s string) int {
	j := 0
	for j < len(s) && (isIdentByte(s[j]) || s[j] == '.') {
		j++
	}
	return j
}

func identEnd(s string) int {
	j := 0
	for j < len(s) && isIdentByte(s[j]) {
		j++
	}
	return j
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
