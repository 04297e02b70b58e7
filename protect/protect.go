// Package protect finds the parts of a source string that a translation must
// carry over byte-for-byte: LaTeX math and commands, Markdown link targets and
// inline code, widgets, URLs, filenames and HTML markup.
//
// The model is asked to leave these spans alone but nothing forces it to, so
// every accepted translation is checked with Check.
package protect

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Kind classifies a protected span.
type Kind int

const (
	KindMath Kind = iota
	KindWidget
	KindCode
	KindHTMLTag
	KindHTMLAttr
	KindLinkTarget
	KindURL
	KindFilename
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindMath:
		return "math"
	case KindWidget:
		return "widget"
	case KindCode:
		return "code"
	case KindHTMLTag:
		return "html tag"
	case KindHTMLAttr:
		return "html attribute"
	case KindLinkTarget:
		return "link target"
	case KindURL:
		return "url"
	case KindFilename:
		return "filename"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Span is a protected substring of the text it was extracted from.
type Span struct {
	Kind  Kind
	Text  string
	Start int
	End   int
}

var (
	widgetRe  = regexp.MustCompile(`\[\[☃ [^\]]+\]\]`)
	codeRe    = regexp.MustCompile("`[^`\n]+`")
	linkRe    = regexp.MustCompile(`!?\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	urlRe     = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s<>"'()\[\]]+`)
	fileRe    = regexp.MustCompile(`(?i)[\w\-./]*[\w\-]\.(?:png|jpe?g|gif|svg|webp|pdf|mp4|mp3|csv|json|ya?ml|pot?|txt|md|tex|html?|py|go|js)\b`)
	commandRe = regexp.MustCompile(`\\[a-zA-Z]+\*?`)
)

// Commands whose braced argument is prose and may be translated.
var proseCommands = []string{`\text{`, `\textbf{`, `\textit{`, `\textrm{`, `\emph{`, `\mbox{`}

// Extract returns the protected spans of text ordered by position. Spans never
// overlap; the earlier kind in the Kind list wins.
func Extract(text string) []Span {
	x := &extractor{text: text}
	x.math()
	x.addAll(KindWidget, widgetRe, 0)
	x.addAll(KindCode, codeRe, 0)
	x.html()
	x.addAll(KindLinkTarget, linkRe, 1)
	x.urls()
	x.addAll(KindFilename, fileRe, 0)
	x.addAll(KindCommand, commandRe, 0)

	slices.SortFunc(x.spans, func(a, b Span) int { return a.Start - b.Start })
	return x.spans
}

// Check returns the spans of source that output does not reproduce. A span
// that occurs n times in source must occur at least n times in output.
// Arguments of prose commands such as \text{...} are blanked on both sides
// before comparing.
func Check(source, output string) []Span {
	spans := Extract(skeleton(source))
	if len(spans) == 0 {
		return nil
	}

	out := skeleton(output)
	need := make(map[string]int, len(spans))
	var missing []Span
	for _, s := range spans {
		need[s.Text]++
		if strings.Count(out, s.Text) < need[s.Text] {
			missing = append(missing, s)
		}
	}
	return missing
}

// OnlyProtected reports whether text has nothing to translate: every letter
// belongs to a protected span and no prose command argument is present.
func OnlyProtected(text string) bool {
	if skeleton(text) != text {
		return false
	}

	covered := make([]bool, len(text))
	for _, s := range Extract(text) {
		for i := s.Start; i < s.End; i++ {
			covered[i] = true
		}
	}
	for i, r := range text {
		if !covered[i] && unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

type extractor struct {
	text  string
	spans []Span
}

func (x *extractor) overlaps(start, end int) bool {
	for _, s := range x.spans {
		if start < s.End && s.Start < end {
			return true
		}
	}
	return false
}

func (x *extractor) add(kind Kind, start, end int) bool {
	if start < 0 || start >= end || x.overlaps(start, end) {
		return false
	}
	x.spans = append(x.spans, Span{Kind: kind, Text: x.text[start:end], Start: start, End: end})
	return true
}

func (x *extractor) addAll(kind Kind, re *regexp.Regexp, group int) {
	for _, m := range re.FindAllStringSubmatchIndex(x.text, -1) {
		x.add(kind, m[2*group], m[2*group+1])
	}
}

// addLiteral claims the first unclaimed occurrence of lit.
func (x *extractor) addLiteral(kind Kind, lit string) {
	for from := 0; from < len(x.text); {
		i := strings.Index(x.text[from:], lit)
		if i < 0 {
			return
		}
		start := from + i
		if x.add(kind, start, start+len(lit)) {
			return
		}
		from = start + 1
	}
}

func (x *extractor) urls() {
	for _, m := range urlRe.FindAllStringIndex(x.text, -1) {
		end := m[1]
		for end > m[0] && strings.ContainsRune(".,;:!?", rune(x.text[end-1])) {
			end--
		}
		x.add(KindURL, m[0], end)
	}
}

// math claims $...$, $$...$$, \(...\), \[...\] and \begin{env}...\end{env}.
func (x *extractor) math() {
	t := x.text
	for i := 0; i < len(t); {
		switch {
		case strings.HasPrefix(t[i:], `\\`), strings.HasPrefix(t[i:], `\$`):
			i += 2
		case strings.HasPrefix(t[i:], "$$"):
			i = x.delimited(i, "$$", "$$")
		case t[i] == '$':
			end := closingDollar(t, i+1)
			if end < 0 {
				i++
				continue
			}
			x.add(KindMath, i, end+1)
			i = end + 1
		case strings.HasPrefix(t[i:], `\(`):
			i = x.delimited(i, `\(`, `\)`)
		case strings.HasPrefix(t[i:], `\[`):
			i = x.delimited(i, `\[`, `\]`)
		case strings.HasPrefix(t[i:], `\begin{`):
			name := strings.IndexByte(t[i+7:], '}')
			if name < 0 {
				i += 7
				continue
			}
			i = x.delimited(i, t[i:i+7+name+1], `\end{`+t[i+7:i+7+name]+`}`)
		default:
			i++
		}
	}
}

// delimited claims the span starting at i with open and ending with the next
// close, returning where scanning continues.
func (x *extractor) delimited(i int, open, close string) int {
	end := strings.Index(x.text[i+len(open):], close)
	if end < 0 {
		return i + len(open)
	}
	stop := i + len(open) + end + len(close)
	x.add(KindMath, i, stop)
	return stop
}

// closingDollar returns the index of the $ that closes inline math opened
// just before from, or -1. Delimiters follow pandoc: the opening $ is not
// followed by whitespace, and the closing $ is neither preceded by
// whitespace nor followed by a digit, so "$5 and $10" is prose. A $ after
// whitespace starts the next formula, so the opener was a plain dollar.
func closingDollar(t string, from int) int {
	if from >= len(t) || isSpaceByte(t[from]) {
		return -1
	}
	for j := from; j < len(t); j++ {
		switch t[j] {
		case '\\':
			j++
		case '$':
			if j == from {
				return -1
			}
			if isSpaceByte(t[j-1]) {
				return -1
			}
			if j+1 < len(t) && t[j+1] >= '0' && t[j+1] <= '9' {
				continue
			}
			return j
		}
	}
	return -1
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// html claims tag openers, closing tags and src/href attribute values.
func (x *extractor) html() {
	if !strings.Contains(x.text, "<") {
		return
	}

	z := html.NewTokenizer(strings.NewReader(x.text))
	offset := 0
	found := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		n := len(z.Raw())
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			x.add(KindHTMLTag, offset, offset+1+len(name))
			found = true
		case html.EndTagToken:
			x.add(KindHTMLTag, offset, offset+n)
			found = true
		}
		offset += n
	}
	if !found {
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(x.text))
	if err != nil {
		return
	}
	doc.Find("[src], [href]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "href"} {
			if v, ok := s.Attr(attr); ok && v != "" {
				x.addLiteral(KindHTMLAttr, v)
			}
		}
	})
}

// skeleton blanks the arguments of prose commands.
func skeleton(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		cmd := proseCommandAt(s, i)
		if cmd == "" {
			b.WriteByte(s[i])
			i++
			continue
		}
		b.WriteString(cmd)
		closing := matchBrace(s, i+len(cmd)-1)
		if closing < 0 {
			b.WriteString(s[i+len(cmd):])
			break
		}
		b.WriteByte('}')
		i = closing + 1
	}
	return b.String()
}

func proseCommandAt(s string, i int) string {
	if s[i] != '\\' {
		return ""
	}
	for _, cmd := range proseCommands {
		if strings.HasPrefix(s[i:], cmd) {
			return cmd
		}
	}
	return ""
}

// matchBrace returns the index of the brace closing the one at open.
func matchBrace(s string, open int) int {
	depth := 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}
