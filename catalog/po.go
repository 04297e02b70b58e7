// Package catalog reads and writes gettext PO catalogs.
//
// A catalog is an ordered list of entries plus a header entry holding the
// document metadata. Parsing and writing keep entry order, comments, flags,
// contexts, plural forms and obsolete entries so that a catalog survives a
// round trip through the translator unchanged apart from its msgstr values.
package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// FuzzyFlag marks an entry whose translation needs review.
const FuzzyFlag = "fuzzy"

// Entry is a single message of a catalog.
type Entry struct {
	TranslatorComments []string // "# " lines
	ExtractedComments  []string // "#." lines
	References         []string // "#:" lines
	Flags              []string // "#," lines, split on commas
	PreviousMsgID      string   // "#| msgid" line

	MsgCtxt      string
	MsgID        string
	MsgIDPlural  string
	MsgStr       string
	MsgStrPlural map[int]string

	Obsolete bool
}

// Key identifies an entry inside a catalog. It follows the gettext
// convention of joining context and msgid with an EOT byte.
func (e *Entry) Key() string {
	if e.MsgCtxt == "" {
		return e.MsgID
	}
	return e.MsgCtxt + "\x04" + e.MsgID
}

// IsPlural reports whether the entry carries a msgid_plural.
func (e *Entry) IsPlural() bool {
	return e.MsgIDPlural != ""
}

// IsTranslated reports whether every msgstr slot of the entry is filled.
func (e *Entry) IsTranslated() bool {
	if e.MsgID == "" || e.HasFlag(FuzzyFlag) {
		return false
	}
	if e.IsPlural() {
		if len(e.MsgStrPlural) == 0 {
			return false
		}
		for _, v := range e.MsgStrPlural {
			if v == "" {
				return false
			}
		}
		return true
	}
	return e.MsgStr != ""
}

// HasFlag checks if a specific flag is present.
func (e *Entry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// SetFlag adds or removes a flag.
func (e *Entry) SetFlag(flag string, on bool) {
	if on {
		if !e.HasFlag(flag) {
			e.Flags = append(e.Flags, flag)
		}
		return
	}
	kept := e.Flags[:0]
	for _, f := range e.Flags {
		if f != flag {
			kept = append(kept, f)
		}
	}
	e.Flags = kept
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.TranslatorComments = cloneStrings(e.TranslatorComments)
	c.ExtractedComments = cloneStrings(e.ExtractedComments)
	c.References = cloneStrings(e.References)
	c.Flags = cloneStrings(e.Flags)
	if e.MsgStrPlural != nil {
		c.MsgStrPlural = make(map[int]string, len(e.MsgStrPlural))
		for k, v := range e.MsgStrPlural {
			c.MsgStrPlural[k] = v
		}
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// File is a parsed catalog. Header is nil when the source had no header entry.
type File struct {
	Header  *Entry
	Entries []*Entry
}

// NewFile creates an empty catalog with an empty header.
func NewFile() *File {
	return &File{Header: &Entry{}}
}

// Clone returns a deep copy of the catalog.
func (f *File) Clone() *File {
	c := &File{Entries: make([]*Entry, len(f.Entries))}
	if f.Header != nil {
		c.Header = f.Header.Clone()
	}
	for i, e := range f.Entries {
		c.Entries[i] = e.Clone()
	}
	return c
}

// HeaderField returns a metadata value by name (case-insensitive).
func (f *File) HeaderField(name string) string {
	if f.Header == nil {
		return ""
	}
	for _, line := range strings.Split(f.Header.MsgStr, "\n") {
		if idx := strings.Index(line, ":"); idx > 0 {
			if strings.EqualFold(strings.TrimSpace(line[:idx]), name) {
				return strings.TrimSpace(line[idx+1:])
			}
		}
	}
	return ""
}

// SetHeaderField sets a metadata value, appending the field when missing.
func (f *File) SetHeaderField(name, value string) {
	if f.Header == nil {
		f.Header = &Entry{}
	}
	lines := strings.Split(f.Header.MsgStr, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, ":"); idx > 0 && strings.EqualFold(strings.TrimSpace(line[:idx]), name) {
			lines[i] = name + ": " + value
			f.Header.MsgStr = strings.Join(lines, "\n")
			return
		}
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = append(lines[:n-1], name+": "+value, "")
	} else {
		lines = append(lines, name+": "+value)
	}
	f.Header.MsgStr = strings.Join(lines, "\n")
}

// Stats counts live (non-obsolete) entries by state.
func (f *File) Stats() (total, translated, fuzzy, untranslated int) {
	for _, e := range f.Entries {
		if e.MsgID == "" || e.Obsolete {
			continue
		}
		total++
		switch {
		case e.HasFlag(FuzzyFlag):
			fuzzy++
		case e.IsTranslated():
			translated++
		default:
			untranslated++
		}
	}
	return
}

// NPlurals reads nplurals from the Plural-Forms header, defaulting to 2.
func (f *File) NPlurals() int {
	pf := f.HeaderField("Plural-Forms")
	idx := strings.Index(pf, "nplurals=")
	if idx < 0 {
		return 2
	}
	var n int
	if _, err := fmt.Sscanf(pf[idx:], "nplurals=%d", &n); err != nil || n < 1 {
		return 2
	}
	return n
}

// Parse reads a catalog from r.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var cur *Entry
	var field string
	lineNum := 0

	flush := func() {
		if cur == nil {
			return
		}
		if cur.MsgID == "" && !cur.Obsolete && f.Header == nil && len(f.Entries) == 0 {
			f.Header = cur
		} else {
			f.Entries = append(f.Entries, cur)
		}
		cur = nil
		field = ""
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if cur == nil {
			cur = &Entry{}
		}

		if strings.HasPrefix(line, "#~") {
			cur.Obsolete = true
			line = strings.TrimPrefix(strings.TrimPrefix(line, "#~"), " ")
		}

		if strings.HasPrefix(line, "#") {
			parseComment(cur, line)
			continue
		}

		switch {
		case strings.HasPrefix(line, "msgctxt "):
			cur.MsgCtxt = unquote(line[len("msgctxt "):])
			field = "msgctxt"
		case strings.HasPrefix(line, "msgid_plural "):
			cur.MsgIDPlural = unquote(line[len("msgid_plural "):])
			field = "msgid_plural"
		case strings.HasPrefix(line, "msgid "):
			cur.MsgID = unquote(line[len("msgid "):])
			field = "msgid"
		case strings.HasPrefix(line, "msgstr["):
			var idx int
			if _, err := fmt.Sscanf(line, "msgstr[%d]", &idx); err != nil {
				return nil, fmt.Errorf("line %d: invalid msgstr index: %q", lineNum, line)
			}
			end := strings.Index(line, "]")
			if cur.MsgStrPlural == nil {
				cur.MsgStrPlural = make(map[int]string)
			}
			cur.MsgStrPlural[idx] = unquote(line[end+1:])
			field = fmt.Sprintf("msgstr[%d]", idx)
		case strings.HasPrefix(line, "msgstr "):
			cur.MsgStr = unquote(line[len("msgstr "):])
			field = "msgstr"
		case strings.HasPrefix(strings.TrimSpace(line), `"`):
			val := unquote(line)
			switch {
			case field == "msgctxt":
				cur.MsgCtxt += val
			case field == "msgid":
				cur.MsgID += val
			case field == "msgid_plural":
				cur.MsgIDPlural += val
			case field == "msgstr":
				cur.MsgStr += val
			case strings.HasPrefix(field, "msgstr["):
				var idx int
				fmt.Sscanf(field, "msgstr[%d]", &idx)
				cur.MsgStrPlural[idx] += val
			default:
				return nil, fmt.Errorf("line %d: continuation without a keyword", lineNum)
			}
		default:
			return nil, fmt.Errorf("line %d: unexpected content: %q", lineNum, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return f, nil
}

func parseComment(e *Entry, line string) {
	switch {
	case strings.HasPrefix(line, "#:"):
		e.References = append(e.References, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#,"):
		for _, flag := range strings.Split(line[2:], ",") {
			if flag = strings.TrimSpace(flag); flag != "" {
				e.Flags = append(e.Flags, flag)
			}
		}
	case strings.HasPrefix(line, "#."):
		e.ExtractedComments = append(e.ExtractedComments, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#|"):
		prev := strings.TrimSpace(line[2:])
		if strings.HasPrefix(prev, "msgid ") {
			e.PreviousMsgID = unquote(prev[len("msgid "):])
		}
	default:
		e.TranslatorComments = append(e.TranslatorComments, strings.TrimPrefix(line[1:], " "))
	}
}

// ParseFile reads a catalog from disk.
func ParseFile(path string) (*File, error) {
	in, err := os.Open(path) // #nosec G304 - catalog paths are user-provided
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return Parse(in)
}

// Write serializes the catalog to w.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	first := true
	if f.Header != nil {
		writeEntry(bw, f.Header)
		first = false
	}
	for _, e := range f.Entries {
		if !first {
			bw.WriteByte('\n')
		}
		first = false
		writeEntry(bw, e)
	}
	return bw.Flush()
}

func writeEntry(w *bufio.Writer, e *Entry) {
	prefix := ""
	if e.Obsolete {
		prefix = "#~ "
	}

	for _, c := range e.TranslatorComments {
		if c == "" {
			w.WriteString("#\n")
			continue
		}
		fmt.Fprintf(w, "# %s\n", c)
	}
	for _, c := range e.ExtractedComments {
		fmt.Fprintf(w, "#. %s\n", c)
	}
	for _, ref := range e.References {
		fmt.Fprintf(w, "#: %s\n", ref)
	}
	if len(e.Flags) > 0 {
		fmt.Fprintf(w, "#, %s\n", strings.Join(e.Flags, ", "))
	}
	if e.PreviousMsgID != "" {
		fmt.Fprintf(w, "#| msgid %s\n", quote(e.PreviousMsgID))
	}

	if e.MsgCtxt != "" {
		writeField(w, prefix+"msgctxt", e.MsgCtxt)
	}
	writeField(w, prefix+"msgid", e.MsgID)
	if e.IsPlural() {
		writeField(w, prefix+"msgid_plural", e.MsgIDPlural)
		indices := make([]int, 0, len(e.MsgStrPlural))
		for idx := range e.MsgStrPlural {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			writeField(w, fmt.Sprintf("%smsgstr[%d]", prefix, idx), e.MsgStrPlural[idx])
		}
		return
	}
	writeField(w, prefix+"msgstr", e.MsgStr)
}

// writeField writes a keyword and its value, switching to the multi-line
// form when the value contains newlines.
func writeField(w *bufio.Writer, keyword, value string) {
	if !strings.Contains(value, "\n") || value == "\n" {
		fmt.Fprintf(w, "%s %s\n", keyword, quote(value))
		return
	}
	fmt.Fprintf(w, "%s \"\"\n", keyword)
	parts := strings.SplitAfter(value, "\n")
	for _, part := range parts {
		if part == "" {
			continue
		}
		fmt.Fprintf(w, "%s\n", quote(part))
	}
}

var quoter = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

func quote(s string) string {
	return `"` + quoter.Replace(s) + `"`
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i+1])
		}
		i++
	}
	return b.String()
}
