package catalog

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// VerifyError lists the entries an independent gettext reader could not
// resolve to the expected translation.
type VerifyError struct {
	Mismatches []string
}

func (e *VerifyError) Error() string {
	const limit = 5
	shown := e.Mismatches
	if len(shown) > limit {
		shown = shown[:limit]
	}
	return fmt.Sprintf("catalog verification failed for %d entries: %s",
		len(e.Mismatches), strings.Join(shown, "; "))
}

// Verify re-reads serialized catalog data with gotext and checks that every
// translated singular entry of f resolves to its msgstr. Fuzzy, obsolete and
// plural entries are not checked because gettext readers treat them
// differently.
func Verify(data []byte, f *File) error {
	po := gotext.NewPo()
	po.Parse(data)
	plain := po.GetDomain().GetTranslations()
	withCtx := po.GetDomain().GetCtxTranslations()

	var mismatches []string
	for _, e := range f.Entries {
		if e.Obsolete || e.MsgID == "" || e.MsgStr == "" || e.IsPlural() || e.HasFlag(FuzzyFlag) {
			continue
		}
		tr := plain[e.MsgID]
		if e.MsgCtxt != "" {
			tr = withCtx[e.MsgCtxt][e.MsgID]
		}
		if tr == nil || tr.Get() != e.MsgStr {
			mismatches = append(mismatches, fmt.Sprintf("%q", truncate(e.MsgID, 40)))
		}
	}
	if len(mismatches) > 0 {
		return &VerifyError{Mismatches: mismatches}
	}
	return nil
}

// Encode serializes f and verifies the result.
func Encode(f *File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	if err := Verify(buf.Bytes(), f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
