// Package glossary loads term tables that steer the model towards preferred
// renderings of domain vocabulary.
//
// A glossary is a CSV resource, local or served over HTTP(S), whose first row
// is a header and whose first two columns hold the source term and the
// preferred target term. Rows without a target term are dropped so a blank
// mapping is never injected into a prompt.
package glossary

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// LoadError reports an unreachable or malformed glossary resource.
type LoadError struct {
	Location string
	Cause    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("glossary %s: %v", e.Location, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Row is one source term and its preferred translation.
type Row struct {
	Source string
	Target string
}

// Table is an ordered, read-only set of glossary rows.
type Table struct {
	rows     []Row
	index    map[string]int
	rendered string
}

// New builds a table from rows, keeping their order. Rows with an empty
// source or target are skipped; a repeated source term keeps its first row.
func New(rows []Row) *Table {
	t := &Table{index: make(map[string]int, len(rows))}
	for _, r := range rows {
		r.Source = strings.TrimSpace(r.Source)
		r.Target = strings.TrimSpace(r.Target)
		if r.Source == "" || r.Target == "" {
			continue
		}
		if _, dup := t.index[r.Source]; dup {
			continue
		}
		t.index[r.Source] = len(t.rows)
		t.rows = append(t.rows, r)
	}
	t.rendered = render(t.rows)
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns a copy of the rows in source order.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	return append([]Row(nil), t.rows...)
}

// Lookup returns the target term for a case-sensitive source term.
func (t *Table) Lookup(source string) (string, bool) {
	if t == nil {
		return "", false
	}
	i, ok := t.index[source]
	if !ok {
		return "", false
	}
	return t.rows[i].Target, true
}

// Render returns the prompt representation: one "source - target" line per
// row, in source order. The string is computed once at construction.
func (t *Table) Render() string {
	if t == nil {
		return ""
	}
	return t.rendered
}

func render(rows []Row) string {
	width := 0
	for _, r := range rows {
		if n := len([]rune(r.Source)); n > width {
			width = n
		}
	}
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.Source)
		b.WriteString(strings.Repeat(" ", width-len([]rune(r.Source))+1))
		b.WriteString("- ")
		b.WriteString(r.Target)
	}
	return b.String()
}

// Parse reads a CSV glossary. The header row is skipped and only the first
// two columns are used.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty glossary")
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("glossary needs at least two columns, header has %d", len(header))
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			continue
		}
		rows = append(rows, Row{Source: rec[0], Target: rec[1]})
	}
	return New(rows), nil
}

// Loader fetches glossaries from paths or URLs.
type Loader struct {
	HTTPClient *http.Client
}

// Load fetches and parses the glossary at location. An empty location
// yields an empty table.
func (l *Loader) Load(ctx context.Context, location string) (*Table, error) {
	if strings.TrimSpace(location) == "" {
		return New(nil), nil
	}

	rc, err := l.open(ctx, location)
	if err != nil {
		return nil, &LoadError{Location: location, Cause: err}
	}
	defer rc.Close()

	t, err := Parse(rc)
	if err != nil {
		return nil, &LoadError{Location: location, Cause: err}
	}
	return t, nil
}

func (l *Loader) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return os.Open(location) // #nosec G304 - glossary location is configured by the operator
	}

	client := l.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// Load fetches a glossary with the default loader.
func Load(ctx context.Context, location string) (*Table, error) {
	var l Loader
	return l.Load(ctx, location)
}
