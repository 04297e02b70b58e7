package glossary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `ENG,UKR,Notes
angle,кут,geometry
triangle,трикутник,
derivative,,missing target
,порожньо,missing source
angle,інший кут,duplicate
right angle,прямий кут,
`

func TestParse(t *testing.T) {
	table, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if table.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d: %v", table.Len(), table.Rows())
	}

	if got, ok := table.Lookup("angle"); !ok || got != "кут" {
		t.Errorf("Lookup(angle) = %q, %v", got, ok)
	}
	if _, ok := table.Lookup("derivative"); ok {
		t.Error("rows without a target must be dropped")
	}
	if _, ok := table.Lookup("Angle"); ok {
		t.Error("lookup should be case-sensitive")
	}
}

func TestRender_Deterministic(t *testing.T) {
	table, _ := Parse(strings.NewReader(sampleCSV))

	want := "angle       - кут\n" +
		"triangle    - трикутник\n" +
		"right angle - прямий кут"
	if got := table.Render(); got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}

	again, _ := Parse(strings.NewReader(sampleCSV))
	if again.Render() != table.Render() {
		t.Error("rendering must be stable across loads")
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"single column", "ENG\nangle\n"},
		{"bad quoting", "ENG,UKR\n\"angle,кут\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glossary.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	table, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Len() != 3 {
		t.Errorf("expected 3 rows, got %d", table.Len())
	}
}

func TestLoad_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	table, err := Load(context.Background(), srv.URL+"/export?format=csv")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Len() != 3 {
		t.Errorf("expected 3 rows, got %d", table.Len())
	}

	_, err = Load(context.Background(), srv.URL+"/export?format=xlsx")
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("LoadError should unwrap to the cause")
	}
}

func TestLoad_EmptyLocation(t *testing.T) {
	table, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 0 || table.Render() != "" {
		t.Error("expected empty table")
	}
}
