package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZaguanLabs/potlai"
	"github.com/ZaguanLabs/potlai/provider"
)

const greetingsPO = `msgid ""
msgstr ""
"Language: uk\n"

msgid "Hello"
msgstr ""

msgid "World"
msgstr ""
`

type fieldCount struct{}

func (fieldCount) Count(text string) int { return len(strings.Fields(text)) }

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.po")
	if err := os.WriteFile(path, []byte(greetingsPO), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearKeys(t *testing.T) {
	t.Helper()
	t.Setenv("POTLAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"version"}, &stdout, &stderr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "potlai "+potlai.Version) {
		t.Errorf("expected version output, got: %s", stdout.String())
	}
}

func TestRun_MissingArgument(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"translate"}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for missing catalog argument")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"frobnicate"}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRun_MissingAPIKey(t *testing.T) {
	clearKeys(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"translate", writeCatalog(t)}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "API key required") {
		t.Errorf("expected API key error, got: %v", err)
	}
}

func TestTranslate_WritesDefaultOutput(t *testing.T) {
	clearKeys(t)
	input := writeCatalog(t)

	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr, client: provider.NewMockClient()}
	if err := a.execute(context.Background(), []string{"translate", input}); err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	output := filepath.Join(filepath.Dir(input), "UA_translated_messages.po")
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	for _, want := range []string{`msgstr "Привіт"`, `msgstr "Світ"`, `"Language: uk\n"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("output missing %s:\n%s", want, data)
		}
	}

	summary := stdout.String()
	if !strings.Contains(summary, "Translated: 2") || !strings.Contains(summary, "Failed:     0") {
		t.Errorf("unexpected summary:\n%s", summary)
	}
}

func TestTranslate_FailedEntriesAreReported(t *testing.T) {
	clearKeys(t)
	input := writeCatalog(t)
	output := filepath.Join(t.TempDir(), "out.po")

	mock := provider.NewMockClient()
	mock.Errors = []error{&potlai.ProviderError{Message: "refused", Kind: potlai.KindFatal}}

	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr, client: mock}
	if err := a.execute(context.Background(), []string{"translate", input, "-o", output, "-q"}); err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "#, fuzzy") || !strings.Contains(string(data), `msgstr "ERROR"`) {
		t.Errorf("failed entry should be fuzzy with the sentinel:\n%s", data)
	}
	if stdout.Len() != 0 {
		t.Errorf("quiet run printed a summary: %s", stdout.String())
	}
}

func TestTranslate_DryRun(t *testing.T) {
	clearKeys(t)
	input := writeCatalog(t)
	output := filepath.Join(t.TempDir(), "dry.po")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"translate", input, "-o", output, "--dry-run", "-q"}, &stdout, &stderr); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), `msgstr "Привіт"`) {
		t.Errorf("unexpected dry-run output:\n%s", data)
	}
}

func TestText(t *testing.T) {
	clearKeys(t)

	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr, client: provider.NewMockClient()}
	if err := a.execute(context.Background(), []string{"text", "Hello World", "-q"}); err != nil {
		t.Fatalf("text failed: %v", err)
	}
	if stdout.String() != "Привіт, світе\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestEstimate_NoAPIKeyNeeded(t *testing.T) {
	clearKeys(t)

	var stdout, stderr bytes.Buffer
	a := &app{
		stdout:  &stdout,
		stderr:  &stderr,
		options: []potlai.Option{potlai.WithTokenizer(fieldCount{})},
	}
	if err := a.execute(context.Background(), []string{"estimate", writeCatalog(t)}); err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "Estimated prompt tokens:") {
		t.Errorf("unexpected output: %s", stdout.String())
	}
}

func TestCacheExport_Disabled(t *testing.T) {
	clearKeys(t)
	t.Setenv("POTLAI_CACHE", "none")

	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr}
	err := a.execute(context.Background(), []string{"cache", "export", filepath.Join(t.TempDir(), "c.json")})
	if !errors.Is(err, errCacheDisabled) {
		t.Errorf("expected errCacheDisabled, got %v", err)
	}
}

func TestCacheExport_Memory(t *testing.T) {
	clearKeys(t)
	path := filepath.Join(t.TempDir(), "c.json")

	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr}
	if err := a.execute(context.Background(), []string{"cache", "export", path}); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"target_lang": "uk"`) {
		t.Errorf("export missing metadata:\n%s", data)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, lang, want string
	}{
		{filepath.Join("course", "messages.po"), "uk", filepath.Join("course", "UA_translated_messages.po")},
		{"messages.po", "de", "DE_translated_messages.po"},
		{"s3://bucket/po/messages.po", "uk", "s3://bucket/po/UA_translated_messages.po"},
	}

	for _, tt := range tests {
		if got := outputPath(tt.input, tt.lang); got != tt.want {
			t.Errorf("outputPath(%q, %q) = %q, want %q", tt.input, tt.lang, got, tt.want)
		}
	}
}
