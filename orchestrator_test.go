package potlai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ZaguanLabs/potlai/catalog"
)

const coursePO = `msgid ""
msgstr ""
"Project-Id-Version: calculus-home\n"
"Language: uk\n"
"Plural-Forms: nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : 1);\n"

#: articles/intro.md:1
msgid "The angle is 90 degrees."
msgstr ""

#, fuzzy
msgid "Here is some example: $\\angle ABC$"
msgstr "Ось приклад: $\\angle ABC$"

msgid "one apple"
msgid_plural "%d apples"
msgstr[0] ""
msgstr[1] ""
msgstr[2] ""

msgid "Already done."
msgstr "Готово."

msgid "$x^2 + y^2$"
msgstr ""

#~ msgid "old entry"
#~ msgstr "стара"
`

func parseCourse(t *testing.T) *catalog.File {
	t.Helper()
	f, err := catalog.Parse(strings.NewReader(coursePO))
	if err != nil {
		t.Fatalf("parsing catalog: %v", err)
	}
	return f
}

func TestNewOrchestrator_Defaults(t *testing.T) {
	o, err := NewOrchestrator(&scriptedClient{})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	if o.Model() != DefaultModel || o.TargetLang() != DefaultTargetLang {
		t.Errorf("defaults = %s/%s", o.Model(), o.TargetLang())
	}
	if o.Cooldown().Period() != DefaultCooldown {
		t.Errorf("cooldown = %v", o.Cooldown().Period())
	}
	if !strings.Contains(o.SystemPrompt(), "Ukrainian") {
		t.Error("system prompt not rendered for the default language")
	}
}

func TestNewOrchestrator_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		client CompletionClient
		opts   []Option
	}{
		{"nil client", nil, nil},
		{"zero retries", &scriptedClient{}, []Option{WithMaxRetry(0)}},
		{"zero batch", &scriptedClient{}, []Option{WithBatchSize(0)}},
		{"bad mode", &scriptedClient{}, []Option{WithResponseMode("xml")}},
		{"bad dispatch", &scriptedClient{}, []Option{WithDispatch("serial")}},
		{"template without glossary", &scriptedClient{}, []Option{WithPromptTemplate(PromptTemplate{System: "Translate."})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOrchestrator(tt.client, tt.opts...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTranslateCatalog(t *testing.T) {
	client := &scriptedClient{}
	o, _ := newTestOrchestrator(t, client)
	src := parseCourse(t)

	out, tel, err := o.TranslateCatalog(context.Background(), src)
	if err != nil {
		t.Fatalf("TranslateCatalog failed: %v", err)
	}

	if out.Header.MsgStr != src.Header.MsgStr {
		t.Errorf("header changed:\n%q\n%q", out.Header.MsgStr, src.Header.MsgStr)
	}
	if len(out.Entries) != len(src.Entries) {
		t.Fatalf("entry count changed: %d -> %d", len(src.Entries), len(out.Entries))
	}
	if src.Entries[0].MsgStr != "" {
		t.Error("input catalog was modified")
	}

	e := out.Entries
	if e[0].MsgStr != "[uk] The angle is 90 degrees." {
		t.Errorf("entry 0 = %q", e[0].MsgStr)
	}
	if e[0].References[0] != "articles/intro.md:1" {
		t.Error("references lost")
	}
	if e[1].MsgStr != `[uk] Here is some example: $\angle ABC$` || e[1].HasFlag(catalog.FuzzyFlag) {
		t.Errorf("entry 1 = %q flags %v", e[1].MsgStr, e[1].Flags)
	}
	want := map[int]string{0: "[uk] one apple", 1: "[uk] %d apples", 2: "[uk] %d apples"}
	for n, v := range want {
		if e[2].MsgStrPlural[n] != v {
			t.Errorf("plural form %d = %q, want %q", n, e[2].MsgStrPlural[n], v)
		}
	}
	if e[3].MsgStr != "[uk] Already done." {
		t.Errorf("entry 3 = %q", e[3].MsgStr)
	}
	if e[4].MsgStr != "$x^2 + y^2$" {
		t.Errorf("math-only entry = %q, want it copied", e[4].MsgStr)
	}
	if !e[5].Obsolete || e[5].MsgStr != "стара" {
		t.Errorf("obsolete entry changed: %+v", e[5])
	}

	// Units: three singulars, two plural units and the math-only entry.
	if client.Calls() != 5 {
		t.Errorf("expected 5 requests, got %d", client.Calls())
	}
	if tel.Translated != 5 || tel.Failed != 0 || tel.Skipped != 2 {
		t.Errorf("telemetry = %+v", tel)
	}
	if tel.Requests != 5 || tel.ReadTokens != 50 || tel.GenTokens != 25 {
		t.Errorf("usage = %+v", tel)
	}
}

func TestTranslateCatalog_FailedEntryIsFuzzy(t *testing.T) {
	client := &scriptedClient{respond: func(_ int, req CompletionRequest) (*Completion, error) {
		if req.User == "one apple" {
			return nil, &ProviderError{Message: "refused", Kind: KindFatal}
		}
		return reply("[uk] " + req.User), nil
	}}
	o, _ := newTestOrchestrator(t, client, WithSentinel("FAILED"))

	out, tel, err := o.TranslateCatalog(context.Background(), parseCourse(t))
	if err != nil {
		t.Fatalf("TranslateCatalog failed: %v", err)
	}

	plural := out.Entries[2]
	if plural.MsgStrPlural[0] != "FAILED" || plural.MsgStrPlural[1] != "[uk] %d apples" {
		t.Errorf("plural forms = %v", plural.MsgStrPlural)
	}
	if !plural.HasFlag(catalog.FuzzyFlag) {
		t.Error("failed entry should be fuzzy")
	}
	if out.Entries[0].HasFlag(catalog.FuzzyFlag) {
		t.Error("translated entry should not be fuzzy")
	}
	if tel.Failed != 1 || tel.Translated != 4 {
		t.Errorf("telemetry = %+v", tel)
	}
}

func TestTranslateCatalog_OnlyUntranslated(t *testing.T) {
	client := &scriptedClient{}
	o, _ := newTestOrchestrator(t, client, WithOnlyUntranslated(true))

	out, tel, err := o.TranslateCatalog(context.Background(), parseCourse(t))
	if err != nil {
		t.Fatalf("TranslateCatalog failed: %v", err)
	}

	if out.Entries[3].MsgStr != "Готово." {
		t.Errorf("translated entry was redone: %q", out.Entries[3].MsgStr)
	}
	// The fuzzy entry still counts as untranslated.
	if !strings.HasPrefix(out.Entries[1].MsgStr, "[uk] ") {
		t.Errorf("fuzzy entry not retranslated: %q", out.Entries[1].MsgStr)
	}
	if client.Calls() != 4 || tel.Skipped != 3 {
		t.Errorf("calls = %d, telemetry = %+v", client.Calls(), tel)
	}
}

func TestTranslateCatalog_SinglePluralForm(t *testing.T) {
	f, err := catalog.Parse(strings.NewReader(`msgid ""
msgstr ""
"Plural-Forms: nplurals=1; plural=0;\n"

msgid "one apple"
msgid_plural "%d apples"
msgstr[0] ""
`))
	if err != nil {
		t.Fatal(err)
	}
	client := &scriptedClient{}
	o, _ := newTestOrchestrator(t, client, WithTargetLang("ja"))

	out, _, err := o.TranslateCatalog(context.Background(), f)
	if err != nil {
		t.Fatalf("TranslateCatalog failed: %v", err)
	}
	if client.Calls() != 1 {
		t.Errorf("expected one request, got %d", client.Calls())
	}
	if got := out.Entries[0].MsgStrPlural[0]; got != "[uk] one apple" {
		t.Errorf("msgstr[0] = %q", got)
	}
}

func TestTranslateCatalog_Cancelled(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedClient{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, tel, err := o.TranslateCatalog(ctx, parseCourse(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out == nil || len(out.Entries) != 6 {
		t.Fatal("partial catalog should still be returned")
	}
	if out.Entries[0].MsgStr != DefaultSentinel {
		t.Errorf("unfinished entry = %q, want sentinel", out.Entries[0].MsgStr)
	}
	if tel.Failed != 5 {
		t.Errorf("telemetry = %+v", tel)
	}
}

func TestTranslateCatalog_Nil(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedClient{})
	if _, _, err := o.TranslateCatalog(context.Background(), nil); err == nil {
		t.Error("expected error for nil catalog")
	}
}

func TestEstimateUsage(t *testing.T) {
	client := &scriptedClient{}
	o, _ := newTestOrchestrator(t, client)

	got, err := o.EstimateUsage("a b c")
	if err != nil {
		t.Fatalf("EstimateUsage failed: %v", err)
	}
	system := wordCount{}.Count(o.SystemPrompt())
	// priming + two framed messages with one-word role names
	if want := 3 + (4 + 1 + system) + (4 + 1 + 3); got != want {
		t.Errorf("EstimateUsage = %d, want %d", got, want)
	}
	if client.Calls() != 0 {
		t.Error("estimate must not call the backend")
	}
}

func TestEstimateCatalog(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedClient{})
	f := parseCourse(t)

	total, err := o.EstimateCatalog(f)
	if err != nil {
		t.Fatalf("EstimateCatalog failed: %v", err)
	}

	want := 0
	for _, s := range []string{
		"The angle is 90 degrees.",
		`Here is some example: $\angle ABC$`,
		"one apple",
		"%d apples",
		"Already done.",
	} {
		n, _ := o.EstimateUsage(s)
		want += n
	}
	if total != want {
		t.Errorf("EstimateCatalog = %d, want %d", total, want)
	}
}
