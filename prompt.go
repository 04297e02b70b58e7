package potlai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ZaguanLabs/potlai/glossary"
)

// Placeholders substituted into the system prompt.
const (
	GlossaryPlaceholder = "{glossary}"
	LanguagePlaceholder = "{language}"
)

// FinalTranslationField is the reply field read in ModeJSON.
const FinalTranslationField = "final_translation"

const fence = "```"

var defaultSystemPrompt = heredoc.Doc(`
	You translate educational content into {language}. The content is Markdown
	with embedded LaTeX, Khan Academy style widgets and occasional HTML.

	Rules:
	- Translate only natural-language text.
	- Copy every LaTeX command and math block ($...$, $$...$$, \(...\), \[...\],
	  \begin{...}...\end{...}) exactly, character for character. Inside math,
	  translate only the argument of \text{...} and similar text commands.
	- Copy Markdown markup, image and link targets, widget markers such as
	  [[☃ radio 1]], HTML tags, filenames and URLs exactly.
	- Keep line breaks and leading or trailing whitespace.
	- If there is nothing to translate, return the input unchanged.
	- Do not add explanations, quotes or code fences.

	Work through every message like this:
	`+fence+`
	result = ''
	for token in split_by_spaces_dots_or_parentheses(input):
	    if token is not (latex or tag or filename or url):
	        token = translate(token)
	    result += token
	return result
	`+fence+`

	Use the glossary for domain terms whenever it applies:
	`+fence+`
	{glossary}
	`+fence+`
`)

var jsonReplyInstruction = heredoc.Doc(`

	Reply with a JSON object of the form {"final_translation": "<translation>"}
	and nothing else.
`)

var finalTranslationSchema = jsonschema.MustCompileString("final_translation.json", `{
	"type": "object",
	"required": ["final_translation"],
	"properties": {
		"final_translation": {"type": "string", "minLength": 1}
	}
}`)

// PromptTemplate is the fixed instruction sent as the system message.
// It must contain GlossaryPlaceholder and may contain LanguagePlaceholder.
type PromptTemplate struct {
	System string `yaml:"system"`
}

// DefaultPromptTemplate returns the built-in LaTeX/Markdown template.
func DefaultPromptTemplate() PromptTemplate {
	return PromptTemplate{System: defaultSystemPrompt}
}

// Validate checks that the glossary can be injected.
func (p PromptTemplate) Validate() error {
	if strings.TrimSpace(p.System) == "" {
		return errors.New("prompt template is empty")
	}
	if !strings.Contains(p.System, GlossaryPlaceholder) {
		return fmt.Errorf("prompt template has no %s placeholder", GlossaryPlaceholder)
	}
	return nil
}

// Render substitutes the target language and glossary in a single pass, so
// glossary text is never itself expanded.
func (p PromptTemplate) Render(targetLang string, terms *glossary.Table, mode ResponseMode) string {
	r := strings.NewReplacer(
		GlossaryPlaceholder, terms.Render(),
		LanguagePlaceholder, LanguageName(targetLang),
	)
	out := r.Replace(p.System)
	if mode == ModeJSON {
		out += jsonReplyInstruction
	}
	return out
}

// parseResponse extracts the translation from an assistant reply.
func parseResponse(mode ResponseMode, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", &ResponseParseError{Mode: mode, Content: content, Cause: errors.New("empty reply")}
	}
	if mode != ModeJSON {
		return content, nil
	}

	body := stripFence(strings.TrimSpace(content))
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return "", &ResponseParseError{Mode: mode, Content: content, Cause: err}
	}
	if err := finalTranslationSchema.Validate(v); err != nil {
		return "", &ResponseParseError{Mode: mode, Content: content, Cause: err}
	}
	return v.(map[string]any)[FinalTranslationField].(string), nil
}

// stripFence removes a Markdown code fence wrapped around a JSON reply.
func stripFence(s string) string {
	if !strings.HasPrefix(s, fence) || !strings.HasSuffix(s, fence) || len(s) < 2*len(fence) {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, fence), fence)
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.Contains(s[:i], "{") {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
