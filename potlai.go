// Package potlai translates gettext PO catalogs and raw text that mix prose
// with LaTeX math and Markdown, using an LLM chat-completion backend.
//
// The Orchestrator owns the backend client and the glossary. It builds the
// instruction prompt, runs entries concurrently, backs off on rate limits,
// retries transient failures, rejects translations that damage protected
// spans (math, commands, URLs, filenames, markup) and accounts token usage
// per session.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/potlai"
//	    "github.com/ZaguanLabs/potlai/catalog"
//	    "github.com/ZaguanLabs/potlai/glossary"
//	    "github.com/ZaguanLabs/potlai/provider"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    terms, err := glossary.Load(ctx, "glossary.csv")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    client := provider.NewOpenAIClient(provider.OpenAIConfig{
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    })
//
//	    o, err := potlai.NewOrchestrator(client,
//	        potlai.WithTargetLang("uk"),
//	        potlai.WithGlossary(terms),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    po, _ := catalog.ParseFile("course.po")
//	    out, usage, err := o.TranslateCatalog(ctx, po)
//	    ...
//	}
package potlai
