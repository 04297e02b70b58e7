// Command potlai translates gettext catalogs and text chunks with an LLM.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/potlai"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = potlai.Version
	commit    = potlai.GitCommit
	buildDate = potlai.BuildDate
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return (&app{stdout: stdout, stderr: stderr}).execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   potlai.Name,
		Short: "Translate gettext catalogs with an LLM",
		Long: heredoc.Doc(`
			potlai translates PO catalogs of educational content while keeping
			LaTeX math, Markdown markup and HTML tags untouched.

			Settings come from POTLAI_* environment variables, optionally loaded
			from a .env file. Flags override the environment.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env", ".env", "Path to a .env file")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVarP(&a.lang, "lang", "l", "", "Target language code (e.g. uk, de, pt_BR)")
	pf.StringVarP(&a.model, "model", "m", "", "Model name")
	pf.StringVarP(&a.glossary, "glossary", "g", "", "Glossary CSV path or URL")
	pf.StringVar(&a.promptFile, "prompt", "", "YAML prompt template file")
	pf.StringVar(&a.mode, "mode", "", "Response mode (raw or json)")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Suppress progress and summaries")

	root.AddCommand(
		a.newTranslateCmd(),
		a.newTextCmd(),
		a.newEstimateCmd(),
		a.newServeCmd(),
		a.newCacheCmd(),
		a.newVersionCmd(),
	)
	return root
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "%s %s\n", potlai.Name, version)
			if commit != "unknown" && commit != "" {
				fmt.Fprintf(a.stdout, "  commit:  %s\n", commit)
			}
			if buildDate != "unknown" && buildDate != "" {
				fmt.Fprintf(a.stdout, "  built:   %s\n", buildDate)
			}
		},
	}
}
