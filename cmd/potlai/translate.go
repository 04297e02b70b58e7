package main

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/ZaguanLabs/potlai"
	"github.com/ZaguanLabs/potlai/provider"
)

func (a *app) newTranslateCmd() *cobra.Command {
	var (
		output string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "translate <catalog.po>",
		Short: "Translate a PO catalog",
		Long: "Translate every entry of a PO catalog. Entries that fail keep the\n" +
			"sentinel value and are flagged fuzzy. Locations may be s3:// URIs.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var extra []potlai.Option
			progress := &progressReporter{out: a.stderr}
			if !a.quiet {
				extra = append(extra, potlai.WithProgress(progress.report))
			}

			// The mock backend echoes each source in brackets.
			if dryRun && a.client == nil {
				a.client = provider.NewMockClient()
			}

			rt, err := a.setup(ctx, cmd, !dryRun, extra...)
			if err != nil {
				return err
			}
			defer rt.close()

			input := args[0]
			if output == "" {
				output = outputPath(input, rt.orch.TargetLang())
			}

			src, err := rt.store.Load(ctx, input)
			if err != nil {
				return fmt.Errorf("load %s: %w", input, err)
			}

			out, tel, runErr := rt.orch.TranslateCatalog(ctx, src)
			progress.finish()
			if out == nil {
				return runErr
			}
			// A cancelled run still writes what it finished.
			if err := rt.store.Save(ctx, output, out); err != nil {
				return fmt.Errorf("save %s: %w", output, err)
			}

			if !a.quiet {
				printSummary(a.stdout, output, tel)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output location (default: <dir>/<REGION>_translated_<name>)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Use an offline mock backend instead of the API")
	return cmd
}

func (a *app) newTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text <chunk>",
		Short: "Translate a single chunk of text (use - to read stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			text := args[0]
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(data)
			}

			rt, err := a.setup(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer rt.close()

			translation, tel, err := rt.orch.TranslateText(ctx, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, translation)
			if !a.quiet {
				fmt.Fprintf(a.stderr, "tokens: %d read, %d generated\n", tel.ReadTokens, tel.GenTokens)
			}
			return nil
		},
	}
}

func (a *app) newEstimateCmd() *cobra.Command {
	var text bool

	cmd := &cobra.Command{
		Use:   "estimate <catalog.po>",
		Short: "Estimate the prompt tokens a translation would read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := a.setup(ctx, cmd, false)
			if err != nil {
				return err
			}
			defer rt.close()

			var tokens int
			if text {
				tokens, err = rt.orch.EstimateUsage(args[0])
			} else {
				f, loadErr := rt.store.Load(ctx, args[0])
				if loadErr != nil {
					return fmt.Errorf("load %s: %w", args[0], loadErr)
				}
				tokens, err = rt.orch.EstimateCatalog(f)
			}
			if err != nil {
				return err
			}

			cost := potlai.EstimateCost(rt.orch.Model(), potlai.Usage{PromptTokens: int64(tokens)})
			fmt.Fprintf(a.stdout, "Estimated prompt tokens: %d\n", tokens)
			fmt.Fprintf(a.stdout, "Model:                   %s\n", rt.orch.Model())
			fmt.Fprintf(a.stdout, "Estimated input cost:    $%.4f\n", cost)
			return nil
		},
	}

	cmd.Flags().BoolVar(&text, "text", false, "Treat the argument as a text chunk instead of a catalog")
	return cmd
}

// outputPath places the result next to the input, prefixed with the region
// of the target language ("UA_translated_messages.po" for uk).
func outputPath(input, lang string) string {
	name := regionPrefix(lang) + "_translated_"
	if strings.HasPrefix(input, "s3://") {
		return "s3://" + path.Join(path.Dir(strings.TrimPrefix(input, "s3://")), name+path.Base(input))
	}
	return filepath.Join(filepath.Dir(input), name+filepath.Base(input))
}

func regionPrefix(lang string) string {
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return strings.ToUpper(lang)
	}
	if region, conf := tag.Region(); conf != language.No {
		return region.String()
	}
	base, _ := tag.Base()
	return strings.ToUpper(base.String())
}

// progressReporter draws a bar once the first progress call reveals the
// number of units.
type progressReporter struct {
	out io.Writer
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (p *progressReporter) report(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan]Translating[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	_ = p.bar.Set(done)
}

func (p *progressReporter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(p.out)
	}
}

func printSummary(w io.Writer, output string, tel potlai.Telemetry) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", green("Wrote"), output)
	fmt.Fprintf(w, "  Translated: %s\n", green(tel.Translated))
	fmt.Fprintf(w, "  Failed:     %s\n", red(tel.Failed))
	fmt.Fprintf(w, "  Skipped:    %s\n", yellow(tel.Skipped))
	fmt.Fprintf(w, "  Tokens:     %d read, %d generated, %d requests\n", tel.ReadTokens, tel.GenTokens, tel.Requests)
	fmt.Fprintf(w, "  Cost:       $%.4f\n", tel.Cost)
	fmt.Fprintf(w, "  Elapsed:    %v\n", tel.Elapsed.Round(time.Millisecond))
	if tel.Failed > 0 {
		fmt.Fprintln(w, red(fmt.Sprintf("%d entries were flagged fuzzy for review", tel.Failed)))
	}
}
