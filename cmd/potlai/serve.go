package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/potlai"
	"github.com/ZaguanLabs/potlai/cache"
	"github.com/ZaguanLabs/potlai/internal/httpapi"
)

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the translation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := a.setup(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer rt.close()

			srv := httpapi.NewServer(rt.orch, rt.logger, httpapi.Options{
				Host: rt.cfg.HTTPHost,
				Port: rt.cfg.HTTPPort,
			})
			return srv.Start(ctx)
		},
	}
}

func (a *app) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Export or import cached translations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "export <file>",
			Short: "Write every cached translation to a JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()

				rt, err := a.setup(ctx, cmd, false)
				if err != nil {
					return err
				}
				defer rt.close()
				if rt.cache == nil {
					return errCacheDisabled
				}

				n, err := cache.NewExporter(rt.cache).ExportToFile(ctx, args[0], map[string]string{
					"model":       rt.orch.Model(),
					"target_lang": rt.orch.TargetLang(),
					"exporter":    potlai.UserAgent(),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Exported %d entries to %s\n", n, args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Load translations from a JSON export into the cache",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()

				rt, err := a.setup(ctx, cmd, false)
				if err != nil {
					return err
				}
				defer rt.close()
				if rt.cache == nil {
					return errCacheDisabled
				}

				res, err := cache.NewImporter(rt.cache).ImportFromFile(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Imported %d entries (%d failed)\n", res.Imported, res.Failed)
				return nil
			},
		},
	)
	return cmd
}

var errCacheDisabled = errors.New("cache is disabled (POTLAI_CACHE=none)")
