package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
)

func newTemplatesCommand(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the templates the configured loader can resolve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			src, err := openSource(cfg, logger.Get())
			if err != nil {
				return err
			}
			defer src.Close()

			paths, err := src.List()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Templates (%s loader):\n", cfg.Loader.Kind)
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", p)
			}
			return nil
		},
	}

	var from string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Copy templates into the pebble template store",
		Long: `Copy templates into the store named by --store-dir. Templates are read from
--from when given, otherwise the built-in demo templates are written.

Example:
  prefabpool templates import --store-dir ./store --from ./templates`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Loader.StoreDir == "" {
				return errors.New(errors.ErrorTypeConfig, "--store-dir is required")
			}
			log := logger.Get().With(zap.String("component", "prefabpool-cli"))
			imported, err := importTemplates(from, cfg.Loader.StoreDir, log)
			for _, p := range imported {
				fmt.Fprintf(cmd.OutOrStdout(), "  + %s\n", p)
			}
			return err
		},
	}
	importCmd.Flags().StringVar(&from, "from", "", "Template directory to import (default: built-in templates)")
	cmd.AddCommand(importCmd)
	return cmd
}
