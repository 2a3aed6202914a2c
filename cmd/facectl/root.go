package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/observability"
	"github.com/your-org/facewatch/internal/storage"
)

// app carries what the subcommands share once the root has parsed flags.
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "facectl",
		Short:         "Administer the facewatch visitor monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env file is optional
			_ = godotenv.Load()

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			observability.SetupLogger(cfg.Logging.Level, "text")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "configs/config.yaml", "path to config file")

	root.AddCommand(
		migrateCommand(a),
		personCommand(a),
		statsCommand(a),
		configCommand(a),
	)
	return root
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func migrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// opening a store applies its migrations
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s database is up to date\n", a.cfg.Database.Driver)
			return nil
		},
	}
}
