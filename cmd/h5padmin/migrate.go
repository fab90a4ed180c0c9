package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tendant/h5p-content/pkg/h5pcontent/config"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.AddCommand(newMigrateUpCommand())
	cmd.AddCommand(newMigrateStatusCommand())
	return cmd
}

func newMigrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadPostgresConfig(cmd)
			if err != nil {
				return err
			}
			pool, err := cfg.OpenPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := cfg.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			status, err := cfg.MigrationStatus(pool)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema %q migrated to version %d\n", cfg.DBSchema, status.Version)
			return nil
		},
	}
}

func newMigrateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadPostgresConfig(cmd)
			if err != nil {
				return err
			}
			pool, err := cfg.OpenPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			status, err := cfg.MigrationStatus(pool)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"version":    status.Version,
					"latest":     status.Latest,
					"dirty":      status.Dirty,
					"up_to_date": status.UpToDate(),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Schema:     %s\n", cfg.DBSchema)
			fmt.Fprintf(out, "Version:    %d\n", status.Version)
			fmt.Fprintf(out, "Latest:     %d\n", status.Latest)
			fmt.Fprintf(out, "Dirty:      %t\n", status.Dirty)
			fmt.Fprintf(out, "Up to date: %t\n", status.UpToDate())
			return nil
		},
	}
}

func loadPostgresConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseType != "postgres" {
		return nil, errors.New("migrations require a postgres DATABASE_URL")
	}
	return cfg, nil
}
