package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zulipmcp/bridge/internal/config"
	"github.com/zulipmcp/bridge/internal/store"
)

// migrateCmd groups the embedded store's self-migrating schema
// commands. Unlike golang-migrate's versioned/dirty-state model, the
// store applies idempotent CREATE-IF-NOT-EXISTS/ALTER-TABLE migrations
// on every Open — "up" and "version" exist mainly to let an operator
// apply schema changes ahead of a deploy and inspect the result.
func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Embedded database schema management",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateVersionCmd())
	return cmd
}

func openStoreForMigration() (*store.Store, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.Open(cfg.Store.Path, slog.Default())
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreForMigration()
			if err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			defer st.Close()

			v, err := st.SchemaVersion(context.Background())
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			fmt.Printf("schema up to date at version %d\n", v)
			return nil
		},
	}
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStoreForMigration()
			if err != nil {
				return fmt.Errorf("migrate version: %w", err)
			}
			defer st.Close()

			v, err := st.SchemaVersion(context.Background())
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			fmt.Printf("version: %d\n", v)
			return nil
		},
	}
}
