package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/panyam/quickauth/internal/config"
	"github.com/panyam/quickauth/internal/storage"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the account store schema",
		Long: `Apply goose migrations (postgres), gorm auto-migration (mysql) or
index creation (mongo) for the configured store. The fs and datastore
stores need no migration.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	// No session secret is needed to migrate.
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	cmd.Printf("Migrating %s store...\n", cfg.Store.Driver)
	if err := storage.Migrate(cmd.Context(), cfg.Store); err != nil {
		return oops.Code("MIGRATION_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}
