package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"meridian/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status
  rollback Forget the last applied migration (schema changes must be reverted by hand)

The migration system tracks applied migrations in the schema_migrations table
and applies new migrations in sequential order. Both postgres and sqlite
databases are supported.

Examples:
  meridian migrate up
  meridian migrate status`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *persistence.MigrationManager) error {
				if err := m.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All migrations applied successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *persistence.MigrationManager) error {
				status, err := m.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Forget the last applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *persistence.MigrationManager) error {
				version, err := m.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back migration %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(*persistence.MigrationManager) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	dbCfg := cfg.Database
	dbCfg.AutoMigrate = false
	store, err := persistence.Open(ctx, dbCfg, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	return fn(persistence.NewMigrationManager(store))
}

func printMigrationStatus(w io.Writer, status []persistence.MigrationStatus) {
	if len(status) == 0 {
		fmt.Fprintln(w, "No migrations found")
		return
	}

	fmt.Fprintf(w, "%-10s %-10s %s\n", "Version", "Status", "Description")

	pending := 0
	for _, m := range status {
		state := "applied"
		if !m.Applied {
			state = "pending"
			pending++
		}
		fmt.Fprintf(w, "%-10d %-10s %s\n", m.Version, state, m.Description)
	}

	fmt.Fprintf(w, "\nApplied: %d | Pending: %d | Total: %d\n", len(status)-pending, pending, len(status))
	if pending > 0 {
		fmt.Fprintln(w, "\nRun 'meridian migrate up' to apply pending migrations")
	}
}
