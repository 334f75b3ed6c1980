package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/sift/pkg/config"
	"github.com/rubiojr/sift/pkg/db"
	"github.com/rubiojr/sift/pkg/storage"
	"github.com/urfave/cli/v3"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run index database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying migrations",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return RunMigrations(c.String("config"), c.Bool("status"))
		},
	}
}

// RunMigrations handles the migration process (exported for testing)
func RunMigrations(configPath string, statusOnly bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.OpenWithoutMigrations(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening index %s: %w", cfg.DatabasePath, err)
	}
	defer closeStore(store)

	fmt.Printf("=== Index: %s ===\n", cfg.DatabasePath)
	migrationManager := db.NewMigrationManager(store.DB())

	if statusOnly {
		if err := showMigrationStatus(migrationManager); err != nil {
			return fmt.Errorf("showing migration status: %w", err)
		}
		fmt.Println("\nMigration status check completed")
		return nil
	}

	applied, err := migrationManager.ApplyPendingMigrations()
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	fmt.Printf("\nApplied %d migration(s), index is up to date\n", applied)
	return nil
}

// showMigrationStatus displays the current migration status
func showMigrationStatus(manager *db.MigrationManager) error {
	status, err := manager.GetMigrationStatus()
	if err != nil {
		return err
	}

	fmt.Printf("Applied migrations: %d\n", len(status.Applied))
	for _, migration := range status.Applied {
		appliedTime := "unknown"
		if migration.AppliedAt != nil {
			appliedTime = migration.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  ✓ %03d: %s (applied: %s)\n", migration.Version, migration.Name, appliedTime)
	}

	fmt.Printf("Pending migrations: %d\n", len(status.Pending))
	for _, migration := range status.Pending {
		fmt.Printf("  • %03d: %s\n", migration.Version, migration.Name)
	}

	if len(status.Pending) == 0 {
		fmt.Println("  (none - database is up to date)")
	}

	return nil
}
