package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/sift/pkg/storage"
	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Index database optimization and maintenance commands",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Run an integrity check on the index",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withStore(c.String("config"), func(store *storage.Store) error {
						return checkIndex(ctx, store)
					})
				},
			},
			{
				Name:  "analyze",
				Usage: "Run ANALYZE to update query planner statistics",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runMaintenance(ctx, c.String("config"), "ANALYZE", (*storage.Store).Analyze)
				},
			},
			{
				Name:  "vacuum",
				Usage: "Run VACUUM to defragment the index",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runMaintenance(ctx, c.String("config"), "VACUUM", (*storage.Store).Vacuum)
				},
			},
			{
				Name:  "checkpoint",
				Usage: "Run WAL checkpoint to flush changes",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runMaintenance(ctx, c.String("config"), "WAL checkpoint", (*storage.Store).WALCheckpoint)
				},
			},
			{
				Name:  "all",
				Usage: "Run all optimization operations (optimize, analyze, checkpoint)",
				Action: func(ctx context.Context, c *cli.Command) error {
					return optimizeAll(ctx, c.String("config"))
				},
			},
		},
	}
}

type maintenanceOp func(*storage.Store, context.Context) error

func withStore(configPath string, fn func(*storage.Store) error) error {
	_, store, err := openIndex(configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)
	return fn(store)
}

func runMaintenance(ctx context.Context, configPath, name string, op maintenanceOp) error {
	return withStore(configPath, func(store *storage.Store) error {
		fmt.Printf("Running %s on %s...\n", name, store.Path())
		if err := op(store, ctx); err != nil {
			return err
		}
		fmt.Printf("✓ %s completed\n", name)
		return nil
	})
}

// optimizeAll runs all optimization operations
func optimizeAll(ctx context.Context, configPath string) error {
	return withStore(configPath, func(store *storage.Store) error {
		fmt.Println("Running all optimization operations...")
		fmt.Println()

		steps := []struct {
			name string
			op   maintenanceOp
		}{
			{"PRAGMA optimize", (*storage.Store).Optimize},
			{"ANALYZE", (*storage.Store).Analyze},
			{"WAL checkpoint", (*storage.Store).WALCheckpoint},
		}
		for _, step := range steps {
			fmt.Printf("Running %s...\n", step.name)
			if err := step.op(store, ctx); err != nil {
				return err
			}
			fmt.Printf("✓ %s completed\n\n", step.name)
		}

		fmt.Println("All optimization operations completed successfully")
		return nil
	})
}

func checkIndex(ctx context.Context, store *storage.Store) error {
	fmt.Printf("Checking %s...\n", store.Path())
	problems, err := store.IntegrityCheck(ctx)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Printf("  ✗ %s\n", p)
		}
		return fmt.Errorf("integrity check found %d problem(s)", len(problems))
	}
	fmt.Println("✓ Index is healthy")
	return nil
}
