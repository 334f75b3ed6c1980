package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rubiojr/sift/pkg/storage"
	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show index statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, c.String("config"))
		},
	}
}

// showStats displays index statistics
func showStats(ctx context.Context, configPath string) error {
	_, store, err := openIndex(configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	fmt.Print(formatStats(store.Path(), stats))
	return nil
}

// formatStats renders index statistics for the terminal
func formatStats(path string, stats *storage.Stats) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Index Statistics") + "\n")
	sb.WriteString(row("Database", path) + "\n")

	if info, err := os.Stat(path); err == nil {
		sb.WriteString(row("Size", formatNumber(int(info.Size()))+"B") + "\n")
	}

	if stats.Words == 0 {
		sb.WriteString(noDataStyle.Render("The index is empty. Load one with `sift import`.") + "\n")
		return sb.String()
	}

	sb.WriteString(row("Words", formatNumber(stats.Words)) + "\n")
	sb.WriteString(row("URL refs", formatNumber(stats.URLRefs)))
	sb.WriteString(metaStyle.Render(fmt.Sprintf(" (%.1f per word)", float64(stats.URLRefs)/float64(stats.Words))) + "\n")

	if stats.Malformed > 0 {
		sb.WriteString(row("Malformed", warnStyle.Render(formatNumber(stats.Malformed))) + "\n")
	}
	if stats.LastImport != nil {
		sb.WriteString(row("Last import", formatTime(*stats.LastImport)) + "\n")
	}
	return sb.String()
}
