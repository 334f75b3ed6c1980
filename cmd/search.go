package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rubiojr/sift/pkg/enrich"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the index and enrich the results",
		ArgsUsage: "QUERY...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search query (alternative to positional arguments)",
			},
			&cli.BoolFlag{
				Name:  "html",
				Usage: "Print the rendered results page instead of a listing",
				Value: false,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := c.String("query")
			if query == "" {
				query = strings.Join(c.Args().Slice(), " ")
			}
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("a search query is required")
			}

			mode := "text"
			switch {
			case c.Bool("html"):
				mode = "html"
			case c.Bool("json"):
				mode = "json"
			}
			return searchIndex(ctx, c.String("config"), query, mode)
		},
	}
}

// searchIndex runs query through the pipeline and prints the results
func searchIndex(ctx context.Context, configPath, query, mode string) error {
	cfg, store, err := openIndex(configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	pipeline := newPipeline(cfg, store)

	switch mode {
	case "html":
		fmt.Print(pipeline.Page(ctx, query))
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pipeline.Results(ctx, query))
	default:
		fmt.Print(formatResults(pipeline.Tokens(query), pipeline.Results(ctx, query)))
	}
	return nil
}

// formatResults renders results as a terminal listing
func formatResults(tokens []string, results []enrich.Result) string {
	titleCase := cases.Title(language.English)
	shown := make([]string, len(tokens))
	for i, tok := range tokens {
		shown[i] = titleCase.String(tok)
	}

	var sb strings.Builder
	header := fmt.Sprintf("Results for %s", strings.Join(shown, " + "))
	sb.WriteString(titleStyle.Render(header) + "\n")

	if len(results) == 0 {
		sb.WriteString(noDataStyle.Render("No results found") + "\n")
		return sb.String()
	}

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%3d. %s\n", i+1, resultTitleStyle.Render(r.Title)))
		sb.WriteString("     " + urlStyle.Render(r.URL) + "\n")
		if r.Favicon != "" {
			sb.WriteString("     " + metaStyle.Render("icon "+r.Favicon) + "\n")
		}
	}
	sb.WriteString(fmt.Sprintf("\nTotal: %d results\n", len(results)))
	return sb.String()
}
