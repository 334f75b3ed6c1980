package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Load a prebuilt word index from a JSON file",
		ArgsUsage: "FILE (use - for stdin)",
		Description: `FILE holds a single JSON object mapping every word to the ordered list
of urls that contain it:

   {"golang": ["https://go.dev/"], "sqlite": ["https://sqlite.org/"]}

Words present in the file replace their existing entries; other words are
left untouched.`,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one FILE argument")
			}
			return importIndex(ctx, c.String("config"), c.Args().First())
		},
	}
}

// importIndex loads the index file at path into the configured database
func importIndex(ctx context.Context, configPath, path string) error {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}

	_, store, err := openIndex(configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	n, err := store.Import(ctx, in)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	fmt.Printf("Imported %d words into %s\n", n, store.Path())
	return nil
}
