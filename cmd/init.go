package cmd

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rubiojr/sift/pkg/config"
	"github.com/urfave/cli/v3"
)

//go:embed web/search.html
var sampleTemplate []byte

// InitCommand creates the init command
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize configuration and the results page template",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing configuration file",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return initConfig(c.String("config"), c.Bool("force"))
		},
	}
}

// initConfig writes the sample configuration and, when missing, the sample
// results template it points to
func initConfig(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
	}

	cfg, err := config.GetDefaultConfig()
	if err != nil {
		return fmt.Errorf("building default config: %w", err)
	}
	if err := cfg.SaveTemplateConfig(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration initialized at %s\n", configPath)

	if _, err := os.Stat(cfg.TemplatePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(cfg.TemplatePath), 0755); err != nil {
			return fmt.Errorf("creating template directory: %w", err)
		}
		if err := os.WriteFile(cfg.TemplatePath, sampleTemplate, 0644); err != nil {
			return fmt.Errorf("writing template: %w", err)
		}
		fmt.Printf("Results template written to %s\n", cfg.TemplatePath)
	}
	return nil
}
