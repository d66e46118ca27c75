package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/wikilinker/internal"
	pkgconfig "github.com/starford/wikilinker/pkg/config"
)

var version = "dev"

// loadConfig reads the config file and builds the command's logger with
// newLogger once the configured level is known.
func loadConfig(cmd *cli.Command, newLogger func(*internal.Config) *slog.Logger) (*internal.Config, *slog.Logger, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	logger := newLogger(cfg)
	if !found {
		logger.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, logger, nil
}

// cliLogger writes human-readable logs to stderr so stdout stays clean for
// command output and the MCP protocol.
func cliLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

func serverLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd, serverLogger)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx,
		internal.WithConfig(cfg),
		internal.WithLogger(logger),
		internal.WithVersion(version),
	); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func build(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd, cliLogger)
	if err != nil {
		return err
	}

	summary, err := internal.Build(ctx, internal.WithConfig(cfg), internal.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	if cmd.Bool("json") {
		return json.NewEncoder(os.Stdout).Encode(summary)
	}
	fmt.Printf("%d entries: %d written, %d unchanged, %d removed, %d failed (%d unresolved links)\n",
		summary.Entries, len(summary.Written), summary.Unchanged, len(summary.Removed),
		len(summary.Failed), summary.Links.Unresolved)
	if len(summary.Failed) > 0 {
		return fmt.Errorf("build: %d entries failed", len(summary.Failed))
	}
	return nil
}

func resolve(ctx context.Context, cmd *cli.Command) error {
	entry := cmd.Args().First()
	if entry == "" {
		return fmt.Errorf("resolve: entry path is required")
	}

	cfg, logger, err := loadConfig(cmd, cliLogger)
	if err != nil {
		return err
	}

	rendered, err := internal.Resolve(ctx, entry, internal.WithConfig(cfg), internal.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	if cmd.Bool("links") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rendered.Links)
	}
	_, err = fmt.Fprint(os.Stdout, rendered.Content)
	return err
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd, cliLogger)
	if err != nil {
		return err
	}

	return internal.ServeMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogger(logger),
		internal.WithVersion(version),
	)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "wikilinker",
		Usage:   "Rewrite [[wikilinks]] in a Markdown vault into standard Markdown links",
		Version: version,
		Flags:   []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Rewrite every vault entry into the output directory",
				Action: build,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print the build summary as JSON"},
				},
			},
			{
				Name:      "resolve",
				Usage:     "Print one vault entry with its wikilinks rewritten",
				ArgsUsage: "<entry>",
				Action:    resolve,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "links", Usage: "Print the resolved links as JSON instead of the content"},
				},
			},
			{
				Name:   "serve",
				Usage:  "Build, watch the vault and serve the preview API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the resolver over MCP on stdin/stdout",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
