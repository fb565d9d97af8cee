package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/scraps/internal"
	pkgconfig "github.com/starford/scraps/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.Root().String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// session opens the components for a one-shot command. Logs go to stderr
// so stdout carries only command output.
type session struct {
	cfg *internal.Config
	*internal.Components
	closeLog func() error
}

func open(cmd *cli.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, closer := internal.NewLogger(cfg.App, os.Stderr)
	c, err := internal.Open(cfg, logger)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &session{cfg: cfg, Components: c, closeLog: closer.Close}, nil
}

func (s *session) Close() {
	s.Components.Close()
	s.closeLog()
}

func main() {
	cmd := &cli.Command{
		Name:    "scraps",
		Usage:   "Local-first notes synchronized with a Notion database",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the background sync (default)",
				Action: serve,
			},
			syncCommand(),
			checkCommand(),
			notesCommand(),
			tombstonesCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
