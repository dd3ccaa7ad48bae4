package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"graphreview/api/internal/config"
	"graphreview/api/internal/logging"
)

var version = "dev"

// Flags holds the global flags shared by every command.
type Flags struct {
	ConfigPath string
	LogLevel   string
	LogFile    string
}

func main() {
	var (
		flags     = &Flags{}
		cfg       config.Config
		logCloser func()
	)

	app := &cli.Command{
		Name:      "graphreview",
		Usage:     "Graph Review comment API and client",
		UsageText: "graphreview [global options] command [command options]",
		Version:   version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to YAML config file",
				Sources:     cli.EnvVars("GRAPHREVIEW_CONFIG"),
				Value:       "graphreview.yaml",
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("GRAPHREVIEW_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "write logs to this file instead of stdout",
				Sources:     cli.EnvVars("GRAPHREVIEW_LOG_FILE"),
				Destination: &flags.LogFile,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logging.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			loaded, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app.Commands = []*cli.Command{
		newServeCmd(&cfg).command(),
		newMigrateCmd(&cfg).command(),
		newCommentsCmd(&cfg).command(),
		newMentionsCmd(&cfg).command(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
