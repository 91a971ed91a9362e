package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gdfconv/internal/logger"
)

var (
	logLevel  string
	logFormat string
	debug     bool
	noColor   bool

	cfg Config
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       logger.FormatPretty,
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
		&cli.BoolFlag{
			Name:        "no-color",
			Usage:       "disable coloured pretty output (also set by NO_COLOR)",
			Destination: &noColor,
		},
	}
}

// setupLogging loads the config file, resolves the logging flags against it
// and installs the logger in the command context.
func setupLogging(ctx context.Context, c *cli.Command) (context.Context, error) {
	cfg = LoadConfig()
	applyLoggingConfig(c, cfg)

	level := slog.LevelDebug
	if !debug {
		var err error
		if level, err = logger.ParseLevel(logLevel); err != nil {
			return ctx, cli.Exit("error: "+err.Error(), 1)
		}
	}
	color := !noColor && os.Getenv("NO_COLOR") == "" && stderrIsTTY()
	log, err := logger.ForFormat(logFormat, os.Stderr, level, color)
	if err != nil {
		return ctx, cli.Exit("error: "+err.Error(), 1)
	}
	return logger.WithContext(ctx, log), nil
}
