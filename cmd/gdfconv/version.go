package main

import (
	"context"
	"fmt"

	"github.com/samcharles93/gdfconv/internal/version"

	"github.com/urfave/cli/v3"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			fmt.Printf("version:    %s\n", info.Version)
			if info.Commit != "" {
				commit := info.Commit
				if info.Modified {
					commit += " (modified)"
				}
				fmt.Printf("commit:     %s\n", commit)
			}
			if info.BuildTime != "" {
				fmt.Printf("build time: %s\n", info.BuildTime)
			}
			return nil
		},
	}
}
