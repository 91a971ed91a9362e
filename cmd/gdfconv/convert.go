package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gdfconv/internal/convert"
	"github.com/samcharles93/gdfconv/internal/h5source"
	"github.com/samcharles93/gdfconv/internal/logger"
)

func convertCmd() *cli.Command {
	var (
		input       string
		output      string
		maxCell     int
		species     string
		gridSize    float64
		layoutName  string
		destination string
	)

	return &cli.Command{
		Name:   "convert",
		Usage:  "Convert an openPMD HDF5 file to GDF",
		Before: setupLogging,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "path to the openPMD HDF5 file",
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output .gdf path (default: input with .gdf extension)",
				Destination: &output,
			},
			&cli.IntFlag{
				Name:        "max-cell",
				Usage:       "maximum number of elements read per chunk",
				Value:       convert.DefaultChunkSize,
				Destination: &maxCell,
			},
			&cli.StringFlag{
				Name:        "species",
				Usage:       "convert only this species",
				Destination: &species,
			},
			&cli.FloatFlag{
				Name:        "grid-size",
				Usage:       "override the cell size in metres used for rmacro",
				Destination: &gridSize,
			},
			&cli.StringFlag{
				Name:        "layout",
				Usage:       "input layout (auto, openpmd, plain)",
				Value:       string(h5source.LayoutAuto),
				Destination: &layoutName,
			},
			&cli.StringFlag{
				Name:        "destination",
				Usage:       "destination name written to the root record",
				Destination: &destination,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyConvertConfig(c, cfg, &maxCell, &gridSize, &layoutName, &destination)

			input = strings.TrimSpace(input)
			if input == "" && c.Args().Len() > 0 {
				input = c.Args().First()
			}
			if input == "" {
				_, _ = fmt.Fprintln(os.Stderr, "convert: no input file given (use --input)")
				return nil
			}
			if _, err := os.Stat(input); errors.Is(err, fs.ErrNotExist) {
				_, _ = fmt.Fprintf(os.Stderr, "convert: input file %q does not exist\n", input)
				return nil
			}

			layout, err := h5source.ParseLayout(layoutName)
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			out, err := resolveOutput(input, output)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve output: %v", err), 1)
			}

			opts := convert.Options{
				ChunkSize:   maxCell,
				Species:     species,
				GridSize:    gridSize,
				Destination: destination,
			}
			log.Debug("converting", "input", input, "output", out, "layout", layout, "max_cell", maxCell)

			stats, err := convert.ConvertFile(ctx, input, out, h5source.Opener(layout), opts)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return cli.Exit("convert: interrupted", 1)
				}
				return cli.Exit(fmt.Sprintf("error: convert %s: %v", input, err), 1)
			}

			fmt.Printf("Conversion complete: %s\n", out)
			fmt.Printf("  iterations: %d  species: %d  blocks: %d  size: %s\n",
				stats.Iterations, stats.Species, stats.Blocks, formatBytes(uint64(stats.Bytes)))
			return nil
		},
	}
}
