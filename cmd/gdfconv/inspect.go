package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/gdfconv/pkg/gdf"
)

type inspectRoot struct {
	Created            time.Time `json:"created"`
	Creator            string    `json:"creator"`
	Destination        string    `json:"destination"`
	FormatVersion      string    `json:"format_version"`
	ProducerVersion    string    `json:"producer_version"`
	DestinationVersion string    `json:"destination_version"`
}

type inspectBlock struct {
	Name   string    `json:"name"`
	Type   string    `json:"type"`
	Offset int64     `json:"offset"`
	Size   uint32    `json:"size"`
	Count  int       `json:"count,omitempty"`
	Text   string    `json:"text,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

type inspectReport struct {
	File   string         `json:"file"`
	Size   int64          `json:"size"`
	Root   inspectRoot    `json:"root"`
	Blocks []inspectBlock `json:"blocks"`
}

func inspectCmd() *cli.Command {
	var (
		path     string
		asJSON   bool
		numShown int
	)

	return &cli.Command{
		Name:   "inspect",
		Usage:  "Print the root record and block table of a .gdf file",
		Before: setupLogging,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"f"},
				Usage:       "path to .gdf file",
				Destination: &path,
				Required:    true,
			},
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
			&cli.IntFlag{Name: "values", Usage: "number of leading values printed per block", Value: 3, Destination: &numShown},
		},
		Action: func(_ context.Context, _ *cli.Command) error {
			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat %q: %v", path, err), 1)
			}
			f, err := gdf.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open gdf: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			report, err := buildReport(f, path, stat.Size(), numShown)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if asJSON {
				return writeJSON(os.Stdout, report)
			}
			printReport(os.Stdout, report)
			return nil
		},
	}
}

func buildReport(f *gdf.File, path string, size int64, numShown int) (inspectReport, error) {
	r := inspectReport{
		File: path,
		Size: size,
		Root: inspectRoot{
			Created:            f.Root.Created.UTC(),
			Creator:            f.Root.Creator,
			Destination:        f.Root.Destination,
			FormatVersion:      formatVersion(f.Root.FormatVersion),
			ProducerVersion:    formatVersion(f.Root.ProducerVersion),
			DestinationVersion: formatVersion(f.Root.DestinationVersion),
		},
		Blocks: make([]inspectBlock, 0, len(f.Blocks)),
	}
	for i := range f.Blocks {
		b := &f.Blocks[i]
		ib := inspectBlock{
			Name:   b.Name,
			Type:   b.Type.String(),
			Offset: b.Offset,
			Size:   b.Size,
			Count:  b.Count(),
		}
		switch b.Type.Content() {
		case gdf.TypeASCII:
			text, err := f.ASCII(b)
			if err != nil {
				return r, err
			}
			ib.Text = strings.TrimRight(text, "\x00")
		case gdf.TypeDouble:
			if numShown > 0 {
				vals, err := f.Doubles(b)
				if err != nil {
					return r, err
				}
				ib.Values = vals[:min(numShown, len(vals))]
			}
		}
		r.Blocks = append(r.Blocks, ib)
	}
	return r, nil
}

func writeJSON(w io.Writer, report inspectReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func printReport(w io.Writer, r inspectReport) {
	_, _ = fmt.Fprintf(w, "GDF Inspect: %s\n", r.File)
	_, _ = fmt.Fprintf(w, "File: %s (%s)\n", filepath.Base(r.File), formatBytes(uint64(r.Size)))
	_, _ = fmt.Fprintln(w, "Root:")
	_, _ = fmt.Fprintf(w, "  created:     %s\n", r.Root.Created.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "  creator:     %s %s\n", r.Root.Creator, r.Root.ProducerVersion)
	_, _ = fmt.Fprintf(w, "  destination: %s %s\n", r.Root.Destination, r.Root.DestinationVersion)
	_, _ = fmt.Fprintf(w, "  gdf version: %s\n", r.Root.FormatVersion)
	_, _ = fmt.Fprintf(w, "Blocks: %d\n", len(r.Blocks))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  #\tNAME\tTYPE\tOFFSET\tSIZE\tCOUNT\tVALUES")
	for i, b := range r.Blocks {
		_, _ = fmt.Fprintf(tw, "  %d\t%s\t%s\t%d\t%d\t%d\t%s\n", i, b.Name, b.Type, b.Offset, b.Size, b.Count, blockPreview(b))
	}
	_ = tw.Flush()
}

func blockPreview(b inspectBlock) string {
	if b.Text != "" {
		return strconv.Quote(b.Text)
	}
	if len(b.Values) == 0 {
		return ""
	}
	parts := make([]string, len(b.Values))
	for i, v := range b.Values {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	s := strings.Join(parts, " ")
	if b.Count > len(b.Values) {
		s += " ..."
	}
	return s
}

func formatVersion(v gdf.Version) string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TiB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
