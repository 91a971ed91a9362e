package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/samcharles93/gdfconv/internal/logger"
	"github.com/samcharles93/gdfconv/internal/source"
)

// Opener opens an input container.
type Opener func(path string) (source.Source, error)

// DefaultOutput returns in with its extension replaced by ".gdf".
func DefaultOutput(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".gdf"
}

// ConvertFile converts the container at in to a GDF file at out.
//
// The document is written to a hidden temporary file next to out and renamed
// into place once complete, so out is either the full document or untouched.
func ConvertFile(ctx context.Context, in, out string, open Opener, opts Options) (stats Stats, err error) {
	log := logger.FromContext(ctx)

	if _, err := os.Stat(in); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, fmt.Errorf("%w: %s does not exist", ErrSourceUnavailable, in)
		}
		return stats, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if err := opts.validate(); err != nil {
		return stats, err
	}

	src, err := open(in)
	if err != nil {
		return stats, fmt.Errorf("%w: open %s: %w", ErrSourceUnavailable, in, err)
	}
	defer func() {
		err = multierr.Append(err, src.Close())
	}()

	committed := false
	made, err := makeDirs(filepath.Dir(out))
	if err != nil {
		return stats, fmt.Errorf("%w: create output directory: %w", ErrIO, err)
	}
	defer func() {
		if committed {
			return
		}
		for _, dir := range made {
			// Leaves the directory alone if something else was written into it.
			_ = os.Remove(dir)
		}
	}()

	tmp := filepath.Join(filepath.Dir(out), "."+filepath.Base(out)+"."+uuid.NewString()+".partial")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return stats, fmt.Errorf("%w: create %s: %w", ErrIO, tmp, err)
	}
	defer func() {
		if committed {
			return
		}
		if cerr := f.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
		if rerr := os.Remove(tmp); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			err = multierr.Append(err, rerr)
		}
	}()

	enc, err := NewEncoder(f, opts)
	if err != nil {
		return stats, err
	}
	log.Info("converting", "input", in, "output", out, "chunk", opts.ChunkSize)
	if err := enc.Encode(ctx, src); err != nil {
		return enc.Stats(), err
	}
	stats = enc.Stats()

	if err := f.Sync(); err != nil {
		return stats, fmt.Errorf("%w: sync %s: %w", ErrIO, tmp, err)
	}
	if err := f.Close(); err != nil {
		return stats, fmt.Errorf("%w: close %s: %w", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, out); err != nil {
		return stats, fmt.Errorf("%w: rename %s: %w", ErrIO, out, err)
	}
	committed = true

	log.Info("conversion complete",
		"output", out,
		"iterations", stats.Iterations,
		"species", stats.Species,
		"blocks", stats.Blocks,
		"bytes", stats.Bytes,
	)
	return stats, nil
}

// makeDirs creates dir and any missing parents. It returns the directories
// it created, deepest first.
func makeDirs(dir string) ([]string, error) {
	var missing []string
	for d := filepath.Clean(dir); ; {
		if _, err := os.Stat(d); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		missing = append(missing, d)
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return missing, nil
}
