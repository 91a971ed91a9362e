package convert

import (
	"context"
	"errors"
	"fmt"

	"github.com/samcharles93/gdfconv/internal/source"
	"github.com/samcharles93/gdfconv/pkg/gdf"
)

// Every conversion failure matches exactly one of these with errors.Is.
// None of them is retried and no partial output survives any of them.
var (
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrMalformedAttribute = source.ErrMalformed
	ErrEncoding           = errors.New("encoding error")
	ErrShapeMismatch      = errors.New("shape mismatch")
	ErrIO                 = errors.New("i/o error")
)

var kinds = []error{ErrSourceUnavailable, ErrMalformedAttribute, ErrEncoding, ErrShapeMismatch, ErrIO}

// writeErr classifies an error returned by the GDF writer.
func writeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gdf.ErrNotASCII):
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	case errors.Is(err, gdf.ErrRange):
		return fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	case errors.Is(err, gdf.ErrOutOfOrder),
		errors.Is(err, gdf.ErrBlockOpen),
		errors.Is(err, gdf.ErrWriterClosed),
		errors.Is(err, gdf.ErrPayloadLength):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}

// classify gives err its conversion kind unless it already has one.
// Cancellation is left as is.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return err
		}
	}
	switch {
	case errors.Is(err, source.ErrRange),
		errors.Is(err, source.ErrNoRecord),
		errors.Is(err, source.ErrNoComponent),
		errors.Is(err, gdf.ErrPayloadLength):
		return fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}
