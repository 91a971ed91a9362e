package convert

import (
	"context"
	"fmt"

	"github.com/samcharles93/gdfconv/internal/source"
	"github.com/samcharles93/gdfconv/internal/units"
)

// Sink receives the payload of one array block, chunk by chunk.
type Sink interface {
	WriteDoubles(vals []float64) error
}

// Cursor yields physical values for the half-open index range [start, end),
// appending them to dst[:0].
type Cursor interface {
	Read(start, end int, dst []float64) ([]float64, error)
}

// Stream writes total values from c to sink in ranges of at most chunk
// elements. Only one chunk is held in memory at a time and values reach the
// sink in index order.
func Stream(ctx context.Context, c Cursor, total, chunk int, sink Sink) error {
	if chunk <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrShapeMismatch, chunk)
	}
	if total < 0 {
		return fmt.Errorf("%w: negative element count %d", ErrShapeMismatch, total)
	}
	buf := make([]float64, 0, min(chunk, total))
	for start := 0; start < total; start += chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+chunk, total)
		vals, err := c.Read(start, end, buf)
		if err != nil {
			return fmt.Errorf("read [%d, %d): %w", start, end, err)
		}
		if len(vals) != end-start {
			return fmt.Errorf("%w: read [%d, %d) returned %d values", ErrShapeMismatch, start, end, len(vals))
		}
		if err := sink.WriteDoubles(vals); err != nil {
			return writeErr(err)
		}
		buf = vals[:0]
	}
	return nil
}

// Broadcast yields the same value at every index.
type Broadcast float64

func (b Broadcast) Read(start, end int, dst []float64) ([]float64, error) {
	dst = dst[:0]
	for i := start; i < end; i++ {
		dst = append(dst, float64(b))
	}
	return dst, nil
}

// Scaled reads one record component and applies T element-wise.
type Scaled struct {
	Species source.Species
	Record  string
	Axis    string
	T       units.Transform
}

func (s Scaled) Read(start, end int, dst []float64) ([]float64, error) {
	vals, err := s.Species.ReadRange(s.Record, s.Axis, start, end, dst)
	if err != nil {
		return nil, err
	}
	if err := s.Species.Flush(); err != nil {
		return nil, err
	}
	for i, v := range vals {
		vals[i] = s.T.Apply(v)
	}
	return vals, nil
}

// Positioned reads a position component together with its index-aligned
// positionOffset component. A species without offsets reads them as zero.
type Positioned struct {
	Species   source.Species
	Axis      string
	HasOffset bool
	T         units.PairTransform

	offsets []float64
}

func (p *Positioned) Read(start, end int, dst []float64) ([]float64, error) {
	vals, err := p.Species.ReadRange(source.RecordPosition, p.Axis, start, end, dst)
	if err != nil {
		return nil, err
	}
	if p.HasOffset {
		p.offsets, err = p.Species.ReadRange(source.RecordPositionOffset, p.Axis, start, end, p.offsets)
		if err != nil {
			return nil, err
		}
		if len(p.offsets) != len(vals) {
			return nil, fmt.Errorf("%w: %d positions against %d offsets", ErrShapeMismatch, len(vals), len(p.offsets))
		}
	}
	if err := p.Species.Flush(); err != nil {
		return nil, err
	}
	for i, v := range vals {
		off := 0.0
		if p.HasOffset {
			off = p.offsets[i]
		}
		vals[i] = p.T.Apply(v, off)
	}
	return vals, nil
}
