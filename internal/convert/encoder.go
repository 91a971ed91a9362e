package convert

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samcharles93/gdfconv/internal/logger"
	"github.com/samcharles93/gdfconv/internal/source"
	"github.com/samcharles93/gdfconv/internal/units"
	"github.com/samcharles93/gdfconv/pkg/gdf"
)

// DefaultChunkSize is the number of elements streamed per read when no
// chunk size is configured.
const DefaultChunkSize = 1_000_000

// Options controls what an Encoder emits.
type Options struct {
	// ChunkSize bounds the number of elements held in memory per array.
	ChunkSize int
	// Species restricts the output to one species when non-empty.
	Species string
	// GridSize, when positive, replaces the mesh cell size (SI) on every axis
	// for the macro-particle radius.
	GridSize float64
	// Destination overrides the root record's destination name.
	Destination string
}

func (o Options) validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrShapeMismatch, o.ChunkSize)
	}
	if o.GridSize < 0 {
		return fmt.Errorf("%w: grid size %g", ErrShapeMismatch, o.GridSize)
	}
	return nil
}

// Stats summarises a finished conversion.
type Stats struct {
	Iterations int
	Species    int
	Blocks     int
	Bytes      int64
}

type encoderState int

const (
	stateUninitialized encoderState = iota
	stateRootWritten
	stateSentinelWritten
	stateTimeWritten
	stateVarWritten
	stateFieldsStreaming
	stateClosed
)

var stateNames = [...]string{
	"uninitialized", "root written", "sentinel written", "time written",
	"var written", "fields streaming", "closed",
}

func (s encoderState) String() string { return stateNames[s] }

// ErrState is returned when Encoder methods are called out of order.
var ErrState = errors.New("convert: encoder used out of order")

// Encoder assembles a GDF document from a source in one forward pass.
type Encoder struct {
	w     *gdf.Writer
	opts  Options
	state encoderState
	stats Stats
}

// NewEncoder returns an Encoder writing to w. Options are validated before
// anything is written.
func NewEncoder(w io.Writer, opts Options) (*Encoder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Encoder{w: gdf.NewWriter(w), opts: opts}, nil
}

// Stats returns the counters accumulated so far.
func (e *Encoder) Stats() Stats {
	s := e.stats
	s.Bytes = e.w.Offset()
	return s
}

// Encode writes the whole document for src and closes the encoder.
// The encoder is closed on every path; on error the output is incomplete.
func (e *Encoder) Encode(ctx context.Context, src source.Source) (err error) {
	defer func() {
		if err != nil {
			e.state = stateClosed
			err = classify(err)
		}
	}()

	if err := e.WriteRoot(src); err != nil {
		return err
	}
	if err := e.WriteSentinel(); err != nil {
		return err
	}
	iters, err := src.Iterations()
	if err != nil {
		return fmt.Errorf("list iterations: %w", err)
	}
	for _, it := range iters {
		if err := e.WriteIteration(ctx, it); err != nil {
			return fmt.Errorf("iteration %d: %w", it.Index(), err)
		}
	}
	return e.Close()
}

// WriteRoot writes the root record built from the source attributes.
func (e *Encoder) WriteRoot(src source.Source) error {
	if err := e.expect(stateUninitialized); err != nil {
		return err
	}
	root, err := RootRecord(src, e.opts.Destination)
	if err != nil {
		return err
	}
	if err := e.w.WriteRoot(root); err != nil {
		return writeErr(err)
	}
	e.state = stateRootWritten
	return nil
}

// WriteSentinel writes the two reserved bytes that end the root record.
func (e *Encoder) WriteSentinel() error {
	if err := e.expect(stateRootWritten); err != nil {
		return err
	}
	if err := e.w.WriteSentinel(); err != nil {
		return writeErr(err)
	}
	e.state = stateSentinelWritten
	return nil
}

// WriteIteration writes the time block (for timed sources) and every eligible
// species of it.
func (e *Encoder) WriteIteration(ctx context.Context, it source.Iteration) error {
	if err := e.expect(stateSentinelWritten, stateTimeWritten, stateFieldsStreaming); err != nil {
		return err
	}
	log := logger.FromContext(ctx).With("iteration", it.Index())

	if t, ok := it.Time(); ok {
		if err := e.w.WriteDouble(blockTime, t); err != nil {
			return writeErr(err)
		}
		e.stats.Blocks++
	}
	e.state = stateTimeWritten
	e.stats.Iterations++

	grid, err := e.grid(it)
	if err != nil {
		return err
	}

	species, err := it.Species()
	if err != nil {
		return fmt.Errorf("list species: %w", err)
	}

	written := 0
	for _, sp := range species {
		if e.opts.Species != "" && sp.Name() != e.opts.Species {
			continue
		}
		if !sp.Has(source.RecordMomentum) || !sp.Has(source.RecordPosition) {
			log.Debug("skipping species without momentum and position", "species", sp.Name())
			continue
		}
		if err := e.WriteSpecies(logger.WithContext(ctx, log), sp, grid); err != nil {
			return fmt.Errorf("species %q: %w", sp.Name(), err)
		}
		written++
	}
	if e.opts.Species != "" && written == 0 {
		log.Info("species not found in iteration", "species", e.opts.Species)
	}
	log.Info("iteration written", "species", written)
	return nil
}

func (e *Encoder) grid(it source.Iteration) (units.Grid, error) {
	g, ok, err := it.Grid()
	if err != nil {
		return units.Grid{}, fmt.Errorf("read grid: %w", err)
	}
	if !ok {
		g = units.DefaultGrid()
	}
	if e.opts.GridSize > 0 {
		g = g.Override(e.opts.GridSize)
	}
	return g, nil
}

// WriteSpecies writes the var block of sp followed by its fields in the
// fixed order Bx.., x.., m, q, nmacro, rmacro.
func (e *Encoder) WriteSpecies(ctx context.Context, sp source.Species, grid units.Grid) error {
	if err := e.expect(stateTimeWritten, stateFieldsStreaming); err != nil {
		return err
	}
	log := logger.FromContext(ctx).With("species", sp.Name())

	if err := e.w.WriteASCII(blockVar, sp.Name()); err != nil {
		return writeErr(err)
	}
	e.stats.Blocks++
	e.stats.Species++
	e.state = stateVarWritten

	if err := e.writeMomentum(ctx, log, sp); err != nil {
		return err
	}
	e.state = stateFieldsStreaming

	size, err := e.writePosition(ctx, log, sp)
	if err != nil {
		return err
	}

	for _, record := range []string{source.RecordMass, source.RecordCharge} {
		if !sp.Has(record) {
			continue
		}
		value, unitSI, ok, err := sp.Constant(record)
		if err != nil {
			return fmt.Errorf("read %s: %w", record, err)
		}
		if !ok {
			continue
		}
		name, _ := BlockName(record, source.Scalar)
		if err := e.writeArray(ctx, log, name, size, Broadcast(units.Scalar(value, unitSI))); err != nil {
			return err
		}
	}

	if err := e.writeWeighting(ctx, log, sp, size); err != nil {
		return err
	}

	shape, ok, err := sp.Attribute(source.AttrParticleShape)
	if err != nil {
		return fmt.Errorf("read %s: %w", source.AttrParticleShape, err)
	}
	if !ok || shape <= 0 {
		shape = 1
	}
	r, err := units.MacroRadius(grid, shape)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedAttribute, err)
	}
	return e.writeArray(ctx, log, blockRMacro, size, Broadcast(r))
}

func (e *Encoder) writeMomentum(ctx context.Context, log logger.Logger, sp source.Species) error {
	axes, err := sp.Components(source.RecordMomentum)
	if err != nil {
		return err
	}
	for _, axis := range axes {
		name, ok := BlockName(source.RecordMomentum, axis)
		if !ok {
			log.Debug("dropping unmapped component", "record", source.RecordMomentum, "axis", axis)
			continue
		}
		n, err := sp.Len(source.RecordMomentum, axis)
		if err != nil {
			return err
		}
		unitSI, err := sp.UnitSI(source.RecordMomentum, axis)
		if err != nil {
			return err
		}
		c := Scaled{Species: sp, Record: source.RecordMomentum, Axis: axis, T: units.Momentum(unitSI)}
		if err := e.writeArray(ctx, log, name, n, c); err != nil {
			return err
		}
	}
	return nil
}

// writePosition writes the position components and returns the element count
// of the last one, which sizes the broadcast blocks.
func (e *Encoder) writePosition(ctx context.Context, log logger.Logger, sp source.Species) (int, error) {
	axes, err := sp.Components(source.RecordPosition)
	if err != nil {
		return 0, err
	}
	hasOffsets := sp.Has(source.RecordPositionOffset)
	size := 0
	for _, axis := range axes {
		n, err := sp.Len(source.RecordPosition, axis)
		if err != nil {
			return 0, err
		}
		size = n

		name, ok := BlockName(source.RecordPosition, axis)
		if !ok {
			log.Debug("dropping unmapped component", "record", source.RecordPosition, "axis", axis)
			continue
		}
		unitPos, err := sp.UnitSI(source.RecordPosition, axis)
		if err != nil {
			return 0, err
		}

		c := &Positioned{Species: sp, Axis: axis}
		unitOff := 0.0
		if hasOffsets {
			offN, err := sp.Len(source.RecordPositionOffset, axis)
			switch {
			case errors.Is(err, source.ErrNoComponent):
			case err != nil:
				return 0, err
			case offN != n:
				return 0, fmt.Errorf("%w: position/%s has %d elements, positionOffset/%s has %d",
					ErrShapeMismatch, axis, n, axis, offN)
			default:
				if unitOff, err = sp.UnitSI(source.RecordPositionOffset, axis); err != nil {
					return 0, err
				}
				c.HasOffset = true
			}
		}
		c.T = units.NewPosition(unitPos, unitOff)
		if err := e.writeArray(ctx, log, name, n, c); err != nil {
			return 0, err
		}
	}
	return size, nil
}

func (e *Encoder) writeWeighting(ctx context.Context, log logger.Logger, sp source.Species, size int) error {
	name, _ := BlockName(source.RecordWeighting, source.Scalar)
	if !sp.Has(source.RecordWeighting) {
		return e.writeArray(ctx, log, name, size, Broadcast(1))
	}
	n, err := sp.Len(source.RecordWeighting, source.Scalar)
	if err != nil {
		return err
	}
	c := Scaled{Species: sp, Record: source.RecordWeighting, Axis: source.Scalar, T: units.Linear{UnitSI: 1}}
	return e.writeArray(ctx, log, name, n, c)
}

func (e *Encoder) writeArray(ctx context.Context, log logger.Logger, name string, n int, c Cursor) error {
	aw, err := e.w.BeginDoubleArray(name, n)
	if err != nil {
		return writeErr(err)
	}
	if err := Stream(ctx, c, n, e.opts.ChunkSize, aw); err != nil {
		_ = aw.End()
		return fmt.Errorf("block %q: %w", name, err)
	}
	if err := aw.End(); err != nil {
		return writeErr(err)
	}
	e.stats.Blocks++
	log.Debug("block written", "block", name, "elements", n)
	return nil
}

// Close flushes buffered output. Closed is terminal.
func (e *Encoder) Close() error {
	if e.state == stateClosed {
		return ErrState
	}
	e.state = stateClosed
	return writeErr(e.w.Close())
}

func (e *Encoder) expect(allowed ...encoderState) error {
	for _, s := range allowed {
		if e.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: state %s", ErrState, e.state)
}
