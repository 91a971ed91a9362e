package gdf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const writerBufSize = 1 << 20 // 1 MiB

type writerState int

const (
	stateEmpty writerState = iota
	stateRoot
	stateBlocks
	stateClosed
)

// Writer encodes a GDF document in a single forward pass.
//
// The root record and the sentinel must be written before any block. Large
// arrays are streamed with BeginDoubleArray; the declared length is written
// up front since the format has no block trailer, and the payload must match it.
type Writer struct {
	w       *bufio.Writer
	state   writerState
	open    *ArrayWriter
	scratch []byte
	offset  int64
}

// ArrayWriter streams the payload of one double array block.
//
// An ArrayWriter must be ended before any other block can be written.
type ArrayWriter struct {
	w       *Writer
	name    string
	count   int
	written int
	ended   bool
}

// NewWriter returns a Writer appending to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, writerBufSize)}
}

// Offset returns the number of bytes encoded so far.
func (w *Writer) Offset() int64 { return w.offset }

// WriteRoot writes the magic identifier and the root record fields.
func (w *Writer) WriteRoot(r RootRecord) error {
	if err := w.checkState(stateEmpty); err != nil {
		return err
	}
	created := int64(0)
	if !r.Created.IsZero() {
		created = r.Created.Unix()
	}
	if created < math.MinInt32 || created > math.MaxInt32 {
		return fmt.Errorf("%w: creation time %d", ErrRange, created)
	}
	creator, err := EncodeName(r.Creator)
	if err != nil {
		return err
	}
	dest, err := EncodeName(r.Destination)
	if err != nil {
		return err
	}

	var buf [RootSize - len(Sentinel)]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(Magic))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(created)))
	copy(buf[8:8+NameLen], creator[:])
	copy(buf[8+NameLen:8+2*NameLen], dest[:])
	v := buf[8+2*NameLen:]
	v[0], v[1] = r.FormatVersion.Major, r.FormatVersion.Minor
	v[2], v[3] = r.ProducerVersion.Major, r.ProducerVersion.Minor
	v[4], v[5] = r.DestinationVersion.Major, r.DestinationVersion.Minor
	if err := w.write(buf[:]); err != nil {
		return err
	}
	w.state = stateRoot
	return nil
}

// WriteSentinel writes the two reserved bytes closing the root record.
func (w *Writer) WriteSentinel() error {
	if err := w.checkState(stateRoot); err != nil {
		return err
	}
	if err := w.write([]byte(Sentinel)); err != nil {
		return err
	}
	w.state = stateBlocks
	return nil
}

// WriteASCII writes a single value ASCII block. The text is not padded.
func (w *Writer) WriteASCII(name, text string) error {
	if err := w.checkState(stateBlocks); err != nil {
		return err
	}
	if err := checkASCII(text); err != nil {
		return err
	}
	if len(text) > math.MaxInt32 {
		return fmt.Errorf("%w: block %q text of %d bytes", ErrRange, name, len(text))
	}
	if err := w.writeHeader(name, TypeSingleValue|TypeASCII, uint32(len(text))); err != nil {
		return err
	}
	return w.write([]byte(text))
}

// WriteDouble writes a single value double block.
func (w *Writer) WriteDouble(name string, v float64) error {
	if err := w.checkState(stateBlocks); err != nil {
		return err
	}
	if err := w.writeHeader(name, TypeSingleValue|TypeDouble, doubleSize); err != nil {
		return err
	}
	var buf [doubleSize]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return w.write(buf[:])
}

// BeginDoubleArray writes the header of an array block holding count doubles
// and returns a writer for its payload.
func (w *Writer) BeginDoubleArray(name string, count int) (*ArrayWriter, error) {
	if err := w.checkState(stateBlocks); err != nil {
		return nil, err
	}
	if count < 0 || count > math.MaxInt32/doubleSize {
		return nil, fmt.Errorf("%w: block %q with %d elements", ErrRange, name, count)
	}
	if err := w.writeHeader(name, TypeArray|TypeDouble, uint32(count*doubleSize)); err != nil {
		return nil, err
	}
	aw := &ArrayWriter{w: w, name: name, count: count}
	w.open = aw
	return aw, nil
}

// Flush writes any buffered bytes to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer. The Writer must not be used afterwards.
// The underlying io.Writer is not closed.
func (w *Writer) Close() error {
	if w.state == stateClosed {
		return ErrWriterClosed
	}
	w.state = stateClosed
	if w.open != nil {
		return ErrBlockOpen
	}
	return w.w.Flush()
}

// Len returns the number of elements declared for the block.
func (aw *ArrayWriter) Len() int { return aw.count }

// Remaining returns how many elements are still expected.
func (aw *ArrayWriter) Remaining() int { return aw.count - aw.written }

// WriteDoubles appends vals to the block payload.
func (aw *ArrayWriter) WriteDoubles(vals []float64) error {
	if aw.ended {
		return errors.New("gdf: array writer ended")
	}
	if aw.w.open != aw {
		return errors.New("gdf: array writer not active")
	}
	if len(vals) > aw.Remaining() {
		return fmt.Errorf("%w: block %q declared %d elements, got at least %d",
			ErrPayloadLength, aw.name, aw.count, aw.written+len(vals))
	}
	if len(vals) == 0 {
		return nil
	}
	n := len(vals) * doubleSize
	if cap(aw.w.scratch) < n {
		aw.w.scratch = make([]byte, n)
	}
	buf := aw.w.scratch[:n]
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*doubleSize:], math.Float64bits(v))
	}
	if err := aw.w.write(buf); err != nil {
		return err
	}
	aw.written += len(vals)
	return nil
}

// End finishes the block. It fails if fewer elements than declared were written.
func (aw *ArrayWriter) End() error {
	if aw.ended {
		return errors.New("gdf: array writer already ended")
	}
	aw.ended = true
	if aw.w.open == aw {
		aw.w.open = nil
	}
	if aw.written != aw.count {
		return fmt.Errorf("%w: block %q declared %d elements, wrote %d",
			ErrPayloadLength, aw.name, aw.count, aw.written)
	}
	return nil
}

func (w *Writer) checkState(want writerState) error {
	switch {
	case w.state == stateClosed:
		return ErrWriterClosed
	case w.open != nil:
		return ErrBlockOpen
	case w.state != want:
		return ErrOutOfOrder
	}
	return nil
}

func (w *Writer) writeHeader(name string, typ BlockType, size uint32) error {
	n, err := EncodeName(name)
	if err != nil {
		return err
	}
	var buf [blockHeaderSize]byte
	copy(buf[:NameLen], n[:])
	binary.LittleEndian.PutUint32(buf[NameLen:NameLen+4], uint32(typ))
	binary.LittleEndian.PutUint32(buf[NameLen+4:], size)
	return w.write(buf[:])
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.offset += int64(n)
	return err
}
