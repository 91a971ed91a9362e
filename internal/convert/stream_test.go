package convert

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/samcharles93/gdfconv/internal/source"
	"github.com/samcharles93/gdfconv/internal/units"
)

type recordingSink struct {
	vals   []float64
	writes []int
	err    error
}

func (s *recordingSink) WriteDoubles(vals []float64) error {
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, len(vals))
	s.vals = append(s.vals, vals...)
	return nil
}

type sliceCursor []float64

func (c sliceCursor) Read(start, end int, dst []float64) ([]float64, error) {
	return append(dst[:0], c[start:end]...), nil
}

type shortCursor struct{}

func (shortCursor) Read(start, end int, dst []float64) ([]float64, error) {
	return dst[:0], nil
}

func TestStreamChunkSizeIsTransparent(t *testing.T) {
	t.Parallel()

	data := sliceCursor{1, 2, 3, 4, 5, 6, 7}
	for _, chunk := range []int{1, 2, 3, 7, 100} {
		var sink recordingSink
		if err := Stream(context.Background(), data, len(data), chunk, &sink); err != nil {
			t.Fatalf("chunk %d: %v", chunk, err)
		}
		if !slices.Equal(sink.vals, data) {
			t.Fatalf("chunk %d: got %v want %v", chunk, sink.vals, data)
		}
		for _, n := range sink.writes {
			if n > chunk {
				t.Fatalf("chunk %d: write of %d elements", chunk, n)
			}
		}
	}
}

func TestStreamWriteSizes(t *testing.T) {
	t.Parallel()

	var sink recordingSink
	if err := Stream(context.Background(), Broadcast(4), 5, 2, &sink); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(sink.writes, []int{2, 2, 1}) {
		t.Fatalf("writes = %v", sink.writes)
	}
	if !slices.Equal(sink.vals, []float64{4, 4, 4, 4, 4}) {
		t.Fatalf("vals = %v", sink.vals)
	}
}

func TestStreamEmpty(t *testing.T) {
	t.Parallel()

	var sink recordingSink
	if err := Stream(context.Background(), sliceCursor{}, 0, 4, &sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.writes) != 0 {
		t.Fatalf("expected no writes, got %v", sink.writes)
	}
}

func TestStreamErrors(t *testing.T) {
	t.Parallel()

	t.Run("zero chunk", func(t *testing.T) {
		var sink recordingSink
		err := Stream(context.Background(), Broadcast(1), 3, 0, &sink)
		if !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("expected ErrShapeMismatch, got %v", err)
		}
		if len(sink.writes) != 0 {
			t.Fatal("no data may be written with an invalid chunk size")
		}
	})

	t.Run("short read", func(t *testing.T) {
		err := Stream(context.Background(), shortCursor{}, 3, 2, &recordingSink{})
		if !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("expected ErrShapeMismatch, got %v", err)
		}
	})

	t.Run("sink failure is io", func(t *testing.T) {
		sink := &recordingSink{err: errors.New("disk full")}
		err := Stream(context.Background(), Broadcast(1), 3, 2, sink)
		if !errors.Is(err, ErrIO) {
			t.Fatalf("expected ErrIO, got %v", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Stream(ctx, Broadcast(1), 3, 2, &recordingSink{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestScaledFlushesEveryRead(t *testing.T) {
	t.Parallel()

	sp := &source.MemorySpecies{
		SpeciesName: "e",
		Records: map[string]map[string]*source.MemoryComponent{
			source.RecordMomentum: {"x": source.Array([]float64{1, 2, 3, 4, 5}, 2)},
		},
	}
	c := Scaled{Species: sp, Record: source.RecordMomentum, Axis: "x", T: units.Momentum(2)}
	var sink recordingSink
	if err := Stream(context.Background(), c, 5, 2, &sink); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(sink.vals, []float64{2, 4, 6, 8, 10}) {
		t.Fatalf("vals = %v", sink.vals)
	}
	if sp.Flushes != 3 {
		t.Fatalf("flushes = %d, want 3", sp.Flushes)
	}
	if want := [][2]int{{0, 2}, {2, 4}, {4, 5}}; !slices.Equal(sp.Reads, want) {
		t.Fatalf("reads = %v, want %v", sp.Reads, want)
	}
}

func TestPositionedAddsOffsets(t *testing.T) {
	t.Parallel()

	sp := &source.MemorySpecies{
		SpeciesName: "e",
		Records: map[string]map[string]*source.MemoryComponent{
			source.RecordPosition:       {"x": source.Array([]float64{1, 2, 3}, 1e-6)},
			source.RecordPositionOffset: {"x": source.Const(10, 3, 1e-6)},
		},
	}
	c := &Positioned{Species: sp, Axis: "x", HasOffset: true, T: units.NewPosition(1e-6, 1e-6)}
	var sink recordingSink
	if err := Stream(context.Background(), c, 3, 2, &sink); err != nil {
		t.Fatal(err)
	}
	want := []float64{11e-6, 12e-6, 13e-6}
	for i := range want {
		if diff := sink.vals[i] - want[i]; diff > 1e-18 || diff < -1e-18 {
			t.Fatalf("vals[%d] = %g want %g", i, sink.vals[i], want[i])
		}
	}
}

func TestBlockName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		record, axis string
		want         string
		ok           bool
	}{
		{"momentum", "x", "Bx", true},
		{"momentum", "z", "Bz", true},
		{"position", "y", "y", true},
		{"mass", "", "m", true},
		{"charge", "", "q", true},
		{"weighting", "", "nmacro", true},
		{"id", "", "ID", true},
		{"momentum", "w", "", false},
		{"positionOffset", "x", "", false},
	}
	for _, tc := range tests {
		got, ok := BlockName(tc.record, tc.axis)
		if got != tc.want || ok != tc.ok {
			t.Errorf("BlockName(%q, %q) = %q, %v; want %q, %v", tc.record, tc.axis, got, ok, tc.want, tc.ok)
		}
	}
}
