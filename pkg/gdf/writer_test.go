package gdf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newReadyWriter(t *testing.T, buf *bytes.Buffer) *Writer {
	t.Helper()
	w := NewWriter(buf)
	if err := w.WriteRoot(RootRecord{Creator: "empty", Destination: "empty"}); err != nil {
		t.Fatalf("write root: %v", err)
	}
	if err := w.WriteSentinel(); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}
	return w
}

func TestEncodeNamePadsAndTruncates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"x", "x" + string(make([]byte, 15))},
		{"", string(make([]byte, 16))},
		{"exactly16chars!!", "exactly16chars!!"},
		{"this name is far too long", "this name is far"},
	}
	for _, tc := range tests {
		got, err := EncodeName(tc.in)
		if err != nil {
			t.Fatalf("EncodeName(%q): %v", tc.in, err)
		}
		if string(got[:]) != tc.want {
			t.Errorf("EncodeName(%q): got %q want %q", tc.in, got[:], tc.want)
		}
	}
}

func TestEncodeNameRejectsNonASCII(t *testing.T) {
	t.Parallel()
	if _, err := EncodeName("électrons"); !errors.Is(err, ErrNotASCII) {
		t.Fatalf("expected ErrNotASCII, got %v", err)
	}
}

func TestRootRecordLayout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	created := time.Date(2020, 5, 17, 12, 0, 0, 0, time.UTC)
	root := RootRecord{
		Created:            created,
		Creator:            "PIConGPU",
		Destination:        "empty",
		FormatVersion:      Version{1, 1},
		ProducerVersion:    Version{3, 0},
		DestinationVersion: Version{0, 0},
	}
	if err := w.WriteRoot(root); err != nil {
		t.Fatalf("write root: %v", err)
	}
	if err := w.WriteSentinel(); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw := buf.Bytes()
	if len(raw) != RootSize {
		t.Fatalf("root size: got %d want %d", len(raw), RootSize)
	}
	if got := int32(binary.LittleEndian.Uint32(raw[0:4])); got != Magic {
		t.Fatalf("magic: got %d want %d", got, Magic)
	}
	if got := int64(int32(binary.LittleEndian.Uint32(raw[4:8]))); got != created.Unix() {
		t.Fatalf("created: got %d want %d", got, created.Unix())
	}
	if got := DecodeName(raw[8:24]); got != "PIConGPU" {
		t.Fatalf("creator: got %q", got)
	}
	if !bytes.Equal(raw[40:46], []byte{1, 1, 3, 0, 0, 0}) {
		t.Fatalf("versions: got %v", raw[40:46])
	}
	if string(raw[46:48]) != "00" {
		t.Fatalf("sentinel: got %q want %q", raw[46:48], "00")
	}
}

func TestBlocksBeforeRootAreRejected(t *testing.T) {
	t.Parallel()

	w := NewWriter(&bytes.Buffer{})
	if err := w.WriteASCII("var", "electrons"); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("ascii before root: got %v want ErrOutOfOrder", err)
	}
	if err := w.WriteSentinel(); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("sentinel before root: got %v want ErrOutOfOrder", err)
	}
	if err := w.WriteRoot(RootRecord{}); err != nil {
		t.Fatalf("write root: %v", err)
	}
	if err := w.WriteRoot(RootRecord{}); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("second root: got %v want ErrOutOfOrder", err)
	}
}

func TestASCIIBlockIsNotPadded(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newReadyWriter(t, &buf)
	if err := w.WriteASCII("var", "electrons"); err != nil {
		t.Fatalf("write ascii: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw := buf.Bytes()[RootSize:]
	if len(raw) != blockHeaderSize+len("electrons") {
		t.Fatalf("block size: got %d want %d", len(raw), blockHeaderSize+len("electrons"))
	}
	if got := BlockType(binary.LittleEndian.Uint32(raw[16:20])); got != TypeSingleValue|TypeASCII {
		t.Fatalf("type: got %#x want %#x", uint32(got), 1025)
	}
	if got := binary.LittleEndian.Uint32(raw[20:24]); got != 9 {
		t.Fatalf("length: got %d want 9", got)
	}
	if string(raw[24:]) != "electrons" {
		t.Fatalf("payload: got %q", raw[24:])
	}
}

func TestASCIIBlockRejectsNonASCIIText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newReadyWriter(t, &buf)
	if err := w.WriteASCII("var", "µ-beam"); !errors.Is(err, ErrNotASCII) {
		t.Fatalf("expected ErrNotASCII, got %v", err)
	}
}

func TestScalarDoubleBlock(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newReadyWriter(t, &buf)
	if err := w.WriteDouble("time", 1.5e-12); err != nil {
		t.Fatalf("write double: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw := buf.Bytes()[RootSize:]
	if got := binary.LittleEndian.Uint32(raw[16:20]); got != 1027 {
		t.Fatalf("type: got %d want 1027", got)
	}
	if got := binary.LittleEndian.Uint32(raw[20:24]); got != 8 {
		t.Fatalf("length: got %d want 8", got)
	}
	if got := math.Float64frombits(binary.LittleEndian.Uint64(raw[24:32])); got != 1.5e-12 {
		t.Fatalf("value: got %v", got)
	}
}

func TestArrayWriterChunkedPayload(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newReadyWriter(t, &buf)
	aw, err := w.BeginDoubleArray("x", 5)
	if err != nil {
		t.Fatalf("begin array: %v", err)
	}
	if err := w.WriteASCII("var", "nope"); !errors.Is(err, ErrBlockOpen) {
		t.Fatalf("write during open array: got %v want ErrBlockOpen", err)
	}
	for _, chunk := range [][]float64{{1, 2}, {3, 4}, {5}} {
		if err := aw.WriteDoubles(chunk); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
	}
	if err := aw.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw := buf.Bytes()[RootSize:]
	if got := binary.LittleEndian.Uint32(raw[16:20]); got != 2051 {
		t.Fatalf("type: got %d want 2051", got)
	}
	if got := binary.LittleEndian.Uint32(raw[20:24]); got != 40 {
		t.Fatalf("length: got %d want 40", got)
	}
	if len(raw[24:]) != 40 {
		t.Fatalf("payload bytes: got %d want 40", len(raw[24:]))
	}
	for i := 0; i < 5; i++ {
		got := math.Float64frombits(binary.LittleEndian.Uint64(raw[24+8*i:]))
		if got != float64(i+1) {
			t.Fatalf("element %d: got %v want %v", i, got, float64(i+1))
		}
	}
}

func TestArrayWriterLengthMismatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newReadyWriter(t, &buf)

	aw, err := w.BeginDoubleArray("x", 2)
	if err != nil {
		t.Fatalf("begin array: %v", err)
	}
	if err := aw.WriteDoubles([]float64{1, 2, 3}); !errors.Is(err, ErrPayloadLength) {
		t.Fatalf("overlong write: got %v want ErrPayloadLength", err)
	}
	if err := aw.WriteDoubles([]float64{1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := aw.End(); !errors.Is(err, ErrPayloadLength) {
		t.Fatalf("short end: got %v want ErrPayloadLength", err)
	}
}

func TestEmptyArrayBlock(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newReadyWriter(t, &buf)
	aw, err := w.BeginDoubleArray("x", 0)
	if err != nil {
		t.Fatalf("begin array: %v", err)
	}
	if err := aw.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	raw := buf.Bytes()[RootSize:]
	if len(raw) != blockHeaderSize {
		t.Fatalf("expected header only, got %d bytes", len(raw))
	}
	if got := binary.LittleEndian.Uint32(raw[20:24]); got != 0 {
		t.Fatalf("length: got %d want 0", got)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "beam.gdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	w := NewWriter(f)
	if err := w.WriteRoot(RootRecord{Creator: "test", Destination: "empty", FormatVersion: Version{1, 1}}); err != nil {
		t.Fatalf("write root: %v", err)
	}
	if err := w.WriteSentinel(); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}
	if err := w.WriteDouble("time", 2.0); err != nil {
		t.Fatalf("write time: %v", err)
	}
	if err := w.WriteASCII("var", "electrons"); err != nil {
		t.Fatalf("write var: %v", err)
	}
	aw, err := w.BeginDoubleArray("x", 3)
	if err != nil {
		t.Fatalf("begin array: %v", err)
	}
	if err := aw.WriteDoubles([]float64{0.5, -1, 7}); err != nil {
		t.Fatalf("write array: %v", err)
	}
	if err := aw.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	gf, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		if cerr := gf.Close(); cerr != nil {
			t.Fatalf("close gdf file: %v", cerr)
		}
	}()

	if gf.Root.Creator != "test" || gf.Root.FormatVersion != (Version{1, 1}) {
		t.Fatalf("root mismatch: %+v", gf.Root)
	}
	if string(gf.Sentinel[:]) != Sentinel {
		t.Fatalf("sentinel: got %q", gf.Sentinel[:])
	}
	if len(gf.Blocks) != 3 {
		t.Fatalf("blocks: got %d want 3", len(gf.Blocks))
	}
	name, err := gf.ASCII(&gf.Blocks[1])
	if err != nil || name != "electrons" {
		t.Fatalf("var block: got %q, %v", name, err)
	}
	xs := gf.Find("x")
	if len(xs) != 1 || xs[0].Count() != 3 {
		t.Fatalf("x block: %+v", xs)
	}
	vals, err := gf.Doubles(xs[0])
	if err != nil {
		t.Fatalf("doubles: %v", err)
	}
	if vals[0] != 0.5 || vals[1] != -1 || vals[2] != 7 {
		t.Fatalf("values: got %v", vals)
	}
}

func TestDecodeRejectsCorruptInput(t *testing.T) {
	t.Parallel()

	if _, err := Decode(make([]byte, RootSize-1)); !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("short file: got %v want ErrCorruptFile", err)
	}

	bad := make([]byte, RootSize)
	if _, err := Decode(bad); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("bad magic: got %v want ErrInvalidMagic", err)
	}

	var buf bytes.Buffer
	w := newReadyWriter(t, &buf)
	aw, _ := w.BeginDoubleArray("x", 2)
	_ = aw.WriteDoubles([]float64{1, 2})
	_ = aw.End()
	_ = w.Close()
	truncated := buf.Bytes()[:buf.Len()-4]
	if _, err := Decode(truncated); !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("truncated payload: got %v want ErrCorruptFile", err)
	}
}

func TestOpenRejectsShortFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "short.gdf")
	if err := os.WriteFile(path, make([]byte, RootSize-1), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path); !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("short file: got %v want ErrCorruptFile", err)
	}
}
