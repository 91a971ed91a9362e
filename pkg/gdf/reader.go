package gdf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Block describes one block of a decoded document.
type Block struct {
	Name   string
	Type   BlockType
	Offset int64 // absolute offset of the payload
	Size   uint32
}

// Count returns the number of elements in a double array block.
func (b *Block) Count() int {
	if b.Type.Content() != TypeDouble {
		return 0
	}
	return int(b.Size / doubleSize)
}

// File is a decoded GDF document.
type File struct {
	Data     []byte
	Root     RootRecord
	Sentinel [2]byte
	Blocks   []Block
	mmapped  bool
}

// Open maps a GDF file read-only and indexes its blocks.
// If mmap is unavailable, it falls back to ReadAt-based loading.
// The returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < int64(RootSize) || size64 > int64(math.MaxInt) {
		return nil, ErrCorruptFile
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		gf, parseErr := parseFileData(data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return gf, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

// OpenReaderAt loads and indexes a GDF document from a random-access reader without mmap.
func OpenReaderAt(r io.ReaderAt, size int64) (*File, error) {
	if size < 0 || size > int64(math.MaxInt) {
		return nil, ErrCorruptFile
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return parseFileData(data, false)
}

// Decode indexes a document held in memory. The File aliases data.
func Decode(data []byte) (*File, error) {
	return parseFileData(data, false)
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

func parseFileData(data []byte, mmapped bool) (*File, error) {
	if len(data) < RootSize {
		return nil, ErrCorruptFile
	}
	if int32(binary.LittleEndian.Uint32(data[0:4])) != Magic {
		return nil, ErrInvalidMagic
	}

	gf := &File{Data: data, mmapped: mmapped}
	if created := int32(binary.LittleEndian.Uint32(data[4:8])); created != 0 {
		gf.Root.Created = time.Unix(int64(created), 0).UTC()
	}
	gf.Root.Creator = DecodeName(data[8 : 8+NameLen])
	gf.Root.Destination = DecodeName(data[8+NameLen : 8+2*NameLen])
	v := data[8+2*NameLen:]
	gf.Root.FormatVersion = Version{Major: v[0], Minor: v[1]}
	gf.Root.ProducerVersion = Version{Major: v[2], Minor: v[3]}
	gf.Root.DestinationVersion = Version{Major: v[4], Minor: v[5]}
	copy(gf.Sentinel[:], data[RootSize-len(Sentinel):RootSize])

	off := RootSize
	for off < len(data) {
		if len(data)-off < blockHeaderSize {
			return nil, fmt.Errorf("%w: truncated block header at offset %d", ErrCorruptFile, off)
		}
		b := Block{
			Name: DecodeName(data[off : off+NameLen]),
			Type: BlockType(binary.LittleEndian.Uint32(data[off+NameLen:])),
			Size: binary.LittleEndian.Uint32(data[off+NameLen+4:]),
		}
		off += blockHeaderSize
		if uint64(b.Size) > uint64(len(data)-off) {
			return nil, fmt.Errorf("%w: block %q payload of %d bytes runs past end of file", ErrCorruptFile, b.Name, b.Size)
		}
		if b.Type.Content() == TypeDouble && b.Size%doubleSize != 0 {
			return nil, fmt.Errorf("%w: block %q size %d is not a multiple of %d", ErrCorruptFile, b.Name, b.Size, doubleSize)
		}
		b.Offset = int64(off)
		gf.Blocks = append(gf.Blocks, b)
		off += int(b.Size)
	}
	return gf, nil
}

// Close releases any mmap backing.
func (f *File) Close() error {
	if f == nil || f.Data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.Blocks = nil
	f.mmapped = false
	return err
}

// Find returns every block with the given name, in document order.
func (f *File) Find(name string) []*Block {
	var out []*Block
	for i := range f.Blocks {
		if f.Blocks[i].Name == name {
			out = append(out, &f.Blocks[i])
		}
	}
	return out
}

// Payload returns a zero-copy slice covering the block payload.
// The caller must not retain this slice after File.Close().
func (f *File) Payload(b *Block) []byte {
	if f == nil || b == nil || f.Data == nil {
		return nil
	}
	end := b.Offset + int64(b.Size)
	if b.Offset < 0 || end > int64(len(f.Data)) {
		return nil
	}
	return f.Data[b.Offset:end]
}

// ASCII returns the payload of an ASCII block.
func (f *File) ASCII(b *Block) (string, error) {
	if b.Type.Content() != TypeASCII {
		return "", fmt.Errorf("gdf: block %q is %s, not ascii", b.Name, b.Type)
	}
	return string(f.Payload(b)), nil
}

// Doubles decodes the payload of a double block (single value or array).
func (f *File) Doubles(b *Block) ([]float64, error) {
	if b.Type.Content() != TypeDouble {
		return nil, fmt.Errorf("gdf: block %q is %s, not double", b.Name, b.Type)
	}
	p := f.Payload(b)
	out := make([]float64, len(p)/doubleSize)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(p[i*doubleSize:]))
	}
	return out, nil
}
