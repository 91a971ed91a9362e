// Package gdf implements the General Datafile Format written for the GPT
// particle tracker.
//
// A GDF document is a fixed root record followed by a flat sequence of
// tagged blocks. Every block carries a 16 byte ASCII name, a 32 bit type tag
// and a 32 bit payload length. All integers and doubles are little-endian.
package gdf

import "time"

// GDF global constants must never change.
const (
	// Magic is the identifier stored in the first four bytes of every document.
	Magic int32 = 94325877

	// NameLen is the fixed width of every block name and root string field.
	NameLen = 16

	// Sentinel occupies the two reserved bytes that end the root record.
	// Existing consumers expect the ASCII digits, not NUL bytes.
	Sentinel = "00"

	// RootSize is the encoded size of the root record including the sentinel.
	RootSize = 4 + 4 + NameLen + NameLen + 6 + len(Sentinel)

	blockHeaderSize = NameLen + 4 + 4
	doubleSize      = 8
)

// BlockType is the bitwise OR of a structural tag and a content tag.
type BlockType uint32

// Structural tags.
const (
	TypeDirectory    BlockType = 0x0100
	TypeEndDirectory BlockType = 0x0200
	TypeSingleValue  BlockType = 0x0400
	TypeArray        BlockType = 0x0800
)

// Content tags.
const (
	TypeASCII  BlockType = 0x0001
	TypeLong   BlockType = 0x0002
	TypeDouble BlockType = 0x0003
	TypeNoData BlockType = 0x0010
)

const (
	structureMask BlockType = 0xff00
	contentMask   BlockType = 0x00ff
)

// Structure returns the structural part of the tag.
func (t BlockType) Structure() BlockType { return t & structureMask }

// Content returns the content part of the tag.
func (t BlockType) Content() BlockType { return t & contentMask }

func (t BlockType) String() string {
	var s string
	switch t.Structure() {
	case TypeDirectory:
		s = "dir"
	case TypeEndDirectory:
		s = "edir"
	case TypeSingleValue:
		s = "single"
	case TypeArray:
		s = "array"
	default:
		s = "unknown"
	}
	switch t.Content() {
	case TypeASCII:
		return s + "/ascii"
	case TypeLong:
		return s + "/long"
	case TypeDouble:
		return s + "/double"
	case TypeNoData:
		return s + "/nodata"
	default:
		return s + "/unknown"
	}
}

// Version is a (major, minor) pair as stored in the root record.
type Version struct {
	Major uint8
	Minor uint8
}

// RootRecord is the fixed header written once at the start of a document.
type RootRecord struct {
	Created            time.Time
	Creator            string
	Destination        string
	FormatVersion      Version
	ProducerVersion    Version
	DestinationVersion Version
}
