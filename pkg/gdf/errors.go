package gdf

import "errors"

var (
	ErrInvalidMagic  = errors.New("invalid GDF magic")
	ErrCorruptFile   = errors.New("corrupt GDF file")
	ErrNotASCII      = errors.New("value is not ASCII")
	ErrWriterClosed  = errors.New("gdf: writer closed")
	ErrOutOfOrder    = errors.New("gdf: root record must precede blocks")
	ErrBlockOpen     = errors.New("gdf: array block in progress")
	ErrPayloadLength = errors.New("gdf: array payload length mismatch")
	ErrRange         = errors.New("gdf: value does not fit its field")
)
