package gdf

import "fmt"

// EncodeName returns name as a fixed 16 byte field, NUL padded or truncated.
// Names must be pure ASCII.
func EncodeName(name string) ([NameLen]byte, error) {
	var out [NameLen]byte
	if err := checkASCII(name); err != nil {
		return out, err
	}
	copy(out[:], name)
	return out, nil
}

// DecodeName strips the NUL padding from a fixed width name field.
func DecodeName(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func checkASCII(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return fmt.Errorf("%w: %q (byte %d)", ErrNotASCII, s, i)
		}
	}
	return nil
}
