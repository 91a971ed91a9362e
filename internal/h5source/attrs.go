package h5source

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/samcharles93/gdfconv/internal/source"
)

func attrString(h attrHolder, name string) (string, bool, error) {
	v, ok, err := h.Attr(name)
	if err != nil || !ok {
		return "", ok, err
	}
	switch x := v.(type) {
	case string:
		return strings.TrimRight(x, "\x00"), true, nil
	case []string:
		return strings.TrimRight(strings.Join(x, ""), "\x00"), true, nil
	case []byte:
		return strings.TrimRight(string(x), "\x00"), true, nil
	}
	f, ok := toFloats(v)
	if !ok || len(f) != 1 {
		return "", true, fmt.Errorf("%w: %s has type %T", source.ErrMalformed, name, v)
	}
	return strconv.FormatFloat(f[0], 'g', -1, 64), true, nil
}

func attrFloat(h attrHolder, name string, def float64) (float64, error) {
	v, ok, err := h.Attr(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	f, ok := toFloats(v)
	if !ok || len(f) != 1 {
		return 0, fmt.Errorf("%w: %s is %v, want a number", source.ErrMalformed, name, v)
	}
	return f[0], nil
}

func attrFloats(h attrHolder, name string) ([]float64, bool, error) {
	v, ok, err := h.Attr(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	f, ok := toFloats(v)
	if !ok {
		return nil, true, fmt.Errorf("%w: %s is %v, want numbers", source.ErrMalformed, name, v)
	}
	return f, true, nil
}

// attrShape returns the element count described by an openPMD shape attribute.
func attrShape(h attrHolder) (int, error) {
	dims, ok, err := attrFloats(h, "shape")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: constant component without shape", source.ErrMalformed)
	}
	n := 1
	for _, d := range dims {
		if d < 0 || d != float64(int(d)) {
			return 0, fmt.Errorf("%w: shape %v", source.ErrMalformed, dims)
		}
		n *= int(d)
	}
	return n, nil
}

func toFloats(v any) ([]float64, bool) {
	switch x := v.(type) {
	case float64:
		return []float64{x}, true
	case int64:
		return []float64{float64(x)}, true
	case uint64:
		return []float64{float64(x)}, true
	case []float64:
		return x, true
	case []int64:
		out := make([]float64, len(x))
		for i, n := range x {
			out[i] = float64(n)
		}
		return out, true
	case []uint64:
		out := make([]float64, len(x))
		for i, n := range x {
			out[i] = float64(n)
		}
		return out, true
	}
	return nil, false
}

// wordOnly drops every character outside [A-Za-z0-9_].
func wordOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return r
		}
		return -1
	}, s)
}
