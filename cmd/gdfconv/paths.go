package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/gdfconv/internal/convert"
)

const envGDFConvOutDir = "GDFCONV_OUT_DIR"

// resolveOutput picks the output path: the explicit flag, then
// $GDFCONV_OUT_DIR/<input base>.gdf, then the input path with its extension
// replaced. Nothing is created on disk.
func resolveOutput(in, outFlag string) (string, error) {
	out := strings.TrimSpace(outFlag)
	switch {
	case out != "":
		out = filepath.Clean(out)
	case strings.TrimSpace(os.Getenv(envGDFConvOutDir)) != "":
		base := filepath.Base(convert.DefaultOutput(filepath.Clean(in)))
		if base == "" || base == "." || base == ".gdf" || base == string(filepath.Separator) {
			return "", fmt.Errorf("invalid input path: %q", in)
		}
		out = filepath.Join(strings.TrimSpace(os.Getenv(envGDFConvOutDir)), base)
	default:
		out = convert.DefaultOutput(in)
	}
	return out, nil
}
