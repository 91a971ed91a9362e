package convert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samcharles93/gdfconv/internal/source"
	"github.com/samcharles93/gdfconv/pkg/gdf"
)

// DateLayout is the openPMD form of the root "date" attribute.
const DateLayout = "2006-01-02 15:04:05 -0700"

// defaultName replaces absent creator and destination names.
const defaultName = "empty"

// RootRecord builds the GDF root record from the source's root attributes.
// Absent attributes fall back to defaults; present but unparseable ones fail
// with ErrMalformedAttribute. A non-empty destination overrides the source's.
func RootRecord(src source.Source, destination string) (gdf.RootRecord, error) {
	var r gdf.RootRecord

	date, ok, err := src.RootAttribute(source.AttrDate)
	if err != nil {
		return r, err
	}
	if ok {
		r.Created, err = time.Parse(DateLayout, strings.TrimSpace(date))
		if err != nil {
			return r, fmt.Errorf("%w: %s %q: %w", ErrMalformedAttribute, source.AttrDate, date, err)
		}
	}

	if r.Creator, err = nameAttr(src, source.AttrSoftware); err != nil {
		return r, err
	}
	if destination != "" {
		r.Destination = destination
	} else if r.Destination, err = nameAttr(src, source.AttrDestination); err != nil {
		return r, err
	}

	if r.FormatVersion, err = versionAttr(src, source.AttrGDFVersion); err != nil {
		return r, err
	}
	if r.ProducerVersion, err = versionAttr(src, source.AttrSoftwareVersion); err != nil {
		return r, err
	}
	if r.DestinationVersion, err = versionAttr(src, source.AttrDestinationVersion); err != nil {
		return r, err
	}
	return r, nil
}

func nameAttr(src source.Source, name string) (string, error) {
	v, ok, err := src.RootAttribute(name)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return defaultName, nil
	}
	return v, nil
}

func versionAttr(src source.Source, name string) (gdf.Version, error) {
	v, ok, err := src.RootAttribute(name)
	if err != nil || !ok || strings.TrimSpace(v) == "" {
		return gdf.Version{}, err
	}
	ver, err := ParseVersion(v)
	if err != nil {
		return gdf.Version{}, fmt.Errorf("%w: %s: %w", ErrMalformedAttribute, name, err)
	}
	return ver, nil
}

// ParseVersion parses "major" or "major.minor[.more]" into a GDF version pair.
// Components past the minor version are ignored.
func ParseVersion(s string) (gdf.Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	major, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return gdf.Version{}, fmt.Errorf("version %q: major: %w", s, err)
	}
	var minor uint64
	if len(parts) > 1 {
		minor, err = strconv.ParseUint(parts[1], 10, 8)
		if err != nil {
			return gdf.Version{}, fmt.Errorf("version %q: minor: %w", s, err)
		}
	}
	return gdf.Version{Major: uint8(major), Minor: uint8(minor)}, nil
}
