// Package source defines the read side of a conversion: iterations, particle
// species and their records, as exposed by an openPMD-like container.
package source

import (
	"errors"

	"github.com/samcharles93/gdfconv/internal/units"
)

// Record names understood by the converter.
const (
	RecordPosition       = "position"
	RecordPositionOffset = "positionOffset"
	RecordMomentum       = "momentum"
	RecordMass           = "mass"
	RecordCharge         = "charge"
	RecordWeighting      = "weighting"
	RecordID             = "id"
)

// Scalar is the component name of a record that has no axes.
const Scalar = ""

// Root attribute names.
const (
	AttrDate               = "date"
	AttrSoftware           = "software"
	AttrDestination        = "destination"
	AttrGDFVersion         = "gdf_version"
	AttrSoftwareVersion    = "softwareVersion"
	AttrDestinationVersion = "destination_version"
)

// AttrParticleShape is the species attribute holding the shape order.
const AttrParticleShape = "particleShape"

var (
	ErrNoRecord    = errors.New("source: record not found")
	ErrNoComponent = errors.New("source: record component not found")
	ErrRange       = errors.New("source: read range out of bounds")

	// ErrMalformed marks an attribute that is present but cannot be interpreted.
	ErrMalformed = errors.New("malformed attribute")
)

// Source is an opened container.
type Source interface {
	// RootAttribute returns a root attribute rendered as a string.
	RootAttribute(name string) (string, bool, error)
	// Iterations returns the snapshots in file order.
	Iterations() ([]Iteration, error)
	Close() error
}

// Iteration is one snapshot of the simulation.
type Iteration interface {
	Index() uint64
	// Time returns the iteration time in seconds. ok is false for sources
	// that have a single implicit iteration.
	Time() (t float64, ok bool)
	// Grid returns the mesh cell spacing. ok is false when there are no meshes.
	Grid() (g units.Grid, ok bool, err error)
	Species() ([]Species, error)
}

// Species is a named group of particles sharing the same records.
type Species interface {
	Name() string
	Has(record string) bool
	// Components returns the axis names of a record in natural order.
	// Records without axes have the single component Scalar.
	Components(record string) ([]string, error)
	Len(record, axis string) (int, error)
	// ReadRange appends the raw values of [start, end) to dst[:0].
	// Constant components are broadcast.
	ReadRange(record, axis string, start, end int, dst []float64) ([]float64, error)
	UnitSI(record, axis string) (float64, error)
	// Constant returns the stored value and unitSI of a uniform record.
	Constant(record string) (value, unitSI float64, ok bool, err error)
	Attribute(name string) (float64, bool, error)
	// Flush releases buffers held for reads that have completed.
	Flush() error
}
