// Package units converts raw stored particle quantities into SI values.
//
// Every transform is an immutable value holding the scale factors it was
// built from; none of them touch shared state.
package units

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrGrid is returned when a grid cannot yield a macro-particle radius.
var ErrGrid = errors.New("units: invalid grid spacing")

// Transform maps one raw value to its physical value.
type Transform interface {
	Apply(raw float64) float64
}

// PairTransform maps an index-aligned (value, offset) pair to its physical value.
type PairTransform interface {
	Apply(raw, offset float64) float64
}

// Linear scales a raw value by its unitSI factor.
type Linear struct {
	UnitSI float64
}

// Momentum returns the transform for a momentum component.
func Momentum(unitSI float64) Linear { return Linear{UnitSI: unitSI} }

func (l Linear) Apply(raw float64) float64 { return raw * l.UnitSI }

// Position adds the scaled positionOffset to the scaled in-cell position.
type Position struct {
	UnitPosition float64
	UnitOffset   float64
}

// NewPosition returns the transform for a position component.
func NewPosition(unitPosition, unitOffset float64) Position {
	return Position{UnitPosition: unitPosition, UnitOffset: unitOffset}
}

func (p Position) Apply(raw, offset float64) float64 {
	return raw*p.UnitPosition + offset*p.UnitOffset
}

// Scalar returns a stored per-species constant in SI units.
func Scalar(value, unitSI float64) float64 { return value * unitSI }

// Grid is the cell spacing used to size macro particles.
type Grid struct {
	Spacing []float64
	UnitSI  float64
}

// DefaultGrid is used when the source has no meshes and no override is given.
func DefaultGrid() Grid {
	return Grid{Spacing: []float64{1}, UnitSI: 1}
}

// Override returns a grid whose every axis has the given SI cell size.
func (g Grid) Override(cellSI float64) Grid {
	n := max(len(g.Spacing), 1)
	spacing := make([]float64, n)
	for i := range spacing {
		spacing[i] = cellSI
	}
	return Grid{Spacing: spacing, UnitSI: 1}
}

// MacroRadius returns half the smallest SI cell extent scaled by the
// species particle shape order.
func MacroRadius(g Grid, shape float64) (float64, error) {
	if len(g.Spacing) == 0 {
		return 0, fmt.Errorf("%w: no axes", ErrGrid)
	}
	scaled := make([]float64, len(g.Spacing))
	floats.ScaleTo(scaled, g.UnitSI*shape, g.Spacing)
	r := floats.Min(scaled) / 2
	if !(r > 0) || math.IsInf(r, 0) {
		return 0, fmt.Errorf("%w: spacing %v unitSI %g shape %g", ErrGrid, g.Spacing, g.UnitSI, shape)
	}
	return r, nil
}
