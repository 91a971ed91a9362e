package units

import (
	"errors"
	"math"
	"testing"
)

func TestPositionTransform(t *testing.T) {
	t.Parallel()

	unitPos, unitOff := 1e-6, 1e-3
	p := NewPosition(unitPos, unitOff)
	tests := []struct {
		pos, off float64
	}{
		{1.0, 0.1},
		{2.0, 0.1},
		{3.0, 0.1},
		{0, 0},
	}
	for _, tc := range tests {
		want := tc.pos*unitPos + tc.off*unitOff
		got := p.Apply(tc.pos, tc.off)
		if math.Abs(got-want) > 1e-12*math.Abs(want) {
			t.Errorf("Apply(%v, %v): got %v want %v", tc.pos, tc.off, got, want)
		}
	}
	if got, want := p.Apply(3, 0.1), 0.000103; math.Abs(got-want) > 1e-15*want {
		t.Errorf("Apply(3, 0.1): got %v want %v", got, want)
	}
}

func TestMomentumTransform(t *testing.T) {
	t.Parallel()

	m := Momentum(5.344e-28)
	if got := m.Apply(2); got != 2*5.344e-28 {
		t.Fatalf("got %v want %v", got, 2*5.344e-28)
	}
}

func TestScalar(t *testing.T) {
	t.Parallel()

	if got := Scalar(-1, 1.602176634e-19); got != -1.602176634e-19 {
		t.Fatalf("got %v", got)
	}
}

func TestMacroRadius(t *testing.T) {
	t.Parallel()

	r, err := MacroRadius(Grid{Spacing: []float64{4, 2, 8}, UnitSI: 1e-6}, 1)
	if err != nil {
		t.Fatalf("MacroRadius: %v", err)
	}
	if want := 2e-6 / 2; math.Abs(r-want) > 1e-21 {
		t.Fatalf("got %v want %v", r, want)
	}

	r, err = MacroRadius(Grid{Spacing: []float64{4, 2, 8}, UnitSI: 1e-6}, 2)
	if err != nil {
		t.Fatalf("MacroRadius with shape: %v", err)
	}
	if want := 2e-6; math.Abs(r-want) > 1e-21 {
		t.Fatalf("shape 2: got %v want %v", r, want)
	}
}

func TestMacroRadiusDefaultAndOverride(t *testing.T) {
	t.Parallel()

	r, err := MacroRadius(DefaultGrid(), 1)
	if err != nil || r != 0.5 {
		t.Fatalf("default grid: got %v, %v", r, err)
	}

	g := Grid{Spacing: []float64{1, 1, 1}, UnitSI: 1e-6}.Override(3e-7)
	if len(g.Spacing) != 3 || g.UnitSI != 1 {
		t.Fatalf("override grid: %+v", g)
	}
	r, err = MacroRadius(g, 1)
	if err != nil || r != 1.5e-7 {
		t.Fatalf("override: got %v, %v", r, err)
	}
}

func TestMacroRadiusRejectsBadGrid(t *testing.T) {
	t.Parallel()

	for _, g := range []Grid{
		{},
		{Spacing: []float64{1, 0}, UnitSI: 1},
		{Spacing: []float64{1, 2}, UnitSI: -1},
	} {
		if _, err := MacroRadius(g, 1); !errors.Is(err, ErrGrid) {
			t.Errorf("grid %+v: got %v want ErrGrid", g, err)
		}
	}
}
