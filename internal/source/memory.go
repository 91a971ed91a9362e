package source

import (
	"fmt"
	"sort"

	"github.com/samcharles93/gdfconv/internal/units"
)

// Memory is a Source held entirely in memory.
type Memory struct {
	Attrs map[string]string
	Iters []*MemoryIteration
}

// MemoryIteration is an in-memory Iteration.
type MemoryIteration struct {
	Idx      uint64
	T        float64
	HasTime  bool
	Mesh     *units.Grid
	Particle []*MemorySpecies
}

// MemorySpecies is an in-memory Species. Records maps a record name to its
// components keyed by axis (Scalar for records without axes).
type MemorySpecies struct {
	SpeciesName string
	Records     map[string]map[string]*MemoryComponent
	Attrs       map[string]float64

	// Flushes counts calls to Flush.
	Flushes int
	// Reads records every ReadRange call as [start, end).
	Reads [][2]int
}

// MemoryComponent holds either explicit data or a constant broadcast over Shape elements.
type MemoryComponent struct {
	Data     []float64
	Constant *float64
	Shape    int
	Unit     float64
}

// Const returns a constant component of n elements.
func Const(v float64, n int, unitSI float64) *MemoryComponent {
	return &MemoryComponent{Constant: &v, Shape: n, Unit: unitSI}
}

// Array returns a component backed by data.
func Array(data []float64, unitSI float64) *MemoryComponent {
	return &MemoryComponent{Data: data, Unit: unitSI}
}

func (c *MemoryComponent) len() int {
	if c.Constant != nil {
		return c.Shape
	}
	return len(c.Data)
}

func (m *Memory) RootAttribute(name string) (string, bool, error) {
	v, ok := m.Attrs[name]
	return v, ok, nil
}

func (m *Memory) Iterations() ([]Iteration, error) {
	out := make([]Iteration, len(m.Iters))
	for i, it := range m.Iters {
		out[i] = it
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func (it *MemoryIteration) Index() uint64 { return it.Idx }

func (it *MemoryIteration) Time() (float64, bool) { return it.T, it.HasTime }

func (it *MemoryIteration) Grid() (units.Grid, bool, error) {
	if it.Mesh == nil {
		return units.Grid{}, false, nil
	}
	return *it.Mesh, true, nil
}

func (it *MemoryIteration) Species() ([]Species, error) {
	out := make([]Species, len(it.Particle))
	for i, s := range it.Particle {
		out[i] = s
	}
	return out, nil
}

func (s *MemorySpecies) Name() string { return s.SpeciesName }

func (s *MemorySpecies) Has(record string) bool {
	_, ok := s.Records[record]
	return ok
}

func (s *MemorySpecies) Components(record string) ([]string, error) {
	comps, ok := s.Records[record]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoRecord, s.SpeciesName, record)
	}
	axes := make([]string, 0, len(comps))
	for axis := range comps {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	return axes, nil
}

func (s *MemorySpecies) component(record, axis string) (*MemoryComponent, error) {
	comps, ok := s.Records[record]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoRecord, s.SpeciesName, record)
	}
	c, ok := comps[axis]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s/%s", ErrNoComponent, s.SpeciesName, record, axis)
	}
	return c, nil
}

func (s *MemorySpecies) Len(record, axis string) (int, error) {
	c, err := s.component(record, axis)
	if err != nil {
		return 0, err
	}
	return c.len(), nil
}

func (s *MemorySpecies) ReadRange(record, axis string, start, end int, dst []float64) ([]float64, error) {
	c, err := s.component(record, axis)
	if err != nil {
		return nil, err
	}
	if start < 0 || end < start || end > c.len() {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrRange, start, end, c.len())
	}
	s.Reads = append(s.Reads, [2]int{start, end})
	dst = dst[:0]
	if c.Constant != nil {
		for i := start; i < end; i++ {
			dst = append(dst, *c.Constant)
		}
		return dst, nil
	}
	return append(dst, c.Data[start:end]...), nil
}

func (s *MemorySpecies) UnitSI(record, axis string) (float64, error) {
	c, err := s.component(record, axis)
	if err != nil {
		return 0, err
	}
	return c.Unit, nil
}

func (s *MemorySpecies) Constant(record string) (float64, float64, bool, error) {
	c, err := s.component(record, Scalar)
	if err != nil {
		return 0, 0, false, nil
	}
	if c.Constant != nil {
		return *c.Constant, c.Unit, true, nil
	}
	if len(c.Data) == 0 {
		return 0, 0, false, nil
	}
	return c.Data[0], c.Unit, true, nil
}

func (s *MemorySpecies) Attribute(name string) (float64, bool, error) {
	v, ok := s.Attrs[name]
	return v, ok, nil
}

func (s *MemorySpecies) Flush() error {
	s.Flushes++
	return nil
}
