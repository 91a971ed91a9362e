package h5source

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/gdfconv/internal/source"
)

// component is one record component: either a dataset or an openPMD
// constant record component (value and shape attributes on a group).
type component struct {
	ds       dataset
	constant bool
	value    float64
	n        int
	unitSI   float64
}

func (c *component) len() int {
	if c.constant {
		return c.n
	}
	return c.ds.Len()
}

type record struct {
	// axes is nil for records stored directly as one component.
	axes  map[string]*component
	whole *component
}

// particlePatches holds openPMD patch bookkeeping, not particle records.
const particlePatches = "particlePatches"

type compKey struct{ record, axis string }

type cached struct {
	data []float64
	done bool
}

// species implements source.Species over one particle group. Dataset
// contents are decoded on first read and kept until a read reaches the end
// of the component and Flush is called.
type species struct {
	name    string
	g       group
	records map[string]*record
	cache   map[compKey]*cached
}

var _ source.Species = (*species)(nil)

func newSpecies(name string, g group) (*species, error) {
	members, err := g.Members()
	if err != nil {
		return nil, err
	}
	s := &species{
		name:    name,
		g:       g,
		records: make(map[string]*record, len(members)),
		cache:   make(map[compKey]*cached),
	}
	for _, m := range members {
		if m == particlePatches {
			continue
		}
		r, err := openRecord(g, m)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", m, err)
		}
		s.records[m] = r
	}
	return s, nil
}

func openRecord(parent group, name string) (*record, error) {
	g, ds, err := openAny(parent, name)
	if err != nil {
		return nil, err
	}
	if ds != nil {
		c, err := datasetComponent(ds, 1)
		if err != nil {
			return nil, err
		}
		return &record{whole: c}, nil
	}

	recordUnit, err := attrFloat(g, "unitSI", 1)
	if err != nil {
		return nil, err
	}
	if _, ok, err := g.Attr("value"); err != nil {
		return nil, err
	} else if ok {
		c, err := constantComponent(g, recordUnit)
		if err != nil {
			return nil, err
		}
		return &record{whole: c}, nil
	}

	members, err := g.Members()
	if err != nil {
		return nil, err
	}
	r := &record{axes: make(map[string]*component, len(members))}
	for _, axis := range members {
		cg, cds, err := openAny(g, axis)
		if err != nil {
			return nil, err
		}
		var c *component
		if cds != nil {
			c, err = datasetComponent(cds, recordUnit)
		} else {
			c, err = constantComponent(cg, recordUnit)
		}
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", axis, err)
		}
		r.axes[axis] = c
	}
	return r, nil
}

func datasetComponent(ds dataset, defUnit float64) (*component, error) {
	unit, err := attrFloat(ds, "unitSI", defUnit)
	if err != nil {
		return nil, err
	}
	return &component{ds: ds, unitSI: unit}, nil
}

func constantComponent(g group, defUnit float64) (*component, error) {
	if _, ok, err := g.Attr("value"); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: group is neither a record component nor a constant", source.ErrMalformed)
	}
	value, err := attrFloat(g, "value", 0)
	if err != nil {
		return nil, err
	}
	n, err := attrShape(g)
	if err != nil {
		return nil, err
	}
	unit, err := attrFloat(g, "unitSI", defUnit)
	if err != nil {
		return nil, err
	}
	return &component{constant: true, value: value, n: n, unitSI: unit}, nil
}

func (s *species) Name() string { return s.name }

func (s *species) Has(name string) bool {
	_, ok := s.records[name]
	return ok
}

func (s *species) Components(name string) ([]string, error) {
	r, ok := s.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", source.ErrNoRecord, s.name, name)
	}
	if r.axes == nil {
		return []string{source.Scalar}, nil
	}
	axes := make([]string, 0, len(r.axes))
	for a := range r.axes {
		axes = append(axes, a)
	}
	slices.Sort(axes)
	return axes, nil
}

func (s *species) component(name, axis string) (*component, error) {
	r, ok := s.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", source.ErrNoRecord, s.name, name)
	}
	if r.axes == nil {
		if axis != source.Scalar {
			return nil, fmt.Errorf("%w: %s/%s/%s", source.ErrNoComponent, s.name, name, axis)
		}
		return r.whole, nil
	}
	c, ok := r.axes[axis]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s/%s", source.ErrNoComponent, s.name, name, axis)
	}
	return c, nil
}

func (s *species) Len(name, axis string) (int, error) {
	c, err := s.component(name, axis)
	if err != nil {
		return 0, err
	}
	return c.len(), nil
}

func (s *species) UnitSI(name, axis string) (float64, error) {
	c, err := s.component(name, axis)
	if err != nil {
		return 0, err
	}
	return c.unitSI, nil
}

func (s *species) ReadRange(name, axis string, start, end int, dst []float64) ([]float64, error) {
	c, err := s.component(name, axis)
	if err != nil {
		return nil, err
	}
	n := c.len()
	if start < 0 || end < start || end > n {
		return nil, fmt.Errorf("%w: %s/%s/%s [%d, %d) of %d", source.ErrRange, s.name, name, axis, start, end, n)
	}
	dst = dst[:0]
	if c.constant {
		for i := start; i < end; i++ {
			dst = append(dst, c.value)
		}
		return dst, nil
	}

	key := compKey{name, axis}
	e, ok := s.cache[key]
	if !ok {
		data, err := c.ds.ReadAll()
		if err != nil {
			return nil, err
		}
		if len(data) != n {
			return nil, fmt.Errorf("%w: %s/%s/%s decoded %d of %d elements", source.ErrRange, s.name, name, axis, len(data), n)
		}
		e = &cached{data: data}
		s.cache[key] = e
	}
	if end == n {
		e.done = true
	}
	return append(dst, e.data[start:end]...), nil
}

// Constant returns the value of a scalar record. Constant components report
// their stored value; dataset components report their first element.
func (s *species) Constant(name string) (float64, float64, bool, error) {
	c, err := s.component(name, source.Scalar)
	if errors.Is(err, source.ErrNoRecord) || errors.Is(err, source.ErrNoComponent) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	if c.constant {
		return c.value, c.unitSI, true, nil
	}
	if c.ds.Len() == 0 {
		return 0, 0, false, nil
	}
	vals, err := s.ReadRange(name, source.Scalar, 0, 1, nil)
	if err != nil {
		return 0, 0, false, err
	}
	delete(s.cache, compKey{name, source.Scalar})
	return vals[0], c.unitSI, true, nil
}

func (s *species) Attribute(name string) (float64, bool, error) {
	_, ok, err := s.g.Attr(name)
	if err != nil || !ok {
		return 0, false, err
	}
	v, err := attrFloat(s.g, name, 0)
	return v, true, err
}

func (s *species) Flush() error {
	for k, e := range s.cache {
		if e.done {
			delete(s.cache, k)
		}
	}
	return nil
}

// held reports the number of components currently decoded in memory.
func (s *species) held() int { return len(s.cache) }
