// Package h5source reads particle data from HDF5 files, either laid out per
// the openPMD standard or as a plain particles/<species>/<record> tree.
package h5source

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-hdf5/hdf5"
	"go.uber.org/multierr"

	"github.com/samcharles93/gdfconv/internal/source"
	"github.com/samcharles93/gdfconv/internal/units"
)

// Layout selects how the HDF5 tree is interpreted.
type Layout string

const (
	LayoutAuto    Layout = "auto"
	LayoutOpenPMD Layout = "openpmd"
	LayoutPlain   Layout = "plain"
)

// ParseLayout validates a layout name. The empty string means auto.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LayoutAuto, nil
	case LayoutAuto, LayoutOpenPMD, LayoutPlain:
		return l, nil
	}
	return "", fmt.Errorf("unknown layout %q (want auto, openpmd or plain)", s)
}

const (
	defaultBasePath      = "/data/%T/"
	defaultParticlesPath = "particles/"
	defaultMeshesPath    = "meshes/"
	iterationToken       = "%T"

	// depth searched for the particles group of a plain file
	plainSearchDepth = 4
)

// File is an opened HDF5 container. It implements source.Source.
type File struct {
	root   group
	layout Layout
	close  func() error
}

var _ source.Source = (*File)(nil)

// Open opens the HDF5 file at path.
func Open(path string, layout Layout) (*File, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := newFile(h5Group{f.Root()}, layout)
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	src.close = f.Close
	return src, nil
}

// Opener adapts Open to the func(path) form used by the converter.
func Opener(layout Layout) func(string) (source.Source, error) {
	return func(path string) (source.Source, error) {
		return Open(path, layout)
	}
}

func newFile(root group, layout Layout) (*File, error) {
	if layout == LayoutAuto || layout == "" {
		_, ok, err := root.Attr("openPMD")
		if err != nil {
			return nil, err
		}
		layout = LayoutPlain
		if ok {
			layout = LayoutOpenPMD
		}
	}
	if layout != LayoutOpenPMD && layout != LayoutPlain {
		return nil, fmt.Errorf("unknown layout %q", layout)
	}
	return &File{root: root, layout: layout}, nil
}

// Layout reports the layout in use after auto detection.
func (f *File) Layout() Layout { return f.layout }

func (f *File) Close() error {
	if f.close == nil {
		return nil
	}
	c := f.close
	f.close = nil
	return c()
}

// RootAttribute renders a root attribute as a string. Numeric attributes are
// formatted in their shortest form.
func (f *File) RootAttribute(name string) (string, bool, error) {
	return attrString(f.root, name)
}

func (f *File) Iterations() ([]source.Iteration, error) {
	if f.layout == LayoutPlain {
		return f.plainIterations()
	}
	return f.openPMDIterations()
}

func (f *File) pathAttr(name, def string) (string, error) {
	s, ok, err := attrString(f.root, name)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return def, nil
	}
	return s, nil
}

func (f *File) openPMDIterations() ([]source.Iteration, error) {
	base, err := f.pathAttr("basePath", defaultBasePath)
	if err != nil {
		return nil, err
	}
	particles, err := f.pathAttr("particlesPath", defaultParticlesPath)
	if err != nil {
		return nil, err
	}
	meshes, err := f.pathAttr("meshesPath", defaultMeshesPath)
	if err != nil {
		return nil, err
	}

	prefix, _, templated := strings.Cut(base, iterationToken)
	if !templated {
		g, err := openPath(f.root, base)
		if err != nil {
			return nil, err
		}
		it, err := newIteration(0, g, particles, meshes)
		if err != nil {
			return nil, err
		}
		return []source.Iteration{it}, nil
	}

	parent, err := openPath(f.root, prefix)
	if err != nil {
		return nil, err
	}
	members, err := parent.Members()
	if err != nil {
		return nil, err
	}
	type indexed struct {
		idx  uint64
		name string
	}
	var steps []indexed
	for _, m := range members {
		idx, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		steps = append(steps, indexed{idx, m})
	}
	slices.SortFunc(steps, func(a, b indexed) int {
		switch {
		case a.idx < b.idx:
			return -1
		case a.idx > b.idx:
			return 1
		}
		return 0
	})

	iters := make([]source.Iteration, 0, len(steps))
	for _, s := range steps {
		g, err := parent.Group(s.name)
		if err != nil {
			return nil, err
		}
		it, err := newIteration(s.idx, g, particles, meshes)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", s.idx, err)
		}
		iters = append(iters, it)
	}
	return iters, nil
}

func (f *File) plainIterations() ([]source.Iteration, error) {
	name := defaultParticlesPath
	if s, ok, err := attrString(f.root, "particlesPath"); err != nil {
		return nil, err
	} else if ok {
		name = s
	}
	name = wordOnly(name)
	if name == "" {
		name = wordOnly(defaultParticlesPath)
	}

	g, ok, err := findGroup(f.root, name, plainSearchDepth)
	if err != nil {
		return nil, err
	}
	it := &iteration{}
	if ok {
		it.particles = g
	}
	return []source.Iteration{it}, nil
}

type iteration struct {
	idx       uint64
	t         float64
	hasTime   bool
	particles group
	meshes    group
}

func newIteration(idx uint64, g group, particlesPath, meshesPath string) (*iteration, error) {
	it := &iteration{idx: idx}
	t, ok, err := attrFloats(g, "time")
	if err != nil {
		return nil, err
	}
	if ok {
		if len(t) != 1 {
			return nil, fmt.Errorf("%w: time %v", source.ErrMalformed, t)
		}
		unit, err := attrFloat(g, "timeUnitSI", 1)
		if err != nil {
			return nil, err
		}
		it.t, it.hasTime = t[0]*unit, true
	}

	if it.particles, err = optionalGroup(g, particlesPath); err != nil {
		return nil, err
	}
	if it.meshes, err = optionalGroup(g, meshesPath); err != nil {
		return nil, err
	}
	return it, nil
}

func optionalGroup(g group, path string) (group, error) {
	sub, err := openPath(g, path)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	return sub, err
}

func (it *iteration) Index() uint64 { return it.idx }

func (it *iteration) Time() (float64, bool) { return it.t, it.hasTime }

// Grid reads the cell spacing of the first mesh in name order.
func (it *iteration) Grid() (units.Grid, bool, error) {
	if it.meshes == nil {
		return units.Grid{}, false, nil
	}
	names, err := it.meshes.Members()
	if err != nil {
		return units.Grid{}, false, err
	}
	if len(names) == 0 {
		return units.Grid{}, false, nil
	}
	slices.Sort(names)

	g, ds, err := openAny(it.meshes, names[0])
	if err != nil {
		return units.Grid{}, false, err
	}
	var h attrHolder = g
	if g == nil {
		h = ds
	}
	spacing, ok, err := attrFloats(h, "gridSpacing")
	if err != nil {
		return units.Grid{}, false, err
	}
	if !ok {
		return units.Grid{}, false, fmt.Errorf("%w: mesh %s has no gridSpacing", source.ErrMalformed, names[0])
	}
	unit, err := attrFloat(h, "gridUnitSI", 1)
	if err != nil {
		return units.Grid{}, false, err
	}
	return units.Grid{Spacing: spacing, UnitSI: unit}, true, nil
}

// Species returns the particle species in name order.
func (it *iteration) Species() ([]source.Species, error) {
	if it.particles == nil {
		return nil, nil
	}
	names, err := it.particles.Members()
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	out := make([]source.Species, 0, len(names))
	for _, name := range names {
		g, err := it.particles.Group(name)
		if errors.Is(err, errNotGroup) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sp, err := newSpecies(name, g)
		if err != nil {
			return nil, fmt.Errorf("species %q: %w", name, err)
		}
		out = append(out, sp)
	}
	return out, nil
}
