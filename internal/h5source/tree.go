package h5source

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/robert-malhotra/go-hdf5/hdf5"
)

var (
	errNotFound   = errors.New("h5source: object not found")
	errNotGroup   = errors.New("h5source: object is not a group")
	errNotDataset = errors.New("h5source: object is not a dataset")
)

type attrHolder interface {
	// Attr returns the decoded attribute value: string, []string, int64,
	// []int64, uint64, []uint64, float64 or []float64.
	Attr(name string) (any, bool, error)
}

// group is the part of an HDF5 group the adapter navigates.
type group interface {
	attrHolder
	Members() ([]string, error)
	Group(name string) (group, error)
	Dataset(name string) (dataset, error)
}

// dataset is a one-dimensional numeric dataset.
type dataset interface {
	attrHolder
	Len() int
	ReadAll() ([]float64, error)
}

type h5Group struct{ g *hdf5.Group }

func (g h5Group) Members() ([]string, error) {
	return g.g.Members()
}

func (g h5Group) Group(name string) (group, error) {
	if err := g.exists(name); err != nil {
		return nil, err
	}
	sub, err := g.g.OpenGroup(name)
	if err != nil {
		return nil, mapErr(g.g.Path(), name, err)
	}
	return h5Group{sub}, nil
}

func (g h5Group) Dataset(name string) (dataset, error) {
	if err := g.exists(name); err != nil {
		return nil, err
	}
	ds, err := g.g.OpenDataset(name)
	if err != nil {
		return nil, mapErr(g.g.Path(), name, err)
	}
	return h5Dataset{ds}, nil
}

func (g h5Group) Attr(name string) (any, bool, error) {
	return attrValue(g.g.Attr(name))
}

func (g h5Group) exists(name string) error {
	members, err := g.g.Members()
	if err != nil {
		return err
	}
	if !slices.Contains(members, name) {
		return fmt.Errorf("%w: %s/%s", errNotFound, strings.TrimSuffix(g.g.Path(), "/"), name)
	}
	return nil
}

type h5Dataset struct{ d *hdf5.Dataset }

func (d h5Dataset) Len() int { return int(d.d.NumElements()) }

func (d h5Dataset) ReadAll() ([]float64, error) {
	vals, err := d.d.ReadFloat64()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.d.Path(), err)
	}
	return vals, nil
}

func (d h5Dataset) Attr(name string) (any, bool, error) {
	return attrValue(d.d.Attr(name))
}

func attrValue(a *hdf5.Attribute) (any, bool, error) {
	if a == nil {
		return nil, false, nil
	}
	v, err := a.Value()
	if err != nil {
		return nil, true, fmt.Errorf("attribute %s: %w", a.Name(), err)
	}
	return v, true, nil
}

func mapErr(parent, name string, err error) error {
	p := strings.TrimSuffix(parent, "/") + "/" + name
	switch {
	case errors.Is(err, hdf5.ErrNotGroup):
		return fmt.Errorf("%w: %s", errNotGroup, p)
	case errors.Is(err, hdf5.ErrNotDataset):
		return fmt.Errorf("%w: %s", errNotDataset, p)
	case errors.Is(err, hdf5.ErrNotFound):
		return fmt.Errorf("%w: %s", errNotFound, p)
	}
	return fmt.Errorf("open %s: %w", p, err)
}

// openPath follows a slash separated path of groups from g.
func openPath(g group, path string) (group, error) {
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		next, err := g.Group(part)
		if err != nil {
			return nil, err
		}
		g = next
	}
	return g, nil
}

// findGroup returns the first group named name in a depth-first walk of g,
// visiting members in sorted order.
func findGroup(g group, name string, depth int) (group, bool, error) {
	if depth < 0 {
		return nil, false, nil
	}
	members, err := g.Members()
	if err != nil {
		return nil, false, err
	}
	slices.Sort(members)
	var subs []group
	for _, m := range members {
		sub, err := g.Group(m)
		if errors.Is(err, errNotGroup) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if m == name {
			return sub, true, nil
		}
		subs = append(subs, sub)
	}
	for _, sub := range subs {
		if found, ok, err := findGroup(sub, name, depth-1); ok || err != nil {
			return found, ok, err
		}
	}
	return nil, false, nil
}

// openAny opens name as a group, or as a dataset when it is not a group.
func openAny(g group, name string) (group, dataset, error) {
	sub, err := g.Group(name)
	if err == nil {
		return sub, nil, nil
	}
	if !errors.Is(err, errNotGroup) {
		return nil, nil, err
	}
	ds, err := g.Dataset(name)
	if err != nil {
		return nil, nil, err
	}
	return nil, ds, nil
}
