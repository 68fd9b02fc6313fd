package schema

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when a dataset type, resource name or sheet name
// is not declared by any loaded descriptor.
var ErrNotFound = errors.New("recombinant schema not found")

// Registry indexes the loaded descriptors. It is built once and only read
// afterwards, so it needs no locking.
type Registry struct {
	genos   []*Geno
	byType  map[string]*Geno
	byName  map[string]*Chromo
	bySheet map[string]*Chromo
}

// New builds a registry from already decoded genos.
// Dataset types, resource names and sheet names must be unique, and every
// primary key column must be a declared field.
func New(genos ...*Geno) (*Registry, error) {
	r := &Registry{
		byType:  make(map[string]*Geno),
		byName:  make(map[string]*Chromo),
		bySheet: make(map[string]*Chromo),
	}

	var errs []error
	for _, g := range genos {
		if g.DatasetType == "" {
			errs = append(errs, errors.New("descriptor without dataset_type"))
			continue
		}
		if _, dup := r.byType[g.DatasetType]; dup {
			errs = append(errs, fmt.Errorf("dataset type %q declared twice", g.DatasetType))
			continue
		}
		r.byType[g.DatasetType] = g
		r.genos = append(r.genos, g)

		for _, c := range g.Resources {
			c.DatasetType = g.DatasetType
			if c.ResourceName == "" {
				errs = append(errs, fmt.Errorf("%s: resource without resource_name", g.DatasetType))
				continue
			}
			if _, dup := r.byName[c.ResourceName]; dup {
				errs = append(errs, fmt.Errorf("resource %q declared twice", c.ResourceName))
				continue
			}
			if _, dup := r.bySheet[c.SheetName()]; dup {
				errs = append(errs, fmt.Errorf("sheet name %q declared twice", c.SheetName()))
				continue
			}
			r.byName[c.ResourceName] = c
			r.bySheet[c.SheetName()] = c

			seen := make(map[string]bool, len(c.Fields))
			for _, f := range c.Fields {
				if seen[f.DatastoreID] {
					errs = append(errs, fmt.Errorf("%s: field %q declared twice", c.ResourceName, f.DatastoreID))
				}
				seen[f.DatastoreID] = true
			}
			for _, id := range c.PrimaryKey {
				if !seen[id] {
					errs = append(errs, fmt.Errorf("%s: primary key %q is not a field", c.ResourceName, id))
				}
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Geno returns the descriptor of a dataset type.
func (r *Registry) Geno(datasetType string) (*Geno, error) {
	g, ok := r.byType[datasetType]
	if !ok {
		return nil, fmt.Errorf("%w: dataset type %q", ErrNotFound, datasetType)
	}
	return g, nil
}

// Chromo returns the descriptor of a resource.
func (r *Registry) Chromo(resourceName string) (*Chromo, error) {
	c, ok := r.byName[resourceName]
	if !ok {
		return nil, fmt.Errorf("%w: resource %q", ErrNotFound, resourceName)
	}
	return c, nil
}

// ChromoBySheet returns the descriptor whose template worksheet is sheetName.
func (r *Registry) ChromoBySheet(sheetName string) (*Chromo, error) {
	c, ok := r.bySheet[sheetName]
	if !ok {
		return nil, fmt.Errorf("%w: sheet %q", ErrNotFound, sheetName)
	}
	return c, nil
}

// Genos returns all descriptors in load order.
func (r *Registry) Genos() []*Geno {
	return append([]*Geno(nil), r.genos...)
}

// DatasetTypes lists dataset types in load order. When targets are given,
// only types whose target dataset is one of them are returned.
func (r *Registry) DatasetTypes(targets ...string) []string {
	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}
	var types []string
	for _, g := range r.genos {
		if len(want) == 0 || want[g.TargetDataset] {
			types = append(types, g.DatasetType)
		}
	}
	return types
}

// TargetDatasets returns the distinct target datasets, sorted.
func (r *Registry) TargetDatasets() []string {
	seen := make(map[string]bool)
	for _, g := range r.genos {
		if g.TargetDataset != "" {
			seen[g.TargetDataset] = true
		}
	}
	targets := make([]string, 0, len(seen))
	for t := range seen {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}
