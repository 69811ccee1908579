// Package template implements the TemplateStore (spec.md C3): a filtered,
// iterable view over an on-disk library of reference spectra already
// projected onto the canonical log grid.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	hdf5 "github.com/sbinet/go-hdf5"

	"github.com/cwbudde/snid-go/internal/grid"
	"github.com/cwbudde/snid-go/internal/snidtypes"
)

// Store is an opened, indexed template library. The core never writes
// templates; authoring lives outside this package entirely.
type Store struct {
	path      string
	templates []*snidtypes.Template
}

// Open loads every HDF5 file directly under dir, reading one group per
// template (matching spec.md §6's "collection of HDF5 files, each with
// grouped datasets per template"), reading every template's flat/flux
// arrays into buffers of g's NW samples. Failure modes: TemplatesNotFound if
// dir has no .h5/.hdf5 files, CorruptTemplateLibrary if a file or group
// cannot be opened or a required dataset is absent or unreadable. The stored
// length of a dataset is not compared with g's NW.
func Open(dir string, g *grid.Grid) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", snidtypes.ErrTemplatesNotFound, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".h5") || strings.HasSuffix(e.Name(), ".hdf5") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .h5 files in %s", snidtypes.ErrTemplatesNotFound, dir)
	}
	sort.Strings(files)

	s := &Store{path: dir}
	for _, f := range files {
		tpls, err := readTemplateFile(f, g)
		if err != nil {
			return nil, err
		}
		s.templates = append(s.templates, tpls...)
	}

	sort.SliceStable(s.templates, func(i, j int) bool {
		a, b := s.templates[i], s.templates[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Subtype != b.Subtype {
			return a.Subtype < b.Subtype
		}
		return a.AgeDays < b.AgeDays
	})

	return s, nil
}

func readTemplateFile(path string, g *grid.Grid) ([]*snidtypes.Template, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", snidtypes.ErrCorruptTemplateLibrary, path, err)
	}
	defer f.Close()

	names, err := f.ObjectNames()
	if err != nil {
		return nil, fmt.Errorf("%w: listing groups in %s: %v", snidtypes.ErrCorruptTemplateLibrary, path, err)
	}

	var out []*snidtypes.Template
	for _, name := range names {
		grp, err := f.OpenGroup(name)
		if err != nil {
			return nil, fmt.Errorf("%w: opening group %s in %s: %v", snidtypes.ErrCorruptTemplateLibrary, name, path, err)
		}

		flat, err := readDataset(grp, "flat_flux", g.NW())
		if err != nil {
			grp.Close()
			return nil, fmt.Errorf("%w: %s/%s: %v", snidtypes.ErrCorruptTemplateLibrary, name, "flat_flux", err)
		}
		flux, err := readDataset(grp, "flux_flux", g.NW())
		if err != nil {
			grp.Close()
			return nil, fmt.Errorf("%w: %s/%s: %v", snidtypes.ErrCorruptTemplateLibrary, name, "flux_flux", err)
		}
		cont, _ := readDataset(grp, "continuum", g.NW())

		tpl := &snidtypes.Template{
			Name:      name,
			Type:      readStringAttr(grp, "type", "Unknown"),
			Subtype:   readStringAttr(grp, "subtype", "Unknown"),
			Phase:     readStringAttr(grp, "phase", "Unknown"),
			AgeDays:   readFloatAttr(grp, "age", 0.0),
			FlatFlux:  flat,
			FluxFlux:  flux,
			Continuum: cont,
		}
		grp.Close()
		out = append(out, tpl)
	}
	return out, nil
}

// readDataset loads a 1-D float64 dataset into a buffer of want samples
// (the grid's NW). It does not check the dataset's own length against want.
func readDataset(grp *hdf5.Group, name string, want int) ([]float64, error) {
	ds, err := grp.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	data := make([]float64, want)
	if err := ds.Read(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func readStringAttr(grp *hdf5.Group, name, fallback string) string {
	attr, err := grp.OpenAttribute(name)
	if err != nil {
		return fallback
	}
	defer attr.Close()
	var v string
	if err := attr.Read(&v); err != nil || v == "" {
		return fallback
	}
	return v
}

func readFloatAttr(grp *hdf5.Group, name string, fallback float64) float64 {
	attr, err := grp.OpenAttribute(name)
	if err != nil {
		return fallback
	}
	defer attr.Close()
	var v float64
	if err := attr.Read(&v); err != nil {
		return fallback
	}
	return v
}

// Len reports the number of loaded templates, independent of any filter.
func (s *Store) Len() int { return len(s.templates) }
