// Package config loads the optional YAML defaults file for the identify
// pipeline and merges it under explicit CLI flags, mirroring the teacher's
// preset.File pointer-field pattern in preset/json.go: every field is a
// pointer so "not present in the file" is distinguishable from "present and
// zero", and flags always win over the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/snid-go/internal/cluster"
	"github.com/cwbudde/snid-go/internal/correlate"
	"github.com/cwbudde/snid-go/internal/preprocess"
	"github.com/cwbudde/snid-go/internal/result"
)

// File is the YAML schema for a run's defaults file. Every field is
// optional; an absent field falls back to the CLI's own default, which is
// applied before the file is loaded.
type File struct {
	ZMin    *float64 `yaml:"zmin"`
	ZMax    *float64 `yaml:"zmax"`
	RlapMin *float64 `yaml:"rlapmin"`
	LapMin  *float64 `yaml:"lapmin"`

	SavgolWindow *int     `yaml:"savgol_window"`
	SavgolFWHM   *float64 `yaml:"savgol_fwhm"`
	SavgolOrder  *int     `yaml:"savgol_order"`
	ABandRemove  *bool    `yaml:"aband_remove"`
	SkyClip      *bool    `yaml:"skyclip"`
	EmclipZ      *float64 `yaml:"emclip_z"`
	Emwidth      *float64 `yaml:"emwidth"`
	ApodizePct   *float64 `yaml:"apodize_percent"`

	AgeMin *float64 `yaml:"age_min"`
	AgeMax *float64 `yaml:"age_max"`

	PeakWindowSize     *int `yaml:"peak_window_size"`
	MaxOutputTemplates *int `yaml:"max_output_templates"`

	MinMatchesPerType  *int     `yaml:"min_matches_per_type"`
	MaxClustersPerType *int     `yaml:"max_clusters_per_type"`
	QualityThreshold   *float64 `yaml:"quality_threshold"`
	RespCut            *float64 `yaml:"resp_cut"`
}

// Load reads a YAML defaults file; a missing path is not an error (the
// pipeline simply runs with its built-in defaults).
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &f, nil
}

// Resolved bundles the three stage configs the pipeline needs, after a
// File's values have been layered under explicit CLI overrides.
type Resolved struct {
	Preprocess preprocess.Config
	Correlate  correlate.Config
	Cluster    cluster.Config
	Result     result.Config
}

// Merge builds a Resolved config starting from every stage's DefaultConfig,
// applying f's non-nil fields, then applying override's non-nil fields on
// top (flags always win, per the teacher's ApplyFile semantics). AgeMin and
// AgeMax are parsed but not applied: Resolved has no template-filter part.
func Merge(f, override *File) Resolved {
	r := Resolved{
		Preprocess: preprocess.DefaultConfig(),
		Correlate:  correlate.DefaultConfig(),
		Cluster:    cluster.DefaultConfig(),
		Result:     result.DefaultConfig(),
	}
	apply(&r, f)
	apply(&r, override)
	return r
}

func apply(r *Resolved, f *File) {
	if f == nil {
		return
	}
	if f.ZMin != nil {
		r.Correlate.ZMin = *f.ZMin
	}
	if f.ZMax != nil {
		r.Correlate.ZMax = *f.ZMax
	}
	if f.RlapMin != nil {
		r.Correlate.RlapMin = *f.RlapMin
		r.Result.RlapMin = *f.RlapMin
	}
	if f.LapMin != nil {
		r.Correlate.LapMin = *f.LapMin
		r.Result.LapMin = *f.LapMin
	}
	if f.SavgolWindow != nil {
		r.Preprocess.SavgolWindow = *f.SavgolWindow
	}
	if f.SavgolFWHM != nil {
		r.Preprocess.SavgolFWHM = *f.SavgolFWHM
	}
	if f.SavgolOrder != nil {
		r.Preprocess.SavgolOrder = *f.SavgolOrder
	}
	if f.ABandRemove != nil {
		r.Preprocess.ABandRemove = *f.ABandRemove
	}
	if f.SkyClip != nil {
		r.Preprocess.SkyClip = *f.SkyClip
	}
	if f.EmclipZ != nil {
		r.Preprocess.EmclipZ = *f.EmclipZ
	}
	if f.Emwidth != nil {
		r.Preprocess.Emwidth = *f.Emwidth
	}
	if f.ApodizePct != nil {
		r.Preprocess.ApodizePercent = *f.ApodizePct
	}
	if f.PeakWindowSize != nil {
		r.Correlate.PeakWindowSize = *f.PeakWindowSize
	}
	if f.MaxOutputTemplates != nil {
		r.Result.MaxOutputTemplates = *f.MaxOutputTemplates
	}
	if f.MinMatchesPerType != nil {
		r.Cluster.MinMatchesPerType = *f.MinMatchesPerType
	}
	if f.MaxClustersPerType != nil {
		r.Cluster.MaxClustersPerType = *f.MaxClustersPerType
	}
	if f.QualityThreshold != nil {
		r.Cluster.QualityThreshold = *f.QualityThreshold
	}
	if f.RespCut != nil {
		r.Cluster.RespCut = *f.RespCut
	}
}
