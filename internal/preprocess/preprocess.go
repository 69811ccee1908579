// Package preprocess implements the Preprocessor (spec.md C2): clipping,
// smoothing, flux-conserving log-rebinning, continuum flattening, and
// apodization of a raw spectrum onto the canonical grid.
package preprocess

import (
	"fmt"
	"math"

	"github.com/cwbudde/snid-go/internal/grid"
	"github.com/cwbudde/snid-go/internal/snidtypes"
)

// Run executes the full preprocessing chain and returns a ProcessedSpectrum
// on g's grid, recording every applied step in order. Failure modes follow
// spec.md §7: a nil/empty/non-monotonic spectrum is ErrInvalidSpectrum, a nil
// grid is ErrGridUninitialized, an out-of-range config value is
// ErrInvalidParameter.
func Run(g *grid.Grid, raw snidtypes.RawSpectrum, cfg Config) (*snidtypes.ProcessedSpectrum, error) {
	if g == nil {
		return nil, snidtypes.ErrGridUninitialized
	}
	if len(raw.Wave) == 0 || len(raw.Wave) != len(raw.Flux) {
		return nil, fmt.Errorf("%w: empty or mismatched wave/flux arrays", snidtypes.ErrInvalidSpectrum)
	}
	for i := 1; i < len(raw.Wave); i++ {
		if raw.Wave[i] <= raw.Wave[i-1] {
			return nil, fmt.Errorf("%w: wavelength array not strictly increasing at index %d", snidtypes.ErrInvalidSpectrum, i)
		}
	}
	if cfg.ApodizePercent < 0 || cfg.ApodizePercent > 50 {
		return nil, fmt.Errorf("%w: apodize_percent %.3f out of [0,50]", snidtypes.ErrInvalidParameter, cfg.ApodizePercent)
	}

	var trace []snidtypes.PreprocessStep
	wave := append([]float64(nil), raw.Wave...)
	flux := append([]float64(nil), raw.Flux...)

	if cfg.ABandRemove {
		wave, flux = clipABand(wave, flux)
		trace = append(trace, snidtypes.PreprocessStep{Name: "aband_remove"})
	}
	if cfg.SkyClip {
		skyWidth := cfg.Emwidth
		if skyWidth <= 0 {
			skyWidth = 40.0
		}
		wave, flux = clipSkyLines(wave, flux, skyWidth)
		trace = append(trace, snidtypes.PreprocessStep{Name: "skyclip", Params: map[string]any{"width": skyWidth}})
	}
	if cfg.EmclipZ >= 0 {
		wave, flux = clipHostEmissionLines(wave, flux, cfg.EmclipZ, cfg.Emwidth)
		trace = append(trace, snidtypes.PreprocessStep{Name: "emclip", Params: map[string]any{"z": cfg.EmclipZ, "width": cfg.Emwidth}})
	}
	if len(cfg.WavelengthMasks) > 0 {
		wave, flux = applyWavelengthMasks(wave, flux, cfg.WavelengthMasks)
		trace = append(trace, snidtypes.PreprocessStep{Name: "wavelength_mask", Params: map[string]any{"count": len(cfg.WavelengthMasks)}})
	}
	if len(wave) < 5 {
		return nil, fmt.Errorf("%w: fewer than 5 samples survive clipping", snidtypes.ErrInvalidSpectrum)
	}

	if cfg.SavgolWindow > 0 {
		flux = savgolFilterFixed(flux, cfg.SavgolWindow, cfg.SavgolOrder)
		trace = append(trace, snidtypes.PreprocessStep{Name: "savgol_fixed", Params: map[string]any{"window": cfg.SavgolWindow, "order": cfg.SavgolOrder}})
	} else if cfg.SavgolFWHM > 0 {
		flux = savgolFilterWavelength(wave, flux, cfg.SavgolFWHM, cfg.SavgolOrder)
		trace = append(trace, snidtypes.PreprocessStep{Name: "savgol_fwhm", Params: map[string]any{"fwhm": cfg.SavgolFWHM, "order": cfg.SavgolOrder}})
	}

	logFlux := logRebin(g, wave, flux)
	trace = append(trace, snidtypes.PreprocessStep{Name: "log_rebin", Params: map[string]any{"nw": g.NW()}})

	if cfg.ScaleToMean {
		logFlux = scaleToMean(logFlux)
		trace = append(trace, snidtypes.PreprocessStep{Name: "scale_to_mean"})
	}

	cont := fitContinuum(logFlux, cfg.Continuum)
	trace = append(trace, snidtypes.PreprocessStep{Name: "continuum_" + string(cfg.Continuum.Method)})

	left, right := activeEdges(cont.Flat)
	if left == -1 {
		return nil, fmt.Errorf("%w: no active bins survive continuum flattening", snidtypes.ErrNumericFailure)
	}

	apodizePercent := cfg.ApodizePercent
	tapered := apodize(cont.Flat, left, right, apodizePercent)
	trace = append(trace, snidtypes.PreprocessStep{Name: "apodize", Params: map[string]any{"percent": apodizePercent}})

	forced := cfg.ForcedRedshift != nil
	if forced {
		trace = append(trace, snidtypes.PreprocessStep{Name: "forced_redshift", Params: map[string]any{"z": *cfg.ForcedRedshift}})
	}

	logWave := make([]float64, g.NW())
	for i := range logWave {
		logWave[i] = g.BinCenter(i)
	}

	for _, v := range tapered {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value produced during preprocessing", snidtypes.ErrNumericFailure)
		}
	}

	return &snidtypes.ProcessedSpectrum{
		LogWave:      logWave,
		LogFlux:      logFlux,
		FlatFlux:     cont.Flat,
		TaperedFlux:  tapered,
		Continuum:    cont.Cont,
		LeftEdge:     left,
		RightEdge:    right,
		Grid:         g.Params(),
		Trace:        trace,
		ForcedZTrace: forced,
	}, nil
}
