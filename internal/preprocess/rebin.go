package preprocess

import (
	"math"

	"github.com/cwbudde/snid-go/internal/grid"
)

// logRebin conservatively integrates flux from linear-lambda pixel
// boundaries onto the canonical log-lambda grid and divides by destination
// bin width to yield flux density, exactly mirroring the Fortran-derived
// `rebin` algorithm in preprocessing.py's log_rebin. Outside the input
// coverage, output bins are exactly zero.
func logRebin(g *grid.Grid, wave, flux []float64) []float64 {
	nw := g.NW()
	dest := make([]float64, nw)
	if len(wave) == 0 {
		return dest
	}

	// Source pixel edges: midpoints of neighboring samples, first/last
	// extrapolated linearly.
	edges := make([]float64, len(wave)+1)
	for i := 1; i < len(wave); i++ {
		edges[i] = 0.5 * (wave[i-1] + wave[i])
	}
	edges[0] = 1.5*wave[0] - 0.5*wave[minInt(1, len(wave)-1)]
	edges[len(wave)] = 1.5*wave[len(wave)-1] - 0.5*wave[maxInt(len(wave)-2, 0)]

	w0 := g.W0()
	dwlog := g.DWLog()

	// Map edges into (1-indexed, to mirror the Fortran/py convention) log-bin
	// coordinates.
	slog := make([]float64, len(edges))
	for i, e := range edges {
		if e <= 0 {
			slog[i] = math.Inf(-1)
			continue
		}
		slog[i] = math.Log(e/w0)/dwlog + 1.0
	}

	for l := 0; l < len(wave); l++ {
		s0log := slog[l]
		s1log := slog[l+1]
		dLambda := edges[l+1] - edges[l]
		widthLog := s1log - s0log
		if widthLog <= 0 || math.IsInf(widthLog, 0) {
			continue
		}

		i0 := maxInt(1, int(math.Floor(s0log)))
		i1 := minInt(nw, int(math.Floor(s1log)))

		for i := i0; i <= i1; i++ {
			alen := math.Min(s1log, float64(i+1)) - math.Max(s0log, float64(i))
			if alen <= 0 {
				continue
			}
			frac := alen / widthLog
			dest[i-1] += flux[l] * frac * dLambda
		}
	}

	// Convert accumulated integrated flux to flux density per Å.
	for i := 0; i < nw; i++ {
		lo, hi := g.BinEdges(i)
		binWidth := hi - lo
		if binWidth > 0 {
			dest[i] /= binWidth
		}
	}
	return dest
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// scaleToMean divides flux by its mean over bins > 0; never introduces
// NaNs — an undefined scale (no positive bins) resolves to unity.
func scaleToMean(flux []float64) []float64 {
	var sum float64
	var count int
	for _, v := range flux {
		if v > 0 {
			sum += v
			count++
		}
	}
	if count == 0 || sum == 0 {
		return append([]float64(nil), flux...)
	}
	mean := sum / float64(count)
	out := make([]float64, len(flux))
	for i, v := range flux {
		out[i] = v / mean
	}
	return out
}
