package preprocess

import (
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/snid-go/internal/dsputil"
)

// savgolCoefficients computes the symmetric Savitzky-Golay convolution
// kernel for a window of halfWidth points on each side of center, fitting a
// polynomial of the given order in the least-squares sense and returning the
// smoothed-value (0th derivative) coefficients. Uses gonum/mat for the small
// normal-equations solve (window x order), matching the domain stack's use
// of gonum for every closed-form linear solve outside the spline continuum.
func savgolCoefficients(halfWidth, order int) []float64 {
	m := 2*halfWidth + 1
	// Design matrix A: rows are positions -halfWidth..halfWidth, columns are
	// powers 0..order.
	a := mat.NewDense(m, order+1, nil)
	for r := 0; r < m; r++ {
		x := float64(r - halfWidth)
		xp := 1.0
		for c := 0; c <= order; c++ {
			a.Set(r, c, xp)
			xp *= x
		}
	}
	var ata mat.Dense
	ata.Mul(a.T(), a)
	var ataInv mat.Dense
	if err := ataInv.Inverse(&ata); err != nil {
		// Degenerate design (shouldn't happen for order < window); fall back
		// to a simple moving average.
		out := make([]float64, m)
		for i := range out {
			out[i] = 1.0 / float64(m)
		}
		return out
	}
	var pseudo mat.Dense
	pseudo.Mul(&ataInv, a.T()) // (order+1) x m
	// The smoothed value at the center point uses row 0 of pseudo (the
	// coefficient of the constant term), i.e. pseudo[0, :].
	coeffs := make([]float64, m)
	for c := 0; c < m; c++ {
		coeffs[c] = pseudo.At(0, c)
	}
	return coeffs
}

// savgolFilterFixed smooths data with a pixel-unit Savitzky-Golay window.
// Mirrors preprocessing.py's savgol_filter_fixed: windows < 3 samples or
// larger than the data are a no-op; even windows are incremented; the
// polynomial order is clamped below the window length (spec.md P4).
func savgolFilterFixed(data []float64, window, order int) []float64 {
	if window < 3 {
		return append([]float64(nil), data...)
	}
	if window%2 == 0 {
		window++
	}
	if window > len(data) {
		return append([]float64(nil), data...)
	}
	if order >= window {
		order = window - 1
	}
	if order < 0 {
		order = 0
	}
	halfWidth := (window - 1) / 2
	coeffs := savgolCoefficients(halfWidth, order)
	return convolveEdgeMirror(data, coeffs, halfWidth)
}

// savgolFilterWavelength derives a pixel window from a requested wavelength
// FWHM and the average pixel spacing, then delegates to savgolFilterFixed.
func savgolFilterWavelength(wave, data []float64, fwhmAngstrom float64, order int) []float64 {
	if fwhmAngstrom <= 0 || len(wave) < 2 {
		return append([]float64(nil), data...)
	}
	avgSpacing := (wave[len(wave)-1] - wave[0]) / float64(len(wave)-1)
	if avgSpacing <= 0 {
		return append([]float64(nil), data...)
	}
	sigmaAngstrom := fwhmAngstrom / 2.35
	windowPixels := int(2 * sigmaAngstrom / avgSpacing)
	if windowPixels < 3 {
		windowPixels = 3
	}
	if windowPixels%2 == 0 {
		windowPixels++
	}
	return savgolFilterFixed(data, windowPixels, order)
}

// convolveEdgeMirror applies a symmetric FIR kernel, mirroring the signal at
// the edges so the output has the same length as the input.
func convolveEdgeMirror(data []float64, coeffs []float64, halfWidth int) []float64 {
	n := len(data)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for k := -halfWidth; k <= halfWidth; k++ {
			idx := i + k
			idx = mirrorIndex(idx, n)
			sum += coeffs[k+halfWidth] * data[idx]
		}
		out[i] = dsputil.FlushDenormal(sum)
	}
	return out
}

func mirrorIndex(idx, n int) int {
	if n == 1 {
		return 0
	}
	for idx < 0 || idx >= n {
		if idx < 0 {
			idx = -idx
		}
		if idx >= n {
			idx = 2*(n-1) - idx
		}
	}
	return idx
}
