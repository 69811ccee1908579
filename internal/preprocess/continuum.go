package preprocess

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// continuumResult carries the flattened flux and the continuum model
// sampled at every grid bin.
type continuumResult struct {
	Flat []float64
	Cont []float64
}

// fitContinuum dispatches to the spline or gaussian continuum model, per
// spec.md §4.2, then zeroes flat/continuum outside the observed data range
// (first/last bin with flux>0).
func fitContinuum(flux []float64, cfg ContinuumConfig) continuumResult {
	var res continuumResult
	switch cfg.Method {
	case ContinuumGaussian:
		res = fitContinuumGaussian(flux, cfg.Sigma)
	default:
		knotnum := cfg.KnotNum
		if knotnum <= 0 {
			knotnum = 13
		}
		res = fitContinuumSpline(flux, knotnum)
	}

	i0, i1 := -1, -1
	for i, v := range flux {
		if v > 0 {
			if i0 == -1 {
				i0 = i
			}
			i1 = i
		}
	}
	if i0 == -1 {
		for i := range res.Flat {
			res.Flat[i] = 0
			res.Cont[i] = 0
		}
		return res
	}
	for i := 0; i < i0; i++ {
		res.Flat[i] = 0
		res.Cont[i] = 0
	}
	for i := i1 + 1; i < len(res.Flat); i++ {
		res.Flat[i] = 0
		res.Cont[i] = 0
	}
	return res
}

// fitContinuumSpline ports preprocessing.py's fit_continuum_spline: chop up
// to one non-positive pixel from each end, average log10(flux) within
// knotnum windows to place knots, fit a natural cubic spline through the
// knots in log10-space via a tridiagonal solve, and evaluate exp10 of the
// spline at every bin. Knots close at fixed multiples of n/knotnum bins; no
// redshift-dependent phase offset is applied to the knot windows. The spline
// solve is hand-written rather than a library spline fitter; see DESIGN.md.
func fitContinuumSpline(flux []float64, knotnum int) continuumResult {
	n := len(flux)
	flat := make([]float64, n)
	cont := make([]float64, n)
	for i := range cont {
		cont[i] = 1.0
	}
	if n < 10 || knotnum < 3 {
		return continuumResult{Flat: flat, Cont: cont}
	}

	l1 := 0
	nuked := 0
	for l1 < n-1 && (flux[l1] <= 0 || nuked < 1) {
		if flux[l1] > 0 {
			nuked++
		}
		l1++
	}
	l2 := n - 1
	nuked = 0
	for l2 > 1 && (flux[l2] <= 0 || nuked < 1) {
		if flux[l2] > 0 {
			nuked++
		}
		l2--
	}
	if l2-l1 < 3*knotnum {
		return continuumResult{Flat: flat, Cont: cont}
	}

	logf := make([]float64, n)
	for i, v := range flux {
		if v > 0 {
			logf[i] = math.Log10(v)
		}
	}

	kwidth := n / knotnum
	if kwidth < 1 {
		kwidth = 1
	}

	var xknot, yknot []float64
	var nave, sumX, sumY float64
	for i := 0; i < n; i++ {
		if i > l1 && i < l2 && flux[i] > 0 {
			nave++
			sumX += float64(i) - 0.5
			sumY += logf[i]
		}
		if i%kwidth == 0 && nave > 0 {
			xknot = append(xknot, sumX/nave)
			yknot = append(yknot, sumY/nave)
			nave, sumX, sumY = 0, 0, 0
		}
	}

	nk := len(xknot)
	if nk < 3 {
		return continuumResult{Flat: flat, Cont: cont}
	}

	y2 := naturalCubicSecondDerivatives(xknot, yknot)

	for j := 0; j < n; j++ {
		xp := float64(j) - 0.5
		idx := splineSearch(xknot, xp)
		hi := xknot[idx+1] - xknot[idx]
		a := (xknot[idx+1] - xp) / hi
		b := (xp - xknot[idx]) / hi
		logc := a*yknot[idx] + b*yknot[idx+1] +
			((a*a*a-a)*y2[idx]+(b*b*b-b)*y2[idx+1])*(hi*hi)/6.0
		cont[j] = math.Pow(10, logc)
	}

	for i := 0; i < n; i++ {
		if flux[i] > 0 && cont[i] > 0 {
			flat[i] = flux[i]/cont[i] - 1.0
		}
	}
	return continuumResult{Flat: flat, Cont: cont}
}

// naturalCubicSecondDerivatives solves the standard tridiagonal system for
// natural cubic spline second derivatives at each knot.
func naturalCubicSecondDerivatives(xknot, yknot []float64) []float64 {
	nk := len(xknot)
	h := make([]float64, nk-1)
	for i := range h {
		h[i] = xknot[i+1] - xknot[i]
	}
	m := nk - 2
	if m <= 0 {
		return make([]float64, nk)
	}
	a := make([]float64, m)
	c := make([]float64, m)
	rhs := make([]float64, m)
	for i := 0; i < m; i++ {
		a[i] = 2.0 * (h[i] + h[i+1])
		c[i] = h[i+1]
		rhs[i] = 6.0 * ((yknot[i+2]-yknot[i+1])/h[i+1] - (yknot[i+1]-yknot[i])/h[i])
	}

	u := make([]float64, m)
	z := make([]float64, m)
	u[0], z[0] = a[0], rhs[0]
	for i := 1; i < m; i++ {
		li := c[i-1] / u[i-1]
		u[i] = a[i] - li*c[i-1]
		z[i] = rhs[i] - li*z[i-1]
	}

	y2 := make([]float64, nk)
	if m > 0 {
		y2[m] = z[m-1] / u[m-1]
		for i := m - 2; i >= 0; i-- {
			y2[i+1] = (z[i] - c[i]*y2[i+2]) / u[i]
		}
	}
	return y2
}

// splineSearch returns the knot interval index containing xp, clamped to
// [0, nk-2].
func splineSearch(xknot []float64, xp float64) int {
	nk := len(xknot)
	idx := 0
	for idx < nk-2 && xknot[idx+1] < xp {
		idx++
	}
	return idx
}

// fitContinuumGaussian ports preprocessing.py's gaussian continuum branch:
// trim edge bins below 20% of the median, Gaussian-filter the core range,
// then linearly extrapolate to the full grid with a 10%-of-edge floor.
func fitContinuumGaussian(flux []float64, sigma float64) continuumResult {
	n := len(flux)
	flat := make([]float64, n)
	cont := make([]float64, n)
	for i := range cont {
		cont[i] = 1.0
	}

	var positive []int
	for i, v := range flux {
		if v > 0 {
			positive = append(positive, i)
		}
	}
	if len(positive) == 0 {
		return continuumResult{Flat: flat, Cont: cont}
	}
	i0, i1 := positive[0], positive[len(positive)-1]

	if sigma <= 0 {
		sigma = autoGaussianSigma(flux)
	}

	nEdgeCheck := 3
	if len(positive)/10 < nEdgeCheck {
		nEdgeCheck = len(positive) / 10
	}
	if len(positive) > 2*nEdgeCheck && nEdgeCheck > 0 {
		validFlux := make([]float64, 0, len(positive))
		for _, idx := range positive {
			validFlux = append(validFlux, flux[idx])
		}
		median := medianOf(validFlux)
		threshold := median * 0.2
		for k := 0; k < nEdgeCheck; k++ {
			if i0+k < len(flux) && flux[i0+k] < threshold {
				i0 = i0 + k + 1
			} else {
				break
			}
		}
		for k := 0; k < nEdgeCheck; k++ {
			if i1-k >= 0 && flux[i1-k] < threshold {
				i1 = i1 - k - 1
			} else {
				break
			}
		}
	}
	if i1-i0 < 10 {
		i0, i1 = positive[0], positive[len(positive)-1]
	}

	core := append([]float64(nil), flux[i0:i1+1]...)
	coreCont := gaussianFilterMirror(core, sigma)
	for i := range coreCont {
		cont[i0+i] = coreCont[i]
	}

	if i0 > 0 && len(coreCont) > 1 {
		slope := coreCont[1] - coreCont[0]
		for idx := 0; idx < i0; idx++ {
			v := coreCont[0] + slope*float64(idx-i0)
			floor := coreCont[0] * 0.1
			if v < floor {
				v = floor
			}
			cont[idx] = v
		}
	} else if i0 > 0 {
		for idx := 0; idx < i0; idx++ {
			cont[idx] = coreCont[0]
		}
	}
	if i1 < n-1 && len(coreCont) > 1 {
		last := len(coreCont) - 1
		slope := coreCont[last] - coreCont[last-1]
		for idx := i1 + 1; idx < n; idx++ {
			v := coreCont[last] + slope*float64(idx-i1)
			floor := coreCont[last] * 0.1
			if v < floor {
				v = floor
			}
			cont[idx] = v
		}
	} else if i1 < n-1 {
		for idx := i1 + 1; idx < n; idx++ {
			cont[idx] = coreCont[len(coreCont)-1]
		}
	}

	for i := 0; i < n; i++ {
		if flux[i] > 0 && cont[i] > 0 {
			flat[i] = flux[i]/cont[i] - 1.0
		}
	}
	return continuumResult{Flat: flat, Cont: cont}
}

// autoGaussianSigma implements the clamp(NW/25 * noise_factor, 10, 100)
// formula from spec.md §4.2 / preprocessing.py's
// calculate_auto_gaussian_sigma, using gonum/stat for the std reduction and
// medianOf for the median.
func autoGaussianSigma(flux []float64) float64 {
	base := float64(len(flux)) / 25.0

	var valid []float64
	for _, v := range flux {
		if v > 0 {
			valid = append(valid, v)
		}
	}
	if len(valid) > 10 {
		sorted := append([]float64(nil), valid...)
		median := medianOf(sorted)
		std := stat.StdDev(valid, nil)
		noiseRatio := 1.0
		if median > 0 {
			noiseRatio = std / median
		}
		noiseFactor := 1.0 + 0.2*(noiseRatio-0.1)
		noiseFactor = clampF(noiseFactor, 0.7, 1.5)
		base *= noiseFactor
	}
	return clampF(base, 10.0, 100.0)
}

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func medianOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	insertionSort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return 0.5 * (sorted[n/2-1] + sorted[n/2])
}

func insertionSort(xs []float64) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}

// gaussianFilterMirror convolves x with a discrete Gaussian kernel of the
// given sigma (in sample units), using mirror boundary handling, matching
// scipy.ndimage.gaussian_filter1d(mode="mirror").
func gaussianFilterMirror(x []float64, sigma float64) []float64 {
	if sigma <= 0 || len(x) == 0 {
		return append([]float64(nil), x...)
	}
	radius := int(4*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	out := make([]float64, len(x))
	for i := range x {
		var acc float64
		for k := -radius; k <= radius; k++ {
			idx := mirrorIndex(i+k, len(x))
			acc += kernel[k+radius] * x[idx]
		}
		out[i] = acc
	}
	return out
}
