package correlate

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

// Config holds the per-run correlation parameters from spec.md §4.4/§6.
type Config struct {
	ZMin, ZMax     float64
	PeakWindowSize int // bins, default 10
	RlapMin        float64
	LapMin         float64
	ComputeRlapCos bool
	ForcedRedshift *float64
}

// DefaultConfig matches the CLI defaults.
func DefaultConfig() Config {
	return Config{
		ZMin:           -0.01,
		ZMax:           1.0,
		PeakWindowSize: 10,
		RlapMin:        5.0,
		LapMin:         0.3,
		ComputeRlapCos: true,
	}
}

// Correlate cross-correlates one ProcessedSpectrum against one Template and
// returns a Match. It never returns an error for a single bad template;
// instead the Match is marked Rejected with RejectReason set, per spec.md
// §4.4's "yields a rejected Match rather than aborting".
func Correlate(ps *snidtypes.ProcessedSpectrum, t *snidtypes.Template, cfg Config) (*snidtypes.Match, error) {
	nw := ps.Grid.NW
	if len(ps.TaperedFlux) != nw || len(t.FlatFlux) != nw {
		return rejectedMatch(t, "grid mismatch between spectrum and template"), nil
	}

	nfft := nextPow2(2 * nw)
	plan, err := getPlan(nfft)
	if err != nil {
		return rejectedMatch(t, fmt.Sprintf("fft plan: %v", err)), nil
	}

	plan.mu.Lock()
	defer plan.mu.Unlock()

	clear(plan.inA)
	clear(plan.inB)
	copy(plan.inA, ps.TaperedFlux)
	copy(plan.inB, t.FlatFlux)

	if err := plan.forward(plan.specA, plan.inA); err != nil {
		return rejectedMatch(t, err.Error()), nil
	}
	if err := plan.forward(plan.specB, plan.inB); err != nil {
		return rejectedMatch(t, err.Error()), nil
	}
	cross := make([]complex128, len(plan.specA))
	for i := range plan.specA {
		cross[i] = plan.specA[i] * cmplx.Conj(plan.specB[i])
	}
	if err := plan.inverse(plan.corr, cross); err != nil {
		return rejectedMatch(t, err.Error()), nil
	}

	dwlog := logBinWidth(ps)
	maxShift := nw / 2

	zOf := func(shift int) float64 { return math.Exp(float64(shift)*dwlog) - 1 }
	corrAt := func(shift int) float64 {
		idx := shift
		if idx < 0 {
			idx += nfft
		}
		v := plan.corr[idx]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.Inf(-1)
		}
		return v
	}

	if cfg.ForcedRedshift != nil {
		zf := *cfg.ForcedRedshift
		bestShift := 0
		bestDist := math.Inf(1)
		zAxis := make([]float64, 0, 2*maxShift)
		series := make([]float64, 0, 2*maxShift)
		for shift := -maxShift; shift < maxShift; shift++ {
			z := zOf(shift)
			zAxis = append(zAxis, z)
			series = append(series, corrAt(shift))
			d := math.Abs(z - zf)
			if d < bestDist {
				bestDist = d
				bestShift = shift
			}
		}
		m, err := buildMatch(ps, t, plan, nfft, dwlog, float64(bestShift), bestShift, cfg, true)
		if m != nil {
			// Forced mode reports the requested redshift exactly; bestShift
			// is used only to index the correlation for lap/rlap/quality.
			m.Redshift = zf
			m.CorrelationZAxis = zAxis
			m.Correlation = series
		}
		return m, err
	}

	bestShift := 0
	best := math.Inf(-1)
	found := false
	zAxis := make([]float64, 0, 2*maxShift)
	series := make([]float64, 0, 2*maxShift)
	for shift := -maxShift; shift < maxShift; shift++ {
		z := zOf(shift)
		if z < cfg.ZMin || z > cfg.ZMax {
			continue
		}
		v := corrAt(shift)
		zAxis = append(zAxis, z)
		series = append(series, v)
		if v > best {
			best = v
			bestShift = shift
			found = true
		}
	}
	if !found || math.IsInf(best, -1) {
		return rejectedMatch(t, "no correlation peak within requested redshift range"), nil
	}

	peakPos := parabolicPeak(corrAt, bestShift)
	m, err := buildMatch(ps, t, plan, nfft, dwlog, peakPos, bestShift, cfg, false)
	if m != nil {
		m.CorrelationZAxis = zAxis
		m.Correlation = series
	}
	return m, err
}

// logBinWidth returns DWLOG from the processed spectrum's grid snapshot.
func logBinWidth(ps *snidtypes.ProcessedSpectrum) float64 {
	return ps.Grid.DWLog
}

// parabolicPeak refines the integer peak bin to a sub-bin position using
// the three points around it, per spec.md §4.4 step 3.
func parabolicPeak(corrAt func(int) float64, peak int) float64 {
	yL := corrAt(peak - 1)
	y0 := corrAt(peak)
	yR := corrAt(peak + 1)
	denom := yL - 2*y0 + yR
	if denom == 0 || math.IsInf(denom, 0) {
		return float64(peak)
	}
	delta := 0.5 * (yL - yR) / denom
	if delta < -1 || delta > 1 {
		delta = 0
	}
	return float64(peak) + delta
}

func rejectedMatch(t *snidtypes.Template, reason string) *snidtypes.Match {
	return &snidtypes.Match{Template: t, Rejected: true, RejectReason: reason}
}

// buildMatch computes lap, r, rlap, redshift_error and optional rlap_cos at
// the given (possibly fractional) peak position and integer shift, then
// applies the rlapmin/lapmin rejection test from spec.md §4.4 step 6.
func buildMatch(ps *snidtypes.ProcessedSpectrum, t *snidtypes.Template, plan *fftPlan, nfft int, dwlog float64, peakPos float64, intShift int, cfg Config, forced bool) (*snidtypes.Match, error) {
	nw := ps.Grid.NW
	z := math.Exp(peakPos*dwlog) - 1

	lap := overlapFraction(ps.LeftEdge, ps.RightEdge, nw, intShift)

	peakWindow := cfg.PeakWindowSize
	if peakWindow < 1 {
		peakWindow = 10
	}
	r := peakSignalToNoise(plan, nfft, intShift, peakWindow)

	rlap := r * lap

	halfWidth := peakHalfWidth(plan, nfft, intShift, peakWindow)
	redshiftErr := halfWidth * dwlog * (1 + z)

	m := &snidtypes.Match{
		Template:      t,
		Redshift:      z,
		RedshiftError: redshiftErr,
		Rlap:          rlap,
		Lap:           lap,
	}

	if cfg.ComputeRlapCos {
		cos := cosineSimilarityShifted(ps.FlatFlux, t.FlatFlux, intShift)
		if cos < 0 {
			cos = 0
		}
		if cos > 1 {
			cos = 1
		}
		m.HasRlapCos = true
		m.RlapCos = rlap * cos
	}

	if !forced && (lap < cfg.LapMin || rlap < cfg.RlapMin) {
		m.Rejected = true
		m.RejectReason = "below rlapmin/lapmin thresholds"
	}

	if math.IsNaN(rlap) || math.IsInf(rlap, 0) {
		return rejectedMatch(t, "non-finite rlap"), nil
	}

	return m, nil
}

// overlapFraction computes lap: the overlap between S's active range and
// T's active range shifted by the peak's integer bin shift, normalized by
// min(NW, NW) = NW (templates are assumed fully populated over [0,NW)).
func overlapFraction(sLeft, sRight, nw, shift int) float64 {
	tLeft, tRight := 0, nw-1
	shiftedLeft := tLeft + shift
	shiftedRight := tRight + shift

	lo := math.Max(float64(sLeft), float64(shiftedLeft))
	hi := math.Min(float64(sRight), float64(shiftedRight))
	overlap := hi - lo + 1
	if overlap <= 0 {
		return 0
	}
	return overlap / float64(nw)
}

// peakSignalToNoise estimates r as the peak correlation value divided by
// the RMS of the correlation outside a masked window around the peak,
// mirroring the "asymmetric noise estimate" language in spec.md §4.4 with a
// single pooled noise floor (the left/right split collapses to one
// estimate once the search is already restricted to [-NW/2, NW/2)).
func peakSignalToNoise(plan *fftPlan, nfft, peak, window int) float64 {
	idx := peak
	if idx < 0 {
		idx += nfft
	}
	peakVal := plan.corr[idx]

	var sumSq float64
	var count int
	for i := 0; i < nfft; i++ {
		d := i - idx
		if d > nfft/2 {
			d -= nfft
		}
		if d < -nfft/2 {
			d += nfft
		}
		if -window <= d && d <= window {
			continue
		}
		v := plan.corr[i]
		sumSq += v * v
		count++
	}
	if count == 0 || peakVal <= 0 {
		return 0
	}
	noise := math.Sqrt(sumSq / float64(count))
	if noise <= 0 {
		return 0
	}
	return peakVal / noise
}

// peakHalfWidth estimates the half-width (in bins) of the correlation peak
// by walking rightward from the peak until the correlation drops to half its
// peak value (the left flank is not examined), used for the redshift
// uncertainty per spec.md §4.4.
func peakHalfWidth(plan *fftPlan, nfft, peak, maxWindow int) float64 {
	idx := peak
	if idx < 0 {
		idx += nfft
	}
	peakVal := plan.corr[idx]
	if peakVal <= 0 {
		return 1.0
	}
	half := peakVal / 2

	width := float64(maxWindow)
	for w := 1; w <= maxWindow; w++ {
		right := (idx + w) % nfft
		if plan.corr[right] <= half {
			width = float64(w)
			break
		}
	}
	return width
}

// cosineSimilarityShifted computes cosine similarity between S.flat_flux
// and T.flat_flux shifted by shift bins, over their overlapping range.
func cosineSimilarityShifted(s, t []float64, shift int) float64 {
	n := len(s)
	var dot, normS, normT float64
	for i := 0; i < n; i++ {
		j := i - shift
		if j < 0 || j >= n {
			continue
		}
		dot += s[i] * t[j]
		normS += s[i] * s[i]
		normT += t[j] * t[j]
	}
	if normS <= 0 || normT <= 0 {
		return 0
	}
	return dot / math.Sqrt(normS*normT)
}
