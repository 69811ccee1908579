// Package correlate implements the Correlator (spec.md C4): FFT
// cross-correlation of a preprocessed spectrum against each admissible
// template, parabolic peak refinement, and the rlap/lap quality metrics.
package correlate

import (
	"errors"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
)

// fftPlan caches the forward/inverse real-FFT transforms for one padded
// length, preferring algo-fft's FastPlanReal64 and falling back to the safe
// generic plan, exactly mirroring the teacher's lagFFTPlan in
// analysis/distance.go — the only change is that the correlation here runs
// over a spectral flux vector instead of an audio lag search.
type fftPlan struct {
	mu   sync.Mutex
	n    int
	fast *algofft.FastPlanReal64
	safe *algofft.PlanRealT[float64, complex128]

	inA   []float64
	inB   []float64
	specA []complex128
	specB []complex128
	corr  []float64
}

var planCache sync.Map // map[int]*fftPlan

// getPlan returns the cached plan for padded length n, creating one on a
// cache miss. Creation takes no lock: concurrent first callers may each build
// a plan, and LoadOrStore keeps the first one stored. Execution is serialized
// per plan, since Correlate holds p.mu while it uses the shared buffers.
func getPlan(n int) (*fftPlan, error) {
	if v, ok := planCache.Load(n); ok {
		return v.(*fftPlan), nil
	}

	p := &fftPlan{
		n:     n,
		inA:   make([]float64, n),
		inB:   make([]float64, n),
		specA: make([]complex128, n/2+1),
		specB: make([]complex128, n/2+1),
		corr:  make([]float64, n),
	}

	fast, err := algofft.NewFastPlanReal64(n)
	if err == nil {
		p.fast = fast
	}
	safe, err := algofft.NewPlanReal64(n)
	if err != nil {
		if p.fast == nil {
			return nil, err
		}
	} else {
		p.safe = safe
	}

	actual, _ := planCache.LoadOrStore(n, p)
	return actual.(*fftPlan), nil
}

func (p *fftPlan) forward(dst []complex128, src []float64) error {
	if p.fast != nil {
		p.fast.Forward(dst, src)
		return nil
	}
	if p.safe != nil {
		return p.safe.Forward(dst, src)
	}
	return errors.New("correlate: missing forward FFT plan")
}

func (p *fftPlan) inverse(dst []float64, src []complex128) error {
	if p.fast != nil {
		p.fast.Inverse(dst, src)
		return nil
	}
	if p.safe != nil {
		return p.safe.Inverse(dst, src)
	}
	return errors.New("correlate: missing inverse FFT plan")
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
