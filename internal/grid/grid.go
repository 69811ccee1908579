// Package grid owns the fixed log-wavelength grid shared by every spectrum
// and template in a run (spec.md C1). It is initialized once and is
// read-only thereafter, mirroring the teacher's immutable Piano.params
// handling.
package grid

import (
	"fmt"
	"math"

	approx "github.com/cwbudde/algo-approx"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

const (
	DefaultNW = 1024
	DefaultW0 = 2500.0
	DefaultW1 = 10000.0

	minNW = 64
)

// Grid is the process-wide log-lambda grid. A zero Grid is not usable;
// construct with New or NewDefault.
type Grid struct {
	nw    int
	w0    float64
	w1    float64
	dwlog float64
}

// New initializes a Grid with explicit parameters. It fails with
// ErrInvalidGrid if w1 <= w0 or nw < 64, per spec.md §4.1.
func New(nw int, w0, w1 float64) (*Grid, error) {
	if w1 <= w0 {
		return nil, fmt.Errorf("%w: w1 (%.3f) must be > w0 (%.3f)", snidtypes.ErrInvalidGrid, w1, w0)
	}
	if nw < minNW {
		return nil, fmt.Errorf("%w: nw (%d) must be >= %d", snidtypes.ErrInvalidGrid, nw, minNW)
	}
	return &Grid{
		nw:    nw,
		w0:    w0,
		w1:    w1,
		dwlog: math.Log(w1/w0) / float64(nw),
	}, nil
}

// NewDefault builds the default grid: NW=1024, W0=2500, W1=10000.
func NewDefault() *Grid {
	g, err := New(DefaultNW, DefaultW0, DefaultW1)
	if err != nil {
		// The defaults are compile-time constants known to be valid.
		panic(err)
	}
	return g
}

// Params snapshots the grid into the plain record used by ProcessedSpectrum.
func (g *Grid) Params() snidtypes.GridParams {
	return snidtypes.GridParams{NW: g.nw, W0: g.w0, W1: g.w1, DWLog: g.dwlog}
}

func (g *Grid) NW() int         { return g.nw }
func (g *Grid) W0() float64     { return g.w0 }
func (g *Grid) W1() float64     { return g.w1 }
func (g *Grid) DWLog() float64  { return g.dwlog }

// BinCenter returns the wavelength (Å) at the center of bin i:
// W0 * exp((i+0.5) * DWLOG).
func (g *Grid) BinCenter(i int) float64 {
	return g.w0 * fastExp((float64(i)+0.5)*g.dwlog)
}

// BinEdges returns the (left, right) wavelength edges of bin i.
func (g *Grid) BinEdges(i int) (float64, float64) {
	return g.w0 * fastExp(float64(i)*g.dwlog), g.w0 * fastExp(float64(i+1)*g.dwlog)
}

// WavelengthToBin returns the fractional bin index for a wavelength,
// i.e. the inverse of BinCenter: i = ln(lambda/W0)/DWLOG - 0.5.
func (g *Grid) WavelengthToBin(lambda float64) float64 {
	return math.Log(lambda/g.w0)/g.dwlog - 0.5
}

// BinToWavelength is an alias for BinCenter kept for symmetry with
// WavelengthToBin.
func (g *Grid) BinToWavelength(i float64) float64 {
	return g.w0 * fastExp((i+0.5)*g.dwlog)
}

// fastExp uses algo-approx's fast exponential for the hot per-bin wavelength
// conversions, the same trade-off the teacher makes for its per-sample decay
// envelopes in piano.go/voice.go: a few ULPs of error in exchange for
// avoiding libm's full-precision exp on every bin of every template.
func fastExp(x float64) float64 {
	return float64(approx.FastExp(float32(x)))
}

// SameAs reports whether two grids have identical parameters. Used to
// enforce spec.md's "NW change between runs is rejected" boundary behavior.
func (g *Grid) SameAs(o snidtypes.GridParams) bool {
	return g.nw == o.NW && g.w0 == o.W0 && g.w1 == o.W1
}
