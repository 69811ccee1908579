package correlate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

func syntheticFlat(n int, phase float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2*math.Pi*float64(i)/float64(n)*8 + phase)
	}
	return out
}

func TestCorrelateIdenticalTemplateAtZeroShift(t *testing.T) {
	nw := 256
	flux := syntheticFlat(nw, 0)
	ps := &snidtypes.ProcessedSpectrum{
		TaperedFlux: flux,
		FlatFlux:    flux,
		LeftEdge:    0,
		RightEdge:   nw - 1,
		Grid:        snidtypes.GridParams{NW: nw, W0: 2500, W1: 10000, DWLog: math.Log(10000.0/2500.0) / float64(nw)},
	}
	tpl := &snidtypes.Template{Name: "self", FlatFlux: flux}

	m, err := Correlate(ps, tpl, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, m.Rejected, m.RejectReason)
	assert.InDelta(t, 0.0, m.Redshift, 0.02)
	assert.Greater(t, m.Rlap, 0.0)
	assert.GreaterOrEqual(t, m.Lap, 0.9)
}

func TestCorrelateGridMismatchRejected(t *testing.T) {
	ps := &snidtypes.ProcessedSpectrum{
		TaperedFlux: make([]float64, 128),
		FlatFlux:    make([]float64, 128),
		Grid:        snidtypes.GridParams{NW: 128, W0: 2500, W1: 10000, DWLog: 0.01},
	}
	tpl := &snidtypes.Template{Name: "mismatched", FlatFlux: make([]float64, 64)}

	m, err := Correlate(ps, tpl, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, m.Rejected)
}

func TestCorrelateForcedRedshiftSkipsPeakSearch(t *testing.T) {
	nw := 256
	flux := syntheticFlat(nw, 0)
	ps := &snidtypes.ProcessedSpectrum{
		TaperedFlux: flux,
		FlatFlux:    flux,
		LeftEdge:    0,
		RightEdge:   nw - 1,
		Grid:        snidtypes.GridParams{NW: nw, W0: 2500, W1: 10000, DWLog: math.Log(10000.0/2500.0) / float64(nw)},
	}
	tpl := &snidtypes.Template{Name: "self", FlatFlux: flux}

	cfg := DefaultConfig()
	forcedZ := 0.05
	cfg.ForcedRedshift = &forcedZ

	m, err := Correlate(ps, tpl, cfg)
	require.NoError(t, err)
	assert.InDelta(t, forcedZ, m.Redshift, 0.01)
}

func TestParabolicPeakClampsLargeDelta(t *testing.T) {
	corrAt := func(i int) float64 {
		switch i {
		case 4:
			return 1.0
		case 5:
			return 100.0
		case 6:
			return 300.0
		}
		return 0
	}
	// Unclamped, these three points put the vertex about 1.5 bins left of 5.
	pos := parabolicPeak(corrAt, 5)
	assert.InDelta(t, 5.0, pos, 1.0)
}

func TestOverlapFractionFullOverlap(t *testing.T) {
	f := overlapFraction(0, 255, 256, 0)
	assert.InDelta(t, 1.0, f, 1e-9)
}

func TestOverlapFractionNoOverlap(t *testing.T) {
	f := overlapFraction(0, 10, 256, 300)
	assert.Equal(t, 0.0, f)
}

func TestCosineSimilarityShiftedIdentical(t *testing.T) {
	s := syntheticFlat(128, 0)
	cos := cosineSimilarityShifted(s, s, 0)
	assert.InDelta(t, 1.0, cos, 1e-6)
}
