package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/snid-go/internal/grid"
	"github.com/cwbudde/snid-go/internal/snidtypes"
)

func syntheticSpectrum(n int) snidtypes.RawSpectrum {
	wave := make([]float64, n)
	flux := make([]float64, n)
	for i := 0; i < n; i++ {
		w := 3500.0 + float64(i)*4.0
		wave[i] = w
		continuum := 1.0 + 0.3*math.Sin(w/1500.0)
		line := 0.4 * math.Exp(-math.Pow(w-5800, 2)/(2*40*40))
		flux[i] = continuum + line
	}
	return snidtypes.RawSpectrum{Wave: wave, Flux: flux}
}

func TestRunProducesFixedLengthOutput(t *testing.T) {
	g := grid.NewDefault()
	raw := syntheticSpectrum(1200)
	cfg := DefaultConfig()

	ps, err := Run(g, raw, cfg)
	require.NoError(t, err)
	assert.Equal(t, g.NW(), len(ps.LogWave))
	assert.Equal(t, g.NW(), len(ps.FlatFlux))
	assert.Equal(t, g.NW(), len(ps.TaperedFlux))
	assert.Equal(t, g.NW(), len(ps.Continuum))
	assert.True(t, ps.LeftEdge <= ps.RightEdge)
	assert.NotEmpty(t, ps.Trace)
}

func TestRunRejectsNonMonotonicWavelength(t *testing.T) {
	g := grid.NewDefault()
	raw := snidtypes.RawSpectrum{Wave: []float64{4000, 4001, 4000.5, 4002}, Flux: []float64{1, 1, 1, 1}}

	_, err := Run(g, raw, DefaultConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, snidtypes.ErrInvalidSpectrum)
}

func TestRunRejectsNilGrid(t *testing.T) {
	raw := syntheticSpectrum(200)
	_, err := Run(nil, raw, DefaultConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, snidtypes.ErrGridUninitialized)
}

func TestRunRejectsBadApodizePercent(t *testing.T) {
	g := grid.NewDefault()
	raw := syntheticSpectrum(200)
	cfg := DefaultConfig()
	cfg.ApodizePercent = 90

	_, err := Run(g, raw, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, snidtypes.ErrInvalidParameter)
}

func TestApodizeTapersEdgesOnly(t *testing.T) {
	flat := make([]float64, 100)
	for i := range flat {
		flat[i] = 1.0
	}
	out := apodize(flat, 10, 89, 10)

	assert.Less(t, out[10], 1.0)
	assert.Greater(t, out[11], 0.0)
	assert.InDelta(t, 1.0, out[50], 1e-9)
	assert.Less(t, out[89], 1.0)
}

func TestLogRebinConservesFluxApproximately(t *testing.T) {
	g, err := grid.New(512, 4000, 8000)
	require.NoError(t, err)
	raw := syntheticSpectrum(2000)

	out := logRebin(g, raw.Wave, raw.Flux)
	var activeSum float64
	var active int
	for _, v := range out {
		if v != 0 {
			activeSum += v
			active++
		}
	}
	assert.Greater(t, active, 0)
	assert.Greater(t, activeSum, 0.0)
}

func TestScaleToMeanNeverProducesNaN(t *testing.T) {
	out := scaleToMean([]float64{0, 0, 0})
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
	}
}

func TestSavgolFilterFixedNoOpOnShortWindow(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	out := savgolFilterFixed(data, 1, 3)
	assert.Equal(t, data, out)
}

func TestSavgolFilterFixedSmooths(t *testing.T) {
	data := make([]float64, 50)
	for i := range data {
		if i%2 == 0 {
			data[i] = 1.0
		} else {
			data[i] = -1.0
		}
	}
	out := savgolFilterFixed(data, 9, 2)
	require.Len(t, out, len(data))
	var sum float64
	for _, v := range out {
		sum += math.Abs(v)
	}
	var rawSum float64
	for _, v := range data {
		rawSum += math.Abs(v)
	}
	assert.Less(t, sum, rawSum)
}

func TestFitContinuumSplineZeroesOutsideActiveRange(t *testing.T) {
	flux := make([]float64, 200)
	for i := 40; i < 160; i++ {
		flux[i] = 1.0 + 0.1*math.Sin(float64(i)/10)
	}
	res := fitContinuum(flux, ContinuumConfig{Method: ContinuumSpline, KnotNum: 8})
	for i := 0; i < 40; i++ {
		assert.Zero(t, res.Flat[i])
	}
	for i := 160; i < 200; i++ {
		assert.Zero(t, res.Flat[i])
	}
}

func TestFitContinuumGaussianProducesFiniteOutput(t *testing.T) {
	flux := make([]float64, 300)
	for i := 30; i < 270; i++ {
		flux[i] = 2.0 + 0.5*math.Sin(float64(i)/20)
	}
	res := fitContinuum(flux, ContinuumConfig{Method: ContinuumGaussian})
	for i, v := range res.Flat {
		assert.Falsef(t, math.IsNaN(v), "flat[%d] is NaN", i)
		assert.Falsef(t, math.IsInf(v, 0), "flat[%d] is Inf", i)
	}
}

func TestAutoGaussianSigmaClamped(t *testing.T) {
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 1.0
	}
	sigma := autoGaussianSigma(flat)
	assert.GreaterOrEqual(t, sigma, 10.0)
	assert.LessOrEqual(t, sigma, 100.0)
}

func TestClipABandRemovesRange(t *testing.T) {
	wave := []float64{7000, 7600, 7620, 7700}
	flux := []float64{1, 1, 1, 1}
	outW, outF := clipABand(wave, flux)
	assert.Equal(t, []float64{7000, 7700}, outW)
	assert.Equal(t, []float64{1, 1}, outF)
}

func TestClipHostEmissionLinesDisabledWhenZNegative(t *testing.T) {
	wave := []float64{3727.3, 5000}
	flux := []float64{1, 1}
	outW, outF := clipHostEmissionLines(wave, flux, -1, 10)
	assert.Equal(t, wave, outW)
	assert.Equal(t, flux, outF)
}
