package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/snid-go/internal/config"
	"github.com/cwbudde/snid-go/internal/grid"
	"github.com/cwbudde/snid-go/internal/snidtypes"
	"github.com/cwbudde/snid-go/internal/template"
)

func syntheticFlat(nw int, phase float64) []float64 {
	out := make([]float64, nw)
	for i := range out {
		out[i] = math.Sin(2*math.Pi*float64(i)/float64(nw)*8 + phase)
	}
	return out
}

func rawFromFlat(g *grid.Grid, flat []float64) snidtypes.RawSpectrum {
	wave := make([]float64, g.NW())
	flux := make([]float64, g.NW())
	for i := range wave {
		wave[i] = g.BinCenter(i)
		flux[i] = 1.0 + 0.01*flat[i]
	}
	return snidtypes.RawSpectrum{Wave: wave, Flux: flux}
}

func TestRunEndToEndProducesSuccess(t *testing.T) {
	g, err := grid.New(256, 3500, 9000)
	require.NoError(t, err)

	flat := syntheticFlat(g.NW(), 0)
	tpl := &snidtypes.Template{Name: "t1", Type: "Ia", Subtype: "norm", AgeDays: 2, FlatFlux: flat}
	store := template.NewMemoryStore([]*snidtypes.Template{tpl})

	raw := rawFromFlat(g, flat)

	cfg := config.Merge(&config.File{}, &config.File{})
	cfg.Correlate.RlapMin = 0
	cfg.Correlate.LapMin = 0
	cfg.Result.RlapMin = 0
	cfg.Result.LapMin = 0
	cfg.Cluster.MinMatchesPerType = 100 // force "no clustering" path deterministically

	opts := Options{Grid: g, Store: store, Config: cfg, Workers: 2}

	ar, err := Run(context.Background(), raw, opts)
	require.NoError(t, err)
	assert.True(t, ar.Success)
	assert.Equal(t, "Ia", ar.ConsensusType)
}

func TestRunReportsNoMatchesWhenThresholdsUnmet(t *testing.T) {
	g := grid.NewDefault()
	flatA := syntheticFlat(g.NW(), 0)
	flatB := syntheticFlat(g.NW(), math.Pi) // anti-correlated, should fail rlapmin

	tpl := &snidtypes.Template{Name: "t1", Type: "Ia", Subtype: "norm", FlatFlux: flatB}
	store := template.NewMemoryStore([]*snidtypes.Template{tpl})
	raw := rawFromFlat(g, flatA)

	cfg := config.Merge(&config.File{}, &config.File{})
	opts := Options{Grid: g, Store: store, Config: cfg, Workers: 1}

	_, err := Run(context.Background(), raw, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, snidtypes.ErrNoMatches)
}

func TestRunHonorsCancellation(t *testing.T) {
	g := grid.NewDefault()
	flat := syntheticFlat(g.NW(), 0)
	var templates []*snidtypes.Template
	for i := 0; i < 50; i++ {
		templates = append(templates, &snidtypes.Template{Name: "t", Type: "Ia", FlatFlux: flat})
	}
	store := template.NewMemoryStore(templates)
	raw := rawFromFlat(g, flat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config.Merge(&config.File{}, &config.File{})
	opts := Options{Grid: g, Store: store, Config: cfg, Workers: 2}

	ar, err := Run(ctx, raw, opts)
	require.NoError(t, err)
	assert.True(t, ar.Cancelled)
	assert.False(t, ar.Success)
}

func TestRunFailsWhenNoTemplatesAdmitted(t *testing.T) {
	g := grid.NewDefault()
	store := template.NewMemoryStore(nil)
	raw := rawFromFlat(g, syntheticFlat(g.NW(), 0))

	cfg := config.Merge(&config.File{}, &config.File{})
	opts := Options{Grid: g, Store: store, Config: cfg, Filter: template.Filter{TypeWhitelist: []string{"nonexistent"}}}

	_, err := Run(context.Background(), raw, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, snidtypes.ErrTemplatesNotFound)
}

func TestRunWithTimeoutContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	g := grid.NewDefault()
	store := template.NewMemoryStore([]*snidtypes.Template{{Name: "t", Type: "Ia", FlatFlux: syntheticFlat(g.NW(), 0)}})
	raw := rawFromFlat(g, syntheticFlat(g.NW(), 0))

	cfg := config.Merge(&config.File{}, &config.File{})
	_, err := Run(ctx, raw, Options{Grid: g, Store: store, Config: cfg})
	// Either succeeds before the timeout fires, or reports NoMatches/cancel;
	// it must never panic or hang.
	_ = err
}
