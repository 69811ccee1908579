package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

func TestNewRejectsInvertedRange(t *testing.T) {
	_, err := New(1024, 9000, 3500)
	require.Error(t, err)
	assert.ErrorIs(t, err, snidtypes.ErrInvalidGrid)
}

func TestNewRejectsTooFewBins(t *testing.T) {
	_, err := New(8, 3500, 9000)
	require.Error(t, err)
	assert.ErrorIs(t, err, snidtypes.ErrInvalidGrid)
}

func TestNewDefaultMatchesConstants(t *testing.T) {
	g := NewDefault()
	assert.Equal(t, DefaultNW, g.NW())
	assert.Equal(t, DefaultW0, g.W0())
	assert.Equal(t, DefaultW1, g.W1())
}

func TestWavelengthToBinInvertsBinCenter(t *testing.T) {
	g := NewDefault()
	for i := 0; i < g.NW(); i += 97 {
		center := g.BinCenter(i)
		back := g.WavelengthToBin(center)
		assert.InDelta(t, float64(i), back, 1e-2)
	}
}

func TestBinEdgesBracketBinCenter(t *testing.T) {
	g := NewDefault()
	left, right := g.BinEdges(500)
	center := g.BinCenter(500)
	assert.Less(t, left, center)
	assert.Less(t, center, right)
}

func TestSameAsDetectsMismatch(t *testing.T) {
	g := NewDefault()
	assert.True(t, g.SameAs(g.Params()))

	other, err := New(512, 3500, 9000)
	require.NoError(t, err)
	assert.False(t, g.SameAs(other.Params()))
}

func TestDWLogDerivedFromRange(t *testing.T) {
	g, err := New(1024, 3500, 9000)
	require.NoError(t, err)
	expected := math.Log(9000.0/3500.0) / 1024
	assert.InDelta(t, expected, g.DWLog(), 1e-12)
}
