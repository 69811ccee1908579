package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

func makeMatch(typ, subtype string, z, rlap float64) *snidtypes.Match {
	return &snidtypes.Match{
		Template: &snidtypes.Template{Type: typ, Subtype: subtype, Name: typ + "-" + subtype},
		Redshift: z, RedshiftError: 0.001, Rlap: rlap, Lap: 0.9,
		HasRlapCos: true, RlapCos: rlap,
	}
}

func TestRunInsufficientDataWhenNoTypeQualifies(t *testing.T) {
	matches := []*snidtypes.Match{makeMatch("Ia", "norm", 0.02, 10)}
	res := Run(matches, DefaultConfig())
	assert.Equal(t, snidtypes.ClusteringInsufficientData, res.State)
	assert.False(t, res.Success)
}

func TestRunSucceedsWithTwoTypes(t *testing.T) {
	var matches []*snidtypes.Match
	for i := 0; i < 10; i++ {
		matches = append(matches, makeMatch("Ia", "norm", 0.0200+float64(i)*0.0001, 15+float64(i)*0.1))
	}
	for i := 0; i < 8; i++ {
		matches = append(matches, makeMatch("II", "P", 0.0200+float64(i)*0.0001, 9+float64(i)*0.1))
	}

	res := Run(matches, DefaultConfig())
	require.Equal(t, snidtypes.ClusteringSucceeded, res.State)
	assert.True(t, res.Success)
	require.NotNil(t, res.BestCluster)
	assert.Equal(t, "Ia", res.BestCluster.Type)
	assert.NotEmpty(t, res.Confidence.ConfidenceLevel)
}

func TestRunSkipsRejectedMatches(t *testing.T) {
	m1 := makeMatch("Ia", "norm", 0.02, 20)
	m2 := makeMatch("Ia", "norm", 0.021, 18)
	rejected := makeMatch("Ia", "norm", 0.5, 50)
	rejected.Rejected = true

	res := Run([]*snidtypes.Match{m1, m2, rejected}, DefaultConfig())
	require.Equal(t, snidtypes.ClusteringSucceeded, res.State)
	for _, c := range res.AllClusters {
		for _, m := range c.Matches {
			assert.False(t, m.Rejected)
		}
	}
}

func TestPenaltyFactorMonotonic(t *testing.T) {
	assert.Equal(t, 1.0, penaltyFactor(5))
	assert.Equal(t, 1.0, penaltyFactor(10))
	assert.Less(t, penaltyFactor(1), penaltyFactor(4))
}

func TestQualityCategoryThresholds(t *testing.T) {
	assert.Equal(t, "high", qualityCategory(10))
	assert.Equal(t, "medium", qualityCategory(5))
	assert.Equal(t, "low", qualityCategory(4.9))
}

func TestWeightedRedshiftWidensWithScatter(t *testing.T) {
	tight := []*snidtypes.Match{
		{Redshift: 0.020, RedshiftError: 0.001},
		{Redshift: 0.0201, RedshiftError: 0.001},
	}
	scattered := []*snidtypes.Match{
		{Redshift: 0.010, RedshiftError: 0.001},
		{Redshift: 0.030, RedshiftError: 0.001},
	}
	_, errTight := weightedRedshift(tight)
	_, errScattered := weightedRedshift(scattered)
	assert.Less(t, errTight, errScattered)
}

func TestFitBestGMMPicksSingleComponentForUnimodalData(t *testing.T) {
	x := []float64{0.02, 0.0201, 0.0199, 0.0202, 0.0198}
	_, k := fitBestGMM(x, 3)
	assert.Equal(t, 1, k)
}
