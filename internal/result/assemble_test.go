package result

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

func match(name, typ, subtype string, rlap, lap, z float64) *snidtypes.Match {
	return &snidtypes.Match{
		Template: &snidtypes.Template{Name: name, Type: typ, Subtype: subtype, AgeDays: 3},
		Rlap:     rlap, Lap: lap, Redshift: z, RedshiftError: 0.001,
	}
}

func TestAssembleNoMatchesWhenAllBelowThreshold(t *testing.T) {
	matches := []*snidtypes.Match{match("a", "Ia", "norm", 1, 0.1, 0.02)}
	ar := Assemble(nil, matches, nil, time.Now(), DefaultConfig())
	assert.False(t, ar.Success)
	assert.Empty(t, ar.FilteredMatches)
}

func TestAssembleWithoutClusteringUsesTopMatch(t *testing.T) {
	matches := []*snidtypes.Match{
		match("a", "Ia", "norm", 10, 0.9, 0.02),
		match("b", "II", "P", 8, 0.8, 0.021),
	}
	ar := Assemble(nil, matches, nil, time.Now(), DefaultConfig())
	require.True(t, ar.Success)
	assert.Equal(t, "Ia", ar.ConsensusType)
	assert.Equal(t, "a", ar.TemplateName)
	assert.Len(t, ar.FilteredMatches, 2)
}

func TestAssembleRespectsMaxOutputTemplates(t *testing.T) {
	var matches []*snidtypes.Match
	for i := 0; i < 20; i++ {
		matches = append(matches, match("t", "Ia", "norm", 10+float64(i), 0.9, 0.02))
	}
	cfg := DefaultConfig()
	cfg.MaxOutputTemplates = 3
	ar := Assemble(nil, matches, nil, time.Now(), cfg)
	assert.Len(t, ar.FilteredMatches, 3)
}

func TestAssembleUsesClusterWeightedRedshift(t *testing.T) {
	m1 := match("a", "Ia", "norm", 15, 0.9, 0.0200)
	m2 := match("b", "Ia", "norm", 12, 0.9, 0.0201)
	matches := []*snidtypes.Match{m1, m2}

	cluster := &snidtypes.Cluster{
		Type: "Ia", Matches: matches, WeightedRedshift: 0.02005, WeightedRedshiftError: 0.0003,
		Subtype: &snidtypes.SubtypeInfo{BestSubtype: "norm"},
	}
	cr := &snidtypes.ClusteringResult{State: snidtypes.ClusteringSucceeded, Success: true, BestCluster: cluster, AllClusters: []*snidtypes.Cluster{cluster}}

	ar := Assemble(nil, matches, cr, time.Now(), DefaultConfig())
	require.True(t, ar.Success)
	assert.Equal(t, "Ia", ar.ConsensusType)
	assert.Equal(t, "norm", ar.BestSubtype)
	assert.InDelta(t, 0.02005, ar.Redshift, 1e-9)
	assert.Equal(t, "a", ar.TemplateName)
}

func TestChooseClusterOverridesWithoutMutatingOriginal(t *testing.T) {
	m1 := match("a", "Ia", "norm", 15, 0.9, 0.02)
	m2 := match("b", "II", "P", 14, 0.9, 0.03)
	c1 := &snidtypes.Cluster{Type: "Ia", Matches: []*snidtypes.Match{m1}, WeightedRedshift: 0.02}
	c2 := &snidtypes.Cluster{Type: "II", Matches: []*snidtypes.Match{m2}, WeightedRedshift: 0.03}
	cr := &snidtypes.ClusteringResult{State: snidtypes.ClusteringSucceeded, Success: true, BestCluster: c1, AllClusters: []*snidtypes.Cluster{c1, c2}}

	ar := ChooseCluster(nil, []*snidtypes.Match{m1, m2}, cr, 1, time.Now(), DefaultConfig())
	assert.Equal(t, "II", ar.ConsensusType)
	assert.Nil(t, cr.UserSelectedCluster)
}

func TestFractionsNormalizeToOne(t *testing.T) {
	matches := []*snidtypes.Match{
		match("a", "Ia", "norm", 10, 0.9, 0.02),
		match("b", "Ia", "91T", 10, 0.9, 0.02),
		match("c", "II", "P", 10, 0.9, 0.02),
	}
	f := fractions(matches, func(m *snidtypes.Match) string { return m.Template.Type })
	assert.InDelta(t, 2.0/3.0, f["Ia"], 1e-9)
	assert.InDelta(t, 1.0/3.0, f["II"], 1e-9)
}
