// Package result implements the ResultAssembler (spec.md C6): turning raw
// Matches plus an optional ClusteringResult into a final AnalysisResult.
package result

import (
	"sort"
	"time"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

// Config holds the thresholds shared with the Correlator's rejection test
// and the output-shaping limit from spec.md §4.6/§6.
type Config struct {
	RlapMin           float64
	LapMin            float64
	MaxOutputTemplates int
}

// DefaultConfig matches the CLI defaults.
func DefaultConfig() Config {
	return Config{RlapMin: 5.0, LapMin: 0.3, MaxOutputTemplates: 10}
}

// Assemble builds the final AnalysisResult from every Match the Correlator
// produced (rejected or not) and an optional ClusteringResult. It never
// errors; an empty filtered_matches set is reported via Success=false per
// spec.md §4.6's NoMatches semantics, the caller surfaces that as the
// ErrNoMatches failure mode.
func Assemble(ps *snidtypes.ProcessedSpectrum, matches []*snidtypes.Match, cr *snidtypes.ClusteringResult, start time.Time, cfg Config) *snidtypes.AnalysisResult {
	filtered := filterAndSort(matches, cfg)

	ar := &snidtypes.AnalysisResult{
		ProcessedSpectrum: ps,
		ClusteringResults: cr,
		FilteredMatches:   filtered,
		Runtime:           time.Since(start),
	}
	if len(filtered) == 0 {
		ar.Success = false
		return ar
	}

	if cr != nil && cr.Success && cr.BestCluster != nil {
		winner := selectedCluster(cr)
		ar.BestMatches = intersectSorted(filtered, winner)
		ar.ConsensusType = winner.Type
		if winner.Subtype != nil {
			ar.BestSubtype = winner.Subtype.BestSubtype
		}
		ar.Redshift = winner.WeightedRedshift
		ar.RedshiftError = winner.WeightedRedshiftError
		if len(winner.Matches) > 0 {
			top := topRanked(winner.Matches)
			ar.Rlap = top.Rlap
			ar.TemplateName = top.Template.Name
			ar.ConsensusAgeDays = consensusAge(winner.Matches)
		}
	} else {
		top := filtered[0]
		ar.BestMatches = filtered
		ar.ConsensusType = top.Template.Type
		ar.BestSubtype = top.Template.Subtype
		ar.Redshift = top.Redshift
		ar.RedshiftError = top.RedshiftError
		ar.Rlap = top.Rlap
		ar.TemplateName = top.Template.Name
		ar.ConsensusAgeDays = top.Template.AgeDays
	}
	ar.TypeFractions = fractions(ar.BestMatches, func(m *snidtypes.Match) string { return m.Template.Type })
	ar.SubtypeFractions = fractions(ar.BestMatches, func(m *snidtypes.Match) string { return m.Template.Subtype })
	ar.Success = true
	return ar
}

// selectedCluster returns the user override if present, else the best
// cluster, per spec.md §9's choose_cluster operation (UserSelectedCluster
// never overwrites BestCluster, it only shifts which one downstream
// consumers see as "the" winner).
func selectedCluster(cr *snidtypes.ClusteringResult) *snidtypes.Cluster {
	if cr.UserSelectedCluster != nil {
		return cr.UserSelectedCluster
	}
	return cr.BestCluster
}

// ChooseCluster is the pure reclassify operation from spec.md §9: given a
// ClusteringResult and an index into AllClusters, returns a new
// AnalysisResult rederived against that cluster as the user selection. It
// does not mutate cr.
func ChooseCluster(ps *snidtypes.ProcessedSpectrum, matches []*snidtypes.Match, cr *snidtypes.ClusteringResult, index int, start time.Time, cfg Config) *snidtypes.AnalysisResult {
	if cr == nil || index < 0 || index >= len(cr.AllClusters) {
		return Assemble(ps, matches, cr, start, cfg)
	}
	updated := *cr
	updated.UserSelectedCluster = cr.AllClusters[index]
	return Assemble(ps, matches, &updated, start, cfg)
}

// filterAndSort enforces rlapmin/lapmin, sorts by the best metric
// descending, and truncates to MaxOutputTemplates, per spec.md §4.6.
func filterAndSort(matches []*snidtypes.Match, cfg Config) []*snidtypes.Match {
	var out []*snidtypes.Match
	for _, m := range matches {
		if m.Rejected {
			continue
		}
		if m.Rlap < cfg.RlapMin || m.Lap < cfg.LapMin {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Metric() > out[j].Metric() })

	limit := cfg.MaxOutputTemplates
	if limit <= 0 {
		limit = 10
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// intersectSorted returns the subset of filtered whose template is a
// member of cluster, preserving filtered's order.
func intersectSorted(filtered []*snidtypes.Match, cluster *snidtypes.Cluster) []*snidtypes.Match {
	members := make(map[*snidtypes.Match]bool, len(cluster.Matches))
	for _, m := range cluster.Matches {
		members[m] = true
	}
	var out []*snidtypes.Match
	for _, m := range filtered {
		if members[m] {
			out = append(out, m)
		}
	}
	return out
}

// topRanked returns the member with the highest metric.
func topRanked(matches []*snidtypes.Match) *snidtypes.Match {
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Metric() > best.Metric() {
			best = m
		}
	}
	return best
}

// consensusAge is the rlap-weighted mean age (days) across cluster members,
// the "ConsensusAgeDays" supplemented feature from SPEC_FULL.md.
func consensusAge(matches []*snidtypes.Match) float64 {
	var sumW, sumWA float64
	for _, m := range matches {
		w := m.Rlap
		if w <= 0 {
			continue
		}
		sumW += w
		sumWA += w * m.Template.AgeDays
	}
	if sumW <= 0 {
		return 0
	}
	return sumWA / sumW
}

// fractions normalizes member counts (keyed by key(m)) to sum to 1 within
// the given set, per spec.md §4.6's type_fractions/subtype_fractions.
func fractions(matches []*snidtypes.Match, key func(*snidtypes.Match) string) map[string]float64 {
	counts := make(map[string]int)
	for _, m := range matches {
		counts[key(m)]++
	}
	total := len(matches)
	out := make(map[string]float64, len(counts))
	if total == 0 {
		return out
	}
	for k, c := range counts {
		out[k] = float64(c) / float64(total)
	}
	return out
}
