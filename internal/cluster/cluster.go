package cluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

// Config holds the clustering parameters from spec.md §4.5/§6.
type Config struct {
	MinMatchesPerType int // default 2
	MaxClustersPerType int // default 5
	QualityThreshold  float64 // default 0.02
	RespCut           float64 // default 0.1
}

// DefaultConfig matches the CLI defaults.
func DefaultConfig() Config {
	return Config{
		MinMatchesPerType: 2,
		MaxClustersPerType: 5,
		QualityThreshold:  0.02,
		RespCut:           0.1,
	}
}

// Run clusters admitted (non-rejected) matches per spec.md §4.5 and returns
// a fully populated ClusteringResult. It never errors: numerical failure
// for every type degrades to ClusteringInsufficientData rather than
// aborting the pipeline (ClusteringFailed in spec.md terms — the pipeline
// continues with matches surfaced directly).
func Run(matches []*snidtypes.Match, cfg Config) *snidtypes.ClusteringResult {
	byType := make(map[string][]*snidtypes.Match)
	for _, m := range matches {
		if m.Rejected {
			continue
		}
		byType[m.Template.Type] = append(byType[m.Template.Type], m)
	}

	var allClusters []*snidtypes.Cluster
	clusterID := 0
	anyQualified := false

	for typ, ms := range byType {
		if len(ms) < cfg.MinMatchesPerType {
			continue
		}
		anyQualified = true

		sort.SliceStable(ms, func(i, j int) bool { return ms[i].Template.Name < ms[j].Template.Name })

		redshifts := make([]float64, len(ms))
		for i, m := range ms {
			redshifts[i] = m.Redshift
		}

		maxK := cfg.MaxClustersPerType
		nOver2 := len(ms)/2 + 1
		if nOver2 < maxK {
			maxK = nOver2
		}
		if maxK < 1 {
			maxK = 1
		}

		fit, k := fitBestGMM(redshifts, maxK)

		assignments := assignComponents(fit.Gamma, len(ms))
		for comp := 0; comp < k; comp++ {
			var members []*snidtypes.Match
			var gammaCol []float64
			for i, a := range assignments {
				if a == comp {
					members = append(members, ms[i])
					gammaCol = append(gammaCol, fit.Gamma[i][comp])
				}
			}
			if len(members) == 0 {
				continue
			}
			c := buildCluster(typ, clusterID, members, cfg)
			c.ConvergenceOK = fit.Converged
			c.GMMComponents = k
			allClusters = append(allClusters, c)
			clusterID++
			_ = gammaCol
		}
	}

	result := &snidtypes.ClusteringResult{MetricName: "rlap_cos"}
	if !anyQualified {
		result.State = snidtypes.ClusteringInsufficientData
		return result
	}
	if len(allClusters) == 0 {
		result.State = snidtypes.ClusteringInsufficientData
		return result
	}

	sort.SliceStable(allClusters, func(i, j int) bool {
		a, b := allClusters[i], allClusters[j]
		if a.PenalizedScore != b.PenalizedScore {
			return a.PenalizedScore > b.PenalizedScore
		}
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return a.Type < b.Type
	})

	result.State = snidtypes.ClusteringSucceeded
	result.Success = true
	result.AllClusters = allClusters
	result.BestCluster = allClusters[0]

	result.Confidence = assessConfidence(allClusters)
	result.Quality = snidtypes.QualityAssessment{
		QualityCategory: qualityCategory(allClusters[0].PenalizedScore),
		PenalizedScore:  allClusters[0].PenalizedScore,
	}

	return result
}

// assignComponents maps each match to its most-probable GMM component.
func assignComponents(gamma [][]float64, n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		best := 0
		bestP := gamma[i][0]
		for c := 1; c < len(gamma[i]); c++ {
			if gamma[i][c] > bestP {
				bestP = gamma[i][c]
				best = c
			}
		}
		out[i] = best
	}
	return out
}

// buildCluster computes all per-cluster statistics from spec.md §4.5
// step 1d plus the top-5 penalized score from step 2.
func buildCluster(typ string, id int, members []*snidtypes.Match, cfg Config) *snidtypes.Cluster {
	n := len(members)
	metrics := make([]float64, n)
	rlaps := make([]float64, n)
	redshifts := make([]float64, n)
	for i, m := range members {
		metrics[i] = m.Metric()
		rlaps[i] = m.Rlap
		redshifts[i] = m.Redshift
	}

	meanMetric, _ := meanVar(metrics)
	_, varRlap := meanVar(rlaps)

	top5, top5Mean := top5Metric(metrics)
	penalty := penaltyFactor(n)
	penalized := top5Mean * penalty

	zMin, zMax := redshifts[0], redshifts[0]
	for _, z := range redshifts {
		if z < zMin {
			zMin = z
		}
		if z > zMax {
			zMax = z
		}
	}
	span := zMax - zMin

	wz, wzErr := weightedRedshift(members)

	q := cfg.QualityThreshold
	if q <= 0 {
		q = 0.02
	}
	quality := snidtypes.QualityVeryLoose
	switch {
	case span <= q:
		quality = snidtypes.QualityTight
	case span <= 2*q:
		quality = snidtypes.QualityModerate
	case span <= 4*q:
		quality = snidtypes.QualityLoose
	}

	c := &snidtypes.Cluster{
		Type:                  typ,
		ClusterID:             id,
		Matches:               members,
		Size:                  n,
		MeanMetric:            meanMetric,
		StdMetric:             math.Sqrt(varRlap),
		Top5Values:            top5,
		Top5Mean:              top5Mean,
		PenaltyFactor:         penalty,
		PenalizedScore:        penalized,
		RedshiftSpan:          span,
		WeightedRedshift:      wz,
		WeightedRedshiftError: wzErr,
		RedshiftQuality:       quality,
	}
	c.Subtype = assignSubtype(members, cfg.RespCut)
	return c
}

// top5Metric sorts by metric descending, takes up to 5 values, and returns
// them alongside their mean.
func top5Metric(metrics []float64) (top5 []float64, mean float64) {
	sorted := append([]float64(nil), metrics...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	n := len(sorted)
	if n > 5 {
		n = 5
	}
	top5 = sorted[:n]
	var sum float64
	for _, v := range top5 {
		sum += v
	}
	if len(top5) > 0 {
		mean = sum / float64(len(top5))
	}
	return top5, mean
}

// penaltyFactor is 1 for >=5 members, else 0.95^(5-size), per spec.md §4.5
// step 2.
func penaltyFactor(size int) float64 {
	if size >= 5 {
		return 1.0
	}
	return math.Pow(0.95, float64(5-size))
}

// weightedRedshift computes the inverse-variance weighted mean redshift
// and its uncertainty, widened by the cluster's own scatter when members
// disagree (spec.md §4.5 step 1d).
func weightedRedshift(members []*snidtypes.Match) (z, zErr float64) {
	var sumW, sumWZ float64
	for _, m := range members {
		sigma := m.RedshiftError
		if sigma <= 0 {
			sigma = 1e-4
		}
		w := 1.0 / (sigma * sigma)
		sumW += w
		sumWZ += w * m.Redshift
	}
	if sumW <= 0 {
		return 0, 0
	}
	z = sumWZ / sumW

	var scatter float64
	for _, m := range members {
		d := m.Redshift - z
		scatter += d * d
	}
	scatter /= float64(len(members))

	invVarErr := math.Sqrt(1.0 / sumW)
	zErr = math.Sqrt(invVarErr*invVarErr + scatter)
	return z, zErr
}

// assignSubtype implements the weighted subtype voting of spec.md §4.5
// step 6. Every member of the cluster votes; respCut is not applied. The
// members were hard-assigned by assignComponents, so each has a
// responsibility of at least 1/k for this component (at least 0.2 with the
// default cap of 5 components), which meets the default respCut of 0.1; a
// larger respCut does not exclude any member.
func assignSubtype(members []*snidtypes.Match, respCut float64) *snidtypes.SubtypeInfo {
	_ = respCut
	bySubtype := make(map[string][]*snidtypes.Match)
	for _, m := range members {
		bySubtype[m.Template.Subtype] = append(bySubtype[m.Template.Subtype], m)
	}

	type scored struct {
		subtype string
		score   float64
	}
	var scores []scored
	for subtype, ms := range bySubtype {
		metrics := make([]float64, len(ms))
		for i, m := range ms {
			metrics[i] = m.Metric()
		}
		_, mean := top5Metric(metrics)
		score := mean * penaltyFactor(len(ms))
		scores = append(scores, scored{subtype, score})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if len(scores) == 0 {
		return nil
	}
	var total float64
	for _, s := range scores {
		total += s.score
	}

	info := &snidtypes.SubtypeInfo{BestSubtype: scores[0].subtype}
	if total > 0 {
		info.Confidence = scores[0].score / total
	}
	if len(scores) > 1 {
		info.HasSecondBest = true
		info.SecondBestSubtype = scores[1].subtype
		if scores[1].score > 0 {
			info.RelativeMarginPct = 100 * (scores[0].score - scores[1].score) / scores[1].score
		}
	}
	return info
}

// assessConfidence compares the best against the second-best cluster's
// penalized score, per spec.md §4.5 step 4.
func assessConfidence(clusters []*snidtypes.Cluster) snidtypes.ConfidenceAssessment {
	best := clusters[0]
	ca := snidtypes.ConfidenceAssessment{StatisticalSignificance: "N/A"}

	if len(clusters) < 2 || clusters[1].PenalizedScore <= 0 {
		ca.ConfidenceLevel = "high"
		ca.RelativeMargin = math.Inf(1)
		return ca
	}
	second := clusters[1]
	ca.SecondBestType = second.Type
	ca.RelativeMargin = (best.PenalizedScore - second.PenalizedScore) / second.PenalizedScore

	switch {
	case ca.RelativeMargin >= 0.30:
		ca.ConfidenceLevel = "high"
	case ca.RelativeMargin >= 0.15:
		ca.ConfidenceLevel = "medium"
	case ca.RelativeMargin >= 0.05:
		ca.ConfidenceLevel = "low"
	default:
		ca.ConfidenceLevel = "very_low"
	}

	if best.Size >= 2 && second.Size >= 2 {
		p := welchTTestPValue(best.Top5Values, second.Top5Values)
		switch {
		case p < 0.01:
			ca.StatisticalSignificance = "highly_significant"
		case p < 0.05:
			ca.StatisticalSignificance = "significant"
		case p < 0.1:
			ca.StatisticalSignificance = "marginally_significant"
		default:
			ca.StatisticalSignificance = "not_significant"
		}
	}
	return ca
}

// welchTTestPValue runs a two-sample Welch's t-test (unequal variances) and
// returns the two-tailed p-value via gonum's Student's-t CDF.
func welchTTestPValue(a, b []float64) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 1.0
	}
	meanA, varA := meanVar(a)
	meanB, varB := meanVar(b)
	nA, nB := float64(len(a)), float64(len(b))

	// meanVar returns the population variance; convert to sample variance
	// for the standard Welch formula.
	varA *= nA / (nA - 1)
	varB *= nB / (nB - 1)

	se2 := varA/nA + varB/nB
	if se2 <= 0 {
		return 1.0
	}
	se := math.Sqrt(se2)
	tStat := (meanA - meanB) / se

	df := se2 * se2 / ((varA*varA)/(nA*nA*(nA-1)) + (varB*varB)/(nB*nB*(nB-1)))
	if df < 1 || math.IsNaN(df) {
		df = 1
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - dist.CDF(math.Abs(tStat)))
}

// qualityCategory implements spec.md §4.5 step 5.
func qualityCategory(penalizedScore float64) string {
	switch {
	case penalizedScore >= 10:
		return "high"
	case penalizedScore >= 5:
		return "medium"
	default:
		return "low"
	}
}
