// Package snidtypes holds the data records shared across pipeline stages:
// plain structs with named fields rather than dynamic dictionaries, per the
// re-architecture notes in spec.md §9.
package snidtypes

import "time"

// RawSpectrum is an ordered (wavelength, flux) pair list, monotonically
// increasing in wavelength, with only finite values once ingestion-time
// cleaning has run.
type RawSpectrum struct {
	Wave []float64
	Flux []float64
	Err  []float64 // optional per-point error; nil if not supplied
}

// GridParams is the process-wide, immutable-after-init log-wavelength grid.
type GridParams struct {
	NW    int
	W0    float64
	W1    float64
	DWLog float64
}

// PreprocessStep records one applied preprocessing operation for the trace.
type PreprocessStep struct {
	Name   string
	Params map[string]any
}

// ProcessedSpectrum is the fixed-length NW record produced by the
// preprocessor. Outside [LeftEdge, RightEdge] every *_Flux array is exactly
// zero.
type ProcessedSpectrum struct {
	LogWave      []float64
	LogFlux      []float64
	FlatFlux     []float64
	TaperedFlux  []float64
	Continuum    []float64
	LeftEdge     int
	RightEdge    int
	Grid         GridParams
	Trace        []PreprocessStep
	ForcedZTrace bool // true when a forced-redshift step was recorded
}

// Template is an immutable reference spectrum already on the canonical log
// grid, owned by a TemplateStore.
type Template struct {
	Name      string
	Type      string
	Subtype   string
	AgeDays   float64
	Phase     string
	Redshift  float64
	FlatFlux  []float64
	FluxFlux  []float64
	Continuum []float64
}

// Match is one template's correlation result against a ProcessedSpectrum.
// Produced by the Correlator; never mutated after emission except that
// collections of Matches may be sorted/filtered by later stages.
type Match struct {
	Template         *Template
	Redshift         float64
	RedshiftError    float64
	Rlap             float64
	Lap              float64
	HasRlapCos       bool
	RlapCos          float64
	Correlation      []float64 // optional diagnostic series
	CorrelationZAxis []float64
	Rejected         bool
	RejectReason     string
}

// Metric returns the match's primary quality metric: rlap_cos when present,
// else rlap, per spec.md §4.4.
func (m *Match) Metric() float64 {
	if m.HasRlapCos {
		return m.RlapCos
	}
	return m.Rlap
}

// SubtypeInfo carries the winning-cluster weighted subtype vote.
type SubtypeInfo struct {
	BestSubtype         string
	Confidence          float64
	RelativeMarginPct   float64
	SecondBestSubtype   string
	HasSecondBest       bool
}

// RedshiftQuality categorizes a cluster's redshift span against the
// configured quality_threshold.
type RedshiftQuality string

const (
	QualityTight     RedshiftQuality = "tight"
	QualityModerate  RedshiftQuality = "moderate"
	QualityLoose     RedshiftQuality = "loose"
	QualityVeryLoose RedshiftQuality = "very_loose"
)

// Cluster groups Matches of one type assigned to one GMM component.
type Cluster struct {
	Type                     string
	ClusterID                int
	Matches                  []*Match
	Size                     int
	MeanMetric               float64
	StdMetric                float64
	Top5Values               []float64
	Top5Mean                 float64
	PenaltyFactor            float64
	PenalizedScore           float64
	RedshiftSpan             float64
	WeightedRedshift         float64
	WeightedRedshiftError    float64
	RedshiftQuality          RedshiftQuality
	Subtype                  *SubtypeInfo
	ConvergenceOK            bool
	GMMComponents            int
}

// ConfidenceAssessment compares the winning cluster against the runner-up.
type ConfidenceAssessment struct {
	ConfidenceLevel         string // high | medium | low | very_low
	RelativeMargin          float64
	SecondBestType          string
	StatisticalSignificance string // highly_significant | significant | marginally_significant | not_significant | N/A
}

// QualityAssessment categorizes the absolute strength of the winning cluster.
type QualityAssessment struct {
	QualityCategory string // high | medium | low
	PenalizedScore  float64
}

// ClusteringState is the state machine position of a ClusteringResult.
type ClusteringState string

const (
	ClusteringNotRun            ClusteringState = "not_run"
	ClusteringInsufficientData  ClusteringState = "insufficient_data"
	ClusteringSucceeded         ClusteringState = "succeeded"
)

// ClusteringResult is the output of the Clusterer.
type ClusteringResult struct {
	State              ClusteringState
	Success            bool
	AllClusters         []*Cluster
	BestCluster        *Cluster
	UserSelectedCluster *Cluster
	Quality            QualityAssessment
	Confidence         ConfidenceAssessment
	MetricName         string // "rlap_cos" or "rlap"
}

// AnalysisResult is the final, ranked classification output.
type AnalysisResult struct {
	Success           bool
	ConsensusType     string
	BestSubtype       string
	Redshift          float64
	RedshiftError     float64
	Rlap              float64
	TemplateName      string
	ConsensusAgeDays  float64
	BestMatches       []*Match
	FilteredMatches   []*Match
	TypeFractions     map[string]float64
	SubtypeFractions  map[string]float64
	ClusteringResults *ClusteringResult
	ProcessedSpectrum *ProcessedSpectrum
	Runtime           time.Duration
	Cancelled         bool
}
