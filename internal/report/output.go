// Package report writes the IO component's (spec.md C7) output artifacts:
// the human-readable ".output" summary, optional ".fluxed"/".flattened"/
// ".correlation.dat" diagnostics, and per-template match files. Every write
// is atomic: write to a temp path in the same directory, then rename.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

// Verbosity selects which artifacts WriteAll produces, per spec.md §6.
type Verbosity string

const (
	Minimal  Verbosity = "minimal"
	Complete Verbosity = "complete"
)

// WriteAll writes <name>.output always, and in Complete mode also writes
// .fluxed/.flattened/.correlation.dat plus per-template files for the top 5
// matches. Failure mode: IOFailure. Each file is staged via a temp file and
// renamed only after a clean write, so no file is ever left half-written;
// files completed before a failing write are left in place.
func WriteAll(outDir, name string, ar *snidtypes.AnalysisResult, verbosity Verbosity) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating output dir %s: %v", snidtypes.ErrIOFailure, outDir, err)
	}

	if err := writeAtomic(filepath.Join(outDir, name+".output"), renderSummary(name, ar)); err != nil {
		return err
	}

	if verbosity != Complete || ar.ProcessedSpectrum == nil {
		return nil
	}

	if err := writeAtomic(filepath.Join(outDir, name+".fluxed"), renderTwoColumn(ar.ProcessedSpectrum.LogWave, ar.ProcessedSpectrum.LogFlux)); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(outDir, name+".flattened"), renderTwoColumn(ar.ProcessedSpectrum.LogWave, ar.ProcessedSpectrum.FlatFlux)); err != nil {
		return err
	}

	if len(ar.BestMatches) > 0 {
		top := ar.BestMatches[0]
		if len(top.CorrelationZAxis) > 0 {
			if err := writeAtomic(filepath.Join(outDir, name+".correlation.dat"), renderTwoColumn(top.CorrelationZAxis, top.Correlation)); err != nil {
				return err
			}
		}
	}

	n := len(ar.BestMatches)
	if n > 5 {
		n = 5
	}
	for i := 0; i < n; i++ {
		m := ar.BestMatches[i]
		fname := fmt.Sprintf("%s.match%d.%s.dat", name, i+1, sanitize(m.Template.Name))
		if err := writeAtomic(filepath.Join(outDir, fname), renderTwoColumn(ar.ProcessedSpectrum.LogWave, m.Template.FlatFlux)); err != nil {
			return err
		}
	}
	return nil
}

func renderSummary(name string, ar *snidtypes.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SNID classification summary for %s\n", name)
	fmt.Fprintf(&b, "runtime: %s\n", ar.Runtime.Round(time.Millisecond))
	if !ar.Success {
		fmt.Fprintf(&b, "result: NO MATCHES\n")
		return b.String()
	}

	fmt.Fprintf(&b, "consensus_type: %s\n", ar.ConsensusType)
	fmt.Fprintf(&b, "best_subtype: %s\n", ar.BestSubtype)
	fmt.Fprintf(&b, "redshift: %.5f +/- %.5f\n", ar.Redshift, ar.RedshiftError)
	fmt.Fprintf(&b, "rlap: %.3f\n", ar.Rlap)
	fmt.Fprintf(&b, "template_name: %s\n", ar.TemplateName)
	fmt.Fprintf(&b, "consensus_age_days: %.2f\n", ar.ConsensusAgeDays)

	if cr := ar.ClusteringResults; cr != nil && cr.Success && cr.BestCluster != nil {
		c := cr.BestCluster
		fmt.Fprintf(&b, "cluster_size: %d\n", c.Size)
		fmt.Fprintf(&b, "cluster_redshift_quality: %s\n", c.RedshiftQuality)
		fmt.Fprintf(&b, "confidence_level: %s\n", cr.Confidence.ConfidenceLevel)
		fmt.Fprintf(&b, "quality_category: %s\n", cr.Quality.QualityCategory)
	}

	fmt.Fprintf(&b, "\nrank  template               type   subtype    z         rlap    lap    rlap_cos  age\n")
	for i, m := range ar.FilteredMatches {
		rlapCos := "n/a"
		if m.HasRlapCos {
			rlapCos = fmt.Sprintf("%.3f", m.RlapCos)
		}
		fmt.Fprintf(&b, "%-5d %-22s %-6s %-10s %-9.5f %-7.2f %-6.2f %-9s %.1f\n",
			i+1, m.Template.Name, m.Template.Type, m.Template.Subtype, m.Redshift, m.Rlap, m.Lap, rlapCos, m.Template.AgeDays)
	}
	return b.String()
}

func renderTwoColumn(x, y []float64) string {
	var b strings.Builder
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%.6f %.8g\n", x[i], y[i])
	}
	return b.String()
}

func writeAtomic(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: writing %s: %v", snidtypes.ErrIOFailure, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: renaming %s: %v", snidtypes.ErrIOFailure, path, err)
	}
	return nil
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
