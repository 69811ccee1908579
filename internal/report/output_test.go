package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/snid-go/internal/snidtypes"
)

func TestWriteAllMinimalOnlyWritesOutput(t *testing.T) {
	dir := t.TempDir()
	ar := &snidtypes.AnalysisResult{Success: false, Runtime: time.Millisecond}

	require.NoError(t, WriteAll(dir, "sn2020xyz", ar, Minimal))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sn2020xyz.output", entries[0].Name())
}

func TestWriteAllCompleteWritesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	ar := &snidtypes.AnalysisResult{
		Success: true, ConsensusType: "Ia", BestSubtype: "norm", Runtime: time.Millisecond,
		ProcessedSpectrum: &snidtypes.ProcessedSpectrum{
			LogWave: []float64{4000, 4010}, LogFlux: []float64{1, 1}, TaperedFlux: []float64{0.1, 0.2},
		},
		FilteredMatches: []*snidtypes.Match{
			{Template: &snidtypes.Template{Name: "sn1994D", Type: "Ia", Subtype: "norm"}, Rlap: 10, Lap: 0.9},
		},
	}
	ar.BestMatches = ar.FilteredMatches

	require.NoError(t, WriteAll(dir, "sn2020xyz", ar, Complete))

	assert.FileExists(t, filepath.Join(dir, "sn2020xyz.output"))
	assert.FileExists(t, filepath.Join(dir, "sn2020xyz.fluxed"))
	assert.FileExists(t, filepath.Join(dir, "sn2020xyz.flattened"))
}

func TestWriteAllLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	ar := &snidtypes.AnalysisResult{Success: false, Runtime: time.Millisecond}
	require.NoError(t, WriteAll(dir, "name", ar, Minimal))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
