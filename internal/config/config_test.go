package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingPathReturnsEmptyFile(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, f.ZMin)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte("zmin: -0.1\nrlapmin: 6.5\nskyclip: true\n"), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, f.ZMin)
	assert.Equal(t, -0.1, *f.ZMin)
	assert.Equal(t, 6.5, *f.RlapMin)
	assert.True(t, *f.SkyClip)
}

func TestMergeFlagsOverrideFile(t *testing.T) {
	rlapFile := 6.5
	rlapFlag := 8.0
	resolved := Merge(&File{RlapMin: &rlapFile}, &File{RlapMin: &rlapFlag})
	assert.Equal(t, 8.0, resolved.Correlate.RlapMin)
	assert.Equal(t, 8.0, resolved.Result.RlapMin)
}

func TestMergeUsesDefaultsWhenNothingSet(t *testing.T) {
	resolved := Merge(&File{}, &File{})
	assert.Equal(t, 5.0, resolved.Correlate.RlapMin)
	assert.Equal(t, 10, resolved.Result.MaxOutputTemplates)
}
