package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 20, Clamp(5, 20, 300))
	assert.Equal(t, 300, Clamp(400, 20, 300))
	assert.Equal(t, 120, Clamp(120, 20, 300))
	assert.Equal(t, -2.0, Clamp(-7.5, -2.0, 2.0))
}

func TestGetKeysIsSorted(t *testing.T) {
	keys := GetKeys(map[string]int{"Snare": 1, "Kick": 0, "Hi-Hat": 2})
	assert.Equal(t, []string{"Hi-Hat", "Kick", "Snare"}, keys)
}

func TestGatherAllWavPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.WAV", "notes.txt", "sub/c.wav"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	paths, err := GatherAllWavPaths(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.WAV"),
		filepath.Join(dir, "b.wav"),
		filepath.Join(dir, "sub/c.wav"),
	}, paths)

	limited, err := GatherAllWavPaths(dir, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = GatherAllWavPaths(filepath.Join(dir, "missing"), 0)
	assert.Error(t, err)
}
