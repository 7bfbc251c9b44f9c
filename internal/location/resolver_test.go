package location

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaults(t *testing.T) {
	r := NewResolver(nil)
	tests := []struct {
		text     string
		lat, lng float64
		ok       bool
	}{
		{"Harris Center Cinema", 41.751082, -92.720641, true},
		{"JRC 101", 41.74929, -92.720118, true},
		{"Humanities and Social Science Center, Room N1112", 41.750897, -92.72107, true},
		{"HSSC and Noyce", 41.750897, -92.72107, true},
		{"Charles Benson Bear Athletic Rec Center", 41.752130, -92.719527, true},
		{"Online", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			lat, lng, ok := r.Resolve(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.lat, lat, 1e-9)
			assert.InDelta(t, tc.lng, lng, 1e-9)
		})
	}
}

func TestLoadPlaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "places.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`places:
  - name: Library
    keywords: [Burling, library]
    lat: 41.7
    long: -92.7
  - name: Gym
    keywords: [gym]
    lat: 41.8
    long: -92.8
`), 0o600))

	places, err := LoadPlaces(path)
	require.NoError(t, err)
	require.Len(t, places, 2)

	r := NewResolver(places)
	lat, lng, ok := r.Resolve("burling library 2nd floor")
	require.True(t, ok)
	assert.Equal(t, 41.7, lat)
	assert.Equal(t, -92.7, lng)

	_, _, ok = r.Resolve("JRC")
	assert.False(t, ok)
}

func TestLoadPlacesRejectsBadRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("places:\n  - name: Nowhere\n    lat: 1\n    long: 1\n"), 0o600))
	_, err := LoadPlaces(path)
	assert.Error(t, err)

	_, err = LoadPlaces(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
