package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedStays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stays.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stays:
  - host_id: host-1
    name: Mission loft
    address: 2000 Mission St, San Francisco
    guest_number: 2
    images: [https://img.example/1.jpg]
    lat: 37.7599
    lon: -122.4148
  - host_id: host-2
    name: Oakland bungalow
    address: 1 Broadway, Oakland
    guest_number: 4
`), 0o600))

	stays, err := loadSeedStays(path)
	require.NoError(t, err)
	require.Len(t, stays, 2)
	assert.Equal(t, "Mission loft", stays[0].Name)
	assert.Equal(t, []string{"https://img.example/1.jpg"}, stays[0].Images)
	assert.InDelta(t, 37.7599, stays[0].Latitude, 1e-9)
	assert.Equal(t, 4, stays[1].GuestNumber)
	assert.Zero(t, stays[1].Latitude)

	_, err = loadSeedStays(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
