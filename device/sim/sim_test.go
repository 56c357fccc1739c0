package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/scanbridge/device"
)

func TestLoadPages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("B"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("A"), 0o644))

	pages, err := LoadPages(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, []byte("A"), pages[0].Data)
	assert.Equal(t, []byte("B"), pages[1].Data)
	assert.Equal(t, "a.png", pages[0].Info["Camera"])
}

func TestDriver_Steps(t *testing.T) {
	drv := New(Options{Name: "flatbed"})

	assert.Error(t, drv.OpenSource(device.Identity{}))
	require.NoError(t, drv.LoadManager())
	assert.ErrorIs(t, drv.OpenSource(device.Identity{Name: "adf"}), ErrNoSource)
	require.NoError(t, drv.OpenSource(device.Identity{Name: "flatbed"}))
	assert.Equal(t, device.Opened, drv.State())

	require.NoError(t, drv.ForceStepDown(device.Closed))
	assert.Equal(t, device.Closed, drv.State())
	assert.Equal(t, []string{"open", "load", "open", "open", "forcestepdown"}, drv.Calls())
}
