package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsSane(t *testing.T) {
	p := Default()
	require.Greater(t, p.Domain.Nx, 0)
	require.Greater(t, p.Domain.Ny, 0)
	require.Greater(t, p.Domain.Nz, 0)
	require.Greater(t, p.Dt, 0.0)
	require.Greater(t, p.Steps, 0)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := Default()
	p.Domain.Nx = 48
	p.Nu = 0.02
	p.Scalar = true
	p.Solver.LESModel = 1

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, Save(path, p))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 48, loaded.Domain.Nx)
	require.Equal(t, 0.02, loaded.Nu)
	require.True(t, loaded.Scalar)
	require.Equal(t, 1, loaded.Solver.LESModel)
}

func TestLoadOnlyOverridesGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nu: 0.5\n"), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 0.5, p.Nu)
	require.Equal(t, Default().Domain.Nx, p.Domain.Nx)
	require.Equal(t, Default().Steps, p.Steps)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
