package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idftprep/pkg/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSynthPrepareInspect(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "absent.yaml")
	dataset := filepath.Join(tmpDir, "obs")
	store := filepath.Join(tmpDir, "inputs.zarr")
	quicklook := filepath.Join(tmpDir, "uv.png")

	out, err := run(t, "synth", dataset, "--config", cfgPath, "--log-level", "error",
		"--rows", "30", "--antennas", "4", "--channels", "2")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Wrote 4 partitions")

	out, err = run(t, "prepare", dataset, store, "--config", cfgPath, "--log-level", "error",
		"--image-size", "16", "--workers", "2", "--quicklook", quicklook)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Prepared 4 partitions")
	assert.Contains(t, out, "Image: 16x16")

	_, err = os.Stat(quicklook)
	assert.NoError(t, err)

	out, err = run(t, "inspect", store, "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err, out)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "GROUP"))
	assert.True(t, strings.HasPrefix(lines[1], "ms_0"))
	assert.True(t, strings.HasPrefix(lines[4], "ms_3"))
}

func TestPrepareRespectsConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "idftprep.yaml")
	dataset := filepath.Join(tmpDir, "obs")

	cfg := config.DefaultConfig()
	cfg.Processing.ImageSize = 8
	cfg.Processing.Cellsize = "2arcsec"
	cfg.Store.Path = filepath.Join(tmpDir, "from-config.zarr")
	cfg.Logging.Level = "error"
	cfg.Output.FITS = filepath.Join(tmpDir, "ref.fits")
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	_, err := run(t, "synth", dataset, "--config", cfgPath, "--rows", "20", "--antennas", "3")
	require.NoError(t, err)

	out, err := run(t, "prepare", dataset, "--config", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Image: 8x8, cellsize 2arcsec")

	for _, p := range []string{cfg.Store.Path, cfg.Output.FITS} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestPrepareFailsOnMissingDataset(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := run(t, "prepare", filepath.Join(tmpDir, "nope"), filepath.Join(tmpDir, "out"),
		"--config", filepath.Join(tmpDir, "absent.yaml"), "--log-level", "error")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "conf", "idftprep.yaml")

	out, err := run(t, "config", "init", path, "--config", filepath.Join(tmpDir, "absent.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Default configuration written")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Processing.ImageSize)

	_, err = run(t, "config", "init", path, "--config", filepath.Join(tmpDir, "absent.yaml"))
	assert.Error(t, err)

	_, err = run(t, "config", "init", path, "-f", "--config", filepath.Join(tmpDir, "absent.yaml"))
	assert.NoError(t, err)
}

func TestConfigFromEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "env.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  backend: gpu\n"), 0644))
	t.Setenv(config.EnvConfigPath, cfgPath)

	_, err := run(t, "inspect", tmpDir)
	assert.ErrorContains(t, err, "unknown array backend")
}
