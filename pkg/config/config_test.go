package config

import (
	"os"
	"path/filepath"
	"testing"

	"idftprep/pkg/arraystore"
	"idftprep/pkg/units"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.Oversampling != 7 {
		t.Errorf("expected oversampling 7, got %g", cfg.Processing.Oversampling)
	}
	if cfg.Processing.ImageSize != 64 {
		t.Errorf("expected image size 64, got %d", cfg.Processing.ImageSize)
	}
	if cfg.Processing.PaddingFactor != 1.0 {
		t.Errorf("expected padding 1.0, got %g", cfg.Processing.PaddingFactor)
	}
	if cfg.Processing.Workers < 1 {
		t.Errorf("expected at least one worker, got %d", cfg.Processing.Workers)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "idftprep.yaml")

	cfg := DefaultConfig()
	cfg.Processing.Cellsize = "0.25arcsec"
	cfg.Store.Compressor = arraystore.CompressorLZ4
	cfg.Store.Backend = "aligned"
	cfg.Output.FITS = "model.fits"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Store.Compressor != arraystore.CompressorLZ4 {
		t.Errorf("compressor not preserved: %q", loaded.Store.Compressor)
	}
	if loaded.Output.FITS != "model.fits" {
		t.Errorf("fits path not preserved: %q", loaded.Output.FITS)
	}

	cell, err := loaded.Cellsize()
	if err != nil {
		t.Fatalf("Cellsize failed: %v", err)
	}
	if cell != 0.25*units.Arcsecond {
		t.Errorf("expected 0.25arcsec, got %s", cell)
	}

	opts, err := loaded.StoreOptions()
	if err != nil {
		t.Fatalf("StoreOptions failed: %v", err)
	}
	if opts.Backend.Name() != "aligned" {
		t.Errorf("expected aligned backend, got %s", opts.Backend.Name())
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("processing:\n  imageSize: 128\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.ImageSize != 128 {
		t.Errorf("expected image size 128, got %d", cfg.Processing.ImageSize)
	}
	if cfg.Processing.Oversampling != 7 {
		t.Errorf("default oversampling lost: %g", cfg.Processing.Oversampling)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"oversampling": "processing:\n  oversampling: 0\n",
		"padding":      "processing:\n  paddingFactor: 0.5\n",
		"cellsize":     "processing:\n  cellsize: wide\n",
		"backend":      "store:\n  backend: gpu\n",
		"compressor":   "store:\n  compressor: gzip\n",
		"ioLimit":      "store:\n  ioLimit: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if got := ResolvePath(""); got != DefaultConfigPath {
		t.Errorf("expected default path, got %q", got)
	}

	t.Setenv(EnvConfigPath, "/etc/idftprep.yaml")
	if got := ResolvePath(""); got != "/etc/idftprep.yaml" {
		t.Errorf("expected env path, got %q", got)
	}
	if got := ResolvePath("local.yaml"); got != "local.yaml" {
		t.Errorf("flag should win, got %q", got)
	}
}
