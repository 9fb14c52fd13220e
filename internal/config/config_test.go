package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/clothsim/internal/cloth"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend != "cpu" {
		t.Errorf("expected backend cpu, got %s", cfg.Backend)
	}
	if cfg.Cloth.GridSize != 22 {
		t.Errorf("expected grid 22, got %d", cfg.Cloth.GridSize)
	}
	if cfg.Cloth.Iterations != 8 {
		t.Errorf("expected 8 iterations, got %d", cfg.Cloth.Iterations)
	}
	if !cfg.Driver.Enabled || cfg.Driver.Amplitude != 0.2 || cfg.Driver.Frequency != 1 {
		t.Errorf("unexpected driver %+v", cfg.Driver)
	}
	if got := cfg.Frames(); got != 300 {
		t.Errorf("expected 300 frames, got %d", got)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("silk")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Cloth.GridSize != 32 {
		t.Errorf("expected grid 32, got %d", cfg.Cloth.GridSize)
	}

	cfg.Cloth.GridSize = 100
	if Presets["silk"].Cloth.GridSize != 32 {
		t.Error("GetPreset returned shared state")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	want := []string{"canvas", "default", "drum", "flutter", "silk", "still"}
	if diff := cmp.Diff(want, ListPresets()); diff != "" {
		t.Errorf("ListPresets mismatch (-want +got):\n%s", diff)
	}
}

func TestPresetsAreInRange(t *testing.T) {
	for _, name := range ListPresets() {
		cfg := GetPreset(name)
		clamped := *cfg
		clamped.Clamp()
		if diff := cmp.Diff(*cfg, clamped); diff != "" {
			t.Errorf("preset %s out of range (-preset +clamped):\n%s", name, diff)
		}
	}
}

func TestClamp(t *testing.T) {
	cfg := &Config{Dt: 1, Duration: -1}
	cfg.Cloth.GridSize = 1000
	cfg.Cloth.Iterations = 0
	cfg.Driver.Frequency = -2
	cfg.Clamp()

	want := &Config{
		Backend:  "cpu",
		Dt:       cloth.MaxFrameDt,
		Duration: DefaultDuration,
		Cloth: ClothConfig{
			GridSize:   cloth.MaxGridSize,
			Side:       1,
			Mass:       1,
			Iterations: 1,
			Substeps:   1,
		},
	}
	want.Driver.Frequency = 2
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Clamp mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloth.yaml")
	cfg := GetPreset("flutter")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOptions(t *testing.T) {
	cfg := GetPreset("drum")
	opts := cfg.Options(nil)
	if opts.Backend != cloth.BackendGPU || opts.GridSize != 64 || opts.Gravity {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.Driver != cfg.Driver {
		t.Errorf("driver not carried: %+v", opts.Driver)
	}
}
