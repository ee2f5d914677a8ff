package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/logging"
	"github.com/san-kum/gridmarch/internal/solver"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scenario != "diffusion" {
		t.Errorf("expected scenario diffusion, got %s", cfg.Scenario)
	}
	if cfg.Solver.MaxIterations != 20 || cfg.Solver.MaxBacktrack != 400 {
		t.Errorf("unexpected solver defaults %+v", cfg.Solver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLogOptionsVerbose(t *testing.T) {
	cfg := DefaultConfig()
	if got := logging.New(io.Discard, cfg.LogOptions(true)).GetLevel(); got != logrus.DebugLevel {
		t.Errorf("verbose default level = %v, want debug", got)
	}
	if got := logging.New(io.Discard, cfg.LogOptions(false)).GetLevel(); got != logrus.InfoLevel {
		t.Errorf("default level = %v, want info", got)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("schrodinger", "harmonic")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if !cfg.Solver.PredictorCorrector {
		t.Error("harmonic preset should enable predictor-corrector")
	}
	if cfg.Params["V0"] != 1 {
		t.Errorf("expected V0 1, got %f", cfg.Params["V0"])
	}

	cfg.Params["V0"] = 7
	if GetPreset("schrodinger", "harmonic").Params["V0"] != 1 {
		t.Error("GetPreset returned a shared params map")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("diffusion", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "small")
	if cfg != nil {
		t.Error("expected nil for nonexistent scenario")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("diffusion")
	if len(presets) != 3 || presets[0] != "plane" {
		t.Errorf("unexpected diffusion presets %v", presets)
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent scenario")
	}
}

func TestPresetsValid(t *testing.T) {
	for scenario, byName := range Presets {
		for name, cfg := range byName {
			if cfg.Scenario != scenario {
				t.Errorf("%s/%s: scenario field is %s", scenario, name, cfg.Scenario)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", scenario, name, err)
			}
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("diffusion", "plane")
	cfg.Solver.Singular = "identity"
	cfg.Params = map[string]float64{"nu": 0.5}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded.Grid.Extents) != 3 || loaded.Grid.Extents[1] != 24 {
		t.Errorf("extents lost: %v", loaded.Grid.Extents)
	}
	if loaded.Params["nu"] != 0.5 {
		t.Errorf("params lost: %v", loaded.Params)
	}
	sc := loaded.SolverConfig()
	if sc.SingularPolicy != solver.Identity {
		t.Errorf("policy %v, want identity", sc.SingularPolicy)
	}
	if loaded.SwatchSize() != (grid.Offset{0, 6, 24}) {
		t.Errorf("swatch %v", loaded.SwatchSize())
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("scenario: burgers\nworkers: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scenario != "burgers" || cfg.Workers != 3 {
		t.Errorf("unexpected %+v", cfg)
	}
	if cfg.Solver.Viscosity.MaxChange != DefaultMaxChange {
		t.Errorf("viscosity default lost: %+v", cfg.Solver.Viscosity)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no scenario", func(c *Config) { c.Scenario = "" }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"bad policy", func(c *Config) { c.Solver.Singular = "retry" }},
		{"sqlite without path", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"swatch too long", func(c *Config) { c.Swatch = []int{1, 1, 1, 1, 1} }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", tt.name, err)
		}
	}
}
