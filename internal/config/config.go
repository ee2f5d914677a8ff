package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/logging"
	"github.com/san-kum/gridmarch/internal/solver"
)

const (
	DefaultScenario   = "diffusion"
	DefaultIterations = 20
	DefaultBacktrack  = 400
	DefaultCutoff     = 20.0
	DefaultMaxChange  = 10000.0
	DefaultBackend    = "memory"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Scenario string             `yaml:"scenario"`
	Workers  int                `yaml:"workers"`
	Swatch   []int              `yaml:"swatch,omitempty"`
	Grid     GridConfig         `yaml:"grid"`
	Solver   SolverConfig       `yaml:"solver"`
	Params   map[string]float64 `yaml:"params,omitempty"`
	Store    StoreConfig        `yaml:"store"`
	Log      LogConfig          `yaml:"log"`
}

// GridConfig overrides the scenario grid. Empty lists keep the scenario
// defaults.
type GridConfig struct {
	Extents          []int     `yaml:"extents,omitempty"`
	Steps            []float64 `yaml:"steps,omitempty"`
	Periodic         []bool    `yaml:"periodic,omitempty"`
	SecondOrderScale []float64 `yaml:"second_order_scale,omitempty"`
}

type SolverConfig struct {
	MaxIterations      int             `yaml:"max_iterations"`
	MaxBacktrack       int             `yaml:"max_backtrack"`
	Singular           string          `yaml:"singular"`
	PredictorCorrector bool            `yaml:"predictor_corrector"`
	Viscosity          ViscosityConfig `yaml:"viscosity"`
}

type ViscosityConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Cutoff    float64 `yaml:"cutoff"`
	MaxChange float64 `yaml:"max_change"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func DefaultConfig() *Config {
	return &Config{
		Scenario: DefaultScenario,
		Solver: SolverConfig{
			MaxIterations: DefaultIterations,
			MaxBacktrack:  DefaultBacktrack,
			Singular:      solver.Abort.String(),
			Viscosity: ViscosityConfig{
				Cutoff:    DefaultCutoff,
				MaxChange: DefaultMaxChange,
			},
		},
		Store: StoreConfig{Backend: DefaultBackend},
		Log:   LogConfig{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Scenario == "" {
		return fmt.Errorf("%w: scenario is required", ErrInvalid)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalid, c.Workers)
	}
	if len(c.Swatch) > grid.MaxAxes-1 {
		return fmt.Errorf("%w: swatch has %d axes, at most %d", ErrInvalid, len(c.Swatch), grid.MaxAxes-1)
	}
	if _, ok := solver.ParsePolicy(c.Solver.Singular); !ok {
		return fmt.Errorf("%w: singular policy %q", ErrInvalid, c.Solver.Singular)
	}
	switch c.Store.Backend {
	case "memory", "":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("%w: sqlite store needs a path", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: store backend %q", ErrInvalid, c.Store.Backend)
	}
	return nil
}

// SolverConfig converts the file settings into a solver configuration.
func (c *Config) SolverConfig() solver.Config {
	policy, _ := solver.ParsePolicy(c.Solver.Singular)
	cfg := solver.DefaultConfig()
	cfg.MaxIterations = c.Solver.MaxIterations
	cfg.MaxBacktrack = c.Solver.MaxBacktrack
	cfg.SingularPolicy = policy
	cfg.PredictorCorrector = c.Solver.PredictorCorrector
	cfg.Viscosity = solver.Viscosity{
		Enabled:   c.Solver.Viscosity.Enabled,
		Cutoff:    c.Solver.Viscosity.Cutoff,
		MaxChange: c.Solver.Viscosity.MaxChange,
	}
	return cfg
}

// SwatchSize maps the per-spatial-axis swatch list onto an offset. Axis 0
// of the list is spatial axis 1.
func (c *Config) SwatchSize() grid.Offset {
	var size grid.Offset
	for i, n := range c.Swatch {
		size[i+1] = n
	}
	return size
}

func (c *Config) LogOptions(verbose bool) logging.Options {
	return logging.Options{Level: c.Log.Level, JSON: c.Log.JSON, Verbose: verbose}
}
