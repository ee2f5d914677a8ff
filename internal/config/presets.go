package config

import "sort"

func preset(scenario string, fn func(c *Config)) *Config {
	c := DefaultConfig()
	c.Scenario = scenario
	fn(c)
	return c
}

var Presets = map[string]map[string]*Config{
	"diffusion": {
		"small": preset("diffusion", func(c *Config) {
			c.Grid.Extents = []int{40, 16}
		}),
		"plane": preset("diffusion", func(c *Config) {
			c.Grid.Extents = []int{40, 24, 24}
			c.Grid.Steps = []float64{0.05, 1, 1}
			c.Swatch = []int{6, 24}
		}),
		"ring": preset("diffusion", func(c *Config) {
			c.Grid.Extents = []int{60, 48}
			c.Grid.Periodic = []bool{false, true}
		}),
	},
	"heat-source": {
		"rod": preset("heat-source", func(c *Config) {
			c.Grid.Extents = []int{80, 33}
			c.Params = map[string]float64{"source": 1}
		}),
		"plate": preset("heat-source", func(c *Config) {
			c.Grid.Extents = []int{60, 21, 21}
			c.Grid.Steps = []float64{0.05, 1, 1}
		}),
	},
	"burgers": {
		"spike": preset("burgers", func(c *Config) {
			c.Grid.Extents = []int{400, 25}
			c.Solver.Viscosity.Enabled = true
		}),
		"viscous": preset("burgers", func(c *Config) {
			c.Grid.Extents = []int{400, 25}
			c.Params = map[string]float64{"V": 1e-4}
		}),
	},
	"schrodinger": {
		"free": preset("schrodinger", func(c *Config) {
			c.Solver.PredictorCorrector = true
		}),
		"harmonic": preset("schrodinger", func(c *Config) {
			c.Solver.PredictorCorrector = true
			c.Params = map[string]float64{"V0": 1, "k0": 0}
		}),
	},
	"brusselator": {
		"oscillating": preset("brusselator", func(c *Config) {
			c.Params = map[string]float64{"a": 1, "b": 3}
		}),
		"stable": preset("brusselator", func(c *Config) {
			c.Params = map[string]float64{"a": 1, "b": 1.5}
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(scenario, name string) *Config {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	cfg, ok := scenarioPresets[name]
	if !ok {
		return nil
	}
	cp := *cfg
	if cfg.Params != nil {
		cp.Params = make(map[string]float64, len(cfg.Params))
		for k, v := range cfg.Params {
			cp.Params[k] = v
		}
	}
	return &cp
}

func ListPresets(scenario string) []string {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenarioPresets))
	for name := range scenarioPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
