package config

import (
	"slices"

	"github.com/san-kum/clothsim/internal/drive"
)

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"still": {
		Backend: "cpu", Dt: DefaultDt, Duration: 5.0,
		Cloth: ClothConfig{GridSize: 22, Side: 1, Mass: 1, Iterations: 20, Gravity: true, Substeps: 1},
	},
	"silk": {
		Backend: "cpu", Dt: DefaultDt, Duration: 8.0,
		Cloth:  ClothConfig{GridSize: 32, Side: 1, Mass: 0.5, Iterations: 4, Gravity: true, Substeps: 1},
		Driver: drive.Oscillator{Enabled: true, Amplitude: 0.1, Frequency: 0.5},
	},
	"canvas": {
		Backend: "cpu", Dt: DefaultDt, Duration: 8.0,
		Cloth:  ClothConfig{GridSize: 22, Side: 1, Mass: 2, Iterations: 40, Gravity: true, Substeps: 1},
		Driver: drive.Default(),
	},
	"flutter": {
		Backend: "gpu", Dt: DefaultDt, Duration: 6.0,
		Cloth:  ClothConfig{GridSize: 48, Side: 1.5, Mass: 1, Iterations: 12, Gravity: true, Substeps: 2},
		Driver: drive.Oscillator{Enabled: true, Amplitude: 0.15, Frequency: 1.2},
	},
	"drum": {
		Backend: "gpu", Dt: DefaultDt, Duration: 4.0,
		Cloth:  ClothConfig{GridSize: 64, Side: 1, Mass: 1, Iterations: 16, Gravity: false, Substeps: 1},
		Driver: drive.Oscillator{Enabled: true, Amplitude: 0.05, Frequency: 4},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
