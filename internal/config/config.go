package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/drive"
	"github.com/san-kum/clothsim/internal/solver"
)

const (
	DefaultDt       = 1.0 / 60.0
	DefaultDuration = 5.0
)

type Config struct {
	Backend  string           `yaml:"backend"`
	Dt       float64          `yaml:"dt"`
	Duration float64          `yaml:"duration"`
	Cloth    ClothConfig      `yaml:"cloth"`
	Driver   drive.Oscillator `yaml:"driver"`
	Device   DeviceConfig     `yaml:"device"`
}

type ClothConfig struct {
	GridSize   int     `yaml:"grid_size"`
	Side       float32 `yaml:"side"`
	Mass       float32 `yaml:"mass"`
	Iterations int     `yaml:"iterations"`
	Gravity    bool    `yaml:"gravity"`
	Substeps   int     `yaml:"substeps"`
}

// DeviceConfig tunes the compute device used by the gpu backend.
type DeviceConfig struct {
	Workers  int `yaml:"workers"`
	MinChunk int `yaml:"min_chunk"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:  cloth.BackendCPU,
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		Cloth: ClothConfig{
			GridSize:   cloth.DefaultGridSize,
			Side:       cloth.DefaultSide,
			Mass:       cloth.DefaultMass,
			Iterations: solver.DefaultIterations,
			Gravity:    true,
			Substeps:   1,
		},
		Driver: drive.Default(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
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

// Clamp forces every value into the range the simulator accepts.
func (c *Config) Clamp() {
	if c.Backend == "" {
		c.Backend = cloth.BackendCPU
	}
	c.Dt = cloth.ClampFrameDt(c.Dt)
	if c.Dt == 0 {
		c.Dt = DefaultDt
	}
	if !(c.Duration > 0) {
		c.Duration = DefaultDuration
	}
	c.Cloth.GridSize = cloth.ClampGridSize(c.Cloth.GridSize)
	c.Cloth.Iterations = solver.ClampIterations(c.Cloth.Iterations)
	if !(c.Cloth.Side > 0) {
		c.Cloth.Side = cloth.DefaultSide
	}
	if !(c.Cloth.Mass > 0) {
		c.Cloth.Mass = cloth.DefaultMass
	}
	c.Cloth.Substeps = max(c.Cloth.Substeps, 1)
	if c.Driver.Frequency < 0 {
		c.Driver.Frequency = -c.Driver.Frequency
	}
}

// Frames is the number of fixed steps covering Duration.
func (c *Config) Frames() int {
	if c.Dt <= 0 {
		return 0
	}
	return int(c.Duration/c.Dt + 0.5)
}

// Options converts the config into simulator options.
func (c *Config) Options(logger *slog.Logger) cloth.Options {
	return cloth.Options{
		Backend:    c.Backend,
		GridSize:   c.Cloth.GridSize,
		Side:       c.Cloth.Side,
		Mass:       c.Cloth.Mass,
		Iterations: c.Cloth.Iterations,
		Gravity:    c.Cloth.Gravity,
		Substeps:   c.Cloth.Substeps,
		Driver:     c.Driver,
		Logger:     logger,
	}
}
