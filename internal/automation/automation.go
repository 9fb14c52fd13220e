package automation

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/ctxlog"
	"github.com/san-kum/clothsim/internal/experiment"
	"github.com/san-kum/clothsim/internal/metrics"
)

var ErrEmptyScenario = errors.New("scenario has no events")

// Scenario is a scripted sequence of control changes, each followed by a
// number of frames.
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Preset      string  `yaml:"preset"`
	Backend     string  `yaml:"backend"`
	Dt          float64 `yaml:"dt"`
	Events      []Event `yaml:"events"`
}

// Event changes the controls that are set and then runs Frames frames.
// Unset fields keep their current value.
type Event struct {
	Label      string `yaml:"label"`
	Gravity    *bool  `yaml:"gravity"`
	Iterations *int   `yaml:"iterations"`
	GridSize   *int   `yaml:"grid_size"`
	Reset      bool   `yaml:"reset"`
	Frames     int    `yaml:"frames"`
}

// EventResult is the cloth state after an event's frames ran.
type EventResult struct {
	Label      string
	Time       float64
	Frames     int
	GridSize   int
	Iterations int
	Gravity    bool
	Sag        float64
	Settle     float64
	Dropped    uint64
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// Config resolves the scenario's base configuration.
func (s *Scenario) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		cfg = config.GetPreset(s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q", s.Preset)
		}
	}
	if s.Backend != "" {
		cfg.Backend = s.Backend
	}
	if s.Dt > 0 {
		cfg.Dt = s.Dt
	}
	cfg.Clamp()
	return cfg, nil
}

func (ev Event) apply(sim *cloth.Simulator) error {
	o := sim.Options()
	ui := cloth.UIState{Gravity: o.Gravity, Iterations: o.Iterations, GridSize: o.GridSize, Reset: ev.Reset}
	if ev.Gravity != nil {
		ui.Gravity = *ev.Gravity
	}
	if ev.Iterations != nil {
		ui.Iterations = *ev.Iterations
	}
	if ev.GridSize != nil {
		ui.GridSize = *ev.GridSize
	}
	return sim.Apply(ui)
}

// RunScenario plays the events against one simulator.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry) ([]EventResult, error) {
	if len(scenario.Events) == 0 {
		return nil, ErrEmptyScenario
	}
	logger := ctxlog.FromContext(ctx)
	cfg, err := scenario.Config()
	if err != nil {
		return nil, err
	}
	sim, release, err := experiment.New(cfg, registry).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	results := make([]EventResult, 0, len(scenario.Events))
	for i, ev := range scenario.Events {
		label := ev.Label
		if label == "" {
			label = fmt.Sprintf("event %d", i+1)
		}
		logger.Info("scenario event", "scenario", scenario.Name, "event", label, "frames", ev.Frames)

		if err := ev.apply(sim); err != nil {
			return results, fmt.Errorf("%s: %w", label, err)
		}
		if err := sim.WaitReady(ctx); err != nil {
			return results, fmt.Errorf("%s: %w", label, err)
		}

		sag, settle := metrics.NewSag(), metrics.NewSettle()
		set := metrics.Set{sag, settle}
		frame, err := sim.Frame(ctx)
		if err != nil {
			return results, fmt.Errorf("%s: %w", label, err)
		}
		set.Observe(frame.Positions, frame.Time)
		for f := 0; f < ev.Frames; f++ {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			if err := sim.Step(cfg.Dt); err != nil {
				return results, fmt.Errorf("%s frame %d: %w", label, f, err)
			}
			if frame, err = sim.Frame(ctx); err != nil {
				return results, fmt.Errorf("%s frame %d: %w", label, f, err)
			}
			set.Observe(frame.Positions, frame.Time)
		}

		o := sim.Options()
		results = append(results, EventResult{
			Label:      label,
			Time:       frame.Time,
			Frames:     ev.Frames,
			GridSize:   o.GridSize,
			Iterations: o.Iterations,
			Gravity:    o.Gravity,
			Sag:        sag.Value(),
			Settle:     settle.Value(),
			Dropped:    sim.Dropped(),
		})
	}
	return results, nil
}

// ParameterSweep runs one experiment per value of a cloth parameter.
type ParameterSweep struct {
	Param  string
	Values []float64
}

type SweepResult struct {
	ParamValue float64
	Metrics    map[string]float64
	FPS        float64
}

// SweepParams lists the parameters a sweep can vary.
var SweepParams = []string{"iterations", "grid_size", "mass", "substeps", "amplitude", "frequency"}

func setParam(cfg *config.Config, name string, v float64) error {
	switch name {
	case "iterations":
		cfg.Cloth.Iterations = int(v)
	case "grid_size":
		cfg.Cloth.GridSize = int(v)
	case "mass":
		cfg.Cloth.Mass = float32(v)
	case "substeps":
		cfg.Cloth.Substeps = int(v)
	case "amplitude":
		cfg.Driver.Amplitude = float32(v)
	case "frequency":
		cfg.Driver.Frequency = float32(v)
	default:
		return fmt.Errorf("unknown sweep parameter %q", name)
	}
	return nil
}

// RunSweep executes a parameter sweep on copies of base.
func RunSweep(ctx context.Context, base *config.Config, sweep *ParameterSweep, registry *experiment.Registry) ([]SweepResult, error) {
	logger := ctxlog.FromContext(ctx)
	results := make([]SweepResult, 0, len(sweep.Values))
	for i, v := range sweep.Values {
		cfg := *base
		if err := setParam(&cfg, sweep.Param, v); err != nil {
			return nil, err
		}
		res, err := experiment.New(&cfg, registry).Run(ctx)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
		}
		results = append(results, SweepResult{ParamValue: v, Metrics: res.Metrics, FPS: res.FPS()})
		logger.Info("sweep", "step", i+1, "of", len(sweep.Values), "param", sweep.Param, "value", v)
	}
	return results, nil
}
