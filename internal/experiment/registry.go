package experiment

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/mesh"
	"github.com/san-kum/clothsim/internal/metrics"
)

// DeviceFactory opens the compute device a backend runs on. A nil device
// means the backend runs on the host.
type DeviceFactory func(cfg config.DeviceConfig, logger *slog.Logger) *compute.Device

type MetricFactory func(grid *mesh.Grid, mass float32) metrics.Metric

type Registry struct {
	backends map[string]DeviceFactory
	metrics  map[string]MetricFactory
}

func openDevice(cfg config.DeviceConfig, logger *slog.Logger) *compute.Device {
	return compute.NewDevice(
		compute.WithWorkers(cfg.Workers),
		compute.WithMinChunk(cfg.MinChunk),
		compute.WithLogger(logger),
	)
}

func NewRegistry() *Registry {
	r := &Registry{
		backends: make(map[string]DeviceFactory),
		metrics:  make(map[string]MetricFactory),
	}

	r.backends[cloth.BackendCPU] = func(config.DeviceConfig, *slog.Logger) *compute.Device { return nil }
	r.backends[cloth.BackendGPU] = openDevice
	r.backends[cloth.BackendAuto] = openDevice

	r.metrics["sag"] = func(*mesh.Grid, float32) metrics.Metric { return metrics.NewSag() }
	r.metrics["settle"] = func(*mesh.Grid, float32) metrics.Metric { return metrics.NewSettle() }
	r.metrics["stretch"] = func(g *mesh.Grid, mass float32) metrics.Metric {
		return metrics.NewStretch(g.Constraints(g.Particles(mass)).Distance)
	}
	r.metrics["kinetic"] = func(_ *mesh.Grid, mass float32) metrics.Metric {
		return metrics.NewKinetic(float64(mass))
	}
	r.metrics["stability"] = func(*mesh.Grid, float32) metrics.Metric { return metrics.NewStability(100) }

	return r
}

// OpenDevice returns the device for backend, which may be nil.
func (r *Registry) OpenDevice(backend string, cfg config.DeviceConfig, logger *slog.Logger) (*compute.Device, error) {
	fn, ok := r.backends[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cloth.ErrUnknownBackend, backend)
	}
	return fn(cfg, logger), nil
}

func (r *Registry) GetMetric(name string, grid *mesh.Grid, mass float32) (metrics.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(grid, mass), nil
}

func (r *Registry) ListBackends() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) ListMetrics() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultMetrics builds every registered metric for grid.
func (r *Registry) DefaultMetrics(grid *mesh.Grid, mass float32) metrics.Set {
	set := make(metrics.Set, 0, len(r.metrics))
	for _, name := range r.ListMetrics() {
		m, _ := r.GetMetric(name, grid, mass)
		set = append(set, m)
	}
	return set
}
