package compute

import (
	"context"
	"fmt"
	"time"
)

// KernelFunc runs one work-item. gid is in [0, n) for a dispatch of n items.
type KernelFunc func(gid int, b Bindings)

// Bindings are the buffers bound to a dispatch, by slot.
type Bindings []*Buffer

// Kernel is the source a pipeline is built from.
type Kernel struct {
	Name string
	Fn   KernelFunc
}

type Pipeline struct {
	name string
	fn   KernelFunc
}

func (p *Pipeline) Name() string { return p.name }

// PipelineFuture is the result of an asynchronous pipeline build.
type PipelineFuture struct {
	name     string
	done     chan struct{}
	pipeline *Pipeline
	err      error
}

// CreatePipelineAsync starts building a pipeline and returns immediately.
func (d *Device) CreatePipelineAsync(k Kernel) *PipelineFuture {
	f := &PipelineFuture{name: k.Name, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		start := time.Now()
		if d.compileDelay > 0 {
			time.Sleep(d.compileDelay)
		}
		if k.Name == "" || k.Fn == nil {
			f.err = fmt.Errorf("%w: %q", ErrInvalidKernel, k.Name)
			d.logger.Error("pipeline build failed", "kernel", k.Name, "err", f.err)
			return
		}
		f.pipeline = &Pipeline{name: k.Name, fn: k.Fn}
		d.logger.Debug("pipeline ready", "kernel", k.Name, "took", time.Since(start))
	}()
	return f
}

// Ready reports without blocking whether the build finished successfully.
func (f *PipelineFuture) Ready() bool {
	select {
	case <-f.done:
		return f.err == nil
	default:
		return false
	}
}

// Pipeline returns the built pipeline if it is ready.
func (f *PipelineFuture) Pipeline() (*Pipeline, bool) {
	if !f.Ready() {
		return nil, false
	}
	return f.pipeline, true
}

// Err returns the build error, or nil while building or on success.
func (f *PipelineFuture) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the build finishes or ctx is done.
func (f *PipelineFuture) Wait(ctx context.Context) (*Pipeline, error) {
	select {
	case <-f.done:
		return f.pipeline, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
