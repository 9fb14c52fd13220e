package compute

import (
	"errors"
	"log/slog"
	"runtime"
	"time"
)

var (
	// ErrNotReady indicates pipelines that are still being built.
	ErrNotReady = errors.New("compute: pipelines not ready")

	// ErrDestroyed indicates access to a destroyed buffer.
	ErrDestroyed = errors.New("compute: buffer destroyed")

	// ErrClosed indicates work submitted to a closed queue.
	ErrClosed = errors.New("compute: queue closed")

	// ErrInvalidKernel indicates a kernel without a name or function.
	ErrInvalidKernel = errors.New("compute: invalid kernel")
)

type Device struct {
	name         string
	exec         *executor
	queue        *Queue
	logger       *slog.Logger
	compileDelay time.Duration
}

type Option func(*Device)

// WithWorkers bounds the goroutines a single dispatch fans out to.
func WithWorkers(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.exec.workers = n
		}
	}
}

// WithMinChunk sets the work-item count below which a dispatch runs inline.
func WithMinChunk(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.exec.minChunk = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithCompileDelay makes pipeline builds take at least delay.
func WithCompileDelay(delay time.Duration) Option {
	return func(d *Device) { d.compileDelay = delay }
}

func WithName(name string) Option {
	return func(d *Device) { d.name = name }
}

func NewDevice(opts ...Option) *Device {
	d := &Device{
		name:   "cpu",
		exec:   &executor{workers: runtime.NumCPU(), minChunk: 64},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = newQueue(d.exec, d.logger)
	d.logger.Debug("compute device created", "name", d.name, "workers", d.exec.workers)
	return d
}

func (d *Device) Name() string  { return d.name }
func (d *Device) Workers() int  { return d.exec.workers }
func (d *Device) Queue() *Queue { return d.queue }

// CreateBuffer allocates a zeroed buffer of n words.
func (d *Device) CreateBuffer(label string, n int) *Buffer {
	return &Buffer{label: label, words: make([]uint32, n), size: n, queue: d.queue}
}

// CreateBufferInit allocates a buffer holding a copy of data.
func (d *Device) CreateBufferInit(label string, data []uint32) *Buffer {
	b := d.CreateBuffer(label, len(data))
	copy(b.words, data)
	return b
}

func (d *Device) NewEncoder() *Encoder {
	return &Encoder{}
}

// Close drains the queue and stops it.
func (d *Device) Close() {
	d.queue.Close()
}
