package compute

import (
	"math"
	"sync/atomic"
)

// Buffer is device memory of 32-bit words. Kernels access it through the
// word accessors; the host goes through the queue.
type Buffer struct {
	label     string
	words     []uint32
	size      int
	queue     *Queue
	destroyed atomic.Bool
}

func (b *Buffer) Label() string { return b.label }

// Len is the buffer length in words.
func (b *Buffer) Len() int { return b.size }

// Size is the buffer size in bytes.
func (b *Buffer) Size() int { return 4 * b.Len() }

func (b *Buffer) Destroyed() bool { return b.destroyed.Load() }

func (b *Buffer) Uint(i int) uint32         { return b.words[i] }
func (b *Buffer) SetUint(i int, v uint32)   { b.words[i] = v }
func (b *Buffer) Float(i int) float32       { return math.Float32frombits(b.words[i]) }
func (b *Buffer) SetFloat(i int, v float32) { b.words[i] = math.Float32bits(v) }

// Destroy releases the buffer once all previously submitted work that uses
// it has executed.
func (b *Buffer) Destroy() {
	if !b.queue.enqueue([]command{destroyCmd{buf: b}}) {
		b.destroyed.Store(true)
	}
}

// Floats converts words to float32 values.
func Floats(words []uint32) []float32 {
	out := make([]float32, len(words))
	for i, w := range words {
		out[i] = math.Float32frombits(w)
	}
	return out
}

// Words converts float32 values to their bit patterns.
func Words(fs []float32) []uint32 {
	out := make([]uint32, len(fs))
	for i, f := range fs {
		out[i] = math.Float32bits(f)
	}
	return out
}
