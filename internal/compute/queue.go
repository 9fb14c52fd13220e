package compute

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const queueDepth = 64

type command interface {
	execute(q *Queue)
}

// CommandBuffer is a finished, immutable recording.
type CommandBuffer struct {
	cmds []command
}

func (cb *CommandBuffer) Len() int { return len(cb.cmds) }

// Encoder records commands for later submission.
type Encoder struct {
	cmds []command
}

// WriteBuffer records a write of data at word offset. data is copied now.
func (e *Encoder) WriteBuffer(b *Buffer, offset int, data []uint32) {
	e.cmds = append(e.cmds, newWrite(b, offset, data))
}

// Dispatch records n invocations of p over the bound buffers.
func (e *Encoder) Dispatch(p *Pipeline, n int, bind ...*Buffer) {
	e.cmds = append(e.cmds, dispatchCmd{pipeline: p, n: n, bind: Bindings(bind)})
}

func (e *Encoder) Finish() *CommandBuffer {
	return &CommandBuffer{cmds: e.cmds}
}

// QueueStats counts executed work.
type QueueStats struct {
	Submitted        uint64
	Dispatches       uint64
	Invocations      uint64
	ValidationErrors uint64
}

// Queue executes commands on a single goroutine in submission order.
type Queue struct {
	mu     sync.Mutex
	closed bool
	work   chan []command
	done   chan struct{}
	exec   *executor
	logger *slog.Logger

	submitted   atomic.Uint64
	dispatches  atomic.Uint64
	invocations atomic.Uint64
	invalid     atomic.Uint64
}

func newQueue(exec *executor, logger *slog.Logger) *Queue {
	q := &Queue{
		work:   make(chan []command, queueDepth),
		done:   make(chan struct{}),
		exec:   exec,
		logger: logger,
	}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer close(q.done)
	for cmds := range q.work {
		for _, c := range cmds {
			c.execute(q)
		}
	}
}

func (q *Queue) enqueue(cmds []command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Error("work submitted to closed queue", "commands", len(cmds))
		return false
	}
	q.work <- cmds
	return true
}

// Submit enqueues command buffers. They run after everything submitted
// before them.
func (q *Queue) Submit(cbs ...*CommandBuffer) {
	var cmds []command
	for _, cb := range cbs {
		cmds = append(cmds, cb.cmds...)
	}
	if q.enqueue(cmds) {
		q.submitted.Add(uint64(len(cbs)))
	}
}

// WriteBuffer enqueues a write of data at word offset. data is copied now.
func (q *Queue) WriteBuffer(b *Buffer, offset int, data []uint32) {
	q.enqueue([]command{newWrite(b, offset, data)})
}

// Read copies the buffer contents once all earlier work has executed.
func (q *Queue) Read(ctx context.Context, b *Buffer) ([]uint32, error) {
	reply := make(chan readResult, 1)
	if !q.enqueue([]command{readCmd{buf: b, reply: reply}}) {
		return nil, ErrClosed
	}
	select {
	case r := <-reply:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnSubmittedWorkDone returns a channel closed once all work enqueued so
// far has executed.
func (q *Queue) OnSubmittedWorkDone() <-chan struct{} {
	ch := make(chan struct{})
	if !q.enqueue([]command{fenceCmd{ch: ch}}) {
		close(ch)
	}
	return ch
}

func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Submitted:        q.submitted.Load(),
		Dispatches:       q.dispatches.Load(),
		Invocations:      q.invocations.Load(),
		ValidationErrors: q.invalid.Load(),
	}
}

// Close stops accepting work, drains what is queued and waits for it.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.work)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) reject(what string, args ...any) {
	q.invalid.Add(1)
	q.logger.Error("queue validation: "+what, args...)
}

type writeCmd struct {
	buf    *Buffer
	offset int
	data   []uint32
}

func newWrite(b *Buffer, offset int, data []uint32) writeCmd {
	return writeCmd{buf: b, offset: offset, data: append([]uint32(nil), data...)}
}

func (c writeCmd) execute(q *Queue) {
	if c.buf.Destroyed() {
		q.reject("write to destroyed buffer", "buffer", c.buf.label)
		return
	}
	if c.offset < 0 || c.offset+len(c.data) > c.buf.size {
		q.reject("write out of range", "buffer", c.buf.label, "offset", c.offset, "words", len(c.data), "size", c.buf.size)
		return
	}
	copy(c.buf.words[c.offset:], c.data)
}

type dispatchCmd struct {
	pipeline *Pipeline
	n        int
	bind     Bindings
}

func (c dispatchCmd) execute(q *Queue) {
	if c.pipeline == nil {
		q.reject("dispatch without pipeline")
		return
	}
	for slot, b := range c.bind {
		if b == nil || b.Destroyed() {
			q.reject("dispatch with unusable binding", "kernel", c.pipeline.name, "slot", slot)
			return
		}
	}
	fn, bind := c.pipeline.fn, c.bind
	q.exec.run(c.n, func(gid int) { fn(gid, bind) })
	q.dispatches.Add(1)
	q.invocations.Add(uint64(max(c.n, 0)))
}

type readResult struct {
	data []uint32
	err  error
}

type readCmd struct {
	buf   *Buffer
	reply chan readResult
}

func (c readCmd) execute(_ *Queue) {
	if c.buf.Destroyed() {
		c.reply <- readResult{err: fmt.Errorf("%w: %s", ErrDestroyed, c.buf.label)}
		return
	}
	c.reply <- readResult{data: append([]uint32(nil), c.buf.words...)}
}

type destroyCmd struct {
	buf *Buffer
}

func (c destroyCmd) execute(_ *Queue) {
	if c.buf.destroyed.Swap(true) {
		return
	}
	c.buf.words = nil
}

type fenceCmd struct {
	ch chan struct{}
}

func (c fenceCmd) execute(_ *Queue) { close(c.ch) }
