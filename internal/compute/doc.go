// Package compute provides a GPU-style compute context that runs kernels on
// CPU worker goroutines.
//
// The model mirrors a device queue:
//
//   - [Device]: owns the worker pool, creates buffers and pipelines
//   - [Buffer]: device memory addressed in 32-bit words
//   - [Pipeline]: a compiled kernel, built asynchronously
//   - [Encoder]: records writes and dispatches into a [CommandBuffer]
//   - [Queue]: executes command buffers strictly in submission order
//
// # Ordering
//
// Writes enqueued before a dispatch are visible to it, and a dispatch's
// writes are visible to every command enqueued after it. Work-items inside
// one dispatch run concurrently in unspecified order; a kernel must never
// let two work-items write the same words.
//
//	dev := compute.NewDevice()
//	defer dev.Close()
//	fut := dev.CreatePipelineAsync(compute.Kernel{Name: "scale", Fn: scale})
//	buf := dev.CreateBufferInit("data", words)
//	p, _ := fut.Wait(ctx)
//	enc := dev.NewEncoder()
//	enc.Dispatch(p, len(words), buf)
//	dev.Queue().Submit(enc.Finish())
//	out, _ := dev.Queue().Read(ctx, buf)
package compute
