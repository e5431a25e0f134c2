// Package socketout implements the outbound write path of a single
// connection in an event-loop-based server: backpressure-aware buffered
// writing with bounded memory and at-most-N in-flight I/O operations.
//
// # Architecture
//
// [SocketOutput] is the component producers call from arbitrary goroutines.
// It copies caller bytes into pool-leased [Block] values, coalesces them
// into a pending [writeContext], and admits at most [MaxPendingWrites]
// concurrent drains to the event loop via a [Dispatcher]. Each drain runs
// the three-stage pipeline (write, shutdown-send, disconnect) against an
// [AsyncStream], then reports completion back to SocketOutput, which
// releases blocks, updates the pre-completed byte budget, and resolves
// producer [Future] values in admission order.
//
// # Collaborators
//
// The event loop, the async write/shutdown primitives, the memory-block
// pool's underlying storage, the connection supervisor, and the tracer are
// all external to this package, referenced only by the [Dispatcher],
// [AsyncStream], [StreamHandle], [Connection], and [EventTracer]
// interfaces. This package does not implement an event loop; callers
// typically adapt one via [LoopDispatcher], e.g. backed by
// github.com/joeycumines/go-eventloop.
//
// # Thread Safety
//
// [SocketOutput.WriteAsync] and [SocketOutput.End] are safe to call from any
// goroutine. Drain tasks and the pipeline stage methods only ever run on
// the event loop's single thread. Producer [Future] completions are
// handed off to a [WorkerPool] so the loop thread is never blocked re-
// entering SocketOutput's lock from producer code.
//
// # Backpressure
//
// Two constants bound memory and fan-out: [MaxBytesPreCompleted] caps the
// bytes a producer may have "pre-completed" (promise resolved, buffer not
// yet released) before subsequent immediate writes start queuing behind a
// [Future] that resolves only once a write completion frees up budget.
// [MaxPendingWrites] caps the number of drains concurrently in flight on
// the event loop for a single connection.
package socketout
