package socketout

// Option configures a [SocketOutput] at construction time. Only the
// collaborators that actually vary between callers (the pool, the tracer,
// the worker pool, the connection supervisor) are overridable this way;
// the tuning constants ([MaxPendingWrites], [MaxBytesPreCompleted],
// [BlockCapacity]) are fixed.
type Option func(*SocketOutput)

// WithBlockPool overrides the default [BlockPool] used to lease and return
// write buffers. Defaults to a freshly constructed [NewBlockPool].
func WithBlockPool(pool *BlockPool) Option {
	return func(so *SocketOutput) { so.pool = pool }
}

// WithConnection overrides the [Connection] supervisor notified via Abort
// on the first write error. Defaults to [NoopConnection].
func WithConnection(conn Connection) Option {
	return func(so *SocketOutput) { so.conn = conn }
}

// WithTracer overrides the [EventTracer] used to report lifecycle events.
// Defaults to [NoopTracer].
func WithTracer(tracer EventTracer) Option {
	return func(so *SocketOutput) { so.tracer = tracer }
}

// WithWorkerPool overrides the [WorkerPool] used to complete producer
// futures off the event loop thread. Defaults to a [SocketOutput]-owned
// pool of [defaultWorkerPoolSize] workers, which is closed by
// [SocketOutput.Close]; a pool supplied via WithWorkerPool is assumed to be
// shared and is left running by Close.
func WithWorkerPool(pool *WorkerPool) Option {
	return func(so *SocketOutput) {
		so.workers = pool
		so.ownWorkers = false
	}
}
