package socketout

// StreamHandle is the minimal lifecycle contract of the underlying
// connection's stream handle.
type StreamHandle interface {
	// IsClosed reports whether the stream has already been closed, e.g. by
	// a prior Dispose call or by the peer. Stage checks in the write
	// pipeline use this to short-circuit remaining stages.
	IsClosed() bool

	// Dispose synchronously closes the stream handle.
	Dispose() error
}

// AsyncStream is the async write/shutdown primitives contract: submitting
// a gathered write or a half-close, with completion reported via callback
// on the event loop thread.
//
// Both primitives, and the stream they operate on, live outside this
// package; AsyncStream exists only to name their contract. A production
// implementation backs this with a raw file descriptor, an IOCP handle, or
// a multiplexed session over some other transport.
type AsyncStream interface {
	StreamHandle

	// WriteAsync submits a gathered write of buffers, invoking callback
	// exactly once, on the event loop thread, with the outcome.
	WriteAsync(buffers [][]byte, callback func(err error))

	// ShutdownAsync half-closes the send side, invoking callback exactly
	// once, on the event loop thread, with the outcome.
	ShutdownAsync(callback func(err error))
}

// FilterStream is a trivially delegating decorator over an [AsyncStream].
// It exists as an extension point - e.g. for TLS or framing layered above a
// raw stream - without altering SocketOutput's contract with whatever it
// ultimately talks to. On its own it changes no behavior; every method
// simply forwards to Underlying.
type FilterStream struct {
	Underlying AsyncStream
}

func (f *FilterStream) IsClosed() bool { return f.Underlying.IsClosed() }

func (f *FilterStream) Dispose() error { return f.Underlying.Dispose() }

func (f *FilterStream) WriteAsync(buffers [][]byte, callback func(err error)) {
	f.Underlying.WriteAsync(buffers, callback)
}

func (f *FilterStream) ShutdownAsync(callback func(err error)) {
	f.Underlying.ShutdownAsync(callback)
}
