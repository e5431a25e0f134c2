package socketout

import "context"

// Future models the outcome of a single write_async call. It is either
// already complete when returned (the fast path) or becomes complete
// exactly once, later, when a worker pool resolves it (the backpressure
// path). A done channel guards a recorded error, observed via Wait;
// producers only need to know a previously submitted write has completed,
// and if so, with what error.
type Future struct {
	done chan struct{}
	err  error
}

// newCompletedFuture returns a Future that is already resolved.
func newCompletedFuture(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// newPendingFuture returns an unresolved Future, to be completed later by
// exactly one call to complete.
func newPendingFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete resolves the Future. It must be called at most once.
func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Done reports whether the Future has already resolved, without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Future resolves or ctx is done, whichever comes
// first, returning the Future's error (nil on success) or ctx.Err().
//
// There is no per-write cancellation: a done ctx only stops the caller
// waiting, it never alters the underlying write.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
