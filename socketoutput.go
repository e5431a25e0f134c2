package socketout

import (
	"context"
	"sync"
)

const (
	// MaxPendingWrites bounds the number of drains concurrently posted to
	// the event loop for a single SocketOutput.
	MaxPendingWrites = 3

	// MaxBytesPreCompleted is the soft budget, in bytes, of producer
	// writes whose Future has resolved but whose underlying Block has not
	// yet been released back to the pool.
	MaxBytesPreCompleted = 65536
)

// EndType selects which half of the three-stage teardown pipeline a call
// to SocketOutput.End requests.
type EndType int

const (
	// ShutdownSend requests a half-close of the send side after any
	// pending data is written.
	ShutdownSend EndType = iota
	// Disconnect requests a full close of the stream handle after any
	// pending data (and, if also requested, shutdown-send) completes.
	Disconnect
)

// writeContext is a batch of blocks and teardown flags accumulated since
// the last drain, threaded through the write -> shutdown-send -> disconnect
// pipeline. Its methods run exclusively on the event loop thread.
type writeContext struct {
	blocks       []*Block
	shutdownSend bool
	disconnect   bool

	// writeErr and shutdownErr are populated by the respective stage's
	// completion callbacks; only writeErr is forwarded to
	// SocketOutput.onWriteCompleted.
	writeErr    error
	shutdownErr error
}

// pendingTask is a producer write admitted to the backpressure queue: its
// byte count (for budget accounting) and the Future to resolve once that
// budget allows.
type pendingTask struct {
	n   int
	fut *Future
}

// SocketOutput is the per-connection outbound write path: it accepts
// writes from any goroutine, coalesces them, admits at most
// [MaxPendingWrites] concurrent drains to the event loop, and resolves
// producer [Future] values under the [MaxBytesPreCompleted] backpressure
// policy. See doc.go for the full architecture.
type SocketOutput struct {
	id         string
	stream     AsyncStream
	dispatcher Dispatcher
	pool       *BlockPool
	conn       Connection
	tracer     EventTracer
	workers    *WorkerPool
	ownWorkers bool

	mu                   sync.Mutex
	writesPending        int
	numBytesPreCompleted int
	lastWriteErr         error
	nextCtx              *writeContext
	tasksPending         []pendingTask
}

// NewSocketOutput constructs a SocketOutput writing through stream and
// scheduling drains via dispatcher. id is an opaque connection identifier
// forwarded to the tracer. By default it owns a freshly constructed
// [BlockPool], [NoopConnection], [NoopTracer], and a private [WorkerPool];
// each can be overridden via Option.
func NewSocketOutput(id string, stream AsyncStream, dispatcher Dispatcher, opts ...Option) *SocketOutput {
	so := &SocketOutput{
		id:         id,
		stream:     stream,
		dispatcher: dispatcher,
		pool:       NewBlockPool(),
		conn:       NoopConnection{},
		tracer:     NoopTracer{},
		workers:    NewWorkerPool(0),
		ownWorkers: true,
	}
	for _, opt := range opts {
		opt(so)
	}
	return so
}

// Close releases resources owned by SocketOutput - currently, the default
// [WorkerPool] constructed by NewSocketOutput. It is a no-op if the worker
// pool was supplied via [WithWorkerPool], since that pool is assumed to be
// shared with other callers.
func (so *SocketOutput) Close() {
	if so.ownWorkers {
		so.workers.Close()
	}
}

// WriteAsync copies buf into pool-leased blocks, merges them into the
// pending batch, and returns a Future that resolves once the write's
// producer-visible completion policy is satisfied. Safe to call from any
// goroutine.
func (so *SocketOutput) WriteAsync(buf []byte, immediate, shutdownSend, disconnect bool) (*Future, error) {
	blocks := copyIntoBlocks(so.pool, buf)

	so.mu.Lock()

	if so.nextCtx == nil {
		so.nextCtx = &writeContext{}
	}
	// Snapshot the batch flags so a scheduling failure below can restore
	// them; flags OR'd in by this call must not leak to the next write.
	prevShutdownSend := so.nextCtx.shutdownSend
	prevDisconnect := so.nextCtx.disconnect
	so.nextCtx.blocks = append(so.nextCtx.blocks, blocks...)
	so.nextCtx.shutdownSend = so.nextCtx.shutdownSend || shutdownSend
	so.nextCtx.disconnect = so.nextCtx.disconnect || disconnect

	n := len(buf)
	var fut *Future
	pendingIdx := -1
	switch {
	case !immediate:
		// Non-immediate writes are always followed by an immediate write;
		// their bytes drain together, so the promise completes now.
		so.numBytesPreCompleted += n
		fut = newCompletedFuture(nil)

	case so.lastWriteErr == nil && len(so.tasksPending) == 0 && so.numBytesPreCompleted+n <= MaxBytesPreCompleted:
		// Fast path: no admission queue, small in-flight total, no prior error.
		so.numBytesPreCompleted += n
		fut = newCompletedFuture(nil)

	default:
		fut = newPendingFuture()
		so.tasksPending = append(so.tasksPending, pendingTask{n: n, fut: fut})
		pendingIdx = len(so.tasksPending) - 1
	}

	if immediate && so.writesPending < MaxPendingWrites {
		so.writesPending++
		if err := so.dispatcher.Post(so.drain); err != nil {
			so.writesPending--
			so.rollbackBlocksLocked(blocks)
			so.nextCtx.shutdownSend = prevShutdownSend
			so.nextCtx.disconnect = prevDisconnect
			if len(so.nextCtx.blocks) == 0 && !so.nextCtx.shutdownSend && !so.nextCtx.disconnect {
				so.nextCtx = nil
			}
			if pendingIdx >= 0 {
				// The caller receives this error synchronously and will
				// never observe fut; don't leave it dangling in the queue.
				so.tasksPending = so.tasksPending[:pendingIdx]
			} else {
				// The fast path already charged these bytes to the budget,
				// but the rolled-back blocks will never pass through a
				// completion callback to release them.
				so.numBytesPreCompleted -= n
			}
			so.mu.Unlock()
			return nil, err
		}
	}

	so.mu.Unlock()
	return fut, nil
}

// rollbackBlocksLocked undoes the tail-append of blocks onto so.nextCtx,
// unpinning and returning each to the pool. Callers must hold so.mu.
func (so *SocketOutput) rollbackBlocksLocked(blocks []*Block) {
	if len(blocks) == 0 {
		return
	}
	if so.nextCtx != nil {
		keep := len(so.nextCtx.blocks) - len(blocks)
		if keep < 0 {
			keep = 0
		}
		so.nextCtx.blocks = so.nextCtx.blocks[:keep]
	}
	for _, b := range blocks {
		b.Unpin()
		so.pool.Return(b)
	}
}

// End is shorthand for an empty, immediate WriteAsync requesting the given
// teardown stage. Any synchronous scheduling error aborts the connection,
// since End has no caller-visible return value to report it through.
func (so *SocketOutput) End(t EndType) {
	if _, err := so.WriteAsync(nil, true, t == ShutdownSend, t == Disconnect); err != nil {
		so.conn.Abort(err)
	}
}

// Write is the blocking form of WriteAsync: it returns immediately if the
// resulting Future is already resolved, otherwise it blocks until ctx is
// done or the Future resolves, returning its error.
func (so *SocketOutput) Write(ctx context.Context, buf []byte, immediate bool) error {
	fut, err := so.WriteAsync(buf, immediate, false, false)
	if err != nil {
		return err
	}
	if fut.Done() {
		return fut.Wait(context.Background())
	}
	return fut.Wait(ctx)
}

// drain runs on the event loop thread: it moves the accumulated batch out
// of so.nextCtx and begins the three-stage pipeline. Posted via
// so.dispatcher.Post.
func (so *SocketOutput) drain() {
	so.mu.Lock()
	ctx := so.nextCtx
	so.nextCtx = nil
	if ctx == nil {
		// Drain was posted speculatively (e.g. by a repost that raced with
		// another drain already having picked up the batch); harmless.
		so.writesPending--
		so.mu.Unlock()
		return
	}
	so.mu.Unlock()

	so.runPipeline(ctx)
}

// runPipeline begins ctx's write stage, recovering a synchronous panic
// from stage initiation as a [PipelineInitError] and routing it through
// the same accounting pass as a normal completion, so every invariant
// (block return, byte accounting, FIFO release, abort) holds on both exit
// paths.
func (so *SocketOutput) runPipeline(ctx *writeContext) {
	defer func() {
		if r := recover(); r != nil {
			so.completeBatch(ctx.blocks, &PipelineInitError{Cause: causeToError(r)})
		}
	}()
	ctx.doWriteIfNeeded(so)
}

// doWriteIfNeeded is stage 1: submit one gathered async write carrying
// every block in ctx, unless there's nothing to write or the stream is
// already closed.
func (ctx *writeContext) doWriteIfNeeded(so *SocketOutput) {
	if len(ctx.blocks) == 0 || so.stream.IsClosed() {
		ctx.doShutdownIfNeeded(so)
		return
	}

	buffers := make([][]byte, len(ctx.blocks))
	n := 0
	for i, b := range ctx.blocks {
		buffers[i] = b.Bytes()
		n += b.Len()
	}

	so.tracer.ConnectionWrite(so.id, n)
	so.stream.WriteAsync(buffers, func(err error) {
		so.tracer.ConnectionWriteCallback(so.id, err)
		ctx.writeErr = err
		ctx.doShutdownIfNeeded(so)
	})
}

// doShutdownIfNeeded is stage 2: submit a half-close, unless shutdownSend
// wasn't requested or the stream is already closed.
func (ctx *writeContext) doShutdownIfNeeded(so *SocketOutput) {
	if !ctx.shutdownSend || so.stream.IsClosed() {
		ctx.doDisconnectIfNeeded(so)
		return
	}

	so.stream.ShutdownAsync(func(err error) {
		ctx.shutdownErr = err
		so.tracer.ConnectionWroteFin(so.id, err)
		ctx.doDisconnectIfNeeded(so)
	})
}

// doDisconnectIfNeeded is stage 3: synchronously dispose the stream
// handle, unless disconnect wasn't requested or the stream is already
// closed.
func (ctx *writeContext) doDisconnectIfNeeded(so *SocketOutput) {
	if !ctx.disconnect || so.stream.IsClosed() {
		ctx.complete(so)
		return
	}

	_ = so.stream.Dispose()
	so.tracer.ConnectionStop(so.id)
	ctx.complete(so)
}

// complete hands the finished batch to SocketOutput.onWriteCompleted. Only
// the write stage's error is forwarded; the shutdown stage's outcome is
// observable solely via the tracer.
func (ctx *writeContext) complete(so *SocketOutput) {
	so.onWriteCompleted(ctx.blocks, ctx.writeErr)
}

// onWriteCompleted wraps a non-nil stage-1 error as an [AsyncWriteError]
// and routes the batch through the shared completion-accounting pass.
func (so *SocketOutput) onWriteCompleted(blocks []*Block, writeErr error) {
	var err error
	if writeErr != nil {
		err = &AsyncWriteError{Err: writeErr}
	}
	so.completeBatch(blocks, err)
}

// completeBatch is the single accounting pass shared by a normal pipeline
// completion and a recovered [PipelineInitError]: latch the first error,
// resolve the drain slot, release blocks, advance the backpressure budget,
// and hand off newly eligible producer futures to the worker pool.
func (so *SocketOutput) completeBatch(blocks []*Block, batchErr error) {
	so.mu.Lock()

	needAbort := false
	if batchErr != nil && so.lastWriteErr == nil {
		so.lastWriteErr = batchErr
		needAbort = true
	}

	if so.nextCtx != nil {
		// Another batch accumulated while this one was in flight: reuse
		// the drain slot rather than freeing and immediately re-taking it.
		// A repost can only fail if the loop is shutting down, in which
		// case the leftover batch is unreachable anyway; keeping the slot
		// occupied stops further drains from being posted at it.
		_ = so.dispatcher.Post(so.drain)
	} else {
		so.writesPending--
	}

	for _, b := range blocks {
		so.numBytesPreCompleted -= b.Len()
		b.Unpin()
		so.pool.Return(b)
	}

	bytesLeft := MaxBytesPreCompleted - so.numBytesPreCompleted
	var ready []pendingTask
	for len(so.tasksPending) > 0 && so.tasksPending[0].n <= bytesLeft {
		head := so.tasksPending[0]
		so.tasksPending = so.tasksPending[1:]
		so.numBytesPreCompleted += head.n
		bytesLeft -= head.n
		ready = append(ready, head)
	}

	if so.numBytesPreCompleted < 0 {
		panic("socketout: pre-completed byte count negative at end of completion pass")
	}

	completionErr := so.lastWriteErr
	so.mu.Unlock()

	// Submissions happen after releasing the lock so a full worker queue
	// can never stall the loop thread inside the critical section. This
	// runs only on the loop thread, so release order is still the order
	// tasks were popped above.
	for _, task := range ready {
		task := task
		so.workers.Submit(func() { task.fut.complete(completionErr) })
	}

	if needAbort {
		so.conn.Abort(completionErr)
	}
}

// WritesPending reports the current count of scheduled, not-yet-completed
// drains. Exposed for tests and monitoring; never exceeds [MaxPendingWrites].
func (so *SocketOutput) WritesPending() int {
	so.mu.Lock()
	defer so.mu.Unlock()
	return so.writesPending
}

// NumBytesPreCompleted reports the current pre-completed byte budget in
// use. At quiescence (no in-flight drains, no queued tasks) this is 0.
func (so *SocketOutput) NumBytesPreCompleted() int {
	so.mu.Lock()
	defer so.mu.Unlock()
	return so.numBytesPreCompleted
}

// PendingTaskCount reports the number of producer writes currently queued
// behind the backpressure budget, awaiting a Future resolution.
func (so *SocketOutput) PendingTaskCount() int {
	so.mu.Lock()
	defer so.mu.Unlock()
	return len(so.tasksPending)
}

// LastWriteError reports the latched error from the first write or
// pipeline-init failure observed by this SocketOutput, or nil.
func (so *SocketOutput) LastWriteError() error {
	so.mu.Lock()
	defer so.mu.Unlock()
	return so.lastWriteErr
}
