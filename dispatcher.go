package socketout

import eventloop "github.com/joeycumines/go-eventloop"

// Dispatcher is the event-loop-dispatcher contract: schedule fn to run on
// the loop's single designated thread. Post may fail synchronously - e.g.
// if the loop is shutting down - in which case the caller must roll back
// any state it optimistically prepared before calling Post.
//
// The event loop itself lives outside this package; Dispatcher exists only
// to name its contract.
type Dispatcher interface {
	Post(fn func()) error
}

// LoopDispatcher adapts an *eventloop.Loop (github.com/joeycumines/go-eventloop)
// to Dispatcher, submitting work to the loop's external queue - the same
// queue producer-facing APIs elsewhere in that package use for
// cross-goroutine scheduling.
type LoopDispatcher struct {
	Loop *eventloop.Loop
}

// Post submits fn to the wrapped loop's external queue.
func (d *LoopDispatcher) Post(fn func()) error {
	return d.Loop.Submit(fn)
}
