package socketout

import (
	"errors"
	"fmt"
)

// ErrDispatcherClosed is a sentinel a [Dispatcher] implementation may wrap
// or return directly when it can no longer accept work, e.g. during event
// loop shutdown.
var ErrDispatcherClosed = errors.New("socketout: dispatcher is closed")

// AsyncWriteError wraps a failure reported by the async write primitive;
// shutdown-send failures are not wrapped and reach only the tracer. The
// first such error observed by a [SocketOutput] is latched as its last
// error and propagated to every subsequent producer.
type AsyncWriteError struct {
	Err error
}

func (e *AsyncWriteError) Error() string {
	return fmt.Sprintf("socketout: async write failed: %v", e.Err)
}

func (e *AsyncWriteError) Unwrap() error { return e.Err }

// PipelineInitError wraps a panic recovered from synchronous stage-1
// pipeline initiation on the event loop thread. It is structurally distinct
// from an [AsyncWriteError]: the latter is reported asynchronously via a
// completion callback, while this one means the stage never got far enough
// to register one.
type PipelineInitError struct {
	Cause error
}

func (e *PipelineInitError) Error() string {
	return fmt.Sprintf("socketout: pipeline initiation failed: %v", e.Cause)
}

func (e *PipelineInitError) Unwrap() error { return e.Cause }

// causeToError normalizes a recover() value into an error.
func causeToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
