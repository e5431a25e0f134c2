package socketout

import (
	"context"
	"testing"
	"time"
)

var (
	// compile time assertions

	_ Dispatcher  = (*LoopDispatcher)(nil)
	_ Dispatcher  = (*fakeDispatcher)(nil)
	_ AsyncStream = (*FilterStream)(nil)
	_ AsyncStream = (*fakeStream)(nil)
	_ Connection  = NoopConnection{}
	_ Connection  = (*fakeConn)(nil)
	_ EventTracer = NoopTracer{}
	_ EventTracer = (*LogifaceTracer)(nil)
)

// FilterStream changes nothing: every call lands on the underlying stream
// unmodified, and SocketOutput behaves identically through it.
func TestFilterStream_Delegates(t *testing.T) {
	inner := &fakeStream{}
	stream := &FilterStream{Underlying: inner}
	disp := &fakeDispatcher{}
	so := NewSocketOutput("f1", stream, disp)
	defer so.Close()

	fut, err := so.WriteAsync([]byte("hello"), true, false, false)
	if err != nil {
		t.Fatalf("WriteAsync: %v", err)
	}
	if err := mustDone(t, fut); err != nil {
		t.Fatalf("future: %v", err)
	}
	if n := inner.writeCount(); n != 1 {
		t.Fatalf("underlying write count = %d, want 1", n)
	}
	inner.fireWrite(nil)

	so.End(Disconnect)
	if inner.disposes != 1 {
		t.Fatalf("underlying disposes = %d, want 1", inner.disposes)
	}
	if !stream.IsClosed() {
		t.Fatal("filter must report the underlying stream's closed state")
	}
}

func TestSocketOutput_WriteBlocking(t *testing.T) {
	stream := &fakeStream{}
	disp := &fakeDispatcher{manual: true}
	so := NewSocketOutput("w1", stream, disp)
	defer so.Close()

	// Fast path: resolves without ever touching the (manual) dispatcher
	// queue's execution.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := so.Write(ctx, make([]byte, 10), true); err != nil {
		t.Fatalf("fast-path Write: %v", err)
	}

	// Backpressure path: exhaust the budget so the next Write queues, then
	// release it from another goroutine. This setup write itself exceeds
	// the remaining budget and queues too.
	if _, err := so.WriteAsync(make([]byte, MaxBytesPreCompleted), true, false, false); err != nil {
		t.Fatalf("setup write: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- so.Write(ctx, make([]byte, 100), true)
	}()

	// Wait for the blocked writer to be admitted behind the setup write,
	// then drain everything.
	deadline := time.Now().Add(2 * time.Second)
	for so.PendingTaskCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := so.PendingTaskCount(); got != 2 {
		t.Fatalf("pending task count = %d, want 2", got)
	}
	for disp.runOne() {
	}
	for stream.fireWrite(nil) {
		for disp.runOne() {
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("blocking Write: %v", err)
	}
}
