package socketout

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_RunsSubmittedJobs(t *testing.T) {
	p := NewWorkerPool(2)
	defer p.Close()

	var ran atomic.Int32
	done := make(chan struct{})
	const jobs = 10
	for i := 0; i < jobs; i++ {
		p.Submit(func() {
			if ran.Add(1) == jobs {
				close(done)
			}
		})
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("only %d of %d jobs ran", ran.Load(), jobs)
	}
}

// Submit must return promptly even when every worker is busy and the queue
// is full; overflow jobs run on their own goroutine rather than stalling
// the submitter.
func TestWorkerPool_SubmitNeverBlocksWhenSaturated(t *testing.T) {
	p := NewWorkerPool(1)

	started := make(chan struct{})
	release := make(chan struct{})
	p.Submit(func() {
		close(started)
		<-release
	})
	<-started

	// The lone worker is parked; fill the queue behind it.
	for i := 0; i < cap(p.jobs); i++ {
		p.Submit(func() {})
	}

	ran := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		p.Submit(func() { close(ran) })
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a saturated pool")
	}
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("overflow job never ran")
	}

	close(release)
	p.Close()
}

func TestWorkerPool_SubmitAfterCloseIsNoop(t *testing.T) {
	p := NewWorkerPool(1)
	p.Close()
	p.Submit(func() { t.Error("job ran after Close") })
	// Give a misbehaving implementation a moment to fail.
	time.Sleep(10 * time.Millisecond)
}
