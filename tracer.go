package socketout

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// EventTracer is the tracer/logger contract: four named events covering a
// write's life cycle, keyed by a caller-assigned connection id.
type EventTracer interface {
	ConnectionWrite(id string, n int)
	ConnectionWriteCallback(id string, err error)
	ConnectionWroteFin(id string, err error)
	ConnectionStop(id string)
}

// NoopTracer implements EventTracer by discarding every event.
type NoopTracer struct{}

func (NoopTracer) ConnectionWrite(string, int)           {}
func (NoopTracer) ConnectionWriteCallback(string, error) {}
func (NoopTracer) ConnectionWroteFin(string, error)      {}
func (NoopTracer) ConnectionStop(string)                 {}

// LogifaceTracer implements EventTracer on top of
// github.com/joeycumines/logiface, writing structured JSON events through
// github.com/joeycumines/stumpy.
//
// High-frequency events (per-write, per-callback) are throttled per
// connection id via github.com/joeycumines/go-catrate's sliding-window
// Limiter, so a chatty connection cannot flood the log.
type LogifaceTracer struct {
	logger  *logiface.Logger[*stumpy.Event]
	limiter *catrate.Limiter
}

// NewLogifaceTracer constructs a LogifaceTracer writing through logger,
// throttling per-connection write/callback events to at most maxPerSecond
// per connection id (a non-positive value disables throttling).
func NewLogifaceTracer(logger *logiface.Logger[*stumpy.Event], maxPerSecond int) *LogifaceTracer {
	t := &LogifaceTracer{logger: logger}
	if maxPerSecond > 0 {
		t.limiter = catrate.NewLimiter(map[time.Duration]int{
			time.Second: maxPerSecond,
		})
	}
	return t
}

func (t *LogifaceTracer) allow(id string) bool {
	if t.limiter == nil {
		return true
	}
	_, ok := t.limiter.Allow(id)
	return ok
}

func (t *LogifaceTracer) ConnectionWrite(id string, n int) {
	if t.logger == nil || !t.allow(id) {
		return
	}
	t.logger.Debug().Str("conn_id", id).Int("bytes", n).Log("connection write")
}

func (t *LogifaceTracer) ConnectionWriteCallback(id string, err error) {
	if t.logger == nil || !t.allow(id) {
		return
	}
	b := t.logger.Debug().Str("conn_id", id)
	if err != nil {
		b = b.Err(err)
	}
	b.Log("connection write callback")
}

func (t *LogifaceTracer) ConnectionWroteFin(id string, err error) {
	if t.logger == nil {
		return
	}
	b := t.logger.Info().Str("conn_id", id)
	if err != nil {
		b = b.Err(err)
	}
	b.Log("connection wrote fin")
}

func (t *LogifaceTracer) ConnectionStop(id string) {
	if t.logger == nil {
		return
	}
	t.logger.Info().Str("conn_id", id).Log("connection stop")
}
