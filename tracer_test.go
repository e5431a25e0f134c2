package socketout

import (
	"bytes"
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func newBufferedTracer(t *testing.T, buf *bytes.Buffer, maxPerSecond int) *LogifaceTracer {
	t.Helper()
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelDebug),
	)
	return NewLogifaceTracer(logger, maxPerSecond)
}

func TestLogifaceTracer_Events(t *testing.T) {
	var buf bytes.Buffer
	tracer := newBufferedTracer(t, &buf, 0)

	tracer.ConnectionWrite("c1", 100)
	tracer.ConnectionWriteCallback("c1", nil)
	tracer.ConnectionWroteFin("c1", errors.New("reset"))
	tracer.ConnectionStop("c1")

	out := buf.Bytes()
	for _, want := range []string{
		`"conn_id":"c1"`,
		`"bytes":100`,
		`"msg":"connection write"`,
		`"msg":"connection write callback"`,
		`"msg":"connection wrote fin"`,
		`"err":"reset"`,
		`"msg":"connection stop"`,
	} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestLogifaceTracer_ThrottlesHighFrequencyEvents(t *testing.T) {
	var buf bytes.Buffer
	tracer := newBufferedTracer(t, &buf, 2)

	for i := 0; i < 20; i++ {
		tracer.ConnectionWrite("busy", i)
	}

	got := bytes.Count(buf.Bytes(), []byte(`"msg":"connection write"`))
	if got > 2 {
		t.Fatalf("throttled tracer emitted %d write events, want at most 2", got)
	}
	if got == 0 {
		t.Fatal("throttled tracer emitted no write events at all")
	}

	// Lifecycle events are never throttled, only the per-write firehose.
	tracer.ConnectionStop("busy")
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"connection stop"`)) {
		t.Fatal("connection stop event missing")
	}
}
