package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) { <-s.gate }

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

func TestDispatcherStampsAndDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "rollin_started", UserID: "u1"})

	select {
	case ev := <-sink.Events():
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Fatalf("expected id and timestamp stamped, got %+v", ev)
		}
		if ev.EventType != "rollin_started" || ev.UserID != "u1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// The first event parks in the sink, the second fills the buffer.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "poll_failed"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a blocked sink")
	}
	close(sink.gate)
	d.Close()
	if d.Delivered()+d.Dropped() != 10 {
		t.Fatalf("delivered=%d dropped=%d", d.Delivered(), d.Dropped())
	}
}

func TestDispatcherCloseDrainsAndRejects(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "logout"})
	}
	d.Close()
	d.Close()

	if got := len(sink.Events()); got != 3 {
		t.Fatalf("expected 3 drained events, got %d", got)
	}
	d.Emit(context.Background(), Event{EventType: "logout"})
	if got := len(sink.Events()); got != 3 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

func TestJSONWriterSinkOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "session_promoted", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "logout", UserID: "u1", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.EventType != "session_promoted" || !ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := NewChannelSink(1), NewChannelSink(1)
	MultiSink{a, nil, b}.Emit(context.Background(), Event{EventType: "logout"})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatal("expected both sinks to receive the event")
	}
}

type panicSink struct{ calls int }

func (s *panicSink) Emit(context.Context, Event) {
	s.calls++
	if s.calls == 1 {
		panic("sink exploded")
	}
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	sink := &panicSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Emit(context.Background(), Event{EventType: "poll_failed"})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()

	if d.Delivered() != 1 || d.Dropped() != 1 {
		t.Fatalf("delivered=%d dropped=%d, want 1/1", d.Delivered(), d.Dropped())
	}
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{EventType: "rollin_started"})
	d.Emit(context.Background(), Event{EventType: "rollin_started"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "rollin_started"})

	if d.Dropped() != 1 {
		t.Fatalf("expected the timed-out emit to count as dropped, got %d", d.Dropped())
	}
	close(sink.gate)
	d.Close()
}
