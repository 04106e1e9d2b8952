package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink, nil)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered events, got %d", got)
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected emit after close to be ignored, got %d", got)
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "flood"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and tiny buffer")
	}

	close(sink.gate)
	d.Close()
}

func TestDispatcherBlockingRespectsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)

	d.Emit(context.Background(), Event{EventType: "first"})
	d.Emit(context.Background(), Event{EventType: "second"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{EventType: "third"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocking emit did not honor context cancellation")
	}

	close(sink.gate)
	d.Close()
}

type ctxIPKey struct{}

type recordingSink struct {
	events chan Event
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	s.events <- event
}

func TestDispatcherEnrichesEvents(t *testing.T) {
	stamp := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	sink := &recordingSink{events: make(chan Event, 2)}
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 4,
		Now:        func() time.Time { return stamp },
		ClientIP: func(ctx context.Context) string {
			ip, _ := ctx.Value(ctxIPKey{}).(string)
			return ip
		},
	}, sink, nil)

	ctx := context.WithValue(context.Background(), ctxIPKey{}, "203.0.113.9")
	d.Emit(ctx, Event{EventType: "login_failure", AccountID: "7"})
	d.Emit(ctx, Event{EventType: "logout", IP: "192.0.2.1", Timestamp: stamp.Add(time.Hour)})
	d.Close()

	first, second := <-sink.events, <-sink.events
	if !first.Timestamp.Equal(stamp) || first.IP != "203.0.113.9" || first.AccountID != "7" {
		t.Fatalf("event not enriched: %+v", first)
	}
	if !second.Timestamp.Equal(stamp.Add(time.Hour)) || second.IP != "192.0.2.1" {
		t.Fatalf("explicit fields must win: %+v", second)
	}
}

type panicSink struct {
	calls atomic.Int64
}

func (s *panicSink) Emit(_ context.Context, event Event) {
	s.calls.Add(1)
	if event.EventType == "boom" {
		panic("sink exploded")
	}
}

func TestDispatcherContainsSinkPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := &panicSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, zap.New(core))

	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()

	if got := sink.calls.Load(); got != 2 {
		t.Fatalf("worker must survive a panicking sink, got %d calls", got)
	}
	if d.Failed() != 1 {
		t.Fatalf("expected one failed event, got %d", d.Failed())
	}
	if logs.FilterMessage("audit sink panicked").Len() != 1 {
		t.Fatalf("expected panic to be logged, got %v", logs.All())
	}
}

func TestDispatcherLogsDrops(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, zap.New(core))

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "flood", AccountID: "7"})
	}
	close(sink.gate)
	d.Close()

	if d.Dropped() == 0 || logs.FilterMessage("audit event dropped, buffer full").Len() != int(d.Dropped()) {
		t.Fatalf("expected one warning per drop, dropped=%d logs=%d", d.Dropped(), logs.Len())
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "login_failure", AccountID: "7", Error: "invalid_credentials"})

	line := strings.TrimSpace(buf.String())
	var decoded Event
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("invalid JSON line %q: %v", line, err)
	}
	if decoded.EventType != "login_failure" || decoded.AccountID != "7" || decoded.Error != "invalid_credentials" {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestLoggerSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLoggerSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "login_success", AccountID: "1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid_credentials", Metadata: map[string]string{"tier": "soft"}})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[0].Message != "login_success" {
		t.Fatalf("unexpected first entry %+v", entries[0].Entry)
	}
	if entries[1].Level != zap.WarnLevel {
		t.Fatalf("expected failure at warn, got %v", entries[1].Level)
	}
	ctx := entries[1].ContextMap()
	if ctx["error_code"] != "invalid_credentials" || ctx["meta.tier"] != "soft" {
		t.Fatalf("unexpected fields %+v", ctx)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(2)
	sink.Emit(context.Background(), Event{EventType: "a"})
	select {
	case ev := <-sink.Events():
		if ev.EventType != "a" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("expected buffered event")
	}
}
