package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDeliversAndFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "user_created", UserID: "u1"})
	}
	d.Close()

	if got := len(sink.Events()); got != 3 {
		t.Fatalf("expected 3 delivered events, got %d", got)
	}
	d.Emit(context.Background(), Event{EventType: "late"})
	if got := len(sink.Events()); got != 3 {
		t.Fatalf("emit after close must be ignored, got %d events", got)
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

type blockingSink struct {
	release chan struct{}
	got     chan Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.got <- e
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), got: make(chan Event, 16)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_rejected"})
	}

	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherDropAccountingByType(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), got: make(chan Event, 16)}
	var mu sync.Mutex
	var lost []string
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		OnDrop: func(e Event) {
			mu.Lock()
			lost = append(lost, e.Username)
			mu.Unlock()
		},
	}, sink)

	// The first event parks in the sink, the second fills the buffer.
	d.Emit(context.Background(), Event{EventType: "user_created", Username: "alice"})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{EventType: "user_created", Username: "bob"})
	d.Emit(context.Background(), Event{EventType: "login_rejected", Username: "carol"})
	d.Emit(context.Background(), Event{EventType: "login_rejected", Username: "dave"})

	byType := d.DroppedByType()
	if byType["login_rejected"] != 2 || byType["user_created"] != 0 {
		t.Fatalf("unexpected drop breakdown %v", byType)
	}
	if d.Dropped() != 2 {
		t.Fatalf("expected 2 drops, got %d", d.Dropped())
	}
	mu.Lock()
	if len(lost) != 2 || lost[0] != "carol" || lost[1] != "dave" {
		t.Fatalf("OnDrop saw %v", lost)
	}
	mu.Unlock()

	close(sink.release)
	d.Close()
	if got := len(sink.got); got != 2 {
		t.Fatalf("expected both accepted events delivered, got %d", got)
	}
}

func TestDispatcherEmitRacingClose(t *testing.T) {
	sink := NewChannelSink(256)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 16; j++ {
				d.Emit(context.Background(), Event{EventType: "login_allowed"})
			}
		}()
	}
	d.Close()
	wg.Wait()

	if got := len(sink.Events()); got > 128 {
		t.Fatalf("delivered more events than emitted: %d", got)
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "user_created", UserID: "u1", ActorID: "admin", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login_rejected", Error: "error-user-is-not-activated"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.ActorID != "admin" || !first.Success {
		t.Fatalf("unexpected event: %+v", first)
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "login_allowed", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login_rejected", UserID: "u1", Error: "error-user-is-not-activated"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].Message != "login_allowed" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].ContextMap()["error"] != "error-user-is-not-activated" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}
