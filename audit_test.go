package authstate

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuditDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "login_success", IdentityID: "u1", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login_success" || ev.IdentityID != "u1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.EventID == "" || ev.Timestamp.IsZero() {
			t.Fatal("dispatcher must stamp event id and timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

// blockingSink stalls deliveries until released, to back up the dispatcher
// buffer.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "logout"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events under a full buffer")
	}

	close(sink.release)
	d.Close()
}

func TestAuditDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, nil)
	if d != nil {
		t.Fatal("disabled audit must produce a nil dispatcher")
	}
	d.Emit(context.Background(), AuditEvent{EventType: "logout"}) // must not panic
	d.Close()
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: "signed_in", Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: "signed_out", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if ev.EventType != "signed_in" {
		t.Fatalf("unexpected event type: %q", ev.EventType)
	}
}

func TestEngineEmitsAuditTrail(t *testing.T) {
	provider := &mockSessionProvider{session: testSession("u1", "alice@example.com")}
	sink := NewChannelSink(64)

	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine, err := New().
		WithConfig(engineTestConfig()).
		WithRedis(rdb).
		WithSessionProvider(provider).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	waitReady(t, engine)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == "bootstrap_resolved" && ev.Success && ev.IdentityID == "u1" {
				return
			}
		case <-deadline:
			t.Fatal("bootstrap_resolved audit event never arrived")
		}
	}
}
