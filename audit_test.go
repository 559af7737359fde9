package authcore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestAuditEventsDelivered(t *testing.T) {
	sink := NewChannelSink(16)
	store := newMockStore()
	engine := newTestEngine(t, store, func(b *Builder) {
		b.WithAuditSink(sink)
	})

	id, _ := EmailIdentifier("nobody@example.com")
	_, _ = engine.Login(context.Background(), LoginRequest{Identifier: id, Password: "whatever pass"})

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventLoginFailure {
			t.Fatalf("unexpected event type %q", event.EventType)
		}
		if event.Success {
			t.Fatal("failed login must audit success=false")
		}
		if event.Metadata["reason"] != "unknown_identifier" {
			t.Fatalf("unexpected metadata %v", event.Metadata)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audit event never delivered")
	}
}

func TestAuditEventCarriesClientIP(t *testing.T) {
	sink := NewChannelSink(16)
	store := newMockStore()
	engine := newTestEngine(t, store, func(b *Builder) {
		b.WithAuditSink(sink)
	})
	seedPasswordUser(t, engine, store, "buyer@example.com", "correct horse battery")

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	id, _ := EmailIdentifier("buyer@example.com")
	if _, err := engine.Login(ctx, LoginRequest{Identifier: id, Password: "correct horse battery"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	select {
	case event := <-sink.Events():
		if event.IP != "203.0.113.9" {
			t.Fatalf("expected client IP stamped, got %q", event.IP)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audit event never delivered")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, AuditEvent) {
	<-s.release
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventUserLogin})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer and a stuck sink")
	}

	close(sink.release)
	d.Close()
}

func TestAuditDispatcherCloseDrains(t *testing.T) {
	sink := NewChannelSink(32)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 32, DropIfFull: true}, sink)

	const events = 8
	for i := 0; i < events; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventUserLogin})
	}
	d.Close()

	for i := 0; i < events; i++ {
		select {
		case <-sink.Events():
		default:
			t.Fatalf("event %d not drained before Close returned", i)
		}
	}
}

func TestAuditDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled audit must not start a dispatcher")
	}

	// Nil receivers are inert.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports zero drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		EventType: auditEventUserRegistered,
		UserID:    "user-1",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{
		EventType: auditEventLoginFailure,
		Success:   false,
		Error:     "invalid credentials",
	})

	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		lines++
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}
