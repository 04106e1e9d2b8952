package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSender struct {
	mu    sync.Mutex
	codes []string
	links []string
	err   error
	gate  chan struct{}
}

func (s *recordingSender) SendTwoFactorCode(_ context.Context, email, code string) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, email+"="+code)
	return s.err
}

func (s *recordingSender) SendPasswordResetLink(_ context.Context, email, token string) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, email+"="+token)
	return s.err
}

func TestSyncDelivery(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(Config{}, sender, nil)
	defer d.Close()

	d.Send(context.Background(), Message{Kind: KindTwoFactorCode, Email: "a@example.com", Secret: "123456"})
	d.Send(context.Background(), Message{Kind: KindPasswordReset, Email: "a@example.com", Secret: "tok"})

	if len(sender.codes) != 1 || sender.codes[0] != "a@example.com=123456" {
		t.Fatalf("unexpected codes %v", sender.codes)
	}
	if len(sender.links) != 1 || sender.links[0] != "a@example.com=tok" {
		t.Fatalf("unexpected links %v", sender.links)
	}
}

func TestAsyncDeliveryDrainsOnClose(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(Config{Async: true, BufferSize: 16}, sender, nil)

	for i := 0; i < 10; i++ {
		d.Send(context.Background(), Message{Kind: KindTwoFactorCode, Email: "a@example.com", Secret: "111111"})
	}
	d.Close()

	if len(sender.codes) != 10 {
		t.Fatalf("expected 10 deliveries, got %d", len(sender.codes))
	}
}

func TestAsyncDropWhenFull(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	d := NewDispatcher(Config{Async: true, BufferSize: 1}, sender, nil)

	for i := 0; i < 10; i++ {
		d.Send(context.Background(), Message{Kind: KindPasswordReset, Email: "a@example.com", Secret: "tok"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped messages")
	}
	close(sender.gate)
	d.Close()
}

func TestFailureIsLoggedWithoutSecret(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sender := &recordingSender{err: errors.New("smtp down")}
	d := NewDispatcher(Config{}, sender, zap.New(core))
	defer d.Close()

	d.Send(context.Background(), Message{Kind: KindPasswordReset, Email: "a@example.com", Secret: "very-secret-token"})

	if d.Failed() != 1 {
		t.Fatalf("expected 1 failure, got %d", d.Failed())
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warn entry, got %d", len(entries))
	}
	for k, v := range entries[0].ContextMap() {
		if s, ok := v.(string); ok && strings.Contains(s, "very-secret-token") {
			t.Fatalf("secret leaked in field %s", k)
		}
	}
}

func TestNilDispatcher(t *testing.T) {
	d := NewDispatcher(Config{}, nil, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher without sender")
	}
	d.Send(context.Background(), Message{Kind: KindTwoFactorCode})
	d.Close()
}
