// Package notify delivers two-factor codes and reset links to the
// out-of-band sender without letting delivery failures reach the flow that
// already committed state.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sender is the notification collaborator.
type Sender interface {
	SendTwoFactorCode(ctx context.Context, email, code string) error
	SendPasswordResetLink(ctx context.Context, email, token string) error
}

// Kind selects the Sender method for a Message.
type Kind uint8

const (
	KindTwoFactorCode Kind = iota + 1
	KindPasswordReset
)

func (k Kind) String() string {
	switch k {
	case KindTwoFactorCode:
		return "two_factor_code"
	case KindPasswordReset:
		return "password_reset_link"
	default:
		return "unknown"
	}
}

// Message is one pending delivery. Secret holds the code or the token and
// is never logged.
type Message struct {
	Kind   Kind
	Email  string
	Secret string
}

// Config controls delivery mode.
type Config struct {
	Async      bool
	BufferSize int
	Timeout    time.Duration
}

// Dispatcher forwards messages to a Sender, synchronously or through a
// buffered worker.
type Dispatcher struct {
	cfg    Config
	sender Sender
	logger *zap.Logger

	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns nil when sender is nil; a nil Dispatcher discards
// every message.
func NewDispatcher(cfg Config, sender Sender, logger *zap.Logger) *Dispatcher {
	if sender == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		logger: logger.Named("notify"),
		done:   make(chan struct{}),
	}
	if cfg.Async {
		d.ch = make(chan Message, cfg.BufferSize)
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(context.Background(), msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(context.Background(), msg)
				default:
					return
				}
			}
		}
	}
}

// Send hands msg to the Sender. In async mode a full buffer drops the
// message and counts it.
func (d *Dispatcher) Send(ctx context.Context, msg Message) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !d.cfg.Async {
		d.deliver(context.WithoutCancel(ctx), msg)
		return
	}

	select {
	case d.ch <- msg:
	case <-d.done:
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification dropped, buffer full", zap.Stringer("kind", msg.Kind))
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	var err error
	switch msg.Kind {
	case KindTwoFactorCode:
		err = d.sender.SendTwoFactorCode(ctx, msg.Email, msg.Secret)
	case KindPasswordReset:
		err = d.sender.SendPasswordResetLink(ctx, msg.Email, msg.Secret)
	default:
		return
	}
	if err != nil {
		d.failed.Add(1)
		d.logger.Warn("notification delivery failed", zap.Stringer("kind", msg.Kind), zap.Error(err))
	}
}

// Close stops accepting messages and drains the buffer.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns messages discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed returns deliveries the Sender rejected.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
