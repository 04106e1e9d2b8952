package accountcore_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu    sync.Mutex
	codes map[string][]string
	links map[string][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		codes: make(map[string][]string),
		links: make(map[string][]string),
	}
}

func (n *recordingNotifier) SendTwoFactorCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[email] = append(n.codes[email], code)
	return nil
}

func (n *recordingNotifier) SendPasswordResetLink(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links[email] = append(n.links[email], token)
	return nil
}

func (n *recordingNotifier) lastCode(t *testing.T, email string) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.codes[email]
	if len(codes) == 0 {
		t.Fatalf("no two-factor code sent to %s", email)
	}
	return codes[len(codes)-1]
}

type harness struct {
	engine   *accountcore.Engine
	store    *redisstore.Store
	redis    *redis.Client
	mr       *miniredis.Miniredis
	clock    *testClock
	notifier *recordingNotifier
}

func testConfig() accountcore.Config {
	cfg := accountcore.DefaultConfig()
	cfg.Tokens.SessionSecret = []byte(strings.Repeat("s", 32))
	cfg.Tokens.ResetSecret = []byte(strings.Repeat("r", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Notifications.Async = false
	cfg.Metrics.Enabled = true
	return cfg
}

type harnessSetup struct {
	cfg  accountcore.Config
	sink accountcore.AuditSink
}

type harnessOption func(*harnessSetup)

func withConfig(fn func(*accountcore.Config)) harnessOption {
	return func(s *harnessSetup) { fn(&s.cfg) }
}

func withAuditSink(sink accountcore.AuditSink) harnessOption {
	return func(s *harnessSetup) { s.sink = sink }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &testClock{now: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)}
	store := redisstore.New(rdb, redisstore.Options{Now: clock.Now})
	notifier := newRecordingNotifier()

	setup := harnessSetup{cfg: testConfig()}
	for _, opt := range opts {
		opt(&setup)
	}

	b := accountcore.New().
		WithConfig(setup.cfg).
		WithStore(store).
		WithRedis(rdb).
		WithNotifier(notifier).
		WithClock(clock.Now)
	if setup.sink != nil {
		b = b.WithAuditSink(setup.sink)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &harness{
		engine:   engine,
		store:    store,
		redis:    rdb,
		mr:       mr,
		clock:    clock,
		notifier: notifier,
	}
}

// bootstrapAdmin creates the superuser used across the engine tests.
func (h *harness) bootstrapAdmin(t *testing.T) accountcore.Account {
	t.Helper()
	acc, err := h.engine.Bootstrap(context.Background(), accountcore.NewAccount{
		Email:     "a@example.com",
		Password:  "secret1",
		DNI:       111111,
		FirstName: "A",
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return acc
}

func (h *harness) login(t *testing.T, email, password string) *accountcore.LoginResult {
	t.Helper()
	res, err := h.engine.Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}

func (h *harness) account(t *testing.T, email string) accountcore.Account {
	t.Helper()
	acc, err := h.store.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("find %s: %v", email, err)
	}
	return acc
}
