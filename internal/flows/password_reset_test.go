package flows

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/accountcore/account"
)

func TestPasswordResetRoundTrip(t *testing.T) {
	env := newTestEnv()
	acc := env.seed("7", "ana@example.com", "secret1", account.RoleGuest)
	acc.ResetTokenUsed = true
	acc.FailedAttempts = 2
	env.store.put(acc)
	ctx := context.Background()

	token, err := RunRequestPasswordReset(ctx, "ana@example.com", env.resetDeps())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if env.store.get("7").ResetTokenUsed {
		t.Fatal("request must arm the reset flag")
	}
	if len(env.sent) != 1 || !strings.HasSuffix(env.sent[0], token) {
		t.Fatalf("expected link delivery, got %v", env.sent)
	}

	env.clock.Advance(time.Minute)
	if err := RunConfirmPasswordReset(ctx, token, "newpass1", env.resetDeps()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	got := env.store.get("7")
	if got.PasswordHash != "h:newpass1" || !got.ResetTokenUsed || got.FailedAttempts != 0 {
		t.Fatalf("unexpected state after reset: %+v", got)
	}

	if err := RunConfirmPasswordReset(ctx, token, "other123", env.resetDeps()); !errors.Is(err, errTokenReplayed) {
		t.Fatalf("expected replay, got %v", err)
	}
	if env.store.get("7").PasswordHash != "h:newpass1" {
		t.Fatal("replay must not change the password")
	}
}

func TestPasswordResetOlderTokenRejectedAfterNewRequest(t *testing.T) {
	env := newTestEnv()
	env.seed("7", "ana@example.com", "secret1", account.RoleGuest)
	ctx := context.Background()

	first, err := RunRequestPasswordReset(ctx, "ana@example.com", env.resetDeps())
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	env.clock.Advance(2 * time.Second)
	if err := RunConfirmPasswordReset(ctx, first, "newpass1", env.resetDeps()); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	env.clock.Advance(2 * time.Second)
	if _, err := RunRequestPasswordReset(ctx, "ana@example.com", env.resetDeps()); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if err := RunConfirmPasswordReset(ctx, first, "again123", env.resetDeps()); !errors.Is(err, errTokenReplayed) {
		t.Fatalf("expected consumed token replayed after re-arm, got %v", err)
	}
}

func TestPasswordResetSameSecondTokenStaysConsumed(t *testing.T) {
	env := newTestEnv()
	env.seed("7", "ana@example.com", "secret1", account.RoleGuest)
	ctx := context.Background()

	first, err := RunRequestPasswordReset(ctx, "ana@example.com", env.resetDeps())
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	env.clock.Advance(300 * time.Millisecond)
	if err := RunConfirmPasswordReset(ctx, first, "newpass1", env.resetDeps()); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	env.clock.Advance(5 * time.Minute)
	second, err := RunRequestPasswordReset(ctx, "ana@example.com", env.resetDeps())
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if err := RunConfirmPasswordReset(ctx, first, "again123", env.resetDeps()); !errors.Is(err, errTokenReplayed) {
		t.Fatalf("expected same-second token replayed after re-arm, got %v", err)
	}
	if env.store.get("7").PasswordHash != "h:newpass1" {
		t.Fatal("replay must not change the password")
	}

	if err := RunConfirmPasswordReset(ctx, second, "again123", env.resetDeps()); err != nil {
		t.Fatalf("fresh token must still work: %v", err)
	}
}

func TestPasswordResetInvalidTokens(t *testing.T) {
	env := newTestEnv()
	acc := env.seed("7", "ana@example.com", "secret1", account.RoleGuest)
	ctx := context.Background()

	if err := RunConfirmPasswordReset(ctx, "not-a-token", "newpass1", env.resetDeps()); !errors.Is(err, errTokenInvalid) {
		t.Fatalf("expected garbage invalid, got %v", err)
	}

	session := env.tokenFor(acc)
	if err := RunConfirmPasswordReset(ctx, session, "newpass1", env.resetDeps()); !errors.Is(err, errTokenInvalid) {
		t.Fatalf("expected session token rejected, got %v", err)
	}

	token, err := RunRequestPasswordReset(ctx, "ana@example.com", env.resetDeps())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	env.clock.Advance(31 * time.Minute)
	if err := RunConfirmPasswordReset(ctx, token, "newpass1", env.resetDeps()); !errors.Is(err, errTokenInvalid) {
		t.Fatalf("expected expired token invalid, got %v", err)
	}

	orphan, _, err := env.resets.CreateReset("404")
	if err != nil {
		t.Fatalf("create orphan: %v", err)
	}
	if err := RunConfirmPasswordReset(ctx, orphan, "newpass1", env.resetDeps()); !errors.Is(err, errTokenInvalid) {
		t.Fatalf("expected unknown id invalid, got %v", err)
	}
}

func TestPasswordResetPolicyAndUnknownEmail(t *testing.T) {
	env := newTestEnv()
	env.seed("7", "ana@example.com", "secret1", account.RoleGuest)
	ctx := context.Background()

	if _, err := RunRequestPasswordReset(ctx, "nobody@example.com", env.resetDeps()); !errors.Is(err, errNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	token, err := RunRequestPasswordReset(ctx, "ana@example.com", env.resetDeps())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := RunConfirmPasswordReset(ctx, token, "abc", env.resetDeps()); !errors.Is(err, errPasswordPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
	if env.store.get("7").ResetTokenUsed {
		t.Fatal("policy failure must not consume the token")
	}
}

func TestPasswordResetRequestRateLimited(t *testing.T) {
	env := newTestEnv()
	env.seed("7", "ana@example.com", "secret1", account.RoleGuest)

	limited := errors.New("limited")
	deps := env.resetDeps()
	deps.CheckRate = func(context.Context, string) error { return limited }
	deps.RateLimited = func(err error) bool { return errors.Is(err, limited) }

	if _, err := RunRequestPasswordReset(context.Background(), "ana@example.com", deps); !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if len(env.sent) != 0 {
		t.Fatal("rate limited request must not notify")
	}
}
