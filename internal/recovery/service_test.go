// AngelaMos | 2026
// service_test.go

package recovery_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/carterperez-dev/taskflow-auth/internal/account"
	"github.com/carterperez-dev/taskflow-auth/internal/config"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
	"github.com/carterperez-dev/taskflow-auth/internal/memstore"
	"github.com/carterperez-dev/taskflow-auth/internal/recovery"
)

type revoker struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *revoker) RevokeAll(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, accountID)
	return nil
}

type fixture struct {
	svc      *recovery.Service
	accounts *account.Service
	tokens   *memstore.RecoveryTokens
	revoker  *revoker
	now      time.Time
	alice    *account.Account
}

func newFixture(t *testing.T, opts ...recovery.Option) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := account.NewService(
		memstore.NewAccounts(),
		account.NewPolicy(
			config.PasswordConfig{MinLength: 8, MaxLength: 128, RequireUpper: true, RequireLower: true, RequireDigit: true},
			config.UsernameConfig{MinLength: 3, MaxLength: 50},
		),
		nil,
		"worker",
		logger,
	)

	alice, err := accounts.Register(context.Background(), account.RegisterInput{
		Username: "alice",
		Password: "Password1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	f := &fixture{
		accounts: accounts,
		tokens:   memstore.NewRecoveryTokens(),
		revoker:  &revoker{},
		now:      time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		alice:    alice,
	}
	f.svc = recovery.NewService(
		f.tokens,
		accounts,
		f.revoker,
		&memstore.Tx{},
		config.RecoveryConfig{TokenTTL: 24 * time.Hour, TokenBytes: 32},
		logger,
		append([]recovery.Option{recovery.WithClock(func() time.Time { return f.now })}, opts...)...,
	)

	return f
}

func TestInitiateKnownUser(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Initiate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if out.Message == "" || out.Token == "" || out.AccountID != f.alice.ID {
		t.Fatalf("outcome = %+v", out)
	}
	if out.ExpiresAt == nil || !out.ExpiresAt.Equal(f.now.Add(24*time.Hour)) {
		t.Fatalf("expires at = %v", out.ExpiresAt)
	}
	if len(out.Token) < 40 {
		t.Fatalf("token too short for 32 random bytes: %q", out.Token)
	}

	stored, err := f.tokens.FindByHash(context.Background(), core.HashToken(out.Token))
	if err != nil {
		t.Fatalf("token not stored by hash: %v", err)
	}
	if stored.TokenHash == out.Token {
		t.Fatal("plaintext token stored")
	}
}

func TestInitiateUnknownUserLooksLikeSuccess(t *testing.T) {
	f := newFixture(t)

	known, err := f.svc.Initiate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Initiate known: %v", err)
	}

	unknown, err := f.svc.Initiate(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Initiate unknown must not fail: %v", err)
	}
	if unknown.Message != known.Message {
		t.Fatalf("messages differ: %q vs %q", unknown.Message, known.Message)
	}
	if unknown.Token != "" || unknown.AccountID != "" || unknown.ExpiresAt != nil {
		t.Fatalf("unknown outcome carries data: %+v", unknown)
	}
}

func TestResetChangesPasswordAndRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Initiate(ctx, "alice")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if err := f.svc.Reset(ctx, out.Token, "NewPassword9"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if _, err := f.accounts.Authenticate(ctx, "alice", "NewPassword9"); err != nil {
		t.Fatalf("new password: %v", err)
	}
	if _, err := f.accounts.Authenticate(ctx, "alice", "Password1"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("old password = %v", err)
	}
	if len(f.revoker.calls) != 1 || f.revoker.calls[0] != f.alice.ID {
		t.Fatalf("revoke calls = %v", f.revoker.calls)
	}

	if err := f.svc.Reset(ctx, out.Token, "Another1x"); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("reused token = %v, want ErrTokenInvalid", err)
	}
}

func TestResetErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.Reset(ctx, "unknown", "NewPassword9"); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("unknown token = %v, want ErrTokenInvalid", err)
	}

	out, err := f.svc.Initiate(ctx, "alice")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if err := f.svc.Reset(ctx, out.Token, "weak"); !errors.Is(err, core.ErrWeakPassword) {
		t.Fatalf("weak password = %v, want ErrWeakPassword", err)
	}

	stored, err := f.tokens.FindByHash(ctx, core.HashToken(out.Token))
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if stored.IsUsed() {
		t.Fatal("a policy failure must not consume the token")
	}

	f.now = f.now.Add(24*time.Hour + time.Second)
	if err := f.svc.Reset(ctx, out.Token, "NewPassword9"); !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("expired token = %v, want ErrTokenExpired", err)
	}
}

func TestConcurrentResetSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Initiate(ctx, "alice")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.Reset(ctx, out.Token, "NewPassword9")
		}()
	}
	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, core.ErrTokenInvalid) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	if len(f.revoker.calls) != 1 {
		t.Fatalf("sessions revoked %d times", len(f.revoker.calls))
	}
}

func TestResetSurfacesRevokeFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.revoker.err = errors.New("db down")

	out, err := f.svc.Initiate(ctx, "alice")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if err := f.svc.Reset(ctx, out.Token, "NewPassword9"); err == nil {
		t.Fatal("expected revoke failure to fail the reset")
	}
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	return rec
}

func endedSpan(t *testing.T, rec *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()

	for _, span := range rec.Ended() {
		if span.Name() == name {
			return span
		}
	}
	t.Fatalf("span %q never ended", name)
	return nil
}

func TestInitiateTokenFailureEndsSpanWithError(t *testing.T) {
	rec := recordSpans(t)
	entropy := errors.New("entropy exhausted")
	f := newFixture(t, recovery.WithTokenGenerator(func(int) (string, error) {
		return "", entropy
	}))

	if _, err := f.svc.Initiate(context.Background(), "alice"); !errors.Is(err, entropy) {
		t.Fatalf("err = %v, want %v", err, entropy)
	}

	if got := endedSpan(t, rec, "recovery.Initiate").Status().Code; got != codes.Error {
		t.Fatalf("span status = %v, want Error", got)
	}

	if _, err := f.tokens.FindByHash(context.Background(), core.HashToken("")); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("token stored after generator failure: %v", err)
	}
}

func TestInitiateUnknownUserSpanIsNotAnError(t *testing.T) {
	rec := recordSpans(t)
	f := newFixture(t)

	if _, err := f.svc.Initiate(context.Background(), "ghost"); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if got := endedSpan(t, rec, "recovery.Initiate").Status().Code; got == codes.Error {
		t.Fatal("neutral outcome marked the span as failed")
	}
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Initiate(ctx, "alice")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	f.now = f.now.Add(72 * time.Hour)
	n, err := f.svc.PurgeExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged = %d, want 1", n)
	}
	if _, err := f.tokens.FindByHash(ctx, core.HashToken(out.Token)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("token still stored: %v", err)
	}
}
