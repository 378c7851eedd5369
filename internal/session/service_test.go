// AngelaMos | 2026
// service_test.go

package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/carterperez-dev/taskflow-auth/internal/config"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
	"github.com/carterperez-dev/taskflow-auth/internal/memstore"
	"github.com/carterperez-dev/taskflow-auth/internal/session"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newIssuer(t *testing.T) *session.TokenIssuer {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	if err := session.GenerateKeyPair(priv, pub); err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	issuer, err := session.NewTokenIssuer(config.JWTConfig{
		PrivateKeyPath: priv,
		PublicKeyPath:  pub,
		Issuer:         "taskflow-auth",
		Audience:       "taskflow",
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	return issuer
}

func newService(t *testing.T) (*session.Service, *memstore.Sessions, *clock) {
	t.Helper()

	repo := memstore.NewSessions()
	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}
	svc := session.NewService(
		repo,
		newIssuer(t),
		config.SessionConfig{AccessTTL: time.Hour, RefreshTTL: 7 * 24 * time.Hour},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		session.WithClock(clk.Now),
	)

	return svc, repo, clk
}

func TestIssueAndValidate(t *testing.T) {
	svc, repo, clk := newService(t)
	ctx := core.WithClientInfo(context.Background(), core.ClientInfo{
		IPAddress: "192.0.2.1",
		UserAgent: "taskflow-web",
	})

	pair, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.AccessToken == pair.RefreshToken {
		t.Fatalf("bad pair: %+v", pair)
	}
	if !pair.AccessExpiresAt.Equal(clk.Now().Add(time.Hour)) {
		t.Fatalf("access expiry = %v", pair.AccessExpiresAt)
	}
	if !pair.RefreshExpiresAt.Equal(clk.Now().Add(7 * 24 * time.Hour)) {
		t.Fatalf("refresh expiry = %v", pair.RefreshExpiresAt)
	}

	stored, err := repo.FindByID(ctx, pair.SessionID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.AccessHash != core.HashToken(pair.AccessToken) || stored.RefreshHash != core.HashToken(pair.RefreshToken) {
		t.Fatal("session must store token hashes")
	}
	if strings.Contains(stored.AccessHash+stored.RefreshHash, pair.RefreshToken) {
		t.Fatal("plaintext token leaked into storage")
	}
	if stored.IPAddress != "192.0.2.1" || stored.UserAgent != "taskflow-web" {
		t.Fatalf("client metadata = %q %q", stored.IPAddress, stored.UserAgent)
	}

	id, err := svc.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.AccountID != "acc-1" || id.SessionID != pair.SessionID || id.TokenID == "" {
		t.Fatalf("identity = %+v", id)
	}

	if _, err := svc.Validate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Validate must be repeatable: %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc, _, _ := newService(t)

	for _, tok := range []string{"", "abc", "a.b.c"} {
		if _, err := svc.Validate(context.Background(), tok); !errors.Is(err, core.ErrTokenInvalid) {
			t.Fatalf("Validate(%q) = %v, want ErrTokenInvalid", tok, err)
		}
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	svc, _, _ := newService(t)
	other, _, _ := newService(t)

	pair, err := other.Issue(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := svc.Validate(context.Background(), pair.AccessToken); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("Validate = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateExpiredAccessToken(t *testing.T) {
	svc, _, clk := newService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clk.Advance(time.Hour + time.Second)

	if _, err := svc.Validate(ctx, pair.AccessToken); !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("Validate = %v, want ErrTokenExpired", err)
	}
}

func TestRefreshRotatesAndBlocksReplay(t *testing.T) {
	svc, _, clk := newService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clk.Advance(time.Minute)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatal("rotation must stay on the same session")
	}
	if second.RefreshToken == first.RefreshToken || second.AccessToken == first.AccessToken {
		t.Fatal("rotation must produce new tokens")
	}

	if _, err := svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("replayed refresh = %v, want ErrTokenInvalid", err)
	}

	if _, err := svc.Validate(ctx, first.AccessToken); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("old access token = %v, want ErrTokenInvalid", err)
	}

	third, err := svc.Refresh(ctx, second.RefreshToken)
	if err != nil {
		t.Fatalf("new refresh token must still work: %v", err)
	}
	if _, err := svc.Validate(ctx, third.AccessToken); err != nil {
		t.Fatalf("Validate after second rotation: %v", err)
	}
}

func TestRefreshExpired(t *testing.T) {
	svc, _, clk := newService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clk.Advance(7*24*time.Hour + time.Second)

	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("Refresh = %v, want ErrTokenExpired", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _, _ := newService(t)

	if _, err := svc.Refresh(context.Background(), "not-a-token"); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("Refresh = %v, want ErrTokenInvalid", err)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const workers = 12
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, pair.RefreshToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, core.ErrTokenInvalid):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
}

func TestRevokeAndRevokeAll(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other, err := svc.Issue(ctx, "acc-2")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.Revoke(ctx, a.SessionID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Validate(ctx, a.AccessToken); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("revoked access = %v", err)
	}
	if _, err := svc.Refresh(ctx, a.RefreshToken); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("revoked refresh = %v", err)
	}

	active, err := svc.ListActive(ctx, "acc-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != b.SessionID {
		t.Fatalf("active = %+v", active)
	}

	if err := svc.RevokeAll(ctx, "acc-1"); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if _, err := svc.Validate(ctx, b.AccessToken); !errors.Is(err, core.ErrTokenInvalid) {
		t.Fatalf("after RevokeAll = %v", err)
	}
	if _, err := svc.Validate(ctx, other.AccessToken); err != nil {
		t.Fatalf("other account must be untouched: %v", err)
	}
}

func TestRevokeOthersKeepsCurrentSession(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	current, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	laptop, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	phone, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.RevokeOthers(ctx, "acc-1", current.SessionID); err != nil {
		t.Fatalf("RevokeOthers: %v", err)
	}

	if _, err := svc.Validate(ctx, current.AccessToken); err != nil {
		t.Fatalf("kept session must stay valid: %v", err)
	}
	for _, gone := range []*session.TokenPair{laptop, phone} {
		if _, err := svc.Validate(ctx, gone.AccessToken); !errors.Is(err, core.ErrTokenInvalid) {
			t.Fatalf("other session = %v, want ErrTokenInvalid", err)
		}
	}

	active, err := svc.ListActive(ctx, "acc-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != current.SessionID {
		t.Fatalf("active = %+v", active)
	}
}

func TestRevokeOwnedChecksOwner(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.RevokeOwned(ctx, "acc-2", pair.SessionID); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("RevokeOwned = %v, want ErrForbidden", err)
	}
	if err := svc.RevokeOwned(ctx, "acc-1", pair.SessionID); err != nil {
		t.Fatalf("RevokeOwned: %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	svc, repo, clk := newService(t)
	ctx := context.Background()

	old, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clk.Advance(9 * 24 * time.Hour)

	fresh, err := svc.Issue(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	n, err := svc.PurgeExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged = %d, want 1", n)
	}
	if _, err := repo.FindByID(ctx, old.SessionID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("old session still present: %v", err)
	}
	if _, err := repo.FindByID(ctx, fresh.SessionID); err != nil {
		t.Fatalf("fresh session removed: %v", err)
	}
}

func TestJWKSHandler(t *testing.T) {
	svc, _, _ := newService(t)

	rec := httptest.NewRecorder()
	svc.JWKSHandler()(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"keys"`) || !strings.Contains(body, `"EC"`) {
		t.Fatalf("unexpected JWKS: %s", body)
	}
	if strings.Contains(body, `"d"`) {
		t.Fatal("JWKS leaks the private key")
	}
}
