// AngelaMos | 2026
// service.go

package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/taskflow-auth/internal/audit"
	"github.com/carterperez-dev/taskflow-auth/internal/config"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

const tracerName = "taskflow-auth/recovery"

type Service struct {
	repo     Repository
	accounts Accounts
	sessions SessionRevoker
	tx       core.TxRunner
	audit    audit.Recorder
	logger   *slog.Logger
	cfg      config.RecoveryConfig
	now      func() time.Time
	newToken func(n int) (string, error)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithAudit(r audit.Recorder) Option {
	return func(s *Service) { s.audit = r }
}

func WithTokenGenerator(gen func(n int) (string, error)) Option {
	return func(s *Service) { s.newToken = gen }
}

func NewService(
	repo Repository,
	accounts Accounts,
	sessions SessionRevoker,
	tx core.TxRunner,
	cfg config.RecoveryConfig,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		repo:     repo,
		accounts: accounts,
		sessions: sessions,
		tx:       tx,
		audit:    audit.Nop{},
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newToken: core.GenerateSecureToken,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Initiate never reports whether username exists through its error. The
// returned Outcome does carry the token when the account is found, matching
// the behaviour existing clients depend on.
func (s *Service) Initiate(ctx context.Context, username string) (_ *Outcome, err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "recovery.Initiate")
	defer func() { core.EndSpan(span, err) }()

	outcome := &Outcome{Message: neutralMessage}

	acc, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.audit.Record(ctx, audit.Failure(audit.EventRecoveryInitiated, "", username, "unknown_user"))
			return outcome, nil
		}
		return nil, err
	}

	plain, err := s.newToken(s.cfg.TokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate recovery token: %w", err)
	}

	now := s.now().UTC()
	token := &Token{
		ID:        uuid.New().String(),
		AccountID: acc.ID,
		TokenHash: core.HashToken(plain),
		ExpiresAt: now.Add(s.cfg.TokenTTL),
		CreatedAt: now,
	}

	if err = s.repo.Create(ctx, token); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Success(audit.EventRecoveryInitiated, acc.ID, acc.Username))

	outcome.AccountID = acc.ID
	outcome.Token = plain
	outcome.ExpiresAt = &token.ExpiresAt

	return outcome, nil
}

// Reset consumes token, changes the password and revokes every session of
// the account in one transaction.
func (s *Service) Reset(ctx context.Context, plain, newPassword string) (err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "recovery.Reset")
	defer func() { core.EndSpan(span, err) }()

	if err = s.accounts.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	token, err := s.repo.FindByHash(ctx, core.HashToken(plain))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.audit.Record(ctx, audit.Failure(audit.EventPasswordReset, "", "", "unknown_token"))
			return fmt.Errorf("reset password: %w", core.ErrTokenInvalid)
		}
		return err
	}

	now := s.now().UTC()

	if token.IsUsed() {
		s.audit.Record(ctx, audit.Failure(audit.EventPasswordReset, token.AccountID, "", "used"))
		return fmt.Errorf("reset password: %w", core.ErrTokenInvalid)
	}

	if token.Expired(now) {
		s.audit.Record(ctx, audit.Failure(audit.EventPasswordReset, token.AccountID, "", "expired"))
		return fmt.Errorf("reset password: %w", core.ErrTokenExpired)
	}

	ip := core.ClientInfoFromContext(ctx).IPAddress

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.MarkUsed(ctx, token.ID, now, ip); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("reset password: %w", core.ErrTokenInvalid)
			}
			return err
		}

		if err := s.accounts.ChangePassword(ctx, token.AccountID, newPassword); err != nil {
			return err
		}

		return s.sessions.RevokeAll(ctx, token.AccountID)
	})
	if err != nil {
		s.audit.Record(ctx, audit.Failure(audit.EventPasswordReset, token.AccountID, "", "consume_failed"))
		return err
	}

	s.audit.Record(ctx, audit.Success(audit.EventPasswordReset, token.AccountID, ""))

	return nil
}

func (s *Service) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC().Add(-grace))
}
