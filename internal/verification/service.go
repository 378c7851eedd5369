// AngelaMos | 2026
// service.go

package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/taskflow-auth/internal/audit"
	"github.com/carterperez-dev/taskflow-auth/internal/config"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

const tracerName = "taskflow-auth/verification"

type Service struct {
	repo     Repository
	binder   Binder
	notifier Notifier
	audit    audit.Recorder
	logger   *slog.Logger
	cfg      config.VerificationConfig
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithAudit(r audit.Recorder) Option {
	return func(s *Service) { s.audit = r }
}

func NewService(
	repo Repository,
	binder Binder,
	cfg config.VerificationConfig,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		repo:   repo,
		binder: binder,
		audit:  audit.Nop{},
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Issue stores a fresh code for (subject, purpose), replacing any earlier one,
// and queues it for the chat when one is known.
func (s *Service) Issue(
	ctx context.Context,
	subject Subject,
	purpose Purpose,
) (*Issued, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("issue code: unknown purpose %q: %w", purpose, core.ErrInvalidInput)
	}

	ctx, span := core.StartSpan(ctx, tracerName, "verification.Issue",
		attribute.String("code.purpose", string(purpose)),
	)
	defer span.End()

	plain, err := core.GenerateNumericCode(s.cfg.CodeLength)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	code := &Code{
		AccountID: subject.AccountID,
		Purpose:   purpose,
		Hash:      core.HashToken(plain),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.CodeTTL),
	}

	if err := s.repo.Save(ctx, code, s.cfg.CodeTTL+s.cfg.Retention); err != nil {
		core.EndSpan(span, err)
		return nil, err
	}

	issued := &Issued{
		Code:      plain,
		Purpose:   purpose,
		ExpiresAt: code.ExpiresAt,
	}

	if subject.ChatID != nil && s.notifier != nil {
		issued.Delivered = s.notifier.SendCode(
			ctx,
			*subject.ChatID,
			string(purpose),
			plain,
			code.ExpiresAt,
		)
	}

	s.audit.Record(ctx, audit.Entry{
		AccountID: &subject.AccountID,
		Username:  subject.Username,
		Event:     audit.EventCodeIssued,
		Outcome:   audit.OutcomeSuccess,
		Reason:    string(purpose),
	})

	return issued, nil
}

// Verify consumes the active code when submitted matches it. Exactly one of
// any number of concurrent callers with the right code succeeds.
func (s *Service) Verify(
	ctx context.Context,
	accountID string,
	purpose Purpose,
	submitted string,
) error {
	return s.verify(ctx, accountID, purpose, submitted, nil)
}

// VerifyFromChannel is Verify for codes typed into the bot. A successful
// binding also records the chat the code arrived from.
func (s *Service) VerifyFromChannel(
	ctx context.Context,
	accountID string,
	purpose Purpose,
	submitted string,
	chatID int64,
) error {
	return s.verify(ctx, accountID, purpose, submitted, &chatID)
}

func (s *Service) verify(
	ctx context.Context,
	accountID string,
	purpose Purpose,
	submitted string,
	chatID *int64,
) (err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "verification.Verify",
		attribute.String("code.purpose", string(purpose)),
	)
	defer func() { core.EndSpan(span, err) }()

	if !purpose.Valid() {
		return fmt.Errorf("verify code: unknown purpose %q: %w", purpose, core.ErrInvalidInput)
	}

	if !s.wellFormed(submitted) {
		s.recordVerify(ctx, accountID, purpose, "malformed")
		return fmt.Errorf("verify code: %w", core.ErrCodeInvalid)
	}

	hash := core.HashToken(submitted)

	err = s.repo.Consume(
		ctx,
		accountID,
		purpose,
		hash,
		s.now().UTC(),
		s.cfg.MaxAttempts,
	)
	if err != nil {
		s.recordVerify(ctx, accountID, purpose, failureReason(err))
		return err
	}

	if purpose == PurposeBinding {
		if err = s.binder.MarkChannelVerified(ctx, accountID, chatID); err != nil {
			if relErr := s.repo.Release(ctx, accountID, purpose, hash); relErr != nil {
				s.logger.Warn("release binding code failed",
					"account_id", accountID,
					"error", relErr,
				)
			}
			s.recordVerify(ctx, accountID, purpose, "bind_failed")
			return fmt.Errorf("mark channel verified: %w", err)
		}
	}

	s.recordVerify(ctx, accountID, purpose, "")

	return nil
}

func (s *Service) wellFormed(code string) bool {
	if len(code) != s.cfg.CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func (s *Service) recordVerify(
	ctx context.Context,
	accountID string,
	purpose Purpose,
	failure string,
) {
	entry := audit.Success(audit.EventCodeVerified, accountID, "")
	entry.Reason = string(purpose)
	if failure != "" {
		entry = audit.Failure(audit.EventCodeVerified, accountID, "", string(purpose)+": "+failure)
	}
	s.audit.Record(ctx, entry)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, core.ErrCodeExpired):
		return "expired"
	case errors.Is(err, core.ErrCodeAlreadyConsumed):
		return "already_consumed"
	case errors.Is(err, core.ErrCodeInvalid):
		return "invalid"
	default:
		return "internal"
	}
}
