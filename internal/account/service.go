// AngelaMos | 2026
// service.go

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/taskflow-auth/internal/audit"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

const tracerName = "taskflow-auth/account"

type Service struct {
	repo        Repository
	policy      *Policy
	audit       audit.Recorder
	logger      *slog.Logger
	defaultRole string
}

func NewService(
	repo Repository,
	policy *Policy,
	recorder audit.Recorder,
	defaultRole string,
	logger *slog.Logger,
) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:        repo,
		policy:      policy,
		audit:       recorder,
		logger:      logger,
		defaultRole: defaultRole,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	ctx, span := core.StartSpan(ctx, tracerName, "account.Register")
	var err error
	defer func() { core.EndSpan(span, err) }()

	if err = s.policy.ValidateRegistration(in); err != nil {
		s.audit.Record(ctx, audit.Failure(audit.EventRegister, "", in.Username, reason(err)))
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := core.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := &Account{
		ID:           uuid.New().String(),
		Username:     in.Username,
		PasswordHash: hash,
		Email:        optional(in.Email),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		ChatUsername: optional(NormalizeChatUsername(in.ChatUsername)),
		Role:         s.defaultRole,
	}

	if err = s.repo.Create(ctx, acc); err != nil {
		s.audit.Record(ctx, audit.Failure(audit.EventRegister, "", in.Username, reason(err)))
		return nil, err
	}

	span.SetAttributes(attribute.String("account.id", acc.ID))
	s.audit.Record(ctx, audit.Success(audit.EventRegister, acc.ID, acc.Username))

	return acc, nil
}

// Authenticate returns ErrInvalidCredentials for unknown usernames and wrong
// passwords alike. Both paths run one full argon2id verification.
func (s *Service) Authenticate(
	ctx context.Context,
	username, password string,
) (*Account, error) {
	ctx, span := core.StartSpan(ctx, tracerName, "account.Authenticate")
	var err error
	defer func() { core.EndSpan(span, err) }()

	acc, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
			s.audit.Record(ctx, audit.Failure(audit.EventLogin, "", username, "unknown_user"))
			err = fmt.Errorf("authenticate: %w", core.ErrInvalidCredentials)
			return nil, err
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(password, &acc.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		s.audit.Record(ctx, audit.Failure(audit.EventLogin, acc.ID, username, "bad_password"))
		err = fmt.Errorf("authenticate: %w", core.ErrInvalidCredentials)
		return nil, err
	}

	if newHash != "" {
		if rehashErr := s.repo.UpdatePassword(ctx, acc.ID, newHash); rehashErr != nil {
			s.logger.Warn("password rehash failed", "account_id", acc.ID, "error", rehashErr)
		} else {
			acc.PasswordHash = newHash
		}
	}

	if touchErr := s.repo.TouchLastLogin(ctx, acc.ID); touchErr != nil {
		s.logger.Warn("update last login failed", "account_id", acc.ID, "error", touchErr)
	}

	s.audit.Record(ctx, audit.Success(audit.EventLogin, acc.ID, acc.Username))

	return acc, nil
}

// VerifyPassword checks password against the stored hash without touching
// login bookkeeping.
func (s *Service) VerifyPassword(
	ctx context.Context,
	accountID, password string,
) error {
	acc, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	valid, err := core.VerifyPassword(password, acc.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return fmt.Errorf("verify password: %w", core.ErrInvalidCredentials)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	accountID, newPassword string,
) error {
	if err := s.policy.ValidatePassword(newPassword); err != nil {
		s.audit.Record(ctx, audit.Failure(audit.EventPasswordChange, accountID, "", reason(err)))
		return fmt.Errorf("change password: %w", err)
	}

	hash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, accountID, hash); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Success(audit.EventPasswordChange, accountID, ""))

	return nil
}

func (s *Service) ValidatePassword(password string) error {
	return s.policy.ValidatePassword(password)
}

func (s *Service) MarkChannelVerified(
	ctx context.Context,
	accountID string,
	chatID *int64,
) error {
	if err := s.repo.MarkChannelVerified(ctx, accountID, chatID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Success(audit.EventChannelBound, accountID, ""))

	return nil
}

func (s *Service) UnlinkChannel(ctx context.Context, accountID string) error {
	if err := s.repo.UnlinkChannel(ctx, accountID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Success(audit.EventChannelUnbound, accountID, ""))

	return nil
}

func (s *Service) GetByChatID(ctx context.Context, chatID int64) (*Account, error) {
	return s.repo.GetByChatID(ctx, chatID)
}

func (s *Service) GetByChatUsername(ctx context.Context, chatUsername string) (*Account, error) {
	handle := NormalizeChatUsername(chatUsername)
	if handle == "" {
		return nil, fmt.Errorf("get account by chat username: %w", core.ErrNotFound)
	}
	return s.repo.GetByChatUsername(ctx, handle)
}

// NormalizeChatUsername drops surrounding space and the leading @ and
// lowercases the rest, so "@Alice" and "alice" name the same handle.
func NormalizeChatUsername(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

func (s *Service) GetByID(ctx context.Context, id string) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func reason(err error) string {
	switch {
	case errors.Is(err, core.ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, core.ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, core.ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, core.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
