// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/taskflow-auth/internal/account"
	"github.com/carterperez-dev/taskflow-auth/internal/authz"
	"github.com/carterperez-dev/taskflow-auth/internal/config"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
	"github.com/carterperez-dev/taskflow-auth/internal/recovery"
	"github.com/carterperez-dev/taskflow-auth/internal/session"
	"github.com/carterperez-dev/taskflow-auth/internal/verification"
)

type Deps struct {
	Accounts   *account.Service
	Codes      *verification.Service
	Sessions   *session.Service
	Recovery   *recovery.Service
	Authorizer *authz.Authorizer
	Tx         core.TxRunner
}

// Service drives the login flow across the credential components. It holds
// no state of its own.
type Service struct {
	accounts   *account.Service
	codes      *verification.Service
	sessions   *session.Service
	recovery   *recovery.Service
	authorizer *authz.Authorizer
	tx         core.TxRunner
	cfg        config.AuthConfig
	logger     *slog.Logger
}

func NewService(deps Deps, cfg config.AuthConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		accounts:   deps.Accounts,
		codes:      deps.Codes,
		sessions:   deps.Sessions,
		recovery:   deps.Recovery,
		authorizer: deps.Authorizer,
		tx:         deps.Tx,
		cfg:        cfg,
		logger:     logger,
	}
}

// Register creates the account and issues its first binding code. A failure
// to issue the code does not undo the registration; the caller can ask for a
// new code with RequestBindingCode.
func (s *Service) Register(
	ctx context.Context,
	in account.RegisterInput,
) (*RegisterResult, error) {
	acc, err := s.accounts.Register(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &RegisterResult{Account: viewOf(acc)}

	issued, err := s.codes.Issue(ctx, subjectOf(acc), verification.PurposeBinding)
	if err != nil {
		s.logger.Warn("issue binding code after register failed",
			"account_id", acc.ID,
			"error", err,
		)
		return result, nil
	}
	result.Binding = issued

	return result, nil
}

func (s *Service) Login(
	ctx context.Context,
	username, password string,
) (*LoginResult, error) {
	acc, err := s.accounts.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Account: viewOf(acc)}

	switch {
	case !acc.IsBound():
		issued, err := s.codes.Issue(ctx, subjectOf(acc), verification.PurposeBinding)
		if err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		result.Status = StatusBindingRequired
		result.Pending = issued

	case s.cfg.RequireSecondFactor:
		issued, err := s.codes.Issue(ctx, subjectOf(acc), verification.PurposeSecondFactor)
		if err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		result.Status = StatusSecondFactorRequired
		result.Pending = issued

	default:
		pair, err := s.sessions.Issue(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		result.Status = StatusAuthenticated
		result.Tokens = pair
	}

	return result, nil
}

// ConfirmCode consumes a pending code and issues a session for the account.
// ChatID is set when the code arrived through the bot.
func (s *Service) ConfirmCode(
	ctx context.Context,
	in ConfirmInput,
) (*session.TokenPair, error) {
	var err error
	if in.ChatID != nil {
		err = s.codes.VerifyFromChannel(ctx, in.AccountID, in.Purpose, in.Code, *in.ChatID)
	} else {
		err = s.codes.Verify(ctx, in.AccountID, in.Purpose, in.Code)
	}
	if err != nil {
		return nil, err
	}

	pair, err := s.sessions.Issue(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("confirm code: %w", err)
	}

	return pair, nil
}

// ConfirmFromChannel handles a code typed into the bot. The account is found
// by chat id first, then by the handle given at registration. An unknown
// sender gets the same error as a wrong code. No session is issued; the web
// client polls ChannelStatus.
func (s *Service) ConfirmFromChannel(
	ctx context.Context,
	in ChannelConfirmInput,
) (*ChannelStatus, error) {
	acc, err := s.accountForChat(ctx, in.ChatID, in.ChatUsername)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("confirm from channel: %w", core.ErrCodeInvalid)
		}
		return nil, err
	}

	err = s.codes.VerifyFromChannel(ctx, acc.ID, in.Purpose, in.Code, in.ChatID)
	if err != nil {
		return nil, err
	}

	return s.ChannelStatus(ctx, acc.ID)
}

func (s *Service) accountForChat(
	ctx context.Context,
	chatID int64,
	chatUsername string,
) (*account.Account, error) {
	acc, err := s.accounts.GetByChatID(ctx, chatID)
	if err == nil || !errors.Is(err, core.ErrNotFound) {
		return acc, err
	}

	return s.accounts.GetByChatUsername(ctx, chatUsername)
}

// UnlinkChannel detaches the chat from the account. Sign-ins that need the
// channel stop working until a new binding code is confirmed.
func (s *Service) UnlinkChannel(ctx context.Context, accountID string) (*ChannelStatus, error) {
	if err := s.accounts.UnlinkChannel(ctx, accountID); err != nil {
		return nil, err
	}

	return s.ChannelStatus(ctx, accountID)
}

// RequestBindingCode replaces any pending binding code. Already bound
// accounts may rebind to a different chat this way.
func (s *Service) RequestBindingCode(
	ctx context.Context,
	accountID string,
) (*verification.Issued, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return s.codes.Issue(ctx, subjectOf(acc), verification.PurposeBinding)
}

func (s *Service) ChannelStatus(ctx context.Context, accountID string) (*ChannelStatus, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &ChannelStatus{
		AccountID:    acc.ID,
		Bound:        acc.IsBound(),
		ChatID:       acc.ChatID,
		ChatUsername: acc.ChatUsername,
	}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*session.TokenPair, error) {
	return s.sessions.Refresh(ctx, refreshToken)
}

func (s *Service) Logout(ctx context.Context, accountID, sessionID string) error {
	return s.sessions.RevokeOwned(ctx, accountID, sessionID)
}

// LogoutAll ends every session of accountID. A non-empty keepSessionID
// survives, so the caller can stay signed in on the current device.
func (s *Service) LogoutAll(ctx context.Context, accountID, keepSessionID string) error {
	return s.sessions.RevokeOthers(ctx, accountID, keepSessionID)
}

func (s *Service) ListSessions(ctx context.Context, accountID string) ([]session.Info, error) {
	return s.sessions.ListActive(ctx, accountID)
}

// ChangePassword requires the current password and signs the account out
// everywhere once the new one is stored.
func (s *Service) ChangePassword(
	ctx context.Context,
	accountID, currentPassword, newPassword string,
) error {
	if err := s.accounts.VerifyPassword(ctx, accountID, currentPassword); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.ChangePassword(ctx, accountID, newPassword); err != nil {
			return err
		}
		return s.sessions.RevokeAll(ctx, accountID)
	})
}

func (s *Service) InitiateRecovery(ctx context.Context, username string) (*recovery.Outcome, error) {
	return s.recovery.Initiate(ctx, username)
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.recovery.Reset(ctx, token, newPassword)
}

func (s *Service) CurrentAccount(ctx context.Context, accountID string) (*AccountView, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	view := viewOf(acc)
	return &view, nil
}

func (s *Service) Authorize(
	ctx context.Context,
	accountID string,
	perm authz.Permission,
) error {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	return s.authorizer.Authorize(ctx, acc, perm)
}

func (s *Service) VerifyAccessToken(ctx context.Context, token string) (*session.Identity, error) {
	return s.sessions.Validate(ctx, token)
}

func (s *Service) AccountStats(ctx context.Context) (*account.Stats, error) {
	return s.accounts.Stats(ctx)
}

func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinTx(ctx, fn)
}

func subjectOf(acc *account.Account) verification.Subject {
	return verification.Subject{
		AccountID: acc.ID,
		Username:  acc.Username,
		ChatID:    acc.ChatID,
	}
}
