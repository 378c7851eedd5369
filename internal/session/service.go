// AngelaMos | 2026
// service.go

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/taskflow-auth/internal/audit"
	"github.com/carterperez-dev/taskflow-auth/internal/config"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

const tracerName = "taskflow-auth/session"

type Service struct {
	repo   Repository
	tokens *TokenIssuer
	audit  audit.Recorder
	logger *slog.Logger
	cfg    config.SessionConfig
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithAudit(r audit.Recorder) Option {
	return func(s *Service) { s.audit = r }
}

func NewService(
	repo Repository,
	tokens *TokenIssuer,
	cfg config.SessionConfig,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		repo:   repo,
		tokens: tokens,
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

func (s *Service) Issue(ctx context.Context, accountID string) (*TokenPair, error) {
	ctx, span := core.StartSpan(ctx, tracerName, "session.Issue",
		attribute.String("account.id", accountID),
	)
	defer span.End()

	now := s.now().UTC()
	sessionID := uuid.New().String()

	pair, rotation, err := s.mint(accountID, sessionID, now)
	if err != nil {
		core.EndSpan(span, err)
		return nil, err
	}

	client := core.ClientInfoFromContext(ctx)
	sess := &Session{
		ID:               sessionID,
		AccountID:        accountID,
		AccessHash:       rotation.AccessHash,
		RefreshHash:      rotation.RefreshHash,
		AccessExpiresAt:  rotation.AccessExpiresAt,
		RefreshExpiresAt: rotation.RefreshExpiresAt,
		CreatedAt:        now,
		UserAgent:        client.UserAgent,
		IPAddress:        client.IPAddress,
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		core.EndSpan(span, err)
		return nil, err
	}

	return pair, nil
}

// Refresh retires refreshToken and returns a new pair on the same session.
// A retired, revoked or unknown token fails with ErrTokenInvalid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := core.StartSpan(ctx, tracerName, "session.Refresh")
	var err error
	defer func() { core.EndSpan(span, err) }()

	oldHash := core.HashToken(refreshToken)

	sess, err := s.repo.FindByRefreshHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.audit.Record(ctx, audit.Failure(audit.EventTokenRefresh, "", "", "unknown_token"))
			err = fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	now := s.now().UTC()

	if sess.IsRevoked() {
		s.audit.Record(ctx, audit.Failure(audit.EventTokenRefresh, sess.AccountID, "", "revoked"))
		err = fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		return nil, err
	}

	if sess.RefreshExpired(now) {
		s.audit.Record(ctx, audit.Failure(audit.EventTokenRefresh, sess.AccountID, "", "expired"))
		err = fmt.Errorf("refresh: %w", core.ErrTokenExpired)
		return nil, err
	}

	pair, rotation, err := s.mint(sess.AccountID, sess.ID, now)
	if err != nil {
		return nil, err
	}

	if err = s.repo.Rotate(ctx, sess.ID, oldHash, *rotation); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.audit.Record(ctx, audit.Failure(audit.EventTokenRefresh, sess.AccountID, "", "replayed"))
			err = fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
			return nil, err
		}
		return nil, err
	}

	s.audit.Record(ctx, audit.Success(audit.EventTokenRefresh, sess.AccountID, ""))

	return pair, nil
}

// Validate is read-only and safe to call repeatedly.
func (s *Service) Validate(ctx context.Context, accessToken string) (*Identity, error) {
	now := s.now().UTC()

	claims, err := s.tokens.parse(accessToken, now)
	if err != nil {
		return nil, err
	}

	sess, err := s.repo.FindByAccessHash(ctx, core.HashToken(accessToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("validate: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	if sess.ID != claims.SessionID || sess.AccountID != claims.AccountID {
		return nil, fmt.Errorf("validate: session mismatch: %w", core.ErrTokenInvalid)
	}

	if sess.IsRevoked() {
		return nil, fmt.Errorf("validate: %w", core.ErrTokenInvalid)
	}

	if sess.AccessExpired(now) {
		return nil, fmt.Errorf("validate: %w", core.ErrTokenExpired)
	}

	return &Identity{
		AccountID: sess.AccountID,
		SessionID: sess.ID,
		TokenID:   claims.TokenID,
		ExpiresAt: sess.AccessExpiresAt,
	}, nil
}

func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.repo.Revoke(ctx, sessionID, s.now().UTC()); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return err
	}

	s.audit.Record(ctx, audit.Success(audit.EventLogout, sess.AccountID, ""))

	return nil
}

// RevokeOwned revokes sessionID only when it belongs to accountID.
func (s *Service) RevokeOwned(ctx context.Context, accountID, sessionID string) error {
	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if sess.AccountID != accountID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	return s.Revoke(ctx, sessionID)
}

func (s *Service) RevokeAll(ctx context.Context, accountID string) error {
	return s.RevokeOthers(ctx, accountID, "")
}

// RevokeOthers signs accountID out everywhere but keepID.
func (s *Service) RevokeOthers(ctx context.Context, accountID, keepID string) error {
	n, err := s.repo.RevokeAll(ctx, accountID, keepID, s.now().UTC())
	if err != nil {
		return err
	}

	s.logger.Debug("sessions revoked", "account_id", accountID, "kept", keepID, "count", n)
	s.audit.Record(ctx, audit.Success(audit.EventLogoutAll, accountID, ""))

	return nil
}

func (s *Service) ListActive(ctx context.Context, accountID string) ([]Info, error) {
	sessions, err := s.repo.ListActive(ctx, accountID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, Info{
			ID:        sess.ID,
			UserAgent: sess.UserAgent,
			IPAddress: sess.IPAddress,
			CreatedAt: sess.CreatedAt,
			RotatedAt: sess.RotatedAt,
			ExpiresAt: sess.RefreshExpiresAt,
		})
	}

	return infos, nil
}

// PurgeExpired deletes sessions whose refresh window or revocation is older
// than grace.
func (s *Service) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC().Add(-grace))
}

func (s *Service) JWKSHandler() http.HandlerFunc {
	return s.tokens.JWKSHandler()
}

func (s *Service) mint(
	accountID, sessionID string,
	now time.Time,
) (*TokenPair, *Rotation, error) {
	accessExpiresAt := now.Add(s.cfg.AccessTTL)
	refreshExpiresAt := now.Add(s.cfg.RefreshTTL)

	accessToken, err := s.tokens.sign(accessClaims{
		TokenID:   uuid.New().String(),
		AccountID: accountID,
		SessionID: sessionID,
		ExpiresAt: accessExpiresAt,
	}, now)
	if err != nil {
		return nil, nil, fmt.Errorf("create access token: %w", err)
	}

	refreshToken, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, nil, fmt.Errorf("create refresh token: %w", err)
	}

	pair := &TokenPair{
		SessionID:        sessionID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}

	rotation := &Rotation{
		AccessHash:       core.HashToken(accessToken),
		RefreshHash:      core.HashToken(refreshToken),
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
		RotatedAt:        now,
	}

	return pair, rotation, nil
}
