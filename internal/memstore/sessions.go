// AngelaMos | 2026
// sessions.go

package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
	"github.com/carterperez-dev/taskflow-auth/internal/session"
)

type Sessions struct {
	mu   sync.Mutex
	byID map[string]*session.Session
}

func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*session.Session)}
}

func (s *Sessions) Create(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[sess.ID]; ok {
		return fmt.Errorf("create session: %w", core.ErrDuplicateKey)
	}

	stored := *sess
	s.byID[sess.ID] = &stored

	return nil
}

func (s *Sessions) FindByID(_ context.Context, id string) (*session.Session, error) {
	return s.find("find session", func(sess *session.Session) bool {
		return sess.ID == id
	})
}

func (s *Sessions) FindByAccessHash(_ context.Context, hash string) (*session.Session, error) {
	return s.find("find session by access token", func(sess *session.Session) bool {
		return sess.AccessHash == hash
	})
}

func (s *Sessions) FindByRefreshHash(_ context.Context, hash string) (*session.Session, error) {
	return s.find("find session by refresh token", func(sess *session.Session) bool {
		return sess.RefreshHash == hash
	})
}

func (s *Sessions) Rotate(
	_ context.Context,
	id, oldRefreshHash string,
	next session.Rotation,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok || sess.RefreshHash != oldRefreshHash || sess.RevokedAt != nil {
		return fmt.Errorf("rotate session: %w", core.ErrNotFound)
	}

	rotatedAt := next.RotatedAt
	sess.AccessHash = next.AccessHash
	sess.RefreshHash = next.RefreshHash
	sess.AccessExpiresAt = next.AccessExpiresAt
	sess.RefreshExpiresAt = next.RefreshExpiresAt
	sess.RotatedAt = &rotatedAt

	return nil
}

func (s *Sessions) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok || sess.RevokedAt != nil {
		return fmt.Errorf("revoke session: %w", core.ErrNotFound)
	}

	sess.RevokedAt = &at

	return nil
}

func (s *Sessions) RevokeAll(
	_ context.Context,
	accountID, exceptID string,
	at time.Time,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, sess := range s.byID {
		if sess.AccountID == accountID && sess.RevokedAt == nil && sess.ID != exceptID {
			revokedAt := at
			sess.RevokedAt = &revokedAt
			n++
		}
	}

	return n, nil
}

func (s *Sessions) ListActive(
	_ context.Context,
	accountID string,
	now time.Time,
) ([]session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []session.Session
	for _, sess := range s.byID {
		if sess.AccountID == accountID && sess.RevokedAt == nil && sess.RefreshExpiresAt.After(now) {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *Sessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.byID {
		expired := sess.RefreshExpiresAt.Before(before)
		revoked := sess.RevokedAt != nil && sess.RevokedAt.Before(before)
		if expired || revoked {
			delete(s.byID, id)
			n++
		}
	}

	return n, nil
}

func (s *Sessions) find(op string, match func(*session.Session) bool) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.byID {
		if match(sess) {
			out := *sess
			return &out, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
}

var _ session.Repository = (*Sessions)(nil)
