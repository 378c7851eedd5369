// AngelaMos | 2026
// recovery.go

package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
	"github.com/carterperez-dev/taskflow-auth/internal/recovery"
)

type RecoveryTokens struct {
	mu     sync.Mutex
	byHash map[string]*recovery.Token
}

func NewRecoveryTokens() *RecoveryTokens {
	return &RecoveryTokens{byHash: make(map[string]*recovery.Token)}
}

func (s *RecoveryTokens) Create(_ context.Context, t *recovery.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byHash[t.TokenHash]; ok {
		return fmt.Errorf("create recovery token: %w", core.ErrDuplicateKey)
	}

	stored := *t
	s.byHash[t.TokenHash] = &stored

	return nil
}

func (s *RecoveryTokens) FindByHash(_ context.Context, hash string) (*recovery.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("find recovery token: %w", core.ErrNotFound)
	}

	out := *t
	return &out, nil
}

func (s *RecoveryTokens) MarkUsed(_ context.Context, id string, at time.Time, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.byHash {
		if t.ID != id {
			continue
		}
		if t.UsedAt != nil {
			break
		}
		usedAt := at
		t.UsedAt = &usedAt
		if ip != "" {
			usedIP := ip
			t.UsedIP = &usedIP
		}
		return nil
	}

	return fmt.Errorf("mark recovery token used: %w", core.ErrNotFound)
}

func (s *RecoveryTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, t := range s.byHash {
		used := t.UsedAt != nil && t.UsedAt.Before(before)
		if t.ExpiresAt.Before(before) || used {
			delete(s.byHash, hash)
			n++
		}
	}

	return n, nil
}

var _ recovery.Repository = (*RecoveryTokens)(nil)
