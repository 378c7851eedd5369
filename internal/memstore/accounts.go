// AngelaMos | 2026
// accounts.go

package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/taskflow-auth/internal/account"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type Accounts struct {
	mu   sync.RWMutex
	byID map[string]*account.Account
	now  func() time.Time
}

func NewAccounts() *Accounts {
	return &Accounts{
		byID: make(map[string]*account.Account),
		now:  time.Now,
	}
}

func (s *Accounts) Create(_ context.Context, acc *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.Username == acc.Username {
			return fmt.Errorf("create account: %w", core.ErrDuplicateUsername)
		}
		if acc.Email != nil && existing.Email != nil && *existing.Email == *acc.Email {
			return fmt.Errorf("create account: %w", core.ErrDuplicateEmail)
		}
	}

	now := s.now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	stored := *acc
	s.byID[acc.ID] = &stored

	return nil
}

func (s *Accounts) GetByID(_ context.Context, id string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}

	out := *acc
	return &out, nil
}

func (s *Accounts) GetByUsername(_ context.Context, username string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.byID {
		if acc.Username == username {
			out := *acc
			return &out, nil
		}
	}

	return nil, fmt.Errorf("get account by username: %w", core.ErrNotFound)
}

func (s *Accounts) GetByChatID(_ context.Context, chatID int64) (*account.Account, error) {
	return s.first("get account by chat id", func(acc *account.Account) bool {
		return acc.ChatID != nil && *acc.ChatID == chatID
	})
}

func (s *Accounts) GetByChatUsername(_ context.Context, chatUsername string) (*account.Account, error) {
	return s.first("get account by chat username", func(acc *account.Account) bool {
		return acc.ChatUsername != nil && *acc.ChatUsername == chatUsername
	})
}

func (s *Accounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.update(id, "update password", func(acc *account.Account) {
		acc.PasswordHash = passwordHash
	})
}

func (s *Accounts) MarkChannelVerified(_ context.Context, id string, chatID *int64) error {
	return s.update(id, "mark channel verified", func(acc *account.Account) {
		acc.ChannelVerified = true
		if chatID != nil {
			v := *chatID
			acc.ChatID = &v
		}
	})
}

func (s *Accounts) UnlinkChannel(_ context.Context, id string) error {
	return s.update(id, "unlink channel", func(acc *account.Account) {
		acc.ChannelVerified = false
		acc.ChatID = nil
		acc.ChatUsername = nil
	})
}

func (s *Accounts) TouchLastLogin(_ context.Context, id string) error {
	return s.update(id, "touch last login", func(acc *account.Account) {
		now := s.now().UTC()
		acc.LastLoginAt = &now
	})
}

func (s *Accounts) Stats(_ context.Context) (*account.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRole := make(map[string]int)
	stats := &account.Stats{Total: len(s.byID)}
	for _, acc := range s.byID {
		if acc.ChannelVerified {
			stats.Verified++
		}
		byRole[acc.Role]++
	}

	for role, n := range byRole {
		stats.ByRole = append(stats.ByRole, account.RoleCount{Role: role, Count: n})
	}
	sort.Slice(stats.ByRole, func(i, j int) bool {
		return stats.ByRole[i].Role < stats.ByRole[j].Role
	})

	return stats, nil
}

// SetRole is a test helper; role changes belong to the excluded admin surface.
func (s *Accounts) SetRole(id, role string) error {
	return s.update(id, "set role", func(acc *account.Account) {
		acc.Role = role
	})
}

// first returns the oldest account matching fn, as the SQL lookups do.
func (s *Accounts) first(op string, fn func(*account.Account) bool) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *account.Account
	for _, acc := range s.byID {
		if !fn(acc) {
			continue
		}
		if found == nil || acc.CreatedAt.Before(found.CreatedAt) {
			found = acc
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	out := *found
	return &out, nil
}

func (s *Accounts) update(id, op string, fn func(*account.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	fn(acc)
	acc.UpdatedAt = s.now().UTC()

	return nil
}

var _ account.Repository = (*Accounts)(nil)
