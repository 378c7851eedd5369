// AngelaMos | 2026
// entity.go

package recovery

import (
	"context"
	"time"

	"github.com/carterperez-dev/taskflow-auth/internal/account"
)

const neutralMessage = "If the account exists, a recovery code has been issued"

type Token struct {
	ID        string     `db:"id"`
	AccountID string     `db:"account_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	UsedAt    *time.Time `db:"used_at"`
	UsedIP    *string    `db:"used_ip"`
}

func (t *Token) IsUsed() bool {
	return t.UsedAt != nil
}

func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Outcome always carries Message. AccountID, Token and ExpiresAt are set
// only when the username matched an account.
type Outcome struct {
	Message   string     `json:"message"`
	AccountID string     `json:"user_id,omitempty"`
	Token     string     `json:"recovery_code,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Accounts interface {
	GetByUsername(ctx context.Context, username string) (*account.Account, error)
	ValidatePassword(password string) error
	ChangePassword(ctx context.Context, accountID, newPassword string) error
}

type SessionRevoker interface {
	RevokeAll(ctx context.Context, accountID string) error
}
