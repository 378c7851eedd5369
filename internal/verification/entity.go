// AngelaMos | 2026
// entity.go

package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type Purpose string

const (
	PurposeBinding      Purpose = "binding"
	PurposeSecondFactor Purpose = "login-second-factor"
)

func (p Purpose) Valid() bool {
	return p == PurposeBinding || p == PurposeSecondFactor
}

func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown code purpose %q: %w", s, core.ErrInvalidInput)
	}
	return p, nil
}

// Code is the stored state of one issued code. The plaintext value is never
// persisted.
type Code struct {
	AccountID string
	Purpose   Purpose
	Hash      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
	Attempts  int
}

func (c *Code) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

type Subject struct {
	AccountID string
	Username  string
	ChatID    *int64
}

type Issued struct {
	Code      string    `json:"code"`
	Purpose   Purpose   `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"sent_to_channel"`
}

type Binder interface {
	MarkChannelVerified(ctx context.Context, accountID string, chatID *int64) error
}

// Notifier queues a code for delivery to a chat and returns without waiting
// for the delivery itself.
type Notifier interface {
	SendCode(ctx context.Context, chatID int64, purpose string, code string, expiresAt time.Time) bool
}
