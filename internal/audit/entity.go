// AngelaMos | 2026
// entity.go

package audit

import (
	"context"
	"time"
)

type Event string

const (
	EventRegister          Event = "register"
	EventLogin             Event = "login"
	EventLogout            Event = "logout"
	EventLogoutAll         Event = "logout_all"
	EventTokenRefresh      Event = "token_refresh"
	EventCodeIssued        Event = "code_issued"
	EventCodeVerified      Event = "code_verified"
	EventChannelBound      Event = "channel_bound"
	EventChannelUnbound    Event = "channel_unbound"
	EventPasswordChange    Event = "password_change"
	EventRecoveryInitiated Event = "recovery_initiated"
	EventPasswordReset     Event = "password_reset"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

type Entry struct {
	ID        string    `db:"id"`
	AccountID *string   `db:"account_id"`
	Username  string    `db:"username"`
	Event     Event     `db:"event"`
	Outcome   Outcome   `db:"outcome"`
	Reason    string    `db:"reason"`
	IPAddress string    `db:"ip_address"`
	UserAgent string    `db:"user_agent"`
	CreatedAt time.Time `db:"created_at"`
}

// Recorder never reports failure to the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

func Success(event Event, accountID, username string) Entry {
	return Entry{
		AccountID: optional(accountID),
		Username:  username,
		Event:     event,
		Outcome:   OutcomeSuccess,
	}
}

func Failure(event Event, accountID, username, reason string) Entry {
	return Entry{
		AccountID: optional(accountID),
		Username:  username,
		Event:     event,
		Outcome:   OutcomeFailure,
		Reason:    reason,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
