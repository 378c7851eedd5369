// AngelaMos | 2026
// dto.go

package auth

import (
	"time"

	"github.com/carterperez-dev/taskflow-auth/internal/account"
	"github.com/carterperez-dev/taskflow-auth/internal/session"
	"github.com/carterperez-dev/taskflow-auth/internal/verification"
)

type LoginStatus string

const (
	StatusBindingRequired      LoginStatus = "binding_required"
	StatusSecondFactorRequired LoginStatus = "second_factor_required"
	StatusAuthenticated        LoginStatus = "authenticated"
)

// LoginResult carries Pending when a code must be confirmed first and
// Tokens when the session was issued directly.
type LoginResult struct {
	Status  LoginStatus          `json:"status"`
	Account AccountView          `json:"user"`
	Pending *verification.Issued `json:"pending_code,omitempty"`
	Tokens  *session.TokenPair   `json:"tokens,omitempty"`
}

type RegisterResult struct {
	Account AccountView          `json:"user"`
	Binding *verification.Issued `json:"binding_code,omitempty"`
}

type ConfirmInput struct {
	AccountID string
	Purpose   verification.Purpose
	Code      string
	ChatID    *int64
}

// ChannelConfirmInput is what the bot knows about the sender: its chat id
// and, when set, its public handle.
type ChannelConfirmInput struct {
	ChatID       int64
	ChatUsername string
	Purpose      verification.Purpose
	Code         string
}

type ChannelStatus struct {
	AccountID    string  `json:"user_id"`
	Bound        bool    `json:"telegram_verified"`
	ChatID       *int64  `json:"telegram_chat_id,omitempty"`
	ChatUsername *string `json:"telegram_username,omitempty"`
}

type AccountView struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           *string    `json:"email,omitempty"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	ChatUsername    *string    `json:"telegram_username,omitempty"`
	ChannelVerified bool       `json:"telegram_verified"`
	Role            string     `json:"role"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

func viewOf(acc *account.Account) AccountView {
	return AccountView{
		ID:              acc.ID,
		Username:        acc.Username,
		Email:           acc.Email,
		FirstName:       acc.FirstName,
		LastName:        acc.LastName,
		ChatUsername:    acc.ChatUsername,
		ChannelVerified: acc.ChannelVerified,
		Role:            acc.Role,
		CreatedAt:       acc.CreatedAt,
		LastLoginAt:     acc.LastLoginAt,
	}
}
