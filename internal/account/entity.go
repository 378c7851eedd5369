// AngelaMos | 2026
// entity.go

package account

import (
	"time"
)

type Account struct {
	ID              string     `db:"id"`
	Username        string     `db:"username"`
	PasswordHash    string     `db:"password_hash"`
	Email           *string    `db:"email"`
	FirstName       string     `db:"first_name"`
	LastName        string     `db:"last_name"`
	ChatUsername    *string    `db:"chat_username"`
	ChatID          *int64     `db:"chat_id"`
	ChannelVerified bool       `db:"channel_verified"`
	Role            string     `db:"role"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	LastLoginAt     *time.Time `db:"last_login_at"`
}

// IsBound reports whether the account completed secondary channel binding.
func (a *Account) IsBound() bool {
	return a.ChannelVerified
}

func (a *Account) RoleName() string {
	return a.Role
}

type RegisterInput struct {
	Username     string
	Password     string
	Email        string
	FirstName    string
	LastName     string
	ChatUsername string
}

type RoleCount struct {
	Role  string `db:"role"  json:"role"`
	Count int    `db:"count" json:"count"`
}

type Stats struct {
	Total    int         `json:"total"`
	Verified int         `json:"verified"`
	ByRole   []RoleCount `json:"by_role"`
}
