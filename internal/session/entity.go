// AngelaMos | 2026
// entity.go

package session

import (
	"time"
)

type Session struct {
	ID               string     `db:"id"`
	AccountID        string     `db:"account_id"`
	AccessHash       string     `db:"access_hash"`
	RefreshHash      string     `db:"refresh_hash"`
	AccessExpiresAt  time.Time  `db:"access_expires_at"`
	RefreshExpiresAt time.Time  `db:"refresh_expires_at"`
	RevokedAt        *time.Time `db:"revoked_at"`
	RotatedAt        *time.Time `db:"rotated_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UserAgent        string     `db:"user_agent"`
	IPAddress        string     `db:"ip_address"`
}

func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

func (s *Session) AccessExpired(now time.Time) bool {
	return now.After(s.AccessExpiresAt)
}

func (s *Session) RefreshExpired(now time.Time) bool {
	return now.After(s.RefreshExpiresAt)
}

// Rotation is the replacement token state written by Repository.Rotate.
type Rotation struct {
	AccessHash       string
	RefreshHash      string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	RotatedAt        time.Time
}

type TokenPair struct {
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type Identity struct {
	AccountID string
	SessionID string
	TokenID   string
	ExpiresAt time.Time
}

type Info struct {
	ID        string     `json:"id"`
	UserAgent string     `json:"user_agent"`
	IPAddress string     `json:"ip_address"`
	CreatedAt time.Time  `json:"created_at"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
}
