// AngelaMos | 2026
// repository.go

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	FindByAccessHash(ctx context.Context, hash string) (*Session, error)
	FindByRefreshHash(ctx context.Context, hash string) (*Session, error)
	Rotate(ctx context.Context, id, oldRefreshHash string, next Rotation) error
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAll(ctx context.Context, accountID, exceptID string, at time.Time) (int64, error)
	ListActive(ctx context.Context, accountID string, now time.Time) ([]Session, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const sessionColumns = `
	id, account_id, access_hash, refresh_hash, access_expires_at,
	refresh_expires_at, revoked_at, rotated_at, created_at,
	user_agent, ip_address`

func (r *repository) Create(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO sessions (
			id, account_id, access_hash, refresh_hash, access_expires_at,
			refresh_expires_at, created_at, user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := core.Conn(ctx, r.db).ExecContext(ctx, query,
		s.ID,
		s.AccountID,
		s.AccessHash,
		s.RefreshHash,
		s.AccessExpiresAt,
		s.RefreshExpiresAt,
		s.CreatedAt,
		s.UserAgent,
		s.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Session, error) {
	return r.findOne(ctx, "find session", `SELECT`+sessionColumns+`
		FROM sessions
		WHERE id = $1`, id)
}

func (r *repository) FindByAccessHash(
	ctx context.Context,
	hash string,
) (*Session, error) {
	return r.findOne(ctx, "find session by access token", `SELECT`+sessionColumns+`
		FROM sessions
		WHERE access_hash = $1`, hash)
}

func (r *repository) FindByRefreshHash(
	ctx context.Context,
	hash string,
) (*Session, error) {
	return r.findOne(ctx, "find session by refresh token", `SELECT`+sessionColumns+`
		FROM sessions
		WHERE refresh_hash = $1`, hash)
}

// Rotate swaps in the next token pair only while the row still holds
// oldRefreshHash and is not revoked. A concurrent rotation that already
// replaced the hash leaves zero rows affected and yields ErrNotFound.
func (r *repository) Rotate(
	ctx context.Context,
	id, oldRefreshHash string,
	next Rotation,
) error {
	query := `
		UPDATE sessions
		SET access_hash = $3,
		    refresh_hash = $4,
		    access_expires_at = $5,
		    refresh_expires_at = $6,
		    rotated_at = $7
		WHERE id = $1 AND refresh_hash = $2 AND revoked_at IS NULL`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query,
		id,
		oldRefreshHash,
		next.AccessHash,
		next.RefreshHash,
		next.AccessExpiresAt,
		next.RefreshExpiresAt,
		next.RotatedAt,
	)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("rotate session: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Revoke(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE sessions
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("revoke session: %w", core.ErrNotFound)
	}

	return nil
}

// RevokeAll revokes every live session of accountID except exceptID. An
// empty exceptID keeps none.
func (r *repository) RevokeAll(
	ctx context.Context,
	accountID, exceptID string,
	at time.Time,
) (int64, error) {
	query := `
		UPDATE sessions
		SET revoked_at = $2
		WHERE account_id = $1 AND revoked_at IS NULL AND id::text <> $3`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, accountID, at, exceptID)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	return rows, nil
}

func (r *repository) ListActive(
	ctx context.Context,
	accountID string,
	now time.Time,
) ([]Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM sessions
		WHERE account_id = $1
			AND revoked_at IS NULL
			AND refresh_expires_at > $2
		ORDER BY created_at DESC`

	var sessions []Session
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &sessions, query, accountID, now); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	return sessions, nil
}

func (r *repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE refresh_expires_at < $1
		   OR (revoked_at IS NOT NULL AND revoked_at < $1)`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	return rows, nil
}

func (r *repository) findOne(
	ctx context.Context,
	op, query string,
	arg string,
) (*Session, error) {
	var s Session
	err := core.Conn(ctx, r.db).GetContext(ctx, &s, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &s, nil
}
