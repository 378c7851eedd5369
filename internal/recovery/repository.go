// AngelaMos | 2026
// repository.go

package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type Repository interface {
	Create(ctx context.Context, t *Token) error
	FindByHash(ctx context.Context, hash string) (*Token, error)
	MarkUsed(ctx context.Context, id string, at time.Time, ip string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, t *Token) error {
	query := `
		INSERT INTO recovery_tokens (id, account_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := core.Conn(ctx, r.db).ExecContext(ctx, query,
		t.ID,
		t.AccountID,
		t.TokenHash,
		t.ExpiresAt,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create recovery token: %w", err)
	}

	return nil
}

func (r *repository) FindByHash(ctx context.Context, hash string) (*Token, error) {
	query := `
		SELECT id, account_id, token_hash, expires_at, created_at, used_at, used_ip
		FROM recovery_tokens
		WHERE token_hash = $1`

	var t Token
	err := core.Conn(ctx, r.db).GetContext(ctx, &t, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find recovery token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find recovery token: %w", err)
	}

	return &t, nil
}

// MarkUsed sets used_at only if it is still NULL, so exactly one caller can
// consume a token. The loser gets ErrNotFound.
func (r *repository) MarkUsed(
	ctx context.Context,
	id string,
	at time.Time,
	ip string,
) error {
	query := `
		UPDATE recovery_tokens
		SET used_at = $2, used_ip = NULLIF($3, '')
		WHERE id = $1 AND used_at IS NULL`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, id, at, ip)
	if err != nil {
		return fmt.Errorf("mark recovery token used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark recovery token used: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("mark recovery token used: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM recovery_tokens
		WHERE expires_at < $1
		   OR (used_at IS NOT NULL AND used_at < $1)`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired recovery tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired recovery tokens: %w", err)
	}

	return rows, nil
}
