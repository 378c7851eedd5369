// AngelaMos | 2026
// repository.go

package audit

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type Repository interface {
	Sink
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Entry, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Write(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO auth_logs (id, account_id, username, event, outcome, reason,
		                       ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.AccountID,
		e.Username,
		e.Event,
		e.Outcome,
		e.Reason,
		e.IPAddress,
		e.UserAgent,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert auth log: %w", err)
	}

	return nil
}

func (r *repository) ListByAccount(
	ctx context.Context,
	accountID string,
	limit int,
) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, account_id, username, event, outcome, reason,
		       ip_address, user_agent, created_at
		FROM auth_logs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var entries []Entry
	if err := r.db.SelectContext(ctx, &entries, query, accountID, limit); err != nil {
		return nil, fmt.Errorf("list auth logs: %w", err)
	}

	return entries, nil
}
