// AngelaMos | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

const (
	constraintUsername = "accounts_username_key"
	constraintEmail    = "accounts_email_key"
)

type Repository interface {
	Create(ctx context.Context, acc *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByChatID(ctx context.Context, chatID int64) (*Account, error)
	GetByChatUsername(ctx context.Context, chatUsername string) (*Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkChannelVerified(ctx context.Context, id string, chatID *int64) error
	UnlinkChannel(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string) error
	Stats(ctx context.Context) (*Stats, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, acc *Account) error {
	query := `
		INSERT INTO accounts (id, username, password_hash, email, first_name,
		                      last_name, chat_username, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	row := core.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		acc.ID,
		acc.Username,
		acc.PasswordHash,
		acc.Email,
		acc.FirstName,
		acc.LastName,
		acc.ChatUsername,
		acc.Role,
	)
	if err := row.Scan(&acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return fmt.Errorf("create account: %w", mapUniqueViolation(err))
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Account, error) {
	query := `
		SELECT id, username, password_hash, email, first_name, last_name,
		       chat_username, chat_id, channel_verified, role,
		       created_at, updated_at, last_login_at
		FROM accounts
		WHERE id = $1`

	var acc Account
	err := core.Conn(ctx, r.db).GetContext(ctx, &acc, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &acc, nil
}

func (r *repository) GetByUsername(
	ctx context.Context,
	username string,
) (*Account, error) {
	query := `
		SELECT id, username, password_hash, email, first_name, last_name,
		       chat_username, chat_id, channel_verified, role,
		       created_at, updated_at, last_login_at
		FROM accounts
		WHERE username = $1`

	var acc Account
	err := core.Conn(ctx, r.db).GetContext(ctx, &acc, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account by username: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by username: %w", err)
	}

	return &acc, nil
}

func (r *repository) GetByChatID(ctx context.Context, chatID int64) (*Account, error) {
	query := `
		SELECT id, username, password_hash, email, first_name, last_name,
		       chat_username, chat_id, channel_verified, role,
		       created_at, updated_at, last_login_at
		FROM accounts
		WHERE chat_id = $1
		ORDER BY created_at
		LIMIT 1`

	var acc Account
	err := core.Conn(ctx, r.db).GetContext(ctx, &acc, query, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account by chat id: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by chat id: %w", err)
	}

	return &acc, nil
}

// GetByChatUsername expects chatUsername already normalized; stored values
// are normalized on registration.
func (r *repository) GetByChatUsername(
	ctx context.Context,
	chatUsername string,
) (*Account, error) {
	query := `
		SELECT id, username, password_hash, email, first_name, last_name,
		       chat_username, chat_id, channel_verified, role,
		       created_at, updated_at, last_login_at
		FROM accounts
		WHERE chat_username = $1
		ORDER BY created_at
		LIMIT 1`

	var acc Account
	err := core.Conn(ctx, r.db).GetContext(ctx, &acc, query, chatUsername)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account by chat username: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by chat username: %w", err)
	}

	return &acc, nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) MarkChannelVerified(
	ctx context.Context,
	id string,
	chatID *int64,
) error {
	query := `
		UPDATE accounts
		SET channel_verified = TRUE,
		    chat_id = COALESCE($2, chat_id),
		    updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "mark channel verified", query, id, chatID)
}

func (r *repository) UnlinkChannel(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET channel_verified = FALSE,
		    chat_id = NULL,
		    chat_username = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "unlink channel", query, id)
}

func (r *repository) TouchLastLogin(ctx context.Context, id string) error {
	query := `UPDATE accounts SET last_login_at = NOW() WHERE id = $1`

	return r.execOne(ctx, "touch last login", query, id)
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	db := core.Conn(ctx, r.db)

	var stats Stats
	err := db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}

	err = db.GetContext(ctx, &stats.Verified,
		`SELECT COUNT(*) FROM accounts WHERE channel_verified`)
	if err != nil {
		return nil, fmt.Errorf("count verified accounts: %w", err)
	}

	query := `
		SELECT role, COUNT(*) AS count
		FROM accounts
		GROUP BY role
		ORDER BY role`
	if err := db.SelectContext(ctx, &stats.ByRole, query); err != nil {
		return nil, fmt.Errorf("count accounts by role: %w", err)
	}

	return &stats, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}

	switch pgErr.ConstraintName {
	case constraintUsername:
		return core.ErrDuplicateUsername
	case constraintEmail:
		return core.ErrDuplicateEmail
	default:
		return core.ErrDuplicateKey
	}
}
