// AngelaMos | 2026
// repository.go

package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type roleRow struct {
	Name        string         `db:"name"`
	Permissions pq.StringArray `db:"permissions"`
}

func (r roleRow) role() Role {
	perms := make([]Permission, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, Permission(p))
	}
	return NewRole(r.Name, perms...)
}

// Repository reads roles from the roles table. Role administration happens
// elsewhere so there are no write methods.
type Repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetRole(ctx context.Context, name string) (Role, error) {
	query := `SELECT name, permissions FROM roles WHERE name = $1`

	var row roleRow
	err := core.Conn(ctx, r.db).GetContext(ctx, &row, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Role{}, fmt.Errorf("get role %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return Role{}, fmt.Errorf("get role %q: %w", name, err)
	}

	return row.role(), nil
}

func (r *Repository) List(ctx context.Context) ([]Role, error) {
	query := `SELECT name, permissions FROM roles ORDER BY name`

	var rows []roleRow
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	roles := make([]Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.role())
	}

	return roles, nil
}
