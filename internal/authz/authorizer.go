// AngelaMos | 2026
// authorizer.go

package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type Subject interface {
	RoleName() string
}

type Authorizer struct {
	store  RoleStore
	logger *slog.Logger
}

func NewAuthorizer(store RoleStore, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{store: store, logger: logger}
}

// Authorize returns ErrPermissionDenied when the subject's role lacks perm
// or does not exist. Store failures are returned as is.
func (a *Authorizer) Authorize(ctx context.Context, subject Subject, perm Permission) error {
	if subject == nil {
		return fmt.Errorf("authorize %s: %w", perm, core.ErrPermissionDenied)
	}

	name := subject.RoleName()
	role, err := a.store.GetRole(ctx, name)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			a.logger.Warn("authorize against unknown role", "role", name, "permission", perm)
			return fmt.Errorf("authorize %s: %w", perm, core.ErrPermissionDenied)
		}
		return fmt.Errorf("authorize %s: %w", perm, err)
	}

	if !role.Has(perm) {
		return fmt.Errorf("authorize %s: %w", perm, core.ErrPermissionDenied)
	}

	return nil
}
