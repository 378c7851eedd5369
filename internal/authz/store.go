// AngelaMos | 2026
// store.go

package authz

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type RoleStore interface {
	GetRole(ctx context.Context, name string) (Role, error)
}

type StaticStore struct {
	roles map[string]Role
}

func NewStaticStore(roles ...Role) *StaticStore {
	if len(roles) == 0 {
		roles = BuiltinRoles()
	}

	m := make(map[string]Role, len(roles))
	for _, r := range roles {
		m[r.Name()] = r
	}

	return &StaticStore{roles: m}
}

func (s *StaticStore) GetRole(_ context.Context, name string) (Role, error) {
	r, ok := s.roles[name]
	if !ok {
		return Role{}, fmt.Errorf("get role %q: %w", name, core.ErrNotFound)
	}
	return r, nil
}
