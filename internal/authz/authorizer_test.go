// AngelaMos | 2026
// authorizer_test.go

package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

type roleSubject string

func (s roleSubject) RoleName() string { return string(s) }

type failingStore struct{ err error }

func (f failingStore) GetRole(context.Context, string) (Role, error) {
	return Role{}, f.err
}

func TestBuiltinRolesAreNested(t *testing.T) {
	store := NewStaticStore()
	ctx := context.Background()

	worker, _ := store.GetRole(ctx, RoleWorker)
	manager, _ := store.GetRole(ctx, RoleManager)
	owner, _ := store.GetRole(ctx, RoleOwner)

	if !manager.Includes(worker) {
		t.Fatal("manager must include every worker permission")
	}
	if !owner.Includes(manager) {
		t.Fatal("owner must include every manager permission")
	}
	if worker.Includes(manager) {
		t.Fatal("worker must not include manager")
	}
}

func TestAuthorize(t *testing.T) {
	a := NewAuthorizer(NewStaticStore(), nil)

	tests := []struct {
		name    string
		role    string
		perm    Permission
		allowed bool
	}{
		{"worker views tasks", RoleWorker, ViewTasks, true},
		{"worker cannot manage team", RoleWorker, ManageTeam, false},
		{"manager manages team", RoleManager, ManageTeam, true},
		{"manager cannot see stats", RoleManager, ViewSystemStats, false},
		{"owner sees stats", RoleOwner, ViewSystemStats, true},
		{"owner has worker permission", RoleOwner, AddComments, true},
		{"unknown role", "tester", ViewTasks, false},
		{"unknown permission", RoleOwner, Permission("launch_rockets"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authorize(context.Background(), roleSubject(tt.role), tt.perm)
			if tt.allowed && err != nil {
				t.Fatalf("Authorize = %v, want nil", err)
			}
			if !tt.allowed && !errors.Is(err, core.ErrPermissionDenied) {
				t.Fatalf("Authorize = %v, want ErrPermissionDenied", err)
			}
		})
	}
}

func TestAuthorizeNilSubject(t *testing.T) {
	a := NewAuthorizer(NewStaticStore(), nil)

	if err := a.Authorize(context.Background(), nil, ViewTasks); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("nil subject = %v", err)
	}
}

func TestAuthorizeSurfacesStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	a := NewAuthorizer(failingStore{err: boom}, nil)

	err := a.Authorize(context.Background(), roleSubject(RoleOwner), ViewTasks)
	if !errors.Is(err, boom) {
		t.Fatalf("Authorize = %v, want store error", err)
	}
	if errors.Is(err, core.ErrPermissionDenied) {
		t.Fatal("store failure must not look like a denial")
	}
}

func TestRolePermissionsIsCopy(t *testing.T) {
	r := NewRole("custom", ViewTasks, AddComments)

	perms := r.Permissions()
	perms[0] = ManageRoles

	if r.Has(ManageRoles) {
		t.Fatal("mutating Permissions() changed the role")
	}
	if len(r.Permissions()) != 2 {
		t.Fatalf("permissions = %v", r.Permissions())
	}
}
