// AngelaMos | 2026
// role.go

package authz

import (
	"sort"
)

type Permission string

const (
	ViewTasks       Permission = "view_tasks"
	ViewOwnTasks    Permission = "view_own_tasks"
	UpdateOwnTasks  Permission = "update_own_tasks"
	AddComments     Permission = "add_comments"
	EditAllTasks    Permission = "edit_all_tasks"
	ManageTeam      Permission = "manage_team"
	CreateProjects  Permission = "create_projects"
	ManageRoles     Permission = "manage_roles"
	ManageUsers     Permission = "manage_users"
	DeleteProjects  Permission = "delete_projects"
	ViewAuditLog    Permission = "view_audit_log"
	ViewSystemStats Permission = "view_system_stats"
)

const (
	RoleWorker  = "worker"
	RoleManager = "manager"
	RoleOwner   = "owner"
)

// Role is read-only after construction.
type Role struct {
	name  string
	perms map[Permission]struct{}
}

func NewRole(name string, perms ...Permission) Role {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return Role{name: name, perms: set}
}

func (r Role) Name() string {
	return r.name
}

func (r Role) Has(p Permission) bool {
	_, ok := r.perms[p]
	return ok
}

func (r Role) Permissions() []Permission {
	out := make([]Permission, 0, len(r.perms))
	for p := range r.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Includes reports whether every permission of other is also held by r.
func (r Role) Includes(other Role) bool {
	for p := range other.perms {
		if !r.Has(p) {
			return false
		}
	}
	return true
}

var (
	workerPerms = []Permission{
		ViewTasks,
		ViewOwnTasks,
		UpdateOwnTasks,
		AddComments,
	}

	managerPerms = append(append([]Permission{}, workerPerms...),
		EditAllTasks,
		ManageTeam,
		CreateProjects,
	)

	ownerPerms = append(append([]Permission{}, managerPerms...),
		ManageRoles,
		ManageUsers,
		DeleteProjects,
		ViewAuditLog,
		ViewSystemStats,
	)
)

func BuiltinRoles() []Role {
	return []Role{
		NewRole(RoleWorker, workerPerms...),
		NewRole(RoleManager, managerPerms...),
		NewRole(RoleOwner, ownerPerms...),
	}
}
