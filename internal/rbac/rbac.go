package rbac

type Role string
type Action string

const (
	RoleSudo  Role = "SUDO"
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

// Can reports whether a role may perform an action on node resources.
// Reads are open to every valid role; writes require ADMIN or SUDO.
func Can(role Role, action Action) bool {
	switch role {
	case RoleSudo:
		return true
	case RoleAdmin:
		return action == ActionRead || action == ActionWrite || action == ActionManage
	case RoleUser:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleSudo, RoleAdmin, RoleUser:
		return Role(role)
	default:
		return RoleUser
	}
}

// UserAction is an operation performed on a user account.
type UserAction string

const (
	UserActionView       UserAction = "view"
	UserActionCreate     UserAction = "create"
	UserActionUpdate     UserAction = "update"
	UserActionDelete     UserAction = "delete"
	UserActionSetRole    UserAction = "set_role"
	UserActionDeactivate UserAction = "deactivate"
)

// Actor describes the authenticated account for a policy decision.
type Actor struct {
	ID   int64
	Role Role
}

// Target describes the account being acted on. For create there is no
// existing account; Role carries the role the new account would get.
type Target struct {
	ID   int64
	Role Role
}

// CanManageUser is the single policy function for the user subsystem.
//
// SUDO is unrestricted except for self-deletion and self-deactivation.
// ADMIN manages USER accounts and its own profile, never other ADMINs or
// the SUDO, and never grants the SUDO role.
// USER touches only its own profile and can never change its role,
// deactivate itself, or delete anything.
func CanManageUser(actor Actor, action UserAction, target Target) bool {
	self := actor.ID != 0 && actor.ID == target.ID

	// Nobody deletes or deactivates themself.
	if self && (action == UserActionDelete || action == UserActionDeactivate) {
		return false
	}

	switch actor.Role {
	case RoleSudo:
		return true
	case RoleAdmin:
		switch action {
		case UserActionView:
			return target.Role != RoleSudo
		case UserActionCreate:
			return target.Role != RoleSudo
		case UserActionSetRole:
			// Only SUDO grants or revokes SUDO. Target.Role carries
			// the role being assigned here.
			return target.Role != RoleSudo
		case UserActionUpdate, UserActionDeactivate:
			return self || target.Role == RoleUser
		case UserActionDelete:
			return target.Role == RoleUser
		default:
			return false
		}
	case RoleUser:
		switch action {
		case UserActionView, UserActionUpdate:
			return self
		default:
			return false
		}
	default:
		return false
	}
}
