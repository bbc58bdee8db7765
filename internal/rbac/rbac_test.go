package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "user read", role: RoleUser, action: ActionRead, allow: true},
		{name: "user write", role: RoleUser, action: ActionWrite, allow: false},
		{name: "user manage", role: RoleUser, action: ActionManage, allow: false},
		{name: "admin read", role: RoleAdmin, action: ActionRead, allow: true},
		{name: "admin write", role: RoleAdmin, action: ActionWrite, allow: true},
		{name: "sudo write", role: RoleSudo, action: ActionWrite, allow: true},
		{name: "sudo manage", role: RoleSudo, action: ActionManage, allow: true},
		{name: "unknown role", role: Role("GUEST"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("ADMIN"); got != RoleAdmin {
		t.Fatalf("Normalize(ADMIN) = %q", got)
	}
	if got := Normalize("whatever"); got != RoleUser {
		t.Fatalf("Normalize(whatever) = %q, want USER", got)
	}
}

func TestCanManageUserMatrix(t *testing.T) {
	sudo := Actor{ID: 1, Role: RoleSudo}
	admin := Actor{ID: 2, Role: RoleAdmin}
	user := Actor{ID: 3, Role: RoleUser}

	sudoT := Target{ID: 1, Role: RoleSudo}
	adminT := Target{ID: 2, Role: RoleAdmin}
	otherAdminT := Target{ID: 4, Role: RoleAdmin}
	userT := Target{ID: 3, Role: RoleUser}
	otherUserT := Target{ID: 5, Role: RoleUser}

	cases := []struct {
		name   string
		actor  Actor
		action UserAction
		target Target
		allow  bool
	}{
		// SUDO: unrestricted except acting destructively on itself.
		{"sudo views admin", sudo, UserActionView, adminT, true},
		{"sudo updates admin", sudo, UserActionUpdate, adminT, true},
		{"sudo deletes admin", sudo, UserActionDelete, adminT, true},
		{"sudo deletes user", sudo, UserActionDelete, otherUserT, true},
		{"sudo deletes itself", sudo, UserActionDelete, sudoT, false},
		{"sudo deactivates itself", sudo, UserActionDeactivate, sudoT, false},
		{"sudo grants sudo", sudo, UserActionSetRole, Target{ID: 5, Role: RoleSudo}, true},

		// ADMIN: manages USER accounts and its own profile only.
		{"admin views user", admin, UserActionView, otherUserT, true},
		{"admin views sudo", admin, UserActionView, sudoT, false},
		{"admin creates user", admin, UserActionCreate, Target{Role: RoleUser}, true},
		{"admin creates sudo", admin, UserActionCreate, Target{Role: RoleSudo}, false},
		{"admin updates user", admin, UserActionUpdate, otherUserT, true},
		{"admin updates other admin", admin, UserActionUpdate, otherAdminT, false},
		{"admin updates sudo", admin, UserActionUpdate, sudoT, false},
		{"admin updates itself", admin, UserActionUpdate, adminT, true},
		{"admin deletes user", admin, UserActionDelete, otherUserT, true},
		{"admin deletes other admin", admin, UserActionDelete, otherAdminT, false},
		{"admin deletes sudo", admin, UserActionDelete, sudoT, false},
		{"admin deletes itself", admin, UserActionDelete, adminT, false},
		{"admin grants admin", admin, UserActionSetRole, Target{ID: 5, Role: RoleAdmin}, true},
		{"admin grants sudo", admin, UserActionSetRole, Target{ID: 5, Role: RoleSudo}, false},
		{"admin deactivates user", admin, UserActionDeactivate, otherUserT, true},
		{"admin deactivates itself", admin, UserActionDeactivate, adminT, false},

		// USER: self view/update only.
		{"user views itself", user, UserActionView, userT, true},
		{"user views other", user, UserActionView, otherUserT, false},
		{"user updates itself", user, UserActionUpdate, userT, true},
		{"user updates other", user, UserActionUpdate, otherUserT, false},
		{"user creates", user, UserActionCreate, Target{Role: RoleUser}, false},
		{"user deletes itself", user, UserActionDelete, userT, false},
		{"user deletes other", user, UserActionDelete, otherUserT, false},
		{"user changes own role", user, UserActionSetRole, Target{ID: 3, Role: RoleAdmin}, false},
		{"user deactivates itself", user, UserActionDeactivate, userT, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanManageUser(tc.actor, tc.action, tc.target); got != tc.allow {
				t.Fatalf("CanManageUser(%v, %q, %v) = %v, want %v", tc.actor, tc.action, tc.target, got, tc.allow)
			}
		})
	}
}
