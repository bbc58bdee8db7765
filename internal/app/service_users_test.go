package app

import (
	"context"
	"database/sql"
	"testing"

	"nodetree/api/internal/rbac"
	"nodetree/api/internal/store"
)

func storedUser(id int64, role string) store.User {
	return store.User{
		ID:               id,
		Username:         "user",
		Email:            "user@example.com",
		Role:             role,
		IsEmailConfirmed: true,
		IsActive:         true,
	}
}

func userLookup(users map[int64]store.User) func(context.Context, int64) (store.User, error) {
	return func(_ context.Context, id int64) (store.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		return store.User{}, sql.ErrNoRows
	}
}

func TestListUsersScoping(t *testing.T) {
	var captured store.UserFilter
	fs := &fakeStore{
		listUsersFn: func(_ context.Context, filter store.UserFilter) ([]store.User, error) {
			captured = filter
			return nil, nil
		},
	}
	service := newTestService(fs)

	cases := []struct {
		name    string
		session Session
		check   func(store.UserFilter) bool
	}{
		{"sudo sees all", Session{UserID: 1, Role: rbac.RoleSudo}, func(f store.UserFilter) bool {
			return f.ExcludeRole == "" && f.OnlyID == 0
		}},
		{"admin never sees sudo", Session{UserID: 2, Role: rbac.RoleAdmin}, func(f store.UserFilter) bool {
			return f.ExcludeRole == "SUDO"
		}},
		{"user sees only itself", Session{UserID: 3, Role: rbac.RoleUser}, func(f store.UserFilter) bool {
			return f.OnlyID == 3
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.ListUsers(context.Background(), tc.session, store.UserFilter{}); err != nil {
				t.Fatalf("list: %v", err)
			}
			if !tc.check(captured) {
				t.Fatalf("unexpected filter %+v", captured)
			}
		})
	}
}

func TestCreateUserPolicy(t *testing.T) {
	service := newTestService(&fakeStore{})
	input := UserInput{Username: "new", Email: "new@example.com", Password: "longenough1"}

	t.Run("user cannot create", func(t *testing.T) {
		_, err := service.CreateUser(context.Background(), Session{UserID: 3, Role: rbac.RoleUser}, input)
		assertDomainCode(t, err, "forbidden")
	})

	t.Run("admin cannot create sudo", func(t *testing.T) {
		sudoInput := input
		sudoInput.Role = "SUDO"
		_, err := service.CreateUser(context.Background(), Session{UserID: 2, Role: rbac.RoleAdmin}, sudoInput)
		assertDomainCode(t, err, "forbidden")
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		badInput := input
		badInput.Role = "OVERLORD"
		_, err := service.CreateUser(context.Background(), Session{UserID: 1, Role: rbac.RoleSudo}, badInput)
		assertDomainCode(t, err, "invalid_role")
	})

	t.Run("admin creates regular user", func(t *testing.T) {
		user, err := service.CreateUser(context.Background(), Session{UserID: 2, Role: rbac.RoleAdmin}, input)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if user.Role != "USER" {
			t.Fatalf("expected USER role, got %q", user.Role)
		}
	})
}

func TestUpdateUserRoleChanges(t *testing.T) {
	users := map[int64]store.User{
		3: storedUser(3, "USER"),
		4: storedUser(4, "ADMIN"),
	}
	fs := &fakeStore{getUserByIDFn: userLookup(users)}
	service := newTestService(fs)

	t.Run("admin promotes user to admin", func(t *testing.T) {
		updated, err := service.UpdateUser(context.Background(), Session{UserID: 2, Role: rbac.RoleAdmin}, 3, UserInput{Role: "ADMIN"})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Role != "ADMIN" {
			t.Fatalf("expected promotion, got %q", updated.Role)
		}
	})

	t.Run("admin cannot grant sudo", func(t *testing.T) {
		_, err := service.UpdateUser(context.Background(), Session{UserID: 2, Role: rbac.RoleAdmin}, 3, UserInput{Role: "SUDO"})
		assertDomainCode(t, err, "forbidden")
	})

	t.Run("second sudo is refused", func(t *testing.T) {
		blocked := &fakeStore{
			getUserByIDFn: userLookup(users),
			sudoExistsFn:  func(context.Context, int64) (bool, error) { return true, nil },
		}
		blockedService := newTestService(blocked)
		_, err := blockedService.UpdateUser(context.Background(), Session{UserID: 1, Role: rbac.RoleSudo}, 4, UserInput{Role: "SUDO"})
		assertDomainCode(t, err, "sudo_exists")
	})

	t.Run("admin cannot update another admin", func(t *testing.T) {
		_, err := service.UpdateUser(context.Background(), Session{UserID: 2, Role: rbac.RoleAdmin}, 4, UserInput{Username: "renamed"})
		assertDomainCode(t, err, "forbidden")
	})
}

func TestDeactivationPolicy(t *testing.T) {
	users := map[int64]store.User{
		2: storedUser(2, "ADMIN"),
		3: storedUser(3, "USER"),
	}
	fs := &fakeStore{getUserByIDFn: userLookup(users)}
	service := newTestService(fs)
	inactive := false

	t.Run("nobody deactivates themself", func(t *testing.T) {
		_, err := service.UpdateUser(context.Background(), Session{UserID: 2, Role: rbac.RoleAdmin}, 2, UserInput{IsActive: &inactive})
		assertDomainCode(t, err, "forbidden")
	})

	t.Run("admin deactivates a user", func(t *testing.T) {
		updated, err := service.UpdateUser(context.Background(), Session{UserID: 2, Role: rbac.RoleAdmin}, 3, UserInput{IsActive: &inactive})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.IsActive {
			t.Fatal("expected deactivated account")
		}
	})
}

func TestDeleteUserPolicy(t *testing.T) {
	users := map[int64]store.User{
		1: storedUser(1, "SUDO"),
		2: storedUser(2, "ADMIN"),
		3: storedUser(3, "USER"),
	}

	t.Run("self deletion is refused", func(t *testing.T) {
		service := newTestService(&fakeStore{getUserByIDFn: userLookup(users)})
		_, err := service.DeleteUser(context.Background(), Session{UserID: 1, Role: rbac.RoleSudo}, 1)
		assertDomainCode(t, err, "forbidden")
	})

	t.Run("admin cannot delete admin", func(t *testing.T) {
		withOther := map[int64]store.User{2: users[2], 4: storedUser(4, "ADMIN")}
		service := newTestService(&fakeStore{getUserByIDFn: userLookup(withOther)})
		_, err := service.DeleteUser(context.Background(), Session{UserID: 2, Role: rbac.RoleAdmin}, 4)
		assertDomainCode(t, err, "forbidden")
	})

	t.Run("owner of active nodes is protected", func(t *testing.T) {
		fs := &fakeStore{
			getUserByIDFn:              userLookup(users),
			activeNodeCountByCreatorFn: func(context.Context, int64) (int, error) { return 5, nil },
		}
		service := newTestService(fs)
		_, err := service.DeleteUser(context.Background(), Session{UserID: 1, Role: rbac.RoleSudo}, 3)
		assertDomainCode(t, err, "has_nodes")
	})

	t.Run("delete succeeds", func(t *testing.T) {
		service := newTestService(&fakeStore{getUserByIDFn: userLookup(users)})
		payload, err := service.DeleteUser(context.Background(), Session{UserID: 1, Role: rbac.RoleSudo}, 3)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if payload["deleted"] != int64(3) {
			t.Fatalf("unexpected payload %v", payload)
		}
	})
}

func TestUpdateMeRestrictions(t *testing.T) {
	users := map[int64]store.User{3: storedUser(3, "USER")}
	service := newTestService(&fakeStore{getUserByIDFn: userLookup(users)})
	session := Session{UserID: 3, Role: rbac.RoleUser}

	t.Run("role change refused", func(t *testing.T) {
		_, err := service.UpdateMe(context.Background(), session, UserInput{Role: "ADMIN"})
		assertDomainCode(t, err, "forbidden")
	})

	t.Run("active flag refused", func(t *testing.T) {
		inactive := false
		_, err := service.UpdateMe(context.Background(), session, UserInput{IsActive: &inactive})
		assertDomainCode(t, err, "forbidden")
	})

	t.Run("bad email refused", func(t *testing.T) {
		_, err := service.UpdateMe(context.Background(), session, UserInput{Email: "not-an-email"})
		assertDomainCode(t, err, "invalid_email")
	})

	t.Run("profile edit succeeds", func(t *testing.T) {
		updated, err := service.UpdateMe(context.Background(), session, UserInput{Username: "renamed", Email: "Renamed@Example.com"})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Username != "renamed" || updated.Email != "renamed@example.com" {
			t.Fatalf("unexpected profile %+v", updated)
		}
	})
}

func TestChangePasswordMapsErrors(t *testing.T) {
	users := map[int64]store.User{3: storedUser(3, "USER")}
	service := newTestService(&fakeStore{getUserByIDFn: userLookup(users)})

	err := service.ChangePassword(context.Background(), Session{UserID: 3, Role: rbac.RoleUser}, "old", "newpassword", "different")
	assertDomainCode(t, err, "invalid_password")
}

func TestNodesCreatedAudit(t *testing.T) {
	users := map[int64]store.User{3: storedUser(3, "USER")}
	deletedAt := activeNode(2, "b", nil).CreatedAt
	fs := &fakeStore{
		getUserByIDFn: userLookup(users),
		listNodesCreatedByFn: func(context.Context, int64) ([]store.Node, error) {
			gone := activeNode(2, "b", nil)
			gone.IsDeleted = true
			gone.DeletedAt = &deletedAt
			return []store.Node{activeNode(1, "a", nil), gone}, nil
		},
	}
	service := newTestService(fs)

	t.Run("user cannot audit another account", func(t *testing.T) {
		_, err := service.NodesCreated(context.Background(), Session{UserID: 9, Role: rbac.RoleUser}, 3)
		assertDomainCode(t, err, "forbidden")
	})

	t.Run("deleted nodes are included", func(t *testing.T) {
		nodes, err := service.NodesCreated(context.Background(), Session{UserID: 1, Role: rbac.RoleSudo}, 3)
		if err != nil {
			t.Fatalf("audit: %v", err)
		}
		if len(nodes) != 2 {
			t.Fatalf("expected 2 nodes, got %d", len(nodes))
		}
		if !nodes[1].IsDeleted || nodes[1].DeletedAt == nil {
			t.Fatalf("expected deleted entry, got %+v", nodes[1])
		}
	})
}
