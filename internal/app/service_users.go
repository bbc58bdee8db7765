package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nodetree/api/internal/authpw"
	"nodetree/api/internal/rbac"
	"nodetree/api/internal/store"
)

type UserInput struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	Role             string `json:"role"`
	IsActive         *bool  `json:"is_active"`
	IsEmailConfirmed *bool  `json:"is_email_confirmed"`
}

// UserView is the public shape of an account. Password hashes never
// leave the service.
type UserView struct {
	ID               int64      `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	IsEmailConfirmed bool       `json:"is_email_confirmed"`
	IsActive         bool       `json:"is_active"`
	IsDeleted        bool       `json:"is_deleted"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func userView(u store.User) UserView {
	return UserView{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Role:             u.Role,
		IsEmailConfirmed: u.IsEmailConfirmed,
		IsActive:         u.IsActive,
		IsDeleted:        u.IsDeleted,
		DeletedAt:        u.DeletedAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func userViews(users []store.User) []UserView {
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}
	return views
}

var errForbidden = domainError(http.StatusForbidden, "forbidden", "You do not have permission to perform this action", nil)

// ListUsers returns the accounts the caller is allowed to see. SUDO
// sees everyone, ADMIN everyone but the SUDO, USER only itself.
func (s *Service) ListUsers(ctx context.Context, session Session, filter store.UserFilter) ([]UserView, error) {
	switch session.Role {
	case rbac.RoleSudo:
	case rbac.RoleAdmin:
		filter.ExcludeRole = string(rbac.RoleSudo)
	default:
		filter.OnlyID = session.UserID
	}
	users, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	return userViews(users), nil
}

func (s *Service) GetUser(ctx context.Context, session Session, id int64) (UserView, error) {
	target, err := s.findUser(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	if !rbac.CanManageUser(session.actor(), rbac.UserActionView, rbac.Target{ID: target.ID, Role: rbac.Normalize(target.Role)}) {
		return UserView{}, errForbidden
	}
	return userView(target), nil
}

func (s *Service) CreateUser(ctx context.Context, session Session, input UserInput) (UserView, error) {
	role := rbac.RoleUser
	if input.Role != "" {
		var err error
		role, err = parseRole(input.Role)
		if err != nil {
			return UserView{}, err
		}
	}
	if !rbac.CanManageUser(session.actor(), rbac.UserActionCreate, rbac.Target{Role: role}) {
		return UserView{}, errForbidden
	}
	if err := validateUserInput(input, true); err != nil {
		return UserView{}, err
	}

	hash, err := authpw.HashPassword(input.Password)
	if err != nil {
		return UserView{}, domainError(http.StatusBadRequest, "invalid_password", err.Error(), nil)
	}

	item := store.User{
		Username:         strings.TrimSpace(input.Username),
		Email:            strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash:     hash,
		Role:             string(role),
		IsEmailConfirmed: input.IsEmailConfirmed != nil && *input.IsEmailConfirmed,
		IsActive:         input.IsActive == nil || *input.IsActive,
	}
	created, err := s.store.CreateUser(ctx, item)
	if err != nil {
		return UserView{}, mapStoreConflict(err)
	}
	return userView(created), nil
}

// UpdateUser applies profile changes to another account. Role and
// active-state changes carry their own permission checks on top of the
// base update permission.
func (s *Service) UpdateUser(ctx context.Context, session Session, id int64, input UserInput) (UserView, error) {
	target, err := s.findUser(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	targetRole := rbac.Normalize(target.Role)

	if !rbac.CanManageUser(session.actor(), rbac.UserActionUpdate, rbac.Target{ID: target.ID, Role: targetRole}) {
		return UserView{}, errForbidden
	}

	if input.Role != "" {
		newRole, err := parseRole(input.Role)
		if err != nil {
			return UserView{}, err
		}
		if newRole != targetRole {
			if !rbac.CanManageUser(session.actor(), rbac.UserActionSetRole, rbac.Target{ID: target.ID, Role: newRole}) {
				return UserView{}, errForbidden
			}
			if newRole == rbac.RoleSudo {
				exists, err := s.store.SudoExists(ctx, target.ID)
				if err != nil {
					return UserView{}, err
				}
				if exists {
					return UserView{}, domainError(http.StatusBadRequest, "sudo_exists", "A SUDO user already exists", nil)
				}
			}
			target.Role = string(newRole)
		}
	}

	if input.IsActive != nil && !*input.IsActive && target.IsActive {
		if !rbac.CanManageUser(session.actor(), rbac.UserActionDeactivate, rbac.Target{ID: target.ID, Role: targetRole}) {
			return UserView{}, errForbidden
		}
		target.IsActive = false
	}
	if input.IsActive != nil && *input.IsActive {
		target.IsActive = true
	}

	if err := applyProfileChanges(&target, input); err != nil {
		return UserView{}, err
	}

	updated, err := s.store.UpdateUser(ctx, target)
	if err != nil {
		return UserView{}, mapStoreConflict(err)
	}
	return userView(updated), nil
}

// DeleteUser soft-deletes an account and deactivates it. Accounts that
// still own active nodes are protected; reassign or delete the nodes
// first.
func (s *Service) DeleteUser(ctx context.Context, session Session, id int64) (map[string]any, error) {
	target, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.IsDeleted {
		return nil, domainError(http.StatusNotFound, "not_found", "User not found", nil)
	}
	if !rbac.CanManageUser(session.actor(), rbac.UserActionDelete, rbac.Target{ID: target.ID, Role: rbac.Normalize(target.Role)}) {
		return nil, errForbidden
	}

	count, err := s.store.ActiveNodeCountByCreator(ctx, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domainError(http.StatusBadRequest, "has_nodes",
			"Cannot delete a user who still owns active nodes", map[string]any{"active_nodes": count})
	}

	deleted, err := s.store.SoftDeleteUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, domainError(http.StatusNotFound, "not_found", "User not found", nil)
	}
	return map[string]any{"deleted": id}, nil
}

func (s *Service) Me(ctx context.Context, session Session) (UserView, error) {
	user, err := s.findUser(ctx, session.UserID)
	if err != nil {
		return UserView{}, err
	}
	return userView(user), nil
}

// UpdateMe lets any caller edit its own profile fields. Role and
// active-state are not self-service.
func (s *Service) UpdateMe(ctx context.Context, session Session, input UserInput) (UserView, error) {
	user, err := s.findUser(ctx, session.UserID)
	if err != nil {
		return UserView{}, err
	}
	if input.Role != "" {
		role, err := parseRole(input.Role)
		if err != nil {
			return UserView{}, err
		}
		if role != rbac.Normalize(user.Role) {
			return UserView{}, errForbidden
		}
	}
	if input.IsActive != nil {
		return UserView{}, errForbidden
	}
	if err := applyProfileChanges(&user, input); err != nil {
		return UserView{}, err
	}
	updated, err := s.store.UpdateUser(ctx, user)
	if err != nil {
		return UserView{}, mapStoreConflict(err)
	}
	return userView(updated), nil
}

func (s *Service) ChangePassword(ctx context.Context, session Session, oldPassword, newPassword, confirmPassword string) error {
	err := s.passwords.ChangePassword(ctx, authpw.ChangePasswordRequest{
		UserID:          session.UserID,
		OldPassword:     oldPassword,
		NewPassword:     newPassword,
		ConfirmPassword: confirmPassword,
	})
	if err != nil {
		return domainError(http.StatusBadRequest, "invalid_password", err.Error(), nil)
	}
	return nil
}

// NodeAudit is the audit shape of an authored node. Unlike the tree
// views it includes soft-deleted entries and their deletion time.
type NodeAudit struct {
	ID        int64      `json:"id"`
	Content   string     `json:"content"`
	Parent    *int64     `json:"parent"`
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NodesCreated lists every node a user has authored, including
// soft-deleted ones, as an audit view.
func (s *Service) NodesCreated(ctx context.Context, session Session, id int64) ([]NodeAudit, error) {
	target, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanManageUser(session.actor(), rbac.UserActionView, rbac.Target{ID: target.ID, Role: rbac.Normalize(target.Role)}) {
		return nil, errForbidden
	}
	nodes, err := s.store.ListNodesCreatedBy(ctx, id)
	if err != nil {
		return nil, err
	}
	audit := make([]NodeAudit, 0, len(nodes))
	for _, n := range nodes {
		audit = append(audit, NodeAudit{
			ID:        n.ID,
			Content:   n.Content,
			Parent:    n.ParentID,
			IsDeleted: n.IsDeleted,
			DeletedAt: n.DeletedAt,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		})
	}
	return audit, nil
}

func (s *Service) findUser(ctx context.Context, id int64) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, domainError(http.StatusNotFound, "not_found", "User not found", nil)
	}
	if err != nil {
		return store.User{}, err
	}
	return user, nil
}

func applyProfileChanges(user *store.User, input UserInput) error {
	if username := strings.TrimSpace(input.Username); username != "" {
		user.Username = username
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		if !strings.Contains(email, "@") {
			return domainError(http.StatusBadRequest, "invalid_email", "email is not valid", nil)
		}
		user.Email = strings.ToLower(email)
	}
	if input.IsEmailConfirmed != nil {
		user.IsEmailConfirmed = *input.IsEmailConfirmed
	}
	return nil
}

func validateUserInput(input UserInput, requirePassword bool) error {
	if strings.TrimSpace(input.Username) == "" {
		return domainError(http.StatusBadRequest, "invalid_username", "username is required", nil)
	}
	email := strings.TrimSpace(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domainError(http.StatusBadRequest, "invalid_email", "a valid email is required", nil)
	}
	if requirePassword && input.Password == "" {
		return domainError(http.StatusBadRequest, "invalid_password", "password is required", nil)
	}
	return nil
}

func parseRole(raw string) (rbac.Role, error) {
	switch role := rbac.Role(strings.ToUpper(strings.TrimSpace(raw))); role {
	case rbac.RoleSudo, rbac.RoleAdmin, rbac.RoleUser:
		return role, nil
	default:
		return "", domainError(http.StatusBadRequest, "invalid_role", fmt.Sprintf("unknown role %q", raw), nil)
	}
}
