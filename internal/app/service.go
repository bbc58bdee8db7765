package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nodetree/api/internal/auth"
	"nodetree/api/internal/authpw"
	"nodetree/api/internal/cache"
	"nodetree/api/internal/config"
	"nodetree/api/internal/rbac"
	"nodetree/api/internal/render"
	"nodetree/api/internal/store"
)

// Session is the authenticated caller, resolved fresh from the store on
// every request so role and state changes take effect immediately.
type Session struct {
	UserID   int64
	Username string
	Role     rbac.Role
}

func (s Session) actor() rbac.Actor {
	return rbac.Actor{ID: s.UserID, Role: s.Role}
}

type NodeInput struct {
	Content string `json:"content"`
	Parent  *int64 `json:"parent"`
}

// NodeUpdateInput keeps absent fields distinguishable from explicit
// nulls: an omitted field keeps the stored value, "parent": null
// detaches the node to root.
type NodeUpdateInput struct {
	Content *string         `json:"content"`
	Parent  json.RawMessage `json:"parent"`
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      store.User
}

type dataStore interface {
	Ping(ctx context.Context) error

	ListRootNodes(ctx context.Context) ([]store.Node, error)
	ListActiveChildren(ctx context.Context, parentID int64) ([]store.Node, error)
	GetNode(ctx context.Context, id int64) (store.Node, error)
	InsertNode(ctx context.Context, item store.Node) (store.Node, error)
	UpdateNode(ctx context.Context, item store.Node) (store.Node, error)
	SoftDeleteNode(ctx context.Context, id int64) (bool, error)
	ActiveChildCount(ctx context.Context, id int64) (int, error)
	ActiveSiblingContentExists(ctx context.Context, parentID *int64, content string, excludeID int64) (bool, error)
	AncestorIDs(ctx context.Context, id int64) ([]int64, error)
	ListNodesCreatedBy(ctx context.Context, userID int64) ([]store.Node, error)
	ActiveNodeCountByCreator(ctx context.Context, userID int64) (int, error)

	GetUserByID(ctx context.Context, id int64) (store.User, error)
	GetUserByLogin(ctx context.Context, identifier string) (store.User, error)
	CreateUser(ctx context.Context, item store.User) (store.User, error)
	UpdateUser(ctx context.Context, item store.User) (store.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
	SoftDeleteUser(ctx context.Context, id int64) (bool, error)
	SudoExists(ctx context.Context, excludeID int64) (bool, error)
	ListUsers(ctx context.Context, filter store.UserFilter) ([]store.User, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	renderer  *render.Renderer
	cache     *cache.ResponseCache
	passwords *authpw.Service
}

func New(cfg config.Config, dataStore dataStore, passwords *authpw.Service) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		renderer:  render.NewRenderer(dataStore),
		passwords: passwords,
	}
}

// NewWithCache wires the Redis response cache in front of the root
// listing. The cache may be nil; everything then recomputes.
func NewWithCache(cfg config.Config, dataStore dataStore, passwords *authpw.Service, responseCache *cache.ResponseCache) *Service {
	service := New(cfg, dataStore, passwords)
	service.cache = responseCache
	return service
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap seeds the single SUDO account from config on first start.
// Skipped when a SUDO already exists or no seed password is configured.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.cfg.SudoPassword == "" {
		return nil
	}
	exists, err := s.store.SudoExists(ctx, 0)
	if err != nil {
		return fmt.Errorf("check sudo: %w", err)
	}
	if exists {
		return nil
	}
	hash, err := authpw.HashPassword(s.cfg.SudoPassword)
	if err != nil {
		return fmt.Errorf("hash sudo password: %w", err)
	}
	_, err = s.store.CreateUser(ctx, store.User{
		Username:         s.cfg.SudoUsername,
		Email:            s.cfg.SudoEmail,
		PasswordHash:     hash,
		Role:             string(rbac.RoleSudo),
		IsEmailConfirmed: true,
		IsActive:         true,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateSudo) {
		return fmt.Errorf("seed sudo: %w", err)
	}
	return nil
}

// Login authenticates a username-or-email identifier and issues an
// access token. All failures look identical to the caller.
func (s *Service) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	user, err := s.passwords.SignIn(ctx, identifier, password)
	if err != nil {
		return LoginResult{}, domainError(http.StatusUnauthorized, "invalid_credentials", "Invalid credentials", nil)
	}

	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		JTI:      auth.NewJTI(),
		Exp:      expiresAt,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// SessionFromToken validates a bearer token and re-checks the account's
// read gate (active, confirmed, not deleted) against the store.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	if user.IsDeleted || !user.IsActive || !user.IsEmailConfirmed {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{UserID: user.ID, Username: user.Username, Role: rbac.Normalize(user.Role)}, nil
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

// ── Nodes ──

// ListNodes renders all active root trees for the request context,
// consulting the response cache first. Cache failures fall through to a
// recompute; a successful recompute is stored best-effort.
func (s *Service) ListNodes(ctx context.Context, rc render.Context) (json.RawMessage, error) {
	var key string
	if s.cache != nil {
		key = s.cache.Key(ctx, rc.Locale, rc.TimezoneName, depthKey(rc))
		if payload, ok := s.cache.Get(ctx, key); ok {
			return payload, nil
		}
	}

	roots, err := s.store.ListRootNodes(ctx)
	if err != nil {
		return nil, err
	}
	rendered, err := s.renderer.RenderMany(ctx, roots, rc)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(rendered)
	if err != nil {
		return nil, fmt.Errorf("marshal node list: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, payload)
	}
	return payload, nil
}

// GetNodeTree renders one active node with its descendants. Soft-deleted
// and unknown ids are indistinguishable: both are 404.
func (s *Service) GetNodeTree(ctx context.Context, id int64, rc render.Context) (render.Node, error) {
	node, err := s.store.GetNode(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return render.Node{}, domainError(http.StatusNotFound, "not_found", "Node not found", nil)
	}
	if err != nil {
		return render.Node{}, err
	}
	return s.renderer.Render(ctx, node, rc)
}

func (s *Service) CreateNode(ctx context.Context, input NodeInput, actorID int64, rc render.Context) (render.Node, error) {
	content := strings.TrimSpace(input.Content)
	if err := s.validateNode(ctx, content, input.Parent, 0); err != nil {
		return render.Node{}, err
	}

	created, err := s.store.InsertNode(ctx, store.Node{
		Content:   content,
		ParentID:  input.Parent,
		CreatedBy: &actorID,
	})
	if err != nil {
		return render.Node{}, mapStoreConflict(err)
	}

	s.invalidate(ctx)
	return s.renderer.Render(ctx, created, rc)
}

// UpdateNode applies a partial update: fields absent from the request
// keep their stored values, so renaming a node never moves it and a
// move never requires resending the content.
func (s *Service) UpdateNode(ctx context.Context, id int64, input NodeUpdateInput, actorID int64, rc render.Context) (render.Node, error) {
	existing, err := s.store.GetNode(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return render.Node{}, domainError(http.StatusNotFound, "not_found", "Node not found", nil)
		}
		return render.Node{}, err
	}

	content := existing.Content
	if input.Content != nil {
		content = strings.TrimSpace(*input.Content)
	}
	parentID := existing.ParentID
	if len(input.Parent) > 0 {
		parentID, err = parseParentField(input.Parent)
		if err != nil {
			return render.Node{}, err
		}
	}

	if parentID != nil && *parentID == id {
		return render.Node{}, domainError(http.StatusBadRequest, "self_parent", "A node cannot be its own parent", nil)
	}
	if err := s.validateNode(ctx, content, parentID, id); err != nil {
		return render.Node{}, err
	}
	if parentID != nil {
		if err := s.checkAncestryCycle(ctx, id, *parentID); err != nil {
			return render.Node{}, err
		}
	}

	updated, err := s.store.UpdateNode(ctx, store.Node{
		ID:        id,
		Content:   content,
		ParentID:  parentID,
		UpdatedBy: &actorID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return render.Node{}, domainError(http.StatusNotFound, "not_found", "Node not found", nil)
		}
		return render.Node{}, mapStoreConflict(err)
	}

	s.invalidate(ctx)
	return s.renderer.Render(ctx, updated, rc)
}

// DeleteNode soft-deletes a leaf node. Nodes with active children are
// protected; already-deleted nodes are invisible and answer 404.
func (s *Service) DeleteNode(ctx context.Context, id int64) (map[string]any, error) {
	if _, err := s.store.GetNode(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "not_found", "Node not found", nil)
		}
		return nil, err
	}

	count, err := s.store.ActiveChildCount(ctx, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domainError(http.StatusBadRequest, "has_children",
			"Cannot delete a node with active children", map[string]any{"active_children": count})
	}

	deleted, err := s.store.SoftDeleteNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		// The guarded UPDATE refused: either a child appeared since the
		// count or another request deleted the node first.
		count, err := s.store.ActiveChildCount(ctx, id)
		if err == nil && count > 0 {
			return nil, domainError(http.StatusBadRequest, "has_children",
				"Cannot delete a node with active children", map[string]any{"active_children": count})
		}
		return nil, domainError(http.StatusNotFound, "not_found", "Node not found", nil)
	}

	s.invalidate(ctx)
	return map[string]any{"deleted": id}, nil
}

// parseParentField reads the update payload's parent value: a JSON
// null detaches, anything else must be a node id.
func parseParentField(raw json.RawMessage) (*int64, error) {
	if strings.TrimSpace(string(raw)) == "null" {
		return nil, nil
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, domainError(http.StatusBadRequest, "invalid_parent", "parent must be a node id or null", nil)
	}
	return &id, nil
}

func (s *Service) validateNode(ctx context.Context, content string, parentID *int64, excludeID int64) error {
	if content == "" {
		return domainError(http.StatusBadRequest, "invalid_content", "content is required", nil)
	}

	if parentID != nil {
		if *parentID < 1 {
			return domainError(http.StatusBadRequest, "invalid_parent", "parent must be a positive id", nil)
		}
		if _, err := s.store.GetNode(ctx, *parentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domainError(http.StatusBadRequest, "invalid_parent", "parent node does not exist", nil)
			}
			return err
		}
	}

	exists, err := s.store.ActiveSiblingContentExists(ctx, parentID, content, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return domainError(http.StatusBadRequest, "duplicate_content",
			fmt.Sprintf("An active node with content %q already exists at this level", content), nil)
	}
	return nil
}

// checkAncestryCycle rejects a reparent that would make the node an
// ancestor of itself anywhere in the chain, not just one hop up.
func (s *Service) checkAncestryCycle(ctx context.Context, id, newParentID int64) error {
	ancestors, err := s.store.AncestorIDs(ctx, newParentID)
	if err != nil {
		return err
	}
	for _, ancestorID := range ancestors {
		if ancestorID == id {
			return domainError(http.StatusBadRequest, "cycle_detected",
				"Moving the node under this parent would create a cycle", nil)
		}
	}
	return nil
}

// invalidate bumps the cache version after any node mutation.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Bump(ctx)
	}
}

func depthKey(rc render.Context) string {
	if rc.Depth == nil {
		return "default"
	}
	return strconv.Itoa(*rc.Depth)
}

// mapStoreConflict converts store constraint sentinels into conflict
// responses; anything else passes through as an internal error.
func mapStoreConflict(err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicateContent):
		return domainError(http.StatusBadRequest, "duplicate_content",
			"An active node with this content already exists at this level", nil)
	case errors.Is(err, store.ErrDuplicateSudo):
		return domainError(http.StatusBadRequest, "sudo_exists", "A SUDO user already exists", nil)
	case errors.Is(err, store.ErrDuplicateUser):
		return domainError(http.StatusConflict, "duplicate_user", "Username or email already taken", nil)
	default:
		return err
	}
}
