package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for constraint violations the service layer turns into
// conflict responses. Derived from the unique indexes in db/migrations.
var (
	ErrDuplicateContent = errors.New("active sibling with same content exists")
	ErrDuplicateSudo    = errors.New("a SUDO user already exists")
	ErrDuplicateUser    = errors.New("username or email already taken")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const nodeColumns = `id, content, parent_id, created_by, updated_by, created_at, updated_at, is_deleted, deleted_at`

func scanNode(row interface{ Scan(...any) error }) (Node, error) {
	var n Node
	err := row.Scan(&n.ID, &n.Content, &n.ParentID, &n.CreatedBy, &n.UpdatedBy,
		&n.CreatedAt, &n.UpdatedAt, &n.IsDeleted, &n.DeletedAt)
	return n, err
}

// ListRootNodes returns active nodes without a parent, newest first.
func (s *PostgresStore) ListRootNodes(ctx context.Context) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE parent_id IS NULL AND NOT is_deleted
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list root nodes: %w", err)
	}
	defer rows.Close()

	items := make([]Node, 0)
	for rows.Next() {
		item, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return items, nil
}

// ListActiveChildren returns the non-deleted children of a node, newest first.
func (s *PostgresStore) ListActiveChildren(ctx context.Context, parentID int64) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE parent_id = $1 AND NOT is_deleted
		ORDER BY created_at DESC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	items := make([]Node, 0)
	for rows.Next() {
		item, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return items, nil
}

// GetNode returns an active node by id. Soft-deleted rows are invisible
// here; callers see sql.ErrNoRows for them.
func (s *PostgresStore) GetNode(ctx context.Context, id int64) (Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE id = $1 AND NOT is_deleted
	`, id)
	return scanNode(row)
}

func (s *PostgresStore) InsertNode(ctx context.Context, item Node) (Node, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO nodes (content, parent_id, created_by, updated_by)
		VALUES ($1, $2, $3, $3)
		RETURNING `+nodeColumns+`
	`, item.Content, item.ParentID, item.CreatedBy)
	created, err := scanNode(row)
	if err != nil {
		return Node{}, fmt.Errorf("insert node: %w", mapConstraint(err))
	}
	return created, nil
}

func (s *PostgresStore) UpdateNode(ctx context.Context, item Node) (Node, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE nodes
		SET content = $2, parent_id = $3, updated_by = $4, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+nodeColumns+`
	`, item.ID, item.Content, item.ParentID, item.UpdatedBy)
	updated, err := scanNode(row)
	if err != nil {
		return Node{}, fmt.Errorf("update node: %w", mapConstraint(err))
	}
	return updated, nil
}

// SoftDeleteNode flips is_deleted exactly once. The child guard runs in the
// same statement so two concurrent deletes of parent and child cannot both
// succeed against a stale count.
func (s *PostgresStore) SoftDeleteNode(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE nodes
		SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
			AND NOT EXISTS (
				SELECT 1 FROM nodes c WHERE c.parent_id = nodes.id AND NOT c.is_deleted
			)
	`, id)
	if err != nil {
		return false, fmt.Errorf("soft delete node: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete node result: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) ActiveChildCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM nodes WHERE parent_id = $1 AND NOT is_deleted
	`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return count, nil
}

// ActiveSiblingContentExists reports whether an active node other than
// excludeID already uses content (case-insensitively) under parentID.
func (s *PostgresStore) ActiveSiblingContentExists(ctx context.Context, parentID *int64, content string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM nodes
			WHERE COALESCE(parent_id, 0) = COALESCE($1, 0)
				AND LOWER(content) = LOWER($2)
				AND NOT is_deleted
				AND id <> $3
		)
	`, parentID, content, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check sibling content: %w", err)
	}
	return exists, nil
}

// AncestorIDs walks the parent chain upward from id, nearest first. The
// traversal is capped so a cycle already present in the data cannot hang
// the query.
func (s *PostgresStore) AncestorIDs(ctx context.Context, id int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE ancestors AS (
			SELECT id, parent_id, 1 AS hops FROM nodes WHERE id = $1
			UNION ALL
			SELECT n.id, n.parent_id, a.hops + 1
			FROM nodes n
			JOIN ancestors a ON n.id = a.parent_id
			WHERE a.hops < 100
		)
		SELECT id FROM ancestors WHERE id <> $1 ORDER BY hops
	`, id)
	if err != nil {
		return nil, fmt.Errorf("ancestor chain: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var ancestorID int64
		if err := rows.Scan(&ancestorID); err != nil {
			return nil, fmt.Errorf("scan ancestor: %w", err)
		}
		ids = append(ids, ancestorID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ancestors: %w", err)
	}
	return ids, nil
}

// ListNodesCreatedBy returns the active nodes a user created, newest first.
func (s *PostgresStore) ListNodesCreatedBy(ctx context.Context, userID int64) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE created_by = $1 AND NOT is_deleted
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list nodes by creator: %w", err)
	}
	defer rows.Close()

	items := make([]Node, 0)
	for rows.Next() {
		item, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ActiveNodeCountByCreator(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM nodes WHERE created_by = $1 AND NOT is_deleted
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count nodes by creator: %w", err)
	}
	return count, nil
}

const userColumns = `id, username, email, password_hash, role, is_email_confirmed, is_active, is_deleted, deleted_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.IsEmailConfirmed, &u.IsActive, &u.IsDeleted, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetUserByID returns a user regardless of deletion state; callers decide
// whether a deleted account is visible for their operation.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByLogin resolves a username-or-email identifier, case-insensitively.
func (s *PostgresStore) GetUserByLogin(ctx context.Context, identifier string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
		LIMIT 1
	`, strings.TrimSpace(identifier))
	return scanUser(row)
}

func (s *PostgresStore) CreateUser(ctx context.Context, item User) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, role, is_email_confirmed, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns+`
	`, item.Username, item.Email, item.PasswordHash, item.Role, item.IsEmailConfirmed, item.IsActive)
	created, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", mapConstraint(err))
	}
	return created, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, item User) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET username = $2, email = $3, role = $4, is_email_confirmed = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+userColumns+`
	`, item.ID, item.Username, item.Email, item.Role, item.IsEmailConfirmed, item.IsActive)
	updated, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", mapConstraint(err))
	}
	return updated, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1 AND NOT is_deleted
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SoftDeleteUser marks the account deleted and inactive so it can no
// longer authenticate.
func (s *PostgresStore) SoftDeleteUser(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_deleted = TRUE, is_active = FALSE, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`, id)
	if err != nil {
		return false, fmt.Errorf("soft delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete user result: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) SudoExists(ctx context.Context, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE role = 'SUDO' AND id <> $1)
	`, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check sudo exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE NOT is_deleted`
	args := make([]any, 0, 4)

	if filter.Role != "" {
		args = append(args, filter.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if filter.ExcludeRole != "" {
		args = append(args, filter.ExcludeRole)
		query += fmt.Sprintf(" AND role <> $%d", len(args))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	if filter.Query != "" {
		args = append(args, "%"+strings.ToLower(filter.Query)+"%")
		query += fmt.Sprintf(" AND (LOWER(username) LIKE $%d OR LOWER(email) LIKE $%d)", len(args), len(args))
	}
	if filter.OnlyID != 0 {
		args = append(args, filter.OnlyID)
		query += fmt.Sprintf(" AND id = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		item, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

// mapConstraint turns postgres unique violations into the store's sentinel
// errors so the service layer can answer with a conflict instead of a 500.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "nodes_active_sibling_content":
		return ErrDuplicateContent
	case "users_single_sudo":
		return ErrDuplicateSudo
	case "users_username_key", "users_email_key":
		return ErrDuplicateUser
	default:
		return err
	}
}
