package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const permissionColumns = `id, key, description, module, category, is_active, created_at, updated_at`

// Repository is the PostgreSQL Store plus the administrative writes behind
// Service.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindPermissionByKey returns the active permission with exactly key.
func (r *Repository) FindPermissionByKey(ctx context.Context, key string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE key = $1 AND is_active`, key)
	return scanPermission(row)
}

// ListGrantedPermissionKeys returns the sorted keys of active permissions
// granted to an active actor.
func (r *Repository) ListGrantedPermissionKeys(ctx context.Context, actorID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.key
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		JOIN users u ON u.id = up.user_id
		WHERE up.user_id = $1 AND p.is_active AND u.is_active
		ORDER BY p.key`, actorID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list granted keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("rbac: scan granted keys: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// HasGrant reports whether an active actor holds the active permission key.
func (r *Repository) HasGrant(ctx context.Context, actorID uuid.UUID, key string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_permissions up
			JOIN permissions p ON p.id = up.permission_id
			JOIN users u ON u.id = up.user_id
			WHERE up.user_id = $1 AND p.key = $2 AND p.is_active AND u.is_active
		)`, actorID, key).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("rbac: has grant: %w", err)
	}
	return ok, nil
}

// ListPermissions returns every permission, active or not, ordered by module
// then key. An empty module returns all modules.
func (r *Repository) ListPermissions(ctx context.Context, module string) ([]Permission, error) {
	var filter pgtype.Text
	if m := strings.TrimSpace(module); m != "" {
		filter = pgtype.Text{String: m, Valid: true}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+permissionColumns+`
		FROM permissions
		WHERE ($1::text IS NULL OR module = $1)
		ORDER BY module, key`, filter)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: iterate permissions: %w", err)
	}
	return perms, nil
}

// GetPermission fetches a permission by ID regardless of status.
func (r *Repository) GetPermission(ctx context.Context, id uuid.UUID) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	return scanPermission(row)
}

// GetPermissionByKey fetches a permission by key regardless of status.
func (r *Repository) GetPermissionByKey(ctx context.Context, key string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE key = $1`, key)
	return scanPermission(row)
}

// CreatePermission inserts an active permission.
func (r *Repository) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (id, key, description, module, category, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING `+permissionColumns,
		uuid.New(), in.Key, in.Description, in.Module, nullableText(in.Category))
	return scanPermission(row)
}

// UpdatePermission applies patch to the permission.
func (r *Repository) UpdatePermission(ctx context.Context, id uuid.UUID, patch PermissionPatch) (Permission, error) {
	var category pgtype.Text
	clearCategory := false
	if patch.Category != nil {
		category = nullableText(*patch.Category)
		clearCategory = !category.Valid
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE permissions SET
			key = COALESCE($2, key),
			description = COALESCE($3, description),
			module = COALESCE($4, module),
			category = CASE WHEN $6 THEN NULL ELSE COALESCE($5, category) END,
			is_active = COALESCE($7, is_active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+permissionColumns,
		id, patch.Key, patch.Description, patch.Module, category, clearCategory, patch.Active)
	return scanPermission(row)
}

// SetPermissionActive toggles the permission's active flag.
func (r *Repository) SetPermissionActive(ctx context.Context, id uuid.UUID, active bool) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE permissions SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+permissionColumns, id, active)
	return scanPermission(row)
}

// GrantPermission links the permission to the user. It reports whether a new
// grant was created; an existing grant is left untouched.
func (r *Repository) GrantPermission(ctx context.Context, userID, permissionID uuid.UUID, grantedBy *uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_permissions (user_id, permission_id, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, permission_id) DO NOTHING`,
		userID, permissionID, grantedBy)
	if err != nil {
		return false, mapWriteError("grant permission", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RevokePermission deletes the grant and reports whether one existed.
func (r *Repository) RevokePermission(ctx context.Context, userID, permissionID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	if err != nil {
		return false, fmt.Errorf("rbac: revoke permission: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListUserGrants returns the user's grants with permission detail, active or
// not, ordered by key. An unknown user is ErrNotFound.
func (r *Repository) ListUserGrants(ctx context.Context, userID uuid.UUID) ([]UserGrant, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("rbac: lookup user: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.key, p.description, p.module, p.category, p.is_active, p.created_at, p.updated_at,
		       up.granted_at, up.granted_by
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1
		ORDER BY p.key`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list user grants: %w", err)
	}
	defer rows.Close()
	grants := make([]UserGrant, 0)
	for rows.Next() {
		var (
			g         UserGrant
			category  pgtype.Text
			grantedBy pgtype.UUID
		)
		if err := rows.Scan(&g.Permission.ID, &g.Permission.Key, &g.Permission.Description, &g.Permission.Module,
			&category, &g.Permission.Active, &g.Permission.CreatedAt, &g.Permission.UpdatedAt,
			&g.GrantedAt, &grantedBy); err != nil {
			return nil, fmt.Errorf("rbac: scan user grant: %w", err)
		}
		g.Permission.Category = category.String
		if grantedBy.Valid {
			id := uuid.UUID(grantedBy.Bytes)
			g.GrantedBy = &id
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: iterate user grants: %w", err)
	}
	return grants, nil
}

func scanPermission(row pgx.Row) (Permission, error) {
	var (
		p        Permission
		category pgtype.Text
	)
	err := row.Scan(&p.ID, &p.Key, &p.Description, &p.Module, &category, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, mapWriteError("scan permission", err)
	}
	p.Category = category.String
	return p, nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicateKey
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	return fmt.Errorf("rbac: %s: %w", op, err)
}

func nullableText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
