package repository

import (
	"context"
	"fmt"

	"github.com/akinalp/voxi/database"
	"github.com/akinalp/voxi/models"
)

type sqliteRoleRepo struct {
	db database.TxQuerier
}

func NewSQLiteRoleRepo(db database.TxQuerier) RoleRepository {
	return &sqliteRoleRepo{db: db}
}

func (r *sqliteRoleRepo) GetUserPermissions(ctx context.Context, serverID, userID string) (models.Permission, error) {
	// is_default rolleri her üyeye uygulanır; atanmış roller user_roles
	// üzerinden gelir. SQLite'ta aggregate bit-OR olmadığı için rol
	// başına permission çekilip Go tarafında OR'lanır.
	query := `
		SELECT permissions FROM roles
		WHERE server_id = ? AND is_default = 1
		UNION
		SELECT r.permissions FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE r.server_id = ? AND ur.user_id = ?`

	rows, err := r.db.QueryContext(ctx, query, serverID, serverID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user permissions: %w", err)
	}
	defer rows.Close()

	var perms models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p); err != nil {
			return 0, fmt.Errorf("failed to scan permissions: %w", err)
		}
		perms |= p
	}

	return perms, rows.Err()
}

func (r *sqliteRoleRepo) GetByUserID(ctx context.Context, serverID, userID string) ([]models.Role, error) {
	query := `
		SELECT r.id, r.server_id, r.name, r.position, r.permissions, r.is_default, r.created_at
		FROM roles r
		LEFT JOIN user_roles ur ON ur.role_id = r.id
		WHERE r.server_id = ? AND (r.is_default = 1 OR ur.user_id = ?)
		ORDER BY r.position DESC`

	rows, err := r.db.QueryContext(ctx, query, serverID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles by user: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(
			&role.ID, &role.ServerID, &role.Name, &role.Position,
			&role.Permissions, &role.IsDefault, &role.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}
