package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palompy/gatekeeper/internal/database"
)

// RoleRepository reads role assignments from user_roles
type RoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *database.DB) *RoleRepository {
	return &RoleRepository{pool: db.Pool}
}

// GetRoles returns every role assigned to userID (empty when none)
func (r *RoleRepository) GetRoles(ctx context.Context, userID int64) ([]string, error) {
	query := `SELECT role FROM user_roles WHERE user_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

// Assign grants role to userID; assigning an existing role is a no-op
func (r *RoleRepository) Assign(ctx context.Context, userID int64, role string) error {
	query := `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, userID, role); err != nil {
		return fmt.Errorf("failed to assign role: %w", database.MapPostgresError(err))
	}
	return nil
}
