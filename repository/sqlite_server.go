// Package repository — ServerRepository'nin SQLite implementasyonu.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/voxi/database"
	"github.com/akinalp/voxi/models"
	"github.com/akinalp/voxi/pkg"
)

type sqliteServerRepo struct {
	db database.TxQuerier
}

// NewSQLiteServerRepo, constructor.
func NewSQLiteServerRepo(db database.TxQuerier) ServerRepository {
	return &sqliteServerRepo{db: db}
}

func (r *sqliteServerRepo) GetByID(ctx context.Context, serverID string) (*models.Server, error) {
	query := `
		SELECT id, name, owner_id, afk_channel_id, afk_timeout_seconds, created_at
		FROM servers WHERE id = ?`

	s := &models.Server{}
	err := r.db.QueryRowContext(ctx, query, serverID).Scan(
		&s.ID, &s.Name, &s.OwnerID,
		&s.AfkChannelID, &s.AfkTimeoutSeconds, &s.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}

	return s, nil
}

func (r *sqliteServerRepo) IsMember(ctx context.Context, serverID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM server_members WHERE server_id = ? AND user_id = ?`,
		serverID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteServerRepo) UpdateAfkConfig(ctx context.Context, serverID string, afkChannelID *string, timeoutSeconds int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE servers SET afk_channel_id = ?, afk_timeout_seconds = ? WHERE id = ?`,
		afkChannelID, timeoutSeconds, serverID,
	)
	if err != nil {
		return fmt.Errorf("failed to update afk config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}

	return nil
}
