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

// sqliteUserRepo, UserRepository interface'inin SQLite implementasyonu.
//
// Diğer repo'lardan farklı olarak *sql.DB tutar (TxQuerier değil) —
// CreateWithMembership kendi transaction'ını açar.
type sqliteUserRepo struct {
	db *sql.DB
}

// NewSQLiteUserRepo, constructor fonksiyonu.
// UserRepository interface'i döner (concrete struct değil) — Dependency Inversion.
func NewSQLiteUserRepo(db *sql.DB) UserRepository {
	return &sqliteUserRepo{db: db}
}

func (r *sqliteUserRepo) CreateWithMembership(ctx context.Context, user *models.User, serverID, roleID string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO users (id, username, password_hash)
			VALUES (lower(hex(randomblob(8))), ?, ?)
			RETURNING id, created_at`

		err := tx.QueryRowContext(ctx, query,
			user.Username,
			user.PasswordHash,
		).Scan(&user.ID, &user.CreatedAt)

		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: username already taken", pkg.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO server_members (server_id, user_id) VALUES (?, ?)`,
			serverID, user.ID,
		); err != nil {
			return fmt.Errorf("failed to add server membership: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`,
			user.ID, roleID,
		); err != nil {
			return fmt.Errorf("failed to assign default role: %w", err)
		}

		return nil
	})
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users WHERE id = ?`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

func (r *sqliteUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users WHERE username = ?`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return user, nil
}

// isUniqueViolation, SQLite UNIQUE constraint hatasını kontrol eder.
func isUniqueViolation(err error) bool {
	return err != nil && !errors.Is(err, sql.ErrNoRows) &&
		containsString(err.Error(), "UNIQUE constraint failed")
}

func containsString(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
