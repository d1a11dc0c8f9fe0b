package repository

import (
	"context"

	"github.com/akinalp/voxi/models"
)

// RoleRepository, rol veritabanı işlemleri için interface.
type RoleRepository interface {
	// GetUserPermissions, kullanıcının sunucudaki efektif yetkisini döner:
	// default (@everyone) rollerin ve kullanıcıya atanmış rollerin
	// permission bitmask'lerinin OR'u.
	GetUserPermissions(ctx context.Context, serverID, userID string) (models.Permission, error)

	GetByUserID(ctx context.Context, serverID, userID string) ([]models.Role, error)
}
