package repository

import (
	"context"

	"github.com/akinalp/voxi/models"
)

// SessionRepository, JWT refresh token oturumları için interface.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired, süresi geçmiş oturumları temizler.
	// Uygulama açılışında bir kez çağrılır — ayrı bir janitor cron'u yoktur.
	DeleteExpired(ctx context.Context) error
}
