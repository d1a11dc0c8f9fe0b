package repository

import (
	"context"

	"github.com/akinalp/voxi/models"
)

// ChannelRepository, kanal veritabanı işlemleri için interface.
// Sinyalleşme katmanı kanalları sadece okur — yaratma/silme bu
// servisin dışındadır.
type ChannelRepository interface {
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	GetByServerID(ctx context.Context, serverID string) ([]models.Channel, error)
}
