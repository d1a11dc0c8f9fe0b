// Package repository — ServerRepository interface.
//
// Sunucu verisi için soyutlama. Sunucular seed migration ile oluşturulur;
// bu servis sadece okur ve AFK ayarlarını günceller.
package repository

import (
	"context"

	"github.com/akinalp/voxi/models"
)

// ServerRepository, sunucu veritabanı işlemleri için interface.
type ServerRepository interface {
	GetByID(ctx context.Context, id string) (*models.Server, error)

	// IsMember, kullanıcının sunucu üyesi olup olmadığını söyler.
	// Voice join yetki kontrolünün ilk adımıdır.
	IsMember(ctx context.Context, serverID, userID string) (bool, error)

	// UpdateAfkConfig, AFK kanalını ve timeout'u günceller.
	// afkChannelID nil geçilirse kanal NULL'a çekilir (taşıma kapalı).
	UpdateAfkConfig(ctx context.Context, serverID string, afkChannelID *string, timeoutSeconds int) error
}
