// Package services — sunucu ayarları (AFK yapılandırması).
package services

import (
	"context"
	"fmt"

	"github.com/akinalp/voxi/models"
	"github.com/akinalp/voxi/pkg"
	"github.com/akinalp/voxi/repository"
)

// maxAfkTimeoutSeconds: 24 saat. Üstü anlamsızdır — o kadar idle
// kullanıcının WS bağlantısı çoktan kopmuştur.
const maxAfkTimeoutSeconds = 86400

// ServerService, sunucu ayarları iş mantığı interface'i.
type ServerService interface {
	// GetAfkConfig, sunucunun AFK ayarını döner. Üyelere açıktır.
	GetAfkConfig(ctx context.Context, serverID, userID string) (*models.AfkConfig, error)

	// UpdateAfkConfig, AFK kanalını/timeout'u günceller (partial).
	// PermManageServer gerektirir; değişiklik AFK cache'ini düşürür.
	UpdateAfkConfig(ctx context.Context, serverID, userID string, req *models.UpdateAfkConfigRequest) (*models.AfkConfig, error)
}

type serverService struct {
	serverRepo  repository.ServerRepository
	channelRepo repository.ChannelRepository
	roleRepo    repository.RoleRepository
	afk         AfkService
}

// NewServerService, constructor.
func NewServerService(
	serverRepo repository.ServerRepository,
	channelRepo repository.ChannelRepository,
	roleRepo repository.RoleRepository,
	afk AfkService,
) ServerService {
	return &serverService{
		serverRepo:  serverRepo,
		channelRepo: channelRepo,
		roleRepo:    roleRepo,
		afk:         afk,
	}
}

func (s *serverService) GetAfkConfig(ctx context.Context, serverID, userID string) (*models.AfkConfig, error) {
	isMember, err := s.serverRepo.IsMember(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, fmt.Errorf("%w: not a member of this server", pkg.ErrForbidden)
	}

	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}

	cfg := server.AfkConfigOf()
	return &cfg, nil
}

func (s *serverService) UpdateAfkConfig(ctx context.Context, serverID, userID string, req *models.UpdateAfkConfigRequest) (*models.AfkConfig, error) {
	perms, err := s.roleRepo.GetUserPermissions(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	if !perms.Has(models.PermManageServer) {
		return nil, fmt.Errorf("%w: missing manage server permission", pkg.ErrForbidden)
	}

	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}

	// Partial update — nil gelen alan mevcut değeri korur.
	afkChannelID := server.AfkChannelID
	timeout := server.AfkTimeoutSeconds

	if req.AfkChannelID != nil {
		if *req.AfkChannelID == "" {
			afkChannelID = nil // Taşıma kapalı — idle kullanıcı yerinde mute edilir
		} else {
			channel, err := s.channelRepo.GetByID(ctx, *req.AfkChannelID)
			if err != nil {
				return nil, err
			}
			if channel.Type != models.ChannelTypeVoice {
				return nil, fmt.Errorf("%w: afk channel must be a voice channel", pkg.ErrBadRequest)
			}
			if channel.ServerID != serverID {
				return nil, fmt.Errorf("%w: afk channel belongs to another server", pkg.ErrBadRequest)
			}
			afkChannelID = req.AfkChannelID
		}
	}

	if req.AfkTimeoutSeconds != nil {
		if *req.AfkTimeoutSeconds < 0 || *req.AfkTimeoutSeconds > maxAfkTimeoutSeconds {
			return nil, fmt.Errorf("%w: afk timeout out of range", pkg.ErrBadRequest)
		}
		timeout = *req.AfkTimeoutSeconds
	}

	if err := s.serverRepo.UpdateAfkConfig(ctx, serverID, afkChannelID, timeout); err != nil {
		return nil, err
	}

	// Sweep bir sonraki turda yeni ayarı görsün
	s.afk.Invalidate(serverID)

	cfg := models.AfkConfig{AfkTimeoutSeconds: timeout}
	if afkChannelID != nil {
		cfg.AfkChannelID = *afkChannelID
	}
	return &cfg, nil
}
