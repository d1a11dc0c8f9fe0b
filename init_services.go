// Package main — Service katmanı başlatma.
//
// initServices, tüm service implementasyonlarını oluşturur.
// Her service, ihtiyaç duyduğu repository interface'lerini ve diğer
// dependency'leri constructor injection ile alır.
//
// Sıralama kuralı: AfkService ile RTCService arasında karşılıklı
// bağımlılık vardır (sweep → relocate, produce → touch). AfkService
// önce oluşturulur, RTCService ona bağlanır, sonra SetRelocator ile
// halka kapatılır.
package main

import (
	"time"

	"github.com/akinalp/voxi/config"
	"github.com/akinalp/voxi/pkg/ratelimit"
	"github.com/akinalp/voxi/rtc"
	"github.com/akinalp/voxi/services"
	"github.com/akinalp/voxi/ws"
)

// Services, tüm service instance'larını tutan container struct.
type Services struct {
	Auth   services.AuthService
	Voice  services.VoiceService
	Afk    services.AfkService
	RTC    services.RTCService
	Server services.ServerService
}

// RateLimiters, tüm rate limiter instance'larını tutan container.
type RateLimiters struct {
	Login *ratelimit.LoginRateLimiter
}

// initServices, tüm service'leri ve rate limiter'ları oluşturur.
//
// registry nil olabilir — medya motoru başlatılamamışsa RTCService tüm
// sinyalleşme isteklerini reddeder ama uygulamanın kalanı çalışır.
func initServices(repos *Repositories, hub ws.EventPublisher, registry *rtc.Registry, cfg *config.Config) (*Services, *RateLimiters) {
	authService := services.NewAuthService(
		repos.User,
		repos.Session,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	voiceService := services.NewVoiceService(hub)

	afkService := services.NewAfkService(repos.Server, voiceService, cfg.Voice.AfkSweepIntervalSeconds)

	rtcService := services.NewRTCService(
		registry,
		voiceService,
		afkService,
		hub,
		repos.User,
		repos.Channel,
		repos.Server,
		repos.Role,
	)

	// Halkayı kapat: sweep'in taşıma kararları rtcService üzerinden uygulanır
	afkService.SetRelocator(rtcService)

	serverService := services.NewServerService(repos.Server, repos.Channel, repos.Role, afkService)

	limiters := &RateLimiters{
		Login: ratelimit.NewLoginRateLimiter(5, 15*time.Minute),
	}

	return &Services{
		Auth:   authService,
		Voice:  voiceService,
		Afk:    afkService,
		RTC:    rtcService,
		Server: serverService,
	}, limiters
}
