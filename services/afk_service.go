// Package services — AFK (away from keyboard) takibi.
//
// AfkService, ses kanalındaki kullanıcıların son aktivite zamanını tutar
// ve periyodik sweep ile idle kalanları sunucunun AFK kanalına taşır
// (AFK kanalı tanımlı değilse yerinde mute eder).
//
// Aktivite sayılan sinyaller: kanala katılma, medya produce etme,
// unmute olma. Heartbeat aktivite SAYILMAZ — açık bırakılmış sekme
// heartbeat atmaya devam eder, kullanıcı yine de AFK'dır.
//
// Sunucu başına AFK ayarı DB'de yaşar ama her sweep'te DB'ye gitmemek
// için TTL cache arkasından okunur. Ayar değişince cache Invalidate
// edilir — en geç bir TTL sonra herkes yeni ayarı görür.
package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/akinalp/voxi/models"
	"github.com/akinalp/voxi/pkg/cache"
)

// ServerGetter, sunucu kaydı okumak için minimal interface.
// repository.ServerRepository bu interface'i otomatik karşılar.
type ServerGetter interface {
	GetByID(ctx context.Context, id string) (*models.Server, error)
}

// VoiceRelocator, idle kullanıcıyı taşımak için minimal interface.
// RTCService bu interface'i karşılar — AfkService, RTCService'in
// tamamına değil sadece bu iki operasyona bağımlıdır (circular
// dependency'yi SetRelocator ile geç bağlama kırar).
type VoiceRelocator interface {
	// Relocate, kullanıcının medyasını kapatır ve onu hedef kanala taşır.
	Relocate(userID, targetChannelID, reason string) error
	// ForceMuteInPlace, kullanıcıyı bulunduğu kanalda mute intent'ine çeker.
	ForceMuteInPlace(userID, reason string)
}

// AfkService, AFK takip interface'i.
type AfkService interface {
	// Touch, kullanıcının aktivite zamanını şimdiye çeker.
	Touch(userID string)

	// Forget, kullanıcıyı takipten çıkarır (voice'tan ayrılınca).
	Forget(userID string)

	// Invalidate, bir sunucunun cache'lenmiş AFK ayarını düşürür.
	Invalidate(serverID string)

	// SetRelocator, taşıma bağımlılığını geç bağlar. Start'tan önce
	// çağrılmalıdır.
	SetRelocator(r VoiceRelocator)

	// Sweep, tek bir idle taraması yapar. Start'ın periyodik olarak
	// çağırdığı şeydir; testler doğrudan çağırır.
	Sweep(ctx context.Context)

	// Start, periyodik sweep goroutine'ini başlatır.
	Start()

	// Stop, sweep'i ve cache janitor'ını durdurur.
	Stop()
}

// afkConfigTTL: AFK ayarının cache'te kalma süresi.
const afkConfigTTL = 30 * time.Second

// afkService, AfkService interface'inin implementasyonu.
type afkService struct {
	mu         sync.Mutex
	lastActive map[string]time.Time // userID → son aktivite

	servers   ServerGetter
	voice     VoiceService
	relocator VoiceRelocator

	configs *cache.TTLCache[string, models.AfkConfig]

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once

	// now, test'lerde sahte saat enjekte edilebilsin diye field'dır.
	now func() time.Time
}

// NewAfkService, constructor. Relocator SetRelocator ile sonradan bağlanır.
func NewAfkService(servers ServerGetter, voice VoiceService, sweepIntervalSeconds int) AfkService {
	return &afkService{
		lastActive:    make(map[string]time.Time),
		servers:       servers,
		voice:         voice,
		configs:       cache.New[string, models.AfkConfig](afkConfigTTL, 5*time.Minute),
		sweepInterval: time.Duration(sweepIntervalSeconds) * time.Second,
		stop:          make(chan struct{}),
		now:           time.Now,
	}
}

func (s *afkService) Touch(userID string) {
	s.mu.Lock()
	s.lastActive[userID] = s.now()
	s.mu.Unlock()
}

func (s *afkService) Forget(userID string) {
	s.mu.Lock()
	delete(s.lastActive, userID)
	s.mu.Unlock()
}

func (s *afkService) Invalidate(serverID string) {
	s.configs.Delete(serverID)
}

func (s *afkService) SetRelocator(r VoiceRelocator) {
	s.relocator = r
}

func (s *afkService) Start() {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stop:
				return
			}
		}
	}()
	log.Printf("[afk] sweep started (interval: %s)", s.sweepInterval)
}

func (s *afkService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.configs.Close()
	})
}

// Sweep, tüm aktif voice state'leri idle kontrolünden geçirir.
//
// Taşıma/mute kararı lock DIŞINDA uygulanır — Relocate kendi içinde
// registry ve presence lock'ları alır, onları afk lock'u altında
// çağırmak lock ordering'i karıştırırdı.
func (s *afkService) Sweep(ctx context.Context) {
	states := s.voice.GetAllStates()
	now := s.now()

	type action struct {
		userID       string
		afkChannelID string // boşsa yerinde mute
	}
	var actions []action

	s.mu.Lock()
	for _, state := range states {
		cfg, err := s.afkConfig(ctx, state.ServerID)
		if err != nil {
			log.Printf("[afk] failed to load config for server %s: %v", state.ServerID, err)
			continue
		}
		if cfg.AfkTimeoutSeconds <= 0 {
			continue // Bu sunucuda AFK takibi kapalı
		}
		// AFK kanalındaki kullanıcı zaten park edilmiş — tekrar işlem yok
		if cfg.AfkChannelID != "" && state.ChannelID == cfg.AfkChannelID {
			continue
		}

		last, ok := s.lastActive[state.UserID]
		if !ok {
			// İlk kez görülüyor (ör. restart sonrası) — saymaya şimdi başla
			s.lastActive[state.UserID] = now
			continue
		}

		if now.Sub(last) < time.Duration(cfg.AfkTimeoutSeconds)*time.Second {
			continue
		}

		actions = append(actions, action{userID: state.UserID, afkChannelID: cfg.AfkChannelID})
		// Aksiyon tek sefer uygulansın — sayaç sıfırlanır
		s.lastActive[state.UserID] = now
	}
	s.mu.Unlock()

	for _, a := range actions {
		if a.afkChannelID != "" {
			if err := s.relocator.Relocate(a.userID, a.afkChannelID, "afk"); err != nil {
				log.Printf("[afk] failed to move user %s to afk channel: %v", a.userID, err)
				continue
			}
		}
		// Park edilen kullanıcı sessize alınır — taşınmış olsun ya da
		// yerinde kalsın. Taşıma intent'i beraberinde getirmez; mute
		// burada ayrıca uygulanır.
		s.relocator.ForceMuteInPlace(a.userID, "afk")
	}
}

// afkConfig, sunucunun AFK ayarını cache'ten (miss'te DB'den) okur.
// Çağıran afk lock'unu tutuyor olabilir — buradan voice/rtc'ye çıkılmaz.
func (s *afkService) afkConfig(ctx context.Context, serverID string) (models.AfkConfig, error) {
	if cfg, ok := s.configs.Get(serverID); ok {
		return cfg, nil
	}

	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return models.AfkConfig{}, err
	}

	cfg := server.AfkConfigOf()
	s.configs.Set(serverID, cfg)
	return cfg, nil
}
