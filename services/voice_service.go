// Package services — voice presence (kim hangi kanalda, hangi durumda).
//
// VoiceService sorumluluları:
// 1. In-memory voice state yönetimi (kanal, mute/deafen, kamera/ekran)
// 2. State değişikliklerini WS Hub üzerinden broadcast etme
//
// Neden in-memory (DB değil)?
// Voice state geçicidir — sunucu yeniden başlatıldığında tüm WS
// bağlantıları da düşer. DB'ye yazmak gereksiz I/O olur.
// sync.RWMutex ile concurrent erişim güvenliği sağlanır.
//
// İki kavram tek struct'ta yaşar ama asla karışmaz:
//   - intent (IsMuted/IsDeafened): kullanıcı NE İSTİYOR. SetIntent ile
//     değişir, medya akışına dokunmaz.
//   - activity (CameraOn/ScreenSharing): kullanıcı NE YAPIYOR. Açık
//     producer slot'larından türetilir, SyncMediaActivity ile senkronlanır.
package services

import (
	"log"
	"sync"

	"github.com/akinalp/voxi/models"
	"github.com/akinalp/voxi/ws"
)

// VoiceService, ses kanalı presence operasyonları için iş mantığı interface'i.
type VoiceService interface {
	// JoinChannel, kullanıcıyı ses kanalına kaydeder ve broadcast eder.
	// Kullanıcı başka bir kanalda ise önceki state düşürülür ve leave
	// broadcast'i atılır — tek kanal invariant'ı burada korunur.
	// Intent bayrakları kanal geçişlerinde SIFIRLANMAZ, taşınır.
	JoinChannel(userID, username, channelID, serverID string)

	// LeaveChannel, kullanıcıyı mevcut kanalından çıkarır ve düşen
	// state'i döner (nil = kanalda değildi).
	LeaveChannel(userID string) *models.VoiceState

	// SetIntent, mute/deafen bayraklarını günceller (partial — nil alan
	// değişmez). Değişiklik yoksa broadcast atılmaz.
	SetIntent(userID string, isMuted, isDeafened *bool) *models.VoiceState

	// SyncMediaActivity, kamera/ekran bayraklarını açık producer
	// slot'larına göre günceller ve değiştiyse broadcast eder.
	SyncMediaActivity(userID string, cameraOn, screenSharing bool)

	// GetChannelParticipants, bir kanaldaki tüm kullanıcıları döner.
	GetChannelParticipants(channelID string) []models.VoiceState

	// GetUserState, kullanıcının anlık durumu (nil = kanalda değil).
	GetUserState(userID string) *models.VoiceState

	// GetAllStates, tüm aktif state'leri döner (snapshot/sync için).
	GetAllStates() []models.VoiceState
}

// voiceService, VoiceService interface'inin concrete implementasyonu.
// Küçük harf ile başlar — package dışından erişilemez (encapsulation).
type voiceService struct {
	// In-memory state: userID → VoiceState
	// Neden userID key? Bir kullanıcı aynı anda tek bir ses kanalında olabilir.
	states map[string]*models.VoiceState

	// RLock: birden fazla okuyucu aynı anda (GetChannelParticipants gibi).
	// Lock: yazma sırasında tüm erişim bloklanır (JoinChannel gibi).
	mu sync.RWMutex

	hub ws.EventPublisher
}

// NewVoiceService, yeni bir VoiceService oluşturur.
func NewVoiceService(hub ws.EventPublisher) VoiceService {
	return &voiceService{
		states: make(map[string]*models.VoiceState),
		hub:    hub,
	}
}

// ─── Channel Join/Leave ───

func (s *voiceService) JoinChannel(userID, username, channelID, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Intent kanal geçişinde taşınır — "mute'luyken kanal değiştirdim,
	// yeni kanalda hâlâ mute'um" beklentisi.
	wasMuted, wasDeafened := false, false

	if existing, ok := s.states[userID]; ok {
		wasMuted, wasDeafened = existing.IsMuted, existing.IsDeafened
		oldChannelID := existing.ChannelID
		delete(s.states, userID)

		if oldChannelID != channelID {
			s.hub.BroadcastToAll(ws.Event{
				Op: ws.OpVoiceStateUpdate,
				Data: ws.VoiceStateUpdateBroadcast{
					UserID:    userID,
					Username:  username,
					ChannelID: oldChannelID,
					ServerID:  existing.ServerID,
					Action:    "leave",
				},
			})
		}
	}

	state := &models.VoiceState{
		UserID:     userID,
		Username:   username,
		ChannelID:  channelID,
		ServerID:   serverID,
		IsMuted:    wasMuted,
		IsDeafened: wasDeafened,
	}
	s.states[userID] = state

	s.hub.BroadcastToAll(ws.Event{
		Op:   ws.OpVoiceStateUpdate,
		Data: broadcastOf(state, "join"),
	})

	log.Printf("[voice] user %s joined channel %s", userID, channelID)
}

func (s *voiceService) LeaveChannel(userID string) *models.VoiceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[userID]
	if !ok {
		return nil // Kanalda değil — hata değil, sessizce geç
	}

	removed := *state
	delete(s.states, userID)

	s.hub.BroadcastToAll(ws.Event{
		Op:   ws.OpVoiceStateUpdate,
		Data: broadcastOf(&removed, "leave"),
	})

	log.Printf("[voice] user %s left channel %s", userID, removed.ChannelID)
	return &removed
}

// ─── State Update ───

func (s *voiceService) SetIntent(userID string, isMuted, isDeafened *bool) *models.VoiceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[userID]
	if !ok {
		return nil // Kanalda değil — sessizce geç
	}

	changed := false
	if isMuted != nil && state.IsMuted != *isMuted {
		state.IsMuted = *isMuted
		changed = true
	}
	if isDeafened != nil && state.IsDeafened != *isDeafened {
		state.IsDeafened = *isDeafened
		changed = true
	}

	if changed {
		s.hub.BroadcastToAll(ws.Event{
			Op:   ws.OpVoiceStateUpdate,
			Data: broadcastOf(state, "update"),
		})
	}

	result := *state
	return &result
}

func (s *voiceService) SyncMediaActivity(userID string, cameraOn, screenSharing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[userID]
	if !ok {
		return
	}

	if state.CameraOn == cameraOn && state.ScreenSharing == screenSharing {
		return
	}

	state.CameraOn = cameraOn
	state.ScreenSharing = screenSharing

	s.hub.BroadcastToAll(ws.Event{
		Op:   ws.OpVoiceStateUpdate,
		Data: broadcastOf(state, "update"),
	})
}

// ─── Query Methods ───

func (s *voiceService) GetChannelParticipants(channelID string) []models.VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var participants []models.VoiceState
	for _, state := range s.states {
		if state.ChannelID == channelID {
			participants = append(participants, *state)
		}
	}
	return participants
}

func (s *voiceService) GetUserState(userID string) *models.VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if state, ok := s.states[userID]; ok {
		copy := *state
		return &copy
	}
	return nil
}

func (s *voiceService) GetAllStates() []models.VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]models.VoiceState, 0, len(s.states))
	for _, state := range s.states {
		states = append(states, *state)
	}
	return states
}

// broadcastOf, VoiceState'ten broadcast payload'ı üretir.
func broadcastOf(state *models.VoiceState, action string) ws.VoiceStateUpdateBroadcast {
	return ws.VoiceStateUpdateBroadcast{
		UserID:        state.UserID,
		Username:      state.Username,
		ChannelID:     state.ChannelID,
		ServerID:      state.ServerID,
		IsMuted:       state.IsMuted,
		IsDeafened:    state.IsDeafened,
		CameraOn:      state.CameraOn,
		ScreenSharing: state.ScreenSharing,
		Action:        action,
	}
}
