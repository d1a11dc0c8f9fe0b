// Package handlers, voice (ses) HTTP endpoint'lerini yönetir.
//
// Sinyalleşmenin kendisi WebSocket üzerinden akar (rtc_* op'ları);
// buradaki endpoint'ler sadece okuma amaçlıdır.
package handlers

import (
	"net/http"

	"github.com/akinalp/voxi/models"
	"github.com/akinalp/voxi/pkg"
	"github.com/akinalp/voxi/services"
)

// VoiceHandler, ses kanalı HTTP endpoint'lerini yönetir.
type VoiceHandler struct {
	voiceService services.VoiceService
}

// NewVoiceHandler, yeni bir VoiceHandler oluşturur.
func NewVoiceHandler(voiceService services.VoiceService) *VoiceHandler {
	return &VoiceHandler{voiceService: voiceService}
}

// VoiceStates, tüm aktif ses durumlarını döner.
// İlk bağlantı veya reconnect sonrası frontend bu endpoint'i çağırarak
// hangi kullanıcıların hangi ses kanallarında olduğunu öğrenir.
//
//	GET /api/voice/states
//	Response: [ { "user_id": "...", "channel_id": "...", ... } ]
func (h *VoiceHandler) VoiceStates(w http.ResponseWriter, r *http.Request) {
	states := h.voiceService.GetAllStates()
	pkg.JSON(w, http.StatusOK, states)
}

// ChannelParticipants, tek bir ses kanalındaki katılımcıları döner.
//
//	GET /api/channels/{channelId}/voice
func (h *VoiceHandler) ChannelParticipants(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channelId")
	participants := h.voiceService.GetChannelParticipants(channelID)
	if participants == nil {
		participants = []models.VoiceState{}
	}
	pkg.JSON(w, http.StatusOK, participants)
}
