// Package models, voice (ses) ile ilgili struct tanımlarını içerir.
//
// VoiceState ve türevleri EPHEMERAL'dır (geçicidir) — veritabanına
// yazılmaz, in-memory tutulur. Server restart'ta tüm WebSocket
// bağlantıları düşer, dolayısıyla voice state'in de sıfırlanması doğaldır.
package models

// VoiceState, bir kullanıcının ses kanalındaki anlık durumu.
// İki ayrı kavramı bir arada taşır:
//
//   - intent: IsMuted / IsDeafened — kullanıcının NİYETİ. Mute etmek
//     audio producer'ı kapatmaz, sadece bayrağı çevirir; unmute anında
//     ses kesintisiz devam eder.
//   - activity: CameraOn / ScreenSharing — açık video/ekran
//     producer'larından TÜRETİLİR, istemci doğrudan set edemez.
type VoiceState struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	ChannelID     string `json:"channel_id"`
	ServerID      string `json:"server_id"`
	IsMuted       bool   `json:"is_muted"`
	IsDeafened    bool   `json:"is_deafened"`
	CameraOn      bool   `json:"camera_on"`
	ScreenSharing bool   `json:"screen_sharing"`
}

// AfkConfig, bir sunucunun AFK davranışı. Kalıcıdır (servers tablosu),
// ama her sweep'te DB'ye gitmemek için TTL cache arkasından okunur.
type AfkConfig struct {
	AfkChannelID      string `json:"afk_channel_id"`      // boşsa taşıma yok, yerinde mute
	AfkTimeoutSeconds int    `json:"afk_timeout_seconds"` // 0 = AFK takibi kapalı
}

// UpdateAfkConfigRequest, PATCH /api/servers/{id}/afk body'si.
// Pointer field'lar partial update için — nil gelen alan değişmez.
type UpdateAfkConfigRequest struct {
	AfkChannelID      *string `json:"afk_channel_id"`
	AfkTimeoutSeconds *int    `json:"afk_timeout_seconds"`
}
