package models

import "time"

// ChannelType, kanalın türünü temsil eder (text veya voice).
// Go'da enum yerine typed constant kullanılır.
type ChannelType string

const (
	ChannelTypeText  ChannelType = "text"
	ChannelTypeVoice ChannelType = "voice"
)

// Channel, bir sunucu kanalını temsil eder.
// DB'deki "channels" tablosunun Go karşılığı.
// Sinyalleşme katmanı sadece voice kanalları kabul eder; text kanallar
// şemada durur ama bu serviste üzerlerine oturum açılamaz.
type Channel struct {
	ID        string      `json:"id"`
	ServerID  string      `json:"server_id"`
	Name      string      `json:"name"`
	Type      ChannelType `json:"type"`
	Position  int         `json:"position"`
	UserLimit int         `json:"user_limit"` // 0 = sınırsız (sadece voice kanallar için)
	CreatedAt time.Time   `json:"created_at"`
}
