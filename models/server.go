// Package models — Server domain modeli.
//
// Server, Discord'daki "guild" benzeri bir sunucuyu temsil eder.
// Üyelik ve roller server scope'undadır; ses kanalları da bir
// server'a bağlıdır.
package models

import "time"

// Server, sunucu verisini temsil eder.
// AFK alanları nullable — AfkChannelID nil ise idle kullanıcı
// taşınmaz, yerinde mute edilir; AfkTimeoutSeconds 0 ise AFK
// takibi bu sunucu için tamamen kapalıdır.
type Server struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	OwnerID           string    `json:"owner_id"`
	AfkChannelID      *string   `json:"afk_channel_id"`
	AfkTimeoutSeconds int       `json:"afk_timeout_seconds"`
	CreatedAt         time.Time `json:"created_at"`
}

// AfkConfigOf, Server kaydından cache'lenebilir AfkConfig üretir.
func (s *Server) AfkConfigOf() AfkConfig {
	cfg := AfkConfig{AfkTimeoutSeconds: s.AfkTimeoutSeconds}
	if s.AfkChannelID != nil {
		cfg.AfkChannelID = *s.AfkChannelID
	}
	return cfg
}
