// Package main — Handler katmanı başlatma.
//
// initHandlers, tüm HTTP ve WebSocket handler'larını oluşturur.
// Handler'lar service interface'lerine bağlıdır, somut tiplere değil.
package main

import (
	"github.com/akinalp/voxi/handlers"
	"github.com/akinalp/voxi/ws"
)

// Handlers, tüm handler instance'larını tutan container struct.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Voice  *handlers.VoiceHandler
	Server *handlers.ServerHandler
	WS     *ws.Handler
}

// initHandlers, tüm handler'ları oluşturur.
func initHandlers(svcs *Services, limiters *RateLimiters, hub *ws.Hub) *Handlers {
	return &Handlers{
		Auth:   handlers.NewAuthHandler(svcs.Auth, limiters.Login),
		Voice:  handlers.NewVoiceHandler(svcs.Voice),
		Server: handlers.NewServerHandler(svcs.Server),
		// ws.Handler, JWT doğrulaması için AuthService'i TokenValidator
		// interface'i üzerinden kullanır (implicit satisfaction).
		WS: ws.NewHandler(hub, svcs.Auth),
	}
}
