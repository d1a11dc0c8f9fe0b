// Package main — HTTP route registration.
//
// initRoutes, tüm API endpoint'lerini mux'a bağlar.
// Voice sinyalleşmesinin asıl trafiği /ws üzerinden akar; buradaki
// REST endpoint'leri kimlik doğrulama, presence sorguları ve AFK
// yapılandırması içindir.
package main

import (
	"net/http"

	"github.com/akinalp/voxi/middleware"
	"github.com/akinalp/voxi/repository"
	"github.com/akinalp/voxi/services"
)

// initRoutes, middleware chain'i kurar ve tüm endpoint'leri mux'a bağlar.
//
// Route sıralama kuralı: Literal path'ler parametrik path'lerden ÖNCE tanımlanmalı,
// yoksa Go router literal kelimeyi bir path parametresi olarak yorumlar.
func initRoutes(
	mux *http.ServeMux,
	h *Handlers,
	authService services.AuthService,
	userRepo repository.UserRepository,
) {
	// ─── Middleware ───
	authMw := middleware.NewAuthMiddleware(authService, userRepo)

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(handler))
	}

	// Auth
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	mux.Handle("POST /api/auth/logout", auth(h.Auth.Logout))

	// User
	mux.Handle("GET /api/users/me", auth(h.Auth.Me))

	// Voice presence
	mux.Handle("GET /api/voice/states", auth(h.Voice.VoiceStates))
	mux.Handle("GET /api/channels/{channelId}/voice", auth(h.Voice.ChannelParticipants))

	// AFK yapılandırması
	mux.Handle("GET /api/servers/{serverId}/afk", auth(h.Server.GetAfkConfig))
	mux.Handle("PATCH /api/servers/{serverId}/afk", auth(h.Server.UpdateAfkConfig))

	// Health
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// WebSocket
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}
