// Package handlers — ServerHandler: sunucu ayarları HTTP endpoint'leri.
//
// Thin handler prensibi: Parse → Service → Response.
// AFK ayarı okuma üyelere açık, güncelleme PermManageServer gerektirir —
// iki kontrol de service katmanındadır.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/voxi/models"
	"github.com/akinalp/voxi/pkg"
	"github.com/akinalp/voxi/services"
)

// ServerHandler, sunucu ayarları endpoint'lerini yönetir.
type ServerHandler struct {
	serverService services.ServerService
}

// NewServerHandler, constructor.
func NewServerHandler(serverService services.ServerService) *ServerHandler {
	return &ServerHandler{serverService: serverService}
}

// GetAfkConfig godoc
// GET /api/servers/{serverId}/afk
func (h *ServerHandler) GetAfkConfig(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	cfg, err := h.serverService.GetAfkConfig(r.Context(), r.PathValue("serverId"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, cfg)
}

// UpdateAfkConfig godoc
// PATCH /api/servers/{serverId}/afk
// Body: { "afk_channel_id": "...", "afk_timeout_seconds": 300 }
// Alanlar opsiyoneldir; afk_channel_id boş string → taşıma kapatılır.
func (h *ServerHandler) UpdateAfkConfig(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.UpdateAfkConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := h.serverService.UpdateAfkConfig(r.Context(), r.PathValue("serverId"), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, cfg)
}
