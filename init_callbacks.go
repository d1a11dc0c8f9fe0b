// Package main — Hub callback bağlantıları.
//
// ws.Hub, services paketine bağımlı olamaz (circular dependency).
// Bunun yerine callback setter'ları sunar; burada RTCService'in ilgili
// metodlarını bu setter'lara bağlarız. Hub sadece "şu kullanıcıdan şu
// istek geldi" der, iş mantığının tamamı service katmanında kalır.
package main

import (
	"github.com/akinalp/voxi/services"
	"github.com/akinalp/voxi/ws"
)

// registerHubCallbacks, hub olaylarını RTCService'e bağlar.
func registerHubCallbacks(hub *ws.Hub, rtcService services.RTCService) {
	// rtc_* istekleri: join, transport, produce, consume, resync...
	// Yanıt senkron döner, hub onu RTCResult zarfına sarar.
	hub.OnRTCRequest(rtcService.HandleRTC)

	// Mute/deafen toggle (fire-and-forget, yanıt beklenmez).
	hub.OnVoiceIntent(rtcService.HandleIntent)

	// İlk bağlantıda kullanıcıya tam voice state snapshot'ı gönderilir.
	hub.OnUserFirstConnect(rtcService.SnapshotToUser)

	// Son WS bağlantısı kopunca tüm medya kaynakları temizlenir.
	hub.OnUserFullyDisconnected(rtcService.Leave)

	// Moderasyon: taşıma ve atma.
	hub.OnVoiceMoveUser(rtcService.MoveUser)
	hub.OnVoiceDisconnectUser(rtcService.DisconnectUser)
}
