// Package ws, WebSocket bağlantı yönetimi ve gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Hub: Tüm bağlantıları yöneten merkezi yapı (Observer pattern)
// - Client: Her WebSocket bağlantısını temsil eder
// - Event: Client-server arası iletilen mesaj formatı
//
// Sinyalleşme akışı request/response'tur:
// 1. Client rtc_* isteği gönderir (ref alanıyla)
// 2. ReadPump isteği sırayla işler — aynı bağlantıdan gelen istekler
//    birbirini geçemez
// 3. Sonuç <op>_result event'i olarak aynı ref ile geri döner
// 4. Yan etkiler (producer_added vb.) ayrıca broadcast edilir
package ws

import (
	"encoding/json"

	"github.com/akinalp/voxi/models"
)

// Event, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op (operation): Event türü — "rtc_join", "heartbeat" vb.
// Data: Event'e özgü payload.
// Seq (sequence number): Her outbound broadcast'e verilen artan sayı.
//   Frontend eksik event tespit etmek için seq'i takip eder.
// Ref: Client'ın isteğine verdiği korelasyon ID'si — <op>_result
//   yanıtında aynen geri döner. Broadcast'lerde boş bırakılır.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

// ────────────────────────────────────────────
// Operation sabitleri
// ────────────────────────────────────────────

// Client → Server operasyonları
const (
	OpHeartbeat = "heartbeat" // Client her 30sn'de gönderir — "hâlâ bağlıyım" sinyali

	// Sinyalleşme istekleri. Her biri <op>_result yanıtı üretir.
	OpRTCJoin             = "rtc_join"              // Kanala katıl — rtp capabilities + snapshot döner
	OpRTCLeave            = "rtc_leave"             // Kanaldan ayrıl — tüm medya kapanır
	OpRTCTransportCreate  = "rtc_transport_create"  // Yeni transport — ICE/DTLS parametreleri döner
	OpRTCTransportConnect = "rtc_transport_connect" // DTLS handshake tamamla
	OpRTCProduce          = "rtc_produce"           // Medya göndermeye başla — producer_id döner
	OpRTCProducerClose    = "rtc_producer_close"    // Bir medya slotunu kapat (kamera kapatma)
	OpRTCConsume          = "rtc_consume"           // Bir producer'ı tüketmeye başla (paused)
	OpRTCConsumerResume   = "rtc_consumer_resume"   // Paused consumer'ı akıt
	OpRTCResync           = "rtc_resync"            // Tam snapshot iste (kaçan event telafisi)

	OpVoiceIntent = "voice_intent" // Mute/deafen toggle — producer'lara dokunmaz

	// Moderasyon — yetki kontrolü service katmanında yapılır.
	OpVoiceMoveUser       = "voice_move_user"       // Yetkili: kullanıcıyı başka voice kanala taşı
	OpVoiceDisconnectUser = "voice_disconnect_user" // Yetkili: kullanıcıyı voice'tan at
)

// Server → Client operasyonları
const (
	OpHeartbeatAck = "heartbeat_ack" // Heartbeat'e yanıt — "seni duydum"

	// Sinyalleşme yan etkileri — kanaldaki herkese broadcast edilir.
	OpProducerAdded   = "producer_added"   // Bir katılımcı medya göndermeye başladı
	OpProducerRemoved = "producer_removed" // Bir katılımcının medyası kapandı
	OpParticipantLeft = "participant_left" // Katılımcı kanaldan ayrıldı

	OpVoiceStateUpdate = "voice_state_update" // Bir kullanıcının ses durumu değişti (join/mute/kamera)
	OpVoiceSnapshot    = "voice_snapshot"     // Tüm ses durumlarının bulk sync'i — periyodik + bağlantı anında

	// Moderasyon ve AFK bildirimleri — sadece hedef kullanıcıya gider.
	OpVoiceForceMove       = "voice_force_move"       // Sen başka kanala taşındın — signaling'i yeni kanalda baştan al
	OpVoiceForceDisconnect = "voice_force_disconnect" // Sen voice'tan atıldın
)

// ────────────────────────────────────────────
// Client → Server payload'ları
// ────────────────────────────────────────────

// RTCJoinData, rtc_join isteğinin payload'ı.
type RTCJoinData struct {
	ChannelID string `json:"channel_id"`
}

// RTCTransportCreateData, rtc_transport_create isteğinin payload'ı.
type RTCTransportCreateData struct {
	ChannelID string `json:"channel_id"`
}

// RTCTransportConnectData, rtc_transport_connect isteğinin payload'ı.
// DtlsParameters opak geçirilir — içeriği medya motoruna aittir.
type RTCTransportConnectData struct {
	TransportID    string          `json:"transport_id"`
	DtlsParameters json.RawMessage `json:"dtls_parameters"`
}

// RTCProduceData, rtc_produce isteğinin payload'ı.
// MediaType: "audio" | "video" | "screen" | "screen_audio".
type RTCProduceData struct {
	ChannelID     string          `json:"channel_id"`
	TransportID   string          `json:"transport_id"`
	MediaType     string          `json:"media_type"`
	RtpParameters json.RawMessage `json:"rtp_parameters"`
}

// RTCProducerCloseData, rtc_producer_close isteğinin payload'ı.
type RTCProducerCloseData struct {
	ChannelID string `json:"channel_id"`
	MediaType string `json:"media_type"`
}

// RTCConsumeData, rtc_consume isteğinin payload'ı.
type RTCConsumeData struct {
	TransportID     string          `json:"transport_id"`
	ProducerID      string          `json:"producer_id"`
	RtpCapabilities json.RawMessage `json:"rtp_capabilities"`
}

// RTCConsumerResumeData, rtc_consumer_resume isteğinin payload'ı.
type RTCConsumerResumeData struct {
	ConsumerID string `json:"consumer_id"`
}

// VoiceIntentData, mute/deafen toggle payload'ı.
// Pointer'lar partial update için — nil gelen alan değişmez.
type VoiceIntentData struct {
	IsMuted    *bool `json:"is_muted"`
	IsDeafened *bool `json:"is_deafened"`
}

// VoiceMoveUserData, moderasyon taşıma isteği.
type VoiceMoveUserData struct {
	TargetUserID    string `json:"target_user_id"`
	TargetChannelID string `json:"target_channel_id"`
}

// VoiceDisconnectUserData, moderasyon atma isteği.
type VoiceDisconnectUserData struct {
	TargetUserID string `json:"target_user_id"`
}

// ────────────────────────────────────────────
// Server → Client payload'ları
// ────────────────────────────────────────────

// RTCResult, her rtc_* isteğinin yanıt zarfı.
// OK false ise Error insan okunur mesaj, Code makine okunur sabittir
// (ör. "TRANSPORT_NOT_FOUND") — client retry kararını Code'a göre verir.
type RTCResult struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"d,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// ProducerEventData, producer_added / producer_removed payload'ı.
type ProducerEventData struct {
	ChannelID  string `json:"channel_id"`
	ProducerID string `json:"producer_id"`
	UserID     string `json:"user_id"`
	MediaType  string `json:"media_type"`
}

// ParticipantLeftData, participant_left payload'ı.
type ParticipantLeftData struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

// VoiceStateUpdateBroadcast, voice_state_update payload'ı.
// Action: "join" | "leave" | "update".
type VoiceStateUpdateBroadcast struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	ChannelID     string `json:"channel_id"`
	ServerID      string `json:"server_id"`
	IsMuted       bool   `json:"is_muted"`
	IsDeafened    bool   `json:"is_deafened"`
	CameraOn      bool   `json:"camera_on"`
	ScreenSharing bool   `json:"screen_sharing"`
	Action        string `json:"action"`
}

// VoiceSnapshotData, voice_snapshot payload'ı — tüm aktif state'lerin
// otoriter listesi. Client kendi görünümünü bununla DEĞİŞTİRİR (merge etmez);
// kaçırılmış tekil event'ler böylece kendiliğinden telafi olur.
type VoiceSnapshotData struct {
	States []models.VoiceState `json:"states"`
}

// ForceMoveData, voice_force_move payload'ı.
// Taşınan kullanıcı signaling'i (join → transport → produce) yeni
// kanalda baştan çalıştırır.
type ForceMoveData struct {
	ChannelID string `json:"channel_id"`
	Reason    string `json:"reason,omitempty"` // "afk" | "moderator"
}

// ForceDisconnectData, voice_force_disconnect payload'ı.
type ForceDisconnectData struct {
	Reason string `json:"reason,omitempty"`
}
