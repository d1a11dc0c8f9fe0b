package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/akinalp/voxi/rtc"
	"github.com/gorilla/websocket"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir mesajı yazmak için maksimum bekleme süresi.
	writeWait = 10 * time.Second

	// pongWait: Client'ın heartbeat göndermesi için beklenen maksimum süre.
	// 3 heartbeat kaçırma = 30s × 3 = 90s.
	pongWait = 90 * time.Second

	// maxMessageSize: Client'ın gönderebileceği maksimum mesaj boyutu (byte).
	// RTP parametre blob'ları birkaç KB olabilir — chat'ten daha geniş limit.
	maxMessageSize = 65536

	// sendBufferSize: Her client'ın send channel'ının buffer boyutu.
	sendBufferSize = 256
)

// Client, tek bir WebSocket bağlantısını temsil eder.
//
// Her bağlantı için iki goroutine oluşturulur:
// - ReadPump: Client'dan gelen mesajları okur → işler
// - WritePump: Hub'dan gelen mesajları client'a yazar
//
// gorilla/websocket aynı anda sadece bir okuma ve bir yazma destekler,
// iki ayrı goroutine ile okuma ve yazma birbirini bloklamaz.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	// send, client'a gönderilecek mesajların buffer'landığı channel.
	send chan []byte
	mu   sync.Mutex // conn.WriteMessage çağrılarını korur
}

// ReadPump, WebSocket bağlantısından gelen mesajları okur ve işler.
//
// Bağlantı kapandığında Hub'dan çıkış yapar — kullanıcının son
// bağlantısıysa bu, ses oturumunun da temizlenmesini tetikler
// (hub.onUserFullyDisconnected).
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for user %s: %v", c.userID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(rawMessage, &event); err != nil {
			log.Printf("[ws] invalid message from user %s: %v", c.userID, err)
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent, client'dan gelen event'leri türüne göre işler.
//
// rtc_* istekleri SENKRON işlenir: aynı bağlantıdan gelen
// transport_create → transport_connect → produce sırası korunmalıdır.
// Client zaten bir isteğin result'ını beklemeden sonrakini göndermez,
// ama göndersе bile burada sıraya girer.
func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		// Heartbeat geldi — deadline'ı yenile ve ack gönder.
		// Heartbeat AFK sayacına DOKUNMAZ: açık bir tab aktivite değildir.
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpRTCJoin, OpRTCLeave, OpRTCTransportCreate, OpRTCTransportConnect,
		OpRTCProduce, OpRTCProducerClose, OpRTCConsume, OpRTCConsumerResume,
		OpRTCResync:
		c.handleRTCRequest(event)

	case OpVoiceIntent:
		c.handleVoiceIntent(event)

	case OpVoiceMoveUser:
		c.handleVoiceMoveUser(event)

	case OpVoiceDisconnectUser:
		c.handleVoiceDisconnectUser(event)

	default:
		log.Printf("[ws] unknown op from user %s: %s", c.userID, event.Op)
	}
}

// handleRTCRequest, tüm sinyalleşme isteklerini ortak akıştan geçirir:
// payload'ı raw JSON'a çevir, callback'e ver, sonucu <op>_result olarak
// aynı ref ile geri gönder.
func (c *Client) handleRTCRequest(event Event) {
	if c.hub.onRTCRequest == nil {
		return
	}

	// event.Data tipi `any` — handler'ın kendi struct'ına parse
	// edebilmesi için raw JSON'a çevrilir.
	raw, err := json.Marshal(event.Data)
	if err != nil {
		log.Printf("[ws] failed to remarshal %s payload from user %s: %v", event.Op, c.userID, err)
		return
	}

	payload, err := c.hub.onRTCRequest(c.userID, event.Op, raw)

	result := RTCResult{OK: err == nil, Data: payload}
	if err != nil {
		result.Error = err.Error()
		result.Code = rtc.ErrorCode(err)
	}

	c.sendEvent(Event{
		Op:   event.Op + "_result",
		Ref:  event.Ref,
		Data: result,
	})
}

// handleVoiceIntent, mute/deafen toggle'ını işler.
// Fire-and-forget'tir — yanıt beklenmez, sonuç voice_state_update
// broadcast'i olarak herkese (istemcinin kendisine de) döner.
func (c *Client) handleVoiceIntent(event Event) {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	var data VoiceIntentData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return
	}

	if c.hub.onVoiceIntent != nil {
		go c.hub.onVoiceIntent(c.userID, data.IsMuted, data.IsDeafened)
	}
}

// handleVoiceMoveUser, moderasyon taşıma isteğini işler.
// Yetki kontrolü callback'in arkasındaki service'te yapılır.
func (c *Client) handleVoiceMoveUser(event Event) {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	var data VoiceMoveUserData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return
	}

	if data.TargetUserID == "" || data.TargetChannelID == "" {
		log.Printf("[ws] voice_move_user missing fields from user %s", c.userID)
		return
	}

	if c.hub.onVoiceMoveUser != nil {
		go c.hub.onVoiceMoveUser(c.userID, data.TargetUserID, data.TargetChannelID)
	}
}

// handleVoiceDisconnectUser, moderasyon atma isteğini işler.
func (c *Client) handleVoiceDisconnectUser(event Event) {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	var data VoiceDisconnectUserData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return
	}

	if data.TargetUserID == "" {
		log.Printf("[ws] voice_disconnect_user missing target from user %s", c.userID)
		return
	}

	if c.hub.onVoiceDisconnectUser != nil {
		go c.hub.onVoiceDisconnectUser(c.userID, data.TargetUserID)
	}
}

// sendEvent, client'a tek bir event gönderir.
func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event for user %s: %v", c.userID, err)
		return
	}

	select {
	case c.send <- data:
		// Başarıyla buffer'a eklendi
	default:
		// Buffer dolu — client muhtemelen donmuş, bağlantıyı kapat
		log.Printf("[ws] send buffer full for user %s, dropping connection", c.userID)
		c.hub.unregister <- c
	}
}

// WritePump, Hub'dan gelen mesajları WebSocket bağlantısına yazar.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Channel kapatıldı — Hub client'ı çıkardı
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// writeMessage, WebSocket'e mesaj yazar (mutex ile korunur).
// gorilla/websocket conn'a aynı anda birden fazla yazma YASAK.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
