package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// EventPublisher, service katmanının WebSocket event'leri broadcast etmek için
// kullandığı interface.
//
// Dependency Inversion: Service'ler Hub'ın concrete struct'ına değil,
// bu interface'e bağımlıdır. Böylece:
// 1. Service test edilirken mock EventPublisher kullanılabilir
// 2. Hub implementasyonu değişse bile service kodu etkilenmez
type EventPublisher interface {
	BroadcastToAll(event Event)
	BroadcastToAllExcept(excludeUserID string, event Event)
	BroadcastToUser(userID string, event Event)
}

// Hub, tüm WebSocket bağlantılarını yöneten merkezi yapıdır (Observer pattern).
//
// Hub.Run() goroutine'i register/unregister channel'larından `select` ile okur:
// - register channel'dan yeni client gelirse → clients map'e ekle
// - unregister channel'dan client gelirse → map'ten çıkar
//
// Bir kullanıcının TÜM bağlantıları koptuğunda onUserFullyDisconnected
// tetiklenir — ses oturumunun terk edilme (abandonment) tespiti budur.
// Medya motoru tarafında ayrıca bir bağlantı izleme yoktur; istemcinin
// canlılığı bu WebSocket'tir.
type Hub struct {
	// clients: userID → Client set (bir kullanıcının birden fazla tab'ı olabilir).
	// map[string]map[*Client]bool — Go'da set yoktur, map[*Client]bool kullanılır.
	clients map[string]map[*Client]bool

	// mu: clients map'ini koruyan read-write mutex.
	mu sync.RWMutex

	// register/unregister: Client giriş/çıkış sinyalleri.
	register   chan *Client
	unregister chan *Client

	// seq: Her outbound event'e verilen artan sayaç.
	// atomic.Int64: Birden fazla goroutine'in güvenle okuyup yazabildiği sayı.
	seq atomic.Int64

	// Callback'ler — main package'da init_callbacks.go'da bağlanır.
	// Hub service katmanını tanımaz (Dependency Inversion).
	onUserFirstConnect      func(userID string)
	onUserFullyDisconnected func(userID string)
	onRTCRequest            func(userID, op string, data json.RawMessage) (any, error)
	onVoiceIntent           func(userID string, isMuted, isDeafened *bool)
	onVoiceMoveUser         func(moderatorID, targetUserID, targetChannelID string)
	onVoiceDisconnectUser   func(moderatorID, targetUserID string)
}

// NewHub, yeni bir Hub oluşturur.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// ─── Callback setter'ları ───
//
// Setter'lar Run() başlamadan önce, wire-up sırasında çağrılır.
// Sonradan değiştirilmeleri desteklenmez.

// OnUserFirstConnect, kullanıcının İLK bağlantısı kurulduğunda tetiklenir
// (ikinci tab tetiklemez). Snapshot gönderimi için kullanılır.
func (h *Hub) OnUserFirstConnect(fn func(userID string)) { h.onUserFirstConnect = fn }

// OnUserFullyDisconnected, kullanıcının SON bağlantısı koptuğunda tetiklenir.
// Ses oturumu temizliği (transport/producer/consumer cascade) buna bağlanır.
func (h *Hub) OnUserFullyDisconnected(fn func(userID string)) { h.onUserFullyDisconnected = fn }

// OnRTCRequest, tüm rtc_* isteklerinin işleyicisi. Dönen payload
// <op>_result event'i içinde client'a gider; error ise koduyla birlikte
// aynı zarfta taşınır.
func (h *Hub) OnRTCRequest(fn func(userID, op string, data json.RawMessage) (any, error)) {
	h.onRTCRequest = fn
}

// OnVoiceIntent, mute/deafen toggle işleyicisi.
func (h *Hub) OnVoiceIntent(fn func(userID string, isMuted, isDeafened *bool)) {
	h.onVoiceIntent = fn
}

// OnVoiceMoveUser, moderasyon taşıma işleyicisi.
func (h *Hub) OnVoiceMoveUser(fn func(moderatorID, targetUserID, targetChannelID string)) {
	h.onVoiceMoveUser = fn
}

// OnVoiceDisconnectUser, moderasyon atma işleyicisi.
func (h *Hub) OnVoiceDisconnectUser(fn func(moderatorID, targetUserID string)) {
	h.onVoiceDisconnectUser = fn
}

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// addClient, yeni bir client'ı Hub'a ekler.
// Kullanıcının ilk bağlantısıysa onUserFirstConnect tetiklenir —
// `go` ile: callback BroadcastToUser çağırırsa mutex deadlock olmasın.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	first := len(h.clients[client.userID]) == 0
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	h.mu.Unlock()

	log.Printf("[ws] client connected: user=%s", client.userID)

	if first && h.onUserFirstConnect != nil {
		go h.onUserFirstConnect(client.userID)
	}
}

// removeClient, bir client'ı Hub'dan çıkarır ve send channel'ını kapatır.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	last := false
	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			close(client.send)

			if len(clients) == 0 {
				delete(h.clients, client.userID)
				last = true
			}
		}
	}
	h.mu.Unlock()

	if last {
		log.Printf("[ws] user fully disconnected: %s", client.userID)
		if h.onUserFullyDisconnected != nil {
			go h.onUserFullyDisconnected(client.userID)
		}
	}
}

// BroadcastToAll, tüm bağlı client'lara event gönderir.
func (h *Hub) BroadcastToAll(event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal broadcast event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				// Buffer dolu — bu client yavaş, kapat
				go func(c *Client) { h.unregister <- c }(client)
			}
		}
	}
}

// BroadcastToAllExcept, belirli bir kullanıcı hariç tüm client'lara event gönderir.
func (h *Hub) BroadcastToAllExcept(excludeUserID string, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal broadcast event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID, clients := range h.clients {
		if userID == excludeUserID {
			continue
		}
		for client := range clients {
			select {
			case client.send <- data:
			default:
				go func(c *Client) { h.unregister <- c }(client)
			}
		}
	}
}

// BroadcastToUser, belirli bir kullanıcının tüm bağlantılarına event gönderir.
func (h *Hub) BroadcastToUser(userID string, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal user event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.clients[userID]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				go func(c *Client) { h.unregister <- c }(client)
			}
		}
	}
}

// Shutdown, tüm client bağlantılarını kapatır (graceful shutdown).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}
