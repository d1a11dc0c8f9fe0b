package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TransportState, bir transport'un yaşam döngüsündeki konumu.
// Created → Connecting → Connected tek yönlü ilerler; Closed her
// durumdan erişilebilir terminal durumdur.
type TransportState string

const (
	TransportCreated    TransportState = "created"
	TransportConnecting TransportState = "connecting"
	TransportConnected  TransportState = "connected"
	TransportClosed     TransportState = "closed"
)

// Transport, bir kullanıcının bir kanaldaki WebRTC bağlantısının kaydı.
// Motor tarafındaki nesnenin sadece kimliğini ve sahipliğini tutarız;
// ICE/DTLS detayları motor tarafında yaşar.
type Transport struct {
	ID        string
	UserID    string
	ChannelID string
	State     TransportState
}

// Producer, bir kullanıcının kanala gönderdiği tek bir medya akışının kaydı.
type Producer struct {
	ID          string
	TransportID string
	UserID      string
	ChannelID   string
	MediaType   MediaType
}

// Consumer, bir producer'ın bir alıcı transport'undaki aynasının kaydı.
type Consumer struct {
	ID          string
	TransportID string
	UserID      string
	ChannelID   string
	ProducerID  string
	Paused      bool
}

// ClosedConsumer, cascade sırasında kapanan bir consumer'ın raporu.
// UserID alıcı taraftır — service katmanı bu kullanıcıya bildirim yollar.
type ClosedConsumer struct {
	ConsumerID string
	UserID     string
}

// ClosedProducer, kapanan bir producer'ın ve onunla birlikte giden
// consumer'larının raporu. Registry mutasyonu yapar, yayını service
// katmanı bu rapora bakarak yapar.
type ClosedProducer struct {
	ProducerID string
	UserID     string
	ChannelID  string
	MediaType  MediaType
	Consumers  []ClosedConsumer
}

// UserCleanup, CloseAllForUser'ın raporu: hangi producer'lar kapandı,
// kullanıcı hangi kanallardaydı, hangi kanalların routing context'i
// boşaldığı için yıkıldı.
type UserCleanup struct {
	Producers         []ClosedProducer
	Channels          []string
	DestroyedContexts []string
}

// ProducerAnnouncement, snapshot ve producer_added event'lerinde
// duyurulan asgari producer bilgisi.
type ProducerAnnouncement struct {
	ProducerID string    `json:"producer_id"`
	UserID     string    `json:"user_id"`
	MediaType  MediaType `json:"media_type"`
}

// Registry, kanal başına routing context'leri ve onlara bağlı
// transport/producer/consumer tablolarını tutar.
//
// Tek bir mutex tüm tabloları korur: bir cascade (producer kapat →
// aynalarını kapat → index'i temizle) hiçbir ara durumda dışarıdan
// gözlemlenemez. Kritik bölgeler kısa tutulur; motor çağrıları hızlı
// in-process RPC'lerdir.
type Registry struct {
	mu     sync.Mutex
	engine Engine

	contexts   map[string]RoutingContext // channelID → context
	transports map[string]*Transport     // transportID → kayıt
	producers  map[string]*Producer      // producerID → kayıt
	consumers  map[string]*Consumer      // consumerID → kayıt

	// userTransports ve channelTransports, CloseAllForUser ve
	// destroyIfEmpty'nin tablo taraması yapmaması için tutulan indexler.
	userTransports    map[string]map[string]struct{} // userID → transportID set
	channelTransports map[string]int                 // channelID → açık transport sayısı

	// producerIndex, kanal → kullanıcı → slot → producerID.
	// Supersede kuralını (slot başına tek producer) bu index uygular.
	producerIndex map[string]map[string]map[MediaType]string

	// flight, aynı kanal için eşzamanlı context allocation'ı teke indirir.
	// İkinci çağıran yeni bir context yaratmaz, ilkinin sonucunu bekler.
	flight singleflight.Group
}

func NewRegistry(engine Engine) *Registry {
	return &Registry{
		engine:            engine,
		contexts:          make(map[string]RoutingContext),
		transports:        make(map[string]*Transport),
		producers:         make(map[string]*Producer),
		consumers:         make(map[string]*Consumer),
		userTransports:    make(map[string]map[string]struct{}),
		channelTransports: make(map[string]int),
		producerIndex:     make(map[string]map[string]map[MediaType]string),
	}
}

// RoutingCapabilities, kanalın routing context'ini (yoksa yaratıp)
// RTP yeteneklerini döner. Join akışının ilk adımıdır.
func (g *Registry) RoutingCapabilities(ctx context.Context, channelID string) (json.RawMessage, error) {
	rc, err := g.routingContext(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return rc.RtpCapabilities(), nil
}

// routingContext, kanalın context'ini döner; yoksa singleflight ile yaratır.
func (g *Registry) routingContext(ctx context.Context, channelID string) (RoutingContext, error) {
	g.mu.Lock()
	if rc, ok := g.contexts[channelID]; ok {
		g.mu.Unlock()
		return rc, nil
	}
	g.mu.Unlock()

	v, err, _ := g.flight.Do(channelID, func() (any, error) {
		// Do'yu kazanana kadar başka bir çağrı yaratmış olabilir.
		g.mu.Lock()
		if rc, ok := g.contexts[channelID]; ok {
			g.mu.Unlock()
			return rc, nil
		}
		g.mu.Unlock()

		rc, err := g.engine.CreateRoutingContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRoutingUnavailable, err)
		}

		g.mu.Lock()
		g.contexts[channelID] = rc
		g.mu.Unlock()
		return rc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(RoutingContext), nil
}

// CreateTransport, kullanıcı için kanalda yeni bir transport açar.
// Context allocation singleflight'ta, kayıt ise mutex altında yapılır;
// kayıt anında context'in hâlâ yaşadığı doğrulanır — arada destroyIfEmpty
// çalıştıysa istemci join'i baştan alır.
func (g *Registry) CreateTransport(ctx context.Context, userID, channelID string) (*TransportInfo, error) {
	rc, err := g.routingContext(ctx, channelID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if current, ok := g.contexts[channelID]; !ok || current != rc {
		return nil, ErrRoutingUnavailable
	}

	info, err := rc.CreateTransport(ctx)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	g.transports[info.ID] = &Transport{
		ID:        info.ID,
		UserID:    userID,
		ChannelID: channelID,
		State:     TransportCreated,
	}
	if g.userTransports[userID] == nil {
		g.userTransports[userID] = make(map[string]struct{})
	}
	g.userTransports[userID][info.ID] = struct{}{}
	g.channelTransports[channelID]++

	return info, nil
}

// ConnectTransport, istemcinin DTLS parametrelerini motora iletir.
// Aynı transport için ikinci connect no-op'tur (istemci retry'ı).
func (g *Registry) ConnectTransport(ctx context.Context, userID, transportID string, dtlsParameters json.RawMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.ownedTransport(userID, transportID)
	if err != nil {
		return err
	}
	if t.State == TransportConnected {
		return nil
	}

	rc, ok := g.contexts[t.ChannelID]
	if !ok {
		return ErrTransportNotFound
	}

	t.State = TransportConnecting
	if err := rc.ConnectTransport(ctx, transportID, dtlsParameters); err != nil {
		t.State = TransportCreated
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	t.State = TransportConnected
	return nil
}

// Produce, transport üzerinde yeni bir producer açar ve kaydeder.
// Kullanıcının aynı kanalda aynı slottaki eski producer'ı varsa önce o
// kapatılır (supersede); kapanan producer cascade raporuyla döner ki
// service katmanı producer_removed'ı producer_added'dan ÖNCE yayınlasın.
func (g *Registry) Produce(ctx context.Context, userID, transportID string, mediaType MediaType, rtpParameters json.RawMessage) (string, *ClosedProducer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.ownedTransport(userID, transportID)
	if err != nil {
		return "", nil, err
	}
	rc, ok := g.contexts[t.ChannelID]
	if !ok {
		return "", nil, ErrTransportNotFound
	}

	var superseded *ClosedProducer
	if oldID, ok := g.producerSlot(t.ChannelID, userID, mediaType); ok {
		superseded = g.closeProducerLocked(rc, oldID)
	}

	producerID, err := rc.Produce(ctx, transportID, mediaType.Kind(), rtpParameters)
	if err != nil {
		return "", superseded, fmt.Errorf("produce: %w", err)
	}

	g.producers[producerID] = &Producer{
		ID:          producerID,
		TransportID: transportID,
		UserID:      userID,
		ChannelID:   t.ChannelID,
		MediaType:   mediaType,
	}
	g.setProducerSlot(t.ChannelID, userID, mediaType, producerID)

	return producerID, superseded, nil
}

// CloseProducer, kullanıcının kanaldaki verilen slottaki producer'ını
// kapatır. Slot boşsa no-op'tur ve nil rapor döner — kamera kapatma
// butonuna iki kez basmak hata değildir.
func (g *Registry) CloseProducer(channelID, userID string, mediaType MediaType) *ClosedProducer {
	g.mu.Lock()
	defer g.mu.Unlock()

	producerID, ok := g.producerSlot(channelID, userID, mediaType)
	if !ok {
		return nil
	}
	rc, ok := g.contexts[channelID]
	if !ok {
		return nil
	}
	return g.closeProducerLocked(rc, producerID)
}

// Consume, producer'ı alıcının transport'unda paused olarak tüketmeye başlar.
func (g *Registry) Consume(ctx context.Context, userID, transportID, producerID string, rtpCapabilities json.RawMessage) (*ConsumerInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.ownedTransport(userID, transportID)
	if err != nil {
		return nil, err
	}
	p, ok := g.producers[producerID]
	if !ok || p.ChannelID != t.ChannelID {
		return nil, ErrProducerNotFound
	}
	rc, ok := g.contexts[t.ChannelID]
	if !ok {
		return nil, ErrTransportNotFound
	}

	if !rc.CanConsume(producerID, rtpCapabilities) {
		return nil, ErrIncompatibleCapabilities
	}

	info, err := rc.Consume(ctx, transportID, producerID, rtpCapabilities)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	g.consumers[info.ID] = &Consumer{
		ID:          info.ID,
		TransportID: transportID,
		UserID:      userID,
		ChannelID:   t.ChannelID,
		ProducerID:  producerID,
		Paused:      true,
	}

	return info, nil
}

// ResumeConsumer, paused doğan consumer'ı akıtmaya başlar.
func (g *Registry) ResumeConsumer(ctx context.Context, userID, consumerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.consumers[consumerID]
	if !ok || c.UserID != userID {
		return ErrConsumerNotFound
	}
	rc, ok := g.contexts[c.ChannelID]
	if !ok {
		return ErrConsumerNotFound
	}
	if err := rc.ResumeConsumer(ctx, consumerID); err != nil {
		return fmt.Errorf("resume consumer: %w", err)
	}
	c.Paused = false
	return nil
}

// CloseAllForUser, kullanıcının tüm transport'larını ve onlara bağlı her
// şeyi kapatır. Kanal ayrılışı, ws kopması ve AFK taşıması hep buradan
// geçer. Boşalan kanalların routing context'leri aynı kritik bölge
// içinde yıkılır — iki kullanıcının aynı anda ayrılması context'i ne
// sızdırır ne de iki kez kapatır.
func (g *Registry) CloseAllForUser(userID string) *UserCleanup {
	g.mu.Lock()
	defer g.mu.Unlock()

	cleanup := &UserCleanup{}
	channels := make(map[string]struct{})

	for transportID := range g.userTransports[userID] {
		t, ok := g.transports[transportID]
		if !ok {
			continue
		}
		rc := g.contexts[t.ChannelID]
		channels[t.ChannelID] = struct{}{}

		// Önce bu transport'un producer'ları ve onların aynaları.
		for _, p := range g.producers {
			if p.TransportID != transportID {
				continue
			}
			if rc != nil {
				cleanup.Producers = append(cleanup.Producers, *g.closeProducerLocked(rc, p.ID))
			}
		}

		// Sonra kullanıcının kendi aynaları (başkalarını izlediği consumer'lar).
		for _, c := range g.consumers {
			if c.TransportID != transportID {
				continue
			}
			if rc != nil {
				rc.CloseConsumer(c.ID)
			}
			delete(g.consumers, c.ID)
		}

		if rc != nil {
			rc.CloseTransport(transportID)
		}
		t.State = TransportClosed
		delete(g.transports, transportID)
		g.channelTransports[t.ChannelID]--
	}
	delete(g.userTransports, userID)

	for channelID := range channels {
		cleanup.Channels = append(cleanup.Channels, channelID)
		if g.destroyIfEmptyLocked(channelID) {
			cleanup.DestroyedContexts = append(cleanup.DestroyedContexts, channelID)
		}
	}

	return cleanup
}

// ChannelProducers, kanaldaki aktif producer'ları duyuru formatında döner.
// Join yanıtındaki ve periyodik snapshot'taki producer listesi buradan gelir.
func (g *Registry) ChannelProducers(channelID string) []ProducerAnnouncement {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []ProducerAnnouncement
	for userID, slots := range g.producerIndex[channelID] {
		for mediaType, producerID := range slots {
			out = append(out, ProducerAnnouncement{
				ProducerID: producerID,
				UserID:     userID,
				MediaType:  mediaType,
			})
		}
	}
	return out
}

// ActiveMediaTypes, kullanıcının kanaldaki açık producer slotlarını döner.
// Presence katmanı kamera/ekran paylaşımı bayraklarını bundan türetir.
func (g *Registry) ActiveMediaTypes(channelID, userID string) []MediaType {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []MediaType
	for mediaType := range g.producerIndex[channelID][userID] {
		out = append(out, mediaType)
	}
	return out
}

// HasContext, kanal için yaşayan bir routing context olup olmadığını söyler.
func (g *Registry) HasContext(channelID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.contexts[channelID]
	return ok
}

// TransportState, verilen transport'un durumunu döner (yoksa Closed).
func (g *Registry) TransportStateOf(transportID string) TransportState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.transports[transportID]; ok {
		return t.State
	}
	return TransportClosed
}

// ConsumerPaused, consumer'ın paused bayrağını döner.
func (g *Registry) ConsumerPaused(consumerID string) (bool, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.consumers[consumerID]
	if !ok {
		return false, false
	}
	return c.Paused, true
}

// --- mutex altında çağrılan yardımcılar ---

func (g *Registry) ownedTransport(userID, transportID string) (*Transport, error) {
	t, ok := g.transports[transportID]
	if !ok || t.UserID != userID || t.State == TransportClosed {
		return nil, ErrTransportNotFound
	}
	return t, nil
}

// closeProducerLocked, producer'ı ve tüm aynalarını kapatır; raporu döner.
// Sıra önemli: önce motor tarafındaki aynalar, sonra producer, en son
// tablolar — rapor hiçbir zaman yarım bir cascade göstermez.
func (g *Registry) closeProducerLocked(rc RoutingContext, producerID string) *ClosedProducer {
	p := g.producers[producerID]
	if p == nil {
		return nil
	}

	report := &ClosedProducer{
		ProducerID: producerID,
		UserID:     p.UserID,
		ChannelID:  p.ChannelID,
		MediaType:  p.MediaType,
	}

	for _, c := range g.consumers {
		if c.ProducerID != producerID {
			continue
		}
		rc.CloseConsumer(c.ID)
		report.Consumers = append(report.Consumers, ClosedConsumer{
			ConsumerID: c.ID,
			UserID:     c.UserID,
		})
		delete(g.consumers, c.ID)
	}

	rc.CloseProducer(producerID)
	delete(g.producers, producerID)
	g.clearProducerSlot(p.ChannelID, p.UserID, p.MediaType)

	return report
}

func (g *Registry) destroyIfEmptyLocked(channelID string) bool {
	if g.channelTransports[channelID] > 0 {
		return false
	}
	delete(g.channelTransports, channelID)

	rc, ok := g.contexts[channelID]
	if !ok {
		return false
	}
	rc.Close()
	delete(g.contexts, channelID)
	delete(g.producerIndex, channelID)
	return true
}

func (g *Registry) producerSlot(channelID, userID string, mediaType MediaType) (string, bool) {
	id, ok := g.producerIndex[channelID][userID][mediaType]
	return id, ok
}

func (g *Registry) setProducerSlot(channelID, userID string, mediaType MediaType, producerID string) {
	if g.producerIndex[channelID] == nil {
		g.producerIndex[channelID] = make(map[string]map[MediaType]string)
	}
	if g.producerIndex[channelID][userID] == nil {
		g.producerIndex[channelID][userID] = make(map[MediaType]string)
	}
	g.producerIndex[channelID][userID][mediaType] = producerID
}

func (g *Registry) clearProducerSlot(channelID, userID string, mediaType MediaType) {
	if slots, ok := g.producerIndex[channelID][userID]; ok {
		delete(slots, mediaType)
		if len(slots) == 0 {
			delete(g.producerIndex[channelID], userID)
		}
	}
}
