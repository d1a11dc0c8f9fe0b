// Package services — sinyalleşme orkestrasyonu.
//
// RTCService, ws katmanından gelen rtc_* isteklerini yetki kontrolünden
// geçirir, rtc.Registry'ye uygular ve yan etkileri (producer_added,
// participant_left...) Hub üzerinden yayar.
//
// Ordering garantisi:
// Registry mutasyonu ile onun broadcast'i tek bir service mutex'i
// altında yapılır. Böylece iki garantili sıra oluşur:
//  1. Aynı bağlantının istekleri ReadPump'ta sırayla işlenir
//  2. Farklı kullanıcıların mutasyon+broadcast çiftleri birbirine
//     karışmaz — supersede'in producer_removed'u, yerine geçen
//     producer_added'dan HER ZAMAN önce çıkar
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/akinalp/voxi/models"
	"github.com/akinalp/voxi/pkg"
	"github.com/akinalp/voxi/repository"
	"github.com/akinalp/voxi/rtc"
	"github.com/akinalp/voxi/ws"
)

// UserGetter, kullanıcı kaydı okumak için minimal interface.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// ─── Sonuç payload'ları ───
// Bunlar <op>_result event'inin RTCResult.Data alanında taşınır.

// RTCJoinResult, rtc_join'in yanıtı: cihaz yükleme için codec
// yetenekleri + kanalın otoriter anlık görüntüsü.
type RTCJoinResult struct {
	RtpCapabilities json.RawMessage            `json:"rtp_capabilities"`
	Participants    []models.VoiceState        `json:"participants"`
	Producers       []rtc.ProducerAnnouncement `json:"producers"`
}

// RTCProduceResult, rtc_produce'un yanıtı.
type RTCProduceResult struct {
	ProducerID string `json:"producer_id"`
}

// RTCSnapshotResult, rtc_resync'in yanıtı.
type RTCSnapshotResult struct {
	ChannelID    string                     `json:"channel_id"`
	Participants []models.VoiceState        `json:"participants"`
	Producers    []rtc.ProducerAnnouncement `json:"producers"`
}

// RTCService, sinyalleşme iş mantığı interface'i.
type RTCService interface {
	// HandleRTC, ws.Hub'ın OnRTCRequest callback'ine bağlanır.
	// Dönen payload <op>_result içinde client'a gider.
	HandleRTC(userID, op string, data json.RawMessage) (any, error)

	// HandleIntent, mute/deafen toggle'ını uygular (fire-and-forget).
	HandleIntent(userID string, isMuted, isDeafened *bool)

	// Leave, kullanıcının tüm medyasını kapatır ve kanaldan çıkarır.
	// rtc_leave isteği ve WS tam kopuşu aynı yoldan geçer.
	Leave(userID string)

	// MoveUser / DisconnectUser, moderasyon operasyonları.
	// Yetkisiz veya geçersiz istekler loglanıp yutulur.
	MoveUser(moderatorID, targetUserID, targetChannelID string)
	DisconnectUser(moderatorID, targetUserID string)

	// VoiceRelocator — AFK sweep'i de bu kapılardan girer.
	Relocate(userID, targetChannelID, reason string) error
	ForceMuteInPlace(userID, reason string)

	// SnapshotToUser, tek kullanıcıya tam voice state sync'i yollar
	// (ilk WS bağlantısında çağrılır).
	SnapshotToUser(userID string)

	// StartSnapshots, periyodik voice_snapshot broadcast'ini başlatır.
	StartSnapshots(intervalSeconds int)

	Stop()
}

// rtcService, RTCService interface'inin implementasyonu.
//
// registry nil olabilir: medya motoru açılışta başlatılamadıysa uygulama
// yine ayaktadır, sadece tüm sinyalleşme istekleri ROUTING_UNAVAILABLE
// ile reddedilir.
type rtcService struct {
	mu sync.Mutex // mutasyon + broadcast sırasını korur

	registry *rtc.Registry

	voice VoiceService
	afk   AfkService
	hub   ws.EventPublisher

	userRepo    UserGetter
	channelRepo repository.ChannelRepository
	serverRepo  repository.ServerRepository
	roleRepo    repository.RoleRepository

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRTCService, constructor.
func NewRTCService(
	registry *rtc.Registry,
	voice VoiceService,
	afk AfkService,
	hub ws.EventPublisher,
	userRepo UserGetter,
	channelRepo repository.ChannelRepository,
	serverRepo repository.ServerRepository,
	roleRepo repository.RoleRepository,
) RTCService {
	return &rtcService{
		registry:    registry,
		voice:       voice,
		afk:         afk,
		hub:         hub,
		userRepo:    userRepo,
		channelRepo: channelRepo,
		serverRepo:  serverRepo,
		roleRepo:    roleRepo,
		stop:        make(chan struct{}),
	}
}

// ─── Dispatch ───

func (s *rtcService) HandleRTC(userID, op string, data json.RawMessage) (any, error) {
	// Motor yoksa sinyalleşme yok. Client bu kodu görünce retry'ı
	// ertelemeyi bilir.
	if s.registry == nil {
		return nil, rtc.ErrRoutingUnavailable
	}

	ctx := context.Background()

	switch op {
	case ws.OpRTCJoin:
		var d ws.RTCJoinData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: malformed payload", pkg.ErrBadRequest)
		}
		return s.join(ctx, userID, d.ChannelID)

	case ws.OpRTCLeave:
		s.Leave(userID)
		return nil, nil

	case ws.OpRTCTransportCreate:
		var d ws.RTCTransportCreateData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: malformed payload", pkg.ErrBadRequest)
		}
		return s.transportCreate(ctx, userID, d.ChannelID)

	case ws.OpRTCTransportConnect:
		var d ws.RTCTransportConnectData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: malformed payload", pkg.ErrBadRequest)
		}
		return nil, s.registry.ConnectTransport(ctx, userID, d.TransportID, d.DtlsParameters)

	case ws.OpRTCProduce:
		var d ws.RTCProduceData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: malformed payload", pkg.ErrBadRequest)
		}
		return s.produce(ctx, userID, d)

	case ws.OpRTCProducerClose:
		var d ws.RTCProducerCloseData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: malformed payload", pkg.ErrBadRequest)
		}
		return nil, s.producerClose(userID, d)

	case ws.OpRTCConsume:
		var d ws.RTCConsumeData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: malformed payload", pkg.ErrBadRequest)
		}
		return s.registry.Consume(ctx, userID, d.TransportID, d.ProducerID, d.RtpCapabilities)

	case ws.OpRTCConsumerResume:
		var d ws.RTCConsumerResumeData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: malformed payload", pkg.ErrBadRequest)
		}
		return nil, s.registry.ResumeConsumer(ctx, userID, d.ConsumerID)

	case ws.OpRTCResync:
		return s.resync(userID)

	default:
		return nil, fmt.Errorf("%w: unknown op %q", pkg.ErrBadRequest, op)
	}
}

// ─── Join / Leave ───

func (s *rtcService) join(ctx context.Context, userID, channelID string) (*RTCJoinResult, error) {
	channel, err := s.authorizeJoin(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// UserLimit kontrolü (0 = sınırsız). Yeniden katılım sayılmaz.
	if channel.UserLimit > 0 {
		participants := s.voice.GetChannelParticipants(channelID)
		alreadyIn := false
		for _, p := range participants {
			if p.UserID == userID {
				alreadyIn = true
				break
			}
		}
		if !alreadyIn && len(participants) >= channel.UserLimit {
			return nil, fmt.Errorf("%w: voice channel is full", pkg.ErrBadRequest)
		}
	}

	caps, err := s.registry.RoutingCapabilities(ctx, channelID)
	if err != nil {
		return nil, err
	}

	// Kanal değiştiriliyorsa eski kanaldaki medya önce kapanır —
	// transport'lar kanala bağlıdır, taşınamaz.
	if prev := s.voice.GetUserState(userID); prev != nil && prev.ChannelID != channelID {
		s.fanOutCleanup(userID, s.registry.CloseAllForUser(userID))
	}

	s.voice.JoinChannel(userID, user.Username, channelID, channel.ServerID)
	s.afk.Touch(userID)

	return &RTCJoinResult{
		RtpCapabilities: caps,
		Participants:    s.voice.GetChannelParticipants(channelID),
		Producers:       s.registry.ChannelProducers(channelID),
	}, nil
}

func (s *rtcService) Leave(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	covered := map[string]bool{}
	if s.registry != nil {
		cleanup := s.registry.CloseAllForUser(userID)
		s.fanOutCleanup(userID, cleanup)
		for _, channelID := range cleanup.Channels {
			covered[channelID] = true
		}
	}
	// Transport açmadan katılmış kullanıcı için de participant_left gider —
	// fanOutCleanup yalnızca canlı transport'u olan kanalları bilir.
	if removed := s.voice.LeaveChannel(userID); removed != nil && !covered[removed.ChannelID] {
		s.hub.BroadcastToAll(ws.Event{
			Op:   ws.OpParticipantLeft,
			Data: ws.ParticipantLeftData{ChannelID: removed.ChannelID, UserID: userID},
		})
	}
	s.afk.Forget(userID)
}

// ─── Transport / Producer / Consumer ───

func (s *rtcService) transportCreate(ctx context.Context, userID, channelID string) (*rtc.TransportInfo, error) {
	if err := s.requireInChannel(userID, channelID); err != nil {
		return nil, err
	}
	return s.registry.CreateTransport(ctx, userID, channelID)
}

func (s *rtcService) produce(ctx context.Context, userID string, d ws.RTCProduceData) (*RTCProduceResult, error) {
	mediaType := rtc.MediaType(d.MediaType)
	if !mediaType.Valid() {
		return nil, fmt.Errorf("%w: unknown media type %q", pkg.ErrBadRequest, d.MediaType)
	}

	state := s.voice.GetUserState(userID)
	if state == nil || state.ChannelID != d.ChannelID {
		return nil, fmt.Errorf("%w: not in this voice channel", pkg.ErrForbidden)
	}

	// Mikrofon için PermSpeak, kamera ve ekran paylaşımı (sesi dahil)
	// için PermStream gerekir.
	required := models.PermSpeak
	if mediaType != rtc.MediaTypeAudio {
		required = models.PermStream
	}
	perms, err := s.roleRepo.GetUserPermissions(ctx, state.ServerID, userID)
	if err != nil {
		return nil, err
	}
	if !perms.Has(required) {
		return nil, fmt.Errorf("%w: missing media permission", pkg.ErrForbidden)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	producerID, superseded, err := s.registry.Produce(ctx, userID, d.TransportID, mediaType, d.RtpParameters)

	// Supersede: eski producer'ın removed'u, yenisinin added'ından önce
	// çıkmak ZORUNDA — client aynı slotu iki producer'la göstermemeli.
	// Motor yeni produce'u reddetmiş olsa bile eski producer registry'de
	// kapanmıştır; removed haberi yine yayınlanır.
	if superseded != nil {
		s.broadcastProducerRemoved(superseded)
	}
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastToAll(ws.Event{
		Op: ws.OpProducerAdded,
		Data: ws.ProducerEventData{
			ChannelID:  d.ChannelID,
			ProducerID: producerID,
			UserID:     userID,
			MediaType:  d.MediaType,
		},
	})

	s.syncActivityLocked(userID, d.ChannelID)
	s.afk.Touch(userID)

	return &RTCProduceResult{ProducerID: producerID}, nil
}

func (s *rtcService) producerClose(userID string, d ws.RTCProducerCloseData) error {
	mediaType := rtc.MediaType(d.MediaType)
	if !mediaType.Valid() {
		return fmt.Errorf("%w: unknown media type %q", pkg.ErrBadRequest, d.MediaType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Slot zaten boşsa nil döner — kapatma idempotent'tir.
	if closed := s.registry.CloseProducer(d.ChannelID, userID, mediaType); closed != nil {
		s.broadcastProducerRemoved(closed)
		s.syncActivityLocked(userID, d.ChannelID)
	}
	return nil
}

func (s *rtcService) resync(userID string) (*RTCSnapshotResult, error) {
	state := s.voice.GetUserState(userID)
	if state == nil {
		return nil, fmt.Errorf("%w: not in a voice channel", pkg.ErrBadRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return &RTCSnapshotResult{
		ChannelID:    state.ChannelID,
		Participants: s.voice.GetChannelParticipants(state.ChannelID),
		Producers:    s.registry.ChannelProducers(state.ChannelID),
	}, nil
}

// ─── Intent ───

func (s *rtcService) HandleIntent(userID string, isMuted, isDeafened *bool) {
	s.voice.SetIntent(userID, isMuted, isDeafened)

	// Unmute aktivitedir — kullanıcı oradadır ve konuşmak üzeredir.
	if isMuted != nil && !*isMuted {
		s.afk.Touch(userID)
	}
}

// ─── Moderasyon ───

func (s *rtcService) MoveUser(moderatorID, targetUserID, targetChannelID string) {
	ctx := context.Background()

	target := s.voice.GetUserState(targetUserID)
	if target == nil {
		log.Printf("[rtc] move rejected: user %s not in voice", targetUserID)
		return
	}

	if !s.hasPermission(ctx, moderatorID, target.ServerID, models.PermMoveMembers) {
		log.Printf("[rtc] move rejected: user %s lacks permission", moderatorID)
		return
	}

	channel, err := s.channelRepo.GetByID(ctx, targetChannelID)
	if err != nil || channel.Type != models.ChannelTypeVoice || channel.ServerID != target.ServerID {
		log.Printf("[rtc] move rejected: invalid target channel %s", targetChannelID)
		return
	}

	if err := s.Relocate(targetUserID, targetChannelID, "moderator"); err != nil {
		log.Printf("[rtc] move failed for user %s: %v", targetUserID, err)
	}
}

func (s *rtcService) DisconnectUser(moderatorID, targetUserID string) {
	ctx := context.Background()

	target := s.voice.GetUserState(targetUserID)
	if target == nil {
		return
	}

	if !s.hasPermission(ctx, moderatorID, target.ServerID, models.PermMuteMembers) {
		log.Printf("[rtc] disconnect rejected: user %s lacks permission", moderatorID)
		return
	}

	s.Leave(targetUserID)
	s.hub.BroadcastToUser(targetUserID, ws.Event{
		Op:   ws.OpVoiceForceDisconnect,
		Data: ws.ForceDisconnectData{Reason: "moderator"},
	})
	log.Printf("[rtc] user %s disconnected from voice by %s", targetUserID, moderatorID)
}

// Relocate, kullanıcıyı hedef kanala zorla taşır: medyası kapanır,
// presence taşınır, kullanıcıya voice_force_move gider — sinyalleşmeyi
// (join → transport → produce) yeni kanalda baştan kurar.
func (s *rtcService) Relocate(userID, targetChannelID, reason string) error {
	state := s.voice.GetUserState(userID)
	if state == nil {
		return fmt.Errorf("%w: user not in voice", pkg.ErrNotFound)
	}

	s.mu.Lock()
	if s.registry != nil {
		s.fanOutCleanup(userID, s.registry.CloseAllForUser(userID))
	}
	s.voice.JoinChannel(userID, state.Username, targetChannelID, state.ServerID)
	s.mu.Unlock()

	s.afk.Touch(userID)
	s.hub.BroadcastToUser(userID, ws.Event{
		Op:   ws.OpVoiceForceMove,
		Data: ws.ForceMoveData{ChannelID: targetChannelID, Reason: reason},
	})

	log.Printf("[rtc] user %s moved to channel %s (%s)", userID, targetChannelID, reason)
	return nil
}

// ForceMuteInPlace, AFK kanalı tanımsız sunucularda idle kullanıcıyı
// bulunduğu yerde mute intent'ine çeker.
func (s *rtcService) ForceMuteInPlace(userID, reason string) {
	muted := true
	s.voice.SetIntent(userID, &muted, nil)
	log.Printf("[rtc] user %s force-muted (%s)", userID, reason)
}

// ─── Snapshot ───

func (s *rtcService) SnapshotToUser(userID string) {
	s.hub.BroadcastToUser(userID, ws.Event{
		Op:   ws.OpVoiceSnapshot,
		Data: ws.VoiceSnapshotData{States: s.voice.GetAllStates()},
	})
}

func (s *rtcService) StartSnapshots(intervalSeconds int) {
	interval := time.Duration(intervalSeconds) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.hub.BroadcastToAll(ws.Event{
					Op:   ws.OpVoiceSnapshot,
					Data: ws.VoiceSnapshotData{States: s.voice.GetAllStates()},
				})
			case <-s.stop:
				return
			}
		}
	}()
	log.Printf("[rtc] periodic voice snapshot started (interval: %s)", interval)
}

func (s *rtcService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// ─── Private Helpers ───

// authorizeJoin: kanal voice tipinde mi, kullanıcı sunucu üyesi mi,
// PermConnectVoice var mı.
func (s *rtcService) authorizeJoin(ctx context.Context, userID, channelID string) (*models.Channel, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.Type != models.ChannelTypeVoice {
		return nil, fmt.Errorf("%w: not a voice channel", pkg.ErrBadRequest)
	}

	isMember, err := s.serverRepo.IsMember(ctx, channel.ServerID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, fmt.Errorf("%w: not a member of this server", pkg.ErrForbidden)
	}

	perms, err := s.roleRepo.GetUserPermissions(ctx, channel.ServerID, userID)
	if err != nil {
		return nil, err
	}
	if !perms.Has(models.PermConnectVoice) {
		return nil, fmt.Errorf("%w: missing voice connect permission", pkg.ErrForbidden)
	}

	return channel, nil
}

func (s *rtcService) requireInChannel(userID, channelID string) error {
	state := s.voice.GetUserState(userID)
	if state == nil || state.ChannelID != channelID {
		return fmt.Errorf("%w: not in this voice channel", pkg.ErrForbidden)
	}
	return nil
}

func (s *rtcService) hasPermission(ctx context.Context, userID, serverID string, perm models.Permission) bool {
	perms, err := s.roleRepo.GetUserPermissions(ctx, serverID, userID)
	if err != nil {
		log.Printf("[rtc] failed to resolve permissions for user %s: %v", userID, err)
		return false
	}
	return perms.Has(perm)
}

// fanOutCleanup, CloseAllForUser raporunu event'lere çevirir:
// önce her kapanan producer için producer_removed, sonra kullanıcının
// bulunduğu her kanal için participant_left.
func (s *rtcService) fanOutCleanup(userID string, cleanup *rtc.UserCleanup) {
	for i := range cleanup.Producers {
		s.broadcastProducerRemoved(&cleanup.Producers[i])
	}
	for _, channelID := range cleanup.Channels {
		s.hub.BroadcastToAll(ws.Event{
			Op:   ws.OpParticipantLeft,
			Data: ws.ParticipantLeftData{ChannelID: channelID, UserID: userID},
		})
	}
}

func (s *rtcService) broadcastProducerRemoved(closed *rtc.ClosedProducer) {
	s.hub.BroadcastToAll(ws.Event{
		Op: ws.OpProducerRemoved,
		Data: ws.ProducerEventData{
			ChannelID:  closed.ChannelID,
			ProducerID: closed.ProducerID,
			UserID:     closed.UserID,
			MediaType:  string(closed.MediaType),
		},
	})
}

// syncActivityLocked, kullanıcının açık producer slot'larından kamera ve
// ekran paylaşımı bayraklarını türetir. Çağıran s.mu'yu tutar.
func (s *rtcService) syncActivityLocked(userID, channelID string) {
	cameraOn, screenSharing := false, false
	for _, mt := range s.registry.ActiveMediaTypes(channelID, userID) {
		switch mt {
		case rtc.MediaTypeVideo:
			cameraOn = true
		case rtc.MediaTypeScreen:
			screenSharing = true
		}
	}
	s.voice.SyncMediaActivity(userID, cameraOn, screenSharing)
}
