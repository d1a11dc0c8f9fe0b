package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/akinalp/voxi/models"
	"github.com/akinalp/voxi/pkg"
	"github.com/akinalp/voxi/rtc"
	"github.com/akinalp/voxi/ws"
)

// ─── Motor fake'i ───

type stubEngine struct {
	mu         sync.Mutex
	seq        int
	fail       bool
	produceErr error // set edilirse sonraki Produce çağrıları bu hatayla döner
}

func (e *stubEngine) CreateRoutingContext(ctx context.Context) (rtc.RoutingContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return nil, fmt.Errorf("worker died")
	}
	e.seq++
	return &stubContext{id: e.seq, eng: e}, nil
}

type stubContext struct {
	mu  sync.Mutex
	id  int
	seq int
	eng *stubEngine
}

var _ rtc.RoutingContext = (*stubContext)(nil)

func (c *stubContext) nextID(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return fmt.Sprintf("%s-%d-%d", prefix, c.id, c.seq)
}

func (c *stubContext) RtpCapabilities() json.RawMessage {
	return json.RawMessage(`{"codecs":["opus","vp8"]}`)
}

func (c *stubContext) CreateTransport(ctx context.Context) (*rtc.TransportInfo, error) {
	return &rtc.TransportInfo{
		ID:             c.nextID("t"),
		IceParameters:  json.RawMessage(`{}`),
		IceCandidates:  json.RawMessage(`[]`),
		DtlsParameters: json.RawMessage(`{}`),
	}, nil
}

func (c *stubContext) ConnectTransport(ctx context.Context, transportID string, dtls json.RawMessage) error {
	return nil
}

func (c *stubContext) Produce(ctx context.Context, transportID string, kind rtc.MediaKind, rtp json.RawMessage) (string, error) {
	if c.eng != nil {
		c.eng.mu.Lock()
		err := c.eng.produceErr
		c.eng.mu.Unlock()
		if err != nil {
			return "", err
		}
	}
	return c.nextID("p"), nil
}

func (c *stubContext) CanConsume(producerID string, caps json.RawMessage) bool { return true }

func (c *stubContext) Consume(ctx context.Context, transportID, producerID string, caps json.RawMessage) (*rtc.ConsumerInfo, error) {
	return &rtc.ConsumerInfo{
		ID:            c.nextID("c"),
		ProducerID:    producerID,
		Kind:          rtc.MediaKindAudio,
		RtpParameters: json.RawMessage(`{}`),
	}, nil
}

func (c *stubContext) ResumeConsumer(ctx context.Context, consumerID string) error { return nil }
func (c *stubContext) CloseTransport(transportID string)                           {}
func (c *stubContext) CloseProducer(producerID string)                             {}
func (c *stubContext) CloseConsumer(consumerID string)                             {}
func (c *stubContext) Close()                                                      {}

// ─── Repo fake'leri ───

type stubChannelRepo struct {
	channels map[string]*models.Channel
}

func (r *stubChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	channel, ok := r.channels[id]
	if !ok {
		return nil, fmt.Errorf("%w: channel", pkg.ErrNotFound)
	}
	return channel, nil
}

func (r *stubChannelRepo) GetByServerID(ctx context.Context, serverID string) ([]models.Channel, error) {
	var out []models.Channel
	for _, c := range r.channels {
		if c.ServerID == serverID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type stubServerRepo struct {
	members      map[string]bool // userID → üye mi
	afkChannelID *string
	afkTimeout   int
}

func (r *stubServerRepo) GetByID(ctx context.Context, id string) (*models.Server, error) {
	return &models.Server{ID: id, AfkChannelID: r.afkChannelID, AfkTimeoutSeconds: r.afkTimeout}, nil
}

func (r *stubServerRepo) IsMember(ctx context.Context, serverID, userID string) (bool, error) {
	return r.members[userID], nil
}

func (r *stubServerRepo) UpdateAfkConfig(ctx context.Context, serverID string, afkChannelID *string, timeoutSeconds int) error {
	return nil
}

type stubRoleRepo struct {
	perms map[string]models.Permission // userID → permission bitmask
}

func (r *stubRoleRepo) GetUserPermissions(ctx context.Context, serverID, userID string) (models.Permission, error) {
	return r.perms[userID], nil
}

func (r *stubRoleRepo) GetByUserID(ctx context.Context, serverID, userID string) ([]models.Role, error) {
	return nil, nil
}

type stubUserRepo struct{}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Username: "user-" + id}, nil
}

// ─── Fixture ───

type rtcFixture struct {
	svc     RTCService
	voice   VoiceService
	afk     *afkService
	hub     *fakePublisher
	roles   *stubRoleRepo
	servers *stubServerRepo
	engine  *stubEngine
}

func newRTCFixture(t *testing.T) *rtcFixture {
	t.Helper()

	hub := newFakePublisher()
	voice := NewVoiceService(hub)

	servers := &stubServerRepo{members: map[string]bool{"u1": true, "u2": true, "mod": true}}
	channels := &stubChannelRepo{channels: map[string]*models.Channel{
		"voice-1": {ID: "voice-1", ServerID: "srv-1", Type: models.ChannelTypeVoice},
		"voice-2": {ID: "voice-2", ServerID: "srv-1", Type: models.ChannelTypeVoice},
		"text-1":  {ID: "text-1", ServerID: "srv-1", Type: models.ChannelTypeText},
		"tiny":    {ID: "tiny", ServerID: "srv-1", Type: models.ChannelTypeVoice, UserLimit: 1},
	}}
	roles := &stubRoleRepo{perms: map[string]models.Permission{
		"u1":  models.PermConnectVoice | models.PermSpeak | models.PermStream,
		"u2":  models.PermConnectVoice | models.PermSpeak,
		"mod": models.PermAll,
	}}

	afk := NewAfkService(servers, voice, 60).(*afkService)
	t.Cleanup(afk.Stop)

	engine := &stubEngine{}
	registry := rtc.NewRegistry(engine)
	svc := NewRTCService(registry, voice, afk, hub, &stubUserRepo{}, channels, servers, roles)
	afk.SetRelocator(svc)
	t.Cleanup(svc.Stop)

	return &rtcFixture{svc: svc, voice: voice, afk: afk, hub: hub, roles: roles, servers: servers, engine: engine}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

// joinAndTransport, test kullanıcısını kanala sokup bağlı bir transport döner.
func (f *rtcFixture) joinAndTransport(t *testing.T, userID, channelID string) string {
	t.Helper()

	if _, err := f.svc.HandleRTC(userID, ws.OpRTCJoin, mustJSON(t, ws.RTCJoinData{ChannelID: channelID})); err != nil {
		t.Fatalf("join: %v", err)
	}
	payload, err := f.svc.HandleRTC(userID, ws.OpRTCTransportCreate, mustJSON(t, ws.RTCTransportCreateData{ChannelID: channelID}))
	if err != nil {
		t.Fatalf("transport create: %v", err)
	}
	info := payload.(*rtc.TransportInfo)
	if _, err := f.svc.HandleRTC(userID, ws.OpRTCTransportConnect, mustJSON(t, ws.RTCTransportConnectData{
		TransportID:    info.ID,
		DtlsParameters: json.RawMessage(`{}`),
	})); err != nil {
		t.Fatalf("transport connect: %v", err)
	}
	return info.ID
}

// ─── Tests ───

func TestRTCJoinReturnsCapabilitiesAndSnapshot(t *testing.T) {
	f := newRTCFixture(t)

	payload, err := f.svc.HandleRTC("u1", ws.OpRTCJoin, mustJSON(t, ws.RTCJoinData{ChannelID: "voice-1"}))
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	result := payload.(*RTCJoinResult)
	if len(result.RtpCapabilities) == 0 {
		t.Fatal("expected rtp capabilities")
	}
	if len(result.Participants) != 1 || result.Participants[0].UserID != "u1" {
		t.Fatalf("unexpected participants: %+v", result.Participants)
	}
	if len(result.Producers) != 0 {
		t.Fatalf("fresh channel must have no producers: %+v", result.Producers)
	}
}

func TestRTCJoinRejectsTextChannel(t *testing.T) {
	f := newRTCFixture(t)

	_, err := f.svc.HandleRTC("u1", ws.OpRTCJoin, mustJSON(t, ws.RTCJoinData{ChannelID: "text-1"}))
	if !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("expected bad request for text channel, got %v", err)
	}
}

func TestRTCJoinRejectsNonMember(t *testing.T) {
	f := newRTCFixture(t)

	_, err := f.svc.HandleRTC("outsider", ws.OpRTCJoin, mustJSON(t, ws.RTCJoinData{ChannelID: "voice-1"}))
	if !errors.Is(err, pkg.ErrForbidden) {
		t.Fatalf("expected forbidden for non-member, got %v", err)
	}
}

func TestRTCJoinEnforcesUserLimit(t *testing.T) {
	f := newRTCFixture(t)

	if _, err := f.svc.HandleRTC("u1", ws.OpRTCJoin, mustJSON(t, ws.RTCJoinData{ChannelID: "tiny"})); err != nil {
		t.Fatalf("first join: %v", err)
	}
	// Aynı kullanıcının yeniden katılımı limite takılmaz
	if _, err := f.svc.HandleRTC("u1", ws.OpRTCJoin, mustJSON(t, ws.RTCJoinData{ChannelID: "tiny"})); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	_, err := f.svc.HandleRTC("u2", ws.OpRTCJoin, mustJSON(t, ws.RTCJoinData{ChannelID: "tiny"}))
	if !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("expected channel full, got %v", err)
	}
}

func TestRTCProducePermissions(t *testing.T) {
	f := newRTCFixture(t)
	transportID := f.joinAndTransport(t, "u2", "voice-1") // u2: Speak var, Stream yok

	if _, err := f.svc.HandleRTC("u2", ws.OpRTCProduce, mustJSON(t, ws.RTCProduceData{
		ChannelID:     "voice-1",
		TransportID:   transportID,
		MediaType:     "audio",
		RtpParameters: json.RawMessage(`{}`),
	})); err != nil {
		t.Fatalf("audio produce should pass with PermSpeak: %v", err)
	}

	_, err := f.svc.HandleRTC("u2", ws.OpRTCProduce, mustJSON(t, ws.RTCProduceData{
		ChannelID:     "voice-1",
		TransportID:   transportID,
		MediaType:     "screen",
		RtpParameters: json.RawMessage(`{}`),
	}))
	if !errors.Is(err, pkg.ErrForbidden) {
		t.Fatalf("screen produce must require PermStream, got %v", err)
	}
}

func TestRTCProduceBroadcastsAndDerivesActivity(t *testing.T) {
	f := newRTCFixture(t)
	transportID := f.joinAndTransport(t, "u1", "voice-1")

	if _, err := f.svc.HandleRTC("u1", ws.OpRTCProduce, mustJSON(t, ws.RTCProduceData{
		ChannelID:     "voice-1",
		TransportID:   transportID,
		MediaType:     "video",
		RtpParameters: json.RawMessage(`{}`),
	})); err != nil {
		t.Fatalf("produce: %v", err)
	}

	var sawAdded bool
	for _, e := range f.hub.events {
		if e.Op == ws.OpProducerAdded {
			p := e.Data.(ws.ProducerEventData)
			if p.UserID == "u1" && p.MediaType == "video" {
				sawAdded = true
			}
		}
	}
	if !sawAdded {
		t.Fatal("expected producer_added broadcast")
	}

	state := f.voice.GetUserState("u1")
	if !state.CameraOn {
		t.Fatal("camera flag must derive from open video producer")
	}
	if state.ScreenSharing {
		t.Fatal("screen flag must stay off")
	}
}

func TestRTCSupersedeEmitsRemovedBeforeAdded(t *testing.T) {
	f := newRTCFixture(t)
	transportID := f.joinAndTransport(t, "u1", "voice-1")

	produce := func() {
		t.Helper()
		if _, err := f.svc.HandleRTC("u1", ws.OpRTCProduce, mustJSON(t, ws.RTCProduceData{
			ChannelID:     "voice-1",
			TransportID:   transportID,
			MediaType:     "audio",
			RtpParameters: json.RawMessage(`{}`),
		})); err != nil {
			t.Fatalf("produce: %v", err)
		}
	}
	produce()
	produce() // aynı slot — eskisinin yerine geçer

	// Event akışında ikinci added'dan hemen önce removed olmalı
	var order []string
	for _, e := range f.hub.events {
		if e.Op == ws.OpProducerAdded || e.Op == ws.OpProducerRemoved {
			order = append(order, e.Op)
		}
	}
	want := []string{ws.OpProducerAdded, ws.OpProducerRemoved, ws.OpProducerAdded}
	if len(order) != len(want) {
		t.Fatalf("unexpected producer event order: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected producer event order: %v", order)
		}
	}
}

func TestRTCProducerCloseIdempotent(t *testing.T) {
	f := newRTCFixture(t)
	f.joinAndTransport(t, "u1", "voice-1")

	// Slot boş — yine de başarı
	if _, err := f.svc.HandleRTC("u1", ws.OpRTCProducerClose, mustJSON(t, ws.RTCProducerCloseData{
		ChannelID: "voice-1",
		MediaType: "video",
	})); err != nil {
		t.Fatalf("closing an empty slot must succeed: %v", err)
	}
}

func TestRTCLeaveFansOutRemovedThenLeft(t *testing.T) {
	f := newRTCFixture(t)
	transportID := f.joinAndTransport(t, "u1", "voice-1")

	if _, err := f.svc.HandleRTC("u1", ws.OpRTCProduce, mustJSON(t, ws.RTCProduceData{
		ChannelID:     "voice-1",
		TransportID:   transportID,
		MediaType:     "audio",
		RtpParameters: json.RawMessage(`{}`),
	})); err != nil {
		t.Fatalf("produce: %v", err)
	}

	if _, err := f.svc.HandleRTC("u1", ws.OpRTCLeave, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("leave: %v", err)
	}

	removedAt, leftAt, leftCount := -1, -1, 0
	for i, e := range f.hub.events {
		switch e.Op {
		case ws.OpProducerRemoved:
			removedAt = i
		case ws.OpParticipantLeft:
			leftAt = i
			leftCount++
		}
	}
	if removedAt == -1 || leftAt == -1 {
		t.Fatalf("missing cleanup broadcasts, ops: %v", f.hub.ops())
	}
	if removedAt > leftAt {
		t.Fatal("producer_removed must precede participant_left")
	}
	if leftCount != 1 {
		t.Fatalf("expected exactly one participant_left, got %d", leftCount)
	}

	if f.voice.GetUserState("u1") != nil {
		t.Fatal("presence must be cleared after leave")
	}
}

func TestRTCLeaveWithoutTransportsEmitsParticipantLeft(t *testing.T) {
	f := newRTCFixture(t)

	// Katıldı ama hiç transport açmadı — yine de ayrılışı duyurulmalı
	if _, err := f.svc.HandleRTC("u1", ws.OpRTCJoin, mustJSON(t, ws.RTCJoinData{ChannelID: "voice-1"})); err != nil {
		t.Fatalf("join: %v", err)
	}
	f.svc.Leave("u1")

	var sawLeft bool
	for _, e := range f.hub.events {
		if e.Op == ws.OpParticipantLeft {
			p := e.Data.(ws.ParticipantLeftData)
			if p.ChannelID == "voice-1" && p.UserID == "u1" {
				sawLeft = true
			}
		}
	}
	if !sawLeft {
		t.Fatal("participant_left must fire even without open transports")
	}
}

func TestRTCSupersedeBroadcastsRemovedOnEngineReject(t *testing.T) {
	f := newRTCFixture(t)
	transportID := f.joinAndTransport(t, "u1", "voice-1")

	produce := ws.RTCProduceData{
		ChannelID:     "voice-1",
		TransportID:   transportID,
		MediaType:     "audio",
		RtpParameters: json.RawMessage(`{}`),
	}
	if _, err := f.svc.HandleRTC("u1", ws.OpRTCProduce, mustJSON(t, produce)); err != nil {
		t.Fatalf("produce: %v", err)
	}

	// Motor ikinci produce'u reddediyor — eski producer registry'de
	// çoktan kapatıldı, peer'lar removed haberini yine de almalı
	f.engine.mu.Lock()
	f.engine.produceErr = fmt.Errorf("worker rejected produce")
	f.engine.mu.Unlock()

	if _, err := f.svc.HandleRTC("u1", ws.OpRTCProduce, mustJSON(t, produce)); err == nil {
		t.Fatal("expected produce error from engine")
	}

	var sawRemoved bool
	for _, e := range f.hub.events {
		if e.Op == ws.OpProducerRemoved {
			p := e.Data.(ws.ProducerEventData)
			if p.UserID == "u1" && p.MediaType == "audio" {
				sawRemoved = true
			}
		}
	}
	if !sawRemoved {
		t.Fatal("superseded producer removal must be broadcast despite engine error")
	}

	// Slot gerçekten boş — resync snapshot'ı producer içermemeli
	payload, err := f.svc.HandleRTC("u1", ws.OpRTCResync, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if producers := payload.(*RTCSnapshotResult).Producers; len(producers) != 0 {
		t.Fatalf("slot must be empty after failed supersede: %+v", producers)
	}
}

func TestAfkRelocationMutesThroughVoiceState(t *testing.T) {
	f := newRTCFixture(t)
	f.servers.afkChannelID = strPtr("afk")
	f.servers.afkTimeout = 60

	f.joinAndTransport(t, "u1", "voice-1")

	clock := time.Now()
	f.afk.now = func() time.Time { return clock }
	f.afk.Touch("u1")

	clock = clock.Add(61 * time.Second)
	f.afk.Sweep(context.Background())

	state := f.voice.GetUserState("u1")
	if state == nil || state.ChannelID != "afk" {
		t.Fatalf("idle user must be parked in the afk channel, got %+v", state)
	}
	if !state.IsMuted {
		t.Fatal("afk-relocated user must end up muted")
	}
}

func TestRTCConsumeAndResume(t *testing.T) {
	f := newRTCFixture(t)
	producerTransport := f.joinAndTransport(t, "u1", "voice-1")

	payload, err := f.svc.HandleRTC("u1", ws.OpRTCProduce, mustJSON(t, ws.RTCProduceData{
		ChannelID:     "voice-1",
		TransportID:   producerTransport,
		MediaType:     "audio",
		RtpParameters: json.RawMessage(`{}`),
	}))
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	producerID := payload.(*RTCProduceResult).ProducerID

	consumerTransport := f.joinAndTransport(t, "u2", "voice-1")
	payload, err = f.svc.HandleRTC("u2", ws.OpRTCConsume, mustJSON(t, ws.RTCConsumeData{
		TransportID:     consumerTransport,
		ProducerID:      producerID,
		RtpCapabilities: json.RawMessage(`{}`),
	}))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	consumer := payload.(*rtc.ConsumerInfo)
	if consumer.ProducerID != producerID {
		t.Fatalf("consumer bound to wrong producer: %+v", consumer)
	}

	if _, err := f.svc.HandleRTC("u2", ws.OpRTCConsumerResume, mustJSON(t, ws.RTCConsumerResumeData{
		ConsumerID: consumer.ID,
	})); err != nil {
		t.Fatalf("resume: %v", err)
	}
}

func TestRTCResyncReturnsChannelSnapshot(t *testing.T) {
	f := newRTCFixture(t)
	transportID := f.joinAndTransport(t, "u1", "voice-1")

	if _, err := f.svc.HandleRTC("u1", ws.OpRTCProduce, mustJSON(t, ws.RTCProduceData{
		ChannelID:     "voice-1",
		TransportID:   transportID,
		MediaType:     "audio",
		RtpParameters: json.RawMessage(`{}`),
	})); err != nil {
		t.Fatalf("produce: %v", err)
	}

	payload, err := f.svc.HandleRTC("u1", ws.OpRTCResync, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	snapshot := payload.(*RTCSnapshotResult)
	if snapshot.ChannelID != "voice-1" || len(snapshot.Participants) != 1 || len(snapshot.Producers) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestRTCIntentUnmuteCountsAsActivity(t *testing.T) {
	f := newRTCFixture(t)
	f.joinAndTransport(t, "u1", "voice-1")

	f.svc.HandleIntent("u1", boolPtr(true), nil)
	if state := f.voice.GetUserState("u1"); !state.IsMuted {
		t.Fatal("mute intent must be applied")
	}

	f.afk.mu.Lock()
	delete(f.afk.lastActive, "u1")
	f.afk.mu.Unlock()

	f.svc.HandleIntent("u1", boolPtr(false), nil)

	f.afk.mu.Lock()
	_, touched := f.afk.lastActive["u1"]
	f.afk.mu.Unlock()
	if !touched {
		t.Fatal("unmute must reset the afk counter")
	}
}

func TestRTCMoveUserRequiresPermission(t *testing.T) {
	f := newRTCFixture(t)
	f.joinAndTransport(t, "u1", "voice-1")

	// u2'nin PermMoveMembers'ı yok
	f.svc.MoveUser("u2", "u1", "voice-2")
	if state := f.voice.GetUserState("u1"); state.ChannelID != "voice-1" {
		t.Fatal("move without permission must be rejected")
	}

	f.svc.MoveUser("mod", "u1", "voice-2")
	if state := f.voice.GetUserState("u1"); state.ChannelID != "voice-2" {
		t.Fatalf("expected u1 in voice-2, got %+v", state)
	}

	// Taşınan kullanıcıya voice_force_move gitmeli
	var sawForceMove bool
	for _, e := range f.hub.toUser["u1"] {
		if e.Op == ws.OpVoiceForceMove {
			p := e.Data.(ws.ForceMoveData)
			if p.ChannelID == "voice-2" && p.Reason == "moderator" {
				sawForceMove = true
			}
		}
	}
	if !sawForceMove {
		t.Fatal("moved user must receive voice_force_move")
	}
}

func TestRTCDisconnectUser(t *testing.T) {
	f := newRTCFixture(t)
	f.joinAndTransport(t, "u1", "voice-1")

	f.svc.DisconnectUser("u2", "u1") // yetkisiz
	if f.voice.GetUserState("u1") == nil {
		t.Fatal("disconnect without permission must be rejected")
	}

	f.svc.DisconnectUser("mod", "u1")
	if f.voice.GetUserState("u1") != nil {
		t.Fatal("user must be out of voice after moderator disconnect")
	}

	var sawForceDisconnect bool
	for _, e := range f.hub.toUser["u1"] {
		if e.Op == ws.OpVoiceForceDisconnect {
			sawForceDisconnect = true
		}
	}
	if !sawForceDisconnect {
		t.Fatal("disconnected user must receive voice_force_disconnect")
	}
}

func TestRTCNilRegistryFailsFast(t *testing.T) {
	hub := newFakePublisher()
	voice := NewVoiceService(hub)
	servers := &stubServerRepo{members: map[string]bool{"u1": true}}
	afk := NewAfkService(servers, voice, 60).(*afkService)
	t.Cleanup(afk.Stop)

	// Motor açılışta başlatılamadı — registry nil
	svc := NewRTCService(nil, voice, afk, hub, &stubUserRepo{}, &stubChannelRepo{}, servers, &stubRoleRepo{})
	t.Cleanup(svc.Stop)

	_, err := svc.HandleRTC("u1", ws.OpRTCJoin, json.RawMessage(`{"channel_id":"voice-1"}`))
	if !errors.Is(err, rtc.ErrRoutingUnavailable) {
		t.Fatalf("expected routing unavailable, got %v", err)
	}
	if code := rtc.ErrorCode(err); code != "ROUTING_UNAVAILABLE" {
		t.Fatalf("expected ROUTING_UNAVAILABLE code, got %s", code)
	}

	// WS kopuşu yine de presence'ı temizleyebilmeli
	svc.Leave("u1") // panic'lememeli
}

func TestRTCChannelSwitchTearsDownOldMedia(t *testing.T) {
	f := newRTCFixture(t)
	transportID := f.joinAndTransport(t, "u1", "voice-1")

	if _, err := f.svc.HandleRTC("u1", ws.OpRTCProduce, mustJSON(t, ws.RTCProduceData{
		ChannelID:     "voice-1",
		TransportID:   transportID,
		MediaType:     "audio",
		RtpParameters: json.RawMessage(`{}`),
	})); err != nil {
		t.Fatalf("produce: %v", err)
	}

	result, err := f.svc.HandleRTC("u1", ws.OpRTCJoin, mustJSON(t, ws.RTCJoinData{ChannelID: "voice-2"}))
	if err != nil {
		t.Fatalf("switch: %v", err)
	}

	// Eski kanalın producer'ı kapandı, yeni kanal boş
	if producers := result.(*RTCJoinResult).Producers; len(producers) != 0 {
		t.Fatalf("new channel snapshot must be empty: %+v", producers)
	}
	var sawRemoved bool
	for _, e := range f.hub.events {
		if e.Op == ws.OpProducerRemoved {
			sawRemoved = true
		}
	}
	if !sawRemoved {
		t.Fatal("old channel media must be torn down on switch")
	}

	// Eski transport artık kullanılamaz
	_, err = f.svc.HandleRTC("u1", ws.OpRTCProduce, mustJSON(t, ws.RTCProduceData{
		ChannelID:     "voice-2",
		TransportID:   transportID,
		MediaType:     "audio",
		RtpParameters: json.RawMessage(`{}`),
	}))
	if !errors.Is(err, rtc.ErrTransportNotFound) {
		t.Fatalf("expected transport not found for stale transport, got %v", err)
	}
}
