package services

import (
	"sync"
	"testing"

	"github.com/akinalp/voxi/ws"
)

// fakePublisher, hub'ı taklit eder ve yayınlanan event'leri sırayla
// biriktirir — fan-out sırası assertion'ları buna bakar.
type fakePublisher struct {
	mu     sync.Mutex
	events []ws.Event
	toUser map[string][]ws.Event
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{toUser: make(map[string][]ws.Event)}
}

func (p *fakePublisher) BroadcastToAll(event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) BroadcastToAllExcept(excludeUserID string, event ws.Event) {
	p.BroadcastToAll(event)
}

func (p *fakePublisher) BroadcastToUser(userID string, event ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toUser[userID] = append(p.toUser[userID], event)
}

// ops, yayınlanan event op'larını sırayla döner.
func (p *fakePublisher) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Op
	}
	return out
}

func (p *fakePublisher) lastBroadcast() (ws.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return ws.Event{}, false
	}
	return p.events[len(p.events)-1], true
}

func boolPtr(b bool) *bool { return &b }

func TestVoiceJoinBroadcastsState(t *testing.T) {
	hub := newFakePublisher()
	svc := NewVoiceService(hub)

	svc.JoinChannel("u1", "ayse", "voice-1", "srv-1")

	event, ok := hub.lastBroadcast()
	if !ok || event.Op != ws.OpVoiceStateUpdate {
		t.Fatalf("expected voice_state_update broadcast, got %+v", event)
	}
	payload := event.Data.(ws.VoiceStateUpdateBroadcast)
	if payload.Action != "join" || payload.ChannelID != "voice-1" || payload.Username != "ayse" {
		t.Fatalf("unexpected join payload: %+v", payload)
	}

	state := svc.GetUserState("u1")
	if state == nil || state.ChannelID != "voice-1" || state.ServerID != "srv-1" {
		t.Fatalf("unexpected state after join: %+v", state)
	}
}

func TestVoiceChannelSwitchCarriesIntent(t *testing.T) {
	hub := newFakePublisher()
	svc := NewVoiceService(hub)

	svc.JoinChannel("u1", "ayse", "voice-1", "srv-1")
	svc.SetIntent("u1", boolPtr(true), nil)

	svc.JoinChannel("u1", "ayse", "voice-2", "srv-1")

	state := svc.GetUserState("u1")
	if state.ChannelID != "voice-2" {
		t.Fatalf("expected user in voice-2, got %s", state.ChannelID)
	}
	if !state.IsMuted {
		t.Fatal("mute intent should survive a channel switch")
	}

	// Eski kanal için leave, yenisi için join yayınlanmış olmalı
	ops := hub.ops()
	var sawLeave, sawJoin bool
	for _, e := range hub.events {
		if e.Op != ws.OpVoiceStateUpdate {
			continue
		}
		p := e.Data.(ws.VoiceStateUpdateBroadcast)
		if p.Action == "leave" && p.ChannelID == "voice-1" {
			sawLeave = true
		}
		if p.Action == "join" && p.ChannelID == "voice-2" {
			if !sawLeave {
				t.Fatal("leave for old channel must precede join for new channel")
			}
			sawJoin = true
		}
	}
	if !sawLeave || !sawJoin {
		t.Fatalf("missing leave/join broadcasts, ops: %v", ops)
	}
}

func TestVoiceSetIntentPartialUpdate(t *testing.T) {
	hub := newFakePublisher()
	svc := NewVoiceService(hub)

	svc.JoinChannel("u1", "ayse", "voice-1", "srv-1")

	state := svc.SetIntent("u1", nil, boolPtr(true))
	if state.IsMuted || !state.IsDeafened {
		t.Fatalf("expected deafened only, got %+v", state)
	}

	before := len(hub.ops())
	// Değişiklik yok — broadcast atılmamalı
	svc.SetIntent("u1", nil, boolPtr(true))
	if len(hub.ops()) != before {
		t.Fatal("no-op intent update must not broadcast")
	}
}

func TestVoiceSetIntentNotInChannel(t *testing.T) {
	svc := NewVoiceService(newFakePublisher())

	if state := svc.SetIntent("ghost", boolPtr(true), nil); state != nil {
		t.Fatalf("expected nil for user not in voice, got %+v", state)
	}
}

func TestVoiceSyncMediaActivity(t *testing.T) {
	hub := newFakePublisher()
	svc := NewVoiceService(hub)

	svc.JoinChannel("u1", "ayse", "voice-1", "srv-1")

	svc.SyncMediaActivity("u1", true, false)
	state := svc.GetUserState("u1")
	if !state.CameraOn || state.ScreenSharing {
		t.Fatalf("unexpected activity flags: %+v", state)
	}

	before := len(hub.ops())
	svc.SyncMediaActivity("u1", true, false) // değişiklik yok
	if len(hub.ops()) != before {
		t.Fatal("unchanged activity must not broadcast")
	}
}

func TestVoiceLeaveAndQueries(t *testing.T) {
	hub := newFakePublisher()
	svc := NewVoiceService(hub)

	svc.JoinChannel("u1", "ayse", "voice-1", "srv-1")
	svc.JoinChannel("u2", "banu", "voice-1", "srv-1")
	svc.JoinChannel("u3", "cem", "voice-2", "srv-1")

	if got := len(svc.GetChannelParticipants("voice-1")); got != 2 {
		t.Fatalf("expected 2 participants in voice-1, got %d", got)
	}
	if got := len(svc.GetAllStates()); got != 3 {
		t.Fatalf("expected 3 states, got %d", got)
	}

	removed := svc.LeaveChannel("u2")
	if removed == nil || removed.ChannelID != "voice-1" {
		t.Fatalf("unexpected removed state: %+v", removed)
	}
	if svc.GetUserState("u2") != nil {
		t.Fatal("state must be gone after leave")
	}

	// İkinci leave no-op
	if svc.LeaveChannel("u2") != nil {
		t.Fatal("second leave must return nil")
	}
}
