package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

// fakeEngine, motoru in-memory taklit eder. Yaratılan context sayısını
// sayar ki destroy/yeniden-yaratma senaryoları doğrulanabilsin.
type fakeEngine struct {
	mu       sync.Mutex
	created  int
	contexts []*fakeContext
	fail     bool
}

func (e *fakeEngine) CreateRoutingContext(ctx context.Context) (RoutingContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return nil, fmt.Errorf("worker died")
	}
	e.created++
	fc := &fakeContext{
		id:        e.created,
		producers: make(map[string]bool),
		consumers: make(map[string]bool),
		caps:      json.RawMessage(`{"codecs":["opus","vp8"]}`),
	}
	e.contexts = append(e.contexts, fc)
	return fc, nil
}

type fakeContext struct {
	mu        sync.Mutex
	id        int
	seq       int
	closed    bool
	producers map[string]bool // id → açık mı
	consumers map[string]bool
	caps      json.RawMessage
	rejectAll bool // CanConsume hep false dönsün
}

func (c *fakeContext) nextID(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s-%d-%d", prefix, c.id, c.seq)
}

func (c *fakeContext) RtpCapabilities() json.RawMessage { return c.caps }

var _ RoutingContext = (*fakeContext)(nil)

func (c *fakeContext) CreateTransport(ctx context.Context) (*TransportInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &TransportInfo{
		ID:             c.nextID("t"),
		IceParameters:  json.RawMessage(`{}`),
		IceCandidates:  json.RawMessage(`[]`),
		DtlsParameters: json.RawMessage(`{}`),
	}, nil
}

func (c *fakeContext) ConnectTransport(ctx context.Context, transportID string, dtls json.RawMessage) error {
	return nil
}

func (c *fakeContext) Produce(ctx context.Context, transportID string, kind MediaKind, rtp json.RawMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID("p")
	c.producers[id] = true
	return id, nil
}

func (c *fakeContext) CanConsume(producerID string, caps json.RawMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.rejectAll && c.producers[producerID]
}

func (c *fakeContext) Consume(ctx context.Context, transportID, producerID string, caps json.RawMessage) (*ConsumerInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID("c")
	c.consumers[id] = true
	return &ConsumerInfo{
		ID:            id,
		ProducerID:    producerID,
		Kind:          MediaKindAudio,
		RtpParameters: json.RawMessage(`{}`),
	}, nil
}

func (c *fakeContext) ResumeConsumer(ctx context.Context, consumerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.consumers[consumerID] {
		return ErrConsumerNotFound
	}
	return nil
}

func (c *fakeContext) CloseTransport(transportID string) {}

func (c *fakeContext) CloseProducer(producerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.producers[producerID] = false
}

func (c *fakeContext) CloseConsumer(consumerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumers[consumerID] = false
}

func (c *fakeContext) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// join, test kurulumunda tek kullanıcı için connected bir transport açar.
func join(t *testing.T, g *Registry, userID, channelID string) string {
	t.Helper()
	info, err := g.CreateTransport(context.Background(), userID, channelID)
	if err != nil {
		t.Fatalf("create transport: %v", err)
	}
	if err := g.ConnectTransport(context.Background(), userID, info.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("connect transport: %v", err)
	}
	return info.ID
}

func TestJoinProduceConsumeResume(t *testing.T) {
	engine := &fakeEngine{}
	g := NewRegistry(engine)
	ctx := context.Background()

	caps, err := g.RoutingCapabilities(ctx, "ch1")
	if err != nil {
		t.Fatalf("routing capabilities: %v", err)
	}
	if len(caps) == 0 {
		t.Fatal("expected rtp capabilities")
	}

	aliceTr := join(t, g, "alice", "ch1")
	bobTr := join(t, g, "bob", "ch1")

	producerID, superseded, err := g.Produce(ctx, "alice", aliceTr, MediaTypeAudio, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if superseded != nil {
		t.Fatal("first produce should not supersede anything")
	}

	info, err := g.Consume(ctx, "bob", bobTr, producerID, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if paused, ok := g.ConsumerPaused(info.ID); !ok || !paused {
		t.Fatal("consumer must start paused")
	}

	if err := g.ResumeConsumer(ctx, "bob", info.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if paused, _ := g.ConsumerPaused(info.ID); paused {
		t.Fatal("consumer should be resumed")
	}
}

func TestProduceSupersedesSameSlot(t *testing.T) {
	engine := &fakeEngine{}
	g := NewRegistry(engine)
	ctx := context.Background()

	aliceTr := join(t, g, "alice", "ch1")
	bobTr := join(t, g, "bob", "ch1")

	first, _, err := g.Produce(ctx, "alice", aliceTr, MediaTypeVideo, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	mirror, err := g.Consume(ctx, "bob", bobTr, first, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	second, superseded, err := g.Produce(ctx, "alice", aliceTr, MediaTypeVideo, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("second produce: %v", err)
	}
	if superseded == nil || superseded.ProducerID != first {
		t.Fatalf("expected %s to be superseded, got %+v", first, superseded)
	}
	if len(superseded.Consumers) != 1 || superseded.Consumers[0].ConsumerID != mirror.ID {
		t.Fatalf("expected mirror %s in cascade report, got %+v", mirror.ID, superseded.Consumers)
	}
	if _, ok := g.ConsumerPaused(mirror.ID); ok {
		t.Fatal("mirror consumer should be gone after supersede")
	}

	// Farklı slot supersede etmez: video açıkken audio da açılabilir.
	_, supersededAudio, err := g.Produce(ctx, "alice", aliceTr, MediaTypeAudio, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("audio produce: %v", err)
	}
	if supersededAudio != nil {
		t.Fatal("audio produce must not supersede video")
	}

	anns := g.ChannelProducers("ch1")
	found := false
	for _, a := range anns {
		if a.ProducerID == second && a.MediaType == MediaTypeVideo {
			found = true
		}
		if a.ProducerID == first {
			t.Fatal("superseded producer still announced")
		}
	}
	if !found {
		t.Fatal("new producer missing from channel announcements")
	}
}

func TestCloseProducerIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	g := NewRegistry(engine)
	ctx := context.Background()

	aliceTr := join(t, g, "alice", "ch1")
	if _, _, err := g.Produce(ctx, "alice", aliceTr, MediaTypeScreen, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("produce: %v", err)
	}

	if report := g.CloseProducer("ch1", "alice", MediaTypeScreen); report == nil {
		t.Fatal("first close should report the producer")
	}
	if report := g.CloseProducer("ch1", "alice", MediaTypeScreen); report != nil {
		t.Fatal("second close must be a silent no-op")
	}
}

func TestCanConsumeGate(t *testing.T) {
	engine := &fakeEngine{}
	g := NewRegistry(engine)
	ctx := context.Background()

	aliceTr := join(t, g, "alice", "ch1")
	bobTr := join(t, g, "bob", "ch1")

	producerID, _, err := g.Produce(ctx, "alice", aliceTr, MediaTypeAudio, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("produce: %v", err)
	}

	engine.contexts[0].rejectAll = true
	if _, err := g.Consume(ctx, "bob", bobTr, producerID, json.RawMessage(`{}`)); err != ErrIncompatibleCapabilities {
		t.Fatalf("expected ErrIncompatibleCapabilities, got %v", err)
	}

	// Hiç var olmamış producer için taksonomi farklı olmalı.
	if _, err := g.Consume(ctx, "bob", bobTr, "p-404", json.RawMessage(`{}`)); err != ErrProducerNotFound {
		t.Fatalf("expected ErrProducerNotFound, got %v", err)
	}
}

func TestCloseAllForUserCascades(t *testing.T) {
	engine := &fakeEngine{}
	g := NewRegistry(engine)
	ctx := context.Background()

	aliceTr := join(t, g, "alice", "ch1")
	bobTr := join(t, g, "bob", "ch1")

	producerID, _, err := g.Produce(ctx, "alice", aliceTr, MediaTypeAudio, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	mirror, err := g.Consume(ctx, "bob", bobTr, producerID, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	cleanup := g.CloseAllForUser("alice")
	if len(cleanup.Producers) != 1 || cleanup.Producers[0].ProducerID != producerID {
		t.Fatalf("expected alice's producer in cleanup, got %+v", cleanup.Producers)
	}
	if len(cleanup.Producers[0].Consumers) != 1 || cleanup.Producers[0].Consumers[0].UserID != "bob" {
		t.Fatalf("expected bob's mirror in cascade, got %+v", cleanup.Producers[0].Consumers)
	}
	if _, ok := g.ConsumerPaused(mirror.ID); ok {
		t.Fatal("bob's mirror should be closed")
	}
	if len(cleanup.DestroyedContexts) != 0 {
		t.Fatal("context must survive while bob is still in the channel")
	}
	if g.TransportStateOf(aliceTr) != TransportClosed {
		t.Fatal("alice's transport should be closed")
	}

	cleanup = g.CloseAllForUser("bob")
	if len(cleanup.DestroyedContexts) != 1 || cleanup.DestroyedContexts[0] != "ch1" {
		t.Fatalf("last leave must destroy the context, got %+v", cleanup.DestroyedContexts)
	}
	if g.HasContext("ch1") {
		t.Fatal("context still registered after destroy")
	}
	if !engine.contexts[0].closed {
		t.Fatal("engine side context not closed")
	}
}

func TestConcurrentLastLeavers(t *testing.T) {
	engine := &fakeEngine{}
	g := NewRegistry(engine)

	for i := 0; i < 8; i++ {
		join(t, g, fmt.Sprintf("user%d", i), "ch1")
	}

	var wg sync.WaitGroup
	destroyed := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cleanup := g.CloseAllForUser(fmt.Sprintf("user%d", i))
			for _, ch := range cleanup.DestroyedContexts {
				destroyed <- ch
			}
		}(i)
	}
	wg.Wait()
	close(destroyed)

	count := 0
	for range destroyed {
		count++
	}
	if count != 1 {
		t.Fatalf("context must be destroyed exactly once, got %d", count)
	}
	if g.HasContext("ch1") {
		t.Fatal("context leaked after all users left")
	}
}

func TestConcurrentJoinSingleContext(t *testing.T) {
	engine := &fakeEngine{}
	g := NewRegistry(engine)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := g.CreateTransport(context.Background(), fmt.Sprintf("user%d", i), "ch1"); err != nil {
				t.Errorf("create transport: %v", err)
			}
		}(i)
	}
	wg.Wait()

	engine.mu.Lock()
	created := engine.created
	engine.mu.Unlock()
	if created != 1 {
		t.Fatalf("concurrent joins must share one routing context, got %d", created)
	}
}

func TestEngineFailureIsRoutingUnavailable(t *testing.T) {
	engine := &fakeEngine{fail: true}
	g := NewRegistry(engine)

	_, err := g.CreateTransport(context.Background(), "alice", "ch1")
	if err == nil {
		t.Fatal("expected error")
	}
	if ErrorCode(err) != "ROUTING_UNAVAILABLE" {
		t.Fatalf("expected ROUTING_UNAVAILABLE, got %s", ErrorCode(err))
	}
}

func TestRejoinAfterDestroyCreatesFreshContext(t *testing.T) {
	engine := &fakeEngine{}
	g := NewRegistry(engine)

	join(t, g, "alice", "ch1")
	g.CloseAllForUser("alice")
	join(t, g, "alice", "ch1")

	engine.mu.Lock()
	created := engine.created
	engine.mu.Unlock()
	if created != 2 {
		t.Fatalf("rejoin after destroy must allocate a new context, got %d", created)
	}
}

func TestForeignTransportRejected(t *testing.T) {
	engine := &fakeEngine{}
	g := NewRegistry(engine)
	ctx := context.Background()

	aliceTr := join(t, g, "alice", "ch1")
	join(t, g, "mallory", "ch1")

	if _, _, err := g.Produce(ctx, "mallory", aliceTr, MediaTypeAudio, json.RawMessage(`{}`)); err != ErrTransportNotFound {
		t.Fatalf("producing on someone else's transport must fail, got %v", err)
	}
	if err := g.ConnectTransport(ctx, "mallory", aliceTr, json.RawMessage(`{}`)); err != ErrTransportNotFound {
		t.Fatalf("connecting someone else's transport must fail, got %v", err)
	}
}
