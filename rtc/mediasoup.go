package rtc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jiyeyuran/mediasoup-go/v2"
)

// MediasoupEngine, Engine interface'ini jiyeyuran/mediasoup-go üzerinden
// implemente eder. Tek bir mediasoup worker process'i kullanır; her
// routing context worker içinde bir Router'a karşılık gelir.
type MediasoupEngine struct {
	worker      *mediasoup.Worker
	listenInfos []mediasoup.TransportListenInfo
	codecs      []*mediasoup.RtpCodecCapability
}

// NewMediasoupEngine, mediasoup-worker binary'sini başlatır.
// listenIP worker'ın bind edeceği adres, announcedIP ise NAT arkasında
// istemcilere duyurulacak public adres (boşsa listenIP kullanılır).
func NewMediasoupEngine(workerBin, listenIP, announcedIP string) (*MediasoupEngine, error) {
	worker, err := mediasoup.NewWorker(workerBin)
	if err != nil {
		return nil, fmt.Errorf("mediasoup worker: %w", err)
	}

	return &MediasoupEngine{
		worker: worker,
		listenInfos: []mediasoup.TransportListenInfo{
			{
				Protocol:         mediasoup.TransportProtocolUDP,
				Ip:               listenIP,
				AnnouncedAddress: announcedIP,
			},
		},
		codecs: defaultCodecs(),
	}, nil
}

// defaultCodecs, desteklenen sabit codec kümesi.
// Ses için Opus, görüntü için VP8 — WebRTC'nin her tarayıcıda bulunan
// zorunlu codec'leri. Codec negotiation istemci tarafında device load
// sırasında bu kümeye karşı yapılır.
func defaultCodecs() []*mediasoup.RtpCodecCapability {
	return []*mediasoup.RtpCodecCapability{
		{
			Kind:      mediasoup.MediaKindAudio,
			MimeType:  "audio/opus",
			ClockRate: 48000,
			Channels:  2,
		},
		{
			Kind:      mediasoup.MediaKindVideo,
			MimeType:  "video/VP8",
			ClockRate: 90000,
		},
	}
}

func (e *MediasoupEngine) CreateRoutingContext(ctx context.Context) (RoutingContext, error) {
	router, err := e.worker.CreateRouter(&mediasoup.RouterOptions{
		MediaCodecs: e.codecs,
	})
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	caps, err := json.Marshal(router.RtpCapabilities())
	if err != nil {
		router.Close()
		return nil, fmt.Errorf("marshal rtp capabilities: %w", err)
	}

	return &mediasoupContext{
		router:      router,
		caps:        caps,
		listenInfos: e.listenInfos,
	}, nil
}

// Close, worker process'ini durdurur. Uygulama shutdown'ında çağrılır.
func (e *MediasoupEngine) Close() {
	e.worker.Close()
}

// mediasoupContext, tek bir Router'ı RoutingContext olarak sarar.
// Opak json.RawMessage payload'ları burada mediasoup'un tiplerine
// çevrilir — domain katmanı bu tipleri hiç görmez.
type mediasoupContext struct {
	router      *mediasoup.Router
	caps        json.RawMessage
	listenInfos []mediasoup.TransportListenInfo
}

func (c *mediasoupContext) RtpCapabilities() json.RawMessage {
	return c.caps
}

func (c *mediasoupContext) CreateTransport(ctx context.Context) (*TransportInfo, error) {
	transport, err := c.router.CreateWebRtcTransport(&mediasoup.WebRtcTransportOptions{
		ListenInfos: c.listenInfos,
	})
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	data := transport.Data().WebRtcTransportData

	iceParams, err := json.Marshal(data.IceParameters)
	if err != nil {
		return nil, fmt.Errorf("marshal ice parameters: %w", err)
	}
	iceCandidates, err := json.Marshal(data.IceCandidates)
	if err != nil {
		return nil, fmt.Errorf("marshal ice candidates: %w", err)
	}
	dtlsParams, err := json.Marshal(data.DtlsParameters)
	if err != nil {
		return nil, fmt.Errorf("marshal dtls parameters: %w", err)
	}

	return &TransportInfo{
		ID:             transport.Id(),
		IceParameters:  iceParams,
		IceCandidates:  iceCandidates,
		DtlsParameters: dtlsParams,
	}, nil
}

func (c *mediasoupContext) ConnectTransport(ctx context.Context, transportID string, dtlsParameters json.RawMessage) error {
	transport := c.router.GetTransportById(transportID)
	if transport == nil {
		return ErrTransportNotFound
	}

	var dtls mediasoup.DtlsParameters
	if err := json.Unmarshal(dtlsParameters, &dtls); err != nil {
		return fmt.Errorf("parse dtls parameters: %w", err)
	}

	return transport.ConnectContext(ctx, &mediasoup.TransportConnectOptions{
		DtlsParameters: &dtls,
	})
}

func (c *mediasoupContext) Produce(ctx context.Context, transportID string, kind MediaKind, rtpParameters json.RawMessage) (string, error) {
	transport := c.router.GetTransportById(transportID)
	if transport == nil {
		return "", ErrTransportNotFound
	}

	var rtp mediasoup.RtpParameters
	if err := json.Unmarshal(rtpParameters, &rtp); err != nil {
		return "", fmt.Errorf("parse rtp parameters: %w", err)
	}

	producer, err := transport.ProduceContext(ctx, &mediasoup.ProducerOptions{
		Kind:          mediasoup.MediaKind(kind),
		RtpParameters: &rtp,
	})
	if err != nil {
		return "", fmt.Errorf("produce: %w", err)
	}

	return producer.Id(), nil
}

func (c *mediasoupContext) CanConsume(producerID string, rtpCapabilities json.RawMessage) bool {
	var caps mediasoup.RtpCapabilities
	if err := json.Unmarshal(rtpCapabilities, &caps); err != nil {
		return false
	}
	return c.router.CanConsume(producerID, &caps)
}

func (c *mediasoupContext) Consume(ctx context.Context, transportID, producerID string, rtpCapabilities json.RawMessage) (*ConsumerInfo, error) {
	transport := c.router.GetTransportById(transportID)
	if transport == nil {
		return nil, ErrTransportNotFound
	}

	var caps mediasoup.RtpCapabilities
	if err := json.Unmarshal(rtpCapabilities, &caps); err != nil {
		return nil, fmt.Errorf("parse rtp capabilities: %w", err)
	}

	// Consumer paused yaratılır; istemci hazır olduğunda resume ister.
	// Böylece istemcinin henüz dinlemediği track için ilk keyframe boşa gitmez.
	consumer, err := transport.ConsumeContext(ctx, &mediasoup.ConsumerOptions{
		ProducerId:      producerID,
		RtpCapabilities: &caps,
		Paused:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	rtp, err := json.Marshal(consumer.RtpParameters())
	if err != nil {
		return nil, fmt.Errorf("marshal rtp parameters: %w", err)
	}

	return &ConsumerInfo{
		ID:            consumer.Id(),
		ProducerID:    producerID,
		Kind:          MediaKind(consumer.Kind()),
		RtpParameters: rtp,
	}, nil
}

func (c *mediasoupContext) ResumeConsumer(ctx context.Context, consumerID string) error {
	consumer := c.router.GetConsumerById(consumerID)
	if consumer == nil {
		return ErrConsumerNotFound
	}
	return consumer.ResumeContext(ctx)
}

func (c *mediasoupContext) CloseTransport(transportID string) {
	if transport := c.router.GetTransportById(transportID); transport != nil {
		transport.Close()
	}
}

func (c *mediasoupContext) CloseProducer(producerID string) {
	if producer := c.router.GetProducerById(producerID); producer != nil {
		producer.Close()
	}
}

func (c *mediasoupContext) CloseConsumer(consumerID string) {
	if consumer := c.router.GetConsumerById(consumerID); consumer != nil {
		consumer.Close()
	}
}

func (c *mediasoupContext) Close() {
	c.router.Close()
}
