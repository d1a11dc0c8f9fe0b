// Package rtc, sesli/görüntülü kanalların medya oturum defterini tutar.
//
// Medya motorunun kendisi (SFU) bu paket için kara kutudur: Engine
// interface'i motorun sunduğu işlemleri soyutlar, Registry ise hangi
// kullanıcının hangi kanalda hangi transport/producer/consumer'a sahip
// olduğunu takip eder. RTP parametreleri gibi motor-spesifik payload'lar
// json.RawMessage olarak opak taşınır — registry bunların içine bakmaz,
// istemci kütüphanesi ile motor arasında aynen geçirir.
package rtc

import (
	"context"
	"encoding/json"
)

// MediaKind, motorun anladığı ham medya türü.
// Uygulama seviyesindeki MediaType bundan daha zengindir (ekran paylaşımı
// da sonuçta bir video ya da audio track'idir).
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// MediaType, uygulama seviyesindeki medya slotu.
// Bir kullanıcı kanal başına her MediaType için en fazla bir producer
// tutar; yeni produce eskisinin yerine geçer.
type MediaType string

const (
	MediaTypeAudio       MediaType = "audio"
	MediaTypeVideo       MediaType = "video"
	MediaTypeScreen      MediaType = "screen"
	MediaTypeScreenAudio MediaType = "screen_audio"
)

// Kind, MediaType'ı motorun beklediği ham türe indirger.
func (t MediaType) Kind() MediaKind {
	switch t {
	case MediaTypeAudio, MediaTypeScreenAudio:
		return MediaKindAudio
	default:
		return MediaKindVideo
	}
}

// Valid, istemciden gelen string'in bilinen bir slot olup olmadığını söyler.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeAudio, MediaTypeVideo, MediaTypeScreen, MediaTypeScreenAudio:
		return true
	}
	return false
}

// TransportInfo, yeni yaratılmış bir transport'un istemciye dönecek
// bağlantı parametreleri. ICE/DTLS alanları motor formatında opak JSON'dır.
type TransportInfo struct {
	ID             string          `json:"id"`
	IceParameters  json.RawMessage `json:"ice_parameters"`
	IceCandidates  json.RawMessage `json:"ice_candidates"`
	DtlsParameters json.RawMessage `json:"dtls_parameters"`
}

// ConsumerInfo, yeni yaratılmış bir consumer'ın istemciye dönecek bilgileri.
// Consumer her zaman paused doğar; istemci kendi tarafını hazırlayınca
// resume ister.
type ConsumerInfo struct {
	ID            string          `json:"id"`
	ProducerID    string          `json:"producer_id"`
	Kind          MediaKind       `json:"kind"`
	RtpParameters json.RawMessage `json:"rtp_parameters"`
}

// Engine, medya motorunun registry'ye sunduğu tek kapı.
// Üretimde mediasoup worker'ını saran adapter, testlerde in-memory fake
// bu interface'i implemente eder.
type Engine interface {
	// CreateRoutingContext, bir kanal için yeni bir medya yönlendirme
	// bağlamı (mediasoup terminolojisinde router) açar.
	CreateRoutingContext(ctx context.Context) (RoutingContext, error)
}

// RoutingContext, tek bir kanalın medya düzlemi.
// Kanalın tüm transport/producer/consumer'ları bu bağlama bağlıdır;
// bağlam kapanınca motor tarafında hepsi onunla birlikte gider.
type RoutingContext interface {
	// RtpCapabilities, istemcinin cihaz yükleme aşamasında ihtiyaç
	// duyduğu codec yeteneklerini döner.
	RtpCapabilities() json.RawMessage

	CreateTransport(ctx context.Context) (*TransportInfo, error)
	ConnectTransport(ctx context.Context, transportID string, dtlsParameters json.RawMessage) error

	// Produce, transport üzerinde yeni bir medya kaynağı açar ve
	// motor tarafındaki producer ID'sini döner.
	Produce(ctx context.Context, transportID string, kind MediaKind, rtpParameters json.RawMessage) (string, error)

	// CanConsume, verilen yeteneklerle producer'ın tüketilip
	// tüketilemeyeceğini söyler. Consume'dan önce mutlaka sorulur.
	CanConsume(producerID string, rtpCapabilities json.RawMessage) bool

	// Consume, producer'ı paused durumda tüketmeye başlar.
	Consume(ctx context.Context, transportID, producerID string, rtpCapabilities json.RawMessage) (*ConsumerInfo, error)
	ResumeConsumer(ctx context.Context, consumerID string) error

	// Close* çağrıları idempotent'tir; motor tarafında zaten kapalı
	// bir nesne için sessizce no-op olurlar.
	CloseTransport(transportID string)
	CloseProducer(producerID string)
	CloseConsumer(consumerID string)

	// Close, bağlamı ve ona bağlı her şeyi kapatır.
	Close()
}
