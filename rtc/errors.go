package rtc

import (
	"errors"

	"github.com/akinalp/voxi/pkg"
)

// Sinyalleşme katmanının hata taksonomisi.
// Service katmanı bu error'ları döner, ws katmanı wire code'a çevirip
// istemciye <op>_result event'i içinde gönderir.
var (
	ErrRoutingUnavailable       = errors.New("routing context unavailable")
	ErrTransportNotFound        = errors.New("transport not found")
	ErrProducerNotFound         = errors.New("producer not found")
	ErrConsumerNotFound         = errors.New("consumer not found")
	ErrConnectFailed            = errors.New("transport connect failed")
	ErrIncompatibleCapabilities = errors.New("incompatible rtp capabilities")
)

// ErrorCode, bir hatayı istemcinin anlayacağı sabit koda eşler.
// errors.Is ile chain kontrolü yapar — wrap edilmiş error'lar da match eder.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoutingUnavailable):
		return "ROUTING_UNAVAILABLE"
	case errors.Is(err, ErrTransportNotFound):
		return "TRANSPORT_NOT_FOUND"
	case errors.Is(err, ErrProducerNotFound):
		return "PRODUCER_NOT_FOUND"
	case errors.Is(err, ErrConsumerNotFound):
		return "CONSUMER_NOT_FOUND"
	case errors.Is(err, ErrConnectFailed):
		return "CONNECT_FAILED"
	case errors.Is(err, ErrIncompatibleCapabilities):
		return "INCOMPATIBLE_CAPABILITIES"
	// Yetki/doğrulama hataları da aynı zarftan döner — service katmanı
	// pkg sentinel'leriyle wrap eder.
	case errors.Is(err, pkg.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, pkg.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, pkg.ErrBadRequest):
		return "BAD_REQUEST"
	default:
		return "INTERNAL"
	}
}
