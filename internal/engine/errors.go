package engine

import (
	"errors"

	"github.com/jsaldana/simplemux/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrMissingConfig = errors.New("engine: missing required configuration")
	ErrWait          = errors.New("wait")
	ErrDeviceRead    = errors.New("device_read")
	ErrDeviceWrite   = errors.New("device_write")
	ErrSocketRead    = errors.New("socket_read")
	ErrSocketSend    = errors.New("socket_send")
)

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrDeviceRead):
		return metrics.ErrTunRead
	case errors.Is(err, ErrDeviceWrite):
		return metrics.ErrTunWrite
	case errors.Is(err, ErrSocketRead):
		return metrics.ErrUDPRead
	case errors.Is(err, ErrSocketSend):
		return metrics.ErrUDPSend
	case errors.Is(err, ErrWait):
		return metrics.ErrWait
	default:
		return "other"
	}
}
