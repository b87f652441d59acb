package audio

import "context"

// Capture defines the interface for live audio capture.
//
// Start delivers mono float32 blocks to sink from a dedicated goroutine,
// one call per device block. sink must return quickly. A device failure is
// passed to onErr once, after which no more blocks are delivered. Stop is
// idempotent and returns only after the last sink call has finished, so it
// must not be called from inside sink.
type Capture interface {
	Start(ctx context.Context, deviceID string, sampleRate int, sink func([]float32), onErr func(error)) error
	Stop() error
	ListDevices() ([]AudioDevice, error)
	Close() error
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string
	Name    string
	Default bool
}
