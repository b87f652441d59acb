package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/voiceflow/internal/config"
	"github.com/rs/zerolog"
)

// ErrCaptureRunning is returned when Start is called on a running capture
var ErrCaptureRunning = errors.New("audio capture already running")

type portAudioCapture struct {
	cfg config.AudioConfig
	log zerolog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new PortAudio-based audio capture
func New(cfg config.AudioConfig, log zerolog.Logger) (Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioCapture{
		cfg: cfg,
		log: log.With().Str("component", "capture").Logger(),
	}, nil
}

func (p *portAudioCapture) Start(ctx context.Context, deviceID string, sampleRate int, sink func([]float32), onErr func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrCaptureRunning
	}

	device, err := findDevice(deviceID)
	if err != nil {
		return err
	}

	channels := p.cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	if device.MaxInputChannels < channels {
		channels = device.MaxInputChannels
	}
	if channels < 1 {
		return fmt.Errorf("device %s has no input channels", device.Name)
	}

	frames := p.cfg.FramesPerBuffer
	if frames <= 0 {
		frames = 512
	}

	// Interleaved float32 when channels > 1
	buffer := make([]float32, frames*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: frames,
	}, buffer)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.stream = stream
	p.cancel = cancel

	p.log.Info().
		Str("device", device.Name).
		Int("sample_rate", sampleRate).
		Int("channels", channels).
		Int("frames_per_buffer", frames).
		Msg("Audio capture started")

	p.wg.Add(1)
	go p.readLoop(runCtx, stream, buffer, channels, frames, sink, onErr)

	return nil
}

func (p *portAudioCapture) readLoop(ctx context.Context, stream *portaudio.Stream, buffer []float32, channels, frames int, sink func([]float32), onErr func(error)) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				p.log.Warn().Msg("Input overflowed, samples lost")
				continue
			}
			if ctx.Err() != nil {
				return
			}
			if onErr != nil {
				onErr(fmt.Errorf("failed to read audio stream: %w", err))
			}
			return
		}

		sink(downmixInterleaved(buffer, channels, frames))
	}
}

func (p *portAudioCapture) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	stream := p.stream
	p.cancel = nil
	p.stream = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	// Let the in-flight Read and sink call finish before tearing down
	p.wg.Wait()

	err := stream.Stop()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	p.log.Info().Msg("Audio capture stopped")
	return err
}

func (p *portAudioCapture) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioCapture) Close() error {
	err := p.Stop()
	portaudio.Terminate()
	return err
}

func findDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == deviceID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", deviceID)
}

// downmixInterleaved averages interleaved channels into a fresh mono slice.
func downmixInterleaved(buffer []float32, channels, frames int) []float32 {
	out := make([]float32, frames)
	if channels <= 1 {
		copy(out, buffer[:frames])
		return out
	}

	for f := 0; f < frames; f++ {
		var sum float32
		base := f * channels
		for c := 0; c < channels; c++ {
			sum += buffer[base+c]
		}
		out[f] = sum / float32(channels)
	}
	return out
}
