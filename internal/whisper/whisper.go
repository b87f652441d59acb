package whisper

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/config"
)

// SampleRate is the rate every whisper model expects
const SampleRate = 16000

// Transcriber turns a window of mono samples into text.
// Implementations serialize calls internally; the engines behind them are
// not reentrant.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
	Close() error
}

// ModelLoader is implemented by transcribers that can swap models at runtime
type ModelLoader interface {
	LoadModel(model string) error
}

// TranscriptionError wraps a failure of a single transcription call
type TranscriptionError struct {
	Engine string
	Err    error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("%s transcription failed: %v", e.Engine, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// ErrSampleRate is returned when samples arrive at a rate the engine cannot use
var ErrSampleRate = errors.New("unsupported sample rate")

// New creates the transcriber selected by cfg.Whisper.Engine
func New(cfg *config.Config, log zerolog.Logger) (Transcriber, error) {
	log = log.With().Str("component", "whisper").Str("engine", cfg.Whisper.Engine).Logger()

	switch cfg.Whisper.Engine {
	case config.EngineWhisperCpp, "":
		return newCpp(cfg.Whisper, log)
	case config.EngineOpenAI:
		return newOpenAI(cfg.OpenAI, cfg.Whisper, log), nil
	default:
		return nil, fmt.Errorf("unknown transcription engine %q", cfg.Whisper.Engine)
	}
}

// serial runs one job at a time. A caller whose context ends while waiting
// or while its job runs gets ctx.Err(); the job itself always runs to
// completion before the next one starts.
type serial struct {
	sem chan struct{}
}

func newSerial() serial {
	return serial{sem: make(chan struct{}, 1)}
}

func (s serial) do(ctx context.Context, job func() (string, error)) (string, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() { <-s.sem }()
		text, err := job()
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
