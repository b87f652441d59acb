package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/audio"
	"github.com/petems/voiceflow/internal/config"
	"github.com/petems/voiceflow/internal/metrics"
	"github.com/petems/voiceflow/internal/stream"
	"github.com/petems/voiceflow/internal/whisper"
)

// State is the recording lifecycle: Idle -> Recording -> Stopping -> Idle
type State int

const (
	Idle State = iota
	Recording
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not currently recording")

	// ErrAbandoned is the cause reported for chunks left untranscribed
	// when Stop's context ends before the worker has caught up.
	ErrAbandoned = errors.New("stop deadline reached before transcription")
)

// StateError is returned when an operation is not allowed in the current
// state. The state is left unchanged.
type StateError struct {
	Op    string
	State State
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %v (state %s)", e.Op, e.Err, e.State)
}

func (e *StateError) Unwrap() error { return e.Err }

type Config struct {
	Capture     audio.Capture
	Transcriber whisper.Transcriber
	Config      *config.Config
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics // Optional - can be nil

	// Optional. When nil the App creates and owns one.
	Events *stream.Dispatcher
}

type App struct {
	capture audio.Capture
	stt     whisper.Transcriber
	cfg     *config.Config
	pipe    stream.Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	events    *stream.Dispatcher
	ownEvents bool

	mu    sync.Mutex
	state State
	sess  *session
}

// session is everything that lives for one Start/Stop cycle
type session struct {
	id      string
	started time.Time

	// mu orders the capture sink against the final flush in teardown
	mu      sync.Mutex
	acc     *stream.Accumulator
	stopped bool

	queue  *stream.ChunkQueue
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// New validates the pipeline parameters and builds an idle App
func New(cfg Config) (*App, error) {
	if cfg.Capture == nil || cfg.Transcriber == nil || cfg.Config == nil {
		return nil, errors.New("app: capture, transcriber and config are required")
	}

	pipe := cfg.Config.Pipeline()
	if err := pipe.Validate(); err != nil {
		return nil, err
	}

	events := cfg.Events
	own := false
	if events == nil {
		events = stream.NewDispatcher()
		own = true
	}
	events.Start()

	return &App{
		capture:   cfg.Capture,
		stt:       cfg.Transcriber,
		cfg:       cfg.Config,
		pipe:      pipe,
		log:       cfg.Logger.With().Str("component", "app").Logger(),
		metrics:   cfg.Metrics,
		events:    events,
		ownEvents: own,
	}, nil
}

// Events returns the dispatcher results are delivered through
func (a *App) Events() *stream.Dispatcher {
	return a.events
}

func (a *App) post(e stream.Event) {
	a.events.Post(e)
}

// Start begins a recording session
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Idle {
		return &StateError{Op: "start", State: a.state, Err: ErrAlreadyRecording}
	}

	acc, err := stream.NewAccumulatorFromConfig(a.pipe)
	if err != nil {
		return err
	}

	s := &session{
		id:      uuid.NewString(),
		started: time.Now(),
		acc:     acc,
		done:    make(chan struct{}),
	}
	log := a.log.With().Str("session", s.id).Logger()

	s.queue = stream.NewChunkQueue(a.pipe.MaxQueueDepth, func(dropped stream.Chunk) {
		a.metrics.RecordChunkDropped()
		log.Warn().Uint64("seq", dropped.Seq).Msg("Transcription falling behind, dropped oldest chunk")
		a.post(stream.OverloadEvent{DroppedSeq: dropped.Seq})
	})

	workerCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	s.cancel = cancel
	w := &worker{
		queue:      s.queue,
		stt:        a.stt,
		targetRate: a.pipe.TargetSampleRate,
		timeout:    a.cfg.Whisper.Timeout,
		emit:       a.post,
		metrics:    a.metrics,
		log:        log,
	}
	go func() {
		defer close(s.done)
		w.run(workerCtx)
	}()

	err = a.capture.Start(context.WithoutCancel(ctx), a.cfg.Audio.DeviceID, a.pipe.SampleRate,
		a.sinkFor(s, log),
		func(err error) { a.onCaptureError(s, err) },
	)
	if err != nil {
		s.queue.Close()
		<-s.done
		cancel(nil)
		return fmt.Errorf("failed to start capture: %w", err)
	}

	a.sess = s
	a.state = Recording
	a.metrics.SetRecording(true)
	log.Info().
		Int("chunk_size", a.pipe.ChunkSize()).
		Int("overlap_frames", a.pipe.OverlapFrames()).
		Msg("Recording started")
	a.post(stream.StatusEvent{Status: stream.StatusRecordingStarted})

	return nil
}

// sinkFor returns the capture callback for s. It only appends, extracts and
// pushes; Push never blocks.
func (a *App) sinkFor(s *session, log zerolog.Logger) func([]float32) {
	return func(block []float32) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.stopped {
			return
		}
		s.acc.Append(block)
		for _, chunk := range s.acc.ExtractReady() {
			a.metrics.RecordChunkExtracted()
			if _, err := s.queue.Push(chunk); err != nil {
				log.Debug().Err(err).Uint64("seq", chunk.Seq).Msg("Chunk discarded")
			}
		}
		a.metrics.SetQueueDepth(s.queue.Len())
	}
}

// Stop ends the session: capture stops, the remaining buffer is flushed as a
// final chunk and Stop returns once the worker has transcribed everything.
// If ctx ends first the in-flight transcription is abandoned.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.state != Recording {
		state := a.state
		a.mu.Unlock()
		return &StateError{Op: "stop", State: state, Err: ErrNotRecording}
	}
	a.state = Stopping
	s := a.sess
	a.mu.Unlock()

	err := a.teardown(ctx, s)

	a.mu.Lock()
	a.sess = nil
	a.state = Idle
	a.mu.Unlock()

	return err
}

func (a *App) teardown(ctx context.Context, s *session) error {
	log := a.log.With().Str("session", s.id).Logger()

	stopErr := a.capture.Stop()
	if stopErr != nil {
		log.Warn().Err(stopErr).Msg("Failed to stop capture cleanly")
	}
	a.metrics.SetRecording(false)
	a.post(stream.StatusEvent{Status: stream.StatusRecordingStopped})

	s.mu.Lock()
	s.stopped = true
	chunks := s.acc.ExtractReady()
	final, hasFinal := s.acc.DrainRemainder()
	s.mu.Unlock()

	for _, chunk := range chunks {
		a.metrics.RecordChunkExtracted()
		s.queue.Push(chunk)
	}
	if hasFinal {
		a.metrics.RecordChunkExtracted()
		a.post(stream.StatusEvent{Status: stream.StatusProcessingLeftover})
		s.queue.Push(final)
	}
	s.queue.Close()

	var err error
	select {
	case <-s.done:
	case <-ctx.Done():
		log.Warn().Msg("Stop deadline reached, abandoning pending transcriptions")
		s.cancel(ErrAbandoned)
		<-s.done
		err = ctx.Err()
	}
	s.cancel(nil)

	a.metrics.SetQueueDepth(0)
	log.Info().Dur("duration", time.Since(s.started)).Msg("Recording stopped")
	a.post(stream.StatusEvent{Status: stream.StatusTranscriptionComplete})

	if err != nil {
		return err
	}
	if stopErr != nil {
		return fmt.Errorf("failed to stop capture: %w", stopErr)
	}
	return nil
}

// onCaptureError runs on the capture goroutine. Teardown waits for that
// goroutine, so it has to happen elsewhere.
func (a *App) onCaptureError(s *session, err error) {
	a.metrics.RecordCaptureError()
	a.log.Error().Err(err).Str("session", s.id).Msg("Audio capture failed")
	a.post(stream.CaptureError{Err: err})

	go func() {
		a.mu.Lock()
		if a.sess != s || a.state != Recording {
			a.mu.Unlock()
			return
		}
		a.state = Stopping
		a.mu.Unlock()

		a.teardown(context.Background(), s)

		a.mu.Lock()
		a.sess = nil
		a.state = Idle
		a.mu.Unlock()
	}()
}

// TranscribeFile transcribes a WAV or MP3 file in one call, picking the
// decoder from the extension. It does not touch the recording session and
// may run while one is active.
func (a *App) TranscribeFile(ctx context.Context, path string) (string, error) {
	format, err := audio.FormatForPath(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	return a.TranscribeAudio(ctx, f, format)
}

// TranscribeAudio is TranscribeFile for an in-memory or streamed file.
// format is audio.FormatWAV or audio.FormatMP3.
func (a *App) TranscribeAudio(ctx context.Context, r io.ReadSeeker, format string) (string, error) {
	samples, rate, err := audio.Decode(r, format)
	if err != nil {
		return "", err
	}

	samples = audio.Resample(samples, rate, a.pipe.TargetSampleRate)
	if a.cfg.Whisper.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Whisper.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := a.stt.Transcribe(ctx, samples, a.pipe.TargetSampleRate)
	if err != nil {
		a.metrics.RecordTranscriptionFailure(time.Since(start).Seconds())
		return "", err
	}
	a.metrics.RecordTranscriptionSuccess(time.Since(start).Seconds())

	return strings.TrimSpace(text), nil
}

func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) IsRecording() bool {
	return a.State() == Recording
}

// Status is a point-in-time view of the App for status endpoints
type Status struct {
	State      string `json:"state"`
	SessionID  string `json:"session_id,omitempty"`
	QueueDepth int    `json:"queue_depth"`
	Engine     string `json:"engine"`
	Model      string `json:"model"`
	DeviceID   string `json:"device_id,omitempty"`
}

func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := Status{
		State:    a.state.String(),
		Engine:   a.cfg.Whisper.Engine,
		Model:    a.cfg.Whisper.Model,
		DeviceID: a.cfg.Audio.DeviceID,
	}
	if a.sess != nil {
		st.SessionID = a.sess.id
		st.QueueDepth = a.sess.queue.Len()
	}
	return st
}

// Shutdown stops any active session and flushes pending events
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if stopErr := a.Stop(ctx); stopErr != nil && !errors.Is(stopErr, ErrNotRecording) {
		err = stopErr
	}

	// A capture failure teardown may still be running
	for a.State() != Idle {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	if a.ownEvents {
		a.events.Close()
	}
	return err
}

// Tray actions

func (a *App) ListDevices() ([]audio.AudioDevice, error) {
	return a.capture.ListDevices()
}

func (a *App) SetDevice(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Idle {
		return fmt.Errorf("cannot change device while %s", a.state)
	}

	a.cfg.Audio.DeviceID = id
	return a.cfg.Save()
}

// InjectSettings returns a snapshot of the transcript delivery settings
func (a *App) InjectSettings() config.InjectConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Inject
}

// SetCopyOnStop switches clipboard copy of finished transcripts and saves it
func (a *App) SetCopyOnStop(enabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg.Inject.CopyOnStop = enabled
	return a.cfg.Save()
}

func (a *App) SetModel(model string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != Idle {
		return fmt.Errorf("cannot change model while %s", a.state)
	}

	if loader, ok := a.stt.(whisper.ModelLoader); ok {
		if err := loader.LoadModel(model); err != nil {
			return err
		}
	}

	a.cfg.Whisper.Model = model
	return a.cfg.Save()
}
