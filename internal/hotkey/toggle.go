package hotkey

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/config"
)

// Recorder is the part of the app a hotkey drives
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRecording() bool
}

const stopTimeout = 30 * time.Second

// Toggle turns key presses into Start/Stop calls. Callbacks arrive on the
// platform event loop, so presses are queued and applied in order on a
// separate goroutine; Stop may block until the last chunk is transcribed.
type Toggle struct {
	rec  Recorder
	mode string
	log  zerolog.Logger

	presses chan bool
	done    chan struct{}
	down    bool // owned by run
}

// NewToggle starts a toggle in config.HotkeyToggle or
// config.HotkeyPushToTalk mode.
func NewToggle(rec Recorder, mode string, log zerolog.Logger) *Toggle {
	t := &Toggle{
		rec:     rec,
		mode:    mode,
		log:     log.With().Str("component", "hotkey").Logger(),
		presses: make(chan bool, 16),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

// OnHotkey is the Manager callback. It never blocks.
func (t *Toggle) OnHotkey(pressed bool) {
	select {
	case t.presses <- pressed:
	default:
		t.log.Warn().Bool("pressed", pressed).Msg("Hotkey event dropped, still handling earlier ones")
	}
}

// Close waits for queued presses to be applied
func (t *Toggle) Close() {
	close(t.presses)
	<-t.done
}

func (t *Toggle) run() {
	defer close(t.done)
	for pressed := range t.presses {
		t.apply(pressed)
	}
}

func (t *Toggle) apply(pressed bool) {
	// Auto-repeat delivers extra presses while the key is held
	if pressed && t.down {
		return
	}
	t.down = pressed

	switch t.mode {
	case config.HotkeyPushToTalk:
		if pressed {
			t.start()
		} else {
			t.stop()
		}
	default:
		if !pressed {
			return
		}
		if t.rec.IsRecording() {
			t.stop()
		} else {
			t.start()
		}
	}
}

func (t *Toggle) start() {
	if t.rec.IsRecording() {
		return
	}
	if err := t.rec.Start(context.Background()); err != nil {
		t.log.Error().Err(err).Msg("Failed to start dictation")
	}
}

func (t *Toggle) stop() {
	if !t.rec.IsRecording() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := t.rec.Stop(ctx); err != nil {
		t.log.Error().Err(err).Msg("Failed to stop dictation")
	}
}

// Bind registers accel on mgr so that it drives t
func Bind(mgr Manager, accel string, t *Toggle) error {
	if _, err := ParseAccel(accel); err != nil {
		return err
	}
	return mgr.Register(accel, t.OnHotkey)
}
