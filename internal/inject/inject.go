package inject

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/config"
	"github.com/petems/voiceflow/internal/stream"
)

// Clipboard is the system clipboard
type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// SystemClipboard returns the OS clipboard
func SystemClipboard() Clipboard {
	return systemClipboard{}
}

// Upper bound for pasting or typing one transcript
const injectTimeout = 30 * time.Second

// Settings supplies the current delivery settings. They can change between
// sessions, so the collector asks for them at every flush.
type Settings interface {
	InjectSettings() config.InjectConfig
}

// Collector gathers the results of a recording session. Once the session's
// last chunk has been transcribed it pastes the joined transcript into the
// focused app and/or copies it to the clipboard. A failed paste always
// falls back to the clipboard so the text is not lost.
type Collector struct {
	settings Settings
	clip     Clipboard
	inj      Injector // nil disables paste
	log      zerolog.Logger

	mu    sync.Mutex
	parts []string
	last  string
}

func NewCollector(settings Settings, clip Clipboard, inj Injector, log zerolog.Logger) *Collector {
	return &Collector{
		settings: settings,
		clip:     clip,
		inj:      inj,
		log:      log.With().Str("component", "inject").Logger(),
	}
}

func (c *Collector) Handle(e stream.Event) {
	switch e := e.(type) {
	case stream.StatusEvent:
		switch e.Status {
		case stream.StatusRecordingStarted:
			c.mu.Lock()
			c.parts = nil
			c.mu.Unlock()
		case stream.StatusTranscriptionComplete:
			c.flush()
		}
	case stream.ResultEvent:
		c.mu.Lock()
		c.parts = append(c.parts, e.Text)
		c.mu.Unlock()
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	parts := c.parts
	c.parts = nil
	c.mu.Unlock()

	settings := c.settings.InjectSettings()
	text := Join(parts, settings.AppendSpace)
	if text == "" {
		c.log.Info().Msg("No text to deliver")
		return
	}

	c.mu.Lock()
	c.last = text
	c.mu.Unlock()

	pasteFailed := false
	if settings.Paste && c.inj != nil {
		ctx, cancel := context.WithTimeout(context.Background(), injectTimeout)
		err := c.inj.PasteOrType(ctx, text)
		cancel()
		switch {
		case err == nil:
			c.log.Info().Int("chars", len(text)).Msg("Transcript pasted")
		case errors.Is(err, ErrUnsupported):
			c.log.Debug().Err(err).Msg("Paste unavailable, using clipboard")
			pasteFailed = true
		default:
			c.log.Warn().Err(err).Msg("Paste failed, using clipboard")
			pasteFailed = true
		}
	}

	if !settings.CopyOnStop && !pasteFailed {
		return
	}
	if err := c.clip.WriteAll(text); err != nil {
		c.log.Error().Err(err).Msg("Failed to copy transcript")
		return
	}
	c.log.Info().Int("chars", len(text)).Msg("Transcript copied to clipboard")
}

// Transcript returns the most recent session transcript
func (c *Collector) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Join builds the session transcript: results separated by single spaces,
// the first letter capitalised and, optionally, a trailing space so the
// next dictation can be pasted straight after it.
func Join(parts []string, appendSpace bool) string {
	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(text)
	if unicode.IsLower(r) {
		text = string(unicode.ToUpper(r)) + text[size:]
	}

	if appendSpace {
		text += " "
	}
	return text
}
