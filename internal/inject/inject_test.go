package inject

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/config"
	"github.com/petems/voiceflow/internal/stream"
)

type mockClipboard struct {
	writes []string
	err    error
}

func (m *mockClipboard) WriteAll(text string) error {
	if m.err != nil {
		return m.err
	}
	m.writes = append(m.writes, text)
	return nil
}

type settingsStub struct {
	mu  sync.Mutex
	cfg config.InjectConfig
}

func (s *settingsStub) InjectSettings() config.InjectConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *settingsStub) set(cfg config.InjectConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

type mockInjector struct {
	pasted []string
	err    error
}

func (m *mockInjector) Paste(ctx context.Context, text string) error { return m.PasteOrType(ctx, text) }
func (m *mockInjector) Type(ctx context.Context, text string) error  { return m.PasteOrType(ctx, text) }

func (m *mockInjector) PasteOrType(ctx context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.pasted = append(m.pasted, text)
	return nil
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name        string
		parts       []string
		appendSpace bool
		want        string
	}{
		{"empty", nil, true, ""},
		{"blank parts", []string{" ", ""}, true, ""},
		{"capitalises", []string{"hello", "world"}, false, "Hello world"},
		{"trailing space", []string{"hello"}, true, "Hello "},
		{"already upper", []string{"Hello"}, false, "Hello"},
		{"unicode", []string{"élan vital"}, false, "Élan vital"},
		{"digits untouched", []string{"3 apples"}, false, "3 apples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Join(tt.parts, tt.appendSpace); got != tt.want {
				t.Errorf("Join(%q, %v) = %q, want %q", tt.parts, tt.appendSpace, got, tt.want)
			}
		})
	}
}

func session(c *Collector, texts ...string) {
	c.Handle(stream.StatusEvent{Status: stream.StatusRecordingStarted})
	for i, text := range texts {
		c.Handle(stream.ResultEvent{Seq: uint64(i), Text: text})
	}
	c.Handle(stream.StatusEvent{Status: stream.StatusRecordingStopped})
	c.Handle(stream.StatusEvent{Status: stream.StatusTranscriptionComplete})
}

func TestCollectorCopiesOnCompletion(t *testing.T) {
	settings := &settingsStub{cfg: config.InjectConfig{CopyOnStop: true, AppendSpace: true}}
	clip := &mockClipboard{}
	c := NewCollector(settings, clip, nil, zerolog.Nop())

	session(c, "the quick", "brown fox")
	if len(clip.writes) != 1 || clip.writes[0] != "The quick brown fox " {
		t.Fatalf("unexpected clipboard writes %q", clip.writes)
	}
	if c.Transcript() != "The quick brown fox " {
		t.Errorf("unexpected transcript %q", c.Transcript())
	}

	// A new session starts from scratch
	session(c, "again")
	if len(clip.writes) != 2 || clip.writes[1] != "Again " {
		t.Fatalf("unexpected clipboard writes %q", clip.writes)
	}
}

func TestCollectorRespectsSettings(t *testing.T) {
	settings := &settingsStub{cfg: config.InjectConfig{CopyOnStop: false}}
	clip := &mockClipboard{}
	c := NewCollector(settings, clip, nil, zerolog.Nop())

	session(c, "not copied")
	if len(clip.writes) != 0 {
		t.Fatalf("copy disabled but clipboard written: %q", clip.writes)
	}
	if c.Transcript() != "Not copied" {
		t.Errorf("transcript should still be kept, got %q", c.Transcript())
	}

	settings.set(config.InjectConfig{CopyOnStop: true})
	session(c)
	if len(clip.writes) != 0 {
		t.Errorf("empty session should not touch the clipboard: %q", clip.writes)
	}
}

func TestCollectorClipboardError(t *testing.T) {
	settings := &settingsStub{cfg: config.InjectConfig{CopyOnStop: true}}
	c := NewCollector(settings, &mockClipboard{err: errors.New("no display")}, nil, zerolog.Nop())

	session(c, "still recorded")
	if c.Transcript() != "Still recorded" {
		t.Errorf("unexpected transcript %q", c.Transcript())
	}
}

func TestCollectorPastesOnCompletion(t *testing.T) {
	settings := &settingsStub{cfg: config.InjectConfig{Paste: true, AppendSpace: true}}
	clip := &mockClipboard{}
	inj := &mockInjector{}
	c := NewCollector(settings, clip, inj, zerolog.Nop())

	session(c, "paste", "me")
	if len(inj.pasted) != 1 || inj.pasted[0] != "Paste me " {
		t.Fatalf("unexpected pastes %q", inj.pasted)
	}
	if len(clip.writes) != 0 {
		t.Errorf("successful paste with copy disabled should leave the clipboard alone: %q", clip.writes)
	}

	// Both enabled: paste, then keep the text on the clipboard
	settings.set(config.InjectConfig{Paste: true, CopyOnStop: true})
	session(c, "both")
	if len(inj.pasted) != 2 || len(clip.writes) != 1 || clip.writes[0] != "Both" {
		t.Errorf("expected paste and copy, got pastes %q writes %q", inj.pasted, clip.writes)
	}
}

func TestCollectorPasteFallsBackToClipboard(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unsupported platform", ErrUnsupported},
		{"paste error", errors.New("no focused window")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := &settingsStub{cfg: config.InjectConfig{Paste: true, CopyOnStop: false}}
			clip := &mockClipboard{}
			c := NewCollector(settings, clip, &mockInjector{err: tt.err}, zerolog.Nop())

			session(c, "keep this")
			if len(clip.writes) != 1 || clip.writes[0] != "Keep this" {
				t.Fatalf("expected clipboard fallback, got %q", clip.writes)
			}
		})
	}
}

func TestCollectorPasteDisabled(t *testing.T) {
	settings := &settingsStub{cfg: config.InjectConfig{Paste: false, CopyOnStop: true}}
	inj := &mockInjector{}
	clip := &mockClipboard{}
	c := NewCollector(settings, clip, inj, zerolog.Nop())

	session(c, "copy only")
	if len(inj.pasted) != 0 {
		t.Errorf("paste disabled but injector used: %q", inj.pasted)
	}
	if len(clip.writes) != 1 {
		t.Errorf("expected one clipboard write, got %q", clip.writes)
	}
}
