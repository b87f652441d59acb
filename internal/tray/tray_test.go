package tray

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/petems/voiceflow/internal/app"
	"github.com/petems/voiceflow/internal/stream"
)

// Settings changed from the menu go through the app's locked accessors
var _ Controller = (*app.App)(nil)

func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"recording", "🔴"},
		{"processing", "🟡"},
		{"idle", "🟢"},
		{"error", "⚪️"},
		{"unknown", "🟢"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := emojiForStatus(tt.status); got != tt.want {
				t.Errorf("emojiForStatus(%q) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestStatusForEvent(t *testing.T) {
	tests := []struct {
		name   string
		event  stream.Event
		want   string
		wantOK bool
	}{
		{"started", stream.StatusEvent{Status: stream.StatusRecordingStarted}, "recording", true},
		{"stopped", stream.StatusEvent{Status: stream.StatusRecordingStopped}, "processing", true},
		{"leftover", stream.StatusEvent{Status: stream.StatusProcessingLeftover}, "processing", true},
		{"complete", stream.StatusEvent{Status: stream.StatusTranscriptionComplete}, "idle", true},
		{"capture error", stream.CaptureError{Err: errors.New("gone")}, "error", true},
		{"result", stream.ResultEvent{Seq: 1, Text: "hi"}, "", false},
		{"overload", stream.OverloadEvent{DroppedSeq: 2}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := statusForEvent(tt.event)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("statusForEvent() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTooltipFor(t *testing.T) {
	if got := tooltipFor(""); got != defaultTooltip {
		t.Errorf("empty text should give the default tooltip, got %q", got)
	}
	if got := tooltipFor("short text"); got != "short text" {
		t.Errorf("short text should be unchanged, got %q", got)
	}

	long := strings.Repeat("ä", 100) + " the end"
	got := tooltipFor(long)
	if utf8.RuneCountInString(got) != maxTooltip {
		t.Errorf("expected %d runes, got %d", maxTooltip, utf8.RuneCountInString(got))
	}
	if !strings.HasPrefix(got, "…") || !strings.HasSuffix(got, " the end") {
		t.Errorf("expected ellipsis and tail, got %q", got)
	}
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"windows", "cmd"},
	}
	for _, tt := range tests {
		name, args := openCommand(tt.goos, "/tmp/voiceflow.log")
		if name != tt.want {
			t.Errorf("%s: command = %s, want %s", tt.goos, name, tt.want)
		}
		if args[len(args)-1] != "/tmp/voiceflow.log" {
			t.Errorf("%s: path should be last argument, got %v", tt.goos, args)
		}
	}
}
