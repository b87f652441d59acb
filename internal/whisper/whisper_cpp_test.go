//go:build whisper_cpp

package whisper

import (
	"testing"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/petems/voiceflow/internal/config"
)

// Calls made by cppTranscriber.Transcribe, pinned to the bindings' API
var (
	_ func(whisper.Context, []float32, whisper.SegmentCallback) error = whisper.Context.Process
	_ func(whisper.Context) (whisper.Segment, error)                  = whisper.Context.NextSegment
)

func TestWhisperCppBuilt(t *testing.T) {
	if !config.WhisperCppBuilt {
		t.Fatal("config.WhisperCppBuilt must be true in whisper_cpp builds")
	}
}
