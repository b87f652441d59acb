//go:build !whisper_cpp

package whisper

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/config"
)

// ErrNoWhisperCpp is returned when the binary was built without the
// whisper_cpp tag and therefore without the cgo bindings.
var ErrNoWhisperCpp = errors.New("whisper-cpp engine unavailable: rebuild with -tags whisper_cpp or set whisper.engine=openai")

func newCpp(cfg config.WhisperConfig, log zerolog.Logger) (Transcriber, error) {
	return nil, ErrNoWhisperCpp
}
