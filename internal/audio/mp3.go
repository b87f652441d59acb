package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// ErrUnsupportedFormat is returned for audio containers other than WAV and MP3
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Container formats accepted by Decode
const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
)

// NormalizeFormat maps file types, extensions and MIME types onto
// FormatWAV or FormatMP3.
func NormalizeFormat(fileType string) (string, error) {
	ft := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))
	switch ft {
	case "wav", "wave", "audio/wav", "audio/x-wav", "audio/wave":
		return FormatWAV, nil
	case "mp3", "audio/mpeg", "audio/mp3":
		return FormatMP3, nil
	}
	return "", fmt.Errorf("%w %q: use wav or mp3", ErrUnsupportedFormat, fileType)
}

// FormatForPath picks the format from a file extension
func FormatForPath(path string) (string, error) {
	return NormalizeFormat(filepath.Ext(path))
}

// Decode reads a WAV or MP3 stream as mono float32 samples
func Decode(r io.ReadSeeker, format string) ([]float32, int, error) {
	switch format {
	case FormatWAV:
		return DecodeWAV(r)
	case FormatMP3:
		return DecodeMP3(r)
	}
	return nil, 0, fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
}

// DecodeMP3 reads an MP3 stream and returns mono float32 samples with the
// stream's sample rate. The decoder always yields 16-bit stereo.
func DecodeMP3(r io.Reader) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	const channels = 2
	frames := len(pcm) / (2 * channels)
	interleaved := make([]float32, frames*channels)
	for i := range interleaved {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		interleaved[i] = float32(v) / 32768
	}
	return downmixInterleaved(interleaved, channels, frames), dec.SampleRate(), nil
}
