package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when the input is not a readable WAV stream
var ErrInvalidWAV = errors.New("invalid WAV data")

// DecodeWAV reads a PCM WAV stream and returns mono float32 samples with
// the file's sample rate. Multi-channel files are averaged down.
func DecodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, ErrInvalidWAV
	}

	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = int(dec.BitDepth)
	}
	scale := float32(math.Pow(2, float64(depth-1)))
	if scale <= 0 {
		return nil, 0, fmt.Errorf("%w: bit depth %d", ErrInvalidWAV, depth)
	}

	interleaved := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		interleaved[i] = float32(v) / scale
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	frames := len(interleaved) / channels
	return downmixInterleaved(interleaved, channels, frames), buf.Format.SampleRate, nil
}

// EncodeWAV encodes mono samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * math.MaxInt16)
	}

	out := &memWriteSeeker{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return out.buf, nil
}

// memWriteSeeker is the in-memory io.WriteSeeker the WAV encoder needs to
// patch its header after writing the data.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, end, end*2)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	m.pos = int(abs)
	return abs, nil
}
