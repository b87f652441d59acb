package audio

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// silentMP3 builds n MPEG-1 Layer III frames (128 kbps, 44.1 kHz, joint
// stereo) with zeroed side info and main data, which decode to silence.
func silentMP3(n int) []byte {
	const frameSize = 417 // 144 * 128000 / 44100
	frame := make([]byte, frameSize)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x64})
	return bytes.Repeat(frame, n)
}

func TestDecodeMP3Silence(t *testing.T) {
	samples, rate, err := DecodeMP3(bytes.NewReader(silentMP3(3)))
	if err != nil {
		t.Fatalf("DecodeMP3 failed: %v", err)
	}
	if rate != 44100 {
		t.Errorf("expected rate 44100, got %d", rate)
	}
	if len(samples) != 3*1152 {
		t.Errorf("expected %d mono samples, got %d", 3*1152, len(samples))
	}
	for i, s := range samples {
		if s > 1e-3 || s < -1e-3 {
			t.Fatalf("sample %d = %f, want silence", i, s)
		}
	}
}

func TestDecodeMP3Invalid(t *testing.T) {
	if _, _, err := DecodeMP3(strings.NewReader("definitely not mpeg audio")); err == nil {
		t.Error("expected error for non-MP3 data")
	}
}

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "wav", want: FormatWAV},
		{in: ".WAV", want: FormatWAV},
		{in: "audio/wav", want: FormatWAV},
		{in: "mp3", want: FormatMP3},
		{in: "audio/mpeg", want: FormatMP3},
		{in: ".Mp3", want: FormatMP3},
		{in: "flac", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("NormalizeFormat(%q) error = %v, want ErrUnsupportedFormat", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("NormalizeFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestFormatForPath(t *testing.T) {
	if f, err := FormatForPath("/tmp/memo.mp3"); err != nil || f != FormatMP3 {
		t.Errorf("FormatForPath(mp3) = %q, %v", f, err)
	}
	if f, err := FormatForPath("clip.wav"); err != nil || f != FormatWAV {
		t.Errorf("FormatForPath(wav) = %q, %v", f, err)
	}
	if _, err := FormatForPath("notes.txt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("FormatForPath(txt) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecodeDispatch(t *testing.T) {
	wav, err := EncodeWAV(make([]float32, 160), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	samples, rate, err := Decode(bytes.NewReader(wav), FormatWAV)
	if err != nil || rate != 16000 || len(samples) != 160 {
		t.Errorf("Decode(wav) = %d samples at %d, %v", len(samples), rate, err)
	}

	if _, _, err := Decode(bytes.NewReader(wav), "ogg"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Decode(ogg) error = %v, want ErrUnsupportedFormat", err)
	}
}
