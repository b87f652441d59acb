package audio

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("expected RIFF header, got %q", data[:4])
	}

	decoded, rate, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected rate 16000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		// 16-bit quantisation
		if math.Abs(float64(decoded[i]-samples[i])) > 1e-3 {
			t.Fatalf("sample %d: expected %f, got %f", i, samples[i], decoded[i])
		}
	}
}

func TestEncodeWAVRejectsEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Fatal("expected error for empty samples")
	}
	if _, err := EncodeWAV([]float32{0}, 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV(bytes.NewReader([]byte("definitely not a wav file")))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Fatalf("expected ErrInvalidWAV, got %v", err)
	}
}
