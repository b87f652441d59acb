package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/config"
)

func testConfig(engine string) *config.Config {
	return &config.Config{
		Whisper: config.WhisperConfig{Engine: engine, Model: "base.en", Language: "auto"},
		OpenAI:  config.OpenAIConfig{APIKey: "sk-test", Model: "whisper-1"},
	}
}

func TestNewUnknownEngine(t *testing.T) {
	if _, err := New(testConfig("vosk"), zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestOpenAITranscribe(t *testing.T) {
	var gotModel, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFile = header.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "  hello world "})
	}))
	defer srv.Close()

	cfg := testConfig(config.EngineOpenAI)
	cfg.OpenAI.BaseURL = srv.URL + "/v1"

	tr, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tr.Close()

	text, err := tr.Transcribe(context.Background(), make([]float32, 1600), SampleRate)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected trimmed text, got %q", text)
	}
	if gotModel != "whisper-1" {
		t.Errorf("expected model whisper-1, got %q", gotModel)
	}
	if gotFile != "chunk.wav" {
		t.Errorf("expected upload named chunk.wav, got %q", gotFile)
	}
}

func TestOpenAITranscribeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	cfg := testConfig(config.EngineOpenAI)
	cfg.OpenAI.BaseURL = srv.URL + "/v1"
	tr, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = tr.Transcribe(context.Background(), make([]float32, 160), SampleRate)
	var terr *TranscriptionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TranscriptionError, got %v", err)
	}
	if terr.Engine != config.EngineOpenAI {
		t.Errorf("expected engine openai, got %s", terr.Engine)
	}
}

func TestSerialHonorsContext(t *testing.T) {
	s := newSerial()
	release := make(chan struct{})
	started := make(chan struct{})

	go s.do(context.Background(), func() (string, error) {
		close(started)
		<-release
		return "first", nil
	})
	<-started

	// Second caller gives up while the first job still holds the slot
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.do(ctx, func() (string, error) { return "second", nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(release)
	text, err := s.do(context.Background(), func() (string, error) { return "third", nil })
	if err != nil || text != "third" {
		t.Fatalf("expected third job to run after release, got %q, %v", text, err)
	}
}

func TestDownloadModel(t *testing.T) {
	payload := []byte("ggml model bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "models", "tiny.bin")
	if err := downloadModel(context.Background(), srv.URL, "tiny", dest, zerolog.Nop()); err != nil {
		t.Fatalf("downloadModel failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read model: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("unexpected model contents %q", got)
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be removed")
	}
}

func TestDownloadModelHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "tiny.bin")
	if err := downloadModel(context.Background(), srv.URL, "tiny", dest, zerolog.Nop()); err == nil {
		t.Fatal("expected error on HTTP 404")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("no model file should exist after a failed download")
	}
}

func TestModelsSorted(t *testing.T) {
	models := Models()
	if len(models) != len(modelURLs) {
		t.Fatalf("expected %d models, got %d", len(modelURLs), len(models))
	}
	for i := 1; i < len(models); i++ {
		if models[i-1] > models[i] {
			t.Fatalf("models not sorted: %v", models)
		}
	}
}
