//go:build whisper_cpp

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/config"
)

type cppTranscriber struct {
	cfg config.WhisperConfig
	log zerolog.Logger
	run serial

	mu        sync.Mutex
	model     whisper.Model
	modelPath string
}

// newCpp loads (downloading if needed) a ggml model through the whisper.cpp bindings
func newCpp(cfg config.WhisperConfig, log zerolog.Logger) (Transcriber, error) {
	t := &cppTranscriber{
		cfg: cfg,
		log: log,
		run: newSerial(),
	}
	if err := t.LoadModel(cfg.Model); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *cppTranscriber) LoadModel(model string) error {
	modelPath := filepath.Join(config.ModelsPath(), model+".bin")

	// Check if model exists, download if needed
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		url, ok := modelURLs[model]
		if !ok {
			return fmt.Errorf("unknown model: %s", model)
		}
		if err := downloadModel(context.Background(), url, model, modelPath, t.log); err != nil {
			return fmt.Errorf("failed to download model: %w", err)
		}
	}

	newModel, err := whisper.New(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	t.mu.Lock()
	old := t.model
	t.model = newModel
	t.modelPath = modelPath
	t.mu.Unlock()

	if old != nil {
		old.Close()
	}
	t.log.Info().Str("model", model).Str("path", modelPath).Msg("Whisper model loaded")
	return nil
}

func (t *cppTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if sampleRate != SampleRate {
		return "", &TranscriptionError{Engine: config.EngineWhisperCpp, Err: fmt.Errorf("%w: %d Hz", ErrSampleRate, sampleRate)}
	}

	text, err := t.run.do(ctx, func() (string, error) {
		return t.process(samples)
	})
	if err != nil {
		return "", &TranscriptionError{Engine: config.EngineWhisperCpp, Err: err}
	}
	return text, nil
}

func (t *cppTranscriber) process(samples []float32) (string, error) {
	t.mu.Lock()
	model := t.model
	t.mu.Unlock()
	if model == nil {
		return "", fmt.Errorf("model not loaded")
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create context: %w", err)
	}

	if t.cfg.Threads > 0 {
		wctx.SetThreads(uint(t.cfg.Threads))
	}
	if t.cfg.Language != "auto" && t.cfg.Language != "" {
		if err := wctx.SetLanguage(t.cfg.Language); err != nil {
			return "", fmt.Errorf("failed to set language: %w", err)
		}
	}
	wctx.SetTranslate(false)

	if err := wctx.Process(samples, nil); err != nil {
		return "", fmt.Errorf("whisper process failed: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read segment: %w", err)
		}
		parts = append(parts, strings.TrimSpace(segment.Text))
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

func (t *cppTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.model != nil {
		t.model.Close()
		t.model = nil
	}
	return nil
}
