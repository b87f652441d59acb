package whisper

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/petems/voiceflow/internal/audio"
	"github.com/petems/voiceflow/internal/config"
)

// openAITranscriber sends each window as a small WAV upload to an
// OpenAI-compatible /audio/transcriptions endpoint.
type openAITranscriber struct {
	client   *openai.Client
	model    string
	language string
	log      zerolog.Logger
	run      serial
}

func newOpenAI(cfg config.OpenAIConfig, wcfg config.WhisperConfig, log zerolog.Logger) *openAITranscriber {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	language := wcfg.Language
	if language == "auto" {
		language = ""
	}

	return &openAITranscriber{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		language: language,
		log:      log,
		run:      newSerial(),
	}
}

func (t *openAITranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if sampleRate <= 0 {
		return "", &TranscriptionError{Engine: config.EngineOpenAI, Err: fmt.Errorf("%w: %d Hz", ErrSampleRate, sampleRate)}
	}

	text, err := t.run.do(ctx, func() (string, error) {
		body, err := audio.EncodeWAV(samples, sampleRate)
		if err != nil {
			return "", err
		}

		resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    t.model,
			FilePath: "chunk.wav",
			Reader:   bytes.NewReader(body),
			Language: t.language,
			Format:   openai.AudioResponseFormatJSON,
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Text), nil
	})
	if err != nil {
		return "", &TranscriptionError{Engine: config.EngineOpenAI, Err: err}
	}

	t.log.Debug().Int("samples", len(samples)).Int("chars", len(text)).Msg("Remote transcription done")
	return text, nil
}

func (t *openAITranscriber) Close() error {
	return nil
}
