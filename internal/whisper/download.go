package whisper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Model download URLs (Hugging Face)
var modelURLs = map[string]string{
	"base.en":        "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
	"small.en":       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.en.bin",
	"medium.en":      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.en.bin",
	"large-v3":       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
	"large-v3-turbo": "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
}

// Models lists the model names that can be downloaded on demand
func Models() []string {
	names := make([]string, 0, len(modelURLs))
	for name := range modelURLs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// progressWriter logs download progress at most every interval
type progressWriter struct {
	total      int64
	downloaded int64
	lastLog    time.Time
	interval   time.Duration
	model      string
	log        zerolog.Logger
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	now := time.Now()
	if now.Sub(pw.lastLog) >= pw.interval || pw.downloaded >= pw.total {
		pw.lastLog = now
		pw.log.Info().
			Str("model", pw.model).
			Float64("percent", float64(pw.downloaded)/float64(pw.total)*100).
			Float64("downloaded_mb", float64(pw.downloaded)/1024/1024).
			Float64("total_mb", float64(pw.total)/1024/1024).
			Msg("Downloading model")
	}

	return n, nil
}

// downloadModel fetches url into destPath via a temp file so a partial
// download never looks like a usable model.
func downloadModel(ctx context.Context, url, model, destPath string, log zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	tmpPath := destPath + ".tmp"
	defer os.Remove(tmpPath)

	log.Info().Str("model", model).Str("url", url).Msg("Starting model download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download model: HTTP %d", resp.StatusCode)
	}

	totalSize := resp.ContentLength
	if totalSize <= 0 {
		log.Warn().Str("model", model).Msg("Content-Length not provided, progress tracking unavailable")
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	var writer io.Writer = out
	if totalSize > 0 {
		writer = io.MultiWriter(out, &progressWriter{
			total:    totalSize,
			model:    model,
			lastLog:  time.Now(),
			interval: 2 * time.Second,
			log:      log,
		})
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to move model file: %w", err)
	}

	log.Info().
		Str("model", model).
		Str("path", destPath).
		Float64("size_mb", float64(totalSize)/1024/1024).
		Msg("Model downloaded successfully")

	return nil
}

// TODO: verify SHA256 against the published ggml checksums
