package stream

import (
	"fmt"
	"time"
)

// Config holds the fixed parameters of a streaming pipeline
type Config struct {
	SampleRate       int           // capture rate in Hz
	ChunkDuration    time.Duration // length of each window
	OverlapDuration  time.Duration // audio shared between consecutive windows
	TargetSampleRate int           // rate expected by the transcriber
	MaxQueueDepth    int           // chunks waiting for transcription
}

// ConfigError reports an invalid Config field
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid pipeline config: %s %s", e.Field, e.Reason)
}

// DefaultConfig mirrors the capture settings of the desktop app:
// 44.1 kHz mono, 3 second windows overlapping by 1 second.
func DefaultConfig() Config {
	return Config{
		SampleRate:       44100,
		ChunkDuration:    3 * time.Second,
		OverlapDuration:  1 * time.Second,
		TargetSampleRate: 16000,
		MaxQueueDepth:    8,
	}
}

// ChunkSize is the number of samples in a full window
func (c Config) ChunkSize() int {
	return frames(c.SampleRate, c.ChunkDuration)
}

// OverlapFrames is the number of samples carried into the next window
func (c Config) OverlapFrames() int {
	return frames(c.SampleRate, c.OverlapDuration)
}

// Validate checks the limits the accumulator and queue rely on.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return &ConfigError{Field: "sample_rate", Reason: "must be positive"}
	case c.TargetSampleRate <= 0:
		return &ConfigError{Field: "target_sample_rate", Reason: "must be positive"}
	case c.ChunkDuration <= 0:
		return &ConfigError{Field: "chunk_duration", Reason: "must be positive"}
	case c.OverlapDuration < 0:
		return &ConfigError{Field: "overlap_duration", Reason: "must not be negative"}
	case c.OverlapDuration >= c.ChunkDuration:
		return &ConfigError{Field: "overlap_duration", Reason: "must be shorter than chunk_duration"}
	case c.MaxQueueDepth < 1:
		return &ConfigError{Field: "max_queue_depth", Reason: "must be at least 1"}
	}

	// The buffer only shrinks by ChunkSize-OverlapFrames per extraction
	if c.ChunkSize()-c.OverlapFrames() < 1 {
		return &ConfigError{Field: "chunk_duration", Reason: "leaves no samples to advance after overlap"}
	}
	return nil
}

// frames converts d to whole frames at rate, rounding down
func frames(rate int, d time.Duration) int {
	return int(int64(rate) * int64(d) / int64(time.Second))
}
