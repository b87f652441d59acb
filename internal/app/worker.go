package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/audio"
	"github.com/petems/voiceflow/internal/metrics"
	"github.com/petems/voiceflow/internal/stream"
	"github.com/petems/voiceflow/internal/whisper"
)

// worker transcribes one session's chunks strictly in queue order
type worker struct {
	queue      *stream.ChunkQueue
	stt        whisper.Transcriber
	targetRate int
	timeout    time.Duration
	emit       func(stream.Event)
	metrics    *metrics.Metrics
	log        zerolog.Logger

	lastText string
}

// run consumes the queue until it is closed and drained. Once ctx is done
// the remaining chunks are not transcribed; each is reported as a
// TranscriptionFailed carrying the cancellation cause.
func (w *worker) run(ctx context.Context) {
	for {
		chunk, ok := w.queue.Pop()
		if !ok {
			return
		}
		w.metrics.SetQueueDepth(w.queue.Len())

		if ctx.Err() != nil {
			w.metrics.RecordChunkDropped()
			w.log.Warn().Uint64("seq", chunk.Seq).Bool("final", chunk.Final).Msg("Chunk abandoned")
			w.emit(stream.TranscriptionFailed{Seq: chunk.Seq, Err: context.Cause(ctx)})
			continue
		}
		w.process(ctx, chunk)
	}
}

func (w *worker) process(ctx context.Context, chunk stream.Chunk) {
	samples := audio.Resample(chunk.Samples, chunk.SampleRate, w.targetRate)

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := w.stt.Transcribe(ctx, samples, w.targetRate)
	elapsed := time.Since(start)
	if err != nil {
		w.metrics.RecordTranscriptionFailure(elapsed.Seconds())
		w.log.Error().Err(err).Uint64("seq", chunk.Seq).Msg("Transcription failed")
		w.emit(stream.TranscriptionFailed{Seq: chunk.Seq, Err: err})
		return
	}
	w.metrics.RecordTranscriptionSuccess(elapsed.Seconds())

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	// Overlapping windows often hear the same words twice
	if !chunk.Final && text == w.lastText {
		w.metrics.RecordDuplicate()
		w.log.Debug().Uint64("seq", chunk.Seq).Msg("Duplicate transcription suppressed")
		return
	}
	w.lastText = text

	w.log.Info().
		Uint64("seq", chunk.Seq).
		Bool("final", chunk.Final).
		Dur("took", elapsed).
		Str("text", text).
		Msg("Transcribed")
	w.emit(stream.ResultEvent{Seq: chunk.Seq, Text: text, Final: chunk.Final})
}
