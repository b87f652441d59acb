package stream

import "fmt"

// Event is anything the pipeline reports to its consumers. The set is
// closed: ResultEvent, OverloadEvent, TranscriptionFailed, CaptureError and
// StatusEvent.
type Event interface {
	event()
}

// ResultEvent carries the text transcribed from one chunk
type ResultEvent struct {
	Seq   uint64
	Text  string
	Final bool
}

// OverloadEvent reports a chunk evicted from a full queue before it was
// transcribed.
type OverloadEvent struct {
	DroppedSeq uint64
}

// TranscriptionFailed reports a chunk the transcriber could not handle.
// The session carries on with the next chunk.
type TranscriptionFailed struct {
	Seq uint64
	Err error
}

// CaptureError reports a device failure. It ends the current session.
type CaptureError struct {
	Err error
}

// StatusEvent carries lifecycle notices such as "recording started"
type StatusEvent struct {
	Status string
}

const (
	StatusRecordingStarted   = "recording started"
	StatusRecordingStopped   = "recording stopped"
	StatusProcessingLeftover = "processing leftover audio"

	// Posted once the worker has handled the last chunk of a session
	StatusTranscriptionComplete = "transcription complete"
)

func (ResultEvent) event()         {}
func (OverloadEvent) event()       {}
func (TranscriptionFailed) event() {}
func (CaptureError) event()        {}
func (StatusEvent) event()         {}

func (e TranscriptionFailed) Error() string {
	return fmt.Sprintf("transcription of chunk %d failed: %v", e.Seq, e.Err)
}

func (e TranscriptionFailed) Unwrap() error { return e.Err }

func (e CaptureError) Error() string {
	return fmt.Sprintf("audio capture failed: %v", e.Err)
}

func (e CaptureError) Unwrap() error { return e.Err }
