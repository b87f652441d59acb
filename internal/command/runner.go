package command

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/voiceflow/internal/app"
	"github.com/petems/voiceflow/internal/audio"
	"github.com/petems/voiceflow/internal/stream"
)

// maxLine bounds a single request; base64 audio makes lines long
const maxLine = 64 << 20

// Controller is the part of the App the protocol drives
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	TranscribeFile(ctx context.Context, path string) (string, error)
	TranscribeAudio(ctx context.Context, r io.ReadSeeker, format string) (string, error)
	Status() app.Status
}

// Writer emits JSON lines. It is safe for concurrent use and doubles as an
// event sink so replies and pipeline events share one ordered stream.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
	log zerolog.Logger
}

func NewWriter(w io.Writer, log zerolog.Logger) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc, log: log}
}

// Write encodes v as a single line
func (w *Writer) Write(v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(v); err != nil {
		w.log.Error().Err(err).Msg("Failed to write reply")
		w.enc.Encode(map[string]string{"error": fmt.Sprintf("JSON Encoding Error: %v", err)})
	}
}

func (w *Writer) Error(msg string) {
	w.Write(map[string]string{"error": msg})
}

// Handle renders pipeline events
func (w *Writer) Handle(e stream.Event) {
	if msg := EventMessage(e); msg != nil {
		w.Write(msg)
	}
}

// EventMessage is the wire form of a pipeline event, shared by stdout and
// the websocket stream.
func EventMessage(e stream.Event) map[string]any {
	switch e := e.(type) {
	case stream.ResultEvent:
		return map[string]any{"result": e.Text, "seq": e.Seq, "final": e.Final}
	case stream.OverloadEvent:
		return map[string]any{"overload": map[string]any{"dropped_seq": e.DroppedSeq}}
	case stream.TranscriptionFailed:
		return map[string]any{"error": fmt.Sprintf("Error during transcription: %v", e.Err), "seq": e.Seq}
	case stream.CaptureError:
		return map[string]any{"error": e.Error()}
	case stream.StatusEvent:
		return map[string]any{"status": e.Status}
	}
	return nil
}

// Runner reads requests and executes them one at a time
type Runner struct {
	ctl Controller
	out *Writer
	log zerolog.Logger
}

func NewRunner(ctl Controller, out *Writer, log zerolog.Logger) *Runner {
	return &Runner{
		ctl: ctl,
		out: out,
		log: log.With().Str("component", "command").Logger(),
	}
}

// Run processes requests from in until EOF or ctx is done. Malformed or
// failing requests produce an error reply and never end the loop.
func (r *Runner) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		cmd, err := Parse(line)
		if err != nil {
			r.log.Warn().Err(err).Msg("Rejected request")
			r.out.Error(err.Error())
			continue
		}
		r.Execute(ctx, cmd)
	}
	return sc.Err()
}

// Execute runs a single command and writes its reply, if any
func (r *Runner) Execute(ctx context.Context, cmd Command) {
	r.log.Debug().Str("command", cmd.Name()).Msg("Executing")

	switch c := cmd.(type) {
	case *RecordAudio:
		if err := r.ctl.Start(ctx); err != nil {
			r.out.Error(stateMessage(err))
		}

	case *StopRecording:
		if err := r.ctl.Stop(ctx); err != nil {
			r.out.Error(stateMessage(err))
		}

	case *Transcribe:
		text, err := r.ctl.TranscribeFile(ctx, c.Path)
		if err != nil {
			r.out.Error(fmt.Sprintf("Error processing audio file: %v", err))
			return
		}
		r.out.Write(map[string]string{"result": text})

	case *TranscribeBase64:
		text, err := r.transcribeBase64(ctx, c)
		if err != nil {
			r.out.Error(fmt.Sprintf("Error processing Base64 audio: %v", err))
			return
		}
		r.out.Write(map[string]string{"result": text})

	case *Status:
		st := r.ctl.Status()
		r.out.Write(map[string]any{
			"status":      st.State,
			"session_id":  st.SessionID,
			"queue_depth": st.QueueDepth,
			"engine":      st.Engine,
			"model":       st.Model,
		})

	default:
		r.out.Error(fmt.Sprintf("Command %s is not callable.", cmd.Name()))
	}
}

func (r *Runner) transcribeBase64(ctx context.Context, c *TranscribeBase64) (string, error) {
	format, err := audio.NormalizeFormat(c.FileType)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(c.Data)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	return r.ctl.TranscribeAudio(ctx, bytes.NewReader(raw), format)
}

// stateMessage keeps the protocol's fixed wording for state errors
func stateMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrAlreadyRecording):
		return "Already recording"
	case errors.Is(err, app.ErrNotRecording):
		return "Not currently recording"
	default:
		return err.Error()
	}
}
