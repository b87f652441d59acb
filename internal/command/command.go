// Package command implements the line-delimited JSON protocol spoken on
// stdin/stdout in stdio mode.
//
// Each request is one JSON object:
//
//	{"command": "transcribe", "args": ["clip.wav"], "kwargs": {}}
//
// Positional args are matched to parameter names in order; kwargs are
// matched by name. Replies and pipeline events are written as one JSON
// object per line.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Request is the raw wire form of a command
type Request struct {
	Command string         `json:"command"`
	Args    []any          `json:"args"`
	Kwargs  map[string]any `json:"kwargs"`
}

// Command is one of RecordAudio, StopRecording, Transcribe,
// TranscribeBase64 or Status.
type Command interface {
	Name() string
}

type RecordAudio struct{}

type StopRecording struct{}

// Transcribe transcribes a WAV file on disk
type Transcribe struct {
	Path string `mapstructure:"path"`
}

// TranscribeBase64 transcribes base64-encoded audio
type TranscribeBase64 struct {
	Data     string `mapstructure:"base64_audio"`
	FileType string `mapstructure:"file_type"`
}

type Status struct{}

func (*RecordAudio) Name() string      { return "record_audio" }
func (*StopRecording) Name() string    { return "stop_recording" }
func (*Transcribe) Name() string       { return "transcribe" }
func (*TranscribeBase64) Name() string { return "transcribe_base64" }
func (*Status) Name() string           { return "status" }

func (c *Transcribe) validate() error {
	if c.Path == "" {
		return fmt.Errorf("missing argument: path")
	}
	return nil
}

func (c *TranscribeBase64) validate() error {
	if c.Data == "" {
		return fmt.Errorf("missing argument: base64_audio")
	}
	if c.FileType == "" {
		c.FileType = "wav"
	}
	return nil
}

type commandDef struct {
	params []string
	new    func() Command
}

var registry = map[string]commandDef{
	"record_audio":      {new: func() Command { return &RecordAudio{} }},
	"stop_recording":    {new: func() Command { return &StopRecording{} }},
	"status":            {new: func() Command { return &Status{} }},
	"transcribe":        {params: []string{"path"}, new: func() Command { return &Transcribe{} }},
	"transcribe_base64": {params: []string{"base64_audio", "file_type"}, new: func() Command { return &TranscribeBase64{} }},
}

// UnknownCommandError is returned for command names outside the protocol
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("Command %s not found.", e.Name)
}

// Parse decodes one request line into its Command
func Parse(line []byte) (Command, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return req.Decode()
}

// Decode resolves the request into its Command, binding args and kwargs
func (r Request) Decode() (Command, error) {
	def, ok := registry[r.Command]
	if !ok {
		return nil, &UnknownCommandError{Name: r.Command}
	}

	if len(r.Args) > len(def.params) {
		return nil, fmt.Errorf("%s takes %d arguments but %d were given", r.Command, len(def.params), len(r.Args))
	}
	params := make(map[string]any, len(r.Args)+len(r.Kwargs))
	for i, arg := range r.Args {
		params[def.params[i]] = arg
	}
	for k, v := range r.Kwargs {
		if _, dup := params[k]; dup {
			return nil, fmt.Errorf("%s got multiple values for argument %q", r.Command, k)
		}
		params[k] = v
	}

	cmd := def.new()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cmd,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(params); err != nil {
		return nil, fmt.Errorf("%s: %w", r.Command, err)
	}

	if v, ok := cmd.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", r.Command, err)
		}
	}
	return cmd, nil
}
