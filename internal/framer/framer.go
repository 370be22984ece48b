// Package framer reduces a model's token stream to a single structured
// envelope. Fragments are accumulated whole before parsing: intermediate
// fragments are not guaranteed to contain balanced JSON, so incremental
// parsing would only add failure modes.
package framer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoEnvelope is returned when the accumulated text contains no parseable
// JSON object.
var ErrNoEnvelope = errors.New("no structured envelope in model output")

// Framer accumulates stream fragments for one model turn.
type Framer struct {
	buf strings.Builder
}

// New creates an empty framer for a single turn.
func New() *Framer {
	return &Framer{}
}

// Write appends one stream fragment.
func (f *Framer) Write(fragment string) {
	f.buf.WriteString(fragment)
}

// Len returns the number of accumulated bytes.
func (f *Framer) Len() int {
	return f.buf.Len()
}

// Finish parses the accumulated buffer into an envelope. The raw buffer is
// returned alongside any error so callers can log what the model actually
// produced.
func (f *Framer) Finish() (*Envelope, string, error) {
	raw := f.buf.String()
	env, err := Extract(raw)
	return env, raw, err
}

// Extract locates the first '{' and the last '}' in text and decodes the
// enclosed slice as an envelope. Surrounding noise is ignored. The
// response_type field is canonicalized to underscore form so downstream
// comparisons are exact-match.
func Extract(text string) (*Envelope, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return nil, ErrNoEnvelope
	}
	end := strings.LastIndexByte(text, '}')
	if end == -1 || end < start {
		return nil, ErrNoEnvelope
	}

	var env Envelope
	if err := json.Unmarshal([]byte(text[start:end+1]), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoEnvelope, err)
	}

	env.ResponseType = strings.ReplaceAll(env.ResponseType, "-", "_")
	return &env, nil
}
