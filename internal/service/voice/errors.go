package voice

import "fmt"

// Kind classifies pipeline failures for the HTTP layer. Client-facing
// messages never echo raw input or upstream detail.
type Kind int

const (
	// KindValidation covers missing input, oversized audio and malformed
	// base64 (400).
	KindValidation Kind = iota
	// KindBusy covers upstream quota, rate-limit and credential failures
	// (503).
	KindBusy
	// KindTranscribe is a fatal transcription failure (500); retrying costs
	// as much latency as the original call.
	KindTranscribe
	// KindReply is a fatal reply-generation failure (500).
	KindReply
	// KindInternal is anything unexpected (500).
	KindInternal
)

// Error carries a failure class and its client-safe message through the
// pipeline.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
