package sse

import (
	"io"
	"net/http"
)

// Encoder re-serializes event payloads into the outgoing event stream using
// the same framing convention as the input. When the underlying writer
// supports http.Flusher each frame is flushed immediately to preserve the
// upstream event cadence.
type Encoder struct {
	writer  io.Writer
	flusher http.Flusher
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{writer: w}
	if flusher, ok := w.(http.Flusher); ok {
		enc.flusher = flusher
	}
	return enc
}

// WriteEvent writes a single data frame carrying the given JSON payload.
func (e *Encoder) WriteEvent(payload []byte) error {
	if _, err := e.writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := e.writer.Write(payload); err != nil {
		return err
	}
	if _, err := e.writer.Write([]byte("\n\n")); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// WriteDone writes the end-of-stream sentinel frame.
func (e *Encoder) WriteDone() error {
	return e.WriteEvent([]byte(DoneSentinel))
}
