// Package sse implements the line-oriented event-stream framing used by
// OpenAI-compatible chat completion endpoints: decoding upstream frames into
// delta events and re-encoding processed events for the client.
package sse

import "github.com/tidwall/gjson"

// DoneSentinel is the literal payload that terminates an event stream.
const DoneSentinel = "[DONE]"

// DeltaEvent is one decoded incremental unit of a streamed chat completion.
// It is immutable once created.
type DeltaEvent struct {
	// Raw is the original JSON payload of the data frame. Empty for the
	// terminal sentinel event.
	Raw []byte
	// Content is the text fragment carried in choices[0].delta.content.
	Content string
	// Role is the passthrough role from choices[0].delta.role, if any.
	Role string
	// FinishReason is the passthrough choices[0].finish_reason, if any.
	FinishReason string
	// IsFinal is true only for the end-of-stream sentinel event.
	IsFinal bool
}

// newDeltaEvent extracts the delta fields from a raw JSON payload.
func newDeltaEvent(raw []byte) *DeltaEvent {
	return &DeltaEvent{
		Raw:          raw,
		Content:      gjson.GetBytes(raw, "choices.0.delta.content").String(),
		Role:         gjson.GetBytes(raw, "choices.0.delta.role").String(),
		FinishReason: gjson.GetBytes(raw, "choices.0.finish_reason").String(),
	}
}

// HasContent reports whether the event carries a non-empty text fragment.
func (e *DeltaEvent) HasContent() bool {
	return e.Content != ""
}
