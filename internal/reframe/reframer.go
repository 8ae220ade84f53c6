package reframe

import (
	"fmt"

	"think-relay/internal/sse"

	"github.com/tidwall/sjson"
)

// OutgoingEvent is one re-framed unit ready for serialization. A final
// event carries no payload; it tells the serving layer to forward the
// end-of-stream sentinel.
type OutgoingEvent struct {
	Payload []byte
	IsFinal bool
}

// Reframer consumes decoded delta events and produces the corrected
// outgoing sequence: reasoning-span text moved to choices[0].delta.reasoning
// and answer text kept in choices[0].delta.content, with all other payload
// fields passed through unchanged. One Reframer serves exactly one request.
type Reframer struct {
	splitter *Splitter
	model    string
	flushed  bool
}

// NewReframer creates a Reframer for one streamed response. model is used
// for synthetic flush chunks emitted at end-of-stream.
func NewReframer(openTag, closeTag, model string, startInReasoning bool) *Reframer {
	return &Reframer{
		splitter: NewSplitter(openTag, closeTag, startInReasoning),
		model:    model,
	}
}

// Process consumes one delta event and returns zero or more outgoing
// events, in stream order. Events whose text is entirely held back by the
// marker lookahead produce no output.
func (r *Reframer) Process(ev *sse.DeltaEvent) ([]OutgoingEvent, error) {
	if ev.IsFinal {
		return r.processFinal()
	}

	if ev.HasContent() {
		return r.processContent(ev)
	}

	return r.processMetadata(ev)
}

// processContent classifies the event's text fragment and emits one
// outgoing event per classified segment, each a rewrite of the original
// payload.
func (r *Reframer) processContent(ev *sse.DeltaEvent) ([]OutgoingEvent, error) {
	segs := r.splitter.Write(ev.Content)

	// Terminal metadata on a content event: the classified segments and any
	// held-back lookahead text must all precede the finish_reason carrier.
	if ev.FinishReason != "" {
		return r.forwardWithFlush(ev, segs)
	}

	if len(segs) == 0 {
		// Entirely buffered as a potential marker.
		return nil, nil
	}

	events := make([]OutgoingEvent, 0, len(segs))
	for i, seg := range segs {
		payload, err := rewriteSegment(ev.Raw, seg, i == len(segs)-1)
		if err != nil {
			return nil, err
		}
		events = append(events, OutgoingEvent{Payload: payload})
	}
	return events, nil
}

// processMetadata handles deltas without content: role announcements and
// finish_reason carriers are forwarded once, in order; empty keep-alive
// deltas are dropped.
func (r *Reframer) processMetadata(ev *sse.DeltaEvent) ([]OutgoingEvent, error) {
	if ev.FinishReason != "" {
		return r.forwardWithFlush(ev, nil)
	}
	if ev.Role != "" {
		payload, err := sjson.DeleteBytes(ev.Raw, "choices.0.delta.content")
		if err != nil {
			return nil, err
		}
		return []OutgoingEvent{{Payload: payload}}, nil
	}
	return nil, nil
}

// forwardWithFlush emits the given segments plus any pending lookahead text
// before forwarding a finish_reason event, so held-back characters are not
// lost behind the terminal metadata.
func (r *Reframer) forwardWithFlush(ev *sse.DeltaEvent, segs []Segment) ([]OutgoingEvent, error) {
	var events []OutgoingEvent

	for _, seg := range append(segs, r.splitter.Flush()...) {
		payload, err := rewriteSegment(ev.Raw, seg, false)
		if err != nil {
			return nil, err
		}
		events = append(events, OutgoingEvent{Payload: payload})
	}
	r.flushed = true

	payload, err := sjson.DeleteBytes(ev.Raw, "choices.0.delta.content")
	if err != nil {
		return nil, err
	}
	return append(events, OutgoingEvent{Payload: payload}), nil
}

// processFinal flushes an unterminated partial marker as literal text of
// the current mode, then signals sentinel forwarding.
func (r *Reframer) processFinal() ([]OutgoingEvent, error) {
	var events []OutgoingEvent

	if !r.flushed {
		for _, seg := range r.splitter.Flush() {
			events = append(events, OutgoingEvent{Payload: r.syntheticChunk(seg)})
		}
		r.flushed = true
	}

	return append(events, OutgoingEvent{IsFinal: true}), nil
}

// syntheticChunk builds a minimal chat.completion.chunk payload for text
// that only becomes emittable at the end-of-stream sentinel, when no
// original payload remains to rewrite.
func (r *Reframer) syntheticChunk(seg Segment) []byte {
	field := "content"
	if seg.Kind == SegmentReasoning {
		field = "reasoning"
	}
	payload, _ := sjson.SetBytes(
		[]byte(fmt.Sprintf(
			`{"id":"think-relay-flush","object":"chat.completion.chunk","created":0,"model":%q,"choices":[{"index":0,"delta":{},"finish_reason":null}]}`,
			r.model,
		)),
		"choices.0.delta."+field, seg.Text,
	)
	return payload
}

// rewriteSegment produces an outgoing payload from the original event
// payload with the delta text routed to the segment's logical field.
// finish_reason is stripped from every rewrite except the last one for the
// input event, so intermediate transition chunks never claim completion.
func rewriteSegment(raw []byte, seg Segment, last bool) ([]byte, error) {
	payload, err := sjson.DeleteBytes(raw, "choices.0.delta.content")
	if err != nil {
		return nil, err
	}

	field := "choices.0.delta.content"
	if seg.Kind == SegmentReasoning {
		field = "choices.0.delta.reasoning"
	}
	payload, err = sjson.SetBytes(payload, field, seg.Text)
	if err != nil {
		return nil, err
	}

	if !last {
		payload, err = sjson.DeleteBytes(payload, "choices.0.finish_reason")
		if err != nil {
			return nil, err
		}
	}

	return payload, nil
}
