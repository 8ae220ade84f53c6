// Package reframe separates reasoning-span text from answer text in a
// streamed token sequence. Markers may be split arbitrarily across chunks,
// so matching is done by an explicit state machine with a lookahead buffer
// bounded by the marker length rather than by scanning whole buffers.
package reframe

import "strings"

// Mode classifies the splitter's current position in the token stream.
type Mode int

const (
	// ModeNormal means incoming text is answer content.
	ModeNormal Mode = iota
	// ModeThinking means incoming text is reasoning content.
	ModeThinking
	// ModeMaybeOpen means a prefix of the opening marker is buffered.
	ModeMaybeOpen
	// ModeMaybeClose means a prefix of the closing marker is buffered.
	ModeMaybeClose
)

// SegmentKind tells which logical stream a segment belongs to.
type SegmentKind int

const (
	// SegmentAnswer is final answer text.
	SegmentAnswer SegmentKind = iota
	// SegmentReasoning is reasoning-span text.
	SegmentReasoning
)

// Segment is a classified run of characters, in original stream order.
type Segment struct {
	Kind SegmentKind
	Text string
}

// Splitter is the tag-state machine. It is owned by a single request and is
// not safe for concurrent use.
type Splitter struct {
	openTag  string
	closeTag string
	thinking bool
	pending  []byte
}

// NewSplitter creates a Splitter for the given marker literals.
// startInReasoning puts the machine directly into the thinking state for
// models that omit the opening marker.
func NewSplitter(openTag, closeTag string, startInReasoning bool) *Splitter {
	return &Splitter{
		openTag:  openTag,
		closeTag: closeTag,
		thinking: startInReasoning,
	}
}

// Mode returns the current state, including the transient lookahead states.
func (s *Splitter) Mode() Mode {
	if len(s.pending) > 0 {
		if s.thinking {
			return ModeMaybeClose
		}
		return ModeMaybeOpen
	}
	if s.thinking {
		return ModeThinking
	}
	return ModeNormal
}

// Write classifies one incoming character run and returns the segments that
// can be emitted. Characters that might be a marker prefix are held back
// until the next Write or Flush resolves them. The returned segments
// preserve the original character order; marker text itself is never
// returned.
func (s *Splitter) Write(text string) []Segment {
	if text == "" {
		return nil
	}

	buf := string(s.pending) + text
	s.pending = s.pending[:0]

	var segs []Segment
	for buf != "" {
		marker := s.currentMarker()

		if idx := strings.Index(buf, marker); idx >= 0 {
			if idx > 0 {
				segs = s.emit(segs, buf[:idx])
			}
			buf = buf[idx+len(marker):]
			s.thinking = !s.thinking
			continue
		}

		// No complete marker. Hold back the longest suffix that is still a
		// viable marker prefix and emit the rest.
		hold := viablePrefixLen(buf, marker)
		if hold < len(buf) {
			segs = s.emit(segs, buf[:len(buf)-hold])
		}
		s.pending = append(s.pending, buf[len(buf)-hold:]...)
		buf = ""
	}

	return segs
}

// Flush resolves end-of-stream: a partial marker that never completed is
// literal text of the current base mode, not an error.
func (s *Splitter) Flush() []Segment {
	if len(s.pending) == 0 {
		return nil
	}
	text := string(s.pending)
	s.pending = s.pending[:0]
	return s.emit(nil, text)
}

// emit appends text under the current base mode, merging adjacent segments
// of the same kind.
func (s *Splitter) emit(segs []Segment, text string) []Segment {
	kind := SegmentAnswer
	if s.thinking {
		kind = SegmentReasoning
	}
	if n := len(segs); n > 0 && segs[n-1].Kind == kind {
		segs[n-1].Text += text
		return segs
	}
	return append(segs, Segment{Kind: kind, Text: text})
}

// currentMarker returns the marker the machine is scanning for.
func (s *Splitter) currentMarker() string {
	if s.thinking {
		return s.closeTag
	}
	return s.openTag
}

// viablePrefixLen returns the length of the longest suffix of buf that is a
// proper prefix of marker. The result is at most len(marker)-1, which bounds
// the pending buffer.
func viablePrefixLen(buf, marker string) int {
	max := len(marker) - 1
	if max > len(buf) {
		max = len(buf)
	}
	for l := max; l > 0; l-- {
		if strings.HasSuffix(buf, marker[:l]) {
			return l
		}
	}
	return 0
}
