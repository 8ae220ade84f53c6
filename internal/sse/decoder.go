package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedEvent is returned by Decoder.Next when a data frame carries an
// invalid JSON payload. The decoder stays usable; callers should skip the
// event and continue reading.
var ErrMalformedEvent = errors.New("sse: malformed event payload")

// ErrStreamClosed is returned when the upstream connection ends before the
// end-of-stream sentinel. It signals an abnormal termination, as opposed to
// the io.EOF returned after a clean sentinel.
var ErrStreamClosed = errors.New("sse: upstream closed before end-of-stream sentinel")

// Decoder turns a raw event-stream body into an ordered sequence of
// DeltaEvents. It buffers partial lines across network reads, joins
// multi-line data fields, and skips comments and non-data fields.
type Decoder struct {
	reader *bufio.Reader
	done   bool
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		reader: bufio.NewReader(r),
	}
}

// Next returns the next decoded event.
//
// It returns exactly one event with IsFinal set for the termination
// sentinel, then io.EOF on subsequent calls. An upstream read failure or an
// EOF before the sentinel is surfaced as ErrStreamClosed (or the underlying
// read error). A frame with an invalid JSON payload yields ErrMalformedEvent
// and leaves the decoder usable.
func (d *Decoder) Next() (*DeltaEvent, error) {
	if d.done {
		return nil, io.EOF
	}

	var dataLines []string

	for {
		line, readErr := d.reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}

		trimmed := strings.TrimRight(line, "\r\n")

		// Blank line terminates the current event.
		if trimmed == "" {
			if len(dataLines) > 0 {
				return d.decodeData(strings.Join(dataLines, "\n"))
			}
			if readErr == io.EOF {
				// EOF without the sentinel means the connection dropped
				// mid-stream.
				return nil, ErrStreamClosed
			}
			continue
		}

		// Comment / keep-alive lines and non-data fields (event:, id:,
		// retry:) carry no delta payload.
		if !strings.HasPrefix(trimmed, ":") {
			if data, ok := cutDataPrefix(trimmed); ok {
				dataLines = append(dataLines, data)
			}
		}

		if readErr == io.EOF {
			// Tolerate a final event missing its trailing blank line.
			if len(dataLines) > 0 {
				return d.decodeData(strings.Join(dataLines, "\n"))
			}
			return nil, ErrStreamClosed
		}
	}
}

// decodeData converts an accumulated data payload into a DeltaEvent.
func (d *Decoder) decodeData(data string) (*DeltaEvent, error) {
	data = strings.TrimSpace(data)

	if data == DoneSentinel {
		d.done = true
		return &DeltaEvent{IsFinal: true}, nil
	}

	if !gjson.Valid(data) {
		return nil, ErrMalformedEvent
	}

	return newDeltaEvent([]byte(data)), nil
}

// cutDataPrefix strips the "data:" field prefix from a line, tolerating the
// optional space after the colon.
func cutDataPrefix(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, " "), true
}
