package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"think-relay/internal/reframe"
	"think-relay/internal/sse"
	"think-relay/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// errorChunk is the OpenAI-style error payload emitted into an already
// started event stream when the upstream connection fails mid-response.
type errorChunk struct {
	Error errorChunkBody `json:"error"`
}

type errorChunkBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    *string `json:"code"`
}

func (ps *ProxyServer) handleStreamingResponse(c *gin.Context, resp *http.Response, model string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	if _, ok := c.Writer.(http.Flusher); !ok {
		logrus.Error("Streaming unsupported by the writer, falling back to normal response")
		ps.handleNormalResponse(c, resp)
		return
	}

	streamCfg := ps.configManager.GetStreamConfig()

	decoder := sse.NewDecoder(resp.Body)
	encoder := sse.NewEncoder(c.Writer)
	reframer := reframe.NewReframer(
		streamCfg.OpenTag,
		streamCfg.CloseTag,
		model,
		ps.modelPolicy.StartsInReasoning(model),
	)

	var parseErrorCount int

	for {
		event, err := decoder.Next()
		if err != nil {
			if errors.Is(err, sse.ErrMalformedEvent) {
				// One corrupt event must not abort a healthy stream; the
				// re-framer state is untouched.
				parseErrorCount++
				logrus.Debug("Skipping malformed upstream event")
				continue
			}
			if err == io.EOF {
				break
			}
			// Abnormal upstream termination: tell the client instead of
			// silently truncating the stream.
			logUpstreamError("reading upstream stream", err)
			writeStreamError(encoder, "Upstream connection closed unexpectedly")
			return
		}

		outgoing, err := reframer.Process(event)
		if err != nil {
			logrus.WithError(err).Error("Failed to re-frame upstream event")
			writeStreamError(encoder, "Proxy failed to process upstream event")
			return
		}

		for _, out := range outgoing {
			var writeErr error
			if out.IsFinal {
				writeErr = encoder.WriteDone()
			} else {
				writeErr = encoder.WriteEvent(out.Payload)
			}
			if writeErr != nil {
				// Client went away; buffered state is simply dropped.
				logUpstreamError("writing stream to client", writeErr)
				return
			}
		}
	}

	if parseErrorCount > 0 {
		logrus.WithField("error_count", parseErrorCount).Warn("Skipped malformed events during stream")
	}
}

// writeStreamError emits a single error frame followed by the sentinel so
// the client terminates cleanly instead of hanging on a dead stream.
func writeStreamError(encoder *sse.Encoder, message string) {
	payload, err := json.Marshal(errorChunk{
		Error: errorChunkBody{
			Message: message,
			Type:    "upstream_error",
		},
	})
	if err != nil {
		return
	}
	if err := encoder.WriteEvent(payload); err != nil {
		return
	}
	_ = encoder.WriteDone()
}

// handleNormalResponse relays a non-streaming upstream response with its
// status and body intact. Hop-by-hop headers are connection-scoped and are
// filtered in this direction too.
func (ps *ProxyServer) handleNormalResponse(c *gin.Context, resp *http.Response) {
	utils.CopyProxyHeaders(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)

	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		logUpstreamError("copying response body", err)
	}
}
