package proxy

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"think-relay/internal/config"
	"think-relay/internal/httpclient"
	"think-relay/internal/policy"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// newTestProxy wires a proxy server against the given upstream with a real
// environment-backed configuration.
func newTestProxy(t *testing.T, upstreamURL string, thinkingModels string) *gin.Engine {
	t.Helper()
	t.Setenv("UPSTREAM_URL", upstreamURL)
	if thinkingModels != "" {
		t.Setenv("THINKING_MODELS", thinkingModels)
	}

	configManager, err := config.NewManager()
	require.NoError(t, err)

	ps, err := NewProxyServer(
		configManager,
		httpclient.NewManager(),
		policy.New(configManager.GetStreamConfig().ThinkingModels),
	)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Any("/v1/*path", ps.HandleProxy)
	return router
}

// chunkedSSEUpstream serves a fixed sequence of frames, flushing after each
// so chunk boundaries reach the proxy exactly as written.
func chunkedSSEUpstream(t *testing.T, contents []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		for _, content := range contents {
			fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"model\":\"test-model\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", content)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"model\":\"test-model\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

// collectStream parses the proxied SSE body, concatenating reasoning and
// answer text and recording whether the sentinel arrived.
func collectStream(t *testing.T, body string) (reasoning, answer string, sawDone bool) {
	t.Helper()
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			sawDone = true
			continue
		}
		require.True(t, gjson.Valid(payload), "invalid JSON frame: %s", payload)
		reasoning += gjson.Get(payload, "choices.0.delta.reasoning").String()
		answer += gjson.Get(payload, "choices.0.delta.content").String()
	}
	return reasoning, answer, sawDone
}

func streamRequest(model string) *http.Request {
	body := fmt.Sprintf(`{"model":%q,"stream":true,"messages":[{"role":"user","content":"hi"}]}`, model)
	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// TestProxy_StreamSplitsReasoning runs the full pipeline over an upstream
// whose think span is fragmented across chunk boundaries.
func TestProxy_StreamSplitsReasoning(t *testing.T) {
	upstream := chunkedSSEUpstream(t, []string{
		"<thi", "nk>let me", " think</th", "ink>the answer", " is 42",
	})
	defer upstream.Close()

	router := newTestProxy(t, upstream.URL, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, streamRequest("test-model"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	reasoning, answer, sawDone := collectStream(t, w.Body.String())
	assert.Equal(t, "let me think", reasoning)
	assert.Equal(t, "the answer is 42", answer)
	assert.True(t, sawDone)
	assert.NotContains(t, answer, "<think>")
	assert.NotContains(t, reasoning, "</think>")
}

// TestProxy_ThinkingModelStartsInReasoning verifies a configured model is
// treated as already inside a think span at stream start.
func TestProxy_ThinkingModelStartsInReasoning(t *testing.T) {
	upstream := chunkedSSEUpstream(t, []string{
		"thinking out loud", "</think>final answer",
	})
	defer upstream.Close()

	router := newTestProxy(t, upstream.URL, "my-reasoner")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, streamRequest("my-reasoner"))

	require.Equal(t, http.StatusOK, w.Code)
	reasoning, answer, sawDone := collectStream(t, w.Body.String())
	assert.Equal(t, "thinking out loud", reasoning)
	assert.Equal(t, "final answer", answer)
	assert.True(t, sawDone)
}

// TestProxy_UpstreamErrorForwarded verifies upstream error responses keep
// their status and body.
func TestProxy_UpstreamErrorForwarded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"auth_error"}}`)
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream.URL, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, streamRequest("test-model"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid api key")
}

// TestProxy_NonStreamPassthrough verifies stream:false responses are relayed
// verbatim without re-framing.
func TestProxy_NonStreamPassthrough(t *testing.T) {
	const responseBody = `{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"<think>x</think>y"}}]}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, responseBody)
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream.URL, "")

	body := `{"model":"test-model","stream":false,"messages":[]}`
	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, responseBody, w.Body.String())
}

// TestProxy_AbnormalUpstreamClose verifies a stream cut before the sentinel
// yields an error frame and a clean terminator for the client.
func TestProxy_AbnormalUpstreamClose(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"chatcmpl-1\",\"model\":\"test-model\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		// Connection drops without finish_reason or sentinel.
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream.URL, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, streamRequest("test-model"))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "partial")
	assert.Contains(t, body, "upstream_error")
	assert.Contains(t, body, "data: [DONE]")
}

// TestProxy_MalformedEventSkipped verifies a corrupt frame does not abort
// the rest of the stream.
func TestProxy_MalformedEventSkipped(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {garbage\n\n")
		fmt.Fprint(w, "data: {\"id\":\"chatcmpl-1\",\"model\":\"test-model\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream.URL, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, streamRequest("test-model"))

	_, answer, sawDone := collectStream(t, w.Body.String())
	assert.Equal(t, "ok", answer)
	assert.True(t, sawDone)
}

// TestProxy_ResponseHopByHopFiltered verifies connection-scoped upstream
// response headers are dropped while end-to-end headers pass through.
func TestProxy_ResponseHopByHopFiltered(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Ratelimit-Remaining", "99")
		w.Header().Set("Keep-Alive", "timeout=5")
		w.Header().Set("Proxy-Authenticate", "Basic")
		fmt.Fprint(w, `{}`)
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream.URL, "")

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(`{"model":"m"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "99", w.Header().Get("X-Ratelimit-Remaining"))
	assert.Empty(t, w.Header().Get("Keep-Alive"))
	assert.Empty(t, w.Header().Get("Proxy-Authenticate"))
}

// TestProxy_HeadersForwarded verifies end-to-end headers reach the upstream
// while the hop-by-hop set does not.
func TestProxy_HeadersForwarded(t *testing.T) {
	var gotAuth, gotConnection string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotConnection = r.Header.Get("Keep-Alive")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream.URL, "")

	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(`{"model":"m"}`))
	req.Header.Set("Authorization", "Bearer sk-test")
	req.Header.Set("Keep-Alive", "timeout=5")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Empty(t, gotConnection)
}
