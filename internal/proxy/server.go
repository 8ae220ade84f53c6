// Package proxy provides the reasoning-splitting streaming proxy server.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	app_errors "think-relay/internal/errors"
	"think-relay/internal/httpclient"
	"think-relay/internal/policy"
	"think-relay/internal/response"
	"think-relay/internal/types"
	"think-relay/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const maxUpstreamErrorBodySize = 64 * 1024 // 64KB

// ProxyServer forwards chat completion requests to the configured upstream
// and re-frames streamed responses so reasoning-span text reaches the client
// under a separate delta field.
type ProxyServer struct {
	configManager types.ConfigManager
	clientManager *httpclient.Manager
	modelPolicy   *policy.ModelPolicy
}

// NewProxyServer creates a new proxy server
func NewProxyServer(
	configManager types.ConfigManager,
	clientManager *httpclient.Manager,
	modelPolicy *policy.ModelPolicy,
) (*ProxyServer, error) {
	return &ProxyServer{
		configManager: configManager,
		clientManager: clientManager,
		modelPolicy:   modelPolicy,
	}, nil
}

// HandleProxy is the main entry point for proxy requests.
func (ps *ProxyServer) HandleProxy(c *gin.Context) {
	// Read request body using buffer pool to reduce GC overhead.
	buf := utils.GetBuffer()
	defer utils.PutBuffer(buf)

	if _, err := buf.ReadFrom(c.Request.Body); err != nil {
		logrus.Errorf("Failed to read request body: %v", err)
		response.Error(c, app_errors.NewAPIError(app_errors.ErrBadRequest, "Failed to read request body"))
		return
	}
	c.Request.Body.Close()

	bodyBytes := buf.Bytes()

	model := gjson.GetBytes(bodyBytes, "model").String()
	isStream := gjson.GetBytes(bodyBytes, "stream").Bool()

	req, err := ps.buildUpstreamRequest(c, bodyBytes)
	if err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInternalServer, fmt.Sprintf("Failed to build upstream request: %v", err)))
		return
	}

	client := ps.upstreamClient(isStream)
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logrus.Debug("Client canceled request before upstream responded")
			return
		}
		logrus.WithError(err).Error("Upstream request failed")
		response.Error(c, app_errors.NewAPIError(app_errors.ErrBadGateway, fmt.Sprintf("Upstream connection error: %v", err)))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		ps.handleUpstreamError(c, resp)
		return
	}

	if isStream {
		ps.handleStreamingResponse(c, resp, model)
	} else {
		ps.handleNormalResponse(c, resp)
	}
}

// buildUpstreamRequest constructs the outgoing request: configured base URL
// plus the original path and query, end-to-end headers passed through
// verbatim, bound to the client's context so a disconnect cancels the
// upstream read.
func (ps *ProxyServer) buildUpstreamRequest(c *gin.Context, bodyBytes []byte) (*http.Request, error) {
	upstreamCfg := ps.configManager.GetUpstreamConfig()

	targetURL := upstreamCfg.BaseURL + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	var body io.Reader
	if len(bodyBytes) > 0 {
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, body)
	if err != nil {
		return nil, err
	}

	utils.CopyProxyHeaders(req.Header, c.Request.Header)
	// The transport negotiates its own content encoding; the client's
	// preference must not force an encoding the re-framer cannot read.
	req.Header.Del("Accept-Encoding")
	if len(bodyBytes) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// upstreamClient returns the pooled client for the request kind. Streaming
// requests get no overall timeout (the response is open-ended) and disable
// transparent compression so frames arrive as written.
func (ps *ProxyServer) upstreamClient(isStream bool) *http.Client {
	upstreamCfg := ps.configManager.GetUpstreamConfig()

	cfg := &httpclient.Config{
		ConnectTimeout:        time.Duration(upstreamCfg.ConnectTimeout) * time.Second,
		RequestTimeout:        time.Duration(upstreamCfg.RequestTimeout) * time.Second,
		IdleConnTimeout:       time.Duration(upstreamCfg.IdleConnTimeout) * time.Second,
		ResponseHeaderTimeout: time.Duration(upstreamCfg.ResponseHeaderTimeout) * time.Second,
		MaxIdleConns:          upstreamCfg.MaxIdleConns,
		MaxIdleConnsPerHost:   upstreamCfg.MaxIdleConnsPerHost,
		ProxyURL:              upstreamCfg.ProxyURL,
	}
	if isStream {
		cfg.RequestTimeout = 0
		cfg.DisableCompression = true
	}

	return ps.clientManager.GetClient(cfg)
}

// handleUpstreamError forwards an upstream error response with its original
// status, decompressing the body when the upstream encoded it.
func (ps *ProxyServer) handleUpstreamError(c *gin.Context, resp *http.Response) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamErrorBodySize))
	if err != nil {
		logUpstreamError("reading upstream error body", err)
		response.Error(c, app_errors.ErrBadGateway)
		return
	}

	body, _ = utils.DecompressResponse(resp.Header.Get("Content-Encoding"), body)

	logrus.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"body":        utils.TruncateString(string(body), 200),
	}).Warn("Upstream returned error")

	if len(body) == 0 {
		response.Error(c, app_errors.NewAPIErrorWithUpstream(resp.StatusCode, "UPSTREAM_ERROR", "Upstream returned an error with no body"))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}

// logUpstreamError logs upstream I/O failures, demoting expected
// disconnects to debug level.
func logUpstreamError(context string, err error) {
	if err == nil {
		return
	}
	if isIgnorableError(err) {
		logrus.Debugf("Ignorable upstream error in %s: %v", context, err)
	} else {
		logrus.Errorf("Upstream error in %s: %v", context, err)
	}
}

// isIgnorableError reports whether the error is an expected consequence of
// a peer going away rather than a fault worth alerting on.
func isIgnorableError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, http.ErrAbortHandler)
}
