package utils

import "net/http"

// hopByHopHeaders are connection-scoped headers that must not be forwarded
// between the client, the proxy and the upstream (RFC 9110 section 7.6.1).
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// CopyProxyHeaders copies end-to-end headers from src to dst, skipping
// hop-by-hop headers. Content-Length is also skipped because the proxy may
// rewrite the body.
func CopyProxyHeaders(dst, src http.Header) {
	for name, values := range src {
		if _, hopByHop := hopByHopHeaders[http.CanonicalHeaderKey(name)]; hopByHop {
			continue
		}
		if http.CanonicalHeaderKey(name) == "Content-Length" {
			continue
		}
		for _, value := range values {
			dst.Add(name, value)
		}
	}
}
