package http

import (
	"net/http"
	"strings"
)

// clientIP extracts the client address the same way for rate limiting and
// click logging: first entry of X-Forwarded-For, else X-Real-IP, else empty.
// The socket address is not a fallback: a request with no forwarding headers
// counts as having no resolvable IP.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0]); ip != "" {
			return ip
		}
	}

	return r.Header.Get("X-Real-IP")
}
