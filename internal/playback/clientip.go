// SPDX-License-Identifier: MIT

package playback

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the client address a token is bound to. The first
// X-Forwarded-For entry wins so that issue and verify agree behind a
// reverse proxy; otherwise the peer address is used.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
