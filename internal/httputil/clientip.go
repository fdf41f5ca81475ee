// Package httputil holds small helpers shared by the HTTP handlers and
// middleware.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address requests are attributed to in logs.
// With trustProxy, the leftmost parseable X-Forwarded-For entry wins, then
// X-Real-IP; otherwise, and when neither header holds an IP, RemoteAddr's
// host is used. Only trust proxy headers behind a reverse proxy you control.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if ip, ok := parseIP(part); ok {
				return ip
			}
		}
		if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.String(), true
}
