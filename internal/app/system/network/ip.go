// Package network resolves the client address of a request.
package network

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ForwardedIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address. Header values that do not parse as IPs are skipped. Use it
// only behind a proxy that overwrites those headers.
func ForwardedIP(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, v := range []string{first, r.Header.Get("X-Real-IP")} {
		if addr, err := netip.ParseAddr(strings.TrimSpace(v)); err == nil {
			return addr.String()
		}
	}
	return RemoteIP(r)
}

// RemoteIP is the peer address without port or IPv6 brackets.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}

// ClientIPFunc returns ForwardedIP when proxy headers are trusted and
// RemoteIP otherwise.
func ClientIPFunc(trustProxy bool) func(*http.Request) string {
	if trustProxy {
		return ForwardedIP
	}
	return RemoteIP
}
