// internal/app/system/certcheck/certcheck.go
package certcheck

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strings"
	"time"
)

// ExpiryWarning is how close to expiry a certificate starts to warn.
const ExpiryWarning = 14 * 24 * time.Hour

// CertInfo describes the certificate served for the site's public host.
type CertInfo struct {
	Host      string
	ExpiresAt time.Time
	DaysLeft  int
	Issuer    string
	Valid     bool
	Skipped   bool // host is local or served over plain http
	Error     string
}

// Expiring reports whether a valid certificate is inside the warning window.
func (c CertInfo) Expiring(now time.Time) bool {
	return c.Valid && !c.ExpiresAt.IsZero() && c.ExpiresAt.Sub(now) <= ExpiryWarning
}

// Check dials baseURL's host on 443 and reads the leaf certificate. Local
// hosts and http:// URLs are skipped without dialing.
func Check(ctx context.Context, baseURL string) CertInfo {
	host, secure := hostOf(baseURL)
	if host == "" {
		return CertInfo{Host: baseURL, Error: "invalid host"}
	}
	if !secure || isLocalhost(host) {
		return CertInfo{Host: host, Skipped: true}
	}

	d := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 5 * time.Second},
		Config:    &tls.Config{ServerName: host},
	}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, "443"))
	if err != nil {
		return CertInfo{Host: host, Error: "connection failed: " + err.Error()}
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return CertInfo{Host: host, Error: "no certificates found"}
	}

	leaf := certs[0]
	now := time.Now()
	return CertInfo{
		Host:      host,
		ExpiresAt: leaf.NotAfter,
		DaysLeft:  int(leaf.NotAfter.Sub(now).Hours() / 24),
		Issuer:    leaf.Issuer.CommonName,
		Valid:     now.After(leaf.NotBefore) && now.Before(leaf.NotAfter),
	}
}

// hostOf returns the hostname and whether the URL asks for https. A bare
// hostname is treated as https.
func hostOf(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false
		}
		return u.Hostname(), u.Scheme == "https"
	}
	if h, _, err := net.SplitHostPort(raw); err == nil {
		return h, true
	}
	return raw, true
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1" || strings.HasSuffix(host, ".localhost")
}
