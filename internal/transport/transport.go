// Package transport provides the HTTP transport used for all upstream
// retail API calls.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// The retail API sits behind a CDN that rate-limits clients by TLS
// fingerprint, and Go's standard TLS client has a distinctive one. When
// fingerprinting is enabled, outbound connections present a Chrome-like
// ClientHello via uTLS, with ALPN deciding between HTTP/2 framing
// (x/net/http2) and an HTTP/1.1 fallback.

// Options configures the upstream transport.
type Options struct {
	// Timeout bounds dial + TLS handshake. Zero means 30s.
	Timeout time.Duration

	// BrowserFingerprint enables the Chrome ClientHello. Leave false for
	// upstreams that do not fingerprint (local stubs, CI).
	BrowserFingerprint bool
}

// New returns an http.RoundTripper per the options. With fingerprinting off
// this is a plain http.Transport with sane timeouts.
func New(opts Options) http.RoundTripper {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	if !opts.BrowserFingerprint {
		return &http.Transport{
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   8,
			ResponseHeaderTimeout: timeout,
		}
	}

	dialer := &net.Dialer{Timeout: timeout}

	h2 := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialFingerprintTLS(ctx, dialer, network, addr)
		},
	}
	h1 := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialFingerprintTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	return &fingerprintTransport{h2: h2, h1: h1}
}

// fingerprintTransport tries HTTP/2 first and falls back to HTTP/1.1 for
// servers that never negotiated h2.
type fingerprintTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	return t.h1.RoundTrip(req)
}

// dialFingerprintTLS establishes a TLS connection presenting Chrome's
// ClientHello, letting ALPN negotiate h2 or http/1.1 naturally.
func dialFingerprintTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}
