// Package bankapi talks to the banking API over a mutual-TLS channel: the OAuth2
// client-credentials exchange and the balance/statement resources.
package bankapi

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/certs"
)

// SessionConfig represents transport settings for a Session.
type SessionConfig struct {
	Timeout time.Duration  // Default: 30 seconds
	RootCAs *x509.CertPool // nil uses the system pool
}

// Session is an HTTP client bound to the client certificate. It is a scoped
// resource: open it at the start of an invocation and Close it on every exit path.
type Session struct {
	transport *http.Transport
	client    *http.Client
	closeOnce sync.Once
	closed    atomic.Bool
}

// Open builds a mutual-TLS session presenting identity on every connection.
func Open(identity *certs.Identity, config SessionConfig) (*Session, error) {
	cert, err := identity.TLSCertificate()
	if err != nil {
		return nil, fmt.Errorf("failed to build client certificate: %w", err)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      config.RootCAs,
		MinVersion:   tls.VersionTLS12,
	}

	return &Session{
		transport: transport,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

// HTTPClient returns the mutual-TLS client.
func (s *Session) HTTPClient() *http.Client {
	return s.client
}

// Close releases pooled connections. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.transport.CloseIdleConnections()
		s.closed.Store(true)
	})
	return nil
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}
