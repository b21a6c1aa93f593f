package server

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/vkuznet/x509proxy"

	"github.com/marcogenualdo/reqlog/internal/capture"
	"github.com/marcogenualdo/reqlog/internal/config"
)

type listenerOption func(net.Listener) (net.Listener, error)

// newListener binds addr, applies options in order and wraps the result for
// request head capture. Capture sits above TLS so it records plaintext.
func newListener(addr string, options ...listenerOption) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	for _, option := range options {
		wrapped, err := option(ln)
		if err != nil {
			ln.Close()
			return nil, err
		}
		ln = wrapped
	}

	return capture.NewListener(ln), nil
}

func withTLS(cfg config.TLSConfig) listenerOption {
	return func(ln net.Listener) (net.Listener, error) {
		cert, err := loadCertificate(cfg)
		if err != nil {
			return nil, err
		}

		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
			NextProtos:   []string{"http/1.1"},
		}

		return tls.NewListener(ln, tlsConfig), nil
	}
}

func loadCertificate(cfg config.TLSConfig) (tls.Certificate, error) {
	if cfg.ProxyFile != "" {
		cert, err := x509proxy.LoadX509Proxy(cfg.ProxyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to parse X509 proxy: %w", err)
		}
		return cert, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load certificate: %w", err)
	}
	return cert, nil
}
