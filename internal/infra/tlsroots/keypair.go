package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// KeyPair holds a server certificate loaded from disk. Reload swaps it in
// place, so listeners built from ServerConfig pick up renewed certificates
// on the next handshake.
type KeyPair struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	mu       sync.RWMutex
	cert     *tls.Certificate
	notAfter time.Time
}

// Option configures a KeyPair.
type Option func(*KeyPair)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *KeyPair) {
		k.logger = logger
	}
}

// LoadKeyPair loads certFile and keyFile.
func LoadKeyPair(certFile, keyFile string, opts ...Option) (*KeyPair, error) {
	k := &KeyPair{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if err := k.Reload(); err != nil {
		return nil, err
	}
	return k, nil
}

// Reload re-reads both files. On failure the previous certificate stays in
// use.
func (k *KeyPair) Reload() error {
	cert, err := tls.LoadX509KeyPair(k.certFile, k.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("tlsroots: parse leaf: %w", err)
	}

	k.mu.Lock()
	k.cert = &cert
	k.notAfter = leaf.NotAfter
	k.mu.Unlock()

	k.logger.Info("certificate loaded", "cert_file", k.certFile, "not_after", leaf.NotAfter)
	return nil
}

// Files returns the absolute paths of the certificate and key.
func (k *KeyPair) Files() []string {
	out := make([]string, 0, 2)
	for _, f := range []string{k.certFile, k.keyFile} {
		if abs, err := filepath.Abs(f); err == nil {
			out = append(out, abs)
		} else {
			out = append(out, f)
		}
	}
	return out
}

// Owns reports whether path is the certificate or key file.
func (k *KeyPair) Owns(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, f := range k.Files() {
		if f == abs {
			return true
		}
	}
	return false
}

// NotAfter returns the expiry of the current leaf certificate.
func (k *KeyPair) NotAfter() time.Time {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.notAfter
}

// GetCertificate implements tls.Config.GetCertificate.
func (k *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.cert, nil
}

// ServerConfig returns a listener config serving k. With clientCAs set,
// clients must present a certificate signed by one of them.
func (k *KeyPair) ServerConfig(clientCAs *x509.CertPool) *tls.Config {
	cfg := &tls.Config{
		GetCertificate: k.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg
}
