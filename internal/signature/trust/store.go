// Package trust holds the CA certificates that invoice signatures are
// checked against, plus OCSP revocation lookups.
package trust

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// ErrNoRoots is returned by VerifyChain when the store is empty
var ErrNoRoots = errors.New("trust store has no root certificates")

// TrustStore manages trusted CA certificates and revocation checking
type TrustStore struct {
	mu          sync.RWMutex
	roots       *x509.CertPool
	rootCerts   []*x509.Certificate
	ocspCache   *RevocationCache
	ocspTimeout time.Duration
	httpClient  *http.Client
	softFail    bool
	now         func() time.Time
}

// TrustStoreOption configures a TrustStore
type TrustStoreOption func(*TrustStore)

// NewTrustStore creates an empty trust store
func NewTrustStore(opts ...TrustStoreOption) *TrustStore {
	store := &TrustStore{
		roots:       x509.NewCertPool(),
		rootCerts:   make([]*x509.Certificate, 0),
		ocspTimeout: DefaultOCSPTimeout,
		httpClient:  http.DefaultClient,
		now:         time.Now,
	}
	store.ocspCache = NewRevocationCache(DefaultOCSPCacheTTL, store.clock)

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// LoadTrustStore creates a trust store with the roots of a PEM file
func LoadTrustStore(path string, opts ...TrustStoreOption) (*TrustStore, error) {
	store := NewTrustStore(opts...)
	if err := store.AddCertificatesFromFile(path); err != nil {
		return nil, err
	}
	return store, nil
}

// WithSoftFail enables soft-fail mode for OCSP checks.
// When enabled, OCSP failures don't cause verification to fail.
func WithSoftFail() TrustStoreOption {
	return func(s *TrustStore) {
		s.softFail = true
	}
}

// WithOCSPTimeout sets the timeout for OCSP requests
func WithOCSPTimeout(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) {
		s.ocspTimeout = d
	}
}

// WithOCSPCacheTTL sets the TTL for OCSP cache entries
func WithOCSPCacheTTL(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) {
		s.ocspCache = NewRevocationCache(d, s.clock)
	}
}

// WithHTTPClient sets the client used for OCSP requests
func WithHTTPClient(c *http.Client) TrustStoreOption {
	return func(s *TrustStore) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithClock overrides the time used for chain validation
func WithClock(now func() time.Time) TrustStoreOption {
	return func(s *TrustStore) {
		if now != nil {
			s.now = now
		}
	}
}

// AddCertificate adds a single certificate to the trust store
func (s *TrustStore) AddCertificate(cert *x509.Certificate) {
	if cert == nil {
		return
	}
	s.mu.Lock()
	s.roots.AddCert(cert)
	s.rootCerts = append(s.rootCerts, cert)
	s.mu.Unlock()
}

// AddCertificates adds multiple certificates to the trust store
func (s *TrustStore) AddCertificates(certs ...*x509.Certificate) {
	for _, cert := range certs {
		s.AddCertificate(cert)
	}
}

// AddCertificatesFromPEM parses and adds certificates from PEM data
func (s *TrustStore) AddCertificatesFromPEM(pemData []byte) error {
	certs, err := ParsePEMCertificates(pemData)
	if err != nil {
		return err
	}
	s.AddCertificates(certs...)
	return nil
}

// AddCertificatesFromFile adds the certificates of a PEM file
func (s *TrustStore) AddCertificatesFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read trust roots: %w", err)
	}
	if err := s.AddCertificatesFromPEM(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ParsePEMCertificates returns every CERTIFICATE block of pemData
func ParsePEMCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			certs = append(certs, cert)
		}
		pemData = rest
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found in PEM data")
	}
	return certs, nil
}

// VerifyChain verifies the certificate chain against trusted roots and
// returns the first chain, leaf first
func (s *TrustStore) VerifyChain(cert *x509.Certificate, intermediates []*x509.Certificate) ([]*x509.Certificate, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate is nil")
	}
	if s.Len() == 0 {
		return nil, ErrNoRoots
	}

	var interPool *x509.CertPool
	if len(intermediates) > 0 {
		interPool = x509.NewCertPool()
		for _, inter := range intermediates {
			interPool.AddCert(inter)
		}
	}

	s.mu.RLock()
	opts := x509.VerifyOptions{
		Roots:         s.roots,
		Intermediates: interPool,
		CurrentTime:   s.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	s.mu.RUnlock()

	chains, err := cert.Verify(opts)
	if err != nil {
		return nil, fmt.Errorf("chain verification failed: %w", err)
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("no valid certificate chains found")
	}

	return chains[0], nil
}

// CheckRevocation checks if a certificate has been revoked using OCSP.
// It returns true when the certificate is not revoked.
func (s *TrustStore) CheckRevocation(ctx context.Context, cert *x509.Certificate, issuer *x509.Certificate) (bool, error) {
	if cert == nil || issuer == nil {
		return false, fmt.Errorf("certificate or issuer is nil")
	}

	if status, found := s.ocspCache.Lookup(cert); found {
		return !status.Revoked, nil
	}

	// No responder to ask
	if len(cert.OCSPServer) == 0 {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.ocspTimeout)
	defer cancel()

	status, err := CheckOCSP(ctx, s.httpClient, cert, issuer)
	if err != nil {
		if s.softFail {
			return true, fmt.Errorf("OCSP check failed (soft-fail enabled): %w", err)
		}
		return false, fmt.Errorf("OCSP check failed: %w", err)
	}

	s.ocspCache.Store(cert, status)
	return !status.Revoked, nil
}

// clock reads the store's current time so WithClock also drives the cache
func (s *TrustStore) clock() time.Time {
	return s.now()
}

// Roots returns the certificate pool
func (s *TrustStore) Roots() *x509.CertPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots
}

// RootCerts returns a copy of the root certificates
func (s *TrustStore) RootCerts() []*x509.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*x509.Certificate(nil), s.rootCerts...)
}

// Len returns the number of root certificates
func (s *TrustStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rootCerts)
}

// IsSoftFail returns whether soft-fail mode is enabled
func (s *TrustStore) IsSoftFail() bool {
	return s.softFail
}
