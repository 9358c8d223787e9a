package trust

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

// Default OCSP configuration
const (
	DefaultOCSPTimeout  = 10 * time.Second
	DefaultOCSPCacheTTL = 1 * time.Hour

	maxOCSPResponse = 1 << 20
)

// errNoResponder is returned for certificates without an OCSP URL
var errNoResponder = errors.New("no OCSP server URL in certificate")

// RevocationStatus is a responder's answer about one signing certificate
type RevocationStatus struct {
	Revoked    bool
	RevokedAt  time.Time
	Responder  string
	NextUpdate time.Time
}

// revocationKey identifies a certificate by its issuer DN and serial
type revocationKey struct {
	issuer string
	serial string
}

func keyOf(cert *x509.Certificate) revocationKey {
	return revocationKey{issuer: string(cert.RawIssuer), serial: cert.SerialNumber.Text(16)}
}

type heldStatus struct {
	status RevocationStatus
	until  time.Time
}

// RevocationCache holds responder answers until the earlier of the
// response's NextUpdate and the cache TTL
type RevocationCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	statuses map[revocationKey]heldStatus
}

// NewRevocationCache returns an empty cache. A nil clock means time.Now.
func NewRevocationCache(ttl time.Duration, now func() time.Time) *RevocationCache {
	if now == nil {
		now = time.Now
	}
	return &RevocationCache{
		ttl:      ttl,
		now:      now,
		statuses: make(map[revocationKey]heldStatus),
	}
}

// Lookup returns the held status of cert while it is fresh
func (c *RevocationCache) Lookup(cert *x509.Certificate) (RevocationStatus, bool) {
	if cert == nil {
		return RevocationStatus{}, false
	}
	key := keyOf(cert)

	c.mu.Lock()
	defer c.mu.Unlock()
	held, ok := c.statuses[key]
	if !ok {
		return RevocationStatus{}, false
	}
	if !c.now().Before(held.until) {
		delete(c.statuses, key)
		return RevocationStatus{}, false
	}
	return held.status, true
}

// Store records status for cert. A revocation is final and is held for
// the full TTL regardless of NextUpdate.
func (c *RevocationCache) Store(cert *x509.Certificate, status RevocationStatus) {
	if cert == nil {
		return
	}
	until := c.now().Add(c.ttl)
	if !status.Revoked && !status.NextUpdate.IsZero() && status.NextUpdate.Before(until) {
		until = status.NextUpdate
	}

	c.mu.Lock()
	c.statuses[keyOf(cert)] = heldStatus{status: status, until: until}
	c.mu.Unlock()
}

// Purge drops stale entries and returns how many remain
func (c *RevocationCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, held := range c.statuses {
		if !now.Before(held.until) {
			delete(c.statuses, key)
		}
	}
	return len(c.statuses)
}

// Len returns the number of held entries, stale ones included
func (c *RevocationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.statuses)
}

// CheckOCSP asks the responders listed in cert, in order, until one answers
func CheckOCSP(ctx context.Context, client *http.Client, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if len(cert.OCSPServer) == 0 {
		return RevocationStatus{}, errNoResponder
	}

	req, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return RevocationStatus{}, fmt.Errorf("create OCSP request: %w", err)
	}

	var errs []error
	for _, url := range cert.OCSPServer {
		status, err := askResponder(ctx, client, url, req, cert, issuer)
		if err == nil {
			return status, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", url, err))
	}
	return RevocationStatus{}, fmt.Errorf("no OCSP responder answered: %w", errors.Join(errs...))
}

func askResponder(ctx context.Context, client *http.Client, url string, body []byte, cert, issuer *x509.Certificate) (RevocationStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return RevocationStatus{}, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := client.Do(httpReq)
	if err != nil {
		return RevocationStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RevocationStatus{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponse))
	if err != nil {
		return RevocationStatus{}, err
	}
	parsed, err := ocsp.ParseResponseForCert(raw, cert, issuer)
	if err != nil {
		return RevocationStatus{}, err
	}

	status := RevocationStatus{Responder: url, NextUpdate: parsed.NextUpdate}
	switch parsed.Status {
	case ocsp.Good:
	case ocsp.Revoked:
		status.Revoked = true
		status.RevokedAt = parsed.RevokedAt
	default:
		return RevocationStatus{}, fmt.Errorf("certificate status unknown to responder")
	}
	return status, nil
}
