package trust

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"

	"github.com/rezonia/facturx/internal/signature/sigtest"
)

// responder answers every OCSP request with status for the leaf
func responder(t *testing.T, ca sigtest.Identity, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req, err := ocsp.ParseRequest(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		now := time.Now()
		tmpl := ocsp.Response{
			Status:       status,
			SerialNumber: req.SerialNumber,
			ThisUpdate:   now.Add(-time.Minute),
			NextUpdate:   now.Add(time.Hour),
		}
		if status == ocsp.Revoked {
			tmpl.RevokedAt = now.Add(-time.Minute)
		}
		resp, err := ocsp.CreateResponse(ca.Cert, ca.Cert, tmpl, ca.Key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/ocsp-response")
		_, _ = w.Write(resp)
	}))
}

func TestCheckRevocation_Good(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	var hits atomic.Int32
	srv := responder(t, ca, ocsp.Good, &hits)
	defer srv.Close()
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL", sigtest.WithOCSPServer(srv.URL))

	store := NewTrustStore(WithHTTPClient(srv.Client()))
	ok, err := store.CheckRevocation(context.Background(), leaf.Cert, ca.Cert)
	require.NoError(t, err)
	assert.True(t, ok)

	// second lookup is served from the cache
	ok, err = store.CheckRevocation(context.Background(), leaf.Cert, ca.Cert)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCheckRevocation_Revoked(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	var hits atomic.Int32
	srv := responder(t, ca, ocsp.Revoked, &hits)
	defer srv.Close()
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL", sigtest.WithOCSPServer(srv.URL))

	store := NewTrustStore(WithHTTPClient(srv.Client()))
	ok, err := store.CheckRevocation(context.Background(), leaf.Cert, ca.Cert)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckRevocation_ResponderDown(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL", sigtest.WithOCSPServer(srv.URL))

	hard := NewTrustStore(WithHTTPClient(srv.Client()))
	ok, err := hard.CheckRevocation(context.Background(), leaf.Cert, ca.Cert)
	require.Error(t, err)
	assert.False(t, ok)

	soft := NewTrustStore(WithHTTPClient(srv.Client()), WithSoftFail())
	ok, err = soft.CheckRevocation(context.Background(), leaf.Cert, ca.Cert)
	require.Error(t, err)
	assert.True(t, ok)
	assert.Zero(t, soft.ocspCache.Len())
}

func TestCheckOCSP_NoServer(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")
	_, err := CheckOCSP(context.Background(), nil, leaf.Cert, ca.Cert)
	assert.ErrorIs(t, err, errNoResponder)
}

func TestCheckOCSP_ReportsResponder(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	var hits atomic.Int32
	srv := responder(t, ca, ocsp.Revoked, &hits)
	defer srv.Close()
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL", sigtest.WithOCSPServer(srv.URL))

	status, err := CheckOCSP(context.Background(), srv.Client(), leaf.Cert, ca.Cert)
	require.NoError(t, err)
	assert.True(t, status.Revoked)
	assert.False(t, status.RevokedAt.IsZero())
	assert.Equal(t, srv.URL, status.Responder)
}

// fakeClock is a settable time source
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRevocationCache_LookupStore(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	cache := NewRevocationCache(time.Hour, clock.now)
	ca := sigtest.NewCA(t, "Root")
	cert := sigtest.NewLeaf(t, ca, "Leaf").Cert

	_, found := cache.Lookup(cert)
	assert.False(t, found)

	cache.Store(cert, RevocationStatus{Responder: "http://ocsp.example"})
	status, found := cache.Lookup(cert)
	require.True(t, found)
	assert.False(t, status.Revoked)
	assert.Equal(t, "http://ocsp.example", status.Responder)

	cache.Store(cert, RevocationStatus{Revoked: true})
	status, found = cache.Lookup(cert)
	require.True(t, found)
	assert.True(t, status.Revoked)
	assert.Equal(t, 1, cache.Len())
}

func TestRevocationCache_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	cache := NewRevocationCache(time.Hour, clock.now)
	ca := sigtest.NewCA(t, "Root")
	cert := sigtest.NewLeaf(t, ca, "Leaf").Cert

	cache.Store(cert, RevocationStatus{})
	clock.advance(59 * time.Minute)
	_, found := cache.Lookup(cert)
	assert.True(t, found)

	clock.advance(time.Minute)
	_, found = cache.Lookup(cert)
	assert.False(t, found)
	assert.Zero(t, cache.Len())
}

func TestRevocationCache_NextUpdateBoundsGood(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: start}
	cache := NewRevocationCache(time.Hour, clock.now)
	ca := sigtest.NewCA(t, "Root")
	good := sigtest.NewLeaf(t, ca, "Good").Cert
	revoked := sigtest.NewLeaf(t, ca, "Revoked").Cert

	next := start.Add(10 * time.Minute)
	cache.Store(good, RevocationStatus{NextUpdate: next})
	cache.Store(revoked, RevocationStatus{Revoked: true, NextUpdate: next})

	clock.advance(15 * time.Minute)
	_, found := cache.Lookup(good)
	assert.False(t, found)
	_, found = cache.Lookup(revoked)
	assert.True(t, found)
}

func TestRevocationCache_PurgeAndNil(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	cache := NewRevocationCache(time.Hour, clock.now)
	ca := sigtest.NewCA(t, "Root")

	cache.Store(sigtest.NewLeaf(t, ca, "One").Cert, RevocationStatus{})
	clock.advance(30 * time.Minute)
	cache.Store(sigtest.NewLeaf(t, ca, "Two").Cert, RevocationStatus{Revoked: true})
	assert.Equal(t, 2, cache.Len())

	clock.advance(45 * time.Minute)
	assert.Equal(t, 1, cache.Purge())

	cache.Store(nil, RevocationStatus{})
	_, found := cache.Lookup(nil)
	assert.False(t, found)
}

func TestTrustStore_ClockDrivesRevocationCache(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	var hits atomic.Int32
	srv := responder(t, ca, ocsp.Good, &hits)
	defer srv.Close()
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL", sigtest.WithOCSPServer(srv.URL))

	clock := &fakeClock{t: time.Now()}
	store := NewTrustStore(WithHTTPClient(srv.Client()), WithClock(clock.now))

	_, err := store.CheckRevocation(context.Background(), leaf.Cert, ca.Cert)
	require.NoError(t, err)
	clock.advance(2 * time.Hour)
	_, err = store.CheckRevocation(context.Background(), leaf.Cert, ca.Cert)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}
