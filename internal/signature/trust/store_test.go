package trust

import (
	"context"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx/internal/signature/sigtest"
)

func TestNewTrustStore(t *testing.T) {
	store := NewTrustStore()

	assert.NotNil(t, store.roots)
	assert.NotNil(t, store.ocspCache)
	assert.False(t, store.softFail)
	assert.Zero(t, store.Len())
}

func TestNewTrustStore_WithOptions(t *testing.T) {
	store := NewTrustStore(
		WithSoftFail(),
		WithOCSPTimeout(5*time.Second),
	)

	assert.True(t, store.IsSoftFail())
	assert.Equal(t, 5*time.Second, store.ocspTimeout)
}

func TestTrustStore_AddCertificatesFromPEM(t *testing.T) {
	ca := sigtest.NewCA(t, "Root A")
	other := sigtest.NewCA(t, "Root B")

	store := NewTrustStore()
	require.NoError(t, store.AddCertificatesFromPEM(sigtest.CertPEM(ca.Cert, other.Cert)))
	assert.Equal(t, 2, store.Len())
	assert.Len(t, store.RootCerts(), 2)
}

func TestTrustStore_AddCertificatesFromPEM_Invalid(t *testing.T) {
	store := NewTrustStore()
	require.Error(t, store.AddCertificatesFromPEM([]byte("not a pem")))
	assert.Zero(t, store.Len())
}

func TestLoadTrustStore(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	path := filepath.Join(t.TempDir(), "roots.pem")
	require.NoError(t, os.WriteFile(path, sigtest.CertPEM(ca.Cert), 0o600))

	store, err := LoadTrustStore(path)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	_, err = LoadTrustStore(filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
}

func TestTrustStore_VerifyChain(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")

	store := NewTrustStore()
	store.AddCertificate(ca.Cert)

	chain, err := store.VerifyChain(leaf.Cert, nil)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, leaf.Cert.Raw, chain[0].Raw)
	assert.Equal(t, ca.Cert.Raw, chain[1].Raw)
}

func TestTrustStore_VerifyChain_Intermediate(t *testing.T) {
	root := sigtest.NewCA(t, "Root")
	inter := sigtest.NewIntermediate(t, root, "Issuing CA")
	leaf := sigtest.NewLeaf(t, inter, "ACME SARL")

	store := NewTrustStore()
	store.AddCertificate(root.Cert)

	_, err := store.VerifyChain(leaf.Cert, nil)
	require.Error(t, err)

	chain, err := store.VerifyChain(leaf.Cert, []*x509.Certificate{inter.Cert})
	require.NoError(t, err)
	assert.Len(t, chain, 3)
}

func TestTrustStore_VerifyChain_Untrusted(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	stranger := sigtest.NewCA(t, "Stranger")
	leaf := sigtest.NewLeaf(t, stranger, "Mallory")

	store := NewTrustStore()
	store.AddCertificate(ca.Cert)

	_, err := store.VerifyChain(leaf.Cert, nil)
	require.Error(t, err)
}

func TestTrustStore_VerifyChain_Expired(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")

	store := NewTrustStore(WithClock(func() time.Time { return time.Now().Add(48 * time.Hour) }))
	store.AddCertificate(ca.Cert)

	_, err := store.VerifyChain(leaf.Cert, nil)
	require.Error(t, err)
}

func TestTrustStore_VerifyChain_EmptyStore(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	_, err := NewTrustStore().VerifyChain(ca.Cert, nil)
	assert.ErrorIs(t, err, ErrNoRoots)
}

func TestTrustStore_VerifyChain_NilCert(t *testing.T) {
	_, err := NewTrustStore().VerifyChain(nil, nil)
	require.Error(t, err)
}

func TestTrustStore_CheckRevocation_NoResponder(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")

	ok, err := NewTrustStore().CheckRevocation(context.Background(), leaf.Cert, ca.Cert)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewTrustStore().CheckRevocation(context.Background(), leaf.Cert, nil)
	require.Error(t, err)
}
