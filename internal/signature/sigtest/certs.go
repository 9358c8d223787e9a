// Package sigtest builds throwaway certificate hierarchies for tests.
package sigtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

var serial atomic.Int64

// Identity is a certificate with its private key
type Identity struct {
	Cert *x509.Certificate
	Key  *rsa.PrivateKey
}

// Chain returns the DER encoding of the identity followed by its issuers
func (id Identity) Chain(issuers ...Identity) [][]byte {
	out := [][]byte{id.Cert.Raw}
	for _, is := range issuers {
		out = append(out, is.Cert.Raw)
	}
	return out
}

// LeafOption adjusts a leaf certificate template
type LeafOption func(*x509.Certificate)

// WithOCSPServer sets the responder URL of the leaf
func WithOCSPServer(url string) LeafOption {
	return func(c *x509.Certificate) { c.OCSPServer = []string{url} }
}

// WithValidity sets the validity window of the leaf
func WithValidity(from, to time.Time) LeafOption {
	return func(c *x509.Certificate) {
		c.NotBefore = from
		c.NotAfter = to
	}
}

// NewCA creates a self-signed certificate authority
func NewCA(t testing.TB, name string) Identity {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(serial.Add(1)),
		Subject:               pkix.Name{CommonName: name, Organization: []string{name}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	return issue(t, template, nil)
}

// NewIntermediate creates a CA issued by parent
func NewIntermediate(t testing.TB, parent Identity, name string) Identity {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(serial.Add(1)),
		Subject:               pkix.Name{CommonName: name, Organization: []string{name}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	return issue(t, template, &parent)
}

// NewLeaf creates a signing certificate issued by ca
func NewLeaf(t testing.TB, ca Identity, name string, opts ...LeafOption) Identity {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial.Add(1)),
		Subject:      pkix.Name{CommonName: name, Organization: []string{name}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	for _, opt := range opts {
		opt(template)
	}
	return issue(t, template, &ca)
}

func issue(t testing.TB, template *x509.Certificate, parent *Identity) Identity {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	parentCert, parentKey := template, key
	if parent != nil {
		parentCert, parentKey = parent.Cert, parent.Key
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parentCert, &key.PublicKey, parentKey)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return Identity{Cert: cert, Key: key}
}

// CertPEM encodes certificates as PEM
func CertPEM(certs ...*x509.Certificate) []byte {
	var out []byte
	for _, c := range certs {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})...)
	}
	return out
}

// KeyPEM encodes an RSA key as PKCS#1 PEM
func KeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

// WriteFiles writes the identity's chain and key into dir and returns
// their paths
func WriteFiles(t testing.TB, dir string, id Identity, issuers ...Identity) (certFile, keyFile string) {
	t.Helper()
	certs := []*x509.Certificate{id.Cert}
	for _, is := range issuers {
		certs = append(certs, is.Cert)
	}
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, CertPEM(certs...), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, KeyPEM(id.Key), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certFile, keyFile
}
