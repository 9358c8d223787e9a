package xml

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx/internal/signature"
	"github.com/rezonia/facturx/internal/signature/sigtest"
	"github.com/rezonia/facturx/internal/signature/trust"
)

func signWith(t *testing.T, id sigtest.Identity, issuers ...sigtest.Identity) []byte {
	t.Helper()
	signer, err := NewXMLSigner(id.Key, id.Chain(issuers...))
	require.NoError(t, err)
	out, err := signer.Sign([]byte(ciiSkeleton))
	require.NoError(t, err)
	return out
}

func TestSign_AppendsSignatureToRoot(t *testing.T) {
	signer, err := NewXMLSignerFromKeyStore(dsig.RandomKeyStoreForTest())
	require.NoError(t, err)
	assert.NotNil(t, signer.Certificate())

	out, err := signer.Sign([]byte(ciiSkeleton))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	children := doc.Root().ChildElements()
	last := children[len(children)-1]
	assert.Equal(t, "ds:Signature", last.FullTag())
	assert.NotNil(t, last.FindElement("./ds:KeyInfo/ds:X509Data/ds:X509Certificate"))
	assert.True(t, bytes.HasPrefix(out, []byte("<?xml")))
}

func TestSign_RejectsSignedOrInvalid(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	signer, err := NewXMLSigner(ca.Key, ca.Chain())
	require.NoError(t, err)

	signed, err := signer.Sign([]byte(ciiSkeleton))
	require.NoError(t, err)

	_, err = signer.Sign(signed)
	require.Error(t, err)

	_, err = signer.Sign([]byte("not xml"))
	var sigErr *signature.SignatureError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, signature.ErrCodeSigningFailed, sigErr.Code)
}

func TestNewXMLSigner_Errors(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	_, err := NewXMLSigner(nil, ca.Chain())
	require.Error(t, err)
	_, err = NewXMLSigner(ca.Key, nil)
	require.Error(t, err)
}

func TestLoadXMLSigner(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")
	certFile, keyFile := sigtest.WriteFiles(t, t.TempDir(), leaf, ca)

	signer, err := LoadXMLSigner(certFile, keyFile)
	require.NoError(t, err)
	assert.Equal(t, "ACME SARL", signer.Certificate().Subject.CommonName)

	_, err = LoadXMLSigner(certFile, certFile)
	var sigErr *signature.SignatureError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, signature.ErrCodeKeyLoad, sigErr.Code)
}

func TestVerify_TrustedChain(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")
	signed := signWith(t, leaf, ca)

	store := trust.NewTrustStore()
	store.AddCertificate(ca.Cert)

	res, err := NewXMLVerifier(store).Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.True(t, res.SignatureValid)
	assert.True(t, res.CertChainValid)
	assert.True(t, res.NotRevoked)
	assert.Equal(t, "INV-2024-001", res.DocumentID)
	assert.Equal(t, "urn:cen.eu:en16931:2017", res.Guideline)
	require.NotNil(t, res.Signer)
	assert.Equal(t, "ACME SARL", res.Signer.Name)
	assert.Equal(t, "Root", res.Signer.Issuer)
	assert.Len(t, res.CertChain, 2)
}

func TestVerify_IntermediateFromKeyInfo(t *testing.T) {
	root := sigtest.NewCA(t, "Root")
	inter := sigtest.NewIntermediate(t, root, "Issuing CA")
	leaf := sigtest.NewLeaf(t, inter, "ACME SARL")
	signed := signWith(t, leaf, inter)

	store := trust.NewTrustStore()
	store.AddCertificate(root.Cert)

	res, err := NewXMLVerifier(store).Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Len(t, res.CertChain, 3)
}

func TestVerify_TamperedContent(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")
	signed := signWith(t, leaf, ca)
	tampered := bytes.Replace(signed, []byte("INV-2024-001"), []byte("INV-2024-999"), 1)

	store := trust.NewTrustStore()
	store.AddCertificate(ca.Cert)

	res, err := NewXMLVerifier(store).Verify(context.Background(), tampered)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.SignatureFound)
	assert.False(t, res.SignatureValid)
	assert.True(t, res.CertChainValid)
}

func TestVerify_UntrustedRoot(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")
	signed := signWith(t, leaf, ca)

	res, err := NewXMLVerifier(nil).Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.SignatureValid)
	assert.False(t, res.CertChainValid)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], signature.ErrCodeUntrustedRoot)
}

func TestVerify_ForeignRoot(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")
	signed := signWith(t, leaf, ca)

	store := trust.NewTrustStore()
	store.AddCertificate(sigtest.NewCA(t, "Other Root").Cert)

	res, err := NewXMLVerifier(store).Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], signature.ErrCodeChainInvalid)
}

func TestVerify_ExpiredSigner(t *testing.T) {
	ca := sigtest.NewCA(t, "Root")
	leaf := sigtest.NewLeaf(t, ca, "ACME SARL")
	signed := signWith(t, leaf, ca)

	store := trust.NewTrustStore()
	store.AddCertificate(ca.Cert)

	v := NewXMLVerifier(store)
	v.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	res, err := v.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.SignatureValid)
	assert.Contains(t, res.Errors[0], signature.ErrCodeCertExpired)
}

func TestVerify_SelfSignedSkipsRevocation(t *testing.T) {
	ca := sigtest.NewCA(t, "Self")
	signed := signWith(t, ca)

	store := trust.NewTrustStore()
	store.AddCertificate(ca.Cert)

	res, err := NewXMLVerifier(store).Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Contains(t, res.Warnings[0], "revocation check skipped")
}

func TestVerify_Unsigned(t *testing.T) {
	res, err := NewXMLVerifier(nil).Verify(context.Background(), []byte(ciiSkeleton))
	var sigErr *signature.SignatureError
	require.True(t, errors.As(err, &sigErr))
	assert.Equal(t, signature.ErrCodeNoSignature, sigErr.Code)
	assert.False(t, res.SignatureFound)
	assert.False(t, res.Valid)
}

func TestXMLVerifier_CanVerify(t *testing.T) {
	v := NewXMLVerifier(nil)
	assert.True(t, v.CanVerify([]byte(ciiSkeleton)))
	assert.False(t, v.CanVerify([]byte("%PDF-1.7")))
	assert.Equal(t, signature.FormatXML, v.Format())
}
