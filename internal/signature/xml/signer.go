package xml

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rezonia/facturx/internal/signature"
)

// XMLSigner appends an enveloped XMLDSig signature to the document root
type XMLSigner struct {
	key   crypto.Signer
	chain [][]byte
	cert  *x509.Certificate
}

var _ signature.Signer = (*XMLSigner)(nil)

// NewXMLSigner creates a signer for key. chain holds DER certificates,
// the signing certificate first.
func NewXMLSigner(key crypto.Signer, chain [][]byte) (*XMLSigner, error) {
	if key == nil {
		return nil, signature.ErrSigningFailed(errors.New("nil key"))
	}
	if len(chain) == 0 {
		return nil, signature.ErrSigningFailed(errors.New("no certificate"))
	}
	cert, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return nil, signature.ErrSigningFailed(fmt.Errorf("parse certificate: %w", err))
	}
	return &XMLSigner{key: key, chain: chain, cert: cert}, nil
}

// NewXMLSignerFromKeyStore adapts a goxmldsig key store
func NewXMLSignerFromKeyStore(ks dsig.X509KeyStore) (*XMLSigner, error) {
	key, cert, err := ks.GetKeyPair()
	if err != nil {
		return nil, signature.ErrSigningFailed(err)
	}
	return NewXMLSigner(key, [][]byte{cert})
}

// LoadXMLSigner reads a PEM certificate chain and its private key
func LoadXMLSigner(certFile, keyFile string) (*XMLSigner, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, signature.ErrKeyLoad(certFile, err)
	}
	key, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, signature.ErrKeyLoad(keyFile, errors.New("key cannot sign"))
	}
	return NewXMLSigner(key, pair.Certificate)
}

// Certificate returns the signing certificate
func (s *XMLSigner) Certificate() *x509.Certificate {
	return s.cert
}

// Sign returns data with a Signature element appended to the root. The
// original bytes are not reformatted so that digests stay stable.
func (s *XMLSigner) Sign(data []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, signature.ErrSigningFailed(fmt.Errorf("parse document: %w", err))
	}
	root := doc.Root()
	if root == nil {
		return nil, signature.ErrSigningFailed(errors.New("empty document"))
	}
	if findSignatureElement(root) != nil {
		return nil, signature.ErrSigningFailed(errors.New("document is already signed"))
	}

	ctx, err := dsig.NewSigningContext(s.key, s.chain)
	if err != nil {
		return nil, signature.ErrSigningFailed(err)
	}
	signed, err := ctx.SignEnveloped(root)
	if err != nil {
		return nil, signature.ErrSigningFailed(err)
	}

	doc.SetRoot(signed)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, signature.ErrSigningFailed(err)
	}
	return out, nil
}
