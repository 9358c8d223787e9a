// Package xml signs invoice documents with enveloped XMLDSig signatures and
// verifies them against a trust store.
package xml

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rezonia/facturx/internal/signature"
	"github.com/rezonia/facturx/internal/signature/trust"
)

// XMLVerifier verifies XMLDSig signatures
type XMLVerifier struct {
	trustStore *trust.TrustStore
	extractor  *SignatureExtractor
	now        func() time.Time
}

// NewXMLVerifier creates a new XML signature verifier. A nil store
// verifies signature integrity only and reports the chain as untrusted.
func NewXMLVerifier(ts *trust.TrustStore) *XMLVerifier {
	if ts == nil {
		ts = trust.NewTrustStore()
	}
	return &XMLVerifier{
		trustStore: ts,
		extractor:  NewSignatureExtractor(),
		now:        time.Now,
	}
}

// Verify verifies the XMLDSig signature in the given XML data
func (v *XMLVerifier) Verify(ctx context.Context, data []byte) (*signature.VerificationResult, error) {
	result := signature.NewVerificationResult()
	result.Format = signature.FormatXML

	extraction, err := v.extractor.Extract(data)
	if err != nil {
		result.AddError(err.Error())
		return result, signature.ErrNoSignature()
	}

	result.SignatureFound = true
	result.DocumentID = extraction.DocumentID
	result.Guideline = extraction.Guideline

	certs, err := parseCertificates(extraction)
	if err != nil {
		result.AddError(fmt.Sprintf("certificate extraction: %v", err))
		result.ComputeValidity()
		return result, nil
	}
	signer := certs[0]
	result.SetSigner(signer)

	// Integrity only: the KeyInfo certificate is trusted here and the
	// validity window is checked below.
	validation := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{signer},
	})
	validation.Clock = dsig.NewFakeClockAt(signer.NotBefore)

	if _, err := validation.Validate(extraction.SignedElement); err != nil {
		result.AddError(signature.ErrInvalidSignature(err).Error())
	} else {
		result.SignatureValid = true
	}

	now := v.now()
	switch {
	case now.Before(signer.NotBefore):
		result.AddError(signature.ErrCertNotYetValid(signer.Subject.CommonName).Error())
	case now.After(signer.NotAfter):
		result.AddError(signature.ErrCertExpired(signer.Subject.CommonName).Error())
	}

	chain, err := v.trustStore.VerifyChain(signer, certs[1:])
	if err != nil {
		if v.trustStore.Len() == 0 {
			result.AddError(signature.ErrUntrustedRoot(signer.Issuer.CommonName).Error())
		} else {
			result.AddError(signature.ErrChainInvalid(err).Error())
		}
		result.NotRevoked = true
		result.ComputeValidity()
		return result, nil
	}
	result.CertChain = chain
	result.CertChainValid = true

	v.checkRevocation(ctx, result, chain)

	result.ComputeValidity()
	return result, nil
}

func (v *XMLVerifier) checkRevocation(ctx context.Context, result *signature.VerificationResult, chain []*x509.Certificate) {
	if len(chain) < 2 {
		result.NotRevoked = true
		result.AddWarning("revocation check skipped: no issuer certificate in chain")
		return
	}

	notRevoked, err := v.trustStore.CheckRevocation(ctx, chain[0], chain[1])
	switch {
	case err != nil && v.trustStore.IsSoftFail():
		result.AddWarning(fmt.Sprintf("OCSP check: %v", err))
		result.NotRevoked = true
	case err != nil:
		result.AddError(signature.ErrOCSPUnavailable(err).Error())
	case !notRevoked:
		result.AddError(signature.ErrCertRevoked(chain[0].Subject.CommonName).Error())
	default:
		result.NotRevoked = true
	}
}

func parseCertificates(extraction *ExtractionResult) ([]*x509.Certificate, error) {
	ders, err := ExtractCertificates(extraction.SignatureElement)
	if err != nil {
		return nil, err
	}
	certs := make([]*x509.Certificate, 0, len(ders))
	for _, der := range ders {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// CanVerify returns true if the data appears to be XML
func (v *XMLVerifier) CanVerify(data []byte) bool {
	return looksLikeXML(data)
}

// Format returns the format this verifier handles
func (v *XMLVerifier) Format() string {
	return signature.FormatXML
}
