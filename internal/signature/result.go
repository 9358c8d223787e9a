package signature

import (
	"crypto/x509"
	"time"
)

// VerificationResult contains the complete signature verification outcome
type VerificationResult struct {
	// Overall validity, true only if all checks pass
	Valid bool `json:"valid"`

	SignatureFound bool `json:"signature_found"`
	SignatureValid bool `json:"signature_valid"`
	CertChainValid bool `json:"cert_chain_valid"`
	NotRevoked     bool `json:"not_revoked"`

	Signer *SignerInfo `json:"signer,omitempty"`

	// Invoice identity read from the signed document
	DocumentID string `json:"document_id,omitempty"`
	Guideline  string `json:"guideline,omitempty"`

	// Attachment is the embedded file name when the input was a PDF
	Attachment string `json:"attachment,omitempty"`

	CertChain []*x509.Certificate `json:"-"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`

	Format string `json:"format,omitempty"`
}

// SignerInfo contains certificate subject information
type SignerInfo struct {
	Name         string    `json:"name"`
	Organization string    `json:"organization,omitempty"`
	SerialNumber string    `json:"serial_number"`
	Issuer       string    `json:"issuer"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
}

// NewVerificationResult creates a new empty result
func NewVerificationResult() *VerificationResult {
	return &VerificationResult{
		Warnings: make([]string, 0),
		Errors:   make([]string, 0),
	}
}

// AddWarning adds a warning message to the result
func (r *VerificationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddError adds an error message and sets Valid to false
func (r *VerificationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// SetSigner populates SignerInfo from an x509 certificate
func (r *VerificationResult) SetSigner(cert *x509.Certificate) {
	if cert == nil {
		return
	}

	signer := &SignerInfo{
		Name:         cert.Subject.CommonName,
		SerialNumber: cert.SerialNumber.String(),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
	if len(cert.Subject.Organization) > 0 {
		signer.Organization = cert.Subject.Organization[0]
	}
	if cert.Issuer.CommonName != "" {
		signer.Issuer = cert.Issuer.CommonName
	} else if len(cert.Issuer.Organization) > 0 {
		signer.Issuer = cert.Issuer.Organization[0]
	}

	r.Signer = signer
}

// ComputeValidity sets the Valid field based on individual check results
func (r *VerificationResult) ComputeValidity() {
	r.Valid = r.SignatureFound &&
		r.SignatureValid &&
		r.CertChainValid &&
		r.NotRevoked &&
		len(r.Errors) == 0
}
