// Package pdf verifies the signed invoice XML embedded in a Factur-X PDF.
package pdf

import (
	"bytes"
	"context"
	"errors"

	"github.com/rezonia/facturx/internal/attach"
	"github.com/rezonia/facturx/internal/signature"
	"github.com/rezonia/facturx/internal/signature/trust"
	xmlsig "github.com/rezonia/facturx/internal/signature/xml"
)

// PDFVerifier extracts the invoice attachment and verifies its signature
type PDFVerifier struct {
	embedder *attach.Embedder
	xml      *xmlsig.XMLVerifier
}

// NewPDFVerifier creates a verifier checking against ts
func NewPDFVerifier(ts *trust.TrustStore) *PDFVerifier {
	return &PDFVerifier{
		embedder: attach.NewEmbedder(),
		xml:      xmlsig.NewXMLVerifier(ts),
	}
}

// Verify verifies the signature of the embedded invoice XML
func (v *PDFVerifier) Verify(ctx context.Context, data []byte) (*signature.VerificationResult, error) {
	if !v.CanVerify(data) {
		result := signature.NewVerificationResult()
		result.Format = signature.FormatPDF
		result.AddError("input is not a PDF")
		return result, signature.ErrUnsupportedFormat("not a PDF")
	}

	name, xmlData, err := v.embedder.ExtractInvoiceXML(bytes.NewReader(data))
	if err != nil {
		result := signature.NewVerificationResult()
		result.Format = signature.FormatPDF
		sigErr := signature.ErrNoEmbeddedXML(err)
		if !errors.Is(err, attach.ErrNotFound) {
			sigErr = signature.ErrUnsupportedFormat(err.Error())
		}
		result.AddError(sigErr.Error())
		return result, sigErr
	}

	result, err := v.xml.Verify(ctx, xmlData)
	if result != nil {
		result.Format = signature.FormatPDF
		result.Attachment = name
	}
	return result, err
}

// CanVerify returns true for PDF input
func (v *PDFVerifier) CanVerify(data []byte) bool {
	return attach.IsPDF(data)
}

// Format returns the format this verifier handles
func (v *PDFVerifier) Format() string {
	return signature.FormatPDF
}
