package signature

import "fmt"

// Error codes for signing and signature verification
const (
	ErrCodeNoSignature       = "NO_SIGNATURE"
	ErrCodeInvalidSignature  = "INVALID_SIGNATURE"
	ErrCodeCertExpired       = "CERT_EXPIRED"
	ErrCodeCertNotYetValid   = "CERT_NOT_YET_VALID"
	ErrCodeCertRevoked       = "CERT_REVOKED"
	ErrCodeChainInvalid      = "CHAIN_INVALID"
	ErrCodeUntrustedRoot     = "UNTRUSTED_ROOT"
	ErrCodeOCSPUnavailable   = "OCSP_UNAVAILABLE"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeNoEmbeddedXML     = "NO_EMBEDDED_XML"
	ErrCodeSigningFailed     = "SIGNING_FAILED"
	ErrCodeKeyLoad           = "KEY_LOAD_FAILED"
)

// SignatureError represents signing and verification errors
type SignatureError struct {
	Code    string
	Field   string
	Message string
	Cause   error
}

func (e *SignatureError) Error() string {
	if e.Field != "" && e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Code, e.Field, e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SignatureError) Unwrap() error {
	return e.Cause
}

// NewSignatureError creates a new signature error
func NewSignatureError(code, field, message string, cause error) *SignatureError {
	return &SignatureError{
		Code:    code,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ErrNoSignature returns error when no signature found in document
func ErrNoSignature() *SignatureError {
	return NewSignatureError(ErrCodeNoSignature, "", "no signature found in document", nil)
}

// ErrInvalidSignature returns error when signature validation fails
func ErrInvalidSignature(cause error) *SignatureError {
	return NewSignatureError(ErrCodeInvalidSignature, "signature", "signature validation failed", cause)
}

// ErrCertExpired returns error when certificate has expired
func ErrCertExpired(subject string) *SignatureError {
	return NewSignatureError(ErrCodeCertExpired, "certificate", fmt.Sprintf("certificate expired: %s", subject), nil)
}

// ErrCertNotYetValid returns error when certificate is not yet valid
func ErrCertNotYetValid(subject string) *SignatureError {
	return NewSignatureError(ErrCodeCertNotYetValid, "certificate", fmt.Sprintf("certificate not yet valid: %s", subject), nil)
}

// ErrCertRevoked returns error when certificate has been revoked
func ErrCertRevoked(subject string) *SignatureError {
	return NewSignatureError(ErrCodeCertRevoked, "certificate", fmt.Sprintf("certificate revoked: %s", subject), nil)
}

// ErrChainInvalid returns error when certificate chain is invalid
func ErrChainInvalid(cause error) *SignatureError {
	return NewSignatureError(ErrCodeChainInvalid, "chain", "certificate chain validation failed", cause)
}

// ErrUntrustedRoot returns error when no trusted root is configured
func ErrUntrustedRoot(issuer string) *SignatureError {
	return NewSignatureError(ErrCodeUntrustedRoot, "chain", fmt.Sprintf("root CA not trusted: %s", issuer), nil)
}

// ErrOCSPUnavailable returns error when OCSP check fails
func ErrOCSPUnavailable(cause error) *SignatureError {
	return NewSignatureError(ErrCodeOCSPUnavailable, "ocsp", "OCSP check unavailable", cause)
}

// ErrUnsupportedFormat returns error for unsupported file formats
func ErrUnsupportedFormat(format string) *SignatureError {
	return NewSignatureError(ErrCodeUnsupportedFormat, "", fmt.Sprintf("unsupported format: %s", format), nil)
}

// ErrNoEmbeddedXML returns error when a PDF carries no invoice attachment
func ErrNoEmbeddedXML(cause error) *SignatureError {
	return NewSignatureError(ErrCodeNoEmbeddedXML, "attachment", "no embedded invoice XML in PDF", cause)
}

// ErrSigningFailed wraps a failure while producing a signature
func ErrSigningFailed(cause error) *SignatureError {
	return NewSignatureError(ErrCodeSigningFailed, "signature", "signing failed", cause)
}

// ErrKeyLoad wraps a failure while loading signing material
func ErrKeyLoad(path string, cause error) *SignatureError {
	return NewSignatureError(ErrCodeKeyLoad, path, "cannot load signing key", cause)
}
