package server

import (
	"time"

	"github.com/rezonia/facturx/internal/model"
	"github.com/rezonia/facturx/internal/tax"
)

// SummaryResponse is the response for the summary endpoint
type SummaryResponse struct {
	Invoice  string      `json:"invoice"`
	Profile  string      `json:"profile"`
	Currency string      `json:"currency"`
	Rounding string      `json:"rounding"`
	Summary  tax.Summary `json:"summary"`
}

// ValidationResponse is the response for the validate endpoint
type ValidationResponse struct {
	Valid      bool              `json:"valid"`
	Profile    string            `json:"profile"`
	Violations []ViolationOutput `json:"violations,omitempty"`
}

// ViolationOutput describes one profile violation
type ViolationOutput struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func violationOutputs(vs []*model.ProfileViolation) []ViolationOutput {
	out := make([]ViolationOutput, 0, len(vs))
	for _, v := range vs {
		out = append(out, ViolationOutput{Field: v.Field, Kind: string(v.Kind), Message: v.Error()})
	}
	return out
}

// ProfileOutput describes a supported profile
type ProfileOutput struct {
	Profile   string   `json:"profile"`
	Guideline string   `json:"guideline"`
	LineItems bool     `json:"line_items"`
	Mandatory []string `json:"mandatory"`
	Forbidden []string `json:"forbidden,omitempty"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error      string            `json:"error"`
	Stage      string            `json:"stage,omitempty"`
	Details    []string          `json:"details,omitempty"`
	Violations []ViolationOutput `json:"violations,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// VerifyResponse is the response for signature verification endpoint
type VerifyResponse struct {
	Valid          bool              `json:"valid"`
	SignatureFound bool              `json:"signature_found"`
	SignatureValid bool              `json:"signature_valid"`
	CertChainValid bool              `json:"cert_chain_valid"`
	NotRevoked     bool              `json:"not_revoked"`
	Format         string            `json:"format,omitempty"`
	DocumentID     string            `json:"document_id,omitempty"`
	Guideline      string            `json:"guideline,omitempty"`
	Attachment     string            `json:"attachment,omitempty"`
	Signer         *SignerInfoOutput `json:"signer,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
}

// SignerInfoOutput holds signer info for API response
type SignerInfoOutput struct {
	Name         string     `json:"name,omitempty"`
	Organization string     `json:"organization,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
}
