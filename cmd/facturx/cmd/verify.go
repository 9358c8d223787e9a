package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx/internal/signature"
	"github.com/rezonia/facturx/internal/signature/pdf"
	"github.com/rezonia/facturx/internal/signature/trust"
	"github.com/rezonia/facturx/internal/signature/xml"
)

var (
	trustRoots  string
	softFail    bool
	ocspTimeout time.Duration
)

var verifyCmd = &cobra.Command{
	Use:   "verify [files...]",
	Short: "Verify digital signatures",
	Long: `Verify XMLDSig signatures on Factur-X XML files and on the XML embedded
in Factur-X PDFs.

Verifies:
  - Signature validity (digest and signature value)
  - Certificate validity period
  - Certificate chain to a trusted root (--trust-roots)
  - Certificate revocation (OCSP, soft-fail with --soft-fail)
  - Signer information

Examples:
  # Verify a signed XML file
  facturx verify signed.xml --trust-roots roots.pem

  # Verify the XML embedded in a PDF
  facturx verify invoice-facturx.pdf --trust-roots roots.pem

  # Accept unreachable OCSP responders
  facturx verify --soft-fail signed.xml

  # JSON output
  facturx verify -f json signed.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&trustRoots, "trust-roots", "", "Trusted root certificates (PEM, env: FACTURX_TRUST_ROOTS)")
	verifyCmd.Flags().BoolVar(&softFail, "soft-fail", false, "Treat unreachable OCSP responders as a warning")
	verifyCmd.Flags().DurationVar(&ocspTimeout, "ocsp-timeout", 10*time.Second, "OCSP request timeout")
}

// loadTrustStore reads the roots named by flag or FACTURX_TRUST_ROOTS. With
// neither set the store is empty and every chain fails as untrusted.
func loadTrustStore(flag string, opts ...trust.TrustStoreOption) (*trust.TrustStore, error) {
	path := flag
	if path == "" {
		path = cfg.Signing.TrustRoots
	}
	if path == "" {
		log.Warn().Msg("no trust roots configured; signatures cannot chain to a trusted root")
		return trust.NewTrustStore(opts...), nil
	}
	ts, err := trust.LoadTrustStore(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust roots: %w", err)
	}
	log.Debug().Str("path", path).Int("roots", ts.Len()).Msg("trust roots loaded")
	return ts, nil
}

func newVerifierRegistry(ts *trust.TrustStore) *signature.VerifierRegistry {
	return signature.NewVerifierRegistry(
		xml.NewXMLVerifier(ts),
		pdf.NewPDFVerifier(ts),
	)
}

func runVerify(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, verifiedExts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to verify")
	}

	opts := []trust.TrustStoreOption{trust.WithOCSPTimeout(ocspTimeout)}
	if softFail {
		opts = append(opts, trust.WithSoftFail())
	}
	trustStore, err := loadTrustStore(trustRoots, opts...)
	if err != nil {
		return err
	}
	registry := newVerifierRegistry(trustStore)

	results := make([]*VerifyResult, 0, len(files))
	allValid := true

	for _, file := range files {
		printVerbose(cmd.ErrOrStderr(), "Verifying: %s\n", file)

		result := verifyFile(cmd.Context(), registry, file)
		results = append(results, result)
		if !result.Valid {
			allValid = false
		}
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		printVerifyTable(out, results)
	}

	if !allValid {
		return fmt.Errorf("verification failed for some files")
	}
	return nil
}

func printVerifyTable(out io.Writer, results []*VerifyResult) {
	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	for _, r := range results {
		statusText := "VALID"
		if !r.Valid {
			statusText = "INVALID"
		}
		fmt.Fprintf(out, "%s %s: %s\n", mark(r.Valid), r.File, statusText)

		if r.Format != "" {
			fmt.Fprintf(out, "  Format:   %s\n", r.Format)
		}
		if r.Attachment != "" {
			fmt.Fprintf(out, "  Attached: %s\n", r.Attachment)
		}
		if r.DocumentID != "" {
			fmt.Fprintf(out, "  Invoice:  %s\n", r.DocumentID)
		}

		if r.Signer != nil {
			fmt.Fprintf(out, "  Signer: %s\n", r.Signer.Name)
			if r.Signer.Organization != "" {
				fmt.Fprintf(out, "  Org:    %s\n", r.Signer.Organization)
			}
			if r.Signer.Issuer != "" {
				fmt.Fprintf(out, "  Issuer: %s\n", r.Signer.Issuer)
			}
		}

		if r.SignatureFound {
			fmt.Fprintf(out, "  Signature:   %s\n", mark(r.SignatureValid))
			fmt.Fprintf(out, "  Cert Chain:  %s\n", mark(r.CertChainValid))
			fmt.Fprintf(out, "  Not Revoked: %s\n", mark(r.NotRevoked))
		}

		for _, e := range r.Errors {
			fmt.Fprintf(out, "  ✗ %s\n", e)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "  ⚠ %s\n", w)
		}
	}
}

func verifyFile(ctx context.Context, registry *signature.VerifierRegistry, filePath string) *VerifyResult {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	result := &VerifyResult{
		File:     filePath,
		Errors:   []string{},
		Warnings: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read file: %v", err))
		return result
	}

	verifier, err := registry.Detect(data)
	if err != nil {
		result.Errors = append(result.Errors, "no verifier available for this file format")
		return result
	}
	result.Format = verifier.Format()

	verifyResult, err := verifier.Verify(ctx, data)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("verification error: %v", err))
		return result
	}

	result.Valid = verifyResult.Valid
	result.SignatureFound = verifyResult.SignatureFound
	result.SignatureValid = verifyResult.SignatureValid
	result.CertChainValid = verifyResult.CertChainValid
	result.NotRevoked = verifyResult.NotRevoked
	result.DocumentID = verifyResult.DocumentID
	result.Attachment = verifyResult.Attachment
	result.Errors = append(result.Errors, verifyResult.Errors...)
	result.Warnings = append(result.Warnings, verifyResult.Warnings...)

	if verifyResult.Signer != nil {
		result.Signer = &SignerOutput{
			Name:         verifyResult.Signer.Name,
			Organization: verifyResult.Signer.Organization,
			SerialNumber: verifyResult.Signer.SerialNumber,
			Issuer:       verifyResult.Signer.Issuer,
			ValidFrom:    &verifyResult.Signer.ValidFrom,
			ValidTo:      &verifyResult.Signer.ValidTo,
		}
	}

	return result
}

// VerifyResult holds the result of verifying a single file
type VerifyResult struct {
	File           string        `json:"file"`
	Valid          bool          `json:"valid"`
	Format         string        `json:"format,omitempty"`
	Attachment     string        `json:"attachment,omitempty"`
	DocumentID     string        `json:"document_id,omitempty"`
	SignatureFound bool          `json:"signature_found"`
	SignatureValid bool          `json:"signature_valid"`
	CertChainValid bool          `json:"cert_chain_valid"`
	NotRevoked     bool          `json:"not_revoked"`
	Signer         *SignerOutput `json:"signer,omitempty"`
	Errors         []string      `json:"errors,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// SignerOutput holds signer info for output
type SignerOutput struct {
	Name         string     `json:"name,omitempty"`
	Organization string     `json:"organization,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
}
