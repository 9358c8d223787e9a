package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx/internal/logger"
	"github.com/rezonia/facturx/internal/processor"
	"github.com/rezonia/facturx/internal/schema"
	"github.com/rezonia/facturx/internal/signature"
	"github.com/rezonia/facturx/internal/signature/xml"
)

var (
	genOutput   string
	genRounding string
	genSign     bool
	genXSDDir   string
	genPDF      string
	genName     string
	certFile    string
	keyFile     string
)

var generateCmd = &cobra.Command{
	Use:   "generate <invoice>",
	Short: "Generate Factur-X XML from invoices",
	Long: `Generate Cross Industry Invoice XML from JSON or YAML invoices.

The invoice is checked against its profile, totalled, assembled and then,
when requested, validated against the profile XSD and signed.

Examples:
  # Write XML to stdout
  facturx generate invoice.json

  # Write to a file using global rounding
  facturx generate invoice.yaml -o factur-x.xml --rounding global

  # Validate against the official schemas and sign
  facturx generate invoice.json -o out.xml --xsd-dir ./xsd --sign

  # Produce a Factur-X PDF in one step
  facturx generate invoice.json --pdf invoice.pdf -o invoice-facturx.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output file (default stdout)")
	generateCmd.Flags().StringVar(&genRounding, "rounding", "", "Rounding mode (line, global)")
	generateCmd.Flags().BoolVar(&genSign, "sign", false, "Sign the XML (env: FACTURX_SIGN_CERT, FACTURX_SIGN_KEY)")
	generateCmd.Flags().StringVar(&genXSDDir, "xsd-dir", "", "Directory of Factur-X XSD files (env: FACTURX_XSD_DIR)")
	generateCmd.Flags().StringVar(&genPDF, "pdf", "", "Embed the XML into this PDF; -o then names the PDF output")
	generateCmd.Flags().StringVar(&genName, "name", "", "Attachment name (default factur-x.xml, or orderx.xml for orders)")
	generateCmd.Flags().StringVar(&certFile, "cert", "", "Signing certificate chain (PEM)")
	generateCmd.Flags().StringVar(&keyFile, "key", "", "Signing private key (PEM)")
}

// loadSigner resolves the key pair from flags, falling back to the
// FACTURX_SIGN_* settings
func loadSigner() (signature.Signer, error) {
	cert, key := certFile, keyFile
	if cert == "" && key == "" {
		cert, key = cfg.Signing.CertFile, cfg.Signing.KeyFile
	}
	if cert == "" || key == "" {
		return nil, fmt.Errorf("signing needs --cert and --key (or FACTURX_SIGN_CERT and FACTURX_SIGN_KEY)")
	}
	signer, err := xml.LoadXMLSigner(cert, key)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("subject", signer.Certificate().Subject.CommonName).Msg("signing key loaded")
	return signer, nil
}

func xsdDir(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.XSDDir
}

func newPipeline() (*processor.Pipeline, func(), error) {
	mode, err := rounding(genRounding)
	if err != nil {
		return nil, nil, err
	}

	opts := []processor.Option{
		processor.WithRounding(mode),
		processor.WithLogger(logger.WithComponent("pipeline")),
	}
	cleanup := func() {}

	if dir := xsdDir(genXSDDir); dir != "" {
		v, err := schema.New(dir)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, processor.WithSchemaValidator(v))
		cleanup = v.Free
	}

	if genSign {
		signer, err := loadSigner()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, processor.WithSigner(signer))
	}

	return processor.NewPipeline(opts...), cleanup, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	pipeline, cleanup, err := newPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	inv, err := readInvoice(args[0])
	if err != nil {
		return err
	}
	result := pipeline.Generate(ctx, inv)
	if err := reportResult(cmd, args[0], result); err != nil {
		return err
	}

	if genPDF == "" {
		return writeOutput(cmd.OutOrStdout(), genOutput, result.XML)
	}

	in, err := os.Open(genPDF)
	if err != nil {
		return err
	}
	defer in.Close()

	var out bytes.Buffer
	if err := pipeline.Embed(in, &out, result.XML, genName); err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), genOutput, out.Bytes())
}

// reportResult prints warnings and violations to stderr and returns the
// failure, if any
func reportResult(cmd *cobra.Command, file string, result *processor.Result) error {
	errOut := cmd.ErrOrStderr()
	for _, w := range result.Warnings {
		fmt.Fprintf(errOut, "⚠ %s: %s\n", file, w)
	}
	if result.OK() {
		return nil
	}
	for _, v := range result.Violations {
		fmt.Fprintf(errOut, "✗ %s: %s\n", file, v.Error())
	}
	return fmt.Errorf("%s: %s failed: %w", file, result.Stage, result.Error)
}
