package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var signOutput string

var signCmd = &cobra.Command{
	Use:   "sign <file.xml>",
	Short: "Sign a Factur-X XML document",
	Long: `Add an enveloped XMLDSig signature to a generated XML document.

The certificate file may hold the whole chain; every certificate is carried
in the signature's KeyInfo so verifiers can build the path to a trusted root.

Examples:
  facturx sign factur-x.xml --cert signer.pem --key signer.key -o signed.xml
  FACTURX_SIGN_CERT=signer.pem FACTURX_SIGN_KEY=signer.key facturx sign factur-x.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVarP(&signOutput, "output", "o", "", "Output file (default stdout)")
	signCmd.Flags().StringVar(&certFile, "cert", "", "Signing certificate chain (PEM)")
	signCmd.Flags().StringVar(&keyFile, "key", "", "Signing private key (PEM)")
}

func runSign(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	signer, err := loadSigner()
	if err != nil {
		return err
	}

	signed, err := signer.Sign(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	log.Info().Str("file", args[0]).Str("signer", signer.Certificate().Subject.CommonName).Msg("document signed")

	return writeOutput(cmd.OutOrStdout(), signOutput, signed)
}
