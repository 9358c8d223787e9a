package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rezonia/facturx/internal/config"
	"github.com/rezonia/facturx/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	envFiles     []string

	cfg       *config.Config
	log       = zerolog.Nop()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "facturx",
	Short: "Generate, sign and verify Factur-X invoices",
	Long: `facturx turns structured invoices (JSON or YAML) into Factur-X / ZUGFeRD
Cross Industry Invoice XML.

Supports:
  - Profiles MINIMUM, BASIC_WL, BASIC, EN16931 and EXTENDED
  - VAT breakdown with line or global rounding
  - Embedding the XML into a PDF as factur-x.xml
  - XMLDSig signatures and their verification

Examples:
  # Show the totals and VAT breakdown of an invoice
  facturx summary invoice.json

  # Generate the XML
  facturx generate invoice.yaml -o factur-x.xml

  # Attach it to a PDF
  facturx embed --pdf invoice.pdf --xml factur-x.xml -o invoice-facturx.pdf`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env files to load before the environment (default .env)")
}

// initConfig loads settings from env files and the environment, then sets
// up logging. --verbose forces debug logs.
func initConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	if verbose {
		loaded.Debug = true
	}
	cfg = loaded

	closer, err := logger.Setup(cfg.Logger())
	if err != nil {
		return err
	}
	logCloser = closer
	log = logger.WithComponent("cli")
	return nil
}

func printVerbose(w io.Writer, format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(w, format, args...)
	}
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
