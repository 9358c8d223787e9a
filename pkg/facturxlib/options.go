package facturxlib

// GeneratorOptions configures a Generator
type GeneratorOptions struct {
	// Rounding is RoundLine or RoundGlobal (default: RoundLine)
	Rounding RoundingMode

	// Signing, enabled when both files are set
	SignCertFile string // PEM certificate chain, signer first
	SignKeyFile  string // PEM private key

	// XSDDir holds the Factur-X schemas; empty skips schema validation
	XSDDir string
}

// DefaultGeneratorOptions returns default generator options
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Rounding: RoundLine,
	}
}
