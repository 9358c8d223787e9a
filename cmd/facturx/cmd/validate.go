package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx/internal/processor"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Check invoices against their profile",
	Long: `Check one or more invoices against the field policy of their Factur-X profile.

Checks performed:
  - Mandatory fields present (number, date, seller, buyer, lines)
  - Fields the profile forbids are absent
  - Profile rules (EN16931 requires a seller VAT number)

Examples:
  facturx validate invoice.json
  facturx validate invoices/*.yaml -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// ValidationResult holds the result of validating a single file
type ValidationResult struct {
	File     string   `json:"file"`
	Valid    bool     `json:"valid"`
	Profile  string   `json:"profile,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, invoiceExts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	pipeline := processor.NewPipeline(processor.WithRounding(cfg.RoundingMode()), processor.WithLogger(log))
	results := make([]*ValidationResult, 0, len(files))
	allValid := true

	for _, file := range files {
		result := validateFile(pipeline, file)
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
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(out, "✓ %s: VALID (%s)\n", r.File, r.Profile)
			} else {
				fmt.Fprintf(out, "✗ %s: INVALID\n", r.File)
			}
			for _, e := range r.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}
			for _, w := range r.Warnings {
				fmt.Fprintf(out, "  ⚠ %s\n", w)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}

func validateFile(pipeline *processor.Pipeline, file string) *ValidationResult {
	result := &ValidationResult{File: file}

	inv, err := readInvoice(file)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Profile = string(inv.Profile)

	violations := pipeline.Validate(inv)
	for _, v := range violations {
		result.Errors = append(result.Errors, v.Error())
	}
	if len(violations) > 0 {
		return result
	}

	// a dry run catches summary errors and collects warnings
	res := pipeline.Generate(context.Background(), inv)
	result.Warnings = res.Warnings
	if !res.OK() {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", res.Stage, res.Error))
		return result
	}
	result.Valid = true
	return result
}
