package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx/internal/tax"
)

var summaryRounding string

var summaryCmd = &cobra.Command{
	Use:   "summary [files...]",
	Short: "Show totals and VAT breakdown of invoices",
	Long: `Compute the monetary summary of one or more invoices without generating XML.

The breakdown groups taxable amounts by (rate, category) in order of first
appearance. Rounding defaults to FACTURX_ROUNDING.

Examples:
  facturx summary invoice.json
  facturx summary invoices/ --rounding global -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().StringVar(&summaryRounding, "rounding", "", "Rounding mode (line, global)")
}

// SummaryResult holds the summary of a single file
type SummaryResult struct {
	File     string       `json:"file"`
	Invoice  string       `json:"invoice,omitempty"`
	Profile  string       `json:"profile,omitempty"`
	Currency string       `json:"currency,omitempty"`
	Summary  *tax.Summary `json:"summary,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func rounding(flag string) (tax.RoundingMode, error) {
	if flag == "" {
		return cfg.RoundingMode(), nil
	}
	return tax.ParseRoundingMode(flag)
}

func runSummary(cmd *cobra.Command, args []string) error {
	mode, err := rounding(summaryRounding)
	if err != nil {
		return err
	}

	files, err := collectFiles(args, invoiceExts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no invoice files found")
	}

	results := make([]*SummaryResult, 0, len(files))
	failed := false
	for _, file := range files {
		printVerbose(cmd.ErrOrStderr(), "Summarizing: %s\n", file)
		r := &SummaryResult{File: file}
		results = append(results, r)

		inv, err := readInvoice(file)
		if err != nil {
			r.Error = err.Error()
			failed = true
			continue
		}
		s := tax.Compute(inv, mode)
		if err := s.Check(); err != nil {
			r.Error = err.Error()
			failed = true
			continue
		}
		r.Invoice = inv.Header.Number
		r.Profile = string(inv.Profile)
		r.Currency = inv.CurrencyCode()
		r.Summary = &s
		log.Debug().Str("file", file).Str("grand_total", s.GrandTotal.StringFixed(2)).Msg("summary computed")
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintf(out, "✗ %s: %s\n", r.File, r.Error)
				continue
			}
			s := r.Summary
			fmt.Fprintf(out, "%s (%s, %s, rounding %s)\n", r.File, r.Invoice, r.Profile, mode)
			fmt.Fprintf(out, "  Line total:  %s %s\n", s.LineTotal.StringFixed(2), r.Currency)
			fmt.Fprintf(out, "  Tax basis:   %s %s\n", s.TaxBasis.StringFixed(2), r.Currency)
			for _, b := range s.Buckets {
				fmt.Fprintf(out, "    %-9s %6s%%  base %s  tax %s\n",
					b.Category, b.Rate.String(), b.Taxable.StringFixed(2), b.Tax.StringFixed(2))
			}
			fmt.Fprintf(out, "  Tax total:   %s %s\n", s.TaxTotal.StringFixed(2), r.Currency)
			fmt.Fprintf(out, "  Grand total: %s %s\n", s.GrandTotal.StringFixed(2), r.Currency)
		}
	}

	if failed {
		return fmt.Errorf("summary failed for some files")
	}
	return nil
}
