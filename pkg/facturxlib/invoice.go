// Package facturxlib provides a public API for producing Factur-X invoices.
//
// It exposes the invoice model together with a Generator that checks an
// invoice against its profile, computes the VAT breakdown and assembles
// the Cross Industry Invoice XML.
//
// Example usage:
//
//	gen, err := facturxlib.NewGenerator(facturxlib.DefaultGeneratorOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gen.Close()
//	out, err := gen.Generate(ctx, inv)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("factur-x.xml", out.XML, 0o644)
package facturxlib

import (
	"github.com/rezonia/facturx/internal/model"
	"github.com/rezonia/facturx/internal/tax"
)

// Re-export core types for public API
type (
	Invoice         = model.Invoice
	Header          = model.Header
	Party           = model.Party
	PostalAddress   = model.PostalAddress
	Contact         = model.Contact
	Line            = model.Line
	AllowanceCharge = model.AllowanceCharge
	TaxKey          = model.TaxKey
	PaymentDetails  = model.PaymentDetails
	AdditionalDoc   = model.AdditionalDoc
	Date            = model.Date
	Profile         = model.Profile
	TaxCategory     = model.TaxCategory
	DocTypeCode     = model.DocTypeCode
	Summary         = tax.Summary
	Breakdown       = tax.Breakdown
	RoundingMode    = tax.RoundingMode
)

// Re-export profiles
const (
	ProfileMinimum  = model.ProfileMinimum
	ProfileBasicWL  = model.ProfileBasicWL
	ProfileBasic    = model.ProfileBasic
	ProfileEN16931  = model.ProfileEN16931
	ProfileExtended = model.ProfileExtended
)

// Re-export tax categories
const (
	TaxStandard      = model.TaxStandard
	TaxReduced       = model.TaxReduced
	TaxZero          = model.TaxZero
	TaxExempt        = model.TaxExempt
	TaxReverseCharge = model.TaxReverseCharge
	TaxOutOfScope    = model.TaxOutOfScope
	TaxExport        = model.TaxExport
)

// Re-export rounding modes
const (
	RoundLine   = tax.RoundLine
	RoundGlobal = tax.RoundGlobal
)

// Re-export input formats
const (
	FormatJSON = model.FormatJSON
	FormatYAML = model.FormatYAML
)

// Re-export error types
type (
	ParseError       = model.ParseError
	ProfileViolation = model.ProfileViolation
)

// Re-export helpers
var (
	NewDate       = model.NewDate
	ParseDate     = model.ParseDate
	ParseProfile  = model.ParseProfile
	DecodeInvoice = model.DecodeInvoice
)
