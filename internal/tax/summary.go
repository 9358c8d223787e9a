package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx/internal/decimal"
	"github.com/rezonia/facturx/internal/model"
)

// Bucket accumulates taxable base and tax for one (rate, category)
type Bucket struct {
	Key     model.TaxKey
	Taxable decimal.Decimal
	Tax     decimal.Decimal
}

func (b Bucket) breakdown() Breakdown {
	return Breakdown{
		Rate:     money.ToPercent(b.Key.Rate),
		Category: b.Key.Category,
		Taxable:  b.Taxable,
		Tax:      b.Tax,
	}
}

// Breakdown is a bucket ready for display; Rate is a percentage (20 = 20%)
type Breakdown struct {
	Rate     decimal.Decimal   `json:"rate"`
	Category model.TaxCategory `json:"category"`
	Taxable  decimal.Decimal   `json:"taxable"`
	Tax      decimal.Decimal   `json:"tax"`
}

// CategoryCode returns the UNTDID 5305 code of the bucket category
func (b Breakdown) CategoryCode() string {
	return b.Category.Code()
}

// Summary holds the totals of one document
type Summary struct {
	LineTotal  decimal.Decimal `json:"lineTotal"`
	TaxBasis   decimal.Decimal `json:"taxBasis"`
	TaxTotal   decimal.Decimal `json:"taxTotal"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	Buckets    []Breakdown     `json:"taxBreakdown"`

	// LineCount is the number of lines the summary was computed from
	LineCount int `json:"lineCount"`
}

// Check verifies the monetary identities of a summary
func (s Summary) Check() error {
	if !s.GrandTotal.Equal(s.TaxBasis.Add(s.TaxTotal)) {
		return fmt.Errorf("grand total %s != tax basis %s + tax total %s", s.GrandTotal, s.TaxBasis, s.TaxTotal)
	}

	taxable, taxSum := decimal.Zero, decimal.Zero
	for _, b := range s.Buckets {
		taxable = taxable.Add(b.Taxable)
		taxSum = taxSum.Add(b.Tax)
	}
	if !taxSum.Equal(s.TaxTotal) {
		return fmt.Errorf("bucket tax sum %s != tax total %s", taxSum, s.TaxTotal)
	}
	if !taxable.Equal(s.TaxBasis) {
		return fmt.Errorf("bucket taxable sum %s != tax basis %s", taxable, s.TaxBasis)
	}
	return nil
}

// Bucket returns the breakdown for a percentage rate and category
func (s Summary) Bucket(ratePercent decimal.Decimal, category model.TaxCategory) (Breakdown, bool) {
	for _, b := range s.Buckets {
		if b.Rate.Equal(ratePercent) && b.Category == category {
			return b, true
		}
	}
	return Breakdown{}, false
}
