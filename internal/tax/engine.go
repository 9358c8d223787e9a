// Package tax computes the monetary summary of a trade document: line total,
// tax basis, per-(rate, category) tax buckets and grand total.
//
// The computation is a pure fold over the document's contributions. It keeps
// no state between calls and is safe to use from any number of goroutines.
package tax

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx/internal/decimal"
	"github.com/rezonia/facturx/internal/model"
)

// RoundingMode selects when tax amounts are rounded
type RoundingMode string

const (
	// RoundLine rounds the tax of every contribution before summing
	RoundLine RoundingMode = "line"
	// RoundGlobal sums taxable bases and rounds once per bucket
	RoundGlobal RoundingMode = "global"
)

// ParseRoundingMode parses "line" or "global"; empty means RoundLine
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoundLine:
		return RoundLine, nil
	case RoundGlobal:
		return RoundGlobal, nil
	default:
		return "", fmt.Errorf("unknown rounding mode %q (want line or global)", s)
	}
}

// normalized maps any spelling of "global" to RoundGlobal and every other
// value to RoundLine
func (m RoundingMode) normalized() RoundingMode {
	if strings.EqualFold(strings.TrimSpace(string(m)), string(RoundGlobal)) {
		return RoundGlobal
	}
	return RoundLine
}

// Options configures one computation
type Options struct {
	Rounding RoundingMode
	// DocumentTax is the rate/category for document-level allowances and
	// charges that carry no override.
	DocumentTax model.TaxKey
}

// DefaultOptions rounds per line and falls back to STANDARD at rate 0
func DefaultOptions() Options {
	return Options{
		Rounding:    RoundLine,
		DocumentTax: model.TaxKey{Rate: decimal.Zero, Category: model.TaxStandard},
	}
}

// Compute totals an invoice with its own document-level fallback tax
func Compute(inv *model.Invoice, mode RoundingMode) Summary {
	return ComputeSummary(inv.Lines, inv.AllowanceCharges, Options{
		Rounding:    mode,
		DocumentTax: inv.DocumentTax(),
	})
}

// contribution is one signed amount flowing into a bucket
type contribution struct {
	key    model.TaxKey
	amount decimal.Decimal
	base   bool // raw line amount, counted in lineTotal
}

// ComputeSummary totals lines and document-level allowances/charges.
// Inputs are never modified; negative bases are carried through as is.
// Any rounding mode other than RoundGlobal rounds per line.
func ComputeSummary(lines []model.Line, docACs []model.AllowanceCharge, opts Options) Summary {
	mode := opts.Rounding.normalized()

	acc := fold(contributions(lines, docACs, opts.DocumentTax), newAccumulator(), func(a accumulator, c contribution) accumulator {
		return a.add(c, mode)
	})

	if mode == RoundGlobal {
		for _, id := range acc.order {
			b := acc.buckets[id]
			b.Tax = money.TaxOf(b.Taxable, b.Key.Rate)
			acc.buckets[id] = b
		}
	}

	return acc.summary(len(lines))
}

// contributions flattens the document in walk order: each line's base,
// then its allowances/charges, then document-level records.
func contributions(lines []model.Line, docACs []model.AllowanceCharge, docTax model.TaxKey) []contribution {
	out := make([]contribution, 0, len(lines)+len(docACs))
	for _, line := range lines {
		lineTax := line.Tax()
		out = append(out, contribution{key: lineTax, amount: line.Total(), base: true})
		for _, ac := range line.AllowanceCharges {
			out = append(out, contribution{
				key:    ac.ResolveTax(lineTax),
				amount: money.Signed(ac.Amount, ac.IsCharge),
			})
		}
	}
	for _, ac := range docACs {
		out = append(out, contribution{
			key:    ac.ResolveTax(docTax),
			amount: money.Signed(ac.Amount, ac.IsCharge),
		})
	}
	return out
}

func fold[T, S any](items []T, init S, step func(S, T) S) S {
	state := init
	for _, it := range items {
		state = step(state, it)
	}
	return state
}

// accumulator is local to one ComputeSummary call
type accumulator struct {
	lineTotal   decimal.Decimal
	adjustments decimal.Decimal
	buckets     map[string]Bucket
	order       []string
}

func newAccumulator() accumulator {
	return accumulator{
		lineTotal:   decimal.Zero,
		adjustments: decimal.Zero,
		buckets:     make(map[string]Bucket),
	}
}

func (a accumulator) add(c contribution, mode RoundingMode) accumulator {
	if c.base {
		a.lineTotal = a.lineTotal.Add(c.amount)
	} else {
		a.adjustments = a.adjustments.Add(c.amount)
	}

	id := c.key.ID()
	b, ok := a.buckets[id]
	if !ok {
		b = Bucket{Key: c.key, Taxable: decimal.Zero, Tax: decimal.Zero}
		a.order = append(a.order, id)
	}
	b.Taxable = b.Taxable.Add(c.amount)
	if mode == RoundLine {
		b.Tax = b.Tax.Add(money.TaxOf(c.amount, c.key.Rate))
	}
	a.buckets[id] = b
	return a
}

func (a accumulator) summary(lineCount int) Summary {
	s := Summary{
		LineTotal: a.lineTotal,
		TaxBasis:  a.lineTotal.Add(a.adjustments),
		TaxTotal:  decimal.Zero,
		LineCount: lineCount,
		Buckets:   make([]Breakdown, 0, len(a.order)),
	}
	for _, id := range a.order {
		b := a.buckets[id]
		s.TaxTotal = s.TaxTotal.Add(b.Tax)
		s.Buckets = append(s.Buckets, b.breakdown())
	}
	s.GrandTotal = s.TaxBasis.Add(s.TaxTotal)
	return s
}
