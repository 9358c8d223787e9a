// Package cii assembles a UN/CEFACT Cross Industry Invoice (Factur-X) or
// Cross Industry Order (Order-X) document from a validated invoice and its
// computed summary.
//
// The document is first built as a tree of Node values and then serialized
// in a single pass. Build never recomputes totals: every monetary figure in
// the header settlement comes from the tax.Summary it is given. Children
// follow the sequences of the D16B schemas, so line items open the trade
// transaction and payment means precede the tax breakdown.
package cii

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx/internal/decimal"
	"github.com/rezonia/facturx/internal/model"
	"github.com/rezonia/facturx/internal/tax"
)

// XML namespaces declared on the root element
const (
	NamespaceRSM      = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	NamespaceRSMOrder = "urn:un:unece:uncefact:data:standard:CrossIndustryOrder:100"
	NamespaceRAM      = "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	NamespaceUDT      = "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100"
)

// Qualified names of the document element
const (
	RootName      = "rsm:CrossIndustryInvoice"
	RootNameOrder = "rsm:CrossIndustryOrder"
)

// rootElement returns the document element name and rsm namespace of kind
func rootElement(kind model.DocumentKind) (name, ns string) {
	if kind == model.KindOrder {
		return RootNameOrder, NamespaceRSMOrder
	}
	return RootName, NamespaceRSM
}

const (
	dateFormat102  = "102"
	taxTypeVAT     = "VAT"
	schemeVAT      = "VA"
	noteSubjectREG = "REG"
)

// BuildXML assembles and serializes the document
func BuildXML(inv *model.Invoice, s tax.Summary) []byte {
	return Marshal(Build(inv, s))
}

// Build assembles the document tree. inv must have passed profile
// validation and s must have been computed from inv; Build panics when
// the seller or buyer is missing or when s covers a different number of
// lines.
func Build(inv *model.Invoice, s tax.Summary) Node {
	mustBuildable(inv, s)

	name, ns := rootElement(inv.DocumentKind())
	return Node{
		Name: name,
		Attrs: []Attr{
			attr("xmlns:rsm", ns),
			attr("xmlns:ram", NamespaceRAM),
			attr("xmlns:udt", NamespaceUDT),
		},
		Children: []Node{
			documentContext(inv),
			exchangedDocument(inv),
			transaction(inv, s),
		},
	}
}

func mustBuildable(inv *model.Invoice, s tax.Summary) {
	switch {
	case inv == nil:
		panic("cii: nil invoice")
	case !inv.Profile.Valid():
		panic(fmt.Sprintf("cii: unknown profile %q", string(inv.Profile)))
	case inv.IsOrder() && !inv.Profile.SupportsOrders():
		panic(fmt.Sprintf("cii: profile %s has no order document", inv.Profile))
	case inv.Seller == nil:
		panic("cii: invoice has no seller")
	case inv.Buyer == nil:
		panic("cii: invoice has no buyer")
	case s.LineCount != len(inv.Lines):
		panic(fmt.Sprintf("cii: summary covers %d lines, invoice has %d", s.LineCount, len(inv.Lines)))
	}
}

func documentContext(inv *model.Invoice) Node {
	return el("rsm:ExchangedDocumentContext",
		el("ram:GuidelineSpecifiedDocumentContextParameter",
			leaf("ram:ID", inv.Profile.GuidelineFor(inv.DocumentKind())),
		),
	)
}

func exchangedDocument(inv *model.Invoice) Node {
	h := inv.Header
	return el("rsm:ExchangedDocument", seq(
		[]Node{
			leaf("ram:ID", h.DocumentID()),
			leaf("ram:TypeCode", string(inv.TypeCode())),
			dateTime("ram:IssueDateTime", h.IssueDate),
			leaf("ram:Name", h.Name),
		},
		each(h.Notes, note),
		each(inv.Notes, note),
		each(inv.Disclaimers, disclaimer),
	)...)
}

func note(_ int, text string) Node {
	return el("ram:IncludedNote", leaf("ram:Content", text))
}

func disclaimer(_ int, text string) Node {
	n := note(0, text)
	if n.IsZero() {
		return n
	}
	n.Children = append(n.Children, leaf("ram:SubjectCode", noteSubjectREG))
	return n
}

func transaction(inv *model.Invoice, s tax.Summary) Node {
	var items []Node
	if inv.Profile.HasLineItems() {
		order := inv.IsOrder()
		items = each(inv.Lines, func(i int, l model.Line) Node {
			return lineItem(i, l, order)
		})
	}
	return el("rsm:SupplyChainTradeTransaction", seq(
		items,
		[]Node{
			agreement(inv),
			delivery(inv),
			settlement(inv, s),
		},
	)...)
}

func agreement(inv *model.Invoice) Node {
	return el("ram:ApplicableHeaderTradeAgreement", seq(
		[]Node{
			party("ram:SellerTradeParty", inv.Seller),
			party("ram:BuyerTradeParty", inv.Buyer),
			el("ram:BuyerOrderReferencedDocument", leaf("ram:IssuerAssignedID", inv.BuyerOrderReference)),
		},
		each(inv.AdditionalDocs, additionalDoc),
	)...)
}

func additionalDoc(_ int, d model.AdditionalDoc) Node {
	return el("ram:AdditionalReferencedDocument",
		leaf("ram:IssuerAssignedID", d.ID),
		leaf("ram:URIID", d.AttachmentPath),
		leaf("ram:TypeCode", d.TypeCode),
		leaf("ram:Name", d.Name),
	)
}

func delivery(inv *model.Invoice) Node {
	return el("ram:ApplicableHeaderTradeDelivery",
		party("ram:ShipToTradeParty", inv.Delivery),
	)
}

func settlement(inv *model.Invoice, s tax.Summary) Node {
	docTax := inv.DocumentTax()
	currency := inv.CurrencyCode()
	currencyElem := "ram:InvoiceCurrencyCode"
	if inv.IsOrder() {
		currencyElem = "ram:OrderCurrencyCode"
	}

	return el("ram:ApplicableHeaderTradeSettlement", seq(
		[]Node{
			leaf(currencyElem, currency),
			party("ram:PayeeTradeParty", inv.Payee),
			paymentMeans(inv.Payment),
		},
		each(s.Buckets, bucketTax),
		each(inv.AllowanceCharges, func(_ int, ac model.AllowanceCharge) Node {
			return allowanceCharge(ac, docTax)
		}),
		[]Node{
			paymentTerms(inv.Payment),
			monetarySummation(s, currency),
		},
	)...)
}

func bucketTax(_ int, b tax.Breakdown) Node {
	return el("ram:ApplicableTradeTax",
		leaf("ram:CalculatedAmount", money.FormatAmount(b.Tax)),
		leaf("ram:TypeCode", taxTypeVAT),
		leaf("ram:BasisAmount", money.FormatAmount(b.Taxable)),
		leaf("ram:CategoryCode", b.CategoryCode()),
		leaf("ram:RateApplicablePercent", money.FormatPercent(b.Rate)),
	)
}

func monetarySummation(s tax.Summary, currency string) Node {
	return el("ram:SpecifiedTradeSettlementHeaderMonetarySummation",
		leaf("ram:LineTotalAmount", money.FormatAmount(s.LineTotal)),
		leaf("ram:TaxBasisTotalAmount", money.FormatAmount(s.TaxBasis)),
		leaf("ram:TaxTotalAmount", money.FormatAmount(s.TaxTotal), attr("currencyID", currency)),
		leaf("ram:GrandTotalAmount", money.FormatAmount(s.GrandTotal)),
	)
}

func paymentMeans(p model.PaymentDetails) Node {
	return el("ram:SpecifiedTradeSettlementPaymentMeans",
		leaf("ram:TypeCode", p.MeansCode),
		el("ram:PayeePartyCreditorFinancialAccount", leaf("ram:IBANID", p.IBAN)),
		el("ram:PayeeSpecifiedCreditorFinancialInstitution", leaf("ram:BICID", p.BIC)),
	)
}

func paymentTerms(p model.PaymentDetails) Node {
	return when(p.HasTerms(), func() Node {
		return el("ram:SpecifiedTradePaymentTerms",
			optionalDateTime("ram:DueDateDateTime", p.DueDate),
			leaf("ram:Description", p.Terms),
		)
	})
}

// allowanceCharge renders one record; the tax sub-element is only written
// when the record overrides the rate or category of parent.
func allowanceCharge(ac model.AllowanceCharge, parent model.TaxKey) Node {
	return el("ram:SpecifiedTradeAllowanceCharge",
		el("ram:ChargeIndicator", leaf("udt:Indicator", strconv.FormatBool(ac.IsCharge))),
		leaf("ram:ActualAmount", money.FormatAmount(ac.Amount)),
		leaf("ram:ReasonCode", ac.ReasonCode),
		leaf("ram:Reason", ac.Reason),
		when(ac.HasTaxOverride(), func() Node {
			key := ac.ResolveTax(parent)
			return el("ram:CategoryTradeTax",
				leaf("ram:TypeCode", taxTypeVAT),
				leaf("ram:CategoryCode", key.Category.Code()),
				leaf("ram:RateApplicablePercent", percent(key.Rate)),
			)
		}),
		when(ac.HasPeriod(), func() Node {
			return el("ram:EffectiveSpecifiedPeriod",
				optionalDateTime("ram:StartDateTime", ac.StartDate),
				optionalDateTime("ram:EndDateTime", ac.EndDate),
			)
		}),
	)
}

func lineItem(i int, l model.Line, order bool) Node {
	id := l.ID
	if id == "" {
		id = strconv.Itoa(i + 1)
	}
	lineTax := l.Tax()
	unit := l.Unit()
	qty := money.FormatQuantity(l.Quantity)
	quantityElem := "ram:BilledQuantity"
	if order {
		quantityElem = "ram:RequestedQuantity"
	}

	return el("ram:IncludedSupplyChainTradeLineItem",
		el("ram:AssociatedDocumentLineDocument", leaf("ram:LineID", id)),
		el("ram:SpecifiedTradeProduct",
			leaf("ram:Name", l.Name),
			leaf("ram:Description", l.Description),
		),
		el("ram:SpecifiedLineTradeAgreement",
			el("ram:GrossPriceProductTradePrice",
				leaf("ram:ChargeAmount", money.FormatPrice(l.UnitPrice)),
				leaf("ram:BasisQuantity", qty, attr("unitCode", unit)),
			),
		),
		el("ram:SpecifiedLineTradeDelivery",
			leaf(quantityElem, qty, attr("unitCode", unit)),
		),
		el("ram:SpecifiedLineTradeSettlement", seq(
			[]Node{
				el("ram:ApplicableTradeTax",
					leaf("ram:TypeCode", taxTypeVAT),
					leaf("ram:CategoryCode", lineTax.Category.Code()),
					leaf("ram:RateApplicablePercent", percent(lineTax.Rate)),
				),
			},
			each(l.Charges(), func(_ int, ac model.AllowanceCharge) Node {
				return allowanceCharge(ac, lineTax)
			}),
			each(l.Allowances(), func(_ int, ac model.AllowanceCharge) Node {
				return allowanceCharge(ac, lineTax)
			}),
			[]Node{
				el("ram:SpecifiedTradeSettlementLineMonetarySummation",
					leaf("ram:LineTotalAmount", money.FormatAmount(l.Total())),
				),
			},
		)...),
	)
}

func party(name string, p *model.Party) Node {
	if p == nil {
		return Node{}
	}
	return el(name, seq(
		[]Node{
			leaf("ram:Name", p.Name),
			el("ram:SpecifiedLegalOrganization", leaf("ram:ID", p.LegalID, attr("schemeID", p.LegalScheme))),
		},
		each(p.Contacts, contact),
		[]Node{
			postalAddress(p.Address),
			el("ram:SpecifiedTaxRegistration", leaf("ram:ID", p.VATNumber, attr("schemeID", schemeVAT))),
		},
	)...)
}

func contact(_ int, c model.Contact) Node {
	return el("ram:DefinedTradeContact",
		leaf("ram:PersonName", c.Name),
		el("ram:TelephoneUniversalCommunication", leaf("ram:CompleteNumber", c.Phone)),
		el("ram:EmailURIUniversalCommunication", leaf("ram:URIID", c.Email)),
	)
}

func postalAddress(a model.PostalAddress) Node {
	return el("ram:PostalTradeAddress",
		leaf("ram:PostcodeCode", a.PostalCode),
		leaf("ram:LineOne", a.Line1),
		leaf("ram:LineTwo", a.Line2),
		leaf("ram:CityName", a.City),
		leaf("ram:CountryID", a.CountryCode),
	)
}

func dateTime(name string, d model.Date) Node {
	if d.IsZero() {
		return Node{}
	}
	return el(name, leaf("udt:DateTimeString", d.Format102(), attr("format", dateFormat102)))
}

func optionalDateTime(name string, d *model.Date) Node {
	if d == nil {
		return Node{}
	}
	return dateTime(name, *d)
}

func percent(rate decimal.Decimal) string {
	return money.FormatPercent(money.ToPercent(rate))
}
