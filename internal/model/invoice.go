package model

import (
	"github.com/shopspring/decimal"
)

// DefaultUnitCode is the UN/ECE rec 20 code for "one" (piece)
const DefaultUnitCode = "C62"

// DefaultCurrency is used when an invoice leaves Currency empty
const DefaultCurrency = "EUR"

// Invoice is one trade document. It is built once, validated, totalled and
// serialized; nothing in this module mutates it after construction.
type Invoice struct {
	Profile Profile      `json:"profile"`
	Kind    DocumentKind `json:"kind,omitempty"`
	Header  Header       `json:"header"`

	Seller   *Party `json:"seller,omitempty"`
	Buyer    *Party `json:"buyer,omitempty"`
	Delivery *Party `json:"deliveryParty,omitempty"`
	Payee    *Party `json:"payeeParty,omitempty"`

	Payment             PaymentDetails `json:"payment"`
	Currency            string         `json:"currency"`
	BuyerOrderReference string         `json:"buyerOrderReference,omitempty"`

	Lines            []Line            `json:"lines"`
	AllowanceCharges []AllowanceCharge `json:"docAllowanceCharges,omitempty"`
	AdditionalDocs   []AdditionalDoc   `json:"additionalDocs,omitempty"`

	// DefaultTax is the fallback for document-level allowances/charges
	// without their own rate or category.
	DefaultTax *TaxKey `json:"defaultTax,omitempty"`

	Disclaimers []string `json:"disclaimers,omitempty"`
	Notes       []string `json:"notes,omitempty"`
}

// CurrencyCode returns the invoice currency or DefaultCurrency
func (inv *Invoice) CurrencyCode() string {
	if inv.Currency == "" {
		return DefaultCurrency
	}
	return inv.Currency
}

// DocumentKind returns the kind, defaulting to KindInvoice
func (inv *Invoice) DocumentKind() DocumentKind {
	if inv.Kind == "" {
		return KindInvoice
	}
	return inv.Kind
}

// IsOrder reports whether the document is an Order-X order
func (inv *Invoice) IsOrder() bool {
	return inv.DocumentKind() == KindOrder
}

// TypeCode returns the header type code, defaulting to a commercial
// invoice or an order depending on the kind
func (inv *Invoice) TypeCode() DocTypeCode {
	if inv.Header.TypeCode == "" && inv.IsOrder() {
		return DocOrder
	}
	return inv.Header.DocType()
}

// AddLine appends a line during construction
func (inv *Invoice) AddLine(l Line) {
	inv.Lines = append(inv.Lines, l)
}

// AddAllowanceCharge appends a document-level allowance or charge
func (inv *Invoice) AddAllowanceCharge(ac AllowanceCharge) {
	inv.AllowanceCharges = append(inv.AllowanceCharges, ac)
}

// DocumentTax resolves the document-level fallback tax
func (inv *Invoice) DocumentTax() TaxKey {
	if inv.DefaultTax != nil {
		return inv.DefaultTax.normalize()
	}
	return TaxKey{Rate: decimal.Zero, Category: TaxStandard}
}

// Header identifies the document
type Header struct {
	ID        string      `json:"id,omitempty"`
	Number    string      `json:"invoiceNumber"`
	Name      string      `json:"name,omitempty"`
	IssueDate Date        `json:"invoiceDate"`
	TypeCode  DocTypeCode `json:"typeCode,omitempty"`
	Notes     []string    `json:"notes,omitempty"`
}

// DocumentID is the identifier emitted in the document header
func (h Header) DocumentID() string {
	if h.Number != "" {
		return h.Number
	}
	return h.ID
}

// DocType returns the type code, defaulting to a commercial invoice
func (h Header) DocType() DocTypeCode {
	if h.TypeCode == "" {
		return DocInvoice
	}
	return h.TypeCode
}

// Party is a seller, buyer, ship-to or payee
type Party struct {
	Name        string        `json:"name"`
	Address     PostalAddress `json:"postalAddress"`
	VATNumber   string        `json:"vatNumber,omitempty"`
	LegalID     string        `json:"legalId,omitempty"`
	LegalScheme string        `json:"legalScheme,omitempty"`
	Contacts    []Contact     `json:"contacts,omitempty"`
}

// PostalAddress of a party
type PostalAddress struct {
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
}

// Contact is a person reachable at a party
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// IsEmpty reports whether the contact carries no data
func (c Contact) IsEmpty() bool {
	return c.Name == "" && c.Phone == "" && c.Email == ""
}

// Line is one invoice line
type Line struct {
	ID               string            `json:"id"`
	Name             string            `json:"description"`
	Description      string            `json:"detail,omitempty"`
	Quantity         decimal.Decimal   `json:"quantity"`
	UnitPrice        decimal.Decimal   `json:"unitPrice"`
	TaxRate          decimal.Decimal   `json:"taxRate"`
	TaxCategory      TaxCategory       `json:"taxCategory,omitempty"`
	UnitCode         string            `json:"unitCode,omitempty"`
	AllowanceCharges []AllowanceCharge `json:"allowanceCharges,omitempty"`
}

// Total is quantity x unit price, before the line's own allowances/charges
func (l Line) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Tax returns the line's rate and category, defaulting the category to STANDARD
func (l Line) Tax() TaxKey {
	return TaxKey{Rate: l.TaxRate, Category: l.TaxCategory}.normalize()
}

// Unit returns the unit code or DefaultUnitCode
func (l Line) Unit() string {
	if l.UnitCode == "" {
		return DefaultUnitCode
	}
	return l.UnitCode
}

// Charges returns the line's charges in input order
func (l Line) Charges() []AllowanceCharge {
	return l.filter(true)
}

// Allowances returns the line's allowances in input order
func (l Line) Allowances() []AllowanceCharge {
	return l.filter(false)
}

func (l Line) filter(charge bool) []AllowanceCharge {
	var out []AllowanceCharge
	for _, ac := range l.AllowanceCharges {
		if ac.IsCharge == charge {
			out = append(out, ac)
		}
	}
	return out
}

// AllowanceCharge is a discount (IsCharge=false) or surcharge (IsCharge=true).
// Amount is non-negative; the sign comes from IsCharge.
type AllowanceCharge struct {
	IsCharge    bool             `json:"isCharge"`
	Amount      decimal.Decimal  `json:"actualAmount"`
	Reason      string           `json:"reason,omitempty"`
	ReasonCode  string           `json:"reasonCode,omitempty"`
	TaxRate     *decimal.Decimal `json:"taxRate,omitempty"`
	TaxCategory TaxCategory      `json:"taxCategory,omitempty"`
	StartDate   *Date            `json:"startDate,omitempty"`
	EndDate     *Date            `json:"endDate,omitempty"`
}

// NewAllowance creates a discount
func NewAllowance(amount decimal.Decimal, reason string) AllowanceCharge {
	return AllowanceCharge{Amount: amount, Reason: reason}
}

// NewCharge creates a surcharge
func NewCharge(amount decimal.Decimal, reason string) AllowanceCharge {
	return AllowanceCharge{IsCharge: true, Amount: amount, Reason: reason}
}

// HasTaxOverride reports whether the record carries its own rate or category
func (ac AllowanceCharge) HasTaxOverride() bool {
	return ac.TaxRate != nil || ac.TaxCategory != ""
}

// ResolveTax applies the record's overrides on top of parent
func (ac AllowanceCharge) ResolveTax(parent TaxKey) TaxKey {
	key := parent
	if ac.TaxRate != nil {
		key.Rate = *ac.TaxRate
	}
	if ac.TaxCategory != "" {
		key.Category = ac.TaxCategory
	}
	return key.normalize()
}

// HasPeriod reports whether a validity period is set
func (ac AllowanceCharge) HasPeriod() bool {
	return (ac.StartDate != nil && !ac.StartDate.IsZero()) ||
		(ac.EndDate != nil && !ac.EndDate.IsZero())
}

// TaxKey identifies a tax bucket
type TaxKey struct {
	Rate     decimal.Decimal `json:"rate"`
	Category TaxCategory     `json:"category"`
}

func (k TaxKey) normalize() TaxKey {
	if k.Category == "" {
		k.Category = TaxStandard
	}
	return k
}

// ID returns a canonical string form; 0.2 and 0.20 map to the same key
func (k TaxKey) ID() string {
	return k.Rate.String() + "|" + string(k.Category)
}

// PaymentDetails describes how the invoice is paid
type PaymentDetails struct {
	MeansCode string `json:"paymentMeansCode"`
	IBAN      string `json:"payeeIBAN,omitempty"`
	BIC       string `json:"payeeBIC,omitempty"`
	DueDate   *Date  `json:"dueDate,omitempty"`
	Terms     string `json:"paymentTerms,omitempty"`
}

// HasTerms reports whether a payment terms block is needed
func (p PaymentDetails) HasTerms() bool {
	return (p.DueDate != nil && !p.DueDate.IsZero()) || p.Terms != ""
}

// AdditionalDoc references a supporting document
type AdditionalDoc struct {
	TypeCode       string `json:"typeCode"`
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	AttachmentPath string `json:"attachmentPath,omitempty"`
}
