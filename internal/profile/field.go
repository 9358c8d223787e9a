package profile

import (
	"fmt"

	"github.com/rezonia/facturx/internal/model"
)

// Field names a checkable part of an invoice by its dotted path
type Field string

const (
	FieldInvoiceNumber       Field = "header.invoiceNumber"
	FieldInvoiceDate         Field = "header.invoiceDate"
	FieldHeaderNotes         Field = "header.notes"
	FieldSeller              Field = "seller"
	FieldSellerVAT           Field = "seller.vatNumber"
	FieldBuyer               Field = "buyer"
	FieldDeliveryParty       Field = "deliveryParty"
	FieldPayeeParty          Field = "payeeParty"
	FieldBuyerOrderReference Field = "buyerOrderReference"
	FieldLines               Field = "lines"
	FieldDocAllowanceCharges Field = "docAllowanceCharges"
	FieldAdditionalDocs      Field = "additionalDocs"
	FieldNotes               Field = "notes"
	FieldDisclaimers         Field = "disclaimers"
)

// Present reports whether the field is set on inv. Nil parents, empty
// strings, zero dates and empty slices count as absent.
func (f Field) Present(inv *model.Invoice) bool {
	switch f {
	case FieldInvoiceNumber:
		return inv.Header.Number != ""
	case FieldInvoiceDate:
		return !inv.Header.IssueDate.IsZero()
	case FieldHeaderNotes:
		return len(inv.Header.Notes) > 0
	case FieldSeller:
		return inv.Seller != nil
	case FieldSellerVAT:
		return inv.Seller != nil && inv.Seller.VATNumber != ""
	case FieldBuyer:
		return inv.Buyer != nil
	case FieldDeliveryParty:
		return inv.Delivery != nil
	case FieldPayeeParty:
		return inv.Payee != nil
	case FieldBuyerOrderReference:
		return inv.BuyerOrderReference != ""
	case FieldLines:
		return len(inv.Lines) > 0
	case FieldDocAllowanceCharges:
		return len(inv.AllowanceCharges) > 0
	case FieldAdditionalDocs:
		return len(inv.AdditionalDocs) > 0
	case FieldNotes:
		return len(inv.Notes) > 0
	case FieldDisclaimers:
		return len(inv.Disclaimers) > 0
	default:
		panic(fmt.Sprintf("profile: no presence check for field %q", string(f)))
	}
}

// Fields lists every field known to Present
var Fields = []Field{
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldHeaderNotes,
	FieldSeller,
	FieldSellerVAT,
	FieldBuyer,
	FieldDeliveryParty,
	FieldPayeeParty,
	FieldBuyerOrderReference,
	FieldLines,
	FieldDocAllowanceCharges,
	FieldAdditionalDocs,
	FieldNotes,
	FieldDisclaimers,
}
