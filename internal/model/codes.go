package model

import (
	"fmt"
	"strings"
)

// TaxCategory classifies a tax treatment (UNTDID 5305)
type TaxCategory string

const (
	TaxStandard      TaxCategory = "STANDARD"
	TaxReduced       TaxCategory = "REDUCED"
	TaxZero          TaxCategory = "ZERO"
	TaxExempt        TaxCategory = "EXEMPT"
	TaxReverseCharge TaxCategory = "REVERSE_CHARGE"
	TaxOutOfScope    TaxCategory = "OUT_OF_SCOPE"
	TaxExport        TaxCategory = "EXPORT"
)

var taxCategoryCodes = map[TaxCategory]string{
	TaxStandard:      "S",
	TaxReduced:       "AA",
	TaxZero:          "Z",
	TaxExempt:        "E",
	TaxReverseCharge: "AE",
	TaxOutOfScope:    "O",
	TaxExport:        "G",
}

// Code returns the UNTDID 5305 code emitted in XML
func (c TaxCategory) Code() string {
	return taxCategoryCodes[c]
}

// Valid reports whether c is a known category
func (c TaxCategory) Valid() bool {
	_, ok := taxCategoryCodes[c]
	return ok
}

// UnmarshalText accepts either the category name or its code ("S", "AA", ...)
func (c *TaxCategory) UnmarshalText(text []byte) error {
	v := strings.ToUpper(strings.TrimSpace(string(text)))
	if v == "" {
		*c = ""
		return nil
	}
	if _, ok := taxCategoryCodes[TaxCategory(v)]; ok {
		*c = TaxCategory(v)
		return nil
	}
	for cat, code := range taxCategoryCodes {
		if code == v {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown tax category %q", string(text))
}

// DocTypeCode is the UNTDID 1001 document type
type DocTypeCode string

const (
	DocInvoice           DocTypeCode = "380"
	DocCreditNote        DocTypeCode = "381"
	DocDebitNote         DocTypeCode = "382"
	DocCorrection        DocTypeCode = "383"
	DocProForma          DocTypeCode = "384"
	DocAdvancePayment    DocTypeCode = "385"
	DocFinalInvoice      DocTypeCode = "386"
	DocCreditMemo        DocTypeCode = "387"
	DocAdjustmentInvoice DocTypeCode = "388"

	DocOrder         DocTypeCode = "220"
	DocOrderChange   DocTypeCode = "230"
	DocOrderResponse DocTypeCode = "231"
)

var docTypeNames = map[string]DocTypeCode{
	"INVOICE":            DocInvoice,
	"CREDIT_NOTE":        DocCreditNote,
	"DEBIT_NOTE":         DocDebitNote,
	"CORRECTION":         DocCorrection,
	"PRO_FORMA":          DocProForma,
	"ADVANCE_PAYMENT":    DocAdvancePayment,
	"FINAL_INVOICE":      DocFinalInvoice,
	"CREDIT_MEMO":        DocCreditMemo,
	"ADJUSTMENT_INVOICE": DocAdjustmentInvoice,
	"ORDER":              DocOrder,
	"ORDER_CHANGE":       DocOrderChange,
	"ORDER_RESPONSE":     DocOrderResponse,
}

// UnmarshalText accepts the numeric code or the symbolic name
func (d *DocTypeCode) UnmarshalText(text []byte) error {
	v := strings.ToUpper(strings.TrimSpace(string(text)))
	if v == "" {
		*d = ""
		return nil
	}
	if code, ok := docTypeNames[v]; ok {
		*d = code
		return nil
	}
	for _, code := range docTypeNames {
		if string(code) == v {
			*d = code
			return nil
		}
	}
	return fmt.Errorf("unknown document type %q", string(text))
}
