// Package profile checks an invoice against the field policy of its
// Factur-X profile before any totals or XML are produced.
package profile

import (
	"fmt"

	"github.com/rezonia/facturx/internal/model"
)

// Policy lists what a profile requires and what it rejects. Rules run after
// the field checks and carry profile-specific structural requirements.
type Policy struct {
	Mandatory []Field `json:"mandatory"`
	Forbidden []Field `json:"forbidden"`
	Rules     []Field `json:"rules,omitempty"`
}

var header = []Field{FieldInvoiceNumber, FieldInvoiceDate, FieldSeller, FieldBuyer}

func withLines(fields []Field) []Field {
	out := make([]Field, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, FieldLines)
}

var policies = map[model.Profile]Policy{
	model.ProfileMinimum: {
		Mandatory: header,
		Forbidden: []Field{
			FieldDeliveryParty,
			FieldPayeeParty,
			FieldDocAllowanceCharges,
			FieldAdditionalDocs,
			FieldHeaderNotes,
			FieldNotes,
			FieldDisclaimers,
		},
	},
	model.ProfileBasicWL: {
		Mandatory: withLines(header),
		Forbidden: []Field{FieldDeliveryParty, FieldDocAllowanceCharges, FieldAdditionalDocs},
	},
	model.ProfileBasic: {
		Mandatory: withLines(header),
		Forbidden: []Field{FieldDeliveryParty, FieldDocAllowanceCharges, FieldAdditionalDocs},
	},
	model.ProfileEN16931: {
		Mandatory: withLines(header),
		Rules:     []Field{FieldSellerVAT},
	},
	model.ProfileExtended: {
		Mandatory: withLines(header),
	},
}

// PolicyFor returns the policy of a profile
func PolicyFor(p model.Profile) (Policy, bool) {
	pol, ok := policies[p]
	return pol, ok
}

// FieldKind is reported when the document kind is not available for the
// profile
const FieldKind = "kind"

// Validate checks the document kind, then forbidden fields, then mandatory ones, then the
// profile's structural rules, and returns the first *model.ProfileViolation.
func Validate(inv *model.Invoice) error {
	if inv == nil {
		return fmt.Errorf("invoice is nil")
	}
	if vs := check(inv, true); len(vs) > 0 {
		return vs[0]
	}
	return nil
}

// Violations returns every violation in check order, for reporting
func Violations(inv *model.Invoice) []*model.ProfileViolation {
	if inv == nil {
		return nil
	}
	return check(inv, false)
}

func check(inv *model.Invoice, stopFirst bool) []*model.ProfileViolation {
	pol, ok := policies[inv.Profile]
	if !ok {
		return []*model.ProfileViolation{model.NewProfileViolation(inv.Profile, "profile", model.ViolationMissing)}
	}

	// Order-X has no MINIMUM or BASIC_WL level
	if inv.IsOrder() && !inv.Profile.SupportsOrders() {
		return []*model.ProfileViolation{model.NewProfileViolation(inv.Profile, FieldKind, model.ViolationForbidden)}
	}

	var out []*model.ProfileViolation
	add := func(f Field, kind model.ViolationKind) bool {
		out = append(out, model.NewProfileViolation(inv.Profile, string(f), kind))
		return stopFirst
	}

	for _, f := range pol.Forbidden {
		if f.Present(inv) && add(f, model.ViolationForbidden) {
			return out
		}
	}
	for _, f := range pol.Mandatory {
		if !f.Present(inv) && add(f, model.ViolationMissing) {
			return out
		}
	}
	for _, f := range pol.Rules {
		if !f.Present(inv) && add(f, model.ViolationMissing) {
			return out
		}
	}
	return out
}
