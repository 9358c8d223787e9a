package model

import (
	"fmt"
	"strings"
)

// Profile is a Factur-X conformance level
type Profile string

const (
	ProfileMinimum  Profile = "MINIMUM"
	ProfileBasicWL  Profile = "BASIC_WL"
	ProfileBasic    Profile = "BASIC"
	ProfileEN16931  Profile = "EN16931"
	ProfileExtended Profile = "EXTENDED"
)

// Profiles lists every supported profile, smallest first
var Profiles = []Profile{
	ProfileMinimum,
	ProfileBasicWL,
	ProfileBasic,
	ProfileEN16931,
	ProfileExtended,
}

const (
	guidelinePrefix      = "urn:cen.eu:en16931:2017#compliant#urn:factur-x.eu:1p0:"
	orderGuidelinePrefix = "urn:order-x.eu:1p0:"
)

// DocumentKind selects the Cross Industry message: a Factur-X invoice or
// an Order-X order
type DocumentKind string

const (
	KindInvoice DocumentKind = "INVOICE"
	KindOrder   DocumentKind = "ORDER"
)

// UnmarshalText accepts either kind case-insensitively. Empty means
// KindInvoice.
func (k *DocumentKind) UnmarshalText(text []byte) error {
	switch v := DocumentKind(strings.ToUpper(strings.TrimSpace(string(text)))); v {
	case "":
		*k = KindInvoice
	case KindInvoice, KindOrder:
		*k = v
	default:
		return fmt.Errorf("unknown document kind %q", string(text))
	}
	return nil
}

// Slug returns the lowercase identifier used in the guideline URN
func (p Profile) Slug() string {
	switch p {
	case ProfileMinimum:
		return "minimum"
	case ProfileBasicWL:
		return "basicwl"
	case ProfileBasic:
		return "basic"
	case ProfileEN16931:
		return "en16931"
	case ProfileExtended:
		return "extended"
	default:
		return ""
	}
}

// GuidelineURN returns the Factur-X document context identifier for the
// profile
func (p Profile) GuidelineURN() string {
	return guidelinePrefix + p.Slug()
}

// OrderSlug returns the Order-X identifier of the profile. Order-X only
// defines BASIC, COMFORT and EXTENDED, so the others return "".
func (p Profile) OrderSlug() string {
	switch p {
	case ProfileBasic:
		return "basic"
	case ProfileEN16931:
		return "comfort"
	case ProfileExtended:
		return "extended"
	default:
		return ""
	}
}

// SupportsOrders reports whether an Order-X document exists for p
func (p Profile) SupportsOrders() bool {
	return p.OrderSlug() != ""
}

// GuidelineFor returns the document context identifier of p for kind
func (p Profile) GuidelineFor(kind DocumentKind) string {
	if kind == KindOrder {
		return orderGuidelinePrefix + p.OrderSlug()
	}
	return p.GuidelineURN()
}

// Valid reports whether p is one of the known profiles
func (p Profile) Valid() bool {
	return p.Slug() != ""
}

// HasLineItems reports whether the profile's schema carries line items
func (p Profile) HasLineItems() bool {
	return p != ProfileMinimum && p != ProfileBasicWL
}

// ParseProfile accepts the enum name or its slug, case-insensitively.
// COMFORT is accepted as an alias of EN16931.
func ParseProfile(s string) (Profile, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "BASICWL":
		return ProfileBasicWL, nil
	case "COMFORT":
		return ProfileEN16931, nil
	}
	p := Profile(v)
	if !p.Valid() {
		return "", fmt.Errorf("unknown profile %q", s)
	}
	return p, nil
}

// ProfileFromGuideline maps a Factur-X or Order-X guideline URN back to
// its profile
func ProfileFromGuideline(urn string) (Profile, bool) {
	p, _, ok := ParseGuideline(urn)
	return p, ok
}

// ParseGuideline maps a guideline URN to its profile and document kind.
// The bare EN 16931 URN without a Factur-X suffix is an EN16931 invoice.
func ParseGuideline(urn string) (Profile, DocumentKind, bool) {
	urn = strings.TrimSpace(urn)
	if urn == "urn:cen.eu:en16931:2017" {
		return ProfileEN16931, KindInvoice, true
	}
	for _, p := range Profiles {
		if urn == p.GuidelineURN() {
			return p, KindInvoice, true
		}
		if p.SupportsOrders() && urn == p.GuidelineFor(KindOrder) {
			return p, KindOrder, true
		}
	}
	return "", "", false
}
