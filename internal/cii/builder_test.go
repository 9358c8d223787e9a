package cii_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx/internal/cii"
	"github.com/rezonia/facturx/internal/model"
	"github.com/rezonia/facturx/internal/tax"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleInvoice(p model.Profile) *model.Invoice {
	due := model.NewDate(2025, time.April, 13)
	return &model.Invoice{
		Profile: p,
		Header: model.Header{
			Number:    "F-2025-001",
			Name:      "FACTURE",
			IssueDate: model.NewDate(2025, time.March, 14),
		},
		Seller: &model.Party{
			Name: "ABC SARL",
			Address: model.PostalAddress{
				Line1: "1 rue de Paris", City: "Paris", PostalCode: "75001", CountryCode: "FR",
			},
			VATNumber:   "FR12345678901",
			LegalID:     "12345678900012",
			LegalScheme: "0002",
			Contacts:    []model.Contact{{Name: "Jane", Email: "jane@abc.example"}},
		},
		Buyer: &model.Party{
			Name: "XYZ SAS",
			Address: model.PostalAddress{
				Line1: "2 avenue de Lyon", City: "Lyon", PostalCode: "69001", CountryCode: "FR",
			},
		},
		Payment: model.PaymentDetails{
			MeansCode: "58",
			IBAN:      "FR7630006000011234567890189",
			DueDate:   &due,
			Terms:     "30 days net",
		},
		Currency: "EUR",
		Lines: []model.Line{
			{ID: "1", Name: "Widget", Quantity: d("2"), UnitPrice: d("50"), TaxRate: d("0.20")},
			{ID: "2", Name: "Service", Quantity: d("1"), UnitPrice: d("100"), TaxRate: d("0.20")},
		},
	}
}

func build(t *testing.T, inv *model.Invoice) (cii.Node, []byte) {
	t.Helper()
	s := tax.Compute(inv, tax.RoundLine)
	return cii.Build(inv, s), cii.BuildXML(inv, s)
}

func TestBuild_TopLevelOrder(t *testing.T) {
	root, _ := build(t, sampleInvoice(model.ProfileEN16931))

	assert.Equal(t, cii.RootName, root.Name)
	assert.Equal(t, []string{
		"rsm:ExchangedDocumentContext",
		"rsm:ExchangedDocument",
		"rsm:SupplyChainTradeTransaction",
	}, root.ChildNames())

	for _, ns := range []string{"xmlns:rsm", "xmlns:ram", "xmlns:udt"} {
		_, ok := root.Attr(ns)
		assert.True(t, ok, ns)
	}
}

func TestBuild_GuidelineContainsSlug(t *testing.T) {
	for _, p := range model.Profiles {
		t.Run(string(p), func(t *testing.T) {
			root, _ := build(t, sampleInvoice(p))
			id, ok := root.Find("rsm:ExchangedDocumentContext/ram:GuidelineSpecifiedDocumentContextParameter/ram:ID")
			require.True(t, ok)
			assert.True(t, strings.HasSuffix(id.Text, ":"+p.Slug()), id.Text)
		})
	}
}

func TestBuild_HeaderOrder(t *testing.T) {
	inv := sampleInvoice(model.ProfileEN16931)
	inv.Header.Notes = []string{"first"}
	inv.Notes = []string{"second"}
	inv.Disclaimers = []string{"legal"}

	root, _ := build(t, inv)
	doc, ok := root.Child("rsm:ExchangedDocument")
	require.True(t, ok)

	assert.Equal(t, []string{
		"ram:ID", "ram:TypeCode", "ram:IssueDateTime", "ram:Name",
		"ram:IncludedNote", "ram:IncludedNote", "ram:IncludedNote",
	}, doc.ChildNames())

	notes := doc.ChildrenNamed("ram:IncludedNote")
	first, _ := notes[0].Child("ram:Content")
	assert.Equal(t, "first", first.Text)
	subject, ok := notes[2].Child("ram:SubjectCode")
	require.True(t, ok)
	assert.Equal(t, "REG", subject.Text)

	typeCode, _ := doc.Child("ram:TypeCode")
	assert.Equal(t, "380", typeCode.Text)

	date, ok := doc.Find("ram:IssueDateTime/udt:DateTimeString")
	require.True(t, ok)
	assert.Equal(t, "20250314", date.Text)
	format, _ := date.Attr("format")
	assert.Equal(t, "102", format)
}

func TestBuild_TransactionOrder(t *testing.T) {
	inv := sampleInvoice(model.ProfileExtended)
	inv.Delivery = &model.Party{Name: "Warehouse"}

	root, _ := build(t, inv)
	tx, ok := root.Child("rsm:SupplyChainTradeTransaction")
	require.True(t, ok)

	assert.Equal(t, []string{
		"ram:IncludedSupplyChainTradeLineItem",
		"ram:IncludedSupplyChainTradeLineItem",
		"ram:ApplicableHeaderTradeAgreement",
		"ram:ApplicableHeaderTradeDelivery",
		"ram:ApplicableHeaderTradeSettlement",
	}, tx.ChildNames())

	ship, ok := tx.Find("ram:ApplicableHeaderTradeDelivery/ram:ShipToTradeParty/ram:Name")
	require.True(t, ok)
	assert.Equal(t, "Warehouse", ship.Text)
}

func TestBuild_NoDeliveryBlockWithoutParty(t *testing.T) {
	root, _ := build(t, sampleInvoice(model.ProfileBasic))
	tx, _ := root.Child("rsm:SupplyChainTradeTransaction")
	_, ok := tx.Child("ram:ApplicableHeaderTradeDelivery")
	assert.False(t, ok)
}

func TestBuild_AgreementParties(t *testing.T) {
	inv := sampleInvoice(model.ProfileExtended)
	inv.BuyerOrderReference = "PO-77"
	inv.AdditionalDocs = []model.AdditionalDoc{{TypeCode: "916", ID: "DOC-1", Name: "Timesheet"}}

	root, _ := build(t, inv)
	agr, ok := root.Find("rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeAgreement")
	require.True(t, ok)
	assert.Equal(t, []string{
		"ram:SellerTradeParty",
		"ram:BuyerTradeParty",
		"ram:BuyerOrderReferencedDocument",
		"ram:AdditionalReferencedDocument",
	}, agr.ChildNames())

	seller, _ := agr.Child("ram:SellerTradeParty")
	assert.Equal(t, []string{
		"ram:Name",
		"ram:SpecifiedLegalOrganization",
		"ram:DefinedTradeContact",
		"ram:PostalTradeAddress",
		"ram:SpecifiedTaxRegistration",
	}, seller.ChildNames())

	vat, ok := seller.Find("ram:SpecifiedTaxRegistration/ram:ID")
	require.True(t, ok)
	assert.Equal(t, "FR12345678901", vat.Text)
	scheme, _ := vat.Attr("schemeID")
	assert.Equal(t, "VA", scheme)

	contact, _ := seller.Child("ram:DefinedTradeContact")
	assert.Equal(t, []string{"ram:PersonName", "ram:EmailURIUniversalCommunication"}, contact.ChildNames())

	addr, _ := seller.Child("ram:PostalTradeAddress")
	assert.Equal(t, []string{"ram:PostcodeCode", "ram:LineOne", "ram:CityName", "ram:CountryID"}, addr.ChildNames())

	buyer, _ := agr.Child("ram:BuyerTradeParty")
	_, ok = buyer.Child("ram:SpecifiedTaxRegistration")
	assert.False(t, ok)
}

func TestBuild_SettlementUsesSummaryVerbatim(t *testing.T) {
	inv := sampleInvoice(model.ProfileEN16931)
	key := model.TaxKey{Rate: d("0.20"), Category: model.TaxStandard}
	inv.DefaultTax = &key
	inv.AllowanceCharges = []model.AllowanceCharge{model.NewAllowance(d("30"), "discount")}
	inv.Payee = &model.Party{Name: "Factor Bank"}

	root, out := build(t, inv)
	set, ok := root.Find("rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeSettlement")
	require.True(t, ok)

	assert.Equal(t, []string{
		"ram:InvoiceCurrencyCode",
		"ram:PayeeTradeParty",
		"ram:SpecifiedTradeSettlementPaymentMeans",
		"ram:ApplicableTradeTax",
		"ram:SpecifiedTradeAllowanceCharge",
		"ram:SpecifiedTradePaymentTerms",
		"ram:SpecifiedTradeSettlementHeaderMonetarySummation",
	}, set.ChildNames())

	sum, _ := set.Child("ram:SpecifiedTradeSettlementHeaderMonetarySummation")
	texts := map[string]string{}
	for _, c := range sum.Children {
		texts[c.Name] = c.Text
	}
	assert.Equal(t, "200.00", texts["ram:LineTotalAmount"])
	assert.Equal(t, "170.00", texts["ram:TaxBasisTotalAmount"])
	assert.Equal(t, "34.00", texts["ram:TaxTotalAmount"])
	assert.Equal(t, "204.00", texts["ram:GrandTotalAmount"])

	bucket, _ := set.Child("ram:ApplicableTradeTax")
	basis, _ := bucket.Child("ram:BasisAmount")
	rate, _ := bucket.Child("ram:RateApplicablePercent")
	code, _ := bucket.Child("ram:CategoryCode")
	assert.Equal(t, "170.00", basis.Text)
	assert.Equal(t, "20.00", rate.Text)
	assert.Equal(t, "S", code.Text)

	// no tax override on the discount, so no CategoryTradeTax
	ac, _ := set.Child("ram:SpecifiedTradeAllowanceCharge")
	assert.Equal(t, []string{"ram:ChargeIndicator", "ram:ActualAmount", "ram:Reason"}, ac.ChildNames())
	ind, _ := ac.Find("ram:ChargeIndicator/udt:Indicator")
	assert.Equal(t, "false", ind.Text)

	assert.Contains(t, string(out), `currencyID="EUR"`)
}

func TestBuild_SummaryIsNotRecomputed(t *testing.T) {
	inv := sampleInvoice(model.ProfileEN16931)
	s := tax.Compute(inv, tax.RoundLine)
	s.GrandTotal = d("999.99")

	root := cii.Build(inv, s)
	grand, ok := root.Find("rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeSettlement/" +
		"ram:SpecifiedTradeSettlementHeaderMonetarySummation/ram:GrandTotalAmount")
	require.True(t, ok)
	assert.Equal(t, "999.99", grand.Text)
}

func TestBuild_AllowanceChargeOverrideAndPeriod(t *testing.T) {
	inv := sampleInvoice(model.ProfileExtended)
	rate := d("0.055")
	start := model.NewDate(2025, time.January, 1)
	end := model.NewDate(2025, time.January, 31)
	inv.AllowanceCharges = []model.AllowanceCharge{{
		IsCharge:    true,
		Amount:      d("12.5"),
		ReasonCode:  "FC",
		Reason:      "Freight",
		TaxRate:     &rate,
		TaxCategory: model.TaxReduced,
		StartDate:   &start,
		EndDate:     &end,
	}}

	root, _ := build(t, inv)
	ac, ok := root.Find("rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeSettlement/ram:SpecifiedTradeAllowanceCharge")
	require.True(t, ok)
	assert.Equal(t, []string{
		"ram:ChargeIndicator",
		"ram:ActualAmount",
		"ram:ReasonCode",
		"ram:Reason",
		"ram:CategoryTradeTax",
		"ram:EffectiveSpecifiedPeriod",
	}, ac.ChildNames())

	amount, _ := ac.Child("ram:ActualAmount")
	assert.Equal(t, "12.50", amount.Text)
	pct, _ := ac.Find("ram:CategoryTradeTax/ram:RateApplicablePercent")
	assert.Equal(t, "5.50", pct.Text)
	cat, _ := ac.Find("ram:CategoryTradeTax/ram:CategoryCode")
	assert.Equal(t, "AA", cat.Text)
	startText, _ := ac.Find("ram:EffectiveSpecifiedPeriod/ram:StartDateTime/udt:DateTimeString")
	assert.Equal(t, "20250101", startText.Text)
}

func TestBuild_LineItem(t *testing.T) {
	inv := sampleInvoice(model.ProfileEN16931)
	inv.Lines[0].Description = "Blue, large"
	inv.Lines[0].UnitCode = "H87"
	inv.Lines[0].AllowanceCharges = []model.AllowanceCharge{
		model.NewAllowance(d("5"), "promo"),
		model.NewCharge(d("2"), "handling"),
	}

	root, _ := build(t, inv)
	item, ok := root.Find("rsm:SupplyChainTradeTransaction/ram:IncludedSupplyChainTradeLineItem")
	require.True(t, ok)

	assert.Equal(t, []string{
		"ram:AssociatedDocumentLineDocument",
		"ram:SpecifiedTradeProduct",
		"ram:SpecifiedLineTradeAgreement",
		"ram:SpecifiedLineTradeDelivery",
		"ram:SpecifiedLineTradeSettlement",
	}, item.ChildNames())

	product, _ := item.Child("ram:SpecifiedTradeProduct")
	assert.Equal(t, []string{"ram:Name", "ram:Description"}, product.ChildNames())

	price, _ := item.Find("ram:SpecifiedLineTradeAgreement/ram:GrossPriceProductTradePrice/ram:ChargeAmount")
	assert.Equal(t, "50.00", price.Text)
	billed, _ := item.Find("ram:SpecifiedLineTradeDelivery/ram:BilledQuantity")
	assert.Equal(t, "2", billed.Text)
	unit, _ := billed.Attr("unitCode")
	assert.Equal(t, "H87", unit)

	settle, _ := item.Child("ram:SpecifiedLineTradeSettlement")
	assert.Equal(t, []string{
		"ram:ApplicableTradeTax",
		"ram:SpecifiedTradeAllowanceCharge",
		"ram:SpecifiedTradeAllowanceCharge",
		"ram:SpecifiedTradeSettlementLineMonetarySummation",
	}, settle.ChildNames())

	acs := settle.ChildrenNamed("ram:SpecifiedTradeAllowanceCharge")
	firstInd, _ := acs[0].Find("ram:ChargeIndicator/udt:Indicator")
	assert.Equal(t, "true", firstInd.Text, "charges come before allowances")

	total, _ := settle.Find("ram:SpecifiedTradeSettlementLineMonetarySummation/ram:LineTotalAmount")
	assert.Equal(t, "100.00", total.Text)
	rate, _ := settle.Find("ram:ApplicableTradeTax/ram:RateApplicablePercent")
	assert.Equal(t, "20.00", rate.Text)
}

func TestBuild_LineIDFallsBackToPosition(t *testing.T) {
	inv := sampleInvoice(model.ProfileEN16931)
	inv.Lines[1].ID = ""

	root, _ := build(t, inv)
	tx, _ := root.Child("rsm:SupplyChainTradeTransaction")
	items := tx.ChildrenNamed("ram:IncludedSupplyChainTradeLineItem")
	require.Len(t, items, 2)
	id, _ := items[1].Find("ram:AssociatedDocumentLineDocument/ram:LineID")
	assert.Equal(t, "2", id.Text)
}

func TestBuild_NoLineItemsForMinimumAndBasicWL(t *testing.T) {
	for _, p := range []model.Profile{model.ProfileMinimum, model.ProfileBasicWL} {
		t.Run(string(p), func(t *testing.T) {
			root, _ := build(t, sampleInvoice(p))
			tx, _ := root.Child("rsm:SupplyChainTradeTransaction")
			assert.Empty(t, tx.ChildrenNamed("ram:IncludedSupplyChainTradeLineItem"))
		})
	}
}

func TestBuild_NoEmptyElements(t *testing.T) {
	inv := sampleInvoice(model.ProfileBasic)
	inv.Payment = model.PaymentDetails{MeansCode: "30"}
	inv.Buyer.Contacts = []model.Contact{{}}

	root, _ := build(t, inv)
	root.Walk(func(n cii.Node) {
		assert.True(t, n.Text != "" || len(n.Children) > 0, "empty element %s", n.Name)
	})

	set, _ := root.Find("rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeSettlement")
	_, ok := set.Child("ram:SpecifiedTradePaymentTerms")
	assert.False(t, ok)
}

var eightDigits = regexp.MustCompile(`^[0-9]{8}$`)

func TestBuildXML_DatesAreEightDigits(t *testing.T) {
	inv := sampleInvoice(model.ProfileEN16931)
	inv.Header.IssueDate = model.NewDate(987, time.February, 3)

	_, out := build(t, inv)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))

	dates := doc.FindElements("//udt:DateTimeString")
	require.NotEmpty(t, dates)
	for _, e := range dates {
		assert.Regexp(t, eightDigits, e.Text())
		assert.Equal(t, "102", e.SelectAttrValue("format", ""))
	}
	assert.Equal(t, "09870203", dates[0].Text())
}

func TestBuildXML_Serialization(t *testing.T) {
	inv := sampleInvoice(model.ProfileEN16931)
	inv.Seller.Name = `Smith & Sons <Ltd>`

	_, out := build(t, inv)
	s := string(out)

	assert.True(t, strings.HasPrefix(s, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, s, `xmlns:rsm="`+cii.NamespaceRSM+`"`)
	assert.Contains(t, s, "Smith &amp; Sons &lt;Ltd&gt;")

	back, err := cii.Unmarshal(out)
	require.NoError(t, err)
	name, ok := back.Find("rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeAgreement/ram:SellerTradeParty/ram:Name")
	require.True(t, ok)
	assert.Equal(t, `Smith & Sons <Ltd>`, name.Text)
}

func TestBuildXML_Deterministic(t *testing.T) {
	inv := sampleInvoice(model.ProfileEN16931)
	_, a := build(t, inv)
	_, b := build(t, inv)
	assert.Equal(t, a, b)
}

func TestBuild_RoundTripsThroughUnmarshal(t *testing.T) {
	root, out := build(t, sampleInvoice(model.ProfileExtended))
	back, err := cii.Unmarshal(out)
	require.NoError(t, err)
	assert.Equal(t, root.ChildNames(), back.ChildNames())
}

func TestBuild_Preconditions(t *testing.T) {
	t.Run("missing seller", func(t *testing.T) {
		inv := sampleInvoice(model.ProfileEN16931)
		s := tax.Compute(inv, tax.RoundLine)
		inv.Seller = nil
		assert.Panics(t, func() { cii.Build(inv, s) })
	})

	t.Run("missing buyer", func(t *testing.T) {
		inv := sampleInvoice(model.ProfileEN16931)
		s := tax.Compute(inv, tax.RoundLine)
		inv.Buyer = nil
		assert.Panics(t, func() { cii.Build(inv, s) })
	})

	t.Run("summary from another invoice", func(t *testing.T) {
		inv := sampleInvoice(model.ProfileEN16931)
		other := sampleInvoice(model.ProfileEN16931)
		other.Lines = other.Lines[:1]
		assert.Panics(t, func() { cii.Build(inv, tax.Compute(other, tax.RoundLine)) })
	})
}

func TestBuild_Order(t *testing.T) {
	inv := sampleInvoice(model.ProfileEN16931)
	inv.Kind = model.KindOrder

	root, out := build(t, inv)
	assert.Equal(t, cii.RootNameOrder, root.Name)
	ns, _ := root.Attr("xmlns:rsm")
	assert.Equal(t, cii.NamespaceRSMOrder, ns)

	id, ok := root.Find("rsm:ExchangedDocumentContext/ram:GuidelineSpecifiedDocumentContextParameter/ram:ID")
	require.True(t, ok)
	assert.Equal(t, "urn:order-x.eu:1p0:comfort", id.Text)

	typeCode, _ := root.Find("rsm:ExchangedDocument/ram:TypeCode")
	assert.Equal(t, "220", typeCode.Text)

	currency, ok := root.Find("rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeSettlement/ram:OrderCurrencyCode")
	require.True(t, ok)
	assert.Equal(t, "EUR", currency.Text)

	qty, ok := root.Find("rsm:SupplyChainTradeTransaction/ram:IncludedSupplyChainTradeLineItem/" +
		"ram:SpecifiedLineTradeDelivery/ram:RequestedQuantity")
	require.True(t, ok)
	assert.Equal(t, "2", qty.Text)
	assert.NotContains(t, string(out), "CrossIndustryInvoice")
	assert.NotContains(t, string(out), "BilledQuantity")

	p, kind, err := cii.DetectDocument(out)
	require.NoError(t, err)
	assert.Equal(t, model.ProfileEN16931, p)
	assert.Equal(t, model.KindOrder, kind)
}

func TestBuild_OrderNeedsOrderProfile(t *testing.T) {
	inv := sampleInvoice(model.ProfileMinimum)
	inv.Kind = model.KindOrder
	s := tax.Compute(inv, tax.RoundLine)
	assert.Panics(t, func() { cii.Build(inv, s) })
}

func TestUnmarshal_Invalid(t *testing.T) {
	_, err := cii.Unmarshal([]byte("not xml <"))
	require.Error(t, err)
}

func TestDetectProfile(t *testing.T) {
	for _, p := range []model.Profile{model.ProfileBasic, model.ProfileExtended} {
		_, out := build(t, sampleInvoice(p))
		got, err := cii.DetectProfile(out)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := cii.DetectProfile([]byte(`<rsm:CrossIndustryInvoice xmlns:rsm="urn:x"/>`))
	require.Error(t, err)

	_, kind, err := cii.DetectDocument([]byte(`<rsm:CrossIndustryOrder xmlns:rsm="urn:x"/>`))
	require.Error(t, err)
	assert.Equal(t, model.KindOrder, kind)

	_, err = cii.DetectProfile([]byte("<"))
	require.Error(t, err)
}
