package odoo_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/finvoice-bridge/internal/lifecycle"
	"github.com/rezonia/finvoice-bridge/internal/model"
	"github.com/rezonia/finvoice-bridge/internal/odoo"
)

func sendingMove() map[string]any {
	return map[string]any{
		"id":                              21,
		"name":                            "INV/2025/0001",
		"invoice_date":                    "2025-08-14",
		"invoice_date_due":                "2025-08-28",
		"currency_id":                     []any{1, "EUR"},
		"amount_untaxed_signed":           100.0,
		"amount_tax_signed":               25.5,
		"amount_total_signed":             125.5,
		"invoice_line_ids":                []any{31, 32},
		"partner_bank_id":                 []any{41, "FI21 1234 5600 0007 85"},
		"company_id":                      []any{1, "Myyjä Oy"},
		"partner_id":                      []any{3, "Ostaja Oy"},
		"create_uid":                      []any{2, "Matti Meikäläinen"},
		"x_studio_buyerref":               "BR-1",
		"x_studio_orderid":                "PO-9",
		"x_studio_epiref":                 false,
		"payment_reference":               false,
		"attachment_ids":                  []any{51},
		"x_studio_maventa_status":         "sending",
		"x_studio_eio_invoice_identifier": false,
	}
}

func TestPendingOutbound(t *testing.T) {
	f := newFakeOdoo(t)
	unknown := sendingMove()
	unknown["id"] = 22
	unknown["x_studio_maventa_status"] = "queued"
	f.on("account.move", "search_read", records(sendingMove(), unknown))

	ledger := odoo.NewLedger(f.client(t), testCompany)
	recs, err := ledger.PendingOutbound(context.Background())
	require.NoError(t, err)

	require.Len(t, recs, 1)
	assert.Equal(t, 21, recs[0].ID)
	assert.Equal(t, "INV/2025/0001", recs[0].Number)
	assert.Equal(t, model.StatusSending, recs[0].Status)
	assert.Equal(t, 3, recs[0].PartnerID)
	assert.Empty(t, recs[0].ExternalID)

	search := f.callsTo("account.move", "search_read")[0]
	assert.Equal(t, "out_invoice", condition(search, "move_type"))
	assert.Equal(t, "sending", condition(search, "x_studio_maventa_status"))
	assert.Equal(t, testCompany, condition(search, "company_id"))
}

func TestBuyerRouting(t *testing.T) {
	f := newFakeOdoo(t)
	f.on("res.partner", "search_read", records(map[string]any{
		"id": 3, "name": "Ostaja Oy", "vat": "FI87654321",
		"street": "Katu 2", "city": "Tampere", "zip": "33100",
		"x_studio_eio_ovt": "003787654321", "x_studio_eio_intermediator": "DABAFIHH",
	}))
	ledger := odoo.NewLedger(f.client(t), testCompany)

	rec := lifecycle.OutboundRecord{ID: 21, PartnerID: 3, Values: sendingMove()}
	party, err := ledger.BuyerRouting(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, "Ostaja Oy", party.Name)
	assert.Equal(t, "FI87654321", party.TaxCode)
	assert.Equal(t, "Tampere", party.Address.Town)
	assert.Equal(t, "003787654321", party.Routing.OVT)
	assert.True(t, party.Routing.Complete())
}

func TestBuyerRouting_NoPartner(t *testing.T) {
	f := newFakeOdoo(t)
	ledger := odoo.NewLedger(f.client(t), testCompany)

	values := sendingMove()
	values["partner_id"] = false
	values["invoice_partner_display_name"] = "Walk-in"
	party, err := ledger.BuyerRouting(context.Background(), lifecycle.OutboundRecord{ID: 21, Values: values})
	require.NoError(t, err)
	assert.Equal(t, "Walk-in", party.Name)
	assert.False(t, party.Routing.Complete())
	assert.Empty(t, f.callsTo("res.partner", "search_read"))
}

func mapperFake(t *testing.T) *fakeOdoo {
	f := newFakeOdoo(t)
	f.on("account.move.line", "search_read", records(
		// returned out of line order
		map[string]any{"id": 32, "name": "Matkakulut", "price_unit": 20.0, "quantity": 1.0, "tax_ids": []any{}, "price_subtotal": 20.0},
		map[string]any{"id": 31, "name": "Konsultointi", "price_unit": 40.0, "quantity": 2.0, "tax_ids": []any{8}, "price_subtotal": 80.0},
	))
	f.on("account.tax", "search_read", records(map[string]any{"id": 8, "amount": 25.5}))
	f.on("res.company", "search_read", records(map[string]any{
		"id": 1, "name": "Myyjä Oy", "vat": "FI12345671",
		"street": "Katu 1", "city": "Helsinki", "zip": "00100",
		"x_studio_eio_ovt": "003712345671", "x_studio_eio_intermediator": "NDEAFIHH",
	}))
	f.on("res.partner.bank", "search_read", records(map[string]any{
		"id": 41, "bank_bic": "NDEAFIHH", "bank_name": "Nordea", "acc_number": "FI21 1234 5600 0007 85",
	}))
	f.on("ir.attachment", "search_read", records(map[string]any{
		"id": 51, "name": "Tuntiraportti Elokuu.PDF", "mimetype": "application/pdf", "datas": "JVBERi0=",
	}))
	return f
}

func TestMapToModel(t *testing.T) {
	f := mapperFake(t)
	ledger := odoo.NewLedger(f.client(t), testCompany)

	buyer := model.Party{Name: "Ostaja Oy", Routing: model.Routing{OVT: "003787654321", Intermediator: "DABAFIHH"}}
	rec := lifecycle.OutboundRecord{ID: 21, Number: "INV/2025/0001", PartnerID: 3, Values: sendingMove()}

	doc, err := ledger.MapToModel(context.Background(), rec, buyer)
	require.NoError(t, err)

	assert.Equal(t, "INV/2025/0001", doc.InvoiceNumber)
	assert.Equal(t, "20250814", doc.InvoiceDate)
	assert.Equal(t, "20250828", doc.InvoiceDueDate)
	assert.Equal(t, "INV01", doc.InvoiceTypeCode)
	assert.Equal(t, "LASKU", doc.InvoiceTypeText)
	assert.Equal(t, "Original", doc.OriginCode)
	assert.Equal(t, "Viivästyskorko 16%", doc.OverdueFineFreeText)
	assert.Equal(t, "16,00", doc.OverdueFinePercent)
	assert.Equal(t, "EUR", doc.CurrencyCode)
	assert.Equal(t, "BR-1", doc.BuyerReference)
	assert.Equal(t, "PO-9", doc.OrderIdentifier)

	assert.Equal(t, model.Totals{
		VatExcluded:     "100,000",
		Vat:             "25,500",
		VatIncluded:     "125,500",
		RowsVatExcluded: "100,000",
	}, doc.Totals)

	require.Len(t, doc.Rows, 2)
	assert.Equal(t, model.Row{
		ArticleName:       "Konsultointi",
		OrderedQuantity:   "2",
		DeliveredQuantity: "2",
		InvoicedQuantity:  "2",
		UnitPriceAmount:   "40,000",
		VatRatePercent:    "25,500",
		VatAmount:         "20,400",
		VatExcludedAmount: "80,000",
		VatIncludedAmount: "100,400",
	}, doc.Rows[0])
	assert.Equal(t, "Matkakulut", doc.Rows[1].ArticleName)
	assert.Equal(t, "0", doc.Rows[1].VatAmount)
	assert.Equal(t, "20,000", doc.Rows[1].VatIncludedAmount)

	assert.Equal(t, "Myyjä Oy", doc.Seller.Name)
	assert.Equal(t, "FI12345671", doc.Seller.TaxCode)
	assert.Equal(t, "Matti Meikäläinen", doc.Seller.ContactPersonName)
	assert.True(t, doc.Seller.Routing.Complete())
	assert.Equal(t, "NDEAFIHH", doc.Seller.Bank.BIC)
	assert.Equal(t, buyer.Routing, doc.Buyer.Routing)

	assert.Equal(t, model.EPI{
		Date:                "20250814",
		BIC:                 "NDEAFIHH",
		BeneficiaryName:     "Myyjä Oy",
		BEI:                 "FI12345671",
		AccountID:           "FI2112345600000785",
		RemittanceReference: "00013",
		InstructedAmount:    "120,40",
		Currency:            "EUR",
		DueDate:             "20250828",
	}, doc.EPI)

	require.Len(t, doc.Attachments, 1)
	assert.Equal(t, "tuntiraportti_elokuu.pdf", doc.Attachments[0].Name)
	assert.Equal(t, 51, doc.Attachments[0].ExternalID)

	// tax rate read once, generated reference stored back
	assert.Len(t, f.callsTo("account.tax", "search_read"), 1)
	writes := f.callsTo("account.move", "write")
	require.Len(t, writes, 1)
	assert.Equal(t, map[string]any{"x_studio_epiref": "00013"}, writes[0].Args[1])
}

func TestMapToModel_PaymentReference(t *testing.T) {
	tests := []struct {
		name      string
		epiref    any
		payref    any
		expected  string
		writeBack bool
	}{
		{"stored epi reference", "12344", "99990", "12344", false},
		{"odoo payment reference", false, "99990", "99990", true},
		{"generated", false, false, "00013", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mapperFake(t)
			ledger := odoo.NewLedger(f.client(t), testCompany)

			values := sendingMove()
			values["x_studio_epiref"] = tt.epiref
			values["payment_reference"] = tt.payref
			rec := lifecycle.OutboundRecord{ID: 21, Values: values}

			doc, err := ledger.MapToModel(context.Background(), rec, model.Party{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, doc.EPI.RemittanceReference)
			assert.Equal(t, "Ostaja Oy", doc.Buyer.Name)
			assert.Equal(t, tt.writeBack, len(f.callsTo("account.move", "write")) == 1)
		})
	}
}

func TestMapToModel_RowFetchFails(t *testing.T) {
	f := newFakeOdoo(t)
	f.on("account.move.line", "search_read", func(call) any { return "not a list" })
	ledger := odoo.NewLedger(f.client(t), testCompany)

	_, err := ledger.MapToModel(context.Background(), lifecycle.OutboundRecord{ID: 21, Values: sendingMove()}, model.Party{})
	require.Error(t, err)
}

func TestUpdateField(t *testing.T) {
	f := newFakeOdoo(t)
	ledger := odoo.NewLedger(f.client(t), testCompany)
	ctx := context.Background()

	tests := []struct {
		field    lifecycle.Field
		expected string
	}{
		{lifecycle.FieldStatus, "x_studio_maventa_status"},
		{lifecycle.FieldError, "x_studio_maventa_error"},
		{lifecycle.FieldExternalID, "x_studio_eio_invoice_identifier"},
		{lifecycle.FieldPaymentReference, "x_studio_epiref"},
	}
	for _, tt := range tests {
		require.NoError(t, ledger.UpdateField(ctx, 21, tt.field, "v"))
	}

	writes := f.callsTo("account.move", "write")
	require.Len(t, writes, len(tests))
	for i, tt := range tests {
		assert.Equal(t, map[string]any{tt.expected: "v"}, writes[i].Args[1])
	}

	require.Error(t, ledger.UpdateField(ctx, 21, lifecycle.Field("bogus"), "v"))
}

func TestRecordExists(t *testing.T) {
	f := newFakeOdoo(t)
	f.on("account.move", "search_read", func(c call) any {
		if condition(c, "x_studio_eio_invoice_identifier") == "known" {
			return []any{map[string]any{"id": 9, "x_studio_eio_invoice_identifier": "known"}}
		}
		return []any{}
	})
	ledger := odoo.NewLedger(f.client(t), testCompany)
	ctx := context.Background()

	exists, err := ledger.RecordExists(ctx, "known")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ledger.RecordExists(ctx, "other")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = ledger.RecordExists(ctx, "")
	require.NoError(t, err)
	assert.False(t, exists)

	search := f.callsTo("account.move", "search_read")
	require.Len(t, search, 2)
	assert.Equal(t, "in_invoice", condition(search[0], "move_type"))
	assert.Equal(t, testCompany, condition(search[0], "company_id"))
}

func inboundDoc(t *testing.T) *model.Document {
	doc := &model.Document{
		InvoiceNumber:  "5001",
		InvoiceDate:    "20250814",
		InvoiceDueDate: "20250828",
		BuyerReference: "BR-2",
		Seller: model.Party{
			Name:    "Toimittaja Oy",
			TaxCode: "FI12345671",
			Address: model.Address{Street: "Tie 3", Town: "Oulu", PostCode: "90100"},
			Bank:    model.Bank{AccountID: "FI2112345600000785", BIC: "NDEAFIHH", AccountName: "Nordea"},
			Routing: model.Routing{OVT: "003712345671", Intermediator: "NDEAFIHH"},
		},
		EPI: model.EPI{BEI: "FI12345671", RemittanceReference: "12344"},
		Rows: []model.Row{
			{ArticleName: "Paperi", FreeText: "A4", InvoicedQuantity: "3", UnitPriceAmount: "4,50", VatRatePercent: "25,50"},
			{ArticleName: "Kirja", OrderedQuantity: "1", UnitPriceAmount: "20", VatRatePercent: "10"},
		},
		Attachments: []model.Attachment{
			{Name: "invoice_abc.pdf", MimeType: "application/pdf", Content: base64.StdEncoding.EncodeToString([]byte("%PDF"))},
		},
	}
	require.NoError(t, doc.SetExternalID("abc"))
	return doc
}

func TestCreateInbound_NewVendor(t *testing.T) {
	f := newFakeOdoo(t)
	f.on("res.country", "search_read", func(c call) any {
		if condition(c, "name") == "Finland" {
			return []any{map[string]any{"id": 72}}
		}
		return []any{}
	})
	f.on("res.partner", "create", created(50))
	f.on("res.bank", "create", created(60))
	f.on("res.partner.bank", "create", created(61))
	f.on("account.fiscal.position", "search_read", records(map[string]any{"id": 4}))
	f.on("account.tax", "search_read", func(c call) any {
		if condition(c, "name") == "25.5%" {
			return []any{map[string]any{"id": 9}}
		}
		return []any{}
	})
	f.on("account.move", "create", created(100))
	f.on("ir.attachment", "create", created(200))
	ledger := odoo.NewLedger(f.client(t), testCompany)

	id, err := ledger.CreateInbound(context.Background(), inboundDoc(t))
	require.NoError(t, err)
	assert.Equal(t, 100, id)

	// tax code then legacy form
	lookups := f.callsTo("res.partner", "search_read")
	require.Len(t, lookups, 2)
	assert.Equal(t, "FI12345671", condition(lookups[0], "vat"))
	assert.Equal(t, "1234567-1", condition(lookups[1], "vat"))

	vendor := f.callsTo("res.partner", "create")[0].Args[0].(map[string]any)
	assert.Equal(t, "Toimittaja Oy", vendor["name"])
	assert.Equal(t, "FI", vendor["country_code"])
	assert.Equal(t, 72, vendor["country_id"])
	assert.Equal(t, 1, vendor["supplier_rank"])
	assert.Equal(t, "003712345671", vendor["x_studio_eio_ovt"])
	assert.Equal(t, testCompany, vendor["company_id"])

	bank := f.callsTo("res.bank", "create")[0].Args[0].(map[string]any)
	assert.Equal(t, map[string]any{"name": "Nordea", "bic": "NDEAFIHH"}, bank)
	account := f.callsTo("res.partner.bank", "create")[0].Args[0].(map[string]any)
	assert.Equal(t, map[string]any{"acc_number": "FI2112345600000785", "partner_id": 50, "bank_id": 60}, account)

	bill := f.callsTo("account.move", "create")[0].Args[0].(map[string]any)
	assert.Equal(t, "in_invoice", bill["move_type"])
	assert.Equal(t, 50, bill["partner_id"])
	assert.Equal(t, 4, bill["fiscal_position_id"])
	assert.Equal(t, "2025-08-14", bill["invoice_date"])
	assert.Equal(t, "2025-08-28", bill["invoice_date_due"])
	assert.Equal(t, "5001", bill["ref"])
	assert.Equal(t, "12344", bill["payment_reference"])
	assert.Equal(t, "abc", bill["x_studio_eio_invoice_identifier"])
	assert.Equal(t, "BR-2", bill["x_studio_buyerref"])

	lines := bill["invoice_line_ids"].([]any)
	require.Len(t, lines, 2)
	first := lines[0].([]any)
	assert.Equal(t, 0, first[0])
	assert.Equal(t, map[string]any{
		"name":       "Paperi\nA4",
		"quantity":   3.0,
		"price_unit": 4.5,
		"tax_ids":    []any{9},
	}, first[2])
	second := lines[1].([]any)[2].(map[string]any)
	assert.NotContains(t, second, "tax_ids")
	// one lookup per distinct rate
	assert.Len(t, f.callsTo("account.tax", "search_read"), 2)

	att := f.callsTo("ir.attachment", "create")[0].Args[0].(map[string]any)
	assert.Equal(t, "invoice_abc.pdf", att["name"])
	assert.Equal(t, "account.move", att["res_model"])
	assert.Equal(t, 100, att["res_id"])
	assert.Equal(t, "binary", att["type"])
}

func TestCreateInbound_ExistingVendorLegacyTaxCode(t *testing.T) {
	f := newFakeOdoo(t)
	f.on("res.partner", "search_read", func(c call) any {
		if condition(c, "vat") == "1234567-1" {
			return []any{map[string]any{"id": 44, "vat": "1234567-1"}}
		}
		return []any{}
	})
	f.on("res.partner.bank", "search_read", records(map[string]any{"id": 61}))
	f.on("account.move", "create", created(101))
	f.on("ir.attachment", "create", func(call) any { return false })
	ledger := odoo.NewLedger(f.client(t), testCompany)

	id, err := ledger.CreateInbound(context.Background(), inboundDoc(t))
	require.NoError(t, err)
	assert.Equal(t, 101, id)

	assert.Empty(t, f.callsTo("res.partner", "create"))
	assert.Empty(t, f.callsTo("res.bank", "create"))
	bill := f.callsTo("account.move", "create")[0].Args[0].(map[string]any)
	assert.Equal(t, 44, bill["partner_id"])
	assert.NotContains(t, bill, "fiscal_position_id")
}

func TestCreateInbound_VendorCreateFails(t *testing.T) {
	f := newFakeOdoo(t)
	ledger := odoo.NewLedger(f.client(t), testCompany)

	_, err := ledger.CreateInbound(context.Background(), inboundDoc(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create vendor")
	assert.Empty(t, f.callsTo("account.move", "create"))
}

func TestOldTaxCodeFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"FI12345671", "1234567-1"},
		{"1234567-12", "1234567-12"},
		{"123456", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, odoo.OldTaxCodeFormat(tt.input))
		})
	}
}
