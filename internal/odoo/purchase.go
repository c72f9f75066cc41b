package odoo

import (
	"context"
	"fmt"

	"github.com/rezonia/finvoice-bridge/internal/decimal"
	"github.com/rezonia/finvoice-bridge/internal/model"
)

const fallbackCountry = "Finland"

// CreateInbound stores a received document as a vendor bill and returns its id.
// The vendor is matched by tax code and created when unknown.
func (l *Ledger) CreateInbound(ctx context.Context, doc *model.Document) (int, error) {
	taxCode := doc.EPI.BEI
	if taxCode == "" {
		taxCode = doc.Seller.TaxCode
	}

	vendorID, err := l.findVendor(ctx, taxCode)
	if err != nil {
		return 0, err
	}
	if vendorID == 0 {
		vendorID, err = l.createVendor(ctx, taxCode, doc)
		if err != nil {
			return 0, fmt.Errorf("create vendor for invoice %s: %w", doc.InvoiceNumber, err)
		}
	}

	if acc := doc.Seller.Bank.AccountID; acc != "" {
		if err := l.ensureBankAccount(ctx, vendorID, doc.Seller.Bank); err != nil {
			l.log.Warn().Err(err).Str("invoice", doc.InvoiceNumber).Msg("vendor bank account not stored")
		}
	}

	values := map[string]any{
		"move_type":         "in_invoice",
		"company_id":        l.companyID,
		"partner_id":        vendorID,
		"date":              odooDate(doc.InvoiceDate),
		"invoice_date":      odooDate(doc.InvoiceDate),
		"invoice_date_due":  odooDate(doc.InvoiceDueDate),
		"payment_reference": doc.EPI.RemittanceReference,
		"ref":               doc.InvoiceNumber,
		FieldExternalID:     doc.ExternalID(),
		FieldEpiRef:         doc.EPI.RemittanceReference,
		FieldBuyerRef:       doc.BuyerReference,
		FieldOrderID:        doc.OrderIdentifier,
	}

	fiscalID, err := l.fiscalPosition(ctx)
	if err != nil {
		return 0, err
	}
	if fiscalID > 0 {
		values["fiscal_position_id"] = fiscalID
	}

	lines, err := l.billLines(ctx, doc.Rows)
	if err != nil {
		return 0, err
	}
	if len(lines) > 0 {
		values["invoice_line_ids"] = lines
	}

	billID, err := l.client.Create(ctx, ModelMove, values)
	if err != nil {
		return 0, fmt.Errorf("create vendor bill %s: %w", doc.InvoiceNumber, err)
	}
	l.log.Info().
		Str("buyer", doc.Buyer.Name).
		Str("seller", doc.Seller.Name).
		Int("bill_id", billID).
		Msg("new purchase invoice added")

	for _, att := range doc.Attachments {
		id, err := l.client.Create(ctx, ModelAttachment, map[string]any{
			"name":       att.Name,
			"type":       "binary",
			"datas":      att.Content,
			"res_model":  ModelMove,
			"res_id":     billID,
			"mimetype":   att.MimeType,
			"company_id": l.companyID,
		})
		if err != nil {
			l.log.Error().Err(err).Str("attachment", att.Name).Int("bill_id", billID).Msg("attachment not stored")
			continue
		}
		l.log.Debug().Str("attachment", att.Name).Int("id", id).Msg("attachment created")
	}
	return billID, nil
}

// findVendor looks the vendor up by tax code, then by its legacy form
func (l *Ledger) findVendor(ctx context.Context, taxCode string) (int, error) {
	if taxCode == "" {
		return 0, nil
	}
	id, err := l.vendorByVat(ctx, taxCode)
	if err != nil || id > 0 {
		return id, err
	}
	if old := oldTaxCodeFormat(l.countries, taxCode); old != "" {
		return l.vendorByVat(ctx, old)
	}
	return 0, nil
}

func (l *Ledger) vendorByVat(ctx context.Context, vat string) (int, error) {
	domain := Domain{}.
		Where("vat", "=", vat).
		Where("company_id", "=", l.companyID)
	recs, err := l.client.SearchRead(ctx, ModelPartner, domain, "id", "vat")
	if err != nil {
		return 0, err
	}
	for _, r := range recs {
		if r.String("vat") == vat {
			return r.Int("id"), nil
		}
	}
	return 0, nil
}

func (l *Ledger) createVendor(ctx context.Context, taxCode string, doc *model.Document) (int, error) {
	seller := doc.Seller
	code := seller.Address.CountryCode
	if code == "" && len(taxCode) >= 2 {
		code = taxCode[:2]
	}
	name := seller.Address.CountryName
	if name == "" {
		name, _ = l.countries.NameForCode(code)
	}

	countryID, err := l.findCountry(ctx, name)
	if err != nil {
		return 0, err
	}
	if countryID == 0 {
		if countryID, err = l.findCountry(ctx, fallbackCountry); err != nil {
			return 0, err
		}
	}

	values := map[string]any{
		"vat":              taxCode,
		"company_type":     "company",
		"name":             seller.Name,
		"street":           seller.Address.Street,
		"city":             seller.Address.Town,
		"zip":              seller.Address.PostCode,
		"country_code":     code,
		"supplier_rank":    1,
		"mobile":           seller.Contact.Phone,
		"email":            seller.Contact.Email,
		"website":          seller.Contact.Web,
		FieldOVT:           seller.Routing.OVT,
		FieldIntermediator: seller.Routing.Intermediator,
		"company_id":       l.companyID,
	}
	if countryID > 0 {
		values["country_id"] = countryID
	}

	id, err := l.client.Create(ctx, ModelPartner, values)
	if err != nil {
		return 0, err
	}
	l.log.Info().Str("vendor", seller.Name).Int("id", id).Msg("new vendor created")
	return id, nil
}

func (l *Ledger) findCountry(ctx context.Context, name string) (int, error) {
	if name == "" {
		return 0, nil
	}
	return l.firstID(ctx, ModelCountry, Domain{}.Where("name", "=", name))
}

// ensureBankAccount links the seller's account to the vendor, creating the bank when needed
func (l *Ledger) ensureBankAccount(ctx context.Context, vendorID int, bank model.Bank) error {
	accID, err := l.firstID(ctx, ModelBankAcct, Domain{}.
		Where("acc_number", "=", bank.AccountID).
		Where("partner_id", "=", vendorID))
	if err != nil || accID > 0 {
		return err
	}

	bankID, err := l.firstID(ctx, ModelBank, Domain{}.Where("name", "=", bank.AccountName))
	if err != nil {
		return err
	}
	if bankID == 0 {
		bankID, err = l.client.Create(ctx, ModelBank, map[string]any{
			"name": bank.AccountName,
			"bic":  bank.BIC,
		})
		if err != nil {
			return fmt.Errorf("create bank: %w", err)
		}
		l.log.Info().Str("bank", bank.AccountName).Int("id", bankID).Msg("new vendor bank created")
	}

	accID, err = l.client.Create(ctx, ModelBankAcct, map[string]any{
		"acc_number": bank.AccountID,
		"partner_id": vendorID,
		"bank_id":    bankID,
	})
	if err != nil {
		return fmt.Errorf("create bank account: %w", err)
	}
	l.log.Info().Int("id", accID).Msg("new vendor bank account created")
	return nil
}

func (l *Ledger) fiscalPosition(ctx context.Context) (int, error) {
	return l.firstID(ctx, ModelFiscalPos, Domain{}.Where("company_id", "=", l.companyID))
}

// billLines renders rows as one2many create commands (0, 0, values)
func (l *Ledger) billLines(ctx context.Context, rows []model.Row) ([]any, error) {
	taxes := map[string]int{}
	lines := make([]any, 0, len(rows))
	for _, row := range rows {
		values := map[string]any{
			"name":       row.Label(),
			"price_unit": decimal.ParseOrZero(row.UnitPriceAmount).InexactFloat64(),
		}
		if q := row.Quantity(); q != "" {
			values["quantity"] = decimal.ParseOrZero(q).InexactFloat64()
		}

		name := taxName(row.VatRatePercent)
		taxID, ok := taxes[name]
		if !ok {
			var err error
			taxID, err = l.firstID(ctx, ModelTax, Domain{}.
				Where("name", "=", name).
				Where("company_id", "=", l.companyID))
			if err != nil {
				return nil, err
			}
			taxes[name] = taxID
		}
		if taxID > 0 {
			values["tax_ids"] = []int{taxID}
		}

		lines = append(lines, []any{0, 0, values})
	}
	return lines, nil
}

func (l *Ledger) firstID(ctx context.Context, modelName string, domain Domain) (int, error) {
	recs, err := l.client.SearchRead(ctx, modelName, domain, "id")
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	return recs[0].Int("id"), nil
}
