package odoo

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	shop "github.com/shopspring/decimal"

	"github.com/rezonia/finvoice-bridge/internal/bundle"
	"github.com/rezonia/finvoice-bridge/internal/decimal"
	"github.com/rezonia/finvoice-bridge/internal/model"
	"github.com/rezonia/finvoice-bridge/internal/reference"
)

// Fixed values written on every outbound invoice
const (
	OverdueFineFreeText = "Viivästyskorko 16%"
	OverdueFinePercent  = "16,00"
	InvoiceTypeCode     = "INV01"
	InvoiceTypeText     = "LASKU"
	OriginCode          = "Original"
	LanguageCode        = "FI"
	DefaultCurrency     = "EUR"
)

const (
	amountPlaces = 3
	epiPlaces    = 2
)

var (
	lineFields       = []string{"id", "name", "price_unit", "quantity", "tax_ids", "price_subtotal"}
	bankFields       = []string{"bank_bic", "bank_name", "acc_number"}
	attachmentFields = []string{"name", "datas", "mimetype"}
)

var hundred = shop.NewFromInt(100)

// Mapper converts Odoo customer invoices into Finvoice documents
type Mapper struct {
	client *Client
	refs   *reference.Generator
	log    zerolog.Logger
}

// NewMapper creates a mapper that reads related records through client
func NewMapper(client *Client, refs *reference.Generator, log zerolog.Logger) *Mapper {
	return &Mapper{client: client, refs: refs, log: log}
}

// Map builds a document from an account.move record and the buyer read for it.
// Related rows, taxes, bank account, company and attachments are read from Odoo.
func (m *Mapper) Map(ctx context.Context, move Record, buyer model.Party) (*model.Document, error) {
	doc := &model.Document{
		InvoiceNumber:         move.String("name"),
		InvoiceDate:           strings.ReplaceAll(move.String("invoice_date"), "-", ""),
		InvoiceDueDate:        strings.ReplaceAll(move.String("invoice_date_due"), "-", ""),
		InvoiceTypeCode:       InvoiceTypeCode,
		InvoiceTypeText:       InvoiceTypeText,
		OriginCode:            OriginCode,
		RecipientLanguageCode: LanguageCode,
		OverdueFineFreeText:   OverdueFineFreeText,
		OverdueFinePercent:    OverdueFinePercent,
		CurrencyCode:          DefaultCurrency,
		BuyerReference:        move.String(FieldBuyerRef),
		OrderIdentifier:       move.String(FieldOrderID),
		Buyer:                 buyer,
		Totals: model.Totals{
			VatExcluded: decimal.Format(move.Decimal("amount_untaxed_signed"), amountPlaces),
			Vat:         decimal.Format(move.Decimal("amount_tax_signed"), amountPlaces),
			VatIncluded: decimal.Format(move.Decimal("amount_total_signed"), amountPlaces),
		},
	}
	if _, cur := move.Many2One("currency_id"); cur != "" {
		doc.CurrencyCode = cur
	}
	if _, name := move.Many2One("partner_id"); name != "" && doc.Buyer.Name == "" {
		doc.Buyer.Name = name
	}

	rowsExcluded, rowsTotal, err := m.mapRows(ctx, move.IDs("invoice_line_ids"), doc)
	if err != nil {
		return nil, err
	}
	doc.Totals.RowsVatExcluded = decimal.Format(rowsExcluded, amountPlaces)

	if err := m.mapSeller(ctx, move, doc); err != nil {
		return nil, err
	}

	doc.EPI = model.EPI{
		Date:             doc.InvoiceDate,
		BIC:              doc.Seller.Bank.BIC,
		BeneficiaryName:  doc.Seller.Name,
		BEI:              doc.Seller.TaxCode,
		AccountID:        strings.ReplaceAll(doc.Seller.Bank.AccountID, " ", ""),
		InstructedAmount: decimal.Format(rowsTotal, epiPlaces),
		Currency:         doc.CurrencyCode,
		DueDate:          doc.InvoiceDueDate,
	}
	doc.EPI.RemittanceReference, err = m.paymentReference(move, doc.InvoiceNumber)
	if err != nil {
		return nil, err
	}

	m.mapAttachments(ctx, move.IDs("attachment_ids"), doc)
	return doc, nil
}

// mapRows appends invoice rows in line order and returns the VAT excluded sum
// and the VAT included sum of the rows
func (m *Mapper) mapRows(ctx context.Context, ids []int, doc *model.Document) (shop.Decimal, shop.Decimal, error) {
	excluded, total := shop.Zero, shop.Zero
	if len(ids) == 0 {
		return excluded, total, nil
	}

	lines, err := m.client.SearchRead(ctx, ModelMoveLine, Domain{}.Where("id", "in", ids), lineFields...)
	if err != nil {
		return excluded, total, err
	}
	byID := make(map[int]Record, len(lines))
	for _, l := range lines {
		byID[l.Int("id")] = l
	}

	rates := map[int]shop.Decimal{}
	for i, id := range ids {
		line, ok := byID[id]
		if !ok {
			m.log.Warn().Int("row", i).Int("line_id", id).Msg("ignoring missing invoice row")
			continue
		}

		rate := shop.Zero
		if taxIDs := line.IDs("tax_ids"); len(taxIDs) > 0 {
			rate, err = m.taxRate(ctx, taxIDs[0], rates)
			if err != nil {
				return excluded, total, err
			}
		}

		subtotal := line.Decimal("price_subtotal")
		vat := shop.Zero
		if rate.IsPositive() {
			vat = subtotal.Mul(rate).Div(hundred)
		}
		qty := line.Decimal("quantity").String()

		doc.Rows = append(doc.Rows, model.Row{
			ArticleName:       line.String("name"),
			OrderedQuantity:   qty,
			DeliveredQuantity: qty,
			InvoicedQuantity:  qty,
			UnitPriceAmount:   decimal.Format(line.Decimal("price_unit"), amountPlaces),
			VatRatePercent:    decimal.Format(rate, amountPlaces),
			VatAmount:         vatText(vat),
			VatExcludedAmount: decimal.Format(subtotal, amountPlaces),
			VatIncludedAmount: decimal.Format(subtotal.Add(vat), amountPlaces),
		})
		excluded = excluded.Add(subtotal)
		total = total.Add(subtotal).Add(vat)
	}
	return excluded, total, nil
}

func vatText(vat shop.Decimal) string {
	if vat.IsZero() {
		return "0"
	}
	return decimal.Format(vat, amountPlaces)
}

func (m *Mapper) taxRate(ctx context.Context, id int, cache map[int]shop.Decimal) (shop.Decimal, error) {
	if rate, ok := cache[id]; ok {
		return rate, nil
	}
	recs, err := m.client.SearchRead(ctx, ModelTax, Domain{}.Where("id", "=", id), "amount")
	if err != nil {
		return shop.Zero, err
	}
	rate := shop.Zero
	if len(recs) > 0 {
		rate = recs[0].Decimal("amount")
	}
	cache[id] = rate
	return rate, nil
}

// mapSeller fills the issuing company, its bank account and the contact person
func (m *Mapper) mapSeller(ctx context.Context, move Record, doc *model.Document) error {
	companyID, companyName := move.Many2One("company_id")
	_, contact := move.Many2One("create_uid")

	if companyID > 0 {
		company, err := readParty(ctx, m.client, ModelCompany, companyID)
		if err != nil {
			return err
		}
		doc.Seller = company
	}
	if companyName != "" {
		doc.Seller.Name = companyName
	}
	doc.Seller.ContactPersonName = contact

	if bankID, _ := move.Many2One("partner_bank_id"); bankID > 0 {
		recs, err := m.client.SearchRead(ctx, ModelBankAcct, Domain{}.Where("id", "=", bankID), bankFields...)
		if err != nil {
			return err
		}
		if len(recs) > 0 {
			doc.Seller.Bank = model.Bank{
				BIC:         recs[0].String("bank_bic"),
				AccountName: recs[0].String("bank_name"),
				AccountID:   recs[0].String("acc_number"),
			}
		}
	}
	return nil
}

// paymentReference prefers the stored EPI reference, then Odoo's payment
// reference, and generates one from the invoice number as a last resort
func (m *Mapper) paymentReference(move Record, invoiceNumber string) (string, error) {
	if ref := move.String(FieldEpiRef); ref != "" {
		return ref, nil
	}
	if ref := move.String("payment_reference"); ref != "" {
		return ref, nil
	}
	return m.refs.Generate(invoiceNumber)
}

func (m *Mapper) mapAttachments(ctx context.Context, ids []int, doc *model.Document) {
	for i, id := range ids {
		recs, err := m.client.SearchRead(ctx, ModelAttachment, Domain{}.Where("id", "=", id), attachmentFields...)
		if err != nil || len(recs) == 0 {
			m.log.Error().Err(err).Int("attachment", i).Int("id", id).Msg("ignoring attachment")
			continue
		}
		r := recs[0]
		doc.AddAttachment(model.Attachment{
			Name:       bundle.SanitizeName(r.String("name")),
			MimeType:   r.String("mimetype"),
			Content:    r.String("datas"),
			ExternalID: id,
		})
	}
}
