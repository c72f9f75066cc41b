package model

import (
	shop "github.com/shopspring/decimal"

	"github.com/rezonia/finvoice-bridge/internal/decimal"
)

var cent = shop.New(1, -2)

// Validate returns advisory findings for a document. It never blocks transmission.
func Validate(d *Document) []*ValidationError {
	var errs []*ValidationError

	if d.InvoiceNumber == "" {
		errs = append(errs, NewValidationError("invoice_number", nil, "required", "missing invoice number"))
	}
	if d.Seller.TaxCode == "" && d.EPI.BEI == "" {
		errs = append(errs, NewValidationError("seller.tax_code", nil, "required", "missing seller tax code"))
	}

	if d.InvoiceDate != "" && d.InvoiceDueDate != "" && d.InvoiceDueDate < d.InvoiceDate {
		errs = append(errs, NewValidationError("invoice_due_date", d.InvoiceDueDate, "gte_invoice_date",
			"due date precedes invoice date"))
	}

	excl, okExcl := parseAmount(d.Totals.VatExcluded)
	vat, okVat := parseAmount(d.Totals.Vat)
	incl, okIncl := parseAmount(d.Totals.VatIncluded)
	if okExcl && okVat && okIncl && !excl.Add(vat).Sub(incl).Abs().LessThanOrEqual(cent) {
		errs = append(errs, NewValidationError("totals.vat_included", d.Totals.VatIncluded, "sum",
			"VAT excluded plus VAT does not match VAT included"))
	}

	return errs
}

func parseAmount(s string) (shop.Decimal, bool) {
	v, err := decimal.Parse(s)
	if err != nil {
		return shop.Zero, false
	}
	return v, true
}
