package odoo

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rezonia/finvoice-bridge/internal/country"
	"github.com/rezonia/finvoice-bridge/internal/decimal"
	"github.com/rezonia/finvoice-bridge/internal/lifecycle"
	"github.com/rezonia/finvoice-bridge/internal/logger"
	"github.com/rezonia/finvoice-bridge/internal/model"
	"github.com/rezonia/finvoice-bridge/internal/reference"
)

// Odoo models and custom fields used by the bridge
const (
	ModelMove       = "account.move"
	ModelMoveLine   = "account.move.line"
	ModelTax        = "account.tax"
	ModelPartner    = "res.partner"
	ModelCompany    = "res.company"
	ModelBank       = "res.bank"
	ModelBankAcct   = "res.partner.bank"
	ModelCountry    = "res.country"
	ModelFiscalPos  = "account.fiscal.position"
	ModelAttachment = "ir.attachment"

	FieldStatus        = "x_studio_maventa_status"
	FieldError         = "x_studio_maventa_error"
	FieldExternalID    = "x_studio_eio_invoice_identifier"
	FieldEpiRef        = "x_studio_epiref"
	FieldBuyerRef      = "x_studio_buyerref"
	FieldOrderID       = "x_studio_orderid"
	FieldOVT           = "x_studio_eio_ovt"
	FieldIntermediator = "x_studio_eio_intermediator"
)

var fieldNames = map[lifecycle.Field]string{
	lifecycle.FieldStatus:           FieldStatus,
	lifecycle.FieldError:            FieldError,
	lifecycle.FieldExternalID:       FieldExternalID,
	lifecycle.FieldPaymentReference: FieldEpiRef,
}

var partyFields = []string{"name", "vat", "street", "city", "zip", FieldOVT, FieldIntermediator}

var (
	_ lifecycle.SalesLedger    = (*Ledger)(nil)
	_ lifecycle.PurchaseLedger = (*Ledger)(nil)
)

// Ledger exposes the invoices of one Odoo company
type Ledger struct {
	client    *Client
	companyID int
	mapper    *Mapper
	countries *country.Table
	log       zerolog.Logger
}

// LedgerOption configures a ledger
type LedgerOption func(*Ledger)

// WithReferences sets the generator for missing payment references
func WithReferences(g *reference.Generator) LedgerOption {
	return func(l *Ledger) {
		l.mapper.refs = g
	}
}

// WithCountries sets the country table used for new vendors
func WithCountries(t *country.Table) LedgerOption {
	return func(l *Ledger) {
		l.countries = t
	}
}

// WithLedgerLogger sets the logger
func WithLedgerLogger(log zerolog.Logger) LedgerOption {
	return func(l *Ledger) {
		l.log = log
		l.mapper.log = log
	}
}

// NewLedger creates a ledger scoped to companyID. The client must be authenticated.
func NewLedger(client *Client, companyID int, opts ...LedgerOption) *Ledger {
	log := logger.WithComponent("odoo")
	l := &Ledger{
		client:    client,
		companyID: companyID,
		countries: country.Default(),
		log:       log,
	}
	l.mapper = NewMapper(client, reference.NewGenerator(), log)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PendingOutbound lists customer invoices marked for sending
func (l *Ledger) PendingOutbound(ctx context.Context) ([]lifecycle.OutboundRecord, error) {
	domain := Domain{}.
		Where("move_type", "=", "out_invoice").
		Where(FieldStatus, "=", model.StatusSending.String()).
		Where("company_id", "=", l.companyID)

	recs, err := l.client.SearchRead(ctx, ModelMove, domain)
	if err != nil {
		return nil, err
	}

	out := make([]lifecycle.OutboundRecord, 0, len(recs))
	for _, r := range recs {
		status, err := model.ParseStatus(r.String(FieldStatus))
		if err != nil {
			l.log.Warn().Int("id", r.Int("id")).Err(err).Msg("ignoring invoice with unknown status")
			continue
		}
		partnerID, _ := r.Many2One("partner_id")
		out = append(out, lifecycle.OutboundRecord{
			ID:         r.Int("id"),
			Number:     r.String("name"),
			Status:     status,
			ExternalID: r.String(FieldExternalID),
			PartnerID:  partnerID,
			Values:     r,
		})
	}
	return out, nil
}

// BuyerRouting reads the customer's address and e-invoicing routing
func (l *Ledger) BuyerRouting(ctx context.Context, rec lifecycle.OutboundRecord) (model.Party, error) {
	_, name := Record(rec.Values).Many2One("partner_id")
	if name == "" {
		name = Record(rec.Values).String("invoice_partner_display_name")
	}
	party := model.Party{Name: name}
	if rec.PartnerID == 0 {
		return party, nil
	}

	p, err := readParty(ctx, l.client, ModelPartner, rec.PartnerID)
	if err != nil {
		return party, err
	}
	if party.Name == "" {
		party.Name = p.Name
	}
	party.TaxCode = p.TaxCode
	party.Address = p.Address
	party.Routing = p.Routing
	return party, nil
}

// MapToModel builds the Finvoice document for an outbound record
func (l *Ledger) MapToModel(ctx context.Context, rec lifecycle.OutboundRecord, buyer model.Party) (*model.Document, error) {
	doc, err := l.mapper.Map(ctx, Record(rec.Values), buyer)
	if err != nil {
		return nil, err
	}
	if doc.EPI.RemittanceReference != "" && Record(rec.Values).String(FieldEpiRef) == "" {
		if err := l.UpdateField(ctx, rec.ID, lifecycle.FieldPaymentReference, doc.EPI.RemittanceReference); err != nil {
			l.log.Warn().Err(err).Str("invoice", rec.Number).Msg("could not store payment reference")
		}
	}
	return doc, nil
}

// UpdateField writes one bridge field on an invoice
func (l *Ledger) UpdateField(ctx context.Context, id int, field lifecycle.Field, value string) error {
	name, ok := fieldNames[field]
	if !ok {
		return fmt.Errorf("odoo: unknown field %q", field)
	}
	return l.client.Write(ctx, ModelMove, id, map[string]any{name: value})
}

// RecordExists reports whether a vendor bill with the network id is already stored
func (l *Ledger) RecordExists(ctx context.Context, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	domain := Domain{}.
		Where("move_type", "=", "in_invoice").
		Where(FieldExternalID, "=", externalID).
		Where("company_id", "=", l.companyID)

	recs, err := l.client.SearchRead(ctx, ModelMove, domain, "id", FieldExternalID)
	if err != nil {
		return false, err
	}
	for _, r := range recs {
		if r.String(FieldExternalID) == externalID {
			return true, nil
		}
	}
	return false, nil
}

// readParty reads name, tax code, address and routing of a partner or company
func readParty(ctx context.Context, c *Client, modelName string, id int) (model.Party, error) {
	recs, err := c.SearchRead(ctx, modelName, Domain{}.Where("id", "=", id), partyFields...)
	if err != nil {
		return model.Party{}, err
	}
	if len(recs) == 0 {
		return model.Party{}, nil
	}
	r := recs[0]
	return model.Party{
		Name:    r.String("name"),
		TaxCode: r.String("vat"),
		Address: model.Address{
			Street:   r.String("street"),
			Town:     r.String("city"),
			PostCode: r.String("zip"),
		},
		Routing: model.Routing{
			OVT:           r.String(FieldOVT),
			Intermediator: r.String(FieldIntermediator),
		},
	}, nil
}

// OldTaxCodeFormat converts "FI12345671" to the legacy "1234567-1" form.
// Anything that is not ten characters long yields "".
func OldTaxCodeFormat(taxCode string) string {
	return oldTaxCodeFormat(country.Default(), taxCode)
}

func oldTaxCodeFormat(countries *country.Table, taxCode string) string {
	if len(taxCode) != 10 {
		return ""
	}
	s := taxCode
	if countries.HasCodePrefix(s) {
		s = s[2:]
	}
	if !strings.Contains(s, "-") && len(s) > 7 {
		s = s[:7] + "-" + s[7:]
	}
	return s
}

// odooDate converts YYYYMMDD to YYYY-MM-DD, leaving other input unchanged
func odooDate(d string) string {
	if len(d) != 8 {
		return d
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:]
}

// taxName is the account.tax name for a VAT rate, e.g. "25,50" -> "25.5%"
func taxName(rate string) string {
	if strings.TrimSpace(rate) == "" {
		rate = "0"
	}
	return decimal.NormalizeRate(rate) + "%"
}
