package model

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrExternalIDImmutable is returned when a document's network id is reassigned
	ErrExternalIDImmutable = errors.New("external id already assigned")
	// ErrEmptyExternalID is returned when a blank network id is assigned
	ErrEmptyExternalID = errors.New("external id is empty")
)

// Document represents one Finvoice business document
type Document struct {
	// MessageID correlates one transmission attempt (nine digits)
	MessageID string `json:"message_id,omitempty"`

	// InvoiceDetails
	InvoiceNumber         string `json:"invoice_number"`
	InvoiceDate           string `json:"invoice_date"` // YYYYMMDD
	InvoiceTypeCode       string `json:"invoice_type_code,omitempty"`
	OriginCode            string `json:"origin_code,omitempty"`
	InvoiceTypeText       string `json:"invoice_type_text,omitempty"`
	RecipientCode         string `json:"recipient_code,omitempty"`
	RecipientText         string `json:"recipient_text,omitempty"`
	RecipientLanguageCode string `json:"recipient_language_code,omitempty"`
	CurrencyCode          string `json:"currency_code,omitempty"`
	Totals                Totals `json:"totals"`
	FreeText              string `json:"free_text,omitempty"`
	PaymentTermsFreeText  string `json:"payment_terms_free_text,omitempty"`
	OverdueFinePercent    string `json:"overdue_fine_percent,omitempty"`
	OverdueFineFreeText   string `json:"overdue_fine_free_text,omitempty"`
	InvoiceDueDate        string `json:"invoice_due_date,omitempty"` // YYYYMMDD
	URLText               string `json:"url_text,omitempty"`
	URLNameText           string `json:"url_name_text,omitempty"`
	OrderIdentifier       string `json:"order_identifier,omitempty"`
	BuyerReference        string `json:"buyer_reference,omitempty"`

	// Parties
	Seller Party `json:"seller"`
	Buyer  Party `json:"buyer"`

	// Payment instruction
	EPI EPI `json:"epi"`

	// Rows are appended in document order
	Rows        []Row        `json:"rows"`
	Attachments []Attachment `json:"attachments,omitempty"`

	externalID string
}

// Totals holds invoice level amounts as rendered text
type Totals struct {
	VatExcluded     string `json:"vat_excluded,omitempty"`
	Vat             string `json:"vat,omitempty"`
	VatIncluded     string `json:"vat_included,omitempty"`
	RowsVatExcluded string `json:"rows_vat_excluded,omitempty"`
}

// Party represents seller or buyer
type Party struct {
	Name                   string  `json:"name"`
	TaxCode                string  `json:"tax_code"`
	PartyIdentifier        string  `json:"party_identifier,omitempty"`
	OrganisationIdentifier string  `json:"organisation_identifier,omitempty"`
	Department             string  `json:"department,omitempty"`
	VatRegistrationID      string  `json:"vat_registration_id,omitempty"`
	OrganisationUnitNumber string  `json:"organisation_unit_number,omitempty"`
	ContactPersonName      string  `json:"contact_person_name,omitempty"`
	Address                Address `json:"address"`
	Contact                Contact `json:"contact"`
	Bank                   Bank    `json:"bank"`
	Routing                Routing `json:"routing"`
}

// Address is a postal address
type Address struct {
	Street      string `json:"street,omitempty"`
	Town        string `json:"town,omitempty"`
	PostCode    string `json:"post_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	CountryName string `json:"country_name,omitempty"`
}

// Contact holds communication details
type Contact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	Web   string `json:"web,omitempty"`
}

// Bank holds account details of a party
type Bank struct {
	AccountID   string `json:"account_id,omitempty"` // IBAN
	BIC         string `json:"bic,omitempty"`
	AccountName string `json:"account_name,omitempty"`
}

// Routing holds the e-invoicing address of a party
type Routing struct {
	OVT           string `json:"ovt,omitempty"`
	Intermediator string `json:"intermediator,omitempty"`
}

// Complete reports whether both routing fields are present
func (r Routing) Complete() bool {
	return r.OVT != "" && r.Intermediator != ""
}

// EPI is the electronic payment instruction block
type EPI struct {
	Date                string `json:"date,omitempty"` // YYYYMMDD
	Reference           string `json:"reference,omitempty"`
	BIC                 string `json:"bic,omitempty"`
	BeneficiaryName     string `json:"beneficiary_name,omitempty"`
	BEI                 string `json:"bei,omitempty"` // beneficiary tax id
	AccountID           string `json:"account_id,omitempty"`
	RemittanceReference string `json:"remittance_reference,omitempty"`
	InstructedAmount    string `json:"instructed_amount,omitempty"`
	Currency            string `json:"currency,omitempty"`
	DueDate             string `json:"due_date,omitempty"` // YYYYMMDD
}

// Row represents one invoice row
type Row struct {
	ArticleIdentifier       string `json:"article_identifier,omitempty"`
	ArticleName             string `json:"article_name"`
	ArticleDescription      string `json:"article_description,omitempty"`
	FreeText                string `json:"free_text,omitempty"`
	SubRowFreeText          string `json:"sub_row_free_text,omitempty"`
	OrderedQuantity         string `json:"ordered_quantity,omitempty"`
	DeliveredQuantity       string `json:"delivered_quantity,omitempty"`
	InvoicedQuantity        string `json:"invoiced_quantity,omitempty"`
	UnitCode                string `json:"unit_code,omitempty"`
	UnitPriceAmount         string `json:"unit_price_amount,omitempty"`
	UnitPriceNetAmount      string `json:"unit_price_net_amount,omitempty"`
	RowAmount               string `json:"row_amount,omitempty"`
	Currency                string `json:"currency,omitempty"`
	VatRatePercent          string `json:"vat_rate_percent,omitempty"`
	VatAmount               string `json:"vat_amount,omitempty"`
	VatExcludedAmount       string `json:"vat_excluded_amount,omitempty"`
	VatIncludedAmount       string `json:"vat_included_amount,omitempty"`
	DiscountPercent         string `json:"discount_percent,omitempty"`
	DiscountAmount          string `json:"discount_amount,omitempty"`
	Description             string `json:"description,omitempty"`
	OrderLineReference      string `json:"order_line_reference,omitempty"`
	DeliveryDate            string `json:"delivery_date,omitempty"`
	BuyerArticleIdentifier  string `json:"buyer_article_identifier,omitempty"`
	SellerArticleIdentifier string `json:"seller_article_identifier,omitempty"`
	CommentText             string `json:"comment_text,omitempty"`
}

// Quantity returns the invoiced quantity, falling back to delivered then ordered
func (r Row) Quantity() string {
	switch {
	case r.InvoicedQuantity != "":
		return r.InvoicedQuantity
	case r.DeliveredQuantity != "":
		return r.DeliveredQuantity
	default:
		return r.OrderedQuantity
	}
}

// Label joins the descriptive texts of the row, one per line
func (r Row) Label() string {
	var parts []string
	for _, s := range []string{r.ArticleName, r.ArticleDescription, r.FreeText, r.SubRowFreeText} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Attachment is a binary file carried alongside the invoice
type Attachment struct {
	Name       string `json:"name"`
	MimeType   string `json:"mime_type"`
	Content    string `json:"content"` // base64
	ExternalID int    `json:"external_id,omitempty"`
}

// Raw decodes the attachment content
func (a Attachment) Raw() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Content)
}

// SHA1 returns the hex digest of the decoded content
func (a Attachment) SHA1() (string, error) {
	raw, err := a.Raw()
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ExternalID returns the network id assigned to the document
func (d *Document) ExternalID() string {
	return d.externalID
}

// SetExternalID assigns the network id once
func (d *Document) SetExternalID(id string) error {
	if id == "" {
		return ErrEmptyExternalID
	}
	if d.externalID != "" && d.externalID != id {
		return ErrExternalIDImmutable
	}
	d.externalID = id
	return nil
}

// AddAttachment appends an attachment
func (d *Document) AddAttachment(a Attachment) {
	d.Attachments = append(d.Attachments, a)
}
