package finvoice

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/finvoice-bridge/internal/model"
)

// Decode parses a Finvoice document. Missing elements leave fields empty;
// only malformed XML or a missing Finvoice root is an error.
func (c *Codec) Decode(data []byte) (*model.Document, error) {
	if hasBOM(data) {
		data = data[3:]
	}

	x := etree.NewDocument()
	x.ReadSettings.CharsetReader = charsetReader
	x.ReadSettings.Permissive = false
	if err := x.ReadFromBytes(data); err != nil {
		return nil, model.NewDecodeError("malformed XML", err)
	}

	root := x.SelectElement("Finvoice")
	if root == nil {
		return nil, model.NewDecodeError("missing Finvoice root element", nil)
	}

	doc := &model.Document{}
	decodeTransmission(root, doc)
	decodeInvoiceDetails(root, doc)
	decodeSeller(root, &doc.Seller)
	decodeBuyer(root, &doc.Buyer)
	decodeEPI(root, doc)
	decodeRows(root, doc)

	c.resolve(root, doc)
	return doc, nil
}

// resolve fills the beneficiary id and the country fields
func (c *Codec) resolve(root *etree.Element, doc *model.Document) {
	raw := text(root, "EpiDetails", "EpiPartyDetails", "EpiBeneficiaryPartyDetails", "EpiBei")
	if raw == "" {
		raw = doc.Seller.TaxCode
	}
	if raw != "" {
		doc.EPI.BEI = c.resolver.TaxIdentifier(&doc.Seller, raw)
	}

	gaps := c.resolver.Country(&doc.Seller, doc.EPI.BEI)
	if doc.Buyer.Address.CountryCode != "" || doc.Buyer.Address.CountryName != "" {
		gaps = append(gaps, c.resolver.Country(&doc.Buyer, "")...)
	} else if prefix := c.resolver.CountryPrefix(doc.Buyer.VatRegistrationID); prefix != "" {
		gaps = append(gaps, c.resolver.Country(&doc.Buyer, prefix)...)
	}

	for _, gap := range gaps {
		c.log.Debug().
			Str("invoice", doc.InvoiceNumber).
			Str("field", gap.Field).
			Msg(gap.Reason)
	}
}

func decodeTransmission(root *etree.Element, doc *model.Document) {
	mtd := root.SelectElement("MessageTransmissionDetails")
	if mtd == nil {
		return
	}
	set(&doc.Seller.Routing.OVT, mtd, "MessageSenderDetails", "FromIdentifier")
	set(&doc.Seller.Routing.Intermediator, mtd, "MessageSenderDetails", "FromIntermediator")
	set(&doc.Buyer.Routing.OVT, mtd, "MessageReceiverDetails", "ToIdentifier")
	set(&doc.Buyer.Routing.Intermediator, mtd, "MessageReceiverDetails", "ToIntermediator")
}

func decodeInvoiceDetails(root *etree.Element, doc *model.Document) {
	d := root.SelectElement("InvoiceDetails")
	if d == nil {
		return
	}
	set(&doc.InvoiceNumber, d, "InvoiceNumber")
	set(&doc.InvoiceDate, d, "InvoiceDate")
	set(&doc.InvoiceTypeCode, d, "InvoiceTypeCode")
	set(&doc.OriginCode, d, "OriginCode")
	set(&doc.InvoiceTypeText, d, "InvoiceTypeText")
	set(&doc.RecipientCode, d, "InvoiceRecipientCode")
	set(&doc.RecipientText, d, "InvoiceRecipientText")
	set(&doc.RecipientLanguageCode, d, "InvoiceRecipientLanguageCode")
	set(&doc.CurrencyCode, d, "InvoiceCurrencyCode")
	set(&doc.Totals.VatExcluded, d, "InvoiceTotalVatExcludedAmount")
	set(&doc.Totals.Vat, d, "InvoiceTotalVatAmount")
	set(&doc.Totals.VatIncluded, d, "InvoiceTotalVatIncludedAmount")
	set(&doc.Totals.RowsVatExcluded, d, "RowsTotalVatExcludedAmount")
	set(&doc.BuyerReference, d, "BuyerReferenceIdentifier")
	set(&doc.OrderIdentifier, d, "OrderIdentifier")
	set(&doc.URLText, d, "InvoiceUrlText")
	set(&doc.URLNameText, d, "InvoiceUrlNameText")

	if doc.CurrencyCode == "" {
		if el := d.SelectElement("InvoiceTotalVatIncludedAmount"); el != nil {
			doc.CurrencyCode = el.SelectAttrValue("AmountCurrencyIdentifier", "")
		}
	}

	doc.FreeText = joined(d, "InvoiceFreeText")

	if pt := d.SelectElement("PaymentTermsDetails"); pt != nil {
		doc.PaymentTermsFreeText = joined(pt, "PaymentTermsFreeText")
		set(&doc.InvoiceDueDate, pt, "InvoiceDueDate")
		set(&doc.OverdueFinePercent, pt, "PaymentOverDueFinePercent")
		set(&doc.OverdueFineFreeText, pt, "PaymentOverDueFineFreeText")
		set(&doc.OverdueFinePercent, pt, "PaymentOverDueFineDetails", "PaymentOverDueFinePercent")
		set(&doc.OverdueFineFreeText, pt, "PaymentOverDueFineDetails", "PaymentOverDueFineFreeText")
	}
}

func decodeSeller(root *etree.Element, p *model.Party) {
	if sp := root.SelectElement("SellerPartyDetails"); sp != nil {
		set(&p.PartyIdentifier, sp, "SellerPartyIdentifier")
		set(&p.Name, sp, "SellerOrganisationName")
		set(&p.TaxCode, sp, "SellerOrganisationTaxCode")
		set(&p.OrganisationIdentifier, sp, "SellerOrganisationIdentifier")
		set(&p.Department, sp, "SellerDepartment")
		set(&p.Address.Street, sp, "SellerStreetName")
		set(&p.Address.Town, sp, "SellerTownName")
		set(&p.Address.PostCode, sp, "SellerPostCodeIdentifier")
		set(&p.Address.CountryCode, sp, "SellerCountryCode")
		set(&p.Contact.Phone, sp, "SellerPhoneNumberIdentifier")
		set(&p.Contact.Email, sp, "SellerEmailaddressIdentifier")
		set(&p.Contact.Web, sp, "SellerWebaddressIdentifier")

		if p.Address.Street == "" {
			if pa := sp.SelectElement("SellerPostalAddressDetails"); pa != nil {
				set(&p.Address.Town, pa, "SellerTownName")
				set(&p.Address.Street, pa, "SellerStreetName")
				set(&p.Address.PostCode, pa, "SellerPostCodeIdentifier")
				set(&p.Address.CountryCode, pa, "CountryCode")
				set(&p.Address.CountryCode, pa, "SellerCountryCode")
				set(&p.Address.CountryName, pa, "CountryName")
				set(&p.Address.CountryName, pa, "SellerCountryName")
			}
		}
		set(&p.VatRegistrationID, sp, "SellerVatRegistrationDetails", "SellerVatRegistrationId")
	}

	set(&p.OrganisationUnitNumber, root, "SellerOrganisationUnitNumber")
	set(&p.ContactPersonName, root, "SellerContactPersonName")
	if cd := root.SelectElement("SellerCommunicationDetails"); cd != nil {
		fill(&p.Contact.Phone, cd, "SellerPhoneNumberIdentifier")
		fill(&p.Contact.Email, cd, "SellerEmailaddressIdentifier")
	}

	if si := root.SelectElement("SellerInformationDetails"); si != nil {
		fill(&p.Address.Town, si, "SellerHomeTownName")
		fill(&p.Contact.Phone, si, "SellerPhoneNumber")
		fill(&p.Contact.Email, si, "SellerCommonEmailaddressIdentifier")
		fill(&p.Contact.Web, si, "SellerWebaddressIdentifier")

		// only the first account is kept
		if acc := si.SelectElement("SellerAccountDetails"); acc != nil {
			set(&p.Bank.AccountName, acc, "SellerAccountName")
			set(&p.Bank.AccountID, acc, "SellerAccountID")
			set(&p.Bank.BIC, acc, "SellerBic")
		}
	}
}

func decodeBuyer(root *etree.Element, p *model.Party) {
	if bp := root.SelectElement("BuyerPartyDetails"); bp != nil {
		set(&p.Name, bp, "BuyerOrganisationName")
		set(&p.TaxCode, bp, "BuyerOrganisationTaxCode")
		set(&p.PartyIdentifier, bp, "BuyerPartyIdentifier")
		set(&p.OrganisationIdentifier, bp, "BuyerOrganisationIdentifier")
		set(&p.Department, bp, "BuyerDepartment")
		set(&p.Address.Street, bp, "BuyerStreetName")
		set(&p.Address.Town, bp, "BuyerTownName")
		set(&p.Address.PostCode, bp, "BuyerPostCodeIdentifier")
		set(&p.Address.CountryCode, bp, "BuyerCountryCode")
		set(&p.Contact.Phone, bp, "BuyerPhoneNumberIdentifier")
		set(&p.Contact.Email, bp, "BuyerEmailaddressIdentifier")
		set(&p.Contact.Web, bp, "BuyerWebaddressIdentifier")
		set(&p.Bank.AccountID, bp, "BuyerAccountDetails", "BuyerAccountID")
		set(&p.Bank.BIC, bp, "BuyerAccountDetails", "BuyerBic")
		set(&p.VatRegistrationID, bp, "BuyerVatRegistrationDetails", "BuyerVatRegistrationId")

		if p.Address.Street == "" {
			if pa := bp.SelectElement("BuyerPostalAddressDetails"); pa != nil {
				set(&p.Address.Street, pa, "BuyerStreetName")
				set(&p.Address.Town, pa, "BuyerTownName")
				set(&p.Address.PostCode, pa, "BuyerPostCodeIdentifier")
				set(&p.Address.CountryCode, pa, "CountryCode")
				set(&p.Address.CountryName, pa, "CountryName")
			}
		}
	}
	set(&p.OrganisationUnitNumber, root, "BuyerOrganisationUnitNumber")
	set(&p.ContactPersonName, root, "BuyerContactPersonName")
}

func decodeEPI(root *etree.Element, doc *model.Document) {
	epi := root.SelectElement("EpiDetails")
	if epi == nil {
		return
	}
	set(&doc.EPI.Date, epi, "EpiIdentificationDetails", "EpiDate")
	set(&doc.EPI.Reference, epi, "EpiIdentificationDetails", "EpiReference")
	set(&doc.EPI.BIC, epi, "EpiPartyDetails", "EpiBfiPartyDetails", "EpiBfiIdentifier")
	set(&doc.EPI.BeneficiaryName, epi, "EpiPartyDetails", "EpiBeneficiaryPartyDetails", "EpiNameAddressDetails")
	set(&doc.EPI.AccountID, epi, "EpiPartyDetails", "EpiBeneficiaryPartyDetails", "EpiAccountID")
	set(&doc.EPI.RemittanceReference, epi, "EpiPaymentInstructionDetails", "EpiRemittanceInfoIdentifier")
	set(&doc.EPI.InstructedAmount, epi, "EpiPaymentInstructionDetails", "EpiInstructedAmount")
	set(&doc.EPI.DueDate, epi, "EpiPaymentInstructionDetails", "EpiDateOptionDate")
	if amt := find(epi, "EpiPaymentInstructionDetails", "EpiInstructedAmount"); amt != nil {
		doc.EPI.Currency = amt.SelectAttrValue("AmountCurrencyIdentifier", "")
	}
}

func decodeRows(root *etree.Element, doc *model.Document) {
	for _, el := range root.SelectElements("InvoiceRow") {
		var row model.Row
		set(&row.SubRowFreeText, el, "SubInvoiceRow", "SubRowFreeText")
		set(&row.ArticleIdentifier, el, "ArticleIdentifier")
		set(&row.ArticleName, el, "ArticleName")
		set(&row.ArticleDescription, el, "ArticleDescription")
		set(&row.UnitPriceNetAmount, el, "UnitPriceNetAmount")
		set(&row.FreeText, el, "RowFreeText")
		set(&row.DeliveredQuantity, el, "DeliveredQuantity")
		set(&row.InvoicedQuantity, el, "InvoicedQuantity")
		set(&row.RowAmount, el, "RowAmount")
		set(&row.OrderedQuantity, el, "OrderedQuantity")
		set(&row.UnitPriceAmount, el, "UnitPriceAmount")
		set(&row.VatRatePercent, el, "RowVatRatePercent")
		set(&row.VatAmount, el, "RowVatAmount")
		set(&row.VatExcludedAmount, el, "RowVatExcludedAmount")
		set(&row.VatIncludedAmount, el, "RowVatIncludedAmount")
		set(&row.DiscountPercent, el, "RowDiscountPercent")
		set(&row.DiscountAmount, el, "RowDiscountAmount")
		set(&row.UnitCode, el, "RowUnitCode")
		set(&row.Description, el, "RowDescription")
		set(&row.OrderLineReference, el, "RowOrderLineReference")
		set(&row.DeliveryDate, el, "RowDeliveryDate")
		set(&row.BuyerArticleIdentifier, el, "RowBuyerArticleIdentifier")
		set(&row.SellerArticleIdentifier, el, "RowSellerArticleIdentifier")
		set(&row.CommentText, el, "RowCommentText")

		if ve := el.SelectElement("RowVatExcludedAmount"); ve != nil {
			row.Currency = ve.SelectAttrValue("AmountCurrencyIdentifier", "")
		}
		if row.UnitCode == "" {
			for _, tag := range []string{"InvoicedQuantity", "DeliveredQuantity", "OrderedQuantity"} {
				if q := el.SelectElement(tag); q != nil {
					if unit := q.SelectAttrValue("QuantityUnitCode", ""); unit != "" {
						row.UnitCode = unit
						break
					}
				}
			}
		}

		doc.Rows = append(doc.Rows, row)
	}
}

// find walks a chain of child elements
func find(el *etree.Element, path ...string) *etree.Element {
	for _, tag := range path {
		if el == nil {
			return nil
		}
		el = el.SelectElement(tag)
	}
	return el
}

func text(el *etree.Element, path ...string) string {
	if e := find(el, path...); e != nil {
		return strings.TrimSpace(e.Text())
	}
	return ""
}

// set assigns the element text when the element exists
func set(dst *string, el *etree.Element, path ...string) {
	if e := find(el, path...); e != nil {
		*dst = strings.TrimSpace(e.Text())
	}
}

// fill assigns the element text only when dst is empty
func fill(dst *string, el *etree.Element, path ...string) {
	if *dst == "" {
		set(dst, el, path...)
	}
}

// joined concatenates repeated children with newlines, in document order
func joined(el *etree.Element, tag string) string {
	var parts []string
	for _, e := range el.SelectElements(tag) {
		if t := strings.TrimSpace(e.Text()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
