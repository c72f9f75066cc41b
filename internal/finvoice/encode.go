package finvoice

import (
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/rezonia/finvoice-bridge/internal/decimal"
	"github.com/rezonia/finvoice-bridge/internal/model"
)

// Encode renders doc as a complete Finvoice 3.0 message in ISO-8859-15.
// Every element of the skeleton is written; absent values become empty elements.
func (c *Codec) Encode(doc *model.Document) ([]byte, error) {
	now := c.clock.Now()

	x := etree.NewDocument()
	x.CreateProcInst("xml", `version="1.0" encoding="`+Charset+`"`)
	x.CreateProcInst("xml-stylesheet", `type="text/xsl" href="Finvoice.xsl"`)

	root := x.CreateElement("Finvoice")
	root.CreateAttr("xmlns:xsi", nsXSI)
	root.CreateAttr("xsi:noNamespaceSchemaLocation", "Finvoice3.0.xsd")
	root.CreateAttr("Version", "3.0")

	encodeTransmission(root, doc, MessageIdentifier(doc), "", now)
	encodeSellerParty(root, doc)
	encodeSellerCommunication(root, doc)
	encodeSellerInformation(root, doc)
	encodeBuyerParty(root, doc)
	encodeDelivery(root, now)
	encodeInvoiceDetails(root, doc, now)
	for _, row := range doc.Rows {
		encodeRow(root, doc, row)
	}
	encodeEPI(root, doc)

	return serialize(x)
}

func serialize(x *etree.Document) ([]byte, error) {
	x.Indent(2)
	utf8, err := x.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return FromUTF8(utf8)
}

func encodeTransmission(parent *etree.Element, doc *model.Document, messageID, refTo string, now time.Time) {
	mtd := parent.CreateElement("MessageTransmissionDetails")

	sender := mtd.CreateElement("MessageSenderDetails")
	leaf(sender, "FromIdentifier", doc.Seller.Routing.OVT, "SchemeID", schemeOVT)
	leaf(sender, "FromIntermediator", doc.Seller.Routing.Intermediator)

	receiver := mtd.CreateElement("MessageReceiverDetails")
	leaf(receiver, "ToIdentifier", doc.Buyer.Routing.OVT, "SchemeID", schemeOVT)
	leaf(receiver, "ToIntermediator", doc.Buyer.Routing.Intermediator)

	details := mtd.CreateElement("MessageDetails")
	leaf(details, "MessageIdentifier", messageID)
	leaf(details, "MessageTimeStamp", now.Format(timestampLayout))
	if refTo != "" {
		leaf(details, "RefToMessageIdentifier", refTo)
	}
}

func encodeSellerParty(parent *etree.Element, doc *model.Document) {
	s := doc.Seller
	sp := parent.CreateElement("SellerPartyDetails")
	leaf(sp, "SellerPartyIdentifier", firstOf(s.PartyIdentifier, s.TaxCode))
	leaf(sp, "SellerOrganisationName", s.Name)
	leaf(sp, "SellerOrganisationTaxCode", s.TaxCode)

	addr := sp.CreateElement("SellerPostalAddressDetails")
	leaf(addr, "SellerStreetName", s.Address.Street)
	leaf(addr, "SellerTownName", s.Address.Town)
	leaf(addr, "SellerPostCodeIdentifier", s.Address.PostCode)
}

func encodeSellerCommunication(parent *etree.Element, doc *model.Document) {
	leaf(parent, "SellerContactPersonName", doc.Seller.ContactPersonName)
	cd := parent.CreateElement("SellerCommunicationDetails")
	leaf(cd, "SellerPhoneNumberIdentifier", doc.Seller.Contact.Phone)
	leaf(cd, "SellerEmailaddressIdentifier", doc.Seller.Contact.Email)
}

func encodeSellerInformation(parent *etree.Element, doc *model.Document) {
	s := doc.Seller
	si := parent.CreateElement("SellerInformationDetails")
	leaf(si, "SellerCommonEmailaddressIdentifier", s.Contact.Email)

	acc := si.CreateElement("SellerAccountDetails")
	leaf(acc, "SellerAccountID", stripSpaces(s.Bank.AccountID), "IdentificationSchemeName", "IBAN")
	leaf(acc, "SellerBic", s.Bank.BIC, "IdentificationSchemeName", "BIC")
	leaf(acc, "SellerAccountName", s.Bank.AccountName)
}

func encodeBuyerParty(parent *etree.Element, doc *model.Document) {
	b := doc.Buyer
	bp := parent.CreateElement("BuyerPartyDetails")
	leaf(bp, "BuyerPartyIdentifier", firstOf(b.PartyIdentifier, b.TaxCode))
	leaf(bp, "BuyerOrganisationName", b.Name)
	leaf(bp, "BuyerOrganisationTaxCode", b.TaxCode)

	addr := bp.CreateElement("BuyerPostalAddressDetails")
	leaf(addr, "BuyerStreetName", b.Address.Street)
	leaf(addr, "BuyerTownName", b.Address.Town)
	leaf(addr, "BuyerPostCodeIdentifier", b.Address.PostCode)

	leaf(parent, "BuyerOrganisationUnitNumber", b.OrganisationUnitNumber)
	leaf(parent, "BuyerContactPersonName", b.ContactPersonName)
}

func encodeDelivery(parent *etree.Element, now time.Time) {
	dd := parent.CreateElement("DeliveryDetails")
	leaf(dd, "DeliveryDate", now.Format(dayLayout), "Format", dateFormat)
}

func encodeInvoiceDetails(parent *etree.Element, doc *model.Document, now time.Time) {
	currency := firstOf(doc.CurrencyCode, defaultCurrency)

	d := parent.CreateElement("InvoiceDetails")
	leaf(d, "InvoiceTypeCode", firstOf(doc.InvoiceTypeCode, "INV01"))
	leaf(d, "InvoiceTypeText", firstOf(doc.InvoiceTypeText, "INVOICE"))
	leaf(d, "OriginCode", firstOf(doc.OriginCode, "Original"))
	leaf(d, "InvoiceNumber", doc.InvoiceNumber)
	leaf(d, "InvoiceDate", firstOf(doc.InvoiceDate, now.Format(dayLayout)), "Format", dateFormat)
	leaf(d, "OrderIdentifier", doc.OrderIdentifier)
	leaf(d, "AgreementIdentifier", "")
	leaf(d, "BuyerReferenceIdentifier", doc.BuyerReference)
	leaf(d, "InvoiceTotalVatExcludedAmount", decimal.FormatAmount(doc.Totals.VatExcluded), "AmountCurrencyIdentifier", currency)
	leaf(d, "InvoiceTotalVatAmount", decimal.FormatAmount(doc.Totals.Vat), "AmountCurrencyIdentifier", currency)
	leaf(d, "InvoiceTotalVatIncludedAmount", decimal.FormatAmount(doc.Totals.VatIncluded), "AmountCurrencyIdentifier", currency)
	d.CreateElement("VatSpecificationDetails")

	pt := d.CreateElement("PaymentTermsDetails")
	leaf(pt, "PaymentTermsFreeText", doc.PaymentTermsFreeText)
	leaf(pt, "InvoiceDueDate", doc.InvoiceDueDate, "Format", dateFormat)
	fine := pt.CreateElement("PaymentOverDueFineDetails")
	leaf(fine, "PaymentOverDueFineFreeText", doc.OverdueFineFreeText)
	leaf(fine, "PaymentOverDueFinePercent", decimal.FormatAmount(doc.OverdueFinePercent))
}

func encodeRow(parent *etree.Element, doc *model.Document, row model.Row) {
	currency := firstOf(row.Currency, doc.CurrencyCode, defaultCurrency)
	unit := firstOf(row.UnitCode, defaultUnit)

	r := parent.CreateElement("InvoiceRow")
	leaf(r, "ArticleIdentifier", row.ArticleIdentifier)
	leaf(r, "ArticleName", row.ArticleName)
	leaf(r, "DeliveredQuantity", decimal.FormatAmount(row.DeliveredQuantity), "QuantityUnitCode", unit)
	leaf(r, "InvoicedQuantity", decimal.FormatAmount(row.InvoicedQuantity), "QuantityUnitCode", unit)
	leaf(r, "UnitPriceAmount", decimal.FormatAmount(row.UnitPriceAmount), "AmountCurrencyIdentifier", currency)
	leaf(r, "RowPositionIdentifier", "")
	leaf(r, "RowProposedAccountText", "")
	leaf(r, "RowFreeText", row.FreeText)
	leaf(r, "RowVatRatePercent", decimal.FormatAmount(row.VatRatePercent))
	leaf(r, "RowVatAmount", decimal.FormatAmount(row.VatAmount), "AmountCurrencyIdentifier", currency)
	leaf(r, "RowVatExcludedAmount", decimal.FormatAmount(row.VatExcludedAmount), "AmountCurrencyIdentifier", currency)
}

func encodeEPI(parent *etree.Element, doc *model.Document) {
	e := doc.EPI
	epi := parent.CreateElement("EpiDetails")

	id := epi.CreateElement("EpiIdentificationDetails")
	leaf(id, "EpiDate", e.Date, "Format", dateFormat)
	leaf(id, "EpiReference", e.Reference)

	party := epi.CreateElement("EpiPartyDetails")
	bfi := party.CreateElement("EpiBfiPartyDetails")
	leaf(bfi, "EpiBfiIdentifier", e.BIC, "IdentificationSchemeName", "BIC")
	ben := party.CreateElement("EpiBeneficiaryPartyDetails")
	leaf(ben, "EpiNameAddressDetails", e.BeneficiaryName)
	leaf(ben, "EpiBei", e.BEI)
	leaf(ben, "EpiAccountID", stripSpaces(e.AccountID), "IdentificationSchemeName", "IBAN")

	pi := epi.CreateElement("EpiPaymentInstructionDetails")
	leaf(pi, "EpiRemittanceInfoIdentifier", e.RemittanceReference, "IdentificationSchemeName", "SPY")
	leaf(pi, "EpiInstructedAmount", decimal.FormatAmount(e.InstructedAmount),
		"AmountCurrencyIdentifier", firstOf(e.Currency, doc.CurrencyCode, defaultCurrency))
	charge := pi.CreateElement("EpiCharge")
	charge.CreateAttr("ChargeOption", "SLEV")
	leaf(pi, "EpiDateOptionDate", e.DueDate, "Format", dateFormat)
}

// leaf creates a child with text and attribute pairs
func leaf(parent *etree.Element, tag, value string, attrs ...string) *etree.Element {
	el := parent.CreateElement(tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		el.CreateAttr(attrs[i], attrs[i+1])
	}
	if value != "" {
		el.SetText(value)
	}
	return el
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
