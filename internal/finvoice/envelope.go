package finvoice

import (
	"github.com/beevik/etree"

	"github.com/rezonia/finvoice-bridge/internal/model"
)

const (
	nsSOAP  = "http://schemas.xmlsoap.org/soap/envelope/"
	nsXLink = "http://www.w3.org/1999/xlink"
	nsEbXML = "http://www.oasis-open.org/committees/ebxml-msg/schema/msg-header-2_0.xsd"

	cpaID          = "yoursandmycpa"
	serviceRouting = "Routing"
	actionInvoice  = "ProcessInvoice"
	schemaLocation = "http://www.finvoice.info/finvoice.xsd"
)

// Envelope renders the ebXML SOAP transport frame that precedes the
// Finvoice body in a transmitted payload. It carries no XML declaration.
func (c *Codec) Envelope(doc *model.Document) ([]byte, error) {
	x := etree.NewDocument()

	env := x.CreateElement("SOAP-ENV:Envelope")
	env.CreateAttr("xmlns:SOAP-ENV", nsSOAP)
	env.CreateAttr("xmlns:xlink", nsXLink)
	env.CreateAttr("xmlns:eb", nsEbXML)

	header := env.CreateElement("SOAP-ENV:Header")
	mh := header.CreateElement("eb:MessageHeader")
	mh.CreateAttr("xmlns:eb", nsEbXML)
	mh.CreateAttr("SOAP-ENV:mustUnderstand", "1")

	party(mh, "eb:From", doc.Seller.Routing.OVT, "Sender")
	party(mh, "eb:From", doc.Seller.Routing.Intermediator, "Intermediator")
	party(mh, "eb:To", doc.Buyer.Routing.OVT, "Receiver")
	party(mh, "eb:To", doc.Buyer.Routing.Intermediator, "Intermediator")

	leaf(mh, "eb:CPAId", cpaID)
	leaf(mh, "eb:ConversationId", doc.MessageID)
	leaf(mh, "eb:Service", serviceRouting)
	leaf(mh, "eb:Action", actionInvoice)

	md := mh.CreateElement("eb:MessageData")
	leaf(md, "eb:MessageId", MessageIdentifier(doc))
	leaf(md, "eb:Timestamp", c.clock.Now().Format(timestampLayout))
	leaf(md, "eb:RefToMessageId", "")

	body := env.CreateElement("SOAP-ENV:Body")
	manifest := body.CreateElement("eb:Manifest")
	manifest.CreateAttr("eb:id", "Manifest")
	manifest.CreateAttr("eb:version", "2.0")

	ref := manifest.CreateElement("eb:Reference")
	ref.CreateAttr("eb:id", "Finvoice")
	ref.CreateAttr("xlink:href", doc.MessageID)
	schema := ref.CreateElement("eb:Schema")
	schema.CreateAttr("eb:location", schemaLocation)
	schema.CreateAttr("eb:version", "2.0")

	return serialize(x)
}

// Payload is the transmitted invoice file: envelope followed by the Finvoice body
func (c *Codec) Payload(doc *model.Document) ([]byte, error) {
	env, err := c.Envelope(doc)
	if err != nil {
		return nil, err
	}
	body, err := c.Encode(doc)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(env)+len(body))
	out = append(out, env...)
	return append(out, body...), nil
}

func party(parent *etree.Element, tag, id, role string) {
	el := parent.CreateElement(tag)
	leaf(el, "eb:PartyId", id)
	leaf(el, "eb:Role", role)
}
