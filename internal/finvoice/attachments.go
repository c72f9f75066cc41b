package finvoice

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/rezonia/finvoice-bridge/internal/model"
)

// AttachmentMessage renders the FinvoiceAttachments companion message.
// It returns nil when doc has no attachments.
func (c *Codec) AttachmentMessage(doc *model.Document) ([]byte, error) {
	if len(doc.Attachments) == 0 {
		return nil, nil
	}

	x := etree.NewDocument()
	x.CreateProcInst("xml", `version="1.0" encoding="`+Charset+`"`)

	root := x.CreateElement("FinvoiceAttachments")
	root.CreateAttr("xmlns:xsi", nsXSI)
	root.CreateAttr("xsi:noNamespaceSchemaLocation", "FinvoiceAttachments.xsd")
	root.CreateAttr("Version", "1.0")

	messageID := AttachmentMessageIdentifier(doc)
	encodeTransmission(root, doc, messageID, MessageIdentifier(doc), c.clock.Now())

	for i, att := range doc.Attachments {
		sum, err := att.SHA1()
		if err != nil {
			return nil, fmt.Errorf("attachment %d (%s): %w", i, att.Name, err)
		}
		ad := root.CreateElement("AttachmentDetails")
		leaf(ad, "AttachmentIdentifier", messageID+"::"+sum)
		leaf(ad, "AttachmentContent", att.Content)
		leaf(ad, "AttachmentName", att.Name)
		leaf(ad, "AttachmentMimeType", att.MimeType)
		leaf(ad, "AttachmentSecureHash", sum)
	}

	return serialize(x)
}
