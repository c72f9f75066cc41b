package finvoicelib

import (
	"github.com/rezonia/finvoice-bridge/internal/finvoice"
	"github.com/rezonia/finvoice-bridge/internal/model"
	"github.com/rezonia/finvoice-bridge/internal/reference"
)

// Charset is the encoding of encoded messages
const Charset = finvoice.Charset

var (
	codec = finvoice.NewCodec()
	refs  = reference.NewGenerator()
)

// Decode parses a Finvoice message. ISO-8859-15 input is converted.
func Decode(data []byte) (*Document, error) {
	return codec.Decode(data)
}

// Encode renders doc as a Finvoice 3.0 message in ISO-8859-15
func Encode(doc *Document) ([]byte, error) {
	return codec.Encode(doc)
}

// EncodePayload renders the transmitted file: SOAP envelope followed by the message
func EncodePayload(doc *Document) ([]byte, error) {
	return codec.Payload(doc)
}

// EncodeAttachments renders the FinvoiceAttachments message, empty without attachments
func EncodeAttachments(doc *Document) ([]byte, error) {
	return codec.AttachmentMessage(doc)
}

// ToUTF8 converts an encoded message to UTF-8 and rewrites its declaration
func ToUTF8(data []byte) ([]byte, error) {
	return finvoice.ToUTF8(data)
}

// Validate returns advisory consistency findings for doc
func Validate(doc *Document) []*ValidationError {
	return model.Validate(doc)
}

// GenerateReference builds a payment reference from the trailing digits of seed
func GenerateReference(seed string) (string, error) {
	return refs.Generate(seed)
}

// ValidReference reports whether ref carries a correct check digit
func ValidReference(ref string) bool {
	return reference.Valid(ref)
}
