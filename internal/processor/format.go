package processor

import (
	"bytes"
	"errors"
)

// Format represents the kind of a document file
type Format int

const (
	FormatUnknown Format = iota
	FormatFinvoice
	FormatEnvelope
	FormatBundle
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatFinvoice:
		return "finvoice"
	case FormatEnvelope:
		return "envelope"
	case FormatBundle:
		return "bundle"
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// ErrNotFinvoice is returned by FinvoiceBody for content without a Finvoice document
var ErrNotFinvoice = errors.New("no Finvoice document found")

var (
	finvoiceRoot = []byte("<Finvoice")
	envelopeRoot = []byte("Envelope")
	xmlDecl      = []byte("<?xml")
)

// DetectFormat detects the document format from file content
func DetectFormat(data []byte) Format {
	if len(data) >= 4 && string(data[:4]) == "%PDF" {
		return FormatPDF
	}
	// zip local file header
	if len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && data[2] == 0x03 && data[3] == 0x04 {
		return FormatBundle
	}

	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return FormatUnknown
	}

	fin := bytes.Index(trimmed, finvoiceRoot)
	env := bytes.Index(trimmed, envelopeRoot)
	switch {
	case env >= 0 && (fin < 0 || env < fin):
		return FormatEnvelope
	case fin >= 0:
		return FormatFinvoice
	}
	return FormatUnknown
}

// FinvoiceBody returns the Finvoice document of a transmission payload,
// dropping the SOAP envelope in front of it. Plain Finvoice input is returned as is.
func FinvoiceBody(data []byte) ([]byte, error) {
	switch DetectFormat(data) {
	case FormatFinvoice:
		return data, nil
	case FormatEnvelope:
		if i := bytes.Index(data, xmlDecl); i > 0 {
			return data[i:], nil
		}
		if i := bytes.Index(data, finvoiceRoot); i > 0 {
			return data[i:], nil
		}
	}
	return nil, ErrNotFinvoice
}
