// Package finvoice reads and writes Finvoice 3.0 documents and their
// ebXML transport envelope.
package finvoice

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/rezonia/finvoice-bridge/internal/logger"
	"github.com/rezonia/finvoice-bridge/internal/model"
	"github.com/rezonia/finvoice-bridge/internal/resolver"
)

const (
	messagePrefix    = "M2O0002"
	attachmentPrefix = "ATTM2O0002"
	schemeOVT        = "0037"
	dateFormat       = "CCYYMMDD"
	timestampLayout  = "2006-01-02T15:04:05"
	dayLayout        = "20060102"
	defaultCurrency  = "EUR"
	defaultUnit      = "kpl"
	nsXSI            = "http://www.w3.org/2001/XMLSchema-instance"
)

// Codec converts between documents and XML
type Codec struct {
	clock    clockwork.Clock
	resolver *resolver.Resolver
	log      zerolog.Logger
}

// Option configures the codec
type Option func(*Codec)

// WithClock sets the clock used for timestamps and default dates
func WithClock(clock clockwork.Clock) Option {
	return func(c *Codec) {
		c.clock = clock
	}
}

// WithResolver sets the resolver used in the decode post-pass
func WithResolver(r *resolver.Resolver) Option {
	return func(c *Codec) {
		c.resolver = r
	}
}

// WithLogger sets the logger for resolution gaps
func WithLogger(l zerolog.Logger) Option {
	return func(c *Codec) {
		c.log = l
	}
}

// NewCodec creates a codec using the real clock and the ISO country table
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		clock:    clockwork.NewRealClock(),
		resolver: resolver.Default(),
		log:      logger.WithComponent("finvoice"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode parses Finvoice XML with a default codec
func Decode(data []byte) (*model.Document, error) {
	return NewCodec().Decode(data)
}

// MessageIdentifier is the transmission id written for doc
func MessageIdentifier(doc *model.Document) string {
	return messagePrefix + doc.MessageID
}

// AttachmentMessageIdentifier is the id of the attachment message for doc
func AttachmentMessageIdentifier(doc *model.Document) string {
	return attachmentPrefix + doc.MessageID + "::attachments"
}
