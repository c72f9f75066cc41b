// Package lifecycle runs the outbound and inbound batch passes that move
// documents between the ERP and the e-invoicing network.
package lifecycle

import (
	"context"
	"time"

	"github.com/rezonia/finvoice-bridge/internal/model"
)

// Field names a persisted field on the ERP record
type Field string

const (
	FieldStatus           Field = "status"
	FieldError            Field = "error"
	FieldExternalID       Field = "external_id"
	FieldPaymentReference Field = "payment_reference"
)

// UploadFailedMessage is written when the network does not accept an upload
const UploadFailedMessage = "Failed to upload invoice"

// OutboundRecord is an ERP document waiting for transmission
type OutboundRecord struct {
	ID         int
	Number     string
	Status     model.Status
	ExternalID string
	PartnerID  int
	Values     map[string]any
}

// StatusEvent is one entry of the network's delivery feed.
// Message is nil when the network sent null.
type StatusEvent struct {
	Type    string
	Message *string
}

const (
	EventTypeSent  = "SENT"
	EventTypeError = "ERROR"
)

// ReceivedRef identifies a document received from the network
type ReceivedRef struct {
	ID     string
	Number string
	Sender string
}

// AttachmentRef describes a file attached to a received document
type AttachmentRef struct {
	ID       string
	Name     string
	MimeType string
	Href     string
}

// SalesLedger is the ERP side of the outbound direction
type SalesLedger interface {
	PendingOutbound(ctx context.Context) ([]OutboundRecord, error)
	BuyerRouting(ctx context.Context, rec OutboundRecord) (model.Party, error)
	MapToModel(ctx context.Context, rec OutboundRecord, buyer model.Party) (*model.Document, error)
	UpdateField(ctx context.Context, id int, field Field, value string) error
}

// PurchaseLedger is the ERP side of the inbound direction
type PurchaseLedger interface {
	RecordExists(ctx context.Context, externalID string) (bool, error)
	CreateInbound(ctx context.Context, doc *model.Document) (int, error)
}

// Transmitter uploads archives and reports their delivery
type Transmitter interface {
	Upload(ctx context.Context, filename, contentType string, archive []byte) (string, error)
	PollStatus(ctx context.Context, id string) ([]StatusEvent, error)
}

// Inbox lists and fetches received documents
type Inbox interface {
	ListReceived(ctx context.Context, since time.Time) ([]ReceivedRef, error)
	FetchXML(ctx context.Context, ref ReceivedRef) ([]byte, error)
	FetchAttachmentList(ctx context.Context, ref ReceivedRef) ([]AttachmentRef, error)
	FetchAttachment(ctx context.Context, href string) ([]byte, error)
	FetchRenderedImage(ctx context.Context, ref ReceivedRef) ([]byte, error)
}

// Kind classifies what happened to one document
type Kind string

const (
	KindUploaded      Kind = "uploaded"
	KindConfirmed     Kind = "confirmed"
	KindPending       Kind = "pending"
	KindFailed        Kind = "failed"
	KindSkipped       Kind = "skipped"
	KindCreated       Kind = "created"
	KindDuplicateSkip Kind = "duplicate_skip"
)

// Outcome is the result for one document
type Outcome struct {
	Record string `json:"record"`
	Kind   Kind   `json:"kind"`
	Error  string `json:"error,omitempty"`
}

// Succeeded reports whether the outcome counts towards the batch success count
func (o Outcome) Succeeded() bool {
	switch o.Kind {
	case KindUploaded, KindConfirmed, KindCreated:
		return true
	}
	return false
}

// Report summarizes one batch pass
type Report struct {
	Outcomes  []Outcome `json:"outcomes"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch {
	case o.Succeeded():
		r.Succeeded++
	case o.Kind == KindFailed:
		r.Failed++
	}
}

// Count returns the number of outcomes of kind k
func (r Report) Count(k Kind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}
