package lifecycle

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rezonia/finvoice-bridge/internal/finvoice"
	"github.com/rezonia/finvoice-bridge/internal/journal"
	"github.com/rezonia/finvoice-bridge/internal/model"
)

// ImageValidator rejects rendered invoice images that are not usable
type ImageValidator interface {
	Validate(data []byte) error
}

// Inbound imports documents received from the network into the ERP
type Inbound struct {
	inbox  Inbox
	ledger PurchaseLedger
	options
}

// NewInbound creates the inbound pass
func NewInbound(inbox Inbox, ledger PurchaseLedger, opts ...Option) *Inbound {
	return &Inbound{
		inbox:   inbox,
		ledger:  ledger,
		options: newOptions(opts),
	}
}

// Process imports every document received since the given time.
// A document already present in the ERP is never created twice.
func (in *Inbound) Process(ctx context.Context, since time.Time) (Report, error) {
	var report Report

	refs, err := in.inbox.ListReceived(ctx, since)
	if err != nil {
		return report, fmt.Errorf("list received: %w", err)
	}
	in.log.Info().Int("count", len(refs)).Time("since", since).Msg("processing inbound documents")

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.add(in.importOne(ctx, ref))
	}

	in.log.Info().
		Int("created", report.Count(KindCreated)).
		Int("duplicates", report.Count(KindDuplicateSkip)).
		Int("failed", report.Failed).
		Msg("inbound pass finished")
	return report, nil
}

func (in *Inbound) importOne(ctx context.Context, ref ReceivedRef) Outcome {
	exists, err := in.ledger.RecordExists(ctx, ref.ID)
	if err != nil {
		// an unknown answer must not lead to a second record
		in.log.Warn().Err(err).Str("external_id", ref.ID).Msg("existence check failed, skipping")
		return Outcome{Record: ref.ID, Kind: KindSkipped, Error: err.Error()}
	}
	if exists {
		in.log.Debug().Str("external_id", ref.ID).Msg("already imported")
		return Outcome{Record: ref.ID, Kind: KindDuplicateSkip}
	}

	doc, err := in.fetch(ctx, ref)
	if err != nil {
		in.log.Error().Err(err).Str("external_id", ref.ID).Msg("could not read received invoice")
		return Outcome{Record: ref.ID, Kind: KindFailed, Error: err.Error()}
	}

	recordID, err := in.ledger.CreateInbound(ctx, doc)
	if err != nil {
		in.log.Error().Err(err).Str("external_id", ref.ID).Msg("could not create vendor bill")
		return Outcome{Record: ref.ID, Kind: KindFailed, Error: err.Error()}
	}

	in.record(ctx, journal.Entry{
		Direction: journal.Inbound,
		Record:    ref.ID,
		Event:     "created",
		Message:   fmt.Sprintf("record %d", recordID),
	})
	in.log.Info().Str("external_id", ref.ID).Int("record", recordID).Str("invoice", doc.InvoiceNumber).Msg("vendor bill created")
	return Outcome{Record: ref.ID, Kind: KindCreated}
}

func (in *Inbound) fetch(ctx context.Context, ref ReceivedRef) (*model.Document, error) {
	data, err := in.inbox.FetchXML(ctx, ref)
	if err != nil {
		return nil, err
	}
	if finvoice.IsLatin(data) {
		if data, err = finvoice.ToUTF8(data); err != nil {
			return nil, model.NewDecodeError("charset conversion", err)
		}
	}

	doc, err := in.codec.Decode(data)
	if err != nil {
		return nil, err
	}

	in.attachFiles(ctx, ref, doc)
	in.attachImage(ctx, ref, doc)

	if err := doc.SetExternalID(ref.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (in *Inbound) attachFiles(ctx context.Context, ref ReceivedRef, doc *model.Document) {
	files, err := in.inbox.FetchAttachmentList(ctx, ref)
	if err != nil {
		in.log.Warn().Err(err).Str("external_id", ref.ID).Msg("attachment list unavailable")
		return
	}
	for _, f := range files {
		content, err := in.inbox.FetchAttachment(ctx, f.Href)
		if err != nil || len(content) == 0 {
			in.log.Warn().Err(err).Str("external_id", ref.ID).Str("file", f.Name).Msg("attachment skipped")
			continue
		}
		doc.AddAttachment(model.Attachment{
			Name:     f.Name,
			MimeType: f.MimeType,
			Content:  base64.StdEncoding.EncodeToString(content),
		})
	}
}

func (in *Inbound) attachImage(ctx context.Context, ref ReceivedRef, doc *model.Document) {
	img, err := in.inbox.FetchRenderedImage(ctx, ref)
	if err != nil || len(img) == 0 {
		in.log.Debug().Err(err).Str("external_id", ref.ID).Msg("no rendered image")
		return
	}
	if in.images != nil {
		if err := in.images.Validate(img); err != nil {
			in.log.Warn().Err(err).Str("external_id", ref.ID).Msg("rendered image rejected")
			return
		}
	}
	doc.AddAttachment(model.Attachment{
		Name:     "invoice_" + ref.ID + ".pdf",
		MimeType: "application/pdf",
		Content:  base64.StdEncoding.EncodeToString(img),
	})
}
