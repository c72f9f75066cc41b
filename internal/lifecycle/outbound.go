package lifecycle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rezonia/finvoice-bridge/internal/bundle"
	"github.com/rezonia/finvoice-bridge/internal/finvoice"
	"github.com/rezonia/finvoice-bridge/internal/journal"
	"github.com/rezonia/finvoice-bridge/internal/logger"
	"github.com/rezonia/finvoice-bridge/internal/model"
	"github.com/rezonia/finvoice-bridge/internal/reference"
)

// Run identifies the batch pass in journal entries
type Run struct {
	Profile string
	ID      string
}

// Option configures a batch pass
type Option func(*options)

type options struct {
	codec   *finvoice.Codec
	refs    *reference.Generator
	journal journal.Recorder
	run     Run
	log     zerolog.Logger
	images  ImageValidator
}

// WithCodec sets the Finvoice codec
func WithCodec(c *finvoice.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithReferences sets the generator used for message ids
func WithReferences(g *reference.Generator) Option {
	return func(o *options) {
		o.refs = g
	}
}

// WithJournal records every transition to r
func WithJournal(r journal.Recorder) Option {
	return func(o *options) {
		o.journal = r
	}
}

// WithRun tags journal entries with the profile and run id
func WithRun(profile, runID string) Option {
	return func(o *options) {
		o.run = Run{Profile: profile, ID: runID}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithImageValidator checks rendered invoice images before they are attached
func WithImageValidator(v ImageValidator) Option {
	return func(o *options) {
		o.images = v
	}
}

func newOptions(opts []Option) options {
	o := options{
		codec:   finvoice.NewCodec(),
		refs:    reference.NewGenerator(),
		journal: journal.Discard{},
		log:     logger.WithComponent("lifecycle"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *options) record(ctx context.Context, e journal.Entry) {
	e.Profile = o.run.Profile
	e.RunID = o.run.ID
	if err := o.journal.Record(ctx, e); err != nil {
		o.log.Warn().Err(err).Str("record", e.Record).Msg("journal write failed")
	}
}

// Outbound moves ERP documents in the sending state towards senddone or senderror
type Outbound struct {
	ledger      SalesLedger
	transmitter Transmitter
	options
}

// NewOutbound creates the outbound pass
func NewOutbound(ledger SalesLedger, transmitter Transmitter, opts ...Option) *Outbound {
	return &Outbound{
		ledger:      ledger,
		transmitter: transmitter,
		options:     newOptions(opts),
	}
}

// Process handles every pending outbound record. Per-record failures are
// written back to the ERP and counted; only listing the records can fail the pass.
func (o *Outbound) Process(ctx context.Context) (Report, error) {
	var report Report

	records, err := o.ledger.PendingOutbound(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending outbound: %w", err)
	}
	o.log.Info().Int("count", len(records)).Msg("processing outbound documents")

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.add(o.processRecord(ctx, rec))
	}

	o.log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("outbound pass finished")
	return report, nil
}

func (o *Outbound) processRecord(ctx context.Context, rec OutboundRecord) Outcome {
	label := rec.Number
	if label == "" {
		label = strconv.Itoa(rec.ID)
	}

	if rec.Status != model.StatusSending {
		o.log.Debug().Str("invoice", label).Stringer("status", rec.Status).Msg("skipping document not in sending state")
		return Outcome{Record: label, Kind: KindSkipped}
	}
	if rec.ExternalID != "" {
		return o.poll(ctx, rec, label)
	}
	return o.send(ctx, rec, label)
}

// poll checks delivery of an already uploaded document; it never uploads again
func (o *Outbound) poll(ctx context.Context, rec OutboundRecord, label string) Outcome {
	events, err := o.transmitter.PollStatus(ctx, rec.ExternalID)
	if err != nil {
		o.log.Warn().Err(err).Str("invoice", label).Str("external_id", rec.ExternalID).Msg("status poll failed")
		return Outcome{Record: label, Kind: KindFailed, Error: err.Error()}
	}

	event, message := deliveryEvent(events)
	switch event {
	case model.EventDeliveryConfirmed:
		if err := o.transition(ctx, rec, label, event, ""); err != nil {
			return Outcome{Record: label, Kind: KindFailed, Error: err.Error()}
		}
		o.log.Info().Str("invoice", label).Msg("delivery confirmed")
		return Outcome{Record: label, Kind: KindConfirmed}
	case model.EventDeliveryFailed:
		if err := o.transition(ctx, rec, label, event, message); err != nil {
			return Outcome{Record: label, Kind: KindFailed, Error: err.Error()}
		}
		o.log.Error().Str("invoice", label).Str("reason", message).Msg("delivery failed")
		return Outcome{Record: label, Kind: KindFailed, Error: message}
	default:
		o.log.Debug().Str("invoice", label).Msg("delivery still pending")
		return Outcome{Record: label, Kind: KindPending}
	}
}

// deliveryEvent reduces a status feed to one event. An error beats a confirmation.
func deliveryEvent(events []StatusEvent) (model.Event, string) {
	confirmed := false
	for _, ev := range events {
		switch {
		case ev.Type == EventTypeError && ev.Message != nil:
			return model.EventDeliveryFailed, *ev.Message
		case ev.Type == EventTypeSent && ev.Message == nil:
			confirmed = true
		}
	}
	if confirmed {
		return model.EventDeliveryConfirmed, ""
	}
	return model.EventPending, ""
}

func (o *Outbound) send(ctx context.Context, rec OutboundRecord, label string) Outcome {
	buyer, err := o.ledger.BuyerRouting(ctx, rec)
	if err != nil {
		return o.fail(ctx, rec, label, model.EventUploadFailed, err.Error())
	}
	if !buyer.Routing.Complete() {
		return o.fail(ctx, rec, label, model.EventRoutingMissing, routingMessage(buyer.Name, label))
	}

	doc, err := o.ledger.MapToModel(ctx, rec, buyer)
	if err != nil {
		return o.fail(ctx, rec, label, model.EventUploadFailed, err.Error())
	}
	if !doc.Seller.Routing.Complete() {
		return o.fail(ctx, rec, label, model.EventRoutingMissing, routingMessage(doc.Seller.Name, label))
	}

	for _, finding := range model.Validate(doc) {
		o.log.Warn().Str("invoice", label).Str("field", finding.Field).Msg(finding.Message)
	}

	if doc.MessageID == "" {
		if doc.MessageID, err = o.refs.MessageID(); err != nil {
			return o.fail(ctx, rec, label, model.EventUploadFailed, err.Error())
		}
	}

	payload, err := o.codec.Payload(doc)
	if err != nil {
		return o.fail(ctx, rec, label, model.EventUploadFailed, err.Error())
	}
	archive, err := bundle.Build(payload, doc.Attachments)
	if err != nil {
		return o.fail(ctx, rec, label, model.EventUploadFailed, err.Error())
	}

	id, err := o.transmitter.Upload(ctx, bundle.ArchiveName, bundle.ArchiveType, archive)
	if err == nil && (id == "" || id == "-1") {
		err = model.NewUploadError("network returned no invoice id", nil)
	}
	if err != nil {
		o.log.Error().Err(err).Str("invoice", label).Msg("upload failed")
		return o.fail(ctx, rec, label, model.EventUploadFailed, UploadFailedMessage)
	}

	if err := doc.SetExternalID(id); err != nil {
		return Outcome{Record: label, Kind: KindFailed, Error: err.Error()}
	}
	if err := o.ledger.UpdateField(ctx, rec.ID, FieldExternalID, id); err != nil {
		o.log.Error().Err(err).Str("invoice", label).Str("external_id", id).Msg("could not store network id")
		return Outcome{Record: label, Kind: KindFailed, Error: err.Error()}
	}
	if err := o.transition(ctx, rec, label, model.EventUploaded, ""); err != nil {
		return Outcome{Record: label, Kind: KindFailed, Error: err.Error()}
	}

	o.log.Info().Str("invoice", label).Str("external_id", id).Msg("invoice uploaded")
	return Outcome{Record: label, Kind: KindUploaded}
}

func routingMessage(partner, fallback string) string {
	if partner == "" {
		partner = fallback
	}
	return (&model.RoutingIncomplete{Partner: partner}).Error()
}

func (o *Outbound) fail(ctx context.Context, rec OutboundRecord, label string, event model.Event, message string) Outcome {
	o.log.Error().Str("invoice", label).Stringer("event", event).Msg(message)
	if err := o.transition(ctx, rec, label, event, message); err != nil {
		return Outcome{Record: label, Kind: KindFailed, Error: fmt.Sprintf("%s: %v", message, err)}
	}
	return Outcome{Record: label, Kind: KindFailed, Error: message}
}

// transition applies event to the record and writes the result back to the ERP
func (o *Outbound) transition(ctx context.Context, rec OutboundRecord, label string, event model.Event, message string) error {
	next, err := model.Transition(rec.Status, event)
	if err != nil {
		return err
	}

	if message != "" {
		if err := o.ledger.UpdateField(ctx, rec.ID, FieldError, message); err != nil {
			return fmt.Errorf("write error message: %w", err)
		}
	}
	if next != rec.Status {
		if err := o.ledger.UpdateField(ctx, rec.ID, FieldStatus, next.String()); err != nil {
			return fmt.Errorf("write status: %w", err)
		}
	}

	o.record(ctx, journal.Entry{
		Direction: journal.Outbound,
		Record:    label,
		From:      rec.Status.String(),
		To:        next.String(),
		Event:     event.String(),
		Message:   message,
	})
	return nil
}
