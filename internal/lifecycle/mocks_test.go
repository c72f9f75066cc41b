package lifecycle_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rezonia/finvoice-bridge/internal/lifecycle"
	"github.com/rezonia/finvoice-bridge/internal/model"
)

type salesLedger struct {
	mock.Mock
}

func (m *salesLedger) PendingOutbound(ctx context.Context) ([]lifecycle.OutboundRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]lifecycle.OutboundRecord)
	return recs, args.Error(1)
}

func (m *salesLedger) BuyerRouting(ctx context.Context, rec lifecycle.OutboundRecord) (model.Party, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(model.Party), args.Error(1)
}

func (m *salesLedger) MapToModel(ctx context.Context, rec lifecycle.OutboundRecord, buyer model.Party) (*model.Document, error) {
	args := m.Called(ctx, rec, buyer)
	doc, _ := args.Get(0).(*model.Document)
	return doc, args.Error(1)
}

func (m *salesLedger) UpdateField(ctx context.Context, id int, field lifecycle.Field, value string) error {
	return m.Called(ctx, id, field, value).Error(0)
}

type transmitter struct {
	mock.Mock
}

func (m *transmitter) Upload(ctx context.Context, filename, contentType string, archive []byte) (string, error) {
	args := m.Called(ctx, filename, contentType, archive)
	return args.String(0), args.Error(1)
}

func (m *transmitter) PollStatus(ctx context.Context, id string) ([]lifecycle.StatusEvent, error) {
	args := m.Called(ctx, id)
	events, _ := args.Get(0).([]lifecycle.StatusEvent)
	return events, args.Error(1)
}

type purchaseLedger struct {
	mock.Mock
}

func (m *purchaseLedger) RecordExists(ctx context.Context, externalID string) (bool, error) {
	args := m.Called(ctx, externalID)
	return args.Bool(0), args.Error(1)
}

func (m *purchaseLedger) CreateInbound(ctx context.Context, doc *model.Document) (int, error) {
	args := m.Called(ctx, doc)
	return args.Int(0), args.Error(1)
}

type inbox struct {
	mock.Mock
}

func (m *inbox) ListReceived(ctx context.Context, since time.Time) ([]lifecycle.ReceivedRef, error) {
	args := m.Called(ctx, since)
	refs, _ := args.Get(0).([]lifecycle.ReceivedRef)
	return refs, args.Error(1)
}

func (m *inbox) FetchXML(ctx context.Context, ref lifecycle.ReceivedRef) ([]byte, error) {
	args := m.Called(ctx, ref)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *inbox) FetchAttachmentList(ctx context.Context, ref lifecycle.ReceivedRef) ([]lifecycle.AttachmentRef, error) {
	args := m.Called(ctx, ref)
	files, _ := args.Get(0).([]lifecycle.AttachmentRef)
	return files, args.Error(1)
}

func (m *inbox) FetchAttachment(ctx context.Context, href string) ([]byte, error) {
	args := m.Called(ctx, href)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *inbox) FetchRenderedImage(ctx context.Context, ref lifecycle.ReceivedRef) ([]byte, error) {
	args := m.Called(ctx, ref)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type imageValidator struct {
	mock.Mock
}

func (m *imageValidator) Validate(data []byte) error {
	return m.Called(data).Error(0)
}
