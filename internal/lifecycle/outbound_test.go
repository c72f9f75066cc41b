package lifecycle_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/finvoice-bridge/internal/finvoice"
	"github.com/rezonia/finvoice-bridge/internal/journal"
	"github.com/rezonia/finvoice-bridge/internal/lifecycle"
	"github.com/rezonia/finvoice-bridge/internal/model"
)

var ctx = context.Background()

func strPtr(s string) *string { return &s }

func routedBuyer(name string) model.Party {
	return model.Party{
		Name:    name,
		Routing: model.Routing{OVT: "003787654321", Intermediator: "DABAFIHH"},
	}
}

func mappedDocument(number string) *model.Document {
	return &model.Document{
		MessageID:     "123456789",
		InvoiceNumber: number,
		InvoiceDate:   "20250801",
		Seller: model.Party{
			Name:    "Myyjä Oy",
			TaxCode: "FI12345678",
			Routing: model.Routing{OVT: "003712345678", Intermediator: "HELSFIHH"},
		},
		Buyer: routedBuyer("Ostaja Oy"),
		Rows:  []model.Row{{ArticleName: "Konsultointi", InvoicedQuantity: "1"}},
	}
}

func byID(id int) interface{} {
	return mock.MatchedBy(func(r lifecycle.OutboundRecord) bool { return r.ID == id })
}

func newOutbound(l lifecycle.SalesLedger, tx lifecycle.Transmitter, opts ...lifecycle.Option) *lifecycle.Outbound {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 8, 14, 8, 0, 0, 0, time.UTC))
	base := []lifecycle.Option{
		lifecycle.WithLogger(zerolog.Nop()),
		lifecycle.WithCodec(finvoice.NewCodec(finvoice.WithClock(clock))),
	}
	return lifecycle.NewOutbound(l, tx, append(base, opts...)...)
}

func TestOutbound_UploadsNewDocument(t *testing.T) {
	ledger := new(salesLedger)
	tx := new(transmitter)
	rec := lifecycle.OutboundRecord{ID: 1, Number: "1001", Status: model.StatusSending}

	ledger.On("PendingOutbound", mock.Anything).Return([]lifecycle.OutboundRecord{rec}, nil)
	ledger.On("BuyerRouting", mock.Anything, rec).Return(routedBuyer("Ostaja Oy"), nil)
	ledger.On("MapToModel", mock.Anything, rec, mock.Anything).Return(mappedDocument("1001"), nil)
	ledger.On("UpdateField", mock.Anything, 1, lifecycle.FieldExternalID, "net-1").Return(nil)

	var archive []byte
	tx.On("Upload", mock.Anything, "finvoice.zip", "application/zip", mock.Anything).
		Run(func(args mock.Arguments) { archive = args.Get(3).([]byte) }).
		Return("net-1", nil)

	mem := journal.NewMemory()
	report, err := newOutbound(ledger, tx, lifecycle.WithJournal(mem), lifecycle.WithRun("acme", "run-1")).Process(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, lifecycle.KindUploaded, report.Outcomes[0].Kind)
	ledger.AssertExpectations(t)
	tx.AssertExpectations(t)
	ledger.AssertNotCalled(t, "UpdateField", mock.Anything, 1, lifecycle.FieldStatus, mock.Anything)

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)
	assert.Equal(t, "invoice.xml", zr.File[0].Name)

	entries := mem.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "uploaded", entries[0].Event)
	assert.Equal(t, "acme", entries[0].Profile)
	assert.Equal(t, "run-1", entries[0].RunID)
}

func TestOutbound_PollsInsteadOfUploadingTwice(t *testing.T) {
	ledger := new(salesLedger)
	tx := new(transmitter)
	rec := lifecycle.OutboundRecord{ID: 7, Number: "1007", Status: model.StatusSending}

	var stored string
	ledger.On("PendingOutbound", mock.Anything).Return([]lifecycle.OutboundRecord{rec}, nil).Once()
	ledger.On("BuyerRouting", mock.Anything, rec).Return(routedBuyer("Ostaja Oy"), nil).Once()
	ledger.On("MapToModel", mock.Anything, rec, mock.Anything).Return(mappedDocument("1007"), nil).Once()
	ledger.On("UpdateField", mock.Anything, 7, lifecycle.FieldExternalID, "net-7").
		Run(func(args mock.Arguments) { stored = args.String(3) }).
		Return(nil).Once()
	tx.On("Upload", mock.Anything, "finvoice.zip", "application/zip", mock.Anything).Return("net-7", nil).Once()

	out := newOutbound(ledger, tx)
	report, err := out.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.KindUploaded, report.Outcomes[0].Kind)
	require.Equal(t, "net-7", stored)

	// the next run re-reads the record carrying the id written above
	reread := rec
	reread.ExternalID = stored
	ledger.On("PendingOutbound", mock.Anything).Return([]lifecycle.OutboundRecord{reread}, nil).Once()
	tx.On("PollStatus", mock.Anything, "net-7").Return([]lifecycle.StatusEvent{{Type: "RECEIVED", Message: strPtr("ok")}}, nil).Once()

	report, err = out.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.KindPending, report.Outcomes[0].Kind)
	assert.Zero(t, report.Succeeded)

	tx.AssertNumberOfCalls(t, "Upload", 1)
	tx.AssertNumberOfCalls(t, "PollStatus", 1)
	ledger.AssertNumberOfCalls(t, "MapToModel", 1)
	ledger.AssertNumberOfCalls(t, "UpdateField", 1)
	ledger.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestOutbound_PollOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		events   []lifecycle.StatusEvent
		kind     lifecycle.Kind
		status   string
		errorMsg string
	}{
		{
			name:   "sent with null message",
			events: []lifecycle.StatusEvent{{Type: "SENT"}},
			kind:   lifecycle.KindConfirmed,
			status: "senddone",
		},
		{
			name:     "error with message",
			events:   []lifecycle.StatusEvent{{Type: "ERROR", Message: strPtr("Receiver not found")}},
			kind:     lifecycle.KindFailed,
			status:   "senderror",
			errorMsg: "Receiver not found",
		},
		{
			name: "error wins over sent",
			events: []lifecycle.StatusEvent{
				{Type: "SENT"},
				{Type: "ERROR", Message: strPtr("Rejected")},
			},
			kind:     lifecycle.KindFailed,
			status:   "senderror",
			errorMsg: "Rejected",
		},
		{
			name:   "sent with message is not a confirmation",
			events: []lifecycle.StatusEvent{{Type: "SENT", Message: strPtr("queued")}},
			kind:   lifecycle.KindPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := new(salesLedger)
			tx := new(transmitter)
			rec := lifecycle.OutboundRecord{ID: 3, Number: "1003", Status: model.StatusSending, ExternalID: "net-3"}

			ledger.On("PendingOutbound", mock.Anything).Return([]lifecycle.OutboundRecord{rec}, nil)
			tx.On("PollStatus", mock.Anything, "net-3").Return(tt.events, nil)
			if tt.errorMsg != "" {
				ledger.On("UpdateField", mock.Anything, 3, lifecycle.FieldError, tt.errorMsg).Return(nil).Once()
			}
			if tt.status != "" {
				ledger.On("UpdateField", mock.Anything, 3, lifecycle.FieldStatus, tt.status).Return(nil).Once()
			}

			report, err := newOutbound(ledger, tx).Process(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, report.Outcomes[0].Kind)
			ledger.AssertExpectations(t)
			if tt.status == "" {
				ledger.AssertNotCalled(t, "UpdateField", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOutbound_PartialBatch(t *testing.T) {
	ledger := new(salesLedger)
	tx := new(transmitter)
	recs := []lifecycle.OutboundRecord{
		{ID: 1, Number: "1001", Status: model.StatusSending},
		{ID: 2, Number: "1002", Status: model.StatusSending},
		{ID: 3, Number: "1003", Status: model.StatusSending},
	}

	ledger.On("PendingOutbound", mock.Anything).Return(recs, nil)
	ledger.On("BuyerRouting", mock.Anything, byID(1)).Return(routedBuyer("Ostaja 1"), nil)
	ledger.On("BuyerRouting", mock.Anything, byID(2)).Return(model.Party{Name: "Ostaja 2"}, nil)
	ledger.On("BuyerRouting", mock.Anything, byID(3)).Return(routedBuyer("Ostaja 3"), nil)
	ledger.On("MapToModel", mock.Anything, byID(1), mock.Anything).Return(mappedDocument("1001"), nil)
	ledger.On("MapToModel", mock.Anything, byID(3), mock.Anything).Return(mappedDocument("1003"), nil)

	ledger.On("UpdateField", mock.Anything, 2, lifecycle.FieldError, "Ostaja 2 is missing OVT/Intermediator").Return(nil).Once()
	ledger.On("UpdateField", mock.Anything, 2, lifecycle.FieldStatus, "senderror").Return(nil).Once()
	ledger.On("UpdateField", mock.Anything, 1, lifecycle.FieldExternalID, "net-1").Return(nil).Once()
	ledger.On("UpdateField", mock.Anything, 3, lifecycle.FieldExternalID, "net-3").Return(nil).Once()

	tx.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("net-1", nil).Once()
	tx.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("net-3", nil).Once()

	report, err := newOutbound(ledger, tx).Process(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, lifecycle.KindUploaded, report.Outcomes[0].Kind)
	assert.Equal(t, lifecycle.KindFailed, report.Outcomes[1].Kind)
	assert.Equal(t, "Ostaja 2 is missing OVT/Intermediator", report.Outcomes[1].Error)
	assert.Equal(t, lifecycle.KindUploaded, report.Outcomes[2].Kind)

	ledger.AssertExpectations(t)
	ledger.AssertNotCalled(t, "MapToModel", mock.Anything, byID(2), mock.Anything)
	tx.AssertNumberOfCalls(t, "Upload", 2)
}

func TestOutbound_UploadFailures(t *testing.T) {
	tests := []struct {
		name string
		id   string
		err  error
	}{
		{"sentinel id", "-1", nil},
		{"empty id", "", nil},
		{"transport error", "", errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := new(salesLedger)
			tx := new(transmitter)
			rec := lifecycle.OutboundRecord{ID: 4, Number: "1004", Status: model.StatusSending}

			ledger.On("PendingOutbound", mock.Anything).Return([]lifecycle.OutboundRecord{rec}, nil)
			ledger.On("BuyerRouting", mock.Anything, rec).Return(routedBuyer("Ostaja Oy"), nil)
			ledger.On("MapToModel", mock.Anything, rec, mock.Anything).Return(mappedDocument("1004"), nil)
			ledger.On("UpdateField", mock.Anything, 4, lifecycle.FieldError, lifecycle.UploadFailedMessage).Return(nil).Once()
			ledger.On("UpdateField", mock.Anything, 4, lifecycle.FieldStatus, "senderror").Return(nil).Once()
			tx.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tt.id, tt.err)

			report, err := newOutbound(ledger, tx).Process(ctx)
			require.NoError(t, err)

			assert.Zero(t, report.Succeeded)
			assert.Equal(t, lifecycle.UploadFailedMessage, report.Outcomes[0].Error)
			ledger.AssertExpectations(t)
			ledger.AssertNotCalled(t, "UpdateField", mock.Anything, 4, lifecycle.FieldExternalID, mock.Anything)
		})
	}
}

func TestOutbound_MissingSellerRouting(t *testing.T) {
	ledger := new(salesLedger)
	tx := new(transmitter)
	rec := lifecycle.OutboundRecord{ID: 5, Number: "1005", Status: model.StatusSending}

	doc := mappedDocument("1005")
	doc.Seller.Routing = model.Routing{}

	ledger.On("PendingOutbound", mock.Anything).Return([]lifecycle.OutboundRecord{rec}, nil)
	ledger.On("BuyerRouting", mock.Anything, rec).Return(routedBuyer("Ostaja Oy"), nil)
	ledger.On("MapToModel", mock.Anything, rec, mock.Anything).Return(doc, nil)
	ledger.On("UpdateField", mock.Anything, 5, lifecycle.FieldError, "Myyjä Oy is missing OVT/Intermediator").Return(nil).Once()
	ledger.On("UpdateField", mock.Anything, 5, lifecycle.FieldStatus, "senderror").Return(nil).Once()

	report, err := newOutbound(ledger, tx).Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	ledger.AssertExpectations(t)
	tx.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOutbound_SkipsOtherStates(t *testing.T) {
	ledger := new(salesLedger)
	tx := new(transmitter)
	recs := []lifecycle.OutboundRecord{
		{ID: 1, Status: model.StatusDraft},
		{ID: 2, Status: model.StatusSendDone, ExternalID: "net-2"},
	}
	ledger.On("PendingOutbound", mock.Anything).Return(recs, nil)

	report, err := newOutbound(ledger, tx).Process(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Count(lifecycle.KindSkipped))
	assert.Equal(t, "1", report.Outcomes[0].Record)
	tx.AssertNotCalled(t, "PollStatus", mock.Anything, mock.Anything)
}

func TestOutbound_ListingFails(t *testing.T) {
	ledger := new(salesLedger)
	ledger.On("PendingOutbound", mock.Anything).Return(nil, errors.New("session expired"))

	_, err := newOutbound(ledger, new(transmitter)).Process(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
}
