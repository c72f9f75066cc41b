package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/finvoice-bridge/internal/model"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected model.Status
	}{
		{"draft", model.StatusDraft},
		{"sending", model.StatusSending},
		{"senddone", model.StatusSendDone},
		{"senderror", model.StatusSendError},
		{"missinginfo", model.StatusMissingInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := model.ParseStatus(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
			assert.Equal(t, tt.input, s.String())
		})
	}

	_, err := model.ParseStatus("cancelled")
	require.Error(t, err)
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     model.Status
		event    model.Event
		expected model.Status
	}{
		{"submit", model.StatusDraft, model.EventSubmit, model.StatusSending},
		{"routing missing", model.StatusSending, model.EventRoutingMissing, model.StatusSendError},
		{"upload failed", model.StatusSending, model.EventUploadFailed, model.StatusSendError},
		{"uploaded stays sending", model.StatusSending, model.EventUploaded, model.StatusSending},
		{"pending stays sending", model.StatusSending, model.EventPending, model.StatusSending},
		{"confirmed", model.StatusSending, model.EventDeliveryConfirmed, model.StatusSendDone},
		{"delivery failed", model.StatusSending, model.EventDeliveryFailed, model.StatusSendError},
		{"reset error", model.StatusSendError, model.EventReset, model.StatusDraft},
		{"reset missing info", model.StatusMissingInfo, model.EventReset, model.StatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := model.Transition(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestTransition_Invalid(t *testing.T) {
	tests := []struct {
		from  model.Status
		event model.Event
	}{
		{model.StatusDraft, model.EventUploaded},
		{model.StatusSendDone, model.EventDeliveryFailed},
		{model.StatusSendError, model.EventDeliveryConfirmed},
		{model.StatusSending, model.EventReset},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			next, err := model.Transition(tt.from, tt.event)
			var te *model.TransitionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.from, next)
			assert.Equal(t, tt.event, te.Event)
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, model.StatusDraft.Terminal())
	assert.False(t, model.StatusSending.Terminal())
	assert.True(t, model.StatusSendDone.Terminal())
	assert.True(t, model.StatusSendError.Terminal())
	assert.True(t, model.StatusMissingInfo.Terminal())
}
