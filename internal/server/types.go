package server

import (
	"github.com/rezonia/finvoice-bridge/internal/journal"
	"github.com/rezonia/finvoice-bridge/internal/model"
)

// DecodeResponse is the response for the decode endpoint
type DecodeResponse struct {
	Document *model.Document `json:"document"`
	Warnings []string        `json:"warnings,omitempty"`
}

// ReferenceResponse is the response for the reference endpoint
type ReferenceResponse struct {
	Seed      string `json:"seed"`
	Reference string `json:"reference"`
}

// JournalResponse lists recent journal entries
type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
