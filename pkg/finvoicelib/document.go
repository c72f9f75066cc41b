// Package finvoicelib provides a public API for Finvoice 3.0 documents.
//
// It exposes the document model, the Finvoice codec and Finnish payment
// reference generation used by the Odoo/Maventa bridge.
//
// Example usage:
//
//	doc, err := finvoicelib.Decode(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(doc.Totals.VatIncluded)
package finvoicelib

import "github.com/rezonia/finvoice-bridge/internal/model"

// Re-export core types for public API
type (
	Document   = model.Document
	Totals     = model.Totals
	Party      = model.Party
	Address    = model.Address
	Contact    = model.Contact
	Bank       = model.Bank
	Routing    = model.Routing
	EPI        = model.EPI
	Row        = model.Row
	Attachment = model.Attachment
	Status     = model.Status
)

// Re-export transmission states
const (
	StatusDraft       = model.StatusDraft
	StatusSending     = model.StatusSending
	StatusSendDone    = model.StatusSendDone
	StatusSendError   = model.StatusSendError
	StatusMissingInfo = model.StatusMissingInfo
)

// Re-export error types
type (
	DecodeError       = model.DecodeError
	ValidationError   = model.ValidationError
	RoutingIncomplete = model.RoutingIncomplete
)
