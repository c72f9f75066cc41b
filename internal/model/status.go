package model

import "fmt"

// Status is the transmission state of an outbound document
type Status int

const (
	StatusDraft Status = iota
	StatusSending
	StatusSendDone
	StatusSendError
	StatusMissingInfo
)

var statusNames = map[Status]string{
	StatusDraft:       "draft",
	StatusSending:     "sending",
	StatusSendDone:    "senddone",
	StatusSendError:   "senderror",
	StatusMissingInfo: "missinginfo",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus converts the ERP field value to a Status
func ParseStatus(s string) (Status, error) {
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return StatusDraft, NewValidationError("status", s, "enum", "unknown transmission status")
}

// Event drives a status transition
type Event int

const (
	EventSubmit Event = iota
	EventRoutingMissing
	EventUploadFailed
	EventUploaded
	EventPending
	EventDeliveryConfirmed
	EventDeliveryFailed
	EventReset
)

var eventNames = map[Event]string{
	EventSubmit:            "submit",
	EventRoutingMissing:    "routing_missing",
	EventUploadFailed:      "upload_failed",
	EventUploaded:          "uploaded",
	EventPending:           "pending",
	EventDeliveryConfirmed: "delivery_confirmed",
	EventDeliveryFailed:    "delivery_failed",
	EventReset:             "reset",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

type transitionKey struct {
	from  Status
	event Event
}

var transitions = map[transitionKey]Status{
	{StatusDraft, EventSubmit}:              StatusSending,
	{StatusSending, EventRoutingMissing}:    StatusSendError,
	{StatusSending, EventUploadFailed}:      StatusSendError,
	{StatusSending, EventUploaded}:          StatusSending,
	{StatusSending, EventPending}:           StatusSending,
	{StatusSending, EventDeliveryConfirmed}: StatusSendDone,
	{StatusSending, EventDeliveryFailed}:    StatusSendError,
	{StatusSendError, EventReset}:           StatusDraft,
	{StatusMissingInfo, EventReset}:         StatusDraft,
	{StatusSendDone, EventReset}:            StatusDraft,
}

// Transition returns the state reached from s on event e
func Transition(s Status, e Event) (Status, error) {
	next, ok := transitions[transitionKey{s, e}]
	if !ok {
		return s, &TransitionError{From: s, Event: e}
	}
	return next, nil
}

// Terminal reports whether no automatic event leaves s
func (s Status) Terminal() bool {
	return s == StatusSendDone || s == StatusSendError || s == StatusMissingInfo
}
