package model

import "fmt"

// DecodeError represents a document that could not be read at all
type DecodeError struct {
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode failed: %s (%v)", e.Reason, e.Cause)
	}
	return fmt.Sprintf("decode failed: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// NewDecodeError creates a new decode error
func NewDecodeError(reason string, cause error) *DecodeError {
	return &DecodeError{
		Reason: reason,
		Cause:  cause,
	}
}

// ResolutionGap records a field that no resolver could derive
type ResolutionGap struct {
	Field  string
	Reason string
}

func (e *ResolutionGap) Error() string {
	return fmt.Sprintf("unresolved %s: %s", e.Field, e.Reason)
}

// NewResolutionGap creates a new resolution gap
func NewResolutionGap(field, reason string) *ResolutionGap {
	return &ResolutionGap{
		Field:  field,
		Reason: reason,
	}
}

// UploadError represents a rejected or failed transmission
type UploadError struct {
	Reason string
	Cause  error
}

func (e *UploadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upload failed: %s (%v)", e.Reason, e.Cause)
	}
	return fmt.Sprintf("upload failed: %s", e.Reason)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// NewUploadError creates a new upload error
func NewUploadError(reason string, cause error) *UploadError {
	return &UploadError{
		Reason: reason,
		Cause:  cause,
	}
}

// RoutingIncomplete is raised when a buyer lacks OVT or intermediator
type RoutingIncomplete struct {
	Partner string
}

// Error is the text stored on the ERP record
func (e *RoutingIncomplete) Error() string {
	return fmt.Sprintf("%s is missing OVT/Intermediator", e.Partner)
}

// TransitionError represents an event not allowed in the current state
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s on %s", e.Event, e.From)
}

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}
