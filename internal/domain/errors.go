package domain

import (
	"errors"
	"strings"
)

// Common domain errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNetwork           = errors.New("network failure")
	ErrIO                = errors.New("i/o failure")
	ErrCancelled         = errors.New("transfer cancelled")
	ErrInsufficientSpace = errors.New("insufficient space")

	// Source errors
	ErrSourceNotFound = errors.New("source not found")
	ErrTruncated      = errors.New("stream ended before expected size")

	// Destination errors
	ErrDestinationExists = errors.New("destination already exists")
	ErrDestinationBusy   = errors.New("destination is locked by another transfer")

	// Session errors
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// TransferError carries the outcome kind a failure maps to together with
// the operation that produced it.
type TransferError struct {
	Kind OutcomeKind
	Op   string
	Err  error
}

// Error returns the error message
func (e *TransferError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return e.Kind.String() + " error"
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError creates a new transfer error
func NewTransferError(kind OutcomeKind, op string, err error) *TransferError {
	return &TransferError{Kind: kind, Op: op, Err: err}
}

// SourceNotFoundError is returned when a mirror has no file for a source.
// Suggestion holds a likely intended identifier, if any.
type SourceNotFoundError struct {
	Source     string
	Suggestion string
	Err        error
}

// Error returns the error message
func (e *SourceNotFoundError) Error() string {
	msg := "source '" + e.Source + "' not found or not supported"
	if e.Suggestion != "" {
		msg += " (did you mean '" + e.Suggestion + "'?)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *SourceNotFoundError) Unwrap() error {
	return e.Err
}

// KindOf classifies an error into an outcome kind. Typed transfer errors
// win, then well-known sentinels; everything else is Unknown.
func KindOf(err error) OutcomeKind {
	if err == nil {
		return OutcomeSuccess
	}

	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}

	switch {
	case errors.Is(err, ErrCancelled):
		return OutcomeCancelled
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrTruncated), errors.Is(err, ErrSourceNotFound):
		return OutcomeNetworkFailure
	case errors.Is(err, ErrIO), errors.Is(err, ErrInsufficientSpace),
		errors.Is(err, ErrDestinationExists), errors.Is(err, ErrDestinationBusy):
		return OutcomeIOFailure
	default:
		return OutcomeUnknown
	}
}

// IsNetwork returns true if the error maps to a network failure
func IsNetwork(err error) bool {
	return err != nil && KindOf(err) == OutcomeNetworkFailure
}

// IsIO returns true if the error maps to a local I/O failure
func IsIO(err error) bool {
	return err != nil && KindOf(err) == OutcomeIOFailure
}
