package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestTransferError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TransferError
		want string
	}{
		{
			name: "op and error",
			err:  NewTransferError(OutcomeNetworkFailure, "probe", errors.New("connection refused")),
			want: "probe: connection refused",
		},
		{
			name: "error only",
			err:  NewTransferError(OutcomeIOFailure, "", errors.New("disk full")),
			want: "disk full",
		},
		{
			name: "op only",
			err:  NewTransferError(OutcomeIOFailure, "commit", nil),
			want: "commit",
		},
		{
			name: "empty",
			err:  &TransferError{Kind: OutcomeNetworkFailure},
			want: "network_failure error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransferError_Unwrap(t *testing.T) {
	err := NewTransferError(OutcomeIOFailure, "write", fmt.Errorf("%w: short write", ErrIO))
	if !errors.Is(err, ErrIO) {
		t.Error("errors.Is(err, ErrIO) = false")
	}

	wrapped := fmt.Errorf("attempt 2: %w", err)
	var te *TransferError
	if !errors.As(wrapped, &te) || te.Op != "write" {
		t.Errorf("errors.As() = %v", te)
	}
}

func TestSourceNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  *SourceNotFoundError
		want string
	}{
		{
			name: "with suggestion",
			err:  &SourceNotFoundError{Source: "antartica", Suggestion: "antarctica", Err: ErrSourceNotFound},
			want: "source 'antartica' not found or not supported (did you mean 'antarctica'?): source not found",
		},
		{
			name: "without suggestion",
			err:  &SourceNotFoundError{Source: "atlantis"},
			want: "source 'atlantis' not found or not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(tests[0].err, ErrSourceNotFound) {
		t.Error("SourceNotFoundError does not unwrap")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"nil", nil, OutcomeSuccess},
		{"typed wins over sentinel", NewTransferError(OutcomeCancelled, "read", ErrNetwork), OutcomeCancelled},
		{"cancelled", fmt.Errorf("%w: context canceled", ErrCancelled), OutcomeCancelled},
		{"invalid input", fmt.Errorf("%w: empty", ErrInvalidInput), OutcomeInvalidInput},
		{"network", ErrNetwork, OutcomeNetworkFailure},
		{"truncated", fmt.Errorf("%w: got 1 of 2 bytes", ErrTruncated), OutcomeNetworkFailure},
		{"not found", ErrSourceNotFound, OutcomeNetworkFailure},
		{"io", ErrIO, OutcomeIOFailure},
		{"insufficient space", ErrInsufficientSpace, OutcomeIOFailure},
		{"destination exists", ErrDestinationExists, OutcomeIOFailure},
		{"destination busy", ErrDestinationBusy, OutcomeIOFailure},
		{"state transition", ErrInvalidStateTransition, OutcomeUnknown},
		{"other", errors.New("boom"), OutcomeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNetworkIsIO(t *testing.T) {
	if !IsNetwork(ErrTruncated) || IsNetwork(ErrIO) || IsNetwork(nil) {
		t.Error("IsNetwork() misclassified")
	}
	if !IsIO(ErrDestinationBusy) || IsIO(ErrNetwork) || IsIO(nil) {
		t.Error("IsIO() misclassified")
	}
}

func TestFailureOutcome(t *testing.T) {
	o := FailureOutcome(ErrIO, 42)
	if o.Kind != OutcomeIOFailure || o.BytesWritten != 42 || o.OK() {
		t.Errorf("FailureOutcome() = %+v", o)
	}

	// A nil error never produces a failed Success
	if o := FailureOutcome(nil, 0); o.Kind != OutcomeUnknown {
		t.Errorf("FailureOutcome(nil) Kind = %v, want unknown", o.Kind)
	}

	if o := SuccessOutcome(7); !o.OK() || o.BytesWritten != 7 {
		t.Errorf("SuccessOutcome() = %+v", o)
	}
}
