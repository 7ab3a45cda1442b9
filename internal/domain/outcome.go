package domain

// OutcomeKind is the terminal classification of a transfer
type OutcomeKind int

// Outcome kinds
const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNetworkFailure
	OutcomeIOFailure
	OutcomeInvalidInput
	OutcomeCancelled
	OutcomeUnknown
)

// String returns the string representation of the outcome kind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNetworkFailure:
		return "network_failure"
	case OutcomeIOFailure:
		return "io_failure"
	case OutcomeInvalidInput:
		return "invalid_input"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the single terminal result of a transfer session.
// BytesWritten is always reported, also on failure.
type Outcome struct {
	Kind         OutcomeKind
	BytesWritten uint64
	Err          error
}

// OK returns true if the transfer completed successfully
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// SuccessOutcome creates a successful outcome
func SuccessOutcome(written uint64) Outcome {
	return Outcome{Kind: OutcomeSuccess, BytesWritten: written}
}

// FailureOutcome creates a failed outcome classified from err
func FailureOutcome(err error, written uint64) Outcome {
	kind := KindOf(err)
	if kind == OutcomeSuccess {
		kind = OutcomeUnknown
	}
	return Outcome{Kind: kind, BytesWritten: written, Err: err}
}
