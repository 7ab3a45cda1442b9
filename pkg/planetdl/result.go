package planetdl

import (
	"fmt"

	"github.com/vertextoedge/planetdl/internal/domain"
)

// Result is the stable public status code of an operation
type Result int

// Result codes. The numeric values are part of the public contract.
const (
	Success          Result = 0
	InvalidParameter Result = 1
	NetworkError     Result = 2
	IOError          Result = 3
	UnknownError     Result = 4
)

// String returns the name of the result
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case InvalidParameter:
		return "invalid parameter"
	case NetworkError:
		return "network error"
	case IOError:
		return "i/o error"
	case UnknownError:
		return "unknown error"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Err returns nil for Success and an error carrying r otherwise
func (r Result) Err() error {
	if r == Success {
		return nil
	}
	return &ResultError{Result: r}
}

// ResultError is the error form of a non-success Result
type ResultError struct {
	Result Result
}

// Error returns the error message
func (e *ResultError) Error() string {
	return "planetdl: " + e.Result.String()
}

// MapOutcome converts an internal outcome into a public Result. Cancelled
// and any kind without a dedicated code map to UnknownError.
func MapOutcome(o domain.Outcome) Result {
	return mapKind(o.Kind)
}

func mapKind(k domain.OutcomeKind) Result {
	switch k {
	case domain.OutcomeSuccess:
		return Success
	case domain.OutcomeInvalidInput:
		return InvalidParameter
	case domain.OutcomeNetworkFailure:
		return NetworkError
	case domain.OutcomeIOFailure:
		return IOError
	default:
		return UnknownError
	}
}
