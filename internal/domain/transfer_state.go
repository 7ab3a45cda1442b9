package domain

import (
	"fmt"
	"sync/atomic"
)

// Phase is the lifecycle phase of a transfer session
type Phase int32

// Session phases
const (
	PhaseCreated Phase = iota
	PhaseProbing
	PhaseStreaming
	PhaseCompleted
	PhaseFailed
	PhaseCancelled
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseProbing:
		return "probing"
	case PhaseStreaming:
		return "streaming"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Terminal returns true for phases that admit no further transitions
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// allowedTransitions lists legal forward moves. Any non-terminal phase may
// move to Failed or Cancelled.
var allowedTransitions = map[Phase][]Phase{
	PhaseCreated:   {PhaseProbing},
	PhaseProbing:   {PhaseStreaming},
	PhaseStreaming: {PhaseCompleted},
}

// TransferState is the live, concurrently readable state of one session.
// The downloaded counter has a single writer, the session loop.
type TransferState struct {
	downloaded atomic.Uint64
	total      atomic.Int64
	phase      atomic.Int32
}

// NewTransferState creates a new state in the Created phase with an unknown total
func NewTransferState() *TransferState {
	s := &TransferState{}
	s.total.Store(UnknownSize)
	return s
}

// Downloaded returns the number of bytes accepted by the sink so far
func (s *TransferState) Downloaded() uint64 {
	return s.downloaded.Load()
}

// Total returns the expected size, or UnknownSize
func (s *TransferState) Total() int64 {
	return s.total.Load()
}

// Phase returns the current phase
func (s *TransferState) Phase() Phase {
	return Phase(s.phase.Load())
}

// Advance adds n written bytes and returns the new counter value
func (s *TransferState) Advance(n int) uint64 {
	return s.downloaded.Add(uint64(n))
}

// SetTotal records the expected size. Negative values mean unknown.
func (s *TransferState) SetTotal(total int64) {
	if total < 0 {
		total = UnknownSize
	}
	s.total.Store(total)
}

// TransitionTo moves the session to the next phase. Terminal phases are final.
func (s *TransferState) TransitionTo(next Phase) error {
	for {
		cur := Phase(s.phase.Load())
		if !canTransition(cur, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, cur, next)
		}
		if s.phase.CompareAndSwap(int32(cur), int32(next)) {
			return nil
		}
	}
}

func canTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseFailed || to == PhaseCancelled {
		return true
	}
	for _, p := range allowedTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
