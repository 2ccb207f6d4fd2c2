package relocation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAck is returned when the robot stops talking before it reports
	// Success. The registry is left untouched.
	ErrNoAck = errors.New("robot did not acknowledge relocation")

	ErrQueued          = errors.New("position already has a pending relocation")
	ErrRunning         = errors.New("relocation is already running")
	ErrRequestNotFound = errors.New("relocation request not found")
)

// PreconditionKind names the booking combination that blocked a relocation.
type PreconditionKind string

const (
	BothOccupied PreconditionKind = "both_occupied"
	BothFree     PreconditionKind = "both_free"
	SourceFree   PreconditionKind = "source_free"
	SamePosition PreconditionKind = "same_position"
)

// PreconditionError reports a relocation rejected before anything was sent
// to the robot.
type PreconditionError struct {
	Kind PreconditionKind
	From int
	To   int
}

func (e *PreconditionError) Error() string {
	switch e.Kind {
	case BothOccupied:
		return fmt.Sprintf("positions %d and %d are both occupied", e.From, e.To)
	case BothFree:
		return fmt.Sprintf("positions %d and %d are both free", e.From, e.To)
	case SourceFree:
		return fmt.Sprintf("position %d has no plant and %d is occupied", e.From, e.To)
	case SamePosition:
		return fmt.Sprintf("cannot relocate position %d onto itself", e.From)
	}
	return fmt.Sprintf("relocation %d->%d not possible (%s)", e.From, e.To, e.Kind)
}

// checkBooking classifies a from/to booking pair. It returns nil when the
// move is allowed.
func checkBooking(from, to int, fromBooked, toBooked bool) error {
	var kind PreconditionKind
	switch {
	case from == to:
		kind = SamePosition
	case fromBooked && !toBooked:
		return nil
	case fromBooked && toBooked:
		kind = BothOccupied
	case !toBooked:
		kind = BothFree
	default:
		kind = SourceFree
	}
	return &PreconditionError{Kind: kind, From: from, To: to}
}
