// Package placement decides whether an occupant may claim a range of rack units.
//
// Positions are 1-based. An occupant at position p with size s covers the closed
// range [p, p+s-1]. Two occupants conflict unless one range ends before the other
// starts, so adjacent ranges (one ending at N, the next starting at N+1) are legal.
package placement

import (
	"errors"
	"fmt"
)

// ErrConflict is matched by every placement rejection
var ErrConflict = errors.New("placement conflict")

// Reason distinguishes why a placement was rejected
type Reason string

const (
	ReasonOutOfBounds Reason = "exceeds rack height"
	ReasonOverlap     Reason = "overlaps existing occupant"
)

// Occupant is anything claiming rack units: a device instance or a racked provider
type Occupant struct {
	ID       string
	Position int
	Size     int
}

// End returns the last unit covered by the occupant
func (o Occupant) End() int {
	return o.Position + o.Size - 1
}

// ConflictError describes a rejected placement
type ConflictError struct {
	Reason   Reason
	Position int
	Size     int
	Limit    int    // rack height the placement was checked against
	Occupant string // conflicting occupant, set for ReasonOverlap
}

func (e *ConflictError) Error() string {
	if e.Reason == ReasonOverlap {
		return fmt.Sprintf("cannot place %dU at position %d: %s %s", e.Size, e.Position, e.Reason, e.Occupant)
	}
	return fmt.Sprintf("cannot place %dU at position %d: %s (%dU)", e.Size, e.Position, e.Reason, e.Limit)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// Check validates placing size units at position in a rack of rackSize units that
// already holds occupants. The occupant with ID excludeID is ignored, which lets a
// move be validated against everything except the moving occupant itself.
func Check(rackSize int, occupants []Occupant, position, size int, excludeID string) error {
	end := position + size - 1
	if position < 1 || end > rackSize {
		return &ConflictError{Reason: ReasonOutOfBounds, Position: position, Size: size, Limit: rackSize}
	}

	for _, o := range occupants {
		if excludeID != "" && o.ID == excludeID {
			continue
		}
		if !(end < o.Position || position > o.End()) {
			return &ConflictError{Reason: ReasonOverlap, Position: position, Size: size, Limit: rackSize, Occupant: o.ID}
		}
	}

	return nil
}

// Fits is Check reduced to a boolean
func Fits(rackSize int, occupants []Occupant, position, size int, excludeID string) bool {
	return Check(rackSize, occupants, position, size, excludeID) == nil
}
