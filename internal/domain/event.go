package domain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// EventFlags is the bit set stored in every event-queue slot.
type EventFlags uint8

const (
	EventFlagFill         EventFlags = 1 << 0
	EventFlagOut          EventFlags = 1 << 1
	EventFlagBid          EventFlags = 1 << 2
	EventFlagMaker        EventFlags = 1 << 3
	EventFlagReleaseFunds EventFlags = 1 << 4
)

func (f EventFlags) IsFill() bool          { return f&EventFlagFill != 0 }
func (f EventFlags) IsOut() bool           { return f&EventFlagOut != 0 }
func (f EventFlags) IsBid() bool           { return f&EventFlagBid != 0 }
func (f EventFlags) IsMaker() bool         { return f&EventFlagMaker != 0 }
func (f EventFlags) ReleaseFunds() bool    { return f&EventFlagReleaseFunds != 0 }
func (f EventFlags) Has(o EventFlags) bool { return f&o == o }

// EventKind is the high-level classification of an event.
type EventKind string

const (
	EventKindFill    EventKind = "FILL"
	EventKindOut     EventKind = "OUT"
	EventKindUnknown EventKind = "UNKNOWN"
)

// KindOf derives the event kind from its flags.
func KindOf(flags EventFlags) EventKind {
	switch {
	case flags.IsFill():
		return EventKindFill
	case flags.IsOut():
		return EventKindOut
	default:
		return EventKindUnknown
	}
}

// Event is a fill or out record from a market's event queue.
// Seq is strictly increasing within one queue snapshot.
type Event struct {
	Seq                    uint64
	Kind                   EventKind
	Flags                  EventFlags
	Side                   Side
	OwnerSlot              uint8
	FeeTier                uint8
	NativeQuantityReleased uint64
	NativeQuantityPaid     uint64
	NativeFeeOrRebate      uint64
	OrderID                OrderID
	Owner                  solana.PublicKey // Open orders account
	ClientOrderID          uint64
}

func (e Event) String() string {
	return fmt.Sprintf("#%d %s %s maker=%t released=%d paid=%d fee=%d [owner=%s client=%d]",
		e.Seq, e.Kind, e.Side, e.Flags.IsMaker(),
		e.NativeQuantityReleased, e.NativeQuantityPaid, e.NativeFeeOrRebate,
		e.Owner, e.ClientOrderID)
}
