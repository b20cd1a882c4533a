package serum

import (
	"encoding/binary"
	"fmt"

	"mango_go/internal/domain"
)

const (
	eventQueueHeaderLen = 24
	eventLen            = 88

	// EventQueueMinSize is the smallest event queue account: envelope plus header.
	EventQueueMinSize = accountHeaderLen + eventQueueHeaderLen + tailPaddingLen
)

// Event slot offsets.
const (
	eventFlags     = 0
	eventOwnerSlot = 1
	eventFeeTier   = 2
	eventReleased  = 8
	eventPaid      = 16
	eventFeeRebate = 24
	eventOrderID   = 32
	eventOwner     = 48
	eventClientID  = 80
)

// EventQueue is a decoded snapshot of an event queue ring buffer.
// Events holds the live range oldest first; HeadSeq and TailSeq bound
// their sequence numbers as [HeadSeq, TailSeq).
type EventQueue struct {
	Head     uint64 // Slot index of the oldest live event
	Count    uint64
	SeqNum   uint64 // Sequence number the next pushed event will get
	Capacity uint64
	HeadSeq  uint64
	TailSeq  uint64
	Events   []domain.Event
}

// DecodeEventQueue interprets an event queue account. It walks Count slots
// from Head, wrapping modulo the slot capacity, and never reads slots
// outside the live range.
func DecodeEventQueue(data []byte) (*EventQueue, error) {
	flags, body, err := unwrap(LayoutEventQueue, data, EventQueueMinSize)
	if err != nil {
		return nil, err
	}
	if err := checkFlags(LayoutEventQueue, flags, FlagEventQueue, len(data)); err != nil {
		return nil, err
	}

	q := &EventQueue{
		Head:   binary.LittleEndian.Uint64(body[0:8]),
		Count:  binary.LittleEndian.Uint64(body[8:16]),
		SeqNum: binary.LittleEndian.Uint64(body[16:24]),
	}
	slots := body[eventQueueHeaderLen:]
	q.Capacity = uint64(len(slots) / eventLen)

	switch {
	case q.Count > q.Capacity:
		return nil, malformedQueue(data, "count %d exceeds capacity %d", q.Count, q.Capacity)
	case q.Capacity > 0 && q.Head >= q.Capacity:
		return nil, malformedQueue(data, "head %d outside capacity %d", q.Head, q.Capacity)
	case q.Count > q.SeqNum:
		return nil, malformedQueue(data, "count %d exceeds sequence number %d", q.Count, q.SeqNum)
	}

	q.TailSeq = q.SeqNum
	q.HeadSeq = q.SeqNum - q.Count
	q.Events = make([]domain.Event, 0, q.Count)
	for i := uint64(0); i < q.Count; i++ {
		idx := (q.Head + i) % q.Capacity
		q.Events = append(q.Events, decodeEvent(slots[idx*eventLen:(idx+1)*eventLen], q.HeadSeq+i))
	}
	return q, nil
}

func decodeEvent(slot []byte, seq uint64) domain.Event {
	flags := domain.EventFlags(slot[eventFlags])
	side := domain.SideSell
	if flags.IsBid() {
		side = domain.SideBuy
	}
	return domain.Event{
		Seq:                    seq,
		Kind:                   domain.KindOf(flags),
		Flags:                  flags,
		Side:                   side,
		OwnerSlot:              slot[eventOwnerSlot],
		FeeTier:                slot[eventFeeTier],
		NativeQuantityReleased: binary.LittleEndian.Uint64(slot[eventReleased:]),
		NativeQuantityPaid:     binary.LittleEndian.Uint64(slot[eventPaid:]),
		NativeFeeOrRebate:      binary.LittleEndian.Uint64(slot[eventFeeRebate:]),
		OrderID:                readOrderID(slot[eventOrderID:]),
		Owner:                  readPublicKey(slot[eventOwner:]),
		ClientOrderID:          binary.LittleEndian.Uint64(slot[eventClientID:]),
	}
}

func malformedQueue(data []byte, format string, args ...any) error {
	return &domain.MalformedDataError{
		Layout: LayoutEventQueue, Expected: len(data), Actual: len(data),
		Reason: fmt.Sprintf(format, args...),
	}
}
